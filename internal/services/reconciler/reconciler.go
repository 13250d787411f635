package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/ParcelBox/internal/broker/messages"
	"github.com/BearBump/ParcelBox/internal/models"
)

type Repository interface {
	ListUnreconciledPayments(ctx context.Context, limit int) ([]*models.Payment, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Poller периодически ищет платежи, не отражённые на посылке (разрыв
// двухшаговой записи recordPayment), и публикует сообщения на починку.
// Применяет их потребитель в parcel-api тем же идемпотентным markPaid.
type Poller struct {
	repo     Repository
	producer Producer
	rl       RateLimiter

	topic string

	pollInterval       time.Duration
	batchSize          int
	rateLimitPerMinute int64
	dedupWindow        time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalScanned        atomic.Int64
	totalPublished      atomic.Int64
	totalSkipped        atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, producer Producer, rl RateLimiter, topic string) *Poller {
	return &Poller{
		repo: repo, producer: producer, rl: rl, topic: topic,
		pollInterval:       30 * time.Second,
		batchSize:          100,
		rateLimitPerMinute: 120,
		dedupWindow:        5 * time.Minute,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize int, rlPerMin int64, dedupWindow time.Duration) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	if dedupWindow > 0 {
		p.dedupWindow = dedupWindow
	}
	return p
}

// Trigger forces an immediate scan cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalScanned   int64      `json:"totalScanned"`
	TotalPublished int64      `json:"totalPublished"`
	TotalSkipped   int64      `json:"totalSkipped"`
	TotalErrors    int64      `json:"totalErrors"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalScanned:   p.totalScanned.Load(),
		TotalPublished: p.totalPublished.Load(),
		TotalSkipped:   p.totalSkipped.Load(),
		TotalErrors:    p.totalErrors.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	orphans, err := p.repo.ListUnreconciledPayments(ctx, p.batchSize)
	if err != nil {
		slog.Error("scan unreconciled payments", "error", err.Error())
		p.recordError(err)
		return
	}
	p.totalScanned.Add(int64(len(orphans)))

	for _, pay := range orphans {
		if err := p.publishOne(ctx, pay, now); err != nil {
			p.totalErrors.Add(1)
			p.recordError(err)
			slog.Error("publish reconcile message", "payment_id", pay.ID, "error", err.Error())
		}
	}
}

func (p *Poller) publishOne(ctx context.Context, pay *models.Payment, now time.Time) error {
	if p.rl != nil {
		// Пока сообщение едет до потребителя, платёж остаётся в выборке.
		// Ключ на окно дедупликации гасит повторные публикации.
		seenKey := fmt.Sprintf("reconcile:seen:%s", pay.ID)
		allowed, _, err := p.rl.Allow(ctx, seenKey, 1, p.dedupWindow)
		if err == nil && !allowed {
			p.totalSkipped.Add(1)
			return nil
		}

		if p.rateLimitPerMinute > 0 {
			minuteKey := fmt.Sprintf("rl:reconcile:%s", now.Format("200601021504"))
			allowed, n, err := p.rl.Allow(ctx, minuteKey, p.rateLimitPerMinute, 70*time.Second)
			if err == nil && !allowed {
				slog.Warn("reconcile rate limit exceeded", "count", n)
				p.totalSkipped.Add(1)
				return nil
			}
		}
	}

	msg := messages.ParcelPaid{
		PaymentID:     pay.ID,
		ParcelID:      pay.ParcelID,
		TransactionID: pay.TransactionID,
		CheckedAt:     now,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(pay.ParcelID.String()), b); err != nil {
		return err
	}
	p.totalPublished.Add(1)
	return nil
}

func (p *Poller) recordError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}
