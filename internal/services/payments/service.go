package payments

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/BearBump/ParcelBox/internal/broker/messages"
	"github.com/BearBump/ParcelBox/internal/cache"
	"github.com/BearBump/ParcelBox/internal/integrations/payprovider"
	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/BearBump/ParcelBox/internal/services/parcels"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrRateLimited — платёжные интенты для плательщика создаются слишком часто.
var ErrRateLimited = errors.New("too many payment intents")

type Repository interface {
	CreatePayment(ctx context.Context, in models.PaymentCreateInput) (*models.Payment, error)
	ListPaymentsByPayer(ctx context.Context, payerEmail string) ([]*models.Payment, error)
	MarkPaid(ctx context.Context, id uuid.UUID, transactionID string) (int64, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Service struct {
	repo     Repository
	provider payprovider.Client
	cache    cache.BytesCache
	rl       RateLimiter

	currency             string
	intentLimitPerMinute int64
}

func New(repo Repository, provider payprovider.Client, c cache.BytesCache, rl RateLimiter, currency string, intentLimitPerMinute int64) *Service {
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		repo:                 repo,
		provider:             provider,
		cache:                c,
		rl:                   rl,
		currency:             currency,
		intentLimitPerMinute: intentLimitPerMinute,
	}
}

// CreateIntent получает у провайдера client secret. Локальное состояние не
// меняется: до подтверждения клиентом платежа у нас нечего хранить.
func (s *Service) CreateIntent(ctx context.Context, amount float64, rawParcelID, payerEmail string) (string, error) {
	parcelID, err := models.ParseID(rawParcelID)
	if err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", errors.New("amount must be positive")
	}

	if s.rl != nil && s.intentLimitPerMinute > 0 && payerEmail != "" {
		minuteKey := fmt.Sprintf("rl:intent:%s:%s", payerEmail, time.Now().UTC().Format("200601021504"))
		allowed, _, err := s.rl.Allow(ctx, minuteKey, s.intentLimitPerMinute, 70*time.Second)
		if err == nil && !allowed {
			return "", ErrRateLimited
		}
	}

	// Провайдер принимает сумму в минимальных единицах валюты.
	amountMinor := int64(math.Round(amount * 100))

	intent, err := s.provider.CreateIntent(ctx, payprovider.IntentRequest{
		AmountMinor: amountMinor,
		Currency:    s.currency,
		ParcelID:    parcelID.String(),
		PayerEmail:  payerEmail,
	})
	if err != nil {
		return "", errors.Wrap(err, "create payment intent")
	}
	return intent.ClientSecret, nil
}

type RecordInput struct {
	ParcelID      string
	PayerEmail    string
	Amount        float64
	TransactionID string
}

// RecordPayment — шаг сверки: вставить неизменяемый платёж, затем пометить
// посылку оплаченной. Записи независимые, отката нет: если вторая упала,
// остаётся платёж при неоплаченной посылке — это чинит воркер сверки.
func (s *Service) RecordPayment(ctx context.Context, in RecordInput) (*models.Payment, error) {
	parcelID, err := models.ParseID(in.ParcelID)
	if err != nil {
		return nil, err
	}
	if in.TransactionID == "" {
		return nil, errors.New("transactionId is required")
	}
	if in.PayerEmail == "" {
		return nil, errors.New("userEmail is required")
	}

	payment, err := s.repo.CreatePayment(ctx, models.PaymentCreateInput{
		ParcelID:      parcelID,
		PayerEmail:    in.PayerEmail,
		Amount:        in.Amount,
		TransactionID: in.TransactionID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.MarkPaid(ctx, parcelID, in.TransactionID); err != nil {
		return nil, errors.Wrap(err, "mark parcel paid after payment")
	}
	s.invalidateParcel(ctx, parcelID)

	return payment, nil
}

func (s *Service) ListForUser(ctx context.Context, payerEmail string) ([]*models.Payment, error) {
	if payerEmail == "" {
		return nil, errors.New("email is required")
	}
	return s.repo.ListPaymentsByPayer(ctx, payerEmail)
}

// ApplyReconcileUpdate применяет сообщение воркера сверки. Повторная доставка
// безопасна: markPaid — идемпотентная перезапись.
func (s *Service) ApplyReconcileUpdate(ctx context.Context, msg messages.ParcelPaid) error {
	if msg.ParcelID == uuid.Nil {
		return errors.New("parcel_id is required")
	}
	if msg.TransactionID == "" {
		return errors.New("transaction_id is required")
	}

	if _, err := s.repo.MarkPaid(ctx, msg.ParcelID, msg.TransactionID); err != nil {
		return err
	}
	s.invalidateParcel(ctx, msg.ParcelID)
	return nil
}

func (s *Service) invalidateParcel(ctx context.Context, id uuid.UUID) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, parcels.CacheKey(id))
	}
}
