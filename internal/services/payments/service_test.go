package payments

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/ParcelBox/internal/broker/messages"
	"github.com/BearBump/ParcelBox/internal/integrations/payprovider"
	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/BearBump/ParcelBox/internal/services/parcels"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	createIn  models.PaymentCreateInput
	createOut *models.Payment
	createErr error
	created   int

	markID  uuid.UUID
	markTx  string
	markErr error
	marked  int

	listOut []*models.Payment
}

func (f *fakeRepo) CreatePayment(ctx context.Context, in models.PaymentCreateInput) (*models.Payment, error) {
	f.createIn = in
	f.created++
	return f.createOut, f.createErr
}
func (f *fakeRepo) ListPaymentsByPayer(ctx context.Context, payerEmail string) ([]*models.Payment, error) {
	return f.listOut, nil
}
func (f *fakeRepo) MarkPaid(ctx context.Context, id uuid.UUID, transactionID string) (int64, error) {
	f.markID = id
	f.markTx = transactionID
	f.marked++
	if f.markErr != nil {
		return 0, f.markErr
	}
	return 1, nil
}

type fakeProvider struct {
	req payprovider.IntentRequest
	out payprovider.Intent
	err error
}

func (f *fakeProvider) CreateIntent(ctx context.Context, req payprovider.IntentRequest) (payprovider.Intent, error) {
	f.req = req
	return f.out, f.err
}

type fakeCache struct {
	m map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.m[key] = value
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.m, key)
	return nil
}

type fakeRL struct {
	allowed bool
	calls   int
}

func (f *fakeRL) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	f.calls++
	return f.allowed, 1, nil
}

func TestService_CreateIntent_ConvertsToMinorUnits(t *testing.T) {
	p := &fakeProvider{out: payprovider.Intent{ID: "pi_1", ClientSecret: "secret"}}
	s := New(&fakeRepo{}, p, nil, nil, "usd", 0)

	secret, err := s.CreateIntent(context.Background(), 100, uuid.NewString(), "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "secret", secret)
	require.Equal(t, int64(10000), p.req.AmountMinor)
	require.Equal(t, "usd", p.req.Currency)

	// Округление до ближайшего целого числа центов.
	_, err = s.CreateIntent(context.Background(), 10.555, uuid.NewString(), "a@x.com")
	require.NoError(t, err)
	require.Equal(t, int64(1056), p.req.AmountMinor)
}

func TestService_CreateIntent_Validate(t *testing.T) {
	s := New(&fakeRepo{}, &fakeProvider{}, nil, nil, "usd", 0)

	_, err := s.CreateIntent(context.Background(), 100, "bad-id", "a@x.com")
	require.ErrorIs(t, err, models.ErrInvalidID)

	_, err = s.CreateIntent(context.Background(), 0, uuid.NewString(), "a@x.com")
	require.Error(t, err)
}

func TestService_CreateIntent_ProviderErrorNoState(t *testing.T) {
	r := &fakeRepo{}
	p := &fakeProvider{err: errors.New("provider down")}
	s := New(r, p, nil, nil, "usd", 0)

	_, err := s.CreateIntent(context.Background(), 100, uuid.NewString(), "a@x.com")
	require.Error(t, err)
	require.Zero(t, r.created)
	require.Zero(t, r.marked)
}

func TestService_CreateIntent_RateLimited(t *testing.T) {
	rl := &fakeRL{allowed: false}
	s := New(&fakeRepo{}, &fakeProvider{}, nil, rl, "usd", 10)

	_, err := s.CreateIntent(context.Background(), 100, uuid.NewString(), "a@x.com")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 1, rl.calls)
}

func TestService_RecordPayment_InsertsThenMarksPaid(t *testing.T) {
	parcelID := uuid.New()
	r := &fakeRepo{createOut: &models.Payment{ID: uuid.New(), ParcelID: parcelID, TransactionID: "tx1"}}
	c := &fakeCache{m: map[string][]byte{parcels.CacheKey(parcelID): []byte("{}")}}
	s := New(r, &fakeProvider{}, c, nil, "usd", 0)

	payment, err := s.RecordPayment(context.Background(), RecordInput{
		ParcelID:      parcelID.String(),
		PayerEmail:    "a@x.com",
		Amount:        100,
		TransactionID: "tx1",
	})
	require.NoError(t, err)
	require.Equal(t, "tx1", payment.TransactionID)
	require.Equal(t, 1, r.created)
	require.Equal(t, 1, r.marked)
	require.Equal(t, parcelID, r.markID)
	require.Equal(t, "tx1", r.markTx)
	// Кэш посылки инвалидирован.
	require.NotContains(t, c.m, parcels.CacheKey(parcelID))
}

func TestService_RecordPayment_Validate(t *testing.T) {
	s := New(&fakeRepo{}, &fakeProvider{}, nil, nil, "usd", 0)

	_, err := s.RecordPayment(context.Background(), RecordInput{ParcelID: "bad", TransactionID: "tx", PayerEmail: "a@x.com"})
	require.ErrorIs(t, err, models.ErrInvalidID)

	_, err = s.RecordPayment(context.Background(), RecordInput{ParcelID: uuid.NewString(), PayerEmail: "a@x.com"})
	require.Error(t, err)

	_, err = s.RecordPayment(context.Background(), RecordInput{ParcelID: uuid.NewString(), TransactionID: "tx"})
	require.Error(t, err)
}

func TestService_RecordPayment_MarkPaidFailureLeavesPayment(t *testing.T) {
	// Двухшаговая запись без отката: платёж создан, markPaid упал — ошибка
	// уходит наверх, платёж остаётся (его подберёт воркер сверки).
	r := &fakeRepo{
		createOut: &models.Payment{ID: uuid.New()},
		markErr:   errors.New("pg down"),
	}
	s := New(r, &fakeProvider{}, nil, nil, "usd", 0)

	_, err := s.RecordPayment(context.Background(), RecordInput{
		ParcelID:      uuid.NewString(),
		PayerEmail:    "a@x.com",
		Amount:        100,
		TransactionID: "tx1",
	})
	require.Error(t, err)
	require.Equal(t, 1, r.created)
}

func TestService_ApplyReconcileUpdate(t *testing.T) {
	parcelID := uuid.New()
	r := &fakeRepo{}
	c := &fakeCache{m: map[string][]byte{parcels.CacheKey(parcelID): []byte("{}")}}
	s := New(r, &fakeProvider{}, c, nil, "usd", 0)

	err := s.ApplyReconcileUpdate(context.Background(), messages.ParcelPaid{
		PaymentID:     uuid.New(),
		ParcelID:      parcelID,
		TransactionID: "tx1",
		CheckedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Equal(t, parcelID, r.markID)
	require.NotContains(t, c.m, parcels.CacheKey(parcelID))

	require.Error(t, s.ApplyReconcileUpdate(context.Background(), messages.ParcelPaid{TransactionID: "tx"}))
	require.Error(t, s.ApplyReconcileUpdate(context.Background(), messages.ParcelPaid{ParcelID: parcelID}))
}
