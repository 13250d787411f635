package pgparcel

import (
	"context"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func (s *Storage) CreatePayment(ctx context.Context, in models.PaymentCreateInput) (*models.Payment, error) {
	p := &models.Payment{
		ID:            uuid.New(),
		ParcelID:      in.ParcelID,
		PayerEmail:    in.PayerEmail,
		Amount:        in.Amount,
		TransactionID: in.TransactionID,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO payments (id, parcel_id, payer_email, amount, transaction_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, p.ID, p.ParcelID, p.PayerEmail, p.Amount, p.TransactionID, p.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert payment")
	}
	return p, nil
}

// ListPaymentsByPayer отдаёт платежи в порядке вставки. Порядок — свойство
// реализации, не контракт.
func (s *Storage) ListPaymentsByPayer(ctx context.Context, payerEmail string) ([]*models.Payment, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, parcel_id, payer_email, amount, transaction_id, created_at
FROM payments
WHERE payer_email = $1
ORDER BY created_at
`, payerEmail)
	if err != nil {
		return nil, errors.Wrap(err, "select payments")
	}
	defer rows.Close()

	out := []*models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.ParcelID, &p.PayerEmail, &p.Amount, &p.TransactionID, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan payment")
		}
		out = append(out, &p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListUnreconciledPayments находит платежи, не отражённые на своей посылке:
// посылка не оплачена либо несёт другой transaction_id. Платежи на удалённые
// посылки сюда не попадают — чинить нечего.
func (s *Storage) ListUnreconciledPayments(ctx context.Context, limit int) ([]*models.Payment, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT p.id, p.parcel_id, p.payer_email, p.amount, p.transaction_id, p.created_at
FROM payments p
JOIN parcels pc ON pc.id = p.parcel_id
WHERE pc.payment_status <> $1
   OR pc.transaction_id IS DISTINCT FROM p.transaction_id
ORDER BY p.created_at
LIMIT $2
`, models.PaymentStatusPaid, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select unreconciled payments")
	}
	defer rows.Close()

	out := []*models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.ParcelID, &p.PayerEmail, &p.Amount, &p.TransactionID, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan unreconciled payment")
		}
		out = append(out, &p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
