package pgparcel

import (
	"context"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateParcel(ctx context.Context, in models.ParcelCreateInput) (*models.Parcel, error) {
	p := &models.Parcel{
		ID:            uuid.New(),
		CreatedBy:     in.CreatedBy,
		PaymentStatus: models.PaymentStatusUnpaid,
		Data:          in.Data,
		CreatedAt:     time.Now().UTC(),
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO parcels (id, created_by, payment_status, transaction_id, data, created_at)
VALUES ($1,$2,$3,NULL,$4,$5)
`, p.ID, p.CreatedBy, p.PaymentStatus, p.Data, p.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert parcel")
	}
	return p, nil
}

func (s *Storage) GetParcel(ctx context.Context, id uuid.UUID) (*models.Parcel, error) {
	row := s.db.QueryRow(ctx, `
SELECT id, created_by, payment_status, transaction_id, data, created_at
FROM parcels
WHERE id = $1
`, id)

	p, err := scanParcel(row)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select parcel")
	}
	return p, nil
}

// ListParcels возвращает посылки, свежие первыми. Пустой createdBy — без фильтра.
func (s *Storage) ListParcels(ctx context.Context, createdBy string) ([]*models.Parcel, error) {
	q := `
SELECT id, created_by, payment_status, transaction_id, data, created_at
FROM parcels
`
	args := []any{}
	if createdBy != "" {
		q += `WHERE created_by = $1
`
		args = append(args, createdBy)
	}
	q += `ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select parcels")
	}
	defer rows.Close()

	out := []*models.Parcel{}
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan parcel")
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// DeleteParcel идемпотентен: удаление несуществующего id — успех с нулём строк.
func (s *Storage) DeleteParcel(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM parcels WHERE id = $1`, id)
	if err != nil {
		return 0, errors.Wrap(err, "delete parcel")
	}
	return tag.RowsAffected(), nil
}

// MarkPaid — идемпотентная перезапись статуса оплаты. Поля payment_status и
// transaction_id меняются только здесь.
func (s *Storage) MarkPaid(ctx context.Context, id uuid.UUID, transactionID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE parcels
SET payment_status = $2, transaction_id = $3
WHERE id = $1
`, id, models.PaymentStatusPaid, transactionID)
	if err != nil {
		return 0, errors.Wrap(err, "mark parcel paid")
	}
	return tag.RowsAffected(), nil
}

func scanParcel(row pgx.Row) (*models.Parcel, error) {
	var p models.Parcel
	var transactionID *string
	if err := row.Scan(&p.ID, &p.CreatedBy, &p.PaymentStatus, &transactionID, &p.Data, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.TransactionID = transactionID
	return &p, nil
}
