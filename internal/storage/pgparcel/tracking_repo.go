package pgparcel

import (
	"context"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// AppendTrackingUpdate — атомарный "создай запись, если нет, и допиши апдейт".
// Создание записи и вставка апдейта идут одной транзакцией с ON CONFLICT,
// поэтому два конкурентных первых апдейта не теряются.
func (s *Storage) AppendTrackingUpdate(ctx context.Context, upd *models.TrackingUpdate) (*models.TrackingUpdate, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO tracking_records (parcel_id, created_at)
VALUES ($1, $2)
ON CONFLICT (parcel_id) DO NOTHING
`, upd.ParcelID, upd.EventTime)
	if err != nil {
		return nil, errors.Wrap(err, "upsert tracking record")
	}

	err = tx.QueryRow(ctx, `
INSERT INTO tracking_updates (parcel_id, status, location, event_time)
VALUES ($1,$2,$3,$4)
RETURNING id
`, upd.ParcelID, upd.Status, upd.Location, upd.EventTime).Scan(&upd.ID)
	if err != nil {
		return nil, errors.Wrap(err, "insert tracking update")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return upd, nil
}

// GetTracking возвращает всю историю в порядке добавления.
func (s *Storage) GetTracking(ctx context.Context, parcelID uuid.UUID) (*models.TrackingRecord, error) {
	rec := &models.TrackingRecord{ParcelID: parcelID}

	err := s.db.QueryRow(ctx, `
SELECT created_at FROM tracking_records WHERE parcel_id = $1
`, parcelID).Scan(&rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracking record")
	}

	rows, err := s.db.Query(ctx, `
SELECT id, parcel_id, status, location, event_time
FROM tracking_updates
WHERE parcel_id = $1
ORDER BY id
`, parcelID)
	if err != nil {
		return nil, errors.Wrap(err, "select tracking updates")
	}
	defer rows.Close()

	for rows.Next() {
		var u models.TrackingUpdate
		if err := rows.Scan(&u.ID, &u.ParcelID, &u.Status, &u.Location, &u.EventTime); err != nil {
			return nil, errors.Wrap(err, "scan tracking update")
		}
		rec.Updates = append(rec.Updates, &u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return rec, nil
}
