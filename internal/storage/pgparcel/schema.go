package pgparcel

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS parcels (
  id UUID PRIMARY KEY,
  created_by TEXT NOT NULL DEFAULT '',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  transaction_id TEXT NULL,
  data JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_parcels_created_by_created_at ON parcels(created_by, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS users (
  email TEXT PRIMARY KEY,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS payments (
  id UUID PRIMARY KEY,
  parcel_id UUID NOT NULL,
  payer_email TEXT NOT NULL,
  amount DOUBLE PRECISION NOT NULL,
  transaction_id TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		// Платежи не уникальны по parcel_id: повторный платёж за уже оплаченную
		// посылку допустим (корректировка — отдельный админский сценарий).
		`CREATE INDEX IF NOT EXISTS idx_payments_payer_email_created_at ON payments(payer_email, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_parcel_id ON payments(parcel_id)`,
		`
CREATE TABLE IF NOT EXISTS tracking_records (
  parcel_id UUID PRIMARY KEY,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS tracking_updates (
  id BIGSERIAL PRIMARY KEY,
  parcel_id UUID NOT NULL REFERENCES tracking_records(parcel_id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  event_time TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_updates_parcel_id_id ON tracking_updates(parcel_id, id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
