package pgparcel

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// CreateUser идемпотентен по email: повторная попытка — no-op c inserted=false.
func (s *Storage) CreateUser(ctx context.Context, email string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
INSERT INTO users (email, created_at)
VALUES ($1, $2)
ON CONFLICT (email) DO NOTHING
`, email, time.Now().UTC())
	if err != nil {
		return false, errors.Wrap(err, "insert user")
	}
	return tag.RowsAffected() == 1, nil
}
