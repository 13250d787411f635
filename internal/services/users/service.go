package users

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

type Repository interface {
	CreateUser(ctx context.Context, email string) (bool, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create идемпотентен: повторный вызов с тем же email — не ошибка,
// просто inserted=false.
func (s *Service) Create(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return false, errors.New("valid email is required")
	}
	return s.repo.CreateUser(ctx, email)
}
