package parcels

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/ParcelBox/internal/cache"
	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateParcel(ctx context.Context, in models.ParcelCreateInput) (*models.Parcel, error)
	GetParcel(ctx context.Context, id uuid.UUID) (*models.Parcel, error)
	ListParcels(ctx context.Context, createdBy string) ([]*models.Parcel, error)
	DeleteParcel(ctx context.Context, id uuid.UUID) (int64, error)
	MarkPaid(ctx context.Context, id uuid.UUID, transactionID string) (int64, error)
}

type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, currentTTL: currentTTL}
}

// Зарезервированные ключи не пускаем внутрь data: ими владеет хранилище.
var reservedFields = map[string]struct{}{
	"id":             {},
	"created_by":     {},
	"payment_status": {},
	"transactionId":  {},
	"createdAt":      {},
}

func (s *Service) Create(ctx context.Context, fields map[string]any) (*models.Parcel, error) {
	in := models.ParcelCreateInput{Data: map[string]any{}}
	for k, v := range fields {
		if _, ok := reservedFields[k]; ok {
			continue
		}
		in.Data[k] = v
	}
	if v, ok := fields["created_by"].(string); ok {
		in.CreatedBy = v
	}
	return s.repo.CreateParcel(ctx, in)
}

func (s *Service) List(ctx context.Context, createdBy string) ([]*models.Parcel, error) {
	return s.repo.ListParcels(ctx, createdBy)
}

func (s *Service) Get(ctx context.Context, rawID string) (*models.Parcel, error) {
	id, err := models.ParseID(rawID)
	if err != nil {
		return nil, err
	}

	// Кэш — best effort: промах или битая запись просто ведут в БД.
	if s.cache != nil && s.currentTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, CacheKey(id)); err == nil && ok {
			var p models.Parcel
			if json.Unmarshal(b, &p) == nil {
				return &p, nil
			}
		}
	}

	p, err := s.repo.GetParcel(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && s.currentTTL > 0 {
		b, _ := json.Marshal(p)
		_ = s.cache.Set(ctx, CacheKey(id), b, s.currentTTL)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) (int64, error) {
	id, err := models.ParseID(rawID)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteParcel(ctx, id)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, CacheKey(id))
	}
	return n, nil
}

// MarkPaid — административная корректировка без создания платежа.
// Обычный путь оплаты идёт через payments.Service.RecordPayment.
func (s *Service) MarkPaid(ctx context.Context, rawID, transactionID string) (int64, error) {
	id, err := models.ParseID(rawID)
	if err != nil {
		return 0, err
	}
	if transactionID == "" {
		return 0, errors.New("transactionId is required")
	}
	n, err := s.repo.MarkPaid(ctx, id, transactionID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, CacheKey(id))
	}
	return n, nil
}

func CacheKey(id uuid.UUID) string {
	return fmt.Sprintf("parcel:%s:current", id)
}
