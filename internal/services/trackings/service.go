package trackings

import (
	"context"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Repository interface {
	AppendTrackingUpdate(ctx context.Context, upd *models.TrackingUpdate) (*models.TrackingUpdate, error)
	GetTracking(ctx context.Context, parcelID uuid.UUID) (*models.TrackingRecord, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// AppendUpdate штампует текущее время и дописывает апдейт в историю посылки.
// Запись создаётся лениво при первом апдейте, атомарно на стороне хранилища.
func (s *Service) AppendUpdate(ctx context.Context, rawParcelID, status, location string) (*models.TrackingUpdate, error) {
	parcelID, err := models.ParseID(rawParcelID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return nil, errors.New("status is required")
	}

	return s.repo.AppendTrackingUpdate(ctx, &models.TrackingUpdate{
		ParcelID:  parcelID,
		Status:    status,
		Location:  location,
		EventTime: time.Now().UTC(),
	})
}

func (s *Service) Get(ctx context.Context, rawParcelID string) (*models.TrackingRecord, error) {
	parcelID, err := models.ParseID(rawParcelID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetTracking(ctx, parcelID)
}
