package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы оплаты посылки.
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

type Parcel struct {
	ID            uuid.UUID
	CreatedBy     string
	PaymentStatus string
	TransactionID *string
	// Произвольные поля отправления (вес, адреса и т.п.) — схему не фиксируем.
	Data      map[string]any
	CreatedAt time.Time
}

type ParcelCreateInput struct {
	CreatedBy string
	Data      map[string]any
}

type User struct {
	Email     string
	CreatedAt time.Time
}

type Payment struct {
	ID            uuid.UUID
	ParcelID      uuid.UUID
	PayerEmail    string
	Amount        float64
	TransactionID string
	CreatedAt     time.Time
}

type PaymentCreateInput struct {
	ParcelID      uuid.UUID
	PayerEmail    string
	Amount        float64
	TransactionID string
}

type TrackingRecord struct {
	ParcelID  uuid.UUID
	Updates   []*TrackingUpdate
	CreatedAt time.Time
}

type TrackingUpdate struct {
	ID        uint64
	ParcelID  uuid.UUID
	Status    string
	Location  string
	EventTime time.Time
}
