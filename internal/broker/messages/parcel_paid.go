package messages

import (
	"time"

	"github.com/google/uuid"
)

// ParcelPaid публикуется воркером сверки, когда найден платёж, не отражённый
// на посылке. Применение сообщения идемпотентно.
type ParcelPaid struct {
	PaymentID     uuid.UUID `json:"payment_id"`
	ParcelID      uuid.UUID `json:"parcel_id"`
	TransactionID string    `json:"transaction_id"`
	CheckedAt     time.Time `json:"checked_at"`
}
