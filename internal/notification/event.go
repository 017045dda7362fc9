package notification

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventReservationCreated   = "reservation_created"
	EventReservationCancelled = "reservation_cancelled"
)

// Event is the message published to the notification channel after a
// reservation change commits.
type Event struct {
	EventID          uuid.UUID       `json:"event_id"`
	Type             string          `json:"type"`
	ReservationID    int64           `json:"reservation_id"`
	ConfirmationCode string          `json:"confirmation_code"`
	GuestID          int64           `json:"guest_id"`
	ItemType         string          `json:"item_type,omitempty"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	OccurredAt       time.Time       `json:"occurred_at"`
}
