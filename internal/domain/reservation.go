package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusCompleted ReservationStatus = "COMPLETED"
)

// CanTransitionTo reports whether the status machine allows moving from s to next.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	switch s {
	case ReservationStatusPending:
		return next == ReservationStatusConfirmed ||
			next == ReservationStatusCancelled ||
			next == ReservationStatusCompleted
	case ReservationStatusConfirmed:
		return next == ReservationStatusCompleted
	default:
		return false
	}
}

// Cancellable reports whether a reservation in this status may be removed by the
// lifecycle manager. Confirmed and completed reservations go through a separate workflow.
func (s ReservationStatus) Cancellable() bool {
	return s == ReservationStatusPending || s == ReservationStatusCancelled
}

type Reservation struct {
	ID               int64
	ConfirmationCode string
	GuestID          int64
	Status           ReservationStatus
	CheckIn          *time.Time
	CheckOut         *time.Time
	TotalAmount      decimal.Decimal
	Currency         string
	Source           string
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Items []LineItem
}

// ItemsTotal sums the amounts of the reservation's line items.
func (r *Reservation) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Amount)
	}
	return total
}
