package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
)

// CatalogRepository reads the reference data the engine books against.
type CatalogRepository interface {
	GetHotel(ctx context.Context, id int64) (*domain.Hotel, error)
	GetRoomType(ctx context.Context, id int64) (*domain.RoomType, error)
	// ListActiveRooms returns the active rooms of a room type ordered by room code.
	ListActiveRooms(ctx context.Context, roomTypeID int64) ([]domain.Room, error)
	GetActivity(ctx context.Context, id int64) (*domain.Activity, error)
	GetSchedule(ctx context.Context, id int64) (*domain.ActivitySchedule, error)
	GetPackage(ctx context.Context, id int64) (*domain.Package, error)
}

type ReservationRepository interface {
	// InTx runs fn inside one transaction. Any error returned by fn rolls back the
	// whole write set.
	InTx(ctx context.Context, fn func(tx ReservationTx) error) error
	// RoomOccupancy returns the stay windows owning an active block on roomID for
	// any stay date in [from, to].
	RoomOccupancy(ctx context.Context, roomID int64, from, to time.Time) ([]domain.StayWindow, error)
	// ScheduleParticipants sums participants of non-cancelled bookings on a schedule.
	ScheduleParticipants(ctx context.Context, scheduleID int64) (int, error)
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
}

// LineItemRef identifies a line item and the kind of detail it owns.
type LineItemRef struct {
	ID   int64
	Type domain.ItemType
}

type ReservationTx interface {
	// LatestConfirmationCode returns the greatest code starting with prefix, or "".
	LatestConfirmationCode(ctx context.Context, prefix string) (string, error)
	// IssueConfirmationSequence advances the issued-sequence ledger of dayPrefix to
	// max(last issued + 1, floor) and returns the new value.
	IssueConfirmationSequence(ctx context.Context, dayPrefix string, floor int) (int, error)
	InsertReservation(ctx context.Context, r *domain.Reservation) error
	InsertLineItem(ctx context.Context, item *domain.LineItem) error
	InsertAccommodationStay(ctx context.Context, stay *domain.AccommodationStay) error
	InsertActivityBooking(ctx context.Context, booking *domain.ActivityBooking) error
	InsertPackageBooking(ctx context.Context, booking *domain.PackageBooking) error

	// LockRoomDate blocks (roomID, date) for lineItemID. An inactive row is
	// reassigned; an active one fails with ErrInventoryConflict.
	LockRoomDate(ctx context.Context, roomID int64, date time.Time, lineItemID int64) error
	ReleaseLineItem(ctx context.Context, lineItemID int64) (int64, error)

	// LockSchedule takes a row lock on the schedule and returns its live participant count.
	LockSchedule(ctx context.Context, scheduleID int64) (int, error)

	GetReservationForUpdate(ctx context.Context, id int64) (*domain.Reservation, error)
	ListLineItems(ctx context.Context, reservationID int64) ([]LineItemRef, error)
	DeleteAccommodationStay(ctx context.Context, lineItemID int64) error
	DeleteActivityBooking(ctx context.Context, lineItemID int64) error
	DeletePackageBooking(ctx context.Context, lineItemID int64) error
	DeleteLineItems(ctx context.Context, reservationID int64) error
	DeletePayments(ctx context.Context, reservationID int64) error
	DeleteReservation(ctx context.Context, id int64) error
}
