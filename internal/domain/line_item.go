package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemType string

const (
	ItemTypeAccommodation ItemType = "ACCOMMODATION"
	ItemTypeActivity      ItemType = "ACTIVITY"
	ItemTypePackage       ItemType = "PACKAGE"
)

// LineItemDetail is the type-specific record attached to a line item. It is
// implemented only by *AccommodationStay, *ActivityBooking and *PackageBooking.
type LineItemDetail interface {
	ItemType() ItemType
	lineItemDetail()
}

type LineItem struct {
	ID            int64
	ReservationID int64
	Title         string
	Quantity      int
	UnitPrice     decimal.Decimal
	Amount        decimal.Decimal
	Metadata      map[string]any
	Detail        LineItemDetail
}

// Type returns the item type of the attached detail.
func (li LineItem) Type() ItemType {
	if li.Detail == nil {
		return ""
	}
	return li.Detail.ItemType()
}

type AccommodationStay struct {
	ID         int64
	LineItemID int64
	HotelID    int64
	RoomTypeID int64
	RoomID     int64
	Adults     int
	Children   int
	CheckIn    time.Time
	CheckOut   time.Time
	Nights     int
	GuestName  string
}

func (*AccommodationStay) ItemType() ItemType { return ItemTypeAccommodation }
func (*AccommodationStay) lineItemDetail()    {}

// Window returns the stay period as a StayWindow.
func (s *AccommodationStay) Window() StayWindow {
	return StayWindow{CheckIn: s.CheckIn, CheckOut: s.CheckOut}
}

type ActivityBooking struct {
	ID               int64
	LineItemID       int64
	ActivityID       int64
	ScheduleID       int64
	ActivityDate     time.Time
	StartTime        string
	Participants     int
	ParticipantNames []string
	EmergencyContact string
}

func (*ActivityBooking) ItemType() ItemType { return ItemTypeActivity }
func (*ActivityBooking) lineItemDetail()    {}

type PackageBooking struct {
	ID               int64
	LineItemID       int64
	PackageID        int64
	StartDate        time.Time
	EndDate          time.Time
	Pax              int
	ParticipantNames []string
}

func (*PackageBooking) ItemType() ItemType { return ItemTypePackage }
func (*PackageBooking) lineItemDetail()    {}

// RoomInventory is one blocked (room, stay date) pair owned by a line item.
type RoomInventory struct {
	ID         int64
	RoomID     int64
	StayDate   time.Time
	LineItemID int64
	Blocked    bool
}
