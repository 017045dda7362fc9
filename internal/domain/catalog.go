package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Hotel struct {
	ID     int64  `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Active bool   `json:"active" yaml:"active"`
}

type RoomType struct {
	ID          int64           `json:"id" yaml:"id"`
	HotelID     int64           `json:"hotel_id" yaml:"hotel_id"`
	Name        string          `json:"name" yaml:"name"`
	MaxAdults   int             `json:"max_adults" yaml:"max_adults"`
	MaxChildren int             `json:"max_children" yaml:"max_children"`
	BaseRate    decimal.Decimal `json:"base_rate" yaml:"base_rate"`
	Currency    string          `json:"currency" yaml:"currency"`
	Active      bool            `json:"active" yaml:"active"`
}

type Room struct {
	ID         int64  `json:"id" yaml:"id"`
	HotelID    int64  `json:"hotel_id" yaml:"hotel_id"`
	RoomTypeID int64  `json:"room_type_id" yaml:"room_type_id"`
	Code       string `json:"code" yaml:"code"`
	Active     bool   `json:"active" yaml:"active"`
}

type Activity struct {
	ID              int64           `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	MinParticipants int             `json:"min_participants" yaml:"min_participants"`
	MaxParticipants int             `json:"max_participants" yaml:"max_participants"`
	BasePrice       decimal.Decimal `json:"base_price" yaml:"base_price"`
	Currency        string          `json:"currency" yaml:"currency"`
	Active          bool            `json:"active" yaml:"active"`
}

type ActivitySchedule struct {
	ID             int64            `json:"id" yaml:"id"`
	ActivityID     int64            `json:"activity_id" yaml:"activity_id"`
	Date           time.Time        `json:"date" yaml:"date"`
	StartTime      string           `json:"start_time" yaml:"start_time"`
	AvailableSpots int              `json:"available_spots" yaml:"available_spots"`
	PriceOverride  *decimal.Decimal `json:"price_override,omitempty" yaml:"price_override"`
	Active         bool             `json:"active" yaml:"active"`
}

// UnitPrice returns the schedule override when present, otherwise the activity base price.
func (s *ActivitySchedule) UnitPrice(activity *Activity) decimal.Decimal {
	if s.PriceOverride != nil {
		return *s.PriceOverride
	}
	return activity.BasePrice
}

type Package struct {
	ID           int64           `json:"id" yaml:"id"`
	Name         string          `json:"name" yaml:"name"`
	DurationDays int             `json:"duration_days" yaml:"duration_days"`
	BasePrice    decimal.Decimal `json:"base_price" yaml:"base_price"`
	Currency     string          `json:"currency" yaml:"currency"`
	MaxPax       int             `json:"max_pax" yaml:"max_pax"`
	Active       bool            `json:"active" yaml:"active"`
}
