package domain

import (
	"errors"
	"time"
)

var ErrInvalidStayWindow = errors.New("check-out must be after check-in")

// DateOf truncates t to its calendar date, keeping the wall-clock date of t's own
// location and expressing it as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StayWindow is a half-open range of calendar dates [CheckIn, CheckOut).
type StayWindow struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func NewStayWindow(checkIn, checkOut time.Time) (StayWindow, error) {
	w := StayWindow{CheckIn: DateOf(checkIn), CheckOut: DateOf(checkOut)}
	if !w.CheckOut.After(w.CheckIn) {
		return StayWindow{}, ErrInvalidStayWindow
	}
	return w, nil
}

// Nights is the number of whole days between check-in and check-out.
func (w StayWindow) Nights() int {
	return int(w.CheckOut.Sub(w.CheckIn).Hours() / 24)
}

// Dates lists every stay date in [CheckIn, CheckOut).
func (w StayWindow) Dates() []time.Time {
	dates := make([]time.Time, 0, w.Nights())
	for d := w.CheckIn; d.Before(w.CheckOut); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Buffered widens the window by one day on each side.
func (w StayWindow) Buffered() (from, to time.Time) {
	return w.CheckIn.AddDate(0, 0, -1), w.CheckOut.AddDate(0, 0, 1)
}

type Overlap int

const (
	OverlapNone Overlap = iota
	OverlapTurnover
	OverlapConflict
)

func (o Overlap) String() string {
	switch o {
	case OverlapNone:
		return "none"
	case OverlapTurnover:
		return "turnover"
	default:
		return "conflict"
	}
}

// Classify compares a candidate stay against an existing one on the same room.
// A checkout and a check-in on the same calendar day is a turnover, not a conflict.
func Classify(existing, candidate StayWindow) Overlap {
	switch {
	case candidate.CheckOut.Equal(existing.CheckIn):
		return OverlapTurnover
	case existing.CheckOut.Equal(candidate.CheckIn):
		return OverlapTurnover
	case !candidate.CheckOut.After(existing.CheckIn) || !candidate.CheckIn.Before(existing.CheckOut):
		return OverlapNone
	default:
		return OverlapConflict
	}
}
