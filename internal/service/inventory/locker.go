// Package inventory blocks and releases the per-room, per-date ledger rows that
// back accommodation stays.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
)

// Ledger is the slice of a reservation transaction the locker writes through.
type Ledger interface {
	LockRoomDate(ctx context.Context, roomID int64, date time.Time, lineItemID int64) error
	ReleaseLineItem(ctx context.Context, lineItemID int64) (int64, error)
}

type Locker struct{}

func NewLocker() *Locker {
	return &Locker{}
}

// Lock blocks every stay date in [CheckIn, CheckOut) for lineItemID. It stops at the
// first failing date; the caller's transaction discards the partial set. A date
// already held by another line item surfaces the ledger's conflict error unchanged.
func (l *Locker) Lock(ctx context.Context, ledger Ledger, roomID int64, window domain.StayWindow, lineItemID int64) error {
	for _, date := range window.Dates() {
		if err := ledger.LockRoomDate(ctx, roomID, date, lineItemID); err != nil {
			return fmt.Errorf("lock room %d on %s: %w", roomID, date.Format(time.DateOnly), err)
		}
	}
	return nil
}

// Release deletes every ledger row owned by lineItemID and reports how many went.
func (l *Locker) Release(ctx context.Context, ledger Ledger, lineItemID int64) (int64, error) {
	n, err := ledger.ReleaseLineItem(ctx, lineItemID)
	if err != nil {
		return 0, fmt.Errorf("release line item %d: %w", lineItemID, err)
	}
	return n, nil
}
