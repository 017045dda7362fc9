// Package availability decides whether a concrete room is free for a stay window,
// allowing same-day turnover at either boundary.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
)

// OccupancyReader returns the stay windows holding an active block on a room for
// any stay date in [from, to].
type OccupancyReader interface {
	RoomOccupancy(ctx context.Context, roomID int64, from, to time.Time) ([]domain.StayWindow, error)
}

type Resolver struct {
	occupancy OccupancyReader
}

func NewResolver(occupancy OccupancyReader) *Resolver {
	return &Resolver{occupancy: occupancy}
}

func (r *Resolver) IsAvailable(ctx context.Context, roomID int64, window domain.StayWindow) (bool, error) {
	from, to := window.Buffered()
	existing, err := r.occupancy.RoomOccupancy(ctx, roomID, from, to)
	if err != nil {
		return false, fmt.Errorf("room %d occupancy: %w", roomID, err)
	}
	for _, e := range existing {
		if domain.Classify(e, window) == domain.OverlapConflict {
			return false, nil
		}
	}
	return true, nil
}

// FirstAvailable walks rooms in the given order and returns the first free one that
// is not in skip. It returns nil when every candidate is taken.
func (r *Resolver) FirstAvailable(ctx context.Context, rooms []domain.Room, window domain.StayWindow, skip map[int64]bool) (*domain.Room, error) {
	for i := range rooms {
		if skip[rooms[i].ID] {
			continue
		}
		ok, err := r.IsAvailable(ctx, rooms[i].ID, window)
		if err != nil {
			return nil, err
		}
		if ok {
			return &rooms[i], nil
		}
	}
	return nil, nil
}

func (r *Resolver) CountAvailable(ctx context.Context, rooms []domain.Room, window domain.StayWindow) (int, error) {
	free := 0
	for _, room := range rooms {
		ok, err := r.IsAvailable(ctx, room.ID, window)
		if err != nil {
			return 0, err
		}
		if ok {
			free++
		}
	}
	return free, nil
}
