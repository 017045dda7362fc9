package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PGCatalogRepository struct {
	db *pgxpool.Pool
}

func NewCatalogRepository(db *pgxpool.Pool) CatalogRepository {
	return &PGCatalogRepository{db: db}
}

func (r *PGCatalogRepository) GetHotel(ctx context.Context, id int64) (*domain.Hotel, error) {
	var h domain.Hotel
	err := r.db.QueryRow(ctx, `SELECT id, name, is_active FROM hotels WHERE id=$1`, id).
		Scan(&h.ID, &h.Name, &h.Active)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &h, nil
}

func (r *PGCatalogRepository) GetRoomType(ctx context.Context, id int64) (*domain.RoomType, error) {
	var (
		rt   domain.RoomType
		rate string
	)
	err := r.db.QueryRow(ctx, `SELECT id, hotel_id, name, max_adults, max_children, base_rate::text, currency, is_active
		FROM room_types WHERE id=$1`, id).
		Scan(&rt.ID, &rt.HotelID, &rt.Name, &rt.MaxAdults, &rt.MaxChildren, &rate, &rt.Currency, &rt.Active)
	if err != nil {
		return nil, mapPgError(err)
	}
	if rt.BaseRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("room type %d base rate: %w", id, err)
	}
	return &rt, nil
}

func (r *PGCatalogRepository) ListActiveRooms(ctx context.Context, roomTypeID int64) ([]domain.Room, error) {
	rows, err := r.db.Query(ctx, `SELECT id, hotel_id, room_type_id, room_code, is_active
		FROM rooms WHERE room_type_id=$1 AND is_active ORDER BY room_code ASC`, roomTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]domain.Room, 0)
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(&room.ID, &room.HotelID, &room.RoomTypeID, &room.Code, &room.Active); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *PGCatalogRepository) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	var (
		a     domain.Activity
		price string
	)
	err := r.db.QueryRow(ctx, `SELECT id, name, min_participants, max_participants, base_price::text, currency, is_active
		FROM activities WHERE id=$1`, id).
		Scan(&a.ID, &a.Name, &a.MinParticipants, &a.MaxParticipants, &price, &a.Currency, &a.Active)
	if err != nil {
		return nil, mapPgError(err)
	}
	if a.BasePrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("activity %d base price: %w", id, err)
	}
	return &a, nil
}

func (r *PGCatalogRepository) GetSchedule(ctx context.Context, id int64) (*domain.ActivitySchedule, error) {
	var (
		s        domain.ActivitySchedule
		override *string
	)
	err := r.db.QueryRow(ctx, `SELECT id, activity_id, activity_date, start_time, available_spots, price_override::text, is_active
		FROM activity_schedules WHERE id=$1`, id).
		Scan(&s.ID, &s.ActivityID, &s.Date, &s.StartTime, &s.AvailableSpots, &override, &s.Active)
	if err != nil {
		return nil, mapPgError(err)
	}
	if override != nil {
		price, err := decimal.NewFromString(*override)
		if err != nil {
			return nil, fmt.Errorf("schedule %d price override: %w", id, err)
		}
		s.PriceOverride = &price
	}
	return &s, nil
}

func (r *PGCatalogRepository) GetPackage(ctx context.Context, id int64) (*domain.Package, error) {
	var (
		p     domain.Package
		price string
	)
	err := r.db.QueryRow(ctx, `SELECT id, name, duration_days, base_price::text, currency, max_pax, is_active
		FROM packages WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.DurationDays, &price, &p.Currency, &p.MaxPax, &p.Active)
	if err != nil {
		return nil, mapPgError(err)
	}
	if p.BasePrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("package %d base price: %w", id, err)
	}
	return &p, nil
}

var _ CatalogRepository = (*PGCatalogRepository)(nil)
