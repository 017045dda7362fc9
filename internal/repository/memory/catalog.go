package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Seed is the catalog a memory store starts with.
type Seed struct {
	Hotels     []domain.Hotel            `yaml:"hotels"`
	RoomTypes  []domain.RoomType         `yaml:"room_types"`
	Rooms      []domain.Room             `yaml:"rooms"`
	Activities []domain.Activity         `yaml:"activities"`
	Schedules  []domain.ActivitySchedule `yaml:"schedules"`
	Packages   []domain.Package          `yaml:"packages"`
}

func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// Load adds every catalog entry of seed to the store.
func (s *Store) Load(seed *Seed) {
	for _, h := range seed.Hotels {
		s.AddHotel(h)
	}
	for _, rt := range seed.RoomTypes {
		s.AddRoomType(rt)
	}
	for _, r := range seed.Rooms {
		s.AddRoom(r)
	}
	for _, a := range seed.Activities {
		s.AddActivity(a)
	}
	for _, sc := range seed.Schedules {
		s.AddSchedule(sc)
	}
	for _, p := range seed.Packages {
		s.AddPackage(p)
	}
}

func (s *Store) assignID(table string, id int64) int64 {
	if id == 0 {
		return s.data.nextID(table)
	}
	if id > s.data.ids[table] {
		s.data.ids[table] = id
	}
	return id
}

func (s *Store) AddHotel(h domain.Hotel) domain.Hotel {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = s.assignID("hotels", h.ID)
	s.data.hotels[h.ID] = h
	return h
}

func (s *Store) AddRoomType(rt domain.RoomType) domain.RoomType {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt.ID = s.assignID("room_types", rt.ID)
	s.data.roomTypes[rt.ID] = rt
	return rt
}

func (s *Store) AddRoom(r domain.Room) domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.assignID("rooms", r.ID)
	s.data.rooms[r.ID] = r
	return r
}

func (s *Store) AddActivity(a domain.Activity) domain.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.assignID("activities", a.ID)
	s.data.activities[a.ID] = a
	return a
}

func (s *Store) AddSchedule(sc domain.ActivitySchedule) domain.ActivitySchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.ID = s.assignID("activity_schedules", sc.ID)
	sc.Date = domain.DateOf(sc.Date)
	s.data.schedules[sc.ID] = sc
	return sc
}

func (s *Store) AddPackage(p domain.Package) domain.Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.assignID("packages", p.ID)
	s.data.packages[p.ID] = p
	return p
}

// AddPayment records a payment row against a reservation.
func (s *Store) AddPayment(reservationID int64, amount decimal.Decimal, status string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.data.nextID("payments")
	s.data.payments[id] = payment{ID: id, ReservationID: reservationID, Amount: amount, Status: status}
	return id
}

// SetStatus moves a reservation to status. Payment and check-out flows use it.
func (s *Store) SetStatus(reservationID int64, status domain.ReservationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.data.reservations[reservationID]
	if !ok {
		return repository.ErrNotFound
	}
	res.Status = status
	res.UpdatedAt = s.now()
	s.data.reservations[reservationID] = res
	return nil
}

// Stats counts the rows of every mutable table.
type Stats struct {
	Reservations     int
	LineItems        int
	Stays            int
	ActivityBookings int
	PackageBookings  int
	Inventory        int
	Payments         int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Reservations:     len(s.data.reservations),
		LineItems:        len(s.data.lineItems),
		Stays:            len(s.data.stays),
		ActivityBookings: len(s.data.activityBookings),
		PackageBookings:  len(s.data.packageBookings),
		Inventory:        len(s.data.inventory),
		Payments:         len(s.data.payments),
	}
}

// BlockedDates lists the actively blocked stay dates of a room in ascending order.
func (s *Store) BlockedDates(roomID int64) []time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dates := make([]time.Time, 0)
	for key, row := range s.data.inventory {
		if key.roomID == roomID && row.Blocked {
			dates = append(dates, key.date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func (s *Store) GetHotel(ctx context.Context, id int64) (*domain.Hotel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.data.hotels[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &h, nil
}

func (s *Store) GetRoomType(ctx context.Context, id int64) (*domain.RoomType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.data.roomTypes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rt, nil
}

func (s *Store) ListActiveRooms(ctx context.Context, roomTypeID int64) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]domain.Room, 0)
	for _, r := range s.data.rooms {
		if r.RoomTypeID == roomTypeID && r.Active {
			rooms = append(rooms, r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Code < rooms[j].Code })
	return rooms, nil
}

func (s *Store) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.activities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s *Store) GetSchedule(ctx context.Context, id int64) (*domain.ActivitySchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.data.schedules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sc, nil
}

func (s *Store) GetPackage(ctx context.Context, id int64) (*domain.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.packages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

var _ repository.CatalogRepository = (*Store)(nil)
