package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/notification"
	"github.com/Domenick1991/tourbooking/internal/observability"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/Domenick1991/tourbooking/internal/repository/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var bookingDay = time.Date(2024, 9, 20, 10, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	store    *memory.Store
	hotel    domain.Hotel
	roomType domain.RoomType
	rooms    []domain.Room
	activity domain.Activity
	schedule domain.ActivitySchedule
	pkg      domain.Package
	notifier *recordingNotifier
	metrics  *observability.Metrics
}

func newFixture(roomCount int) *fixture {
	s := memory.NewStore()
	f := &fixture{store: s, notifier: &recordingNotifier{}, metrics: observability.NewMetrics(prometheus.NewRegistry())}

	f.hotel = s.AddHotel(domain.Hotel{Name: "Lakeside", Active: true})
	f.roomType = s.AddRoomType(domain.RoomType{
		HotelID: f.hotel.ID, Name: "Double", MaxAdults: 2, MaxChildren: 1,
		BaseRate: decimal.NewFromInt(100), Currency: "USD", Active: true,
	})
	codes := []string{"101", "102", "103", "104"}
	for i := 0; i < roomCount; i++ {
		f.rooms = append(f.rooms, s.AddRoom(domain.Room{HotelID: f.hotel.ID, RoomTypeID: f.roomType.ID, Code: codes[i], Active: true}))
	}

	f.activity = s.AddActivity(domain.Activity{
		Name: "Canyon hike", MinParticipants: 1, MaxParticipants: 10,
		BasePrice: decimal.NewFromInt(25), Currency: "USD", Active: true,
	})
	f.schedule = s.AddSchedule(domain.ActivitySchedule{
		ActivityID: f.activity.ID, Date: day("2024-09-25"), StartTime: "09:00", AvailableSpots: 10, Active: true,
	})
	f.pkg = s.AddPackage(domain.Package{
		Name: "Lake weekend", DurationDays: 3, BasePrice: decimal.NewFromInt(500), Currency: "USD", MaxPax: 4, Active: true,
	})
	return f
}

func (f *fixture) service(opts ...ReservationServiceOption) *ReservationService {
	return f.serviceWith(f.store, opts...)
}

func (f *fixture) serviceWith(repo repository.ReservationRepository, opts ...ReservationServiceOption) *ReservationService {
	base := []ReservationServiceOption{
		WithClock(func() time.Time { return bookingDay }),
		WithNotifier(f.notifier),
		WithMetrics(f.metrics),
	}
	return NewReservationService(f.store, repo, append(base, opts...)...)
}

func (f *fixture) stayRequest(in, out string) AccommodationRequest {
	return AccommodationRequest{
		GuestID:    1,
		HotelID:    f.hotel.ID,
		RoomTypeID: f.roomType.ID,
		CheckIn:    day(in),
		CheckOut:   day(out),
		Adults:     2,
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, ev notification.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) Events() []notification.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.Event(nil), n.events...)
}

type panickingNotifier struct{}

func (panickingNotifier) Notify(context.Context, notification.Event) {
	panic("notification backend exploded")
}

// hookedRepo runs every transaction of the memory store through wrap.
type hookedRepo struct {
	*memory.Store
	wrap func(tx repository.ReservationTx) repository.ReservationTx
}

func (r *hookedRepo) InTx(ctx context.Context, fn func(tx repository.ReservationTx) error) error {
	return r.Store.InTx(ctx, func(tx repository.ReservationTx) error {
		return fn(r.wrap(tx))
	})
}

// staleRepo answers availability reads as if nothing was booked.
type staleRepo struct {
	*memory.Store
}

func (r *staleRepo) RoomOccupancy(context.Context, int64, time.Time, time.Time) ([]domain.StayWindow, error) {
	return nil, nil
}

func (r *staleRepo) ScheduleParticipants(context.Context, int64) (int, error) {
	return 0, nil
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetHotel(ctx context.Context, id int64) (*domain.Hotel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Hotel), args.Error(1)
}

func (m *MockCatalog) GetRoomType(ctx context.Context, id int64) (*domain.RoomType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RoomType), args.Error(1)
}

func (m *MockCatalog) ListActiveRooms(ctx context.Context, roomTypeID int64) ([]domain.Room, error) {
	args := m.Called(ctx, roomTypeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Room), args.Error(1)
}

func (m *MockCatalog) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Activity), args.Error(1)
}

func (m *MockCatalog) GetSchedule(ctx context.Context, id int64) (*domain.ActivitySchedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActivitySchedule), args.Error(1)
}

func (m *MockCatalog) GetPackage(ctx context.Context, id int64) (*domain.Package, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Package), args.Error(1)
}
