package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/tourbooking/internal/apperror"
	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/notification"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/Domenick1991/tourbooking/internal/repository/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateAccommodation_ThreeNights(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	res, err := f.service().CreateAccommodationReservation(ctx, f.stayRequest("2024-09-20", "2024-09-23"))
	require.NoError(t, err)

	assert.NotZero(t, res.ID)
	assert.Equal(t, "RSV202409200001", res.ConfirmationCode)
	assert.Equal(t, domain.ReservationStatusPending, res.Status)
	assert.True(t, decimal.NewFromInt(300).Equal(res.TotalAmount))
	assert.True(t, res.TotalAmount.Equal(res.ItemsTotal()))
	require.Len(t, res.Items, 1)
	assert.Equal(t, 3, res.Items[0].Quantity)
	assert.Equal(t, domain.ItemTypeAccommodation, res.Items[0].Type())

	assert.Equal(t,
		[]time.Time{day("2024-09-20"), day("2024-09-21"), day("2024-09-22")},
		f.store.BlockedDates(f.rooms[0].ID))

	stored, err := f.store.GetByID(ctx, res.ID)
	require.NoError(t, err)
	stay := stored.Items[0].Detail.(*domain.AccommodationStay)
	assert.Equal(t, 3, stay.Nights)
	assert.Equal(t, f.rooms[0].ID, stay.RoomID)

	events := f.notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notification.EventReservationCreated, events[0].Type)
	assert.Equal(t, res.ConfirmationCode, events[0].ConfirmationCode)
	assert.Equal(t, "ACCOMMODATION", events[0].ItemType)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReservationsCreated.WithLabelValues("ACCOMMODATION")))
}

func TestCreateAccommodation_CapacityCheckedBeforeRoomLookup(t *testing.T) {
	ctx := context.Background()
	catalog := &MockCatalog{}
	catalog.On("GetHotel", mock.Anything, int64(1)).Return(&domain.Hotel{ID: 1, Active: true}, nil)
	catalog.On("GetRoomType", mock.Anything, int64(10)).Return(&domain.RoomType{ID: 10, HotelID: 1, MaxAdults: 2, MaxChildren: 1, Active: true}, nil)

	svc := NewReservationService(catalog, memory.NewStore())
	_, err := svc.CreateAccommodationReservation(ctx, AccommodationRequest{
		GuestID: 1, HotelID: 1, RoomTypeID: 10,
		CheckIn: day("2024-09-20"), CheckOut: day("2024-09-23"),
		Adults: 3, Children: 0,
	})

	assert.ErrorIs(t, err, apperror.ErrCapacityExceeded)
	catalog.AssertNotCalled(t, "ListActiveRooms", mock.Anything, mock.Anything)
}

func TestCreateAccommodation_ValidationErrors(t *testing.T) {
	f := newFixture(1)
	svc := f.service()

	testCases := []struct {
		name        string
		mutate      func(r *AccommodationRequest)
		expectedErr string
	}{
		{name: "missing guest", mutate: func(r *AccommodationRequest) { r.GuestID = 0 }, expectedErr: "guest_id is required"},
		{name: "missing hotel", mutate: func(r *AccommodationRequest) { r.HotelID = 0 }, expectedErr: "hotel_id is required"},
		{name: "no adults", mutate: func(r *AccommodationRequest) { r.Adults = 0 }, expectedErr: "at least one adult"},
		{name: "negative children", mutate: func(r *AccommodationRequest) { r.Children = -1 }, expectedErr: "children must not be negative"},
		{name: "missing dates", mutate: func(r *AccommodationRequest) { r.CheckOut = time.Time{} }, expectedErr: "check_in and check_out are required"},
		{name: "check-out before check-in", mutate: func(r *AccommodationRequest) { r.CheckOut = day("2024-09-19") }, expectedErr: "check-out must be after check-in"},
		{name: "zero nights", mutate: func(r *AccommodationRequest) { r.CheckOut = r.CheckIn }, expectedErr: "check-out must be after check-in"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.stayRequest("2024-09-20", "2024-09-23")
			tc.mutate(&req)

			res, err := svc.CreateAccommodationReservation(context.Background(), req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}
	assert.Equal(t, memory.Stats{}, f.store.Stats())
}

func TestCreateAccommodation_CatalogMismatch(t *testing.T) {
	f := newFixture(1)
	other := f.store.AddHotel(domain.Hotel{Name: "Hilltop", Active: true})
	svc := f.service()
	ctx := context.Background()

	req := f.stayRequest("2024-09-20", "2024-09-23")
	req.HotelID = other.ID
	_, err := svc.CreateAccommodationReservation(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Contains(t, err.Error(), "room type")

	req = f.stayRequest("2024-09-20", "2024-09-23")
	req.HotelID = 999
	_, err = svc.CreateAccommodationReservation(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Contains(t, err.Error(), "hotel 999 not found")
}

func TestCreateAccommodation_Turnover(t *testing.T) {
	f := newFixture(1)
	svc := f.service()
	ctx := context.Background()

	_, err := svc.CreateAccommodationReservation(ctx, f.stayRequest("2024-09-20", "2024-09-23"))
	require.NoError(t, err)

	before, err := svc.CreateAccommodationReservation(ctx, f.stayRequest("2024-09-18", "2024-09-20"))
	require.NoError(t, err, "stay ending the morning the existing one begins")
	assert.Equal(t, "RSV202409200002", before.ConfirmationCode)

	after, err := svc.CreateAccommodationReservation(ctx, f.stayRequest("2024-09-23", "2024-09-24"))
	require.NoError(t, err, "stay beginning the morning the existing one ends")
	assert.NotEmpty(t, after.ConfirmationCode)

	_, err = svc.CreateAccommodationReservation(ctx, f.stayRequest("2024-09-19", "2024-09-21"))
	assert.ErrorIs(t, err, apperror.ErrNoAvailability)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReservationsRejected.WithLabelValues("ACCOMMODATION", "NO_AVAILABILITY")))

	assert.Len(t, f.store.BlockedDates(f.rooms[0].ID), 6)
}

func TestCreateAccommodation_PicksRoomsInCodeOrder(t *testing.T) {
	f := newFixture(2)
	svc := f.service()
	ctx := context.Background()

	first, err := svc.CreateAccommodationReservation(ctx, f.stayRequest("2024-09-20", "2024-09-22"))
	require.NoError(t, err)
	second, err := svc.CreateAccommodationReservation(ctx, f.stayRequest("2024-09-21", "2024-09-23"))
	require.NoError(t, err)
	_, err = svc.CreateAccommodationReservation(ctx, f.stayRequest("2024-09-21", "2024-09-22"))
	assert.ErrorIs(t, err, apperror.ErrNoAvailability)

	assert.Equal(t, "101", first.Items[0].Metadata["room_code"])
	assert.Equal(t, "102", second.Items[0].Metadata["room_code"])
}

func TestCreateAccommodation_WriteConflictMovesToNextRoom(t *testing.T) {
	f := newFixture(2)
	ctx := context.Background()

	_, err := f.service().CreateAccommodationReservation(ctx, f.stayRequest("2024-09-20", "2024-09-23"))
	require.NoError(t, err)

	// availability reads miss the existing stay, so only the ledger can catch it
	res, err := f.serviceWith(&staleRepo{Store: f.store}).CreateAccommodationReservation(ctx, f.stayRequest("2024-09-21", "2024-09-22"))
	require.NoError(t, err)
	assert.Equal(t, "102", res.Items[0].Metadata["room_code"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.InventoryConflicts))

	_, err = f.serviceWith(&staleRepo{Store: f.store}).CreateAccommodationReservation(ctx, f.stayRequest("2024-09-21", "2024-09-22"))
	assert.ErrorIs(t, err, apperror.ErrNoAvailability)
	assert.Equal(t, 2, f.store.Stats().Reservations)
}

func TestCreateAccommodation_ConcurrentRequestsForLastRoom(t *testing.T) {
	const n = 16
	f := newFixture(1)
	svc := f.service()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := f.stayRequest("2024-09-20", "2024-09-23")
			req.GuestID = int64(i + 1)
			_, err := svc.CreateAccommodationReservation(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperror.ErrNoAvailability):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, rejected)
	assert.Equal(t, 1, f.store.Stats().Reservations)
	assert.Len(t, f.store.BlockedDates(f.rooms[0].ID), 3)
}

type failingStayTx struct {
	repository.ReservationTx
}

func (failingStayTx) InsertAccommodationStay(context.Context, *domain.AccommodationStay) error {
	return errors.New("disk full")
}

func TestCreateAccommodation_DetailFailureLeavesNothing(t *testing.T) {
	f := newFixture(1)
	repo := &hookedRepo{Store: f.store, wrap: func(tx repository.ReservationTx) repository.ReservationTx {
		return failingStayTx{ReservationTx: tx}
	}}

	res, err := f.serviceWith(repo).CreateAccommodationReservation(context.Background(), f.stayRequest("2024-09-20", "2024-09-23"))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperror.ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, memory.Stats{}, f.store.Stats())
	assert.Empty(t, f.store.BlockedDates(f.rooms[0].ID))
	assert.Empty(t, f.notifier.Events())
}

// collidingTx reports a taken confirmation code for the first `remaining` inserts.
type collidingTx struct {
	repository.ReservationTx
	remaining *int
}

func (tx collidingTx) InsertReservation(ctx context.Context, r *domain.Reservation) error {
	if *tx.remaining > 0 {
		*tx.remaining--
		return repository.ErrDuplicateConfirmationCode
	}
	return tx.ReservationTx.InsertReservation(ctx, r)
}

func TestCreate_RetriesConfirmationCodeCollision(t *testing.T) {
	f := newFixture(1)
	collisions := 2
	repo := &hookedRepo{Store: f.store, wrap: func(tx repository.ReservationTx) repository.ReservationTx {
		return collidingTx{ReservationTx: tx, remaining: &collisions}
	}}

	res, err := f.serviceWith(repo).CreatePackageReservation(context.Background(), PackageRequest{
		GuestID: 1, PackageID: f.pkg.ID, StartDate: day("2024-10-01"), Participants: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "RSV202409200001", res.ConfirmationCode)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ConfirmationRetries))
	assert.Equal(t, 1, f.store.Stats().Reservations)
}

func TestCreate_ConfirmationRetriesExhausted(t *testing.T) {
	f := newFixture(1)
	collisions := 100
	repo := &hookedRepo{Store: f.store, wrap: func(tx repository.ReservationTx) repository.ReservationTx {
		return collidingTx{ReservationTx: tx, remaining: &collisions}
	}}

	_, err := f.serviceWith(repo, WithMaxCodeRetries(3)).CreateAccommodationReservation(context.Background(), f.stayRequest("2024-09-20", "2024-09-23"))
	assert.ErrorIs(t, err, apperror.ErrConcurrencyConflict)
	assert.Equal(t, 97, collisions)
	assert.Equal(t, memory.Stats{}, f.store.Stats())
}

func TestCreate_ConcurrentCodesAreUniqueAndSequential(t *testing.T) {
	const n = 20
	f := newFixture(1)
	f.store.AddPackage(domain.Package{ID: 100, Name: "Open", DurationDays: 1, BasePrice: decimal.NewFromInt(10), Active: true})
	svc := f.service(WithConfirmationPrefix("pkg"))

	codes := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.CreatePackageReservation(context.Background(), PackageRequest{
				GuestID: 1, PackageID: 100, StartDate: day("2024-10-01"), Participants: 1,
			})
			if assert.NoError(t, err) {
				codes <- res.ConfirmationCode
			}
		}()
	}
	wg.Wait()
	close(codes)

	var got []string
	for c := range codes {
		got = append(got, c)
	}
	sort.Strings(got)
	require.Len(t, got, n)
	for i, c := range got {
		assert.Equal(t, fmt.Sprintf("PKG20240920%04d", i+1), c)
	}
}

func TestCreateAccommodation_NotifierFailureDoesNotFailReservation(t *testing.T) {
	f := newFixture(1)
	svc := f.service(WithNotifier(panickingNotifier{}), WithLogger(zerolog.Nop()))

	res, err := svc.CreateAccommodationReservation(context.Background(), f.stayRequest("2024-09-20", "2024-09-23"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.ConfirmationCode)
	assert.Equal(t, 1, f.store.Stats().Reservations)
}

func TestCreateActivity_RemainingSpots(t *testing.T) {
	f := newFixture(1)
	svc := f.service()
	ctx := context.Background()

	req := ActivityRequest{GuestID: 1, ActivityID: f.activity.ID, ScheduleID: f.schedule.ID, Participants: 7}
	_, err := svc.CreateActivityReservation(ctx, req)
	require.NoError(t, err)

	req.Participants = 4
	_, err = svc.CreateActivityReservation(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrCapacityExceeded)
	assert.Contains(t, err.Error(), "3 spots remaining")

	req.Participants = 3
	res, err := svc.CreateActivityReservation(ctx, req)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(75).Equal(res.TotalAmount))
	assert.Nil(t, res.CheckIn)

	booking := res.Items[0].Detail.(*domain.ActivityBooking)
	assert.Equal(t, day("2024-09-25"), booking.ActivityDate)
	assert.Equal(t, "09:00", booking.StartTime)
	assert.Empty(t, f.store.BlockedDates(f.rooms[0].ID))
}

func TestCreateActivity_RecheckedUnderScheduleLock(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	_, err := f.service().CreateActivityReservation(ctx, ActivityRequest{
		GuestID: 1, ActivityID: f.activity.ID, ScheduleID: f.schedule.ID, Participants: 9,
	})
	require.NoError(t, err)

	// the pre-check sees an empty schedule; the locked count must still reject
	_, err = f.serviceWith(&staleRepo{Store: f.store}).CreateActivityReservation(ctx, ActivityRequest{
		GuestID: 2, ActivityID: f.activity.ID, ScheduleID: f.schedule.ID, Participants: 3,
	})
	assert.ErrorIs(t, err, apperror.ErrCapacityExceeded)
	assert.Equal(t, 1, f.store.Stats().Reservations)
}

func TestCreateActivity_PriceOverrideAndLimits(t *testing.T) {
	f := newFixture(1)
	override := decimal.RequireFromString("19.50")
	sc := f.store.AddSchedule(domain.ActivitySchedule{
		ActivityID: f.activity.ID, Date: day("2024-09-26"), StartTime: "14:00",
		AvailableSpots: 30, PriceOverride: &override, Active: true,
	})
	svc := f.service()
	ctx := context.Background()

	res, err := svc.CreateActivityReservation(ctx, ActivityRequest{GuestID: 1, ActivityID: f.activity.ID, ScheduleID: sc.ID, Participants: 2})
	require.NoError(t, err)
	assert.Equal(t, "39.00", res.TotalAmount.StringFixed(2))

	_, err = svc.CreateActivityReservation(ctx, ActivityRequest{GuestID: 1, ActivityID: f.activity.ID, ScheduleID: sc.ID, Participants: 11})
	assert.ErrorIs(t, err, apperror.ErrCapacityExceeded)

	_, err = svc.CreateActivityReservation(ctx, ActivityRequest{GuestID: 1, ActivityID: f.activity.ID, ScheduleID: 999, Participants: 1})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.CreateActivityReservation(ctx, ActivityRequest{
		GuestID: 1, ActivityID: f.activity.ID, ScheduleID: sc.ID, Participants: 1, ParticipantNames: []string{"Ann", "Bob"},
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCreatePackage_FlatPriceAndEndDate(t *testing.T) {
	f := newFixture(1)
	svc := f.service()
	ctx := context.Background()

	res, err := svc.CreatePackageReservation(ctx, PackageRequest{
		GuestID: 1, PackageID: f.pkg.ID, StartDate: day("2024-10-01"), Participants: 4,
		ParticipantNames: []string{"Ann", "Bob"},
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(res.TotalAmount))
	assert.Equal(t, day("2024-10-01"), *res.CheckIn)
	assert.Equal(t, day("2024-10-03"), *res.CheckOut)

	booking := res.Items[0].Detail.(*domain.PackageBooking)
	assert.Equal(t, 4, booking.Pax)
	assert.Equal(t, day("2024-10-03"), booking.EndDate)

	_, err = svc.CreatePackageReservation(ctx, PackageRequest{GuestID: 1, PackageID: f.pkg.ID, StartDate: day("2024-10-01"), Participants: 5})
	assert.ErrorIs(t, err, apperror.ErrCapacityExceeded)

	_, err = svc.CreatePackageReservation(ctx, PackageRequest{GuestID: 1, PackageID: f.pkg.ID, Participants: 1})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestPackageEndDate(t *testing.T) {
	assert.Equal(t, day("2024-10-01"), PackageEndDate(day("2024-10-01"), 1))
	assert.Equal(t, day("2024-11-02"), PackageEndDate(day("2024-10-28"), 6))
}

func TestCheckAccommodationAvailability(t *testing.T) {
	f := newFixture(2)
	svc := f.service()
	ctx := context.Background()

	q := AvailabilityQuery{RoomTypeID: f.roomType.ID, CheckIn: day("2024-09-20"), CheckOut: day("2024-09-23"), Adults: 2}
	result, err := svc.CheckAccommodationAvailability(ctx, q)
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Equal(t, 2, result.RoomsAvailable)

	_, err = svc.CreateAccommodationReservation(ctx, f.stayRequest("2024-09-20", "2024-09-23"))
	require.NoError(t, err)
	_, err = svc.CreateAccommodationReservation(ctx, f.stayRequest("2024-09-22", "2024-09-24"))
	require.NoError(t, err)

	result, err = svc.CheckAccommodationAvailability(ctx, q)
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Contains(t, result.Message, "no Double room is free")

	q.CheckIn, q.CheckOut = day("2024-09-24"), day("2024-09-25")
	result, err = svc.CheckAccommodationAvailability(ctx, q)
	require.NoError(t, err)
	assert.True(t, result.Available, "turnover on the 24th")

	q.Adults = 3
	result, err = svc.CheckAccommodationAvailability(ctx, q)
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Contains(t, result.Message, "at most 2 adults")

	_, err = svc.CheckAccommodationAvailability(ctx, AvailabilityQuery{RoomTypeID: 999, CheckIn: day("2024-09-20"), CheckOut: day("2024-09-21"), Adults: 1})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCreateAccommodation_DatesTakenInHotelZone(t *testing.T) {
	f := newFixture(1)
	loc := time.FixedZone("UTC+10", 10*3600)
	svc := f.service(WithLocation(loc))

	// 20:00 UTC on the 19th is already the 20th at the hotel
	req := f.stayRequest("2024-09-20", "2024-09-23")
	req.CheckIn = time.Date(2024, 9, 19, 20, 0, 0, 0, time.UTC)
	req.CheckOut = time.Date(2024, 9, 23, 0, 0, 0, 0, loc)

	res, err := svc.CreateAccommodationReservation(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, day("2024-09-20"), *res.CheckIn)
	assert.Equal(t, 3, res.Items[0].Quantity)
}
