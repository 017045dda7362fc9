// Package memory is an in-process backend for the reservation engine. It keeps the
// same natural keys and foreign-key rules as the Postgres schema and serialises
// transactions, so it can stand in for the database in tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/shopspring/decimal"
)

type roomDate struct {
	roomID int64
	date   time.Time
}

type payment struct {
	ID            int64
	ReservationID int64
	Amount        decimal.Decimal
	Status        string
}

type state struct {
	ids map[string]int64

	hotels     map[int64]domain.Hotel
	roomTypes  map[int64]domain.RoomType
	rooms      map[int64]domain.Room
	activities map[int64]domain.Activity
	schedules  map[int64]domain.ActivitySchedule
	packages   map[int64]domain.Package

	reservations     map[int64]domain.Reservation
	codes            map[string]int64
	sequences        map[string]int
	lineItems        map[int64]domain.LineItem
	stays            map[int64]domain.AccommodationStay
	activityBookings map[int64]domain.ActivityBooking
	packageBookings  map[int64]domain.PackageBooking
	inventory        map[roomDate]domain.RoomInventory
	payments         map[int64]payment
}

func newState() *state {
	return &state{
		ids:              map[string]int64{},
		hotels:           map[int64]domain.Hotel{},
		roomTypes:        map[int64]domain.RoomType{},
		rooms:            map[int64]domain.Room{},
		activities:       map[int64]domain.Activity{},
		schedules:        map[int64]domain.ActivitySchedule{},
		packages:         map[int64]domain.Package{},
		reservations:     map[int64]domain.Reservation{},
		codes:            map[string]int64{},
		sequences:        map[string]int{},
		lineItems:        map[int64]domain.LineItem{},
		stays:            map[int64]domain.AccommodationStay{},
		activityBookings: map[int64]domain.ActivityBooking{},
		packageBookings:  map[int64]domain.PackageBooking{},
		inventory:        map[roomDate]domain.RoomInventory{},
		payments:         map[int64]payment{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		ids:              cloneMap(s.ids),
		hotels:           s.hotels,
		roomTypes:        s.roomTypes,
		rooms:            s.rooms,
		activities:       s.activities,
		schedules:        s.schedules,
		packages:         s.packages,
		reservations:     cloneMap(s.reservations),
		codes:            cloneMap(s.codes),
		sequences:        cloneMap(s.sequences),
		lineItems:        cloneMap(s.lineItems),
		stays:            cloneMap(s.stays),
		activityBookings: cloneMap(s.activityBookings),
		packageBookings:  cloneMap(s.packageBookings),
		inventory:        cloneMap(s.inventory),
		payments:         cloneMap(s.payments),
	}
}

func (s *state) nextID(table string) int64 {
	s.ids[table]++
	return s.ids[table]
}

// Store implements repository.CatalogRepository and repository.ReservationRepository.
type Store struct {
	mu   sync.RWMutex
	data *state
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{data: newState(), now: time.Now}
}

func (s *Store) InTx(ctx context.Context, fn func(tx repository.ReservationTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memTx{st: work, now: s.now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) RoomOccupancy(ctx context.Context, roomID int64, from, to time.Time) ([]domain.StayWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[int64]bool{}
	windows := make([]domain.StayWindow, 0)
	for key, row := range s.data.inventory {
		if key.roomID != roomID || !row.Blocked || key.date.Before(from) || key.date.After(to) {
			continue
		}
		if seen[row.LineItemID] {
			continue
		}
		stay, ok := s.data.stays[row.LineItemID]
		if !ok {
			continue
		}
		seen[row.LineItemID] = true
		windows = append(windows, stay.Window())
	}
	return windows, nil
}

func (s *Store) ScheduleParticipants(ctx context.Context, scheduleID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.scheduleParticipants(scheduleID), nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.data.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, ref := range s.data.lineItemRefs(id) {
		item := s.data.lineItems[ref.ID]
		item.Detail = s.data.detail(ref)
		res.Items = append(res.Items, item)
	}
	return &res, nil
}

func (s *state) scheduleParticipants(scheduleID int64) int {
	booked := 0
	for lineItemID, b := range s.activityBookings {
		if b.ScheduleID != scheduleID {
			continue
		}
		item := s.lineItems[lineItemID]
		if s.reservations[item.ReservationID].Status == domain.ReservationStatusCancelled {
			continue
		}
		booked += b.Participants
	}
	return booked
}

func (s *state) lineItemRefs(reservationID int64) []repository.LineItemRef {
	refs := make([]repository.LineItemRef, 0)
	for id, item := range s.lineItems {
		if item.ReservationID == reservationID {
			refs = append(refs, repository.LineItemRef{ID: id, Type: item.Type()})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

func (s *state) detail(ref repository.LineItemRef) domain.LineItemDetail {
	switch ref.Type {
	case domain.ItemTypeAccommodation:
		if stay, ok := s.stays[ref.ID]; ok {
			return &stay
		}
	case domain.ItemTypeActivity:
		if b, ok := s.activityBookings[ref.ID]; ok {
			return &b
		}
	case domain.ItemTypePackage:
		if b, ok := s.packageBookings[ref.ID]; ok {
			return &b
		}
	}
	return nil
}

type memTx struct {
	st  *state
	now func() time.Time
}

func (t *memTx) LatestConfirmationCode(ctx context.Context, prefix string) (string, error) {
	latest := ""
	for code := range t.st.codes {
		if strings.HasPrefix(code, prefix) && code > latest {
			latest = code
		}
	}
	return latest, nil
}

// IssueConfirmationSequence survives cancellations: deleting a reservation frees
// its code row but never rewinds the ledger.
func (t *memTx) IssueConfirmationSequence(ctx context.Context, dayPrefix string, floor int) (int, error) {
	seq := t.st.sequences[dayPrefix] + 1
	if floor > seq {
		seq = floor
	}
	t.st.sequences[dayPrefix] = seq
	return seq, nil
}

func (t *memTx) InsertReservation(ctx context.Context, r *domain.Reservation) error {
	if _, exists := t.st.codes[r.ConfirmationCode]; exists {
		return repository.ErrDuplicateConfirmationCode
	}
	r.ID = t.st.nextID("reservations")
	r.CreatedAt = t.now()
	r.UpdatedAt = r.CreatedAt

	row := *r
	row.Items = nil
	t.st.reservations[r.ID] = row
	t.st.codes[r.ConfirmationCode] = r.ID
	return nil
}

func (t *memTx) InsertLineItem(ctx context.Context, item *domain.LineItem) error {
	if _, ok := t.st.reservations[item.ReservationID]; !ok {
		return repository.ErrReferentialIntegrity
	}
	item.ID = t.st.nextID("reservation_line_items")
	t.st.lineItems[item.ID] = *item
	return nil
}

func (t *memTx) requireLineItem(lineItemID int64, itemType domain.ItemType) error {
	item, ok := t.st.lineItems[lineItemID]
	if !ok || item.Type() != itemType {
		return repository.ErrReferentialIntegrity
	}
	return nil
}

func (t *memTx) InsertAccommodationStay(ctx context.Context, stay *domain.AccommodationStay) error {
	if err := t.requireLineItem(stay.LineItemID, domain.ItemTypeAccommodation); err != nil {
		return err
	}
	stay.ID = t.st.nextID("accommodation_stays")
	t.st.stays[stay.LineItemID] = *stay
	return nil
}

func (t *memTx) InsertActivityBooking(ctx context.Context, b *domain.ActivityBooking) error {
	if err := t.requireLineItem(b.LineItemID, domain.ItemTypeActivity); err != nil {
		return err
	}
	b.ID = t.st.nextID("activity_bookings")
	t.st.activityBookings[b.LineItemID] = *b
	return nil
}

func (t *memTx) InsertPackageBooking(ctx context.Context, b *domain.PackageBooking) error {
	if err := t.requireLineItem(b.LineItemID, domain.ItemTypePackage); err != nil {
		return err
	}
	b.ID = t.st.nextID("package_bookings")
	t.st.packageBookings[b.LineItemID] = *b
	return nil
}

func (t *memTx) LockRoomDate(ctx context.Context, roomID int64, date time.Time, lineItemID int64) error {
	if _, ok := t.st.lineItems[lineItemID]; !ok {
		return repository.ErrReferentialIntegrity
	}
	key := roomDate{roomID: roomID, date: domain.DateOf(date)}
	row, exists := t.st.inventory[key]
	if exists && row.Blocked {
		return repository.ErrInventoryConflict
	}
	if !exists {
		row = domain.RoomInventory{ID: t.st.nextID("room_inventory"), RoomID: roomID, StayDate: key.date}
	}
	row.LineItemID = lineItemID
	row.Blocked = true
	t.st.inventory[key] = row
	return nil
}

func (t *memTx) ReleaseLineItem(ctx context.Context, lineItemID int64) (int64, error) {
	var released int64
	for key, row := range t.st.inventory {
		if row.LineItemID == lineItemID {
			delete(t.st.inventory, key)
			released++
		}
	}
	return released, nil
}

func (t *memTx) LockSchedule(ctx context.Context, scheduleID int64) (int, error) {
	if _, ok := t.st.schedules[scheduleID]; !ok {
		return 0, repository.ErrNotFound
	}
	return t.st.scheduleParticipants(scheduleID), nil
}

func (t *memTx) GetReservationForUpdate(ctx context.Context, id int64) (*domain.Reservation, error) {
	res, ok := t.st.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &res, nil
}

func (t *memTx) ListLineItems(ctx context.Context, reservationID int64) ([]repository.LineItemRef, error) {
	return t.st.lineItemRefs(reservationID), nil
}

func (t *memTx) DeleteAccommodationStay(ctx context.Context, lineItemID int64) error {
	delete(t.st.stays, lineItemID)
	return nil
}

func (t *memTx) DeleteActivityBooking(ctx context.Context, lineItemID int64) error {
	delete(t.st.activityBookings, lineItemID)
	return nil
}

func (t *memTx) DeletePackageBooking(ctx context.Context, lineItemID int64) error {
	delete(t.st.packageBookings, lineItemID)
	return nil
}

func (t *memTx) DeleteLineItems(ctx context.Context, reservationID int64) error {
	refs := t.st.lineItemRefs(reservationID)
	for _, ref := range refs {
		if t.referenced(ref.ID) {
			return repository.ErrReferentialIntegrity
		}
	}
	for _, ref := range refs {
		delete(t.st.lineItems, ref.ID)
	}
	return nil
}

func (t *memTx) referenced(lineItemID int64) bool {
	if _, ok := t.st.stays[lineItemID]; ok {
		return true
	}
	if _, ok := t.st.activityBookings[lineItemID]; ok {
		return true
	}
	if _, ok := t.st.packageBookings[lineItemID]; ok {
		return true
	}
	for _, row := range t.st.inventory {
		if row.LineItemID == lineItemID {
			return true
		}
	}
	return false
}

func (t *memTx) DeletePayments(ctx context.Context, reservationID int64) error {
	for id, p := range t.st.payments {
		if p.ReservationID == reservationID {
			delete(t.st.payments, id)
		}
	}
	return nil
}

func (t *memTx) DeleteReservation(ctx context.Context, id int64) error {
	res, ok := t.st.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if len(t.st.lineItemRefs(id)) > 0 {
		return repository.ErrReferentialIntegrity
	}
	for _, p := range t.st.payments {
		if p.ReservationID == id {
			return repository.ErrReferentialIntegrity
		}
	}
	delete(t.st.reservations, id)
	delete(t.st.codes, res.ConfirmationCode)
	return nil
}

var (
	_ repository.ReservationRepository = (*Store)(nil)
	_ repository.ReservationTx         = (*memTx)(nil)
)
