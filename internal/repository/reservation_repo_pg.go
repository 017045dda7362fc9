package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	// An active row is left untouched, so RETURNING yields nothing.
	lockRoomDateSQL = `INSERT INTO room_inventory (room_id, stay_date, line_item_id, is_blocked)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (room_id, stay_date) DO UPDATE
			SET line_item_id = EXCLUDED.line_item_id, is_blocked = TRUE, updated_at = now()
			WHERE room_inventory.is_blocked = FALSE
		RETURNING id`

	issueSequenceSQL = `INSERT INTO confirmation_sequences (day_prefix, last_seq)
		VALUES ($1, $2)
		ON CONFLICT (day_prefix) DO UPDATE
			SET last_seq = GREATEST(confirmation_sequences.last_seq + 1, EXCLUDED.last_seq), updated_at = now()
		RETURNING last_seq`
)

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) ReservationRepository {
	return &PGReservationRepository{db: db}
}

func (r *PGReservationRepository) InTx(ctx context.Context, fn func(tx ReservationTx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgReservationTx{tx: tx}); err != nil {
		return err
	}
	return mapPgError(tx.Commit(ctx))
}

func (r *PGReservationRepository) RoomOccupancy(ctx context.Context, roomID int64, from, to time.Time) ([]domain.StayWindow, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT s.line_item_id, s.check_in, s.check_out
		FROM room_inventory ri
		JOIN accommodation_stays s ON s.line_item_id = ri.line_item_id
		WHERE ri.room_id=$1 AND ri.is_blocked AND ri.stay_date BETWEEN $2 AND $3`, roomID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	windows := make([]domain.StayWindow, 0)
	for rows.Next() {
		var (
			lineItemID int64
			w          domain.StayWindow
		)
		if err := rows.Scan(&lineItemID, &w.CheckIn, &w.CheckOut); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func (r *PGReservationRepository) ScheduleParticipants(ctx context.Context, scheduleID int64) (int, error) {
	return scheduleParticipants(ctx, r.db, scheduleID)
}

func (r *PGReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	res, err := getReservation(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}
	if res.Items, err = listLineItems(ctx, r.db, id); err != nil {
		return nil, err
	}
	return res, nil
}

var _ ReservationRepository = (*PGReservationRepository)(nil)

type pgReservationTx struct {
	tx pgx.Tx
}

func (t *pgReservationTx) LatestConfirmationCode(ctx context.Context, prefix string) (string, error) {
	var code string
	err := t.tx.QueryRow(ctx, `SELECT confirmation_code FROM reservations
		WHERE confirmation_code LIKE $1 || '%'
		ORDER BY confirmation_code DESC LIMIT 1`, prefix).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return code, err
}

// IssueConfirmationSequence upserts the day's ledger row. The row lock taken by the
// upsert orders concurrent creations, so numbers are issued in commit order.
func (t *pgReservationTx) IssueConfirmationSequence(ctx context.Context, dayPrefix string, floor int) (int, error) {
	var seq int
	err := t.tx.QueryRow(ctx, issueSequenceSQL, dayPrefix, floor).Scan(&seq)
	return seq, mapPgError(err)
}

func (t *pgReservationTx) InsertReservation(ctx context.Context, res *domain.Reservation) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO reservations
		(confirmation_code, guest_id, status, check_in, check_out, total_amount, currency, source, notes)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		res.ConfirmationCode, res.GuestID, res.Status, res.CheckIn, res.CheckOut,
		res.TotalAmount.String(), res.Currency, res.Source, res.Notes).
		Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	return mapPgError(err)
}

func (t *pgReservationTx) InsertLineItem(ctx context.Context, item *domain.LineItem) error {
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("marshal line item metadata: %w", err)
	}
	err = t.tx.QueryRow(ctx, `INSERT INTO reservation_line_items
		(reservation_id, item_type, title, quantity, unit_price, amount, metadata)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
		RETURNING id`,
		item.ReservationID, item.Type(), item.Title, item.Quantity,
		item.UnitPrice.String(), item.Amount.String(), metadata).
		Scan(&item.ID)
	return mapPgError(err)
}

func (t *pgReservationTx) InsertAccommodationStay(ctx context.Context, s *domain.AccommodationStay) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO accommodation_stays
		(line_item_id, hotel_id, room_type_id, room_id, adults, children, check_in, check_out, nights, guest_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		s.LineItemID, s.HotelID, s.RoomTypeID, s.RoomID, s.Adults, s.Children,
		s.CheckIn, s.CheckOut, s.Nights, s.GuestName).
		Scan(&s.ID)
	return mapPgError(err)
}

func (t *pgReservationTx) InsertActivityBooking(ctx context.Context, b *domain.ActivityBooking) error {
	names, err := json.Marshal(b.ParticipantNames)
	if err != nil {
		return fmt.Errorf("marshal participant names: %w", err)
	}
	err = t.tx.QueryRow(ctx, `INSERT INTO activity_bookings
		(line_item_id, activity_id, schedule_id, activity_date, start_time, participants, participant_names, emergency_contact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		b.LineItemID, b.ActivityID, b.ScheduleID, b.ActivityDate, b.StartTime,
		b.Participants, names, b.EmergencyContact).
		Scan(&b.ID)
	return mapPgError(err)
}

func (t *pgReservationTx) InsertPackageBooking(ctx context.Context, b *domain.PackageBooking) error {
	names, err := json.Marshal(b.ParticipantNames)
	if err != nil {
		return fmt.Errorf("marshal participant names: %w", err)
	}
	err = t.tx.QueryRow(ctx, `INSERT INTO package_bookings
		(line_item_id, package_id, start_date, end_date, pax, participant_names)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		b.LineItemID, b.PackageID, b.StartDate, b.EndDate, b.Pax, names).
		Scan(&b.ID)
	return mapPgError(err)
}

func (t *pgReservationTx) LockRoomDate(ctx context.Context, roomID int64, date time.Time, lineItemID int64) error {
	var id int64
	err := t.tx.QueryRow(ctx, lockRoomDateSQL, roomID, date, lineItemID).Scan(&id)
	return lockRoomDateError(err)
}

// lockRoomDateError maps the outcome of the inventory upsert. The upsert returns no
// row when the conflicting (room, date) row is still blocked; a racing insert can
// also surface as the unique violation itself.
func lockRoomDateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInventoryConflict
	}
	return mapPgError(err)
}

func (t *pgReservationTx) ReleaseLineItem(ctx context.Context, lineItemID int64) (int64, error) {
	cmd, err := t.tx.Exec(ctx, `DELETE FROM room_inventory WHERE line_item_id=$1`, lineItemID)
	if err != nil {
		return 0, mapPgError(err)
	}
	return cmd.RowsAffected(), nil
}

func (t *pgReservationTx) LockSchedule(ctx context.Context, scheduleID int64) (int, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, `SELECT id FROM activity_schedules WHERE id=$1 FOR UPDATE`, scheduleID).Scan(&id); err != nil {
		return 0, mapPgError(err)
	}
	return scheduleParticipants(ctx, t.tx, scheduleID)
}

func (t *pgReservationTx) GetReservationForUpdate(ctx context.Context, id int64) (*domain.Reservation, error) {
	return getReservation(ctx, t.tx, id, true)
}

func (t *pgReservationTx) ListLineItems(ctx context.Context, reservationID int64) ([]LineItemRef, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, item_type FROM reservation_line_items WHERE reservation_id=$1 ORDER BY id`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]LineItemRef, 0)
	for rows.Next() {
		var ref LineItemRef
		if err := rows.Scan(&ref.ID, &ref.Type); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (t *pgReservationTx) DeleteAccommodationStay(ctx context.Context, lineItemID int64) error {
	return t.exec(ctx, `DELETE FROM accommodation_stays WHERE line_item_id=$1`, lineItemID)
}

func (t *pgReservationTx) DeleteActivityBooking(ctx context.Context, lineItemID int64) error {
	return t.exec(ctx, `DELETE FROM activity_bookings WHERE line_item_id=$1`, lineItemID)
}

func (t *pgReservationTx) DeletePackageBooking(ctx context.Context, lineItemID int64) error {
	return t.exec(ctx, `DELETE FROM package_bookings WHERE line_item_id=$1`, lineItemID)
}

func (t *pgReservationTx) DeleteLineItems(ctx context.Context, reservationID int64) error {
	return t.exec(ctx, `DELETE FROM reservation_line_items WHERE reservation_id=$1`, reservationID)
}

func (t *pgReservationTx) DeletePayments(ctx context.Context, reservationID int64) error {
	return t.exec(ctx, `DELETE FROM payments WHERE reservation_id=$1`, reservationID)
}

func (t *pgReservationTx) DeleteReservation(ctx context.Context, id int64) error {
	cmd, err := t.tx.Exec(ctx, `DELETE FROM reservations WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgReservationTx) exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.tx.Exec(ctx, sql, args...)
	return mapPgError(err)
}

var _ ReservationTx = (*pgReservationTx)(nil)

func scheduleParticipants(ctx context.Context, q querier, scheduleID int64) (int, error) {
	var booked int
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(ab.participants), 0)
		FROM activity_bookings ab
		JOIN reservation_line_items li ON li.id = ab.line_item_id
		JOIN reservations r ON r.id = li.reservation_id
		WHERE ab.schedule_id=$1 AND r.status <> $2`, scheduleID, domain.ReservationStatusCancelled).Scan(&booked)
	return booked, err
}

func getReservation(ctx context.Context, q querier, id int64, forUpdate bool) (*domain.Reservation, error) {
	query := `SELECT id, confirmation_code, guest_id, status, check_in, check_out, total_amount::text,
		currency, source, notes, created_at, updated_at FROM reservations WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		res   domain.Reservation
		total string
	)
	err := q.QueryRow(ctx, query, id).Scan(&res.ID, &res.ConfirmationCode, &res.GuestID, &res.Status,
		&res.CheckIn, &res.CheckOut, &total, &res.Currency, &res.Source, &res.Notes, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	if res.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("reservation %d total: %w", id, err)
	}
	return &res, nil
}

func listLineItems(ctx context.Context, q querier, reservationID int64) ([]domain.LineItem, error) {
	rows, err := q.Query(ctx, `SELECT id, reservation_id, item_type, title, quantity, unit_price::text, amount::text, metadata
		FROM reservation_line_items WHERE reservation_id=$1 ORDER BY id`, reservationID)
	if err != nil {
		return nil, err
	}

	type row struct {
		item     domain.LineItem
		itemType domain.ItemType
	}
	var scanned []row
	for rows.Next() {
		var (
			r                 row
			unitPrice, amount string
			metadata          []byte
		)
		if err := rows.Scan(&r.item.ID, &r.item.ReservationID, &r.itemType, &r.item.Title, &r.item.Quantity,
			&unitPrice, &amount, &metadata); err != nil {
			rows.Close()
			return nil, err
		}
		if r.item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			rows.Close()
			return nil, err
		}
		if r.item.Amount, err = decimal.NewFromString(amount); err != nil {
			rows.Close()
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.item.Metadata); err != nil {
				rows.Close()
				return nil, fmt.Errorf("line item %d metadata: %w", r.item.ID, err)
			}
		}
		scanned = append(scanned, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items := make([]domain.LineItem, 0, len(scanned))
	for _, r := range scanned {
		detail, err := loadDetail(ctx, q, r.item.ID, r.itemType)
		if err != nil {
			return nil, err
		}
		r.item.Detail = detail
		items = append(items, r.item)
	}
	return items, nil
}

func loadDetail(ctx context.Context, q querier, lineItemID int64, itemType domain.ItemType) (domain.LineItemDetail, error) {
	switch itemType {
	case domain.ItemTypeAccommodation:
		var s domain.AccommodationStay
		err := q.QueryRow(ctx, `SELECT id, line_item_id, hotel_id, room_type_id, room_id, adults, children,
			check_in, check_out, nights, guest_name FROM accommodation_stays WHERE line_item_id=$1`, lineItemID).
			Scan(&s.ID, &s.LineItemID, &s.HotelID, &s.RoomTypeID, &s.RoomID, &s.Adults, &s.Children,
				&s.CheckIn, &s.CheckOut, &s.Nights, &s.GuestName)
		if err != nil {
			return nil, mapPgError(err)
		}
		return &s, nil
	case domain.ItemTypeActivity:
		var (
			b     domain.ActivityBooking
			names []byte
		)
		err := q.QueryRow(ctx, `SELECT id, line_item_id, activity_id, schedule_id, activity_date, start_time,
			participants, participant_names, emergency_contact FROM activity_bookings WHERE line_item_id=$1`, lineItemID).
			Scan(&b.ID, &b.LineItemID, &b.ActivityID, &b.ScheduleID, &b.ActivityDate, &b.StartTime,
				&b.Participants, &names, &b.EmergencyContact)
		if err != nil {
			return nil, mapPgError(err)
		}
		if err := unmarshalNames(names, &b.ParticipantNames); err != nil {
			return nil, err
		}
		return &b, nil
	case domain.ItemTypePackage:
		var (
			b     domain.PackageBooking
			names []byte
		)
		err := q.QueryRow(ctx, `SELECT id, line_item_id, package_id, start_date, end_date, pax, participant_names
			FROM package_bookings WHERE line_item_id=$1`, lineItemID).
			Scan(&b.ID, &b.LineItemID, &b.PackageID, &b.StartDate, &b.EndDate, &b.Pax, &names)
		if err != nil {
			return nil, mapPgError(err)
		}
		if err := unmarshalNames(names, &b.ParticipantNames); err != nil {
			return nil, err
		}
		return &b, nil
	default:
		return nil, fmt.Errorf("line item %d: unknown item type %q", lineItemID, itemType)
	}
}

func unmarshalNames(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("participant names: %w", err)
	}
	return nil
}
