// Package repository holds the storage contracts of the reservation engine and
// their Postgres implementation. The sentinel errors below are shared by every
// backend so the service layer can tell write-time conflicts from faults.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("not found")

// ErrInventoryConflict is returned when a (room, date) pair already carries an
// active block owned by another line item.
var ErrInventoryConflict = errors.New("room date already blocked")

// ErrDuplicateConfirmationCode is returned when the confirmation code column
// uniqueness constraint rejects an insert.
var ErrDuplicateConfirmationCode = errors.New("duplicate confirmation code")

// ErrReferentialIntegrity is returned when a delete would leave dependent rows behind.
var ErrReferentialIntegrity = errors.New("referential integrity violation")

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	constraintConfirmationCode = "reservations_confirmation_code_key"
	constraintRoomDate         = "room_inventory_room_id_stay_date_key"
)

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintConfirmationCode:
				return ErrDuplicateConfirmationCode
			case constraintRoomDate:
				return ErrInventoryConflict
			}
		case pgForeignKeyViolation:
			return ErrReferentialIntegrity
		}
	}
	return err
}
