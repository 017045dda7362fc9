package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/tourbooking/internal/apperror"
	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/notification"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"go.opentelemetry.io/otel/codes"
)

// CancelReservation removes a reservation that has not been confirmed, together
// with everything it owns. The rows go in dependency order inside one transaction:
// inventory, detail rows, line items, payments, then the reservation itself.
func (s *ReservationService) CancelReservation(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "CancelReservation")
	defer span.End()

	if id <= 0 {
		return apperror.Validation("reservation id is required")
	}

	var removed *domain.Reservation
	err = s.reservations.InTx(ctx, func(tx repository.ReservationTx) error {
		res, err := tx.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !res.Status.Cancellable() {
			return apperror.InvalidState("reservation %s is %s and cannot be cancelled here", res.ConfirmationCode, res.Status)
		}

		refs, err := tx.ListLineItems(ctx, id)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if err := s.releaseLineItem(ctx, tx, ref); err != nil {
				return err
			}
		}
		if err := tx.DeleteLineItems(ctx, id); err != nil {
			return err
		}
		if err := tx.DeletePayments(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteReservation(ctx, id); err != nil {
			return err
		}

		for _, ref := range refs {
			res.Items = append(res.Items, domain.LineItem{ID: ref.ID, Detail: emptyDetail(ref.Type)})
		}
		removed = res
		return nil
	})
	if err != nil {
		err = cancelError(err, id)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.CodeOf(err)))
		if apperror.Expected(err) {
			s.logger.Debug().Int64("reservation_id", id).Str("code", string(apperror.CodeOf(err))).Msg(apperror.MessageOf(err))
		} else {
			s.logger.Error().Err(err).Int64("reservation_id", id).Msg("cancellation failed")
		}
		return err
	}

	s.metrics.RecordCancellation()
	s.logger.Info().Int64("reservation_id", id).Str("confirmation_code", removed.ConfirmationCode).Msg("reservation cancelled")
	s.notify(ctx, notification.EventReservationCancelled, removed)
	return nil
}

// releaseLineItem frees the inventory of an accommodation item and deletes the
// detail row of any item kind.
func (s *ReservationService) releaseLineItem(ctx context.Context, tx repository.ReservationTx, ref repository.LineItemRef) error {
	switch ref.Type {
	case domain.ItemTypeAccommodation:
		if _, err := s.locker.Release(ctx, tx, ref.ID); err != nil {
			return err
		}
		return tx.DeleteAccommodationStay(ctx, ref.ID)
	case domain.ItemTypeActivity:
		return tx.DeleteActivityBooking(ctx, ref.ID)
	case domain.ItemTypePackage:
		return tx.DeletePackageBooking(ctx, ref.ID)
	default:
		return fmt.Errorf("line item %d has unknown type %q", ref.ID, ref.Type)
	}
}

func emptyDetail(t domain.ItemType) domain.LineItemDetail {
	switch t {
	case domain.ItemTypeAccommodation:
		return &domain.AccommodationStay{}
	case domain.ItemTypeActivity:
		return &domain.ActivityBooking{}
	case domain.ItemTypePackage:
		return &domain.PackageBooking{}
	default:
		return nil
	}
}

func cancelError(err error, id int64) error {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("reservation", id)
	case errors.Is(err, repository.ErrReferentialIntegrity):
		return apperror.Persistence(fmt.Sprintf("reservation %d still has dependent rows", id), err)
	default:
		return apperror.Persistence(fmt.Sprintf("failed to cancel reservation %d", id), err)
	}
}
