// Package reservation composes and cancels reservations. Each create path
// validates its request, resolves a concrete resource and writes the whole
// reservation graph in one transaction; the storage layer's unique keys decide
// races that the preceding reads cannot.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/tourbooking/internal/apperror"
	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/notification"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/Domenick1991/tourbooking/internal/service/availability"
	"github.com/Domenick1991/tourbooking/internal/service/confirmation"
	"github.com/Domenick1991/tourbooking/internal/service/inventory"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UseCase interface {
	CreateAccommodationReservation(ctx context.Context, req AccommodationRequest) (*domain.Reservation, error)
	CreateActivityReservation(ctx context.Context, req ActivityRequest) (*domain.Reservation, error)
	CreatePackageReservation(ctx context.Context, req PackageRequest) (*domain.Reservation, error)
	CheckAccommodationAvailability(ctx context.Context, q AvailabilityQuery) (*AvailabilityResult, error)
	CancelReservation(ctx context.Context, id int64) error
	GetReservation(ctx context.Context, id int64) (*domain.Reservation, error)
}

type Notifier interface {
	Notify(ctx context.Context, ev notification.Event)
}

type Metrics interface {
	RecordReservationCreated(itemType string, duration time.Duration)
	RecordReservationRejected(itemType, code string)
	RecordCancellation()
	RecordInventoryConflict()
	RecordConfirmationRetry()
}

type ReservationService struct {
	catalog      repository.CatalogRepository
	reservations repository.ReservationRepository
	resolver     *availability.Resolver
	locker       *inventory.Locker
	codes        *confirmation.Generator

	notifier Notifier
	metrics  Metrics
	logger   zerolog.Logger
	tracer   trace.Tracer

	prefix         string
	loc            *time.Location
	now            func() time.Time
	maxCodeRetries int
	currency       string
}

type ReservationServiceOption func(*ReservationService)

func WithNotifier(n Notifier) ReservationServiceOption {
	return func(s *ReservationService) {
		s.notifier = n
	}
}

func WithMetrics(m Metrics) ReservationServiceOption {
	return func(s *ReservationService) {
		s.metrics = m
	}
}

func WithLogger(l zerolog.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		s.logger = l
	}
}

// WithLocation sets the zone calendar days are taken in.
func WithLocation(loc *time.Location) ReservationServiceOption {
	return func(s *ReservationService) {
		s.loc = loc
	}
}

func WithClock(now func() time.Time) ReservationServiceOption {
	return func(s *ReservationService) {
		s.now = now
	}
}

func WithConfirmationPrefix(prefix string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.prefix = prefix
	}
}

func WithMaxCodeRetries(n int) ReservationServiceOption {
	return func(s *ReservationService) {
		s.maxCodeRetries = n
	}
}

// WithDefaultCurrency is used when a catalog entry carries no currency.
func WithDefaultCurrency(currency string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.currency = currency
	}
}

func NewReservationService(
	catalog repository.CatalogRepository,
	reservations repository.ReservationRepository,
	opts ...ReservationServiceOption,
) *ReservationService {
	s := &ReservationService{
		catalog:        catalog,
		reservations:   reservations,
		resolver:       availability.NewResolver(reservations),
		locker:         inventory.NewLocker(),
		logger:         zerolog.Nop(),
		tracer:         otel.Tracer("github.com/Domenick1991/tourbooking/internal/service/reservation"),
		prefix:         "RSV",
		loc:            time.UTC,
		now:            time.Now,
		maxCodeRetries: 5,
		currency:       "USD",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.maxCodeRetries < 1 {
		s.maxCodeRetries = 1
	}
	s.codes = confirmation.NewGenerator(s.prefix, s.loc, s.now)
	return s
}

func (s *ReservationService) GetReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, "reservation", id)
	}
	return res, nil
}

// insertReservation writes res and whatever attach adds to it in one transaction.
// A confirmation code collision reruns the whole transaction with a fresh code.
func (s *ReservationService) insertReservation(ctx context.Context, res *domain.Reservation, attach func(ctx context.Context, tx repository.ReservationTx) error) error {
	for attempt := 1; ; attempt++ {
		res.ID = 0
		res.Items = nil
		err := s.reservations.InTx(ctx, func(tx repository.ReservationTx) error {
			code, err := s.codes.Next(ctx, tx)
			if err != nil {
				return err
			}
			res.ConfirmationCode = code
			if err := tx.InsertReservation(ctx, res); err != nil {
				return err
			}
			return attach(ctx, tx)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateConfirmationCode) {
			return err
		}
		if attempt >= s.maxCodeRetries {
			return apperror.ConcurrencyConflict(fmt.Sprintf("could not issue a unique confirmation code after %d attempts", attempt), err)
		}
		s.metrics.RecordConfirmationRetry()
		s.logger.Debug().Str("code", res.ConfirmationCode).Int("attempt", attempt).Msg("confirmation code taken, retrying")
	}
}

// persistenceError keeps typed errors and wraps everything else as a persistence failure.
func persistenceError(err error, msg string) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, confirmation.ErrSequenceExhausted) {
		return apperror.Persistence("confirmation codes for today are exhausted", err)
	}
	return apperror.Persistence(msg, err)
}

func (s *ReservationService) lookupError(err error, entity string, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(entity, id)
	}
	return apperror.Persistence(fmt.Sprintf("failed to load %s %d", entity, id), err)
}

// dateOf maps t to its calendar day in the configured zone.
func (s *ReservationService) dateOf(t time.Time) time.Time {
	return domain.DateOf(t.In(s.loc))
}

func (s *ReservationService) currencyOr(currency string) string {
	if currency == "" {
		return s.currency
	}
	return currency
}

func (s *ReservationService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

// observe records the outcome of one create call. Business rejections are
// logged at debug, faults at error.
func (s *ReservationService) observe(span trace.Span, itemType domain.ItemType, started time.Time, res *domain.Reservation, err error) {
	defer span.End()
	if err == nil {
		s.metrics.RecordReservationCreated(string(itemType), time.Since(started))
		s.logger.Info().
			Int64("reservation_id", res.ID).
			Str("confirmation_code", res.ConfirmationCode).
			Str("item_type", string(itemType)).
			Str("total_amount", res.TotalAmount.StringFixed(2)).
			Msg("reservation created")
		return
	}

	code := apperror.CodeOf(err)
	s.metrics.RecordReservationRejected(string(itemType), string(code))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	if apperror.Expected(err) {
		s.logger.Debug().Str("item_type", string(itemType)).Str("code", string(code)).Msg(apperror.MessageOf(err))
		return
	}
	s.logger.Error().Err(err).Str("item_type", string(itemType)).Str("code", string(code)).Msg("reservation failed")
}

func (s *ReservationService) notify(ctx context.Context, eventType string, res *domain.Reservation) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Int64("reservation_id", res.ID).Msg("notifier panicked")
		}
	}()
	ev := notification.Event{
		Type:             eventType,
		ReservationID:    res.ID,
		ConfirmationCode: res.ConfirmationCode,
		GuestID:          res.GuestID,
		TotalAmount:      res.TotalAmount,
		Currency:         res.Currency,
		OccurredAt:       s.now().UTC(),
	}
	if len(res.Items) > 0 {
		ev.ItemType = string(res.Items[0].Type())
	}
	s.notifier.Notify(ctx, ev)
}

type nopMetrics struct{}

func (nopMetrics) RecordReservationCreated(string, time.Duration) {}
func (nopMetrics) RecordReservationRejected(string, string)       {}
func (nopMetrics) RecordCancellation()                            {}
func (nopMetrics) RecordInventoryConflict()                       {}
func (nopMetrics) RecordConfirmationRetry()                       {}

var _ UseCase = (*ReservationService)(nil)
