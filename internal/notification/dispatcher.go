// Package notification delivers reservation events to downstream consumers.
// Delivery is best effort: failures are logged and counted but never reported
// to the caller.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// Recorder receives the outcome of every publish attempt.
type Recorder interface {
	RecordNotification(err error)
}

type Settings struct {
	Async        bool
	Timeout      time.Duration
	FailureRatio float64
	OpenTimeout  time.Duration
	MinRequests  uint32
}

type Dispatcher struct {
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker
	settings  Settings
	logger    zerolog.Logger
	recorder  Recorder

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewDispatcher(publisher Publisher, settings Settings, logger zerolog.Logger, recorder Recorder) *Dispatcher {
	if settings.Timeout <= 0 {
		settings.Timeout = 5 * time.Second
	}
	if settings.MinRequests == 0 {
		settings.MinRequests = 3
	}
	d := &Dispatcher{
		publisher: publisher,
		settings:  settings,
		logger:    logger.With().Str("component", "notification").Logger(),
		recorder:  recorder,
	}
	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notification-publisher",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if settings.FailureRatio <= 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return d
}

// Notify publishes ev. In async mode it returns immediately and the publish runs
// on a context detached from ctx.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	if ev.EventID == uuid.Nil {
		ev.EventID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	if !d.settings.Async {
		d.deliver(ctx, ev)
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn().Str("confirmation_code", ev.ConfirmationCode).Msg("dispatcher closed, event dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.deliver(context.WithoutCancel(ctx), ev)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	err := d.publish(ctx, ev)
	if d.recorder != nil {
		d.recorder.RecordNotification(err)
	}
	if err != nil {
		d.logger.Error().Err(err).
			Str("event", ev.Type).
			Int64("reservation_id", ev.ReservationID).
			Str("confirmation_code", ev.ConfirmationCode).
			Msg("failed to publish notification")
		return
	}
	d.logger.Debug().Str("event", ev.Type).Str("confirmation_code", ev.ConfirmationCode).Msg("notification published")
}

func (d *Dispatcher) publish(ctx context.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.settings.Timeout)
	defer cancel()

	_, err = d.breaker.Execute(func() (interface{}, error) {
		return nil, d.publisher.Publish(ctx, strconv.FormatInt(ev.ReservationID, 10), ev)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("notification publisher unavailable: %w", err)
	}
	return err
}

// Close stops accepting events and waits for in-flight publishes or ctx expiry.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, string, any) error { return nil }
