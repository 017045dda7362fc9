package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/tourbooking/internal/notification"
	"github.com/rs/zerolog"
)

// Sender renders guest e-mails for reservation events. Delivery is a log line;
// the mail gateway sits outside this service.
type Sender struct {
	logger zerolog.Logger
}

func NewSender(logger zerolog.Logger) *Sender {
	return &Sender{logger: logger.With().Str("component", "email").Logger()}
}

func (s *Sender) Send(ctx context.Context, event notification.Event) error {
	subject, err := subjectFor(event)
	if err != nil {
		return err
	}
	s.logger.Info().
		Int64("guest_id", event.GuestID).
		Int64("reservation_id", event.ReservationID).
		Str("confirmation_code", event.ConfirmationCode).
		Str("subject", subject).
		Msg("send email")
	return nil
}

// HandleMessage decodes a broker message body and sends the matching e-mail.
func (s *Sender) HandleMessage(ctx context.Context, body []byte) error {
	var event notification.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode reservation event: %w", err)
	}
	return s.Send(ctx, event)
}

func subjectFor(event notification.Event) (string, error) {
	switch event.Type {
	case notification.EventReservationCreated:
		return fmt.Sprintf("Your reservation %s is received (%s %s)", event.ConfirmationCode, event.TotalAmount.StringFixed(2), event.Currency), nil
	case notification.EventReservationCancelled:
		return fmt.Sprintf("Your reservation %s is cancelled", event.ConfirmationCode), nil
	default:
		return "", fmt.Errorf("unknown event type %q", event.Type)
	}
}
