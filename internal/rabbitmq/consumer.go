package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type Consumer struct {
	url    string
	queue  string
	logger zerolog.Logger
}

func NewConsumer(url, queue string, logger zerolog.Logger) *Consumer {
	return &Consumer{url: url, queue: queue, logger: logger.With().Str("component", "rabbitmq-consumer").Logger()}
}

// Consume delivers message bodies to handler until ctx is cancelled, reconnecting
// with exponential backoff. A message the handler rejects is nacked without requeue.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, []byte) error) error {
	backoff := time.Second
	for {
		conn, err := dial(ctx, c.url)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn, handler)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn().Err(err).Msg("consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, handler func(context.Context, []byte) error) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn().Err(err).Msg("set QoS failed")
	}
	if err := declareQueue(ch, c.queue); err != nil {
		return err
	}

	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handler(ctx, d.Body); err != nil {
			c.logger.Error().Err(err).Msg("handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
