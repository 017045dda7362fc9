package rabbitmq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultDialTimeout = 30 * time.Second
	heartbeat          = 10 * time.Second
)

// dial opens a connection whose TCP connect and AMQP handshake finish before the
// ctx deadline.
func dial(ctx context.Context, url string) (*amqp.Connection, error) {
	timeout, err := dialTimeout(ctx)
	if err != nil {
		return nil, err
	}
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

func dialTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultDialTimeout, nil
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0, context.DeadlineExceeded
	}
	return left, nil
}
