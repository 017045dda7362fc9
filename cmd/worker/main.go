package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/tourbooking/config"
	"github.com/Domenick1991/tourbooking/internal/email"
	"github.com/Domenick1991/tourbooking/internal/kafka"
	"github.com/Domenick1991/tourbooking/internal/observability"
	"github.com/Domenick1991/tourbooking/internal/rabbitmq"
)

// The worker turns reservation events into guest emails.
func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sender := email.NewSender(logger)

	switch cfg.Notifications.Driver {
	case "kafka":
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ReservationsTopic)
		defer consumer.Close()
		logger.Info().Str("topic", cfg.Kafka.ReservationsTopic).Msg("consuming reservation events from kafka")
		err = consumer.Consume(ctx, func(ctx context.Context, body []byte) error {
			// a failing event would stall the partition, so it is logged and committed
			if err := sender.HandleMessage(ctx, body); err != nil {
				logger.Error().Err(err).Msg("reservation event dropped")
			}
			return nil
		})
	case "rabbitmq":
		consumer := rabbitmq.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
		logger.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("consuming reservation events from rabbitmq")
		err = consumer.Consume(ctx, sender.HandleMessage)
	default:
		logger.Warn().Str("driver", cfg.Notifications.Driver).Msg("no event source configured, worker idle")
		<-ctx.Done()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("consumer stopped")
	}
	logger.Info().Msg("worker stopped")
}
