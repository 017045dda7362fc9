package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Producer writes JSON messages to a single topic.
type Producer struct {
	brokers []string
	topic   string
	writer  *kafka.Writer
	logger  zerolog.Logger
}

func NewProducer(brokers []string, topic string, logger zerolog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		brokers: brokers,
		topic:   topic,
		writer:  writer,
		logger:  logger.With().Str("component", "kafka-producer").Str("topic", topic).Logger(),
	}
}

// Publish sends payload keyed by key, so events of one reservation share a partition.
func (p *Producer) Publish(ctx context.Context, key string, payload any) error {
	message, err := newMessage(key, payload, time.Now())
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.logger.Debug().Str("key", key).Msg("published to Kafka")
	return nil
}

func newMessage(key string, payload any, at time.Time) (kafka.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  at,
	}, nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker and reads the partitions of the topic.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no Kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(p.topic)
	if err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}

	p.logger.Info().Int("partitions", len(partitions)).Msg("connected to Kafka")
	return nil
}
