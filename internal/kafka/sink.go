package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/passwordkeyorg/smtp2datadog/internal/logevent"
	"github.com/passwordkeyorg/smtp2datadog/internal/message"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink publishes each log event to a topic for a downstream log shipper.
// Writes are synchronous and attempted once, so the caller sees the outcome
// of every message.
type Sink struct {
	W     writer
	topic string
	meta  logevent.Meta
	now   func() time.Time
}

func NewSink(brokers []string, topic string, meta logevent.Meta) *Sink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		AllowAutoTopicCreation: false,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            1,
	}
	return &Sink{W: w, topic: topic, meta: meta, now: time.Now}
}

func (s *Sink) Name() string { return "kafka" }

func (s *Sink) Close() error { return s.W.Close() }

func (s *Sink) Forward(ctx context.Context, rec message.Record) error {
	msg, err := buildMessage(logevent.New(rec, s.meta, s.now()))
	if err != nil {
		return err
	}
	if err := s.W.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish to %s: %w", s.topic, err)
	}
	return nil
}

// buildMessage keys events by hostname so one sender domain stays on one
// partition.
func buildMessage(ev logevent.Event) (kafka.Message, error) {
	b, err := ev.Marshal()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.Hostname),
		Value: b,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "ddsource", Value: []byte(ev.DDSource)},
		},
	}, nil
}
