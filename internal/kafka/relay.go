package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/passwordkeyorg/smtp2datadog/internal/logevent"
)

type reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poster delivers one encoded log event. datadog.Client implements it.
type Poster interface {
	Send(ctx context.Context, body []byte) error
}

// RelayMetrics is implemented by metrics.RelayMetrics.
type RelayMetrics interface {
	IncConsumed()
	IncMalformed()
	IncFetchError()
	ObserveForward(d time.Duration, err error)
}

// Relay drains the topic written by Sink and posts every event to the intake
// once. Failed posts are logged and dropped, like the direct path.
type Relay struct {
	R       reader
	Poster  Poster
	Logger  *slog.Logger
	Metrics RelayMetrics

	// FetchBackoff is the pause after a failed read.
	FetchBackoff time.Duration
}

func NewRelay(brokers []string, topic, groupID string, p Poster, logger *slog.Logger, m RelayMetrics) *Relay {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Relay{R: r, Poster: p, Logger: logger, Metrics: m, FetchBackoff: 500 * time.Millisecond}
}

func (r *Relay) Close() error { return r.R.Close() }

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	for {
		if ctx.Err() != nil {
			return nil
		}

		m, err := r.R.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.Logger.Error("kafka fetch failed", "err", err)
			if r.Metrics != nil {
				r.Metrics.IncFetchError()
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.FetchBackoff):
			}
			continue
		}
		r.handle(ctx, m)
	}
}

func (r *Relay) handle(ctx context.Context, m kafka.Message) {
	if r.Metrics != nil {
		r.Metrics.IncConsumed()
	}
	var ev logevent.Event
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.DDSource == "" {
		r.Logger.Warn("skipping malformed event", "partition", m.Partition, "offset", m.Offset)
		if r.Metrics != nil {
			r.Metrics.IncMalformed()
		}
		return
	}

	start := time.Now()
	err := r.Poster.Send(ctx, m.Value)
	if r.Metrics != nil {
		r.Metrics.ObserveForward(time.Since(start), err)
	}
	if err != nil {
		r.Logger.Error("relay forward failed",
			"err", err,
			"hostname", ev.Hostname,
			"partition", m.Partition,
			"offset", m.Offset,
		)
	}
}
