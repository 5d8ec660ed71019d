// Package stdout implements a sink that writes each log event as one JSON
// line, for running the bridge without a Datadog account.
package stdout

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/passwordkeyorg/smtp2datadog/internal/logevent"
	"github.com/passwordkeyorg/smtp2datadog/internal/message"
)

// Sink writes events to an io.Writer. Lines from concurrent sessions never
// interleave.
type Sink struct {
	mu   sync.Mutex
	w    io.Writer
	meta logevent.Meta
	now  func() time.Time
}

// NewWithWriter creates a Sink that writes to w.
func NewWithWriter(w io.Writer, meta logevent.Meta) *Sink {
	return &Sink{w: w, meta: meta, now: time.Now}
}

func (s *Sink) Name() string { return "stdout" }

func (s *Sink) Forward(_ context.Context, rec message.Record) error {
	b, err := logevent.New(rec, s.meta, s.now()).Marshal()
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(b)
	return err
}
