package smtp

import "time"

// Metrics is an optional interface for recording key counters/gauges.
// It is intentionally small and easy to mock.
type Metrics interface {
	IncAccepted(bytes int64)
	IncRejected(reason string)
	ConnOpen()
	ConnClose()

	// ObserveForward records one sink call and its outcome.
	ObserveForward(sink string, d time.Duration, err error)
}
