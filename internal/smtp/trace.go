package smtp

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// newTraceID returns a ULID that tags every log line about one message.
func newTraceID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
