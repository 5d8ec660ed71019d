package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics implements internal/kafka.RelayMetrics.
type RelayMetrics struct {
	ConsumedTotal      prometheus.Counter
	MalformedTotal     prometheus.Counter
	FetchErrorsTotal   prometheus.Counter
	ForwardedTotal     prometheus.Counter
	ForwardErrorsTotal prometheus.Counter
	ForwardDuration    prometheus.Histogram
	LastForwardUnix    prometheus.Gauge
}

func (m *RelayMetrics) IncConsumed()   { m.ConsumedTotal.Inc() }
func (m *RelayMetrics) IncMalformed()  { m.MalformedTotal.Inc() }
func (m *RelayMetrics) IncFetchError() { m.FetchErrorsTotal.Inc() }

func (m *RelayMetrics) ObserveForward(d time.Duration, err error) {
	m.ForwardDuration.Observe(d.Seconds())
	if err != nil {
		m.ForwardErrorsTotal.Inc()
		return
	}
	m.ForwardedTotal.Inc()
	m.LastForwardUnix.Set(float64(time.Now().Unix()))
}
