package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SMTPMetrics implements internal/smtp.Metrics.
type SMTPMetrics struct {
	AcceptedTotal prometheus.Counter
	RejectedTotal *prometheus.CounterVec
	ReceivedBytes prometheus.Counter
	ActiveConns   prometheus.Gauge

	ForwardedTotal     *prometheus.CounterVec
	ForwardErrorsTotal *prometheus.CounterVec
	ForwardDuration    *prometheus.HistogramVec
}

func (m *SMTPMetrics) IncAccepted(bytes int64) {
	m.AcceptedTotal.Inc()
	m.ReceivedBytes.Add(float64(bytes))
}

func (m *SMTPMetrics) IncRejected(reason string) {
	m.RejectedTotal.WithLabelValues(reason).Inc()
}

func (m *SMTPMetrics) ConnOpen()  { m.ActiveConns.Inc() }
func (m *SMTPMetrics) ConnClose() { m.ActiveConns.Dec() }

func (m *SMTPMetrics) ObserveForward(sink string, d time.Duration, err error) {
	m.ForwardDuration.WithLabelValues(sink).Observe(d.Seconds())
	if err != nil {
		m.ForwardErrorsTotal.WithLabelValues(sink).Inc()
		return
	}
	m.ForwardedTotal.WithLabelValues(sink).Inc()
}
