package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	Reg *prometheus.Registry

	SMTP  SMTPMetrics
	API   APIMetrics
	Relay RelayMetrics
}

func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{Reg: reg}

	r.SMTP = SMTPMetrics{
		AcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2datadog_accepted_total",
			Help: "Total accepted SMTP messages",
		}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2datadog_rejected_total",
			Help: "Total rejected SMTP commands and payloads",
		}, []string{"reason"}),
		ReceivedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2datadog_received_bytes_total",
			Help: "Total bytes accepted",
		}),
		ActiveConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smtp2datadog_active_connections",
			Help: "Current open SMTP connections",
		}),
		ForwardedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2datadog_forwarded_total",
			Help: "Total log events delivered to the sink",
		}, []string{"sink"}),
		ForwardErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2datadog_forward_errors_total",
			Help: "Total log events dropped because the sink call failed",
		}, []string{"sink"}),
		ForwardDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smtp2datadog_forward_duration_seconds",
			Help:    "Sink call latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"sink"}),
	}

	r.API = APIMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtp2datadog_admin_requests_total",
			Help: "Total admin HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smtp2datadog_admin_request_duration_seconds",
			Help:    "Admin HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	r.Relay = RelayMetrics{
		ConsumedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2datadog_relay_consumed_total",
			Help: "Total log events read from the topic",
		}),
		MalformedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2datadog_relay_malformed_total",
			Help: "Total topic messages skipped because they were not log events",
		}),
		FetchErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2datadog_relay_fetch_errors_total",
			Help: "Total topic read failures",
		}),
		ForwardedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2datadog_relay_forwarded_total",
			Help: "Total relayed log events accepted by the intake",
		}),
		ForwardErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtp2datadog_relay_forward_errors_total",
			Help: "Total relayed log events dropped because the intake call failed",
		}),
		ForwardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smtp2datadog_relay_forward_duration_seconds",
			Help:    "Intake call latency for relayed events in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		LastForwardUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smtp2datadog_relay_last_forward_unixtime",
			Help: "Unix time of the last relayed event accepted by the intake",
		}),
	}

	reg.MustRegister(
		r.SMTP.AcceptedTotal,
		r.SMTP.RejectedTotal,
		r.SMTP.ReceivedBytes,
		r.SMTP.ActiveConns,
		r.SMTP.ForwardedTotal,
		r.SMTP.ForwardErrorsTotal,
		r.SMTP.ForwardDuration,
		r.API.RequestsTotal,
		r.API.RequestDuration,
		r.Relay.ConsumedTotal,
		r.Relay.MalformedTotal,
		r.Relay.FetchErrorsTotal,
		r.Relay.ForwardedTotal,
		r.Relay.ForwardErrorsTotal,
		r.Relay.ForwardDuration,
		r.Relay.LastForwardUnix,
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Reg, promhttp.HandlerOpts{})
}
