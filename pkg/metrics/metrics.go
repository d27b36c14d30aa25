package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process collectors. Default is registered on the
// prometheus default registry and served on /metrics.
type Metrics struct {
	CallsActive         prometheus.Gauge
	CallsStarted        *prometheus.CounterVec
	StateTransitions    *prometheus.CounterVec
	CallOutcomes        *prometheus.CounterVec
	ServiceLatency      *prometheus.HistogramVec
	ServiceErrors       *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
	FramesSent          prometheus.Counter
	PlaybacksTruncated  prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	LifecycleDropped    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg when reg is non-nil
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicebot_calls_active",
			Help: "Calls currently attached to a media stream.",
		}),
		CallsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_calls_started_total",
			Help: "Media streams started, by call flow.",
		}, []string{"flow"}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_state_transitions_total",
			Help: "Call state machine transitions, by target state.",
		}, []string{"state"}),
		CallOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_call_outcomes_total",
			Help: "Terminal call outcomes.",
		}, []string{"outcome"}),
		ServiceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicebot_service_call_seconds",
			Help:    "Latency of remote speech and chat calls.",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16},
		}, []string{"service"}),
		ServiceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_service_errors_total",
			Help: "Failed remote speech and chat calls.",
		}, []string{"service"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voicebot_circuit_breaker_state",
			Help: "Circuit breaker state per service (0 closed, 1 open, 2 half-open).",
		}, []string{"service"}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_outbound_frames_total",
			Help: "Outbound media frames written to callers.",
		}),
		PlaybacksTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_playbacks_truncated_total",
			Help: "Utterances cut short by cancellation or a closed socket.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_http_requests_total",
			Help: "HTTP requests by route and status class.",
		}, []string{"route", "status"}),
		LifecycleDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_lifecycle_publish_failures_total",
			Help: "Lifecycle transitions an observer failed to accept.",
		}, []string{"observer"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CallsActive, m.CallsStarted, m.StateTransitions, m.CallOutcomes,
			m.ServiceLatency, m.ServiceErrors, m.CircuitBreakerState,
			m.FramesSent, m.PlaybacksTruncated, m.HTTPRequests, m.LifecycleDropped,
		)
	}
	return m
}

var Default = New(prometheus.DefaultRegisterer)

// RecordServiceCall records latency and failures of one remote call
func RecordServiceCall(service string, success bool, latency time.Duration) {
	Default.ServiceLatency.WithLabelValues(service).Observe(latency.Seconds())
	if !success {
		Default.ServiceErrors.WithLabelValues(service).Inc()
	}
}

// UpdateCircuitBreaker records the breaker state for a service
func UpdateCircuitBreaker(service string, state int) {
	Default.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordRequest records an HTTP request
func RecordRequest(route string, status int) {
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	Default.HTTPRequests.WithLabelValues(route, class).Inc()
}
