package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Grant lifecycle events recorded by RecordGrant
const (
	GrantBegun    = "begun"
	GrantEnded    = "ended"
	GrantExpired  = "expired"
	GrantDenied   = "denied"
	GrantRejected = "rejected"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Grant metrics
	GrantsTotal *prometheus.CounterVec
	GrantActive prometheus.Gauge

	// Refresh metrics
	RefreshSubmissions *prometheus.CounterVec
	RefreshFires       *prometheus.CounterVec

	// Power metrics
	LowPowerMode prometheus.Gauge

	// Channel metrics
	PushEvents  *prometheus.CounterVec
	PushDropped *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics creates a metrics collector registered on registry. A nil
// registry gets a fresh one with Go runtime and process collectors.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(registry)
	startTime := time.Now()

	m := &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lifecycle_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_commands_total",
				Help: "Total number of channel commands handled",
			},
			[]string{"channel", "method", "outcome"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lifecycle_command_duration_seconds",
				Help:    "Channel command duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"channel", "method"},
		),

		GrantsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_grants_total",
				Help: "Background execution grant lifecycle events",
			},
			[]string{"event"},
		),
		GrantActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lifecycle_grant_active",
				Help: "Whether a background execution grant is outstanding",
			},
		),

		RefreshSubmissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_refresh_submissions_total",
				Help: "Deferred refresh requests submitted to the host",
			},
			[]string{"result"},
		),
		RefreshFires: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_refresh_fires_total",
				Help: "Deferred refresh launches handled",
			},
			[]string{"outcome"},
		),

		LowPowerMode: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lifecycle_low_power_mode",
				Help: "Last observed low-power mode flag",
			},
		),

		PushEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_push_events_total",
				Help: "Push notifications published per channel",
			},
			[]string{"channel", "method"},
		),
		PushDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_push_dropped_total",
				Help: "Push notifications dropped for slow subscribers",
			},
			[]string{"channel"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lifecycle_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_ws_messages_total",
				Help: "Total number of WebSocket frames",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lifecycle_uptime_seconds",
			Help: "Backend uptime in seconds",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCommand records a channel command and its outcome
func (m *Metrics) RecordCommand(channel, method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(channel, method, outcome).Inc()
	m.CommandDuration.WithLabelValues(channel, method).Observe(duration.Seconds())
}

// RecordGrant records a grant lifecycle event and updates the active gauge
func (m *Metrics) RecordGrant(event string) {
	if m == nil {
		return
	}
	m.GrantsTotal.WithLabelValues(event).Inc()
	switch event {
	case GrantBegun:
		m.GrantActive.Set(1)
	case GrantEnded, GrantExpired:
		m.GrantActive.Set(0)
	}
}

// RecordRefreshSubmission records a deferred refresh submission
func (m *Metrics) RecordRefreshSubmission(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RefreshSubmissions.WithLabelValues(result).Inc()
}

// RecordRefreshFire records how a launched refresh ended
func (m *Metrics) RecordRefreshFire(outcome string) {
	if m == nil {
		return
	}
	m.RefreshFires.WithLabelValues(outcome).Inc()
}

// SetLowPowerMode records the last observed low-power flag
func (m *Metrics) SetLowPowerMode(enabled bool) {
	if m == nil {
		return
	}
	if enabled {
		m.LowPowerMode.Set(1)
	} else {
		m.LowPowerMode.Set(0)
	}
}

// RecordPush records a published push notification
func (m *Metrics) RecordPush(channel, method string) {
	if m == nil {
		return
	}
	m.PushEvents.WithLabelValues(channel, method).Inc()
}

// RecordPushDropped records a push that a subscriber could not accept
func (m *Metrics) RecordPushDropped(channel string) {
	if m == nil {
		return
	}
	m.PushDropped.WithLabelValues(channel).Inc()
}

// RecordWSMessage records a WebSocket frame
func (m *Metrics) RecordWSMessage(direction, frameType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, frameType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
