package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quizmatch"

// Auth outcome labels
const (
	OutcomeSuccess         = "success"
	OutcomeFailure         = "failure"
	OutcomeAlreadyLoggedIn = "already_logged_in"
	OutcomeTimeout         = "timeout"
)

// Game outcome labels
const (
	GameCompleted = "completed"
	GamePanicked  = "panicked"
	GameAborted   = "aborted"
)

// Metrics holds the server's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsOpen     prometheus.Gauge
	AuthAttempts        *prometheus.CounterVec // kind (login, register, reconnect), outcome
	TokensIssued        prometheus.Counter

	QueueLength   prometheus.Gauge
	MatchesFormed *prometheus.CounterVec // mode

	HeartbeatSweeps        prometheus.Counter
	HeartbeatEvictions     prometheus.Counter
	HeartbeatSweepDuration prometheus.Histogram

	GamesQueued   prometheus.Gauge
	GamesRunning  prometheus.Gauge
	GamesFinished *prometheus.CounterVec // outcome
	GameDuration  prometheus.Histogram
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers all collectors on the given registry
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted TCP connections",
		}),
		ConnectionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Number of currently open client connections",
		}),
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication, registration and reconnect attempts by outcome",
		}, []string{"kind", "outcome"}),
		TokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_tokens_issued_total",
			Help:      "Total number of session tokens issued",
		}),

		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "matchmaking",
			Name:      "queue_length",
			Help:      "Number of players waiting in the matchmaking queue",
		}),
		MatchesFormed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matchmaking",
			Name:      "matches_formed_total",
			Help:      "Total number of games formed by the matchmaker",
		}, []string{"mode"}),

		HeartbeatSweeps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "sweeps_total",
			Help:      "Total number of heartbeat sweeps",
		}),
		HeartbeatEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "evictions_total",
			Help:      "Total number of queued players evicted for missing a heartbeat",
		}),
		HeartbeatSweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of heartbeat sweeps in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 3, 5},
		}),

		GamesQueued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gamepool",
			Name:      "games_queued",
			Help:      "Number of formed games waiting for a free worker",
		}),
		GamesRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gamepool",
			Name:      "games_running",
			Help:      "Number of games currently being played",
		}),
		GamesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gamepool",
			Name:      "games_finished_total",
			Help:      "Total number of finished games by outcome",
		}, []string{"outcome"}),
		GameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gamepool",
			Name:      "game_duration_seconds",
			Help:      "Duration of games in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// RegisterRuntimeCollectors adds the Go runtime and process collectors
func (m *Metrics) RegisterRuntimeCollectors() {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
