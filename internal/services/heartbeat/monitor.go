package heartbeat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/events"
	"github.com/mcoot/quizmatch/internal/handle"
	"github.com/mcoot/quizmatch/internal/metrics"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/services/matchmaking"
)

// Config holds heartbeat settings
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultConfig returns default heartbeat settings
func DefaultConfig() Config {
	return Config{
		Interval: 3 * time.Second,
		Timeout:  2 * time.Second,
	}
}

// SweepResult summarises one sweep
type SweepResult struct {
	Probed  int
	Evicted int
}

// Monitor periodically probes every queued player and evicts the unresponsive
type Monitor struct {
	matchmaker *matchmaking.Matchmaker
	queue      *matchmaking.Queue
	publisher  events.Publisher
	metrics    *metrics.Metrics
	clock      clock.Clock
	logger     *slog.Logger
	cfg        Config
}

// New creates a Monitor
func New(
	matchmaker *matchmaking.Matchmaker,
	publisher events.Publisher,
	m *metrics.Metrics,
	clock clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Monitor {
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &Monitor{
		matchmaker: matchmaker,
		queue:      matchmaker.Queue(),
		publisher:  publisher,
		metrics:    m,
		clock:      clock,
		logger:     logger.With(slog.String("component", "heartbeat")),
		cfg:        cfg,
	}
}

// Run sweeps immediately and then every Interval until ctx is done
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("heartbeat monitor started",
		slog.Duration("interval", m.cfg.Interval),
		slog.Duration("timeout", m.cfg.Timeout))

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		m.Sweep(ctx)

		select {
		case <-ctx.Done():
			m.logger.Info("heartbeat monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep probes a snapshot of the queue concurrently, each probe bounded by Timeout
// A silent player is closed only if it was still queued when removal was attempted
func (m *Monitor) Sweep(ctx context.Context) SweepResult {
	start := time.Now()
	members := m.queue.Snapshot()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		evicted int
	)
	for _, h := range members {
		wg.Add(1)
		go func(h *handle.Handle) {
			defer wg.Done()
			if m.probe(ctx, h) {
				mu.Lock()
				evicted++
				mu.Unlock()
			}
		}(h)
	}
	wg.Wait()

	m.metrics.HeartbeatSweeps.Inc()
	m.metrics.HeartbeatSweepDuration.Observe(time.Since(start).Seconds())

	if len(members) > 0 {
		m.logger.Debug("heartbeat sweep complete",
			slog.Int("probed", len(members)),
			slog.Int("evicted", evicted),
			slog.Duration("duration", time.Since(start)))
	}

	if ctx.Err() == nil {
		m.matchmaker.TryMatch(ctx)
	}
	return SweepResult{Probed: len(members), Evicted: evicted}
}

// probe pings h and evicts it on failure, reporting whether it was evicted
func (m *Monitor) probe(ctx context.Context, h *handle.Handle) bool {
	err := h.Ping(ctx, m.cfg.Timeout)
	if err == nil {
		h.MarkAlive(m.clock.Now())
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Shutting down, not the player's fault
		return false
	}

	if !m.queue.Remove(h) {
		// Already matched or gone
		return false
	}
	h.Close()

	reason := err.Error()
	h.Logger().Info("player evicted",
		slog.String("username", h.Username()),
		slog.String("reason", reason),
		slog.Time("last_heartbeat_at", h.LastHeartbeatAt()))
	m.metrics.HeartbeatEvictions.Inc()
	m.publisher.Publish(ctx, model.Event{
		Type:      model.EventPlayerEvicted,
		Timestamp: m.clock.Now(),
		Username:  h.Username(),
		Payload:   model.PlayerEvictedPayload{Reason: reason},
	})
	return true
}
