package gamepool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/events"
	"github.com/mcoot/quizmatch/internal/metrics"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/protocol"
	"github.com/mcoot/quizmatch/internal/services/matchmaking"
)

// Launcher runs one game to completion
type Launcher interface {
	Launch(ctx context.Context, game *matchmaking.Game) (model.GameResult, error)
}

// Config holds pool settings
type Config struct {
	Workers   int // max concurrent games
	QueueSize int // formed games waiting for a worker
}

// DefaultConfig returns default pool settings
func DefaultConfig() Config {
	return Config{
		Workers:   5,
		QueueSize: 5,
	}
}

// Pool runs formed games on a fixed set of workers
// Submit blocks while the work queue is full; games are never dropped
type Pool struct {
	launcher  Launcher
	publisher events.Publisher
	metrics   *metrics.Metrics
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config

	work     chan *matchmaking.Game
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	running atomic.Int32
}

// Ensure Pool can receive games from the matchmaker
var _ matchmaking.Submitter = (*Pool)(nil)

// New creates a Pool
func New(launcher Launcher, publisher events.Publisher, m *metrics.Metrics, clock clock.Clock, logger *slog.Logger, cfg Config) *Pool {
	defaults := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	return &Pool{
		launcher:  launcher,
		publisher: publisher,
		metrics:   m,
		clock:     clock,
		logger:    logger.With(slog.String("component", "gamepool")),
		cfg:       cfg,
		work:      make(chan *matchmaking.Game, cfg.QueueSize),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the workers; games run with ctx
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("game pool started",
		slog.Int("workers", p.cfg.Workers),
		slog.Int("queue_size", p.cfg.QueueSize))
}

// Submit queues a game, blocking while the work queue is full
func (p *Pool) Submit(ctx context.Context, game *matchmaking.Game) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return model.ErrPoolStopped
	}

	select {
	case p.work <- game:
		p.metrics.GamesQueued.Inc()
		return nil
	case <-p.stopCh:
		return model.ErrPoolStopped
	case <-ctx.Done():
		return fmt.Errorf("submitting game %s: %w", game.ID, ctx.Err())
	}
}

// Stop rejects new games, lets workers finish queued ones and waits for them
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)

		p.mu.Lock()
		p.stopped = true
		close(p.work)
		started := p.started
		p.mu.Unlock()

		if !started {
			// No workers will drain the queue
			for game := range p.work {
				p.metrics.GamesQueued.Dec()
				game.Close()
			}
		}
		p.wg.Wait()
		p.logger.Info("game pool stopped")
	})
}

// Running returns the number of games currently being played
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Queued returns the number of games waiting for a worker
func (p *Pool) Queued() int {
	return len(p.work)
}

// Capacity returns the maximum number of concurrent games
func (p *Pool) Capacity() int {
	return p.cfg.Workers
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for game := range p.work {
		p.metrics.GamesQueued.Dec()
		p.run(ctx, game, id)
	}
}

func (p *Pool) run(ctx context.Context, game *matchmaking.Game, worker int) {
	logger := p.logger.With(slog.String("game_id", string(game.ID)), slog.Int("worker", worker))
	start := p.clock.Now()

	p.running.Add(1)
	p.metrics.GamesRunning.Inc()

	outcome := metrics.GameCompleted
	defer func() {
		if r := recover(); r != nil {
			outcome = metrics.GamePanicked
			logger.Error("game panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
		game.Close()

		p.running.Add(-1)
		p.metrics.GamesRunning.Dec()
		p.metrics.GamesFinished.WithLabelValues(outcome).Inc()
		p.metrics.GameDuration.Observe(p.clock.Since(start).Seconds())
	}()

	players := game.Usernames()
	logger.Info("game started", slog.Any("players", players))
	p.publisher.Publish(ctx, model.Event{
		Type:      model.EventGameStarted,
		Timestamp: start,
		GameID:    game.ID,
		Payload:   model.GameStartedPayload{Players: players},
	})

	for _, h := range game.Players {
		h.MarkInGame()
		_ = h.SendKind(protocol.KindGameStart, string(game.ID))
	}

	result, err := p.launcher.Launch(ctx, game)
	if err != nil {
		outcome = metrics.GameAborted
		logger.Warn("game aborted", slog.String("error", err.Error()))
	}
	result.ID = game.ID

	logger.Info("game finished",
		slog.String("outcome", outcome),
		slog.Any("scores", result.Scores),
		slog.String("winner", result.Winner),
		slog.Duration("duration", p.clock.Since(start)))
	p.publisher.Publish(ctx, model.Event{
		Type:      model.EventGameCompleted,
		Timestamp: p.clock.Now(),
		GameID:    game.ID,
		Payload:   model.GameCompletedPayload{Result: result},
	})
}
