package matchmaking

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/events"
	"github.com/mcoot/quizmatch/internal/handle"
	"github.com/mcoot/quizmatch/internal/metrics"
	"github.com/mcoot/quizmatch/internal/model"
)

// Config holds matchmaking settings
type Config struct {
	Mode           model.MatchMode
	PlayersPerGame int
	RankThreshold  int
}

// DefaultConfig returns default matchmaking settings
func DefaultConfig() Config {
	return Config{
		Mode:           model.MatchModeFIFO,
		PlayersPerGame: 3,
		RankThreshold:  100,
	}
}

// Submitter accepts formed games for play
type Submitter interface {
	Submit(ctx context.Context, game *Game) error
}

// QueuedFunc is told a player's queue position and the queue size right after admission
type QueuedFunc func(position, size int) error

// Matchmaker forms games from the queue under the configured policy
type Matchmaker struct {
	queue     *Queue
	policy    Policy
	size      int
	submitter Submitter
	publisher events.Publisher
	metrics   *metrics.Metrics
	clock     clock.Clock
	logger    *slog.Logger
}

// New creates a Matchmaker; the mode selects exactly one policy
func New(
	queue *Queue,
	submitter Submitter,
	publisher events.Publisher,
	m *metrics.Metrics,
	clock clock.Clock,
	logger *slog.Logger,
	cfg Config,
) (*Matchmaker, error) {
	if cfg.PlayersPerGame <= 0 {
		cfg.PlayersPerGame = DefaultConfig().PlayersPerGame
	}
	policy, err := NewPolicy(cfg.Mode, cfg.RankThreshold)
	if err != nil {
		return nil, err
	}
	return &Matchmaker{
		queue:     queue,
		policy:    policy,
		size:      cfg.PlayersPerGame,
		submitter: submitter,
		publisher: publisher,
		metrics:   m,
		clock:     clock,
		logger:    logger.With(slog.String("component", "matchmaker"), slog.String("mode", string(policy.Mode()))),
	}, nil
}

// Mode returns the active matchmaking mode
func (m *Matchmaker) Mode() model.MatchMode {
	return m.policy.Mode()
}

// Queue returns the underlying queue
func (m *Matchmaker) Queue() *Queue {
	return m.queue
}

// Enqueue admits h to the queue, reports its position through onQueued, then tries to match
// h cannot be matched until the report is written; if onQueued fails it is taken back out
func (m *Matchmaker) Enqueue(ctx context.Context, h *handle.Handle, reconnected bool, onQueued QueuedFunc) error {
	position, size, err := m.queue.PushHeld(h)
	if err != nil {
		return err
	}

	if onQueued != nil {
		if err := onQueued(position, size); err != nil {
			m.queue.Remove(h)
			return fmt.Errorf("reporting queue position: %w", err)
		}
	}
	if !m.queue.Release(h) {
		return model.ErrNotQueued
	}

	h.Logger().Info("player queued",
		slog.String("username", h.Username()),
		slog.Int("rank", h.Rank()),
		slog.Int("position", position))
	m.publisher.Publish(ctx, model.Event{
		Type:      model.EventPlayerQueued,
		Timestamp: m.clock.Now(),
		Username:  h.Username(),
		Payload:   model.PlayerQueuedPayload{Position: position, Reconnected: reconnected},
	})

	m.TryMatch(ctx)
	return nil
}

// TryMatch forms as many games as the policy allows and hands them off for play
// Submission happens outside the queue lock and does not block the caller
func (m *Matchmaker) TryMatch(ctx context.Context) []*Game {
	var games []*Game
	for {
		group := m.queue.Take(m.policy, m.size)
		if group == nil {
			break
		}

		game := &Game{
			ID:        model.GameID(uuid.NewString()),
			Mode:      m.policy.Mode(),
			Players:   group,
			CreatedAt: m.clock.Now(),
		}
		games = append(games, game)

		m.metrics.MatchesFormed.WithLabelValues(string(game.Mode)).Inc()
		m.logger.Info("match formed",
			slog.String("game_id", string(game.ID)),
			slog.Any("players", game.Usernames()),
			slog.Any("ranks", game.Ranks()))
		m.publisher.Publish(ctx, model.Event{
			Type:      model.EventMatchFormed,
			Timestamp: game.CreatedAt,
			GameID:    game.ID,
			Payload: model.MatchFormedPayload{
				Mode:    game.Mode,
				Players: game.Usernames(),
				Ranks:   game.Ranks(),
			},
		})
	}

	submitCtx := context.WithoutCancel(ctx)
	for _, game := range games {
		go m.submit(submitCtx, game)
	}
	return games
}

func (m *Matchmaker) submit(ctx context.Context, game *Game) {
	if err := m.submitter.Submit(ctx, game); err != nil {
		m.logger.Error("game submission failed, closing players",
			slog.String("game_id", string(game.ID)),
			slog.String("error", err.Error()))
		game.Close()
	}
}
