package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/quizmatch/internal/dependencies/random"
	"github.com/mcoot/quizmatch/internal/handle"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/protocol"
	"github.com/mcoot/quizmatch/internal/services/matchmaking"
)

// ErrAllPlayersLeft ends a game early when nobody is left to answer
var ErrAllPlayersLeft = errors.New("all players left the game")

// RankUpdater credits rank earned in a game
type RankUpdater interface {
	AddRank(ctx context.Context, username string, delta int) (int, error)
}

// Config holds quiz settings
type Config struct {
	Rounds         int
	AnswerTimeout  time.Duration
	RankPerCorrect int
}

// DefaultConfig returns default quiz settings
func DefaultConfig() Config {
	return Config{
		Rounds:         3,
		AnswerTimeout:  15 * time.Second,
		RankPerCorrect: 10,
	}
}

// Runner plays true/false rounds with a formed game
type Runner struct {
	bank   *Bank
	ranks  RankUpdater
	random random.Random
	logger *slog.Logger
	cfg    Config
}

// NewRunner creates a Runner
func NewRunner(bank *Bank, ranks RankUpdater, rng random.Random, logger *slog.Logger, cfg Config) *Runner {
	defaults := DefaultConfig()
	if cfg.Rounds <= 0 {
		cfg.Rounds = defaults.Rounds
	}
	if cfg.AnswerTimeout <= 0 {
		cfg.AnswerTimeout = defaults.AnswerTimeout
	}
	return &Runner{
		bank:   bank,
		ranks:  ranks,
		random: rng,
		logger: logger.With(slog.String("component", "quiz")),
		cfg:    cfg,
	}
}

// Launch runs the game to completion, mutating each player's score
func (r *Runner) Launch(ctx context.Context, game *matchmaking.Game) (model.GameResult, error) {
	logger := r.logger.With(slog.String("game_id", string(game.ID)))
	questions := r.bank.Pick(r.random, r.cfg.Rounds)

	var runErr error
	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if !anyConnected(game.Players) {
			runErr = ErrAllPlayersLeft
			break
		}
		r.playRound(ctx, game.Players, i+1, len(questions), q)
	}

	result := buildResult(game)
	r.finish(ctx, logger, game, result)
	return result, runErr
}

func (r *Runner) playRound(ctx context.Context, players []*handle.Handle, round, total int, q Question) {
	for _, p := range players {
		_ = p.SendKind(protocol.KindInfo, fmt.Sprintf("Question %d of %d: %s", round, total, q.Text))
		_ = p.SendKind(protocol.KindQuestionPrompt, protocol.WithRound(round, q.Text))
	}

	roundCtx, cancel := context.WithTimeout(ctx, r.cfg.AnswerTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, p := range players {
		if p.Closed() {
			continue
		}
		wg.Add(1)
		go func(p *handle.Handle) {
			defer wg.Done()
			r.collectAnswer(roundCtx, p, round, q)
		}(p)
	}
	wg.Wait()
}

// collectAnswer waits for one valid answer to round from p until ctx expires
// Answers tagged with another round arrived late and are discarded
func (r *Runner) collectAnswer(ctx context.Context, p *handle.Handle, round int, q Question) {
	for {
		msg, err := p.Receive(ctx)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownKind) {
				continue
			}
			if errors.Is(err, context.DeadlineExceeded) {
				_ = p.SendKind(protocol.KindInfo, "Time is up!")
			}
			return
		}
		if msg.Kind != protocol.KindAnswer {
			continue
		}

		answerRound, content, err := protocol.SplitRound(msg.Content)
		if err != nil {
			_ = p.SendKind(protocol.KindInfo, "Please answer true or false")
			continue
		}
		if answerRound != round {
			r.logger.Debug("discarding stale answer",
				slog.String("username", p.Username()),
				slog.Int("round", round),
				slog.Int("answer_round", answerRound))
			continue
		}
		answer, ok := ParseAnswer(content)
		if !ok {
			_ = p.SendKind(protocol.KindInfo, "Please answer true or false")
			continue
		}
		if answer == q.Answer {
			p.AddScore(1)
			_ = p.SendKind(protocol.KindInfo, "Correct!")
		} else {
			_ = p.SendKind(protocol.KindInfo, "Wrong!")
		}
		return
	}
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, game *matchmaking.Game, result model.GameResult) {
	standings := FormatStandings(result.Scores)

	for _, p := range game.Players {
		score := p.Score()
		if score > 0 && r.ranks != nil {
			if _, err := r.ranks.AddRank(ctx, p.Username(), score*r.cfg.RankPerCorrect); err != nil {
				logger.Warn("crediting rank failed",
					slog.String("username", p.Username()),
					slog.String("error", err.Error()))
			}
		}
		if p.Closed() {
			continue
		}
		_ = p.SendKind(protocol.KindGameOver, strconv.Itoa(score))
		_ = p.SendKind(protocol.KindInfo, standings)
		_ = p.SendKind(protocol.KindDisconnect, "")
	}
}

// ParseAnswer accepts true or false in any case
func ParseAnswer(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// FormatStandings renders scores highest first, ties by name
func FormatStandings(scores map[string]int) string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %d", name, scores[name])
	}
	return "Standings: " + strings.Join(parts, ", ")
}

func buildResult(game *matchmaking.Game) model.GameResult {
	result := model.GameResult{
		ID:     game.ID,
		Scores: make(map[string]int, len(game.Players)),
	}
	best, tied := -1, false
	for _, p := range game.Players {
		score := p.Score()
		result.Scores[p.Username()] = score
		switch {
		case score > best:
			best, tied = score, false
			result.Winner = p.Username()
		case score == best:
			tied = true
		}
	}
	if tied {
		result.Winner = ""
	}
	return result
}

func anyConnected(players []*handle.Handle) bool {
	for _, p := range players {
		if !p.Closed() {
			return true
		}
	}
	return false
}
