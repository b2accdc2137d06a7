package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/handle"
	"github.com/mcoot/quizmatch/internal/metrics"
	"github.com/mcoot/quizmatch/internal/protocol"
	"github.com/mcoot/quizmatch/internal/services/auth"
	"github.com/mcoot/quizmatch/internal/services/matchmaking"
)

// Config holds TCP server settings
type Config struct {
	AuthTimeout      time.Duration // bound on every read before admission
	MaxAcceptBackoff time.Duration
	Handle           handle.Config
}

// DefaultConfig returns default TCP server settings
func DefaultConfig() Config {
	return Config{
		AuthTimeout:      60 * time.Second,
		MaxAcceptBackoff: time.Second,
		Handle:           handle.DefaultConfig(),
	}
}

// Server accepts player connections and runs the protocol for each
type Server struct {
	auth       *auth.Service
	matchmaker *matchmaking.Matchmaker
	metrics    *metrics.Metrics
	clock      clock.Clock
	logger     *slog.Logger
	cfg        Config

	wg sync.WaitGroup
}

// New creates a Server
func New(
	authService *auth.Service,
	matchmaker *matchmaking.Matchmaker,
	m *metrics.Metrics,
	clock clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Server {
	defaults := DefaultConfig()
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaults.AuthTimeout
	}
	if cfg.MaxAcceptBackoff <= 0 {
		cfg.MaxAcceptBackoff = defaults.MaxAcceptBackoff
	}
	return &Server{
		auth:       authService,
		matchmaker: matchmaker,
		metrics:    m,
		clock:      clock,
		logger:     logger.With(slog.String("component", "server")),
		cfg:        cfg,
	}
}

// Serve accepts connections until ctx is cancelled or the listener is closed,
// then waits for every connection handler to return
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("accepting connections",
		slog.String("addr", ln.Addr().String()),
		slog.String("mode", string(s.matchmaker.Mode())))

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("listener closed")
				return nil
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(backoff*2, s.cfg.MaxAcceptBackoff)
			}
			s.logger.Warn("accept failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff))

			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = 0

		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()

	s.metrics.ConnectionsAccepted.Inc()
	s.metrics.ConnectionsOpen.Inc()
	defer s.metrics.ConnectionsOpen.Dec()

	h := handle.New(protocol.NewConn(conn), s.clock, s.logger, s.cfg.Handle)
	defer h.Close()

	defer func() {
		if r := recover(); r != nil {
			h.Logger().Error("connection handler panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	h.SetControlHandler(s.handleControl)
	h.Start(ctx)
	h.Logger().Debug("connection accepted")

	sess := &session{srv: s, h: h, logger: h.Logger()}
	sess.run(ctx)
}

// handleControl serves out-of-band requests arriving while the owner is busy elsewhere
func (s *Server) handleControl(ctx context.Context, h *handle.Handle, msg protocol.Message) {
	if msg.Kind != protocol.KindTokenRefresh {
		return
	}
	username := h.Username()
	if username == "" {
		_ = h.SendKind(protocol.KindInfo, "log in before requesting a token")
		return
	}

	token, err := s.auth.IssueSessionToken(ctx, username)
	if err != nil {
		h.Logger().Error("token refresh failed", slog.String("username", username), slog.String("error", err.Error()))
		return
	}
	s.metrics.TokensIssued.Inc()
	h.SetSessionToken(token)
	_ = h.SendKind(protocol.KindTokenIssue, token)
}
