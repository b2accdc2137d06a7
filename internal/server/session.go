package server

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/mcoot/quizmatch/internal/handle"
	"github.com/mcoot/quizmatch/internal/metrics"
	"github.com/mcoot/quizmatch/internal/protocol"
	"github.com/mcoot/quizmatch/internal/services/auth"
)

// Attempt kinds for auth metrics
const (
	attemptLogin     = "login"
	attemptRegister  = "register"
	attemptReconnect = "reconnect"
)

// session drives one connection through the protocol until admission or close
type session struct {
	srv    *Server
	h      *handle.Handle
	logger *slog.Logger
	state  State
}

// step is the outcome of one pre-admission exchange
type step int

const (
	stepContinue step = iota // back to Authenticating
	stepAdmitted             // player is in the queue
	stepIdle                 // identity already online
	stepClose
)

func (s *session) run(ctx context.Context) {
	defer s.transition(StateClosed)

	if !s.send(protocol.KindWelcome, "") || !s.send(protocol.KindAuthRequest, "") {
		return
	}
	s.transition(StateAuthenticating)

	for {
		msg, ok := s.receive(ctx, "")
		if !ok {
			return
		}

		var next step
		switch msg.Kind {
		case protocol.KindUsername:
			next = s.login(ctx, msg.Content)
		case protocol.KindRegister:
			next = s.register(ctx, msg)
		case protocol.KindReconnect:
			next = s.reconnect(ctx)
		default:
			s.logger.Debug("unexpected message while authenticating", slog.String("kind", msg.Kind.String()))
			s.send(protocol.KindAuthFail, "")
			next = stepClose
		}

		switch next {
		case stepContinue:
			s.transition(StateAuthenticating)
		case stepAdmitted:
			s.waitQueued()
			return
		case stepIdle:
			s.transition(StateIdle)
			<-s.h.Done()
			return
		case stepClose:
			return
		}
	}
}

// login handles USERNAME -> AUTH_PASSWORD -> PASSWORD
func (s *session) login(ctx context.Context, username string) step {
	if username == "" {
		s.recordAttempt(attemptLogin, metrics.OutcomeFailure)
		s.send(protocol.KindAuthFail, "")
		return stepClose
	}
	if !s.send(protocol.KindPasswordRequest, "") {
		return stepClose
	}

	msg, ok := s.receive(ctx, attemptLogin)
	if !ok {
		return stepClose
	}
	if msg.Kind != protocol.KindPassword {
		s.recordAttempt(attemptLogin, metrics.OutcomeFailure)
		s.send(protocol.KindAuthFail, "")
		return stepClose
	}

	logger := s.logger.With(slog.String("username", username))
	if err := s.srv.auth.Authenticate(ctx, username, msg.Content); err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Error("authentication error", slog.String("error", err.Error()))
		}
		logger.Info("authentication failed")
		s.recordAttempt(attemptLogin, metrics.OutcomeFailure)
		s.send(protocol.KindAuthFail, "")
		return stepClose
	}

	if err := s.srv.auth.Claim(username); err != nil {
		logger.Info("player already logged in")
		s.recordAttempt(attemptLogin, metrics.OutcomeAlreadyLoggedIn)
		s.send(protocol.KindAlreadyLoggedIn, "")
		return stepIdle
	}
	s.transition(StateAuthenticated)

	token, err := s.srv.auth.IssueSessionToken(ctx, username)
	if err != nil {
		logger.Error("issuing session token failed", slog.String("error", err.Error()))
		s.srv.auth.Release(username)
		s.send(protocol.KindAuthFail, "")
		return stepClose
	}
	s.srv.metrics.TokensIssued.Inc()
	s.h.SetSessionToken(token)

	s.recordAttempt(attemptLogin, metrics.OutcomeSuccess)
	if !s.send(protocol.KindAuthSuccess, "") || !s.send(protocol.KindTokenIssue, token) {
		s.srv.auth.Release(username)
		return stepClose
	}

	return s.admit(ctx, username, false, func(position, size int) error {
		return s.h.SendKind(protocol.KindQueued, strconv.Itoa(position)+" "+strconv.Itoa(size))
	})
}

// register handles REGISTER u p
func (s *session) register(ctx context.Context, msg protocol.Message) step {
	s.transition(StateRegistering)

	fields := msg.Fields()
	if len(fields) != 2 {
		s.recordAttempt(attemptRegister, metrics.OutcomeFailure)
		s.send(protocol.KindRegisterFail, "")
		return stepClose
	}
	username, password := fields[0], fields[1]
	logger := s.logger.With(slog.String("username", username))

	if err := s.srv.auth.CreateAccount(ctx, username, password); err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameExists),
			errors.Is(err, auth.ErrInvalidUsername),
			errors.Is(err, auth.ErrInvalidPassword):
			logger.Info("registration rejected", slog.String("reason", err.Error()))
		default:
			logger.Error("registration error", slog.String("error", err.Error()))
		}
		s.recordAttempt(attemptRegister, metrics.OutcomeFailure)
		s.send(protocol.KindRegisterFail, "")
		return stepClose
	}

	s.recordAttempt(attemptRegister, metrics.OutcomeSuccess)
	if !s.send(protocol.KindRegisterSuccess, "") || !s.send(protocol.KindAuthRequest, "") {
		return stepClose
	}
	return stepContinue
}

// reconnect handles RECONNECT -> TOKEN_REQUEST -> TOKEN_REPLY
func (s *session) reconnect(ctx context.Context) step {
	s.transition(StateReconnecting)

	if !s.send(protocol.KindTokenRequest, "") {
		return stepClose
	}
	msg, ok := s.receive(ctx, attemptReconnect)
	if !ok {
		return stepClose
	}
	if msg.Kind != protocol.KindTokenReply {
		s.recordAttempt(attemptReconnect, metrics.OutcomeFailure)
		s.send(protocol.KindReconnectFail, "")
		return stepClose
	}

	username, err := s.srv.auth.ResolveSessionToken(ctx, msg.Content)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidSession) {
			s.logger.Error("resolving session token failed", slog.String("error", err.Error()))
		}
		s.logger.Info("reconnect rejected")
		s.recordAttempt(attemptReconnect, metrics.OutcomeFailure)
		s.send(protocol.KindReconnectFail, "")
		return stepClose
	}

	logger := s.logger.With(slog.String("username", username))
	if err := s.srv.auth.Claim(username); err != nil {
		logger.Info("reconnecting player already logged in")
		s.recordAttempt(attemptReconnect, metrics.OutcomeAlreadyLoggedIn)
		s.send(protocol.KindReconnectAlreadyLoggedIn, "")
		return stepIdle
	}
	s.h.SetSessionToken(msg.Content)
	s.recordAttempt(attemptReconnect, metrics.OutcomeSuccess)

	return s.admit(ctx, username, true, func(position, _ int) error {
		return s.h.SendKind(protocol.KindReconnectSuccess, strconv.Itoa(position))
	})
}

// admit fetches the rank and queues the claimed player
func (s *session) admit(ctx context.Context, username string, reconnected bool, onQueued func(position, size int) error) step {
	rank, err := s.srv.auth.GetRank(ctx, username)
	if err != nil {
		s.logger.Error("loading rank failed", slog.String("username", username), slog.String("error", err.Error()))
		s.srv.auth.Release(username)
		return stepClose
	}
	s.h.SetIdentity(username, rank)

	if err := s.srv.matchmaker.Enqueue(ctx, s.h, reconnected, onQueued); err != nil {
		s.logger.Warn("admission failed", slog.String("username", username), slog.String("error", err.Error()))
		s.srv.auth.Release(username)
		return stepClose
	}
	s.transition(StateQueued)
	return stepAdmitted
}

// waitQueued holds the connection until it closes, then tidies the queue and the online set
func (s *session) waitQueued() {
	username := s.h.Username()
	defer s.srv.auth.Release(username)

	select {
	case <-s.h.InGame():
		s.transition(StateInGame)
		<-s.h.Done()
	case <-s.h.Done():
	}

	if s.srv.matchmaker.Queue().Remove(s.h) {
		s.logger.Info("queued player left", slog.String("username", username))
	}
}

// receive reads the next pre-admission message, bounded by AuthTimeout
// On failure the connection is answered as appropriate and the caller must close
func (s *session) receive(ctx context.Context, attempt string) (protocol.Message, bool) {
	readCtx, cancel := context.WithTimeout(ctx, s.srv.cfg.AuthTimeout)
	defer cancel()

	msg, err := s.h.Receive(readCtx)
	switch {
	case err == nil:
		return msg, true
	case errors.Is(err, protocol.ErrUnknownKind):
		s.logger.Debug("malformed message while authenticating", slog.String("error", err.Error()))
		if attempt != "" {
			s.recordAttempt(attempt, metrics.OutcomeFailure)
		}
		s.send(protocol.KindAuthFail, "")
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Info("authentication timed out")
		if attempt == "" {
			attempt = attemptLogin
		}
		s.recordAttempt(attempt, metrics.OutcomeTimeout)
	}
	return protocol.Message{}, false
}

func (s *session) send(kind protocol.Kind, content string) bool {
	return s.h.SendKind(kind, content) == nil
}

func (s *session) transition(to State) {
	if s.state == to {
		return
	}
	s.logger.Debug("state transition", slog.String("from", s.state.String()), slog.String("to", to.String()))
	s.state = to
}

func (s *session) recordAttempt(kind, outcome string) {
	s.srv.metrics.AuthAttempts.WithLabelValues(kind, outcome).Inc()
}
