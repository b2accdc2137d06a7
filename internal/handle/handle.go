package handle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/protocol"
)

// Errors
var (
	ErrClosed           = errors.New("connection closed")
	ErrHeartbeatTimeout = errors.New("heartbeat reply not received in time")
)

// Config holds per-connection settings
type Config struct {
	WriteTimeout time.Duration
	InboxSize    int
}

// DefaultConfig returns default connection settings
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 5 * time.Second,
		InboxSize:    16,
	}
}

// ControlFunc handles out-of-band requests (token refresh) on the reader goroutine
type ControlFunc func(ctx context.Context, h *Handle, msg protocol.Message)

type inbound struct {
	msg protocol.Message
	err error
}

// Handle is the server-side state of one live client connection
type Handle struct {
	id     string
	conn   *protocol.Conn
	clock  clock.Clock
	logger *slog.Logger
	cfg    Config

	writeMu sync.Mutex

	mu              sync.Mutex
	username        string
	rank            int
	score           int
	lastHeartbeatAt time.Time
	sessionToken    string
	pendingPong     chan struct{}
	control         ControlFunc

	inbox     chan inbound
	inGame    chan struct{}
	gameOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// New wraps a protocol connection in a Handle; call Start to begin reading
func New(conn *protocol.Conn, clock clock.Clock, logger *slog.Logger, cfg Config) *Handle {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultConfig().InboxSize
	}
	id := uuid.NewString()
	return &Handle{
		id:              id,
		conn:            conn,
		clock:           clock,
		logger:          logger.With(slog.String("conn_id", id), slog.String("remote", conn.RemoteAddr())),
		cfg:             cfg,
		lastHeartbeatAt: clock.Now(),
		inbox:           make(chan inbound, cfg.InboxSize),
		inGame:          make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start launches the reader goroutine; the handle closes when ctx is cancelled
func (h *Handle) Start(ctx context.Context) {
	go h.readLoop(ctx)
	go func() {
		select {
		case <-ctx.Done():
			h.Close()
		case <-h.done:
		}
	}()
}

// SetControlHandler installs the handler for out-of-band requests
func (h *Handle) SetControlHandler(fn ControlFunc) {
	h.mu.Lock()
	h.control = fn
	h.mu.Unlock()
}

// Messaging

// Send writes a message to the peer; a write failure closes the handle
func (h *Handle) Send(msg protocol.Message) error {
	return h.send(msg, h.cfg.WriteTimeout)
}

func (h *Handle) send(msg protocol.Message, timeout time.Duration) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if h.Closed() {
		return ErrClosed
	}
	if err := h.conn.WriteMessage(msg, timeout); err != nil {
		h.logger.Debug("write failed", slog.String("kind", msg.Kind.String()), slog.String("error", err.Error()))
		h.Close()
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// SendKind is shorthand for Send(protocol.New(kind, content))
func (h *Handle) SendKind(kind protocol.Kind, content string) error {
	return h.Send(protocol.New(kind, content))
}

// Receive returns the next message addressed to the handle's owner
// Malformed lines surface as protocol.ErrUnknownKind without closing the handle
func (h *Handle) Receive(ctx context.Context) (protocol.Message, error) {
	select {
	case in := <-h.inbox:
		return in.msg, in.err
	default:
	}

	select {
	case in := <-h.inbox:
		return in.msg, in.err
	case <-h.done:
		return protocol.Message{}, ErrClosed
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

// Ping sends a heartbeat probe and waits for the reply
// timeout bounds the whole probe, including a write to a peer that is not reading
func (h *Handle) Ping(ctx context.Context, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deadline, _ := probeCtx.Deadline()
	expired := func() bool {
		return ctx.Err() == nil && !time.Now().Before(deadline)
	}

	h.mu.Lock()
	if h.pendingPong == nil {
		h.pendingPong = make(chan struct{})
	}
	pong := h.pendingPong
	h.mu.Unlock()

	writeTimeout := timeout
	if h.cfg.WriteTimeout > 0 && h.cfg.WriteTimeout < writeTimeout {
		writeTimeout = h.cfg.WriteTimeout
	}
	sent := make(chan error, 1)
	go func() {
		sent <- h.send(protocol.New(protocol.KindHeartbeatProbe, ""), writeTimeout)
	}()

	for {
		select {
		case err := <-sent:
			if err != nil {
				h.dropPong(pong)
				if expired() {
					return ErrHeartbeatTimeout
				}
				return err
			}
			sent = nil
		case <-pong:
			return nil
		case <-h.done:
			if expired() {
				return ErrHeartbeatTimeout
			}
			return ErrClosed
		case <-probeCtx.Done():
			h.dropPong(pong)
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrHeartbeatTimeout
		}
	}
}

// dropPong forgets an expired probe so a late reply cannot satisfy the next one
func (h *Handle) dropPong(pong chan struct{}) {
	h.mu.Lock()
	if h.pendingPong == pong {
		h.pendingPong = nil
	}
	h.mu.Unlock()
}

// Lifecycle

// Close closes the connection; safe to call more than once
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		_ = h.conn.Close()
		h.logger.Debug("connection closed")
	})
}

// MarkInGame records that a game has taken ownership of the handle
func (h *Handle) MarkInGame() {
	h.gameOnce.Do(func() { close(h.inGame) })
}

// InGame is closed once a game has started with this handle
func (h *Handle) InGame() <-chan struct{} {
	return h.inGame
}

// Done is closed once the handle is closed
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Closed reports whether the handle has been closed
func (h *Handle) Closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// State accessors

func (h *Handle) ID() string { return h.id }

func (h *Handle) RemoteAddr() string { return h.conn.RemoteAddr() }

func (h *Handle) Logger() *slog.Logger { return h.logger }

// SetIdentity records the authenticated player; called once at admission
func (h *Handle) SetIdentity(username string, rank int) {
	h.mu.Lock()
	h.username = username
	h.rank = rank
	h.mu.Unlock()
}

func (h *Handle) Username() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.username
}

func (h *Handle) Rank() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rank
}

func (h *Handle) Score() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.score
}

// AddScore adjusts the in-game score and returns the new value
func (h *Handle) AddScore(delta int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.score += delta
	return h.score
}

func (h *Handle) LastHeartbeatAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastHeartbeatAt
}

// MarkAlive records a successful heartbeat
func (h *Handle) MarkAlive(t time.Time) {
	h.mu.Lock()
	h.lastHeartbeatAt = t
	h.mu.Unlock()
}

func (h *Handle) SessionToken() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionToken
}

func (h *Handle) SetSessionToken(token string) {
	h.mu.Lock()
	h.sessionToken = token
	h.mu.Unlock()
}

// readLoop is the only reader of the connection
func (h *Handle) readLoop(ctx context.Context) {
	defer h.Close()

	for {
		msg, err := h.conn.ReadMessage()
		if err != nil {
			if protocol.IsTransportError(err) {
				if !h.Closed() {
					h.logger.Debug("read failed", slog.String("error", err.Error()))
				}
				return
			}
			h.deliver(inbound{err: err})
			continue
		}

		switch msg.Kind {
		case protocol.KindHeartbeatProbe:
			_ = h.SendKind(protocol.KindHeartbeatReply, "")
		case protocol.KindHeartbeatReply:
			h.resolvePong()
		case protocol.KindDisconnect:
			h.logger.Debug("peer disconnected")
			return
		case protocol.KindTokenRefresh:
			h.mu.Lock()
			control := h.control
			h.mu.Unlock()
			if control != nil {
				control(ctx, h, msg)
			}
		default:
			h.deliver(inbound{msg: msg})
		}
	}
}

func (h *Handle) resolvePong() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pendingPong != nil {
		close(h.pendingPong)
		h.pendingPong = nil
	}
}

func (h *Handle) deliver(in inbound) {
	select {
	case h.inbox <- in:
	default:
		h.logger.Warn("inbox full, dropping message", slog.String("kind", in.msg.Kind.String()))
	}
}
