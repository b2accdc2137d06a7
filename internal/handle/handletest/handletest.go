// Package handletest provides connected handle/peer pairs for tests
package handletest

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/handle"
	"github.com/mcoot/quizmatch/internal/protocol"
	"github.com/mcoot/quizmatch/internal/testutil"
)

// DefaultTimeout bounds every Expect call
const DefaultTimeout = 2 * time.Second

// Peer is the far end of a test connection
// A background goroutine reads everything the other side sends
type Peer struct {
	conn     *protocol.Conn
	messages chan protocol.Message
	closed   chan struct{}
	autoPong atomic.Bool
}

// NewPeer starts reading from conn; with autoPong set, probes are answered and not recorded
func NewPeer(conn net.Conn, autoPong bool) *Peer {
	p := &Peer{
		conn:     protocol.NewConn(conn),
		messages: make(chan protocol.Message, 64),
		closed:   make(chan struct{}),
	}
	p.autoPong.Store(autoPong)
	go p.readLoop()
	return p
}

// New returns a started handle with the given identity and its connected peer
func New(t testing.TB, ctx context.Context, username string, rank int) (*handle.Handle, *Peer) {
	return NewWithClock(t, ctx, clock.New(), username, rank)
}

// NewWithClock is New with an explicit clock
func NewWithClock(t testing.TB, ctx context.Context, c clock.Clock, username string, rank int) (*handle.Handle, *Peer) {
	t.Helper()
	server, client := net.Pipe()

	h := handle.New(protocol.NewConn(server), c, testutil.NopLogger(), handle.Config{WriteTimeout: time.Second})
	h.SetIdentity(username, rank)
	h.Start(ctx)

	peer := NewPeer(client, true)
	t.Cleanup(func() {
		h.Close()
		peer.Close()
	})
	return h, peer
}

// NewStalled returns a started handle whose peer never reads, so every write blocks
func NewStalled(t testing.TB, ctx context.Context, c clock.Clock, username string, rank int, writeTimeout time.Duration) *handle.Handle {
	t.Helper()
	server, client := net.Pipe()

	h := handle.New(protocol.NewConn(server), c, testutil.NopLogger(), handle.Config{WriteTimeout: writeTimeout})
	h.SetIdentity(username, rank)
	h.Start(ctx)

	t.Cleanup(func() {
		h.Close()
		_ = client.Close()
	})
	return h
}

// SetAutoPong toggles automatic heartbeat replies
func (p *Peer) SetAutoPong(on bool) {
	p.autoPong.Store(on)
}

// Send writes a message to the server
func (p *Peer) Send(kind protocol.Kind, content string) error {
	return p.conn.WriteMessage(protocol.New(kind, content), time.Second)
}

// Next returns the next recorded message
func (p *Peer) Next(timeout time.Duration) (protocol.Message, error) {
	select {
	case msg := <-p.messages:
		return msg, nil
	case <-time.After(timeout):
		return protocol.Message{}, fmt.Errorf("no message within %s", timeout)
	}
}

// Expect fails the test unless the next message has the given kind
func (p *Peer) Expect(t testing.TB, kind protocol.Kind) protocol.Message {
	t.Helper()
	msg, err := p.Next(DefaultTimeout)
	if err != nil {
		t.Fatalf("expecting %s: %v", kind, err)
	}
	if msg.Kind != kind {
		t.Fatalf("expecting %s, got %q", kind, msg.String())
	}
	return msg
}

// ExpectEventually skips messages until one of the given kind arrives
func (p *Peer) ExpectEventually(t testing.TB, kind protocol.Kind) protocol.Message {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for {
		msg, err := p.Next(time.Until(deadline))
		if err != nil {
			t.Fatalf("expecting %s eventually: %v", kind, err)
		}
		if msg.Kind == kind {
			return msg
		}
	}
}

// WaitClosed reports whether the server closed the connection within timeout
func (p *Peer) WaitClosed(timeout time.Duration) bool {
	select {
	case <-p.closed:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close closes the client end
func (p *Peer) Close() {
	_ = p.conn.Close()
}

func (p *Peer) readLoop() {
	defer close(p.closed)
	for {
		msg, err := p.conn.ReadMessage()
		if err != nil {
			if protocol.IsTransportError(err) {
				return
			}
			continue
		}
		if msg.Kind == protocol.KindHeartbeatProbe && p.autoPong.Load() {
			_ = p.Send(protocol.KindHeartbeatReply, "")
			continue
		}
		select {
		case p.messages <- msg:
		default:
		}
	}
}
