package handle

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/quizmatch/internal/dependencies/mocks"
	"github.com/mcoot/quizmatch/internal/protocol"
	"github.com/mcoot/quizmatch/internal/testutil"
)

type HandleSuite struct {
	suite.Suite
	clock  *mocks.MockClock
	handle *Handle
	peer   *protocol.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func TestHandleSuite(t *testing.T) {
	suite.Run(t, new(HandleSuite))
}

func (s *HandleSuite) SetupTest() {
	server, client := net.Pipe()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.handle = New(protocol.NewConn(server), s.clock, testutil.NopLogger(), Config{WriteTimeout: time.Second})
	s.peer = protocol.NewConn(client)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.handle.Start(s.ctx)
}

func (s *HandleSuite) TearDownTest() {
	s.cancel()
	s.handle.Close()
	_ = s.peer.Close()
}

func (s *HandleSuite) peerSend(kind protocol.Kind, content string) {
	s.Require().NoError(s.peer.WriteMessage(protocol.New(kind, content), time.Second))
}

func (s *HandleSuite) peerRead() protocol.Message {
	msg, err := s.peer.ReadMessageTimeout(time.Second)
	s.Require().NoError(err)
	return msg
}

func (s *HandleSuite) receive() (protocol.Message, error) {
	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	return s.handle.Receive(ctx)
}

func (s *HandleSuite) assertClosed() {
	select {
	case <-s.handle.Done():
	case <-time.After(time.Second):
		s.Fail("handle was not closed")
	}
}

// Reader tests

func (s *HandleSuite) TestNewHandleStartsAlive() {
	s.NotEmpty(s.handle.ID())
	s.Equal(s.clock.Now(), s.handle.LastHeartbeatAt())
	s.False(s.handle.Closed())
}

func (s *HandleSuite) TestProbeFromPeerIsAnswered() {
	s.peerSend(protocol.KindHeartbeatProbe, "")

	s.Equal(protocol.KindHeartbeatReply, s.peerRead().Kind)
}

func (s *HandleSuite) TestMessagesReachOwner() {
	s.peerSend(protocol.KindUsername, "alice")

	msg, err := s.receive()
	s.Require().NoError(err)
	s.Equal(protocol.New(protocol.KindUsername, "alice"), msg)
}

func (s *HandleSuite) TestProbeDoesNotReachOwner() {
	s.peerSend(protocol.KindHeartbeatProbe, "")
	s.peerRead()
	s.peerSend(protocol.KindAnswer, "true")

	msg, err := s.receive()
	s.Require().NoError(err)
	s.Equal(protocol.KindAnswer, msg.Kind)
}

func (s *HandleSuite) TestUnknownKindSurfacesWithoutClosing() {
	s.Require().NoError(s.peer.WriteMessage(protocol.Message{Kind: protocol.KindUnknown, Content: "x"}, time.Second))

	_, err := s.receive()
	s.ErrorIs(err, protocol.ErrUnknownKind)
	s.False(s.handle.Closed())
}

func (s *HandleSuite) TestDisconnectClosesHandle() {
	s.peerSend(protocol.KindDisconnect, "")

	s.assertClosed()

	_, err := s.receive()
	s.ErrorIs(err, ErrClosed)
}

func (s *HandleSuite) TestPeerCloseClosesHandle() {
	_ = s.peer.Close()

	s.assertClosed()
}

func (s *HandleSuite) TestContextCancelClosesHandle() {
	s.cancel()

	s.assertClosed()
}

func (s *HandleSuite) TestTokenRefreshGoesToControlHandler() {
	called := make(chan string, 1)
	s.handle.SetControlHandler(func(ctx context.Context, h *Handle, msg protocol.Message) {
		called <- msg.Kind.Token()
	})

	s.peerSend(protocol.KindTokenRefresh, "")

	select {
	case token := <-called:
		s.Equal("TOKEN_REFRESH", token)
	case <-time.After(time.Second):
		s.Fail("control handler not invoked")
	}

	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()
	_, err := s.handle.Receive(ctx)
	s.ErrorIs(err, context.DeadlineExceeded)
}

// Ping tests

func (s *HandleSuite) TestPingSucceedsOnReply() {
	result := make(chan error, 1)
	go func() {
		result <- s.handle.Ping(s.ctx, time.Second)
	}()

	s.Equal(protocol.KindHeartbeatProbe, s.peerRead().Kind)
	s.peerSend(protocol.KindHeartbeatReply, "")

	s.NoError(<-result)
	s.False(s.handle.Closed())
}

func (s *HandleSuite) TestPingTimesOutWithoutReply() {
	result := make(chan error, 1)
	go func() {
		result <- s.handle.Ping(s.ctx, 50*time.Millisecond)
	}()

	s.Equal(protocol.KindHeartbeatProbe, s.peerRead().Kind)

	s.ErrorIs(<-result, ErrHeartbeatTimeout)
}

func (s *HandleSuite) TestPingRespectsContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	result := make(chan error, 1)
	go func() {
		result <- s.handle.Ping(ctx, time.Minute)
	}()

	s.peerRead()
	cancel()

	s.ErrorIs(<-result, context.Canceled)
}

func (s *HandleSuite) TestLateReplyDoesNotSatisfyNextProbe() {
	result := make(chan error, 1)
	go func() {
		result <- s.handle.Ping(s.ctx, 50*time.Millisecond)
	}()
	s.Equal(protocol.KindHeartbeatProbe, s.peerRead().Kind)
	s.ErrorIs(<-result, ErrHeartbeatTimeout)

	s.peerSend(protocol.KindHeartbeatReply, "")
	// The reader handles lines in order, so this reply means the late one was consumed
	s.peerSend(protocol.KindHeartbeatProbe, "")
	s.Equal(protocol.KindHeartbeatReply, s.peerRead().Kind)

	go func() {
		result <- s.handle.Ping(s.ctx, 100*time.Millisecond)
	}()
	s.Equal(protocol.KindHeartbeatProbe, s.peerRead().Kind)
	s.ErrorIs(<-result, ErrHeartbeatTimeout)
}

func (s *HandleSuite) TestPingIsBoundedWhenPeerStopsReading() {
	server, client := net.Pipe()
	defer client.Close()
	h := New(protocol.NewConn(server), s.clock, testutil.NopLogger(), Config{WriteTimeout: 5 * time.Second})
	h.Start(s.ctx)
	defer h.Close()

	start := time.Now()
	err := h.Ping(s.ctx, 100*time.Millisecond)

	s.ErrorIs(err, ErrHeartbeatTimeout)
	s.Less(time.Since(start), time.Second)
}

// Lifecycle tests

func (s *HandleSuite) TestMarkInGameIsIdempotent() {
	select {
	case <-s.handle.InGame():
		s.Fail("handle should not start in game")
	default:
	}

	s.handle.MarkInGame()
	s.handle.MarkInGame()

	select {
	case <-s.handle.InGame():
	default:
		s.Fail("handle should be in game")
	}
	s.False(s.handle.Closed())
}

func (s *HandleSuite) TestCloseIsIdempotent() {
	s.handle.Close()
	s.handle.Close()

	s.True(s.handle.Closed())
	s.ErrorIs(s.handle.SendKind(protocol.KindInfo, "hi"), ErrClosed)
}

func (s *HandleSuite) TestStateAccessors() {
	s.handle.SetIdentity("alice", 140)
	s.handle.SetSessionToken("tok")
	s.Equal(3, s.handle.AddScore(3))
	s.clock.Advance(time.Minute)
	s.handle.MarkAlive(s.clock.Now())

	s.Equal("alice", s.handle.Username())
	s.Equal(140, s.handle.Rank())
	s.Equal(3, s.handle.Score())
	s.Equal("tok", s.handle.SessionToken())
	s.Equal(s.clock.Now(), s.handle.LastHeartbeatAt())
}
