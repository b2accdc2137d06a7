package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/quizmatch/internal/handle/handletest"
	"github.com/mcoot/quizmatch/internal/protocol"
	"github.com/mcoot/quizmatch/internal/testutil"
)

// syncBuffer lets the test read console output while the client writes it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type ClientSuite struct {
	suite.Suite
	tokens *TokenStore
	out    *syncBuffer
	server *handletest.Peer
	done   chan error
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.tokens = NewTokenStore(filepath.Join(s.T().TempDir(), "tokens"))
	s.out = &syncBuffer{}
}

// start runs a client reading console input from the given script
func (s *ClientSuite) start(script string) {
	clientConn, serverConn := net.Pipe()
	s.server = handletest.NewPeer(serverConn, false)
	s.T().Cleanup(s.server.Close)

	console := NewConsole(strings.NewReader(script), s.out)
	c := New(clientConn, console, s.tokens, testutil.NopLogger(), DefaultConfig())

	s.done = make(chan error, 1)
	go func() { s.done <- c.Run(context.Background()) }()
}

func (s *ClientSuite) send(kind protocol.Kind, content string) {
	s.Require().NoError(s.server.Send(kind, content))
}

func (s *ClientSuite) expect(kind protocol.Kind) protocol.Message {
	return s.server.Expect(s.T(), kind)
}

func (s *ClientSuite) waitDone() {
	select {
	case err := <-s.done:
		s.NoError(err)
	case <-time.After(handletest.DefaultTimeout):
		s.FailNow("client did not finish")
	}
}

func (s *ClientSuite) TestLoginAndPlay() {
	s.start("1\nalice\nsecret\nmaybe\nTRUE\n")

	s.send(protocol.KindWelcome, "")
	s.send(protocol.KindAuthRequest, "")
	s.Equal("alice", s.expect(protocol.KindUsername).Content)

	s.send(protocol.KindPasswordRequest, "")
	s.Equal("secret", s.expect(protocol.KindPassword).Content)

	s.send(protocol.KindAuthSuccess, "")
	s.send(protocol.KindTokenIssue, "tok-1")
	s.send(protocol.KindQueued, "1 3")
	s.send(protocol.KindGameStart, "game-1")
	s.send(protocol.KindInfo, "Question 1 of 1: The sky is blue")
	s.send(protocol.KindQuestionPrompt, "1 The sky is blue")
	s.Equal("1 true", s.expect(protocol.KindAnswer).Content)

	s.send(protocol.KindGameOver, "1")
	s.send(protocol.KindDisconnect, "")
	s.waitDone()

	data, err := os.ReadFile(s.tokens.Path("alice"))
	s.Require().NoError(err)
	s.Equal("tok-1", string(data))

	out := s.out.String()
	s.Contains(out, "Logged in as alice.")
	s.Contains(out, "Waiting in queue: position 1 of 3")
	s.Contains(out, "Game starting!")
	s.Contains(out, "Question 1 of 1: The sky is blue")
	s.Contains(out, "Please enter true or false.")
	s.Contains(out, "Game over! Your score: 1")
	s.Contains(out, "Disconnected from server.")
}

func (s *ClientSuite) TestInvalidMenuAndCredentialsReprompt() {
	s.start("9\n1\n\nbad name\nalice\n")

	s.send(protocol.KindWelcome, "")
	s.send(protocol.KindAuthRequest, "")
	s.Equal("alice", s.expect(protocol.KindUsername).Content)

	out := s.out.String()
	s.Contains(out, "Invalid choice, enter 1, 2 or 3.")
	s.Equal(2, strings.Count(out, "Username must be non-empty and contain no spaces."))

	s.send(protocol.KindAuthFail, "")
	s.waitDone()
	s.Contains(s.out.String(), "Authentication failed.")
}

func (s *ClientSuite) TestPingAnsweredWhilePrompting() {
	// no console input yet: the menu prompt blocks until EOF is reached
	pr, pw := io.Pipe()
	clientConn, serverConn := net.Pipe()
	s.server = handletest.NewPeer(serverConn, false)
	s.T().Cleanup(s.server.Close)
	c := New(clientConn, NewConsole(pr, s.out), s.tokens, testutil.NopLogger(), DefaultConfig())
	s.done = make(chan error, 1)
	go func() { s.done <- c.Run(context.Background()) }()

	s.send(protocol.KindWelcome, "")
	s.send(protocol.KindHeartbeatProbe, "")
	s.expect(protocol.KindHeartbeatReply)

	// console EOF ends the session with a disconnect
	s.Require().NoError(pw.Close())
	s.expect(protocol.KindDisconnect)
	s.waitDone()
}

func (s *ClientSuite) TestRegisterThenLogin() {
	s.start("3\nbob\npw\nbob\npw\n")

	s.send(protocol.KindWelcome, "")
	s.send(protocol.KindAuthRequest, "")
	s.Equal("bob pw", s.expect(protocol.KindRegister).Content)

	s.send(protocol.KindRegisterSuccess, "")
	s.send(protocol.KindAuthRequest, "")
	s.Equal("bob", s.expect(protocol.KindUsername).Content)
	s.send(protocol.KindPasswordRequest, "")
	s.Equal("pw", s.expect(protocol.KindPassword).Content)

	s.send(protocol.KindAlreadyLoggedIn, "")
	s.expect(protocol.KindDisconnect)
	s.waitDone()
	s.Contains(s.out.String(), "Account created. Please log in.")
	s.Contains(s.out.String(), "already logged in elsewhere")
}

func (s *ClientSuite) TestRegisterFailCloses() {
	s.start("3\nbob\npw\n")

	s.send(protocol.KindWelcome, "")
	s.expect(protocol.KindRegister)
	s.send(protocol.KindRegisterFail, "")
	s.waitDone()
	s.Contains(s.out.String(), "Registration failed")
}

func (s *ClientSuite) TestReconnectRotatesToken() {
	s.Require().NoError(s.tokens.Save(s.tokens.Path("carol"), "old-token"))
	s.start("2\ncarol\n")

	s.send(protocol.KindWelcome, "")
	s.send(protocol.KindAuthRequest, "")
	s.expect(protocol.KindReconnect)

	s.send(protocol.KindTokenRequest, "")
	s.Equal("old-token", s.expect(protocol.KindTokenReply).Content)

	s.send(protocol.KindReconnectSuccess, "2")
	s.expect(protocol.KindTokenRefresh)
	s.send(protocol.KindTokenIssue, "new-token")
	s.send(protocol.KindDisconnect, "")
	s.waitDone()

	data, err := os.ReadFile(s.tokens.Path("carol"))
	s.Require().NoError(err)
	s.Equal("new-token", string(data))
	s.Contains(s.out.String(), "Reconnected. Queue position: 2")
}

func (s *ClientSuite) TestReconnectWithMissingTokenDisconnects() {
	s.start("2\nnobody\n")

	s.send(protocol.KindWelcome, "")
	s.expect(protocol.KindReconnect)
	s.send(protocol.KindTokenRequest, "")
	s.expect(protocol.KindDisconnect)
	s.waitDone()
	s.Contains(s.out.String(), "Could not read session token")
}

func (s *ClientSuite) TestReconnectFailCloses() {
	s.Require().NoError(s.tokens.Save(s.tokens.Path("dave"), "stale"))
	s.start("2\ntoken-dave.txt\n")

	s.send(protocol.KindWelcome, "")
	s.expect(protocol.KindReconnect)
	s.send(protocol.KindTokenRequest, "")
	s.Equal("stale", s.expect(protocol.KindTokenReply).Content)
	s.send(protocol.KindReconnectFail, "")
	s.waitDone()
	s.Contains(s.out.String(), "Reconnection failed")
}

func (s *ClientSuite) TestServerCloseEndsRun() {
	s.start("")
	s.server.Close()
	s.waitDone()
}

func (s *ClientSuite) TestContextCancelSendsDisconnect() {
	clientConn, serverConn := net.Pipe()
	s.server = handletest.NewPeer(serverConn, false)
	s.T().Cleanup(s.server.Close)
	c := New(clientConn, NewConsole(strings.NewReader(""), s.out), s.tokens, testutil.NopLogger(), DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	s.expect(protocol.KindDisconnect)
	s.NoError(<-done)
}
