package protocol

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindTokensAreInjective(t *testing.T) {
	seen := make(map[string]Kind)
	for _, k := range Kinds() {
		token := k.Token()
		require.NotEmpty(t, token, "kind %d has no token", int(k))
		if other, dup := seen[token]; dup {
			t.Fatalf("token %q used by %v and %v", token, other, k)
		}
		seen[token] = k
	}
}

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.Token())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestParseKindUnknown(t *testing.T) {
	_, err := ParseKind("HELLO")
	assert.ErrorIs(t, err, ErrUnknownKind)

	// Tokens are case sensitive
	_, err = ParseKind("ping")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Message
		wantErr error
	}{
		{name: "bare kind", line: "PING", want: Message{Kind: KindHeartbeatProbe}},
		{name: "with content", line: "USERNAME alice", want: Message{Kind: KindUsername, Content: "alice"}},
		{name: "multi field content", line: "REGISTER alice secret", want: Message{Kind: KindRegister, Content: "alice secret"}},
		{name: "surrounding whitespace", line: "  QUEUED   2 5  ", want: Message{Kind: KindQueued, Content: "2 5"}},
		{name: "tab separator", line: "ANSWER\ttrue", want: Message{Kind: KindAnswer, Content: "true"}},
		{name: "blank", line: "   ", wantErr: ErrEmptyMessage},
		{name: "unknown", line: "FOO bar", wantErr: ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessageStringInvertsParse(t *testing.T) {
	for _, msg := range []Message{
		New(KindWelcome, ""),
		New(KindTokenIssue, "0b7c6a5e-4a1b-4c9e-9d59-2a1f1f3c8e11"),
		New(KindQueued, "1 3"),
		New(KindQuestionPrompt, "Is the sky blue?"),
	} {
		parsed, err := Parse(msg.String())
		require.NoError(t, err)
		assert.Equal(t, msg, parsed)
	}
}

func TestMessageFields(t *testing.T) {
	msg := New(KindRegister, "alice  secret")
	assert.Equal(t, []string{"alice", "secret"}, msg.Fields())
}

func TestConnReadWrite(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	left, right := NewConn(a), NewConn(b)

	go func() {
		_ = left.WriteMessage(New(KindUsername, "alice"), time.Second)
	}()

	msg, err := right.ReadMessageTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, New(KindUsername, "alice"), msg)
}

func TestConnSkipsBlankLinesAndStripsCR(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_, _ = a.Write([]byte("\r\n\nPONG\r\n"))
	}()

	msg, err := NewConn(b).ReadMessageTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, KindHeartbeatReply, msg.Kind)
}

func TestConnUnknownKindKeepsStreamUsable(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_, _ = a.Write([]byte("BOGUS\nPING\n"))
	}()

	conn := NewConn(b)
	_, err := conn.ReadMessageTimeout(time.Second)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.False(t, IsTransportError(err))

	msg, err := conn.ReadMessageTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, KindHeartbeatProbe, msg.Kind)
}

func TestConnRejectsOverlongLine(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_, _ = a.Write([]byte("INFO " + strings.Repeat("x", MaxLineLength) + "\n"))
	}()

	_, err := NewConn(b).ReadMessageTimeout(time.Second)
	assert.ErrorIs(t, err, ErrLineTooLong)
	assert.True(t, IsTransportError(err))
}

func TestConnReadTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	_, err := NewConn(b).ReadMessageTimeout(20 * time.Millisecond)
	require.Error(t, err)

	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestRoundTaggedContent(t *testing.T) {
	round, rest, err := SplitRound(WithRound(2, "Is the sky blue?"))
	require.NoError(t, err)
	assert.Equal(t, 2, round)
	assert.Equal(t, "Is the sky blue?", rest)

	round, rest, err = SplitRound("3")
	require.NoError(t, err)
	assert.Equal(t, 3, round)
	assert.Empty(t, rest)

	for _, content := range []string{"", "true", "0 true", "-1 false"} {
		_, _, err := SplitRound(content)
		assert.ErrorIs(t, err, ErrMissingRound, content)
	}
}
