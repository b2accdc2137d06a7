package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrUnknownKind  = errors.New("unknown message kind")
	ErrEmptyMessage = errors.New("empty message")
	ErrLineTooLong  = errors.New("message line too long")
	ErrMissingRound = errors.New("content has no round number")
)

// Message is a single protocol line: a kind plus optional content
type Message struct {
	Kind    Kind
	Content string
}

// New builds a message of the given kind
func New(kind Kind, content string) Message {
	return Message{Kind: kind, Content: content}
}

// Parse decodes one line (without its terminator) into a Message
func Parse(line string) (Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Message{}, ErrEmptyMessage
	}

	token, rest := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		token, rest = line[:i], strings.TrimSpace(line[i:])
	}

	kind, err := ParseKind(token)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: kind, Content: rest}, nil
}

// String encodes the message as a wire line without the terminator
func (m Message) String() string {
	if m.Content == "" {
		return m.Kind.Token()
	}
	return m.Kind.Token() + " " + m.Content
}

// Fields splits the content on whitespace
func (m Message) Fields() []string {
	return strings.Fields(m.Content)
}

// WithRound prefixes gameplay content with its round number
func WithRound(round int, content string) string {
	if content == "" {
		return strconv.Itoa(round)
	}
	return strconv.Itoa(round) + " " + content
}

// SplitRound separates the round number from round-tagged content
func SplitRound(content string) (int, string, error) {
	token, rest := content, ""
	if i := strings.IndexFunc(content, unicode.IsSpace); i >= 0 {
		token, rest = content[:i], strings.TrimSpace(content[i:])
	}
	round, err := strconv.Atoi(token)
	if err != nil || round <= 0 {
		return 0, "", fmt.Errorf("%w: %q", ErrMissingRound, content)
	}
	return round, rest, nil
}
