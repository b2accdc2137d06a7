package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// MaxLineLength bounds a single protocol line, terminator included
const MaxLineLength = 4096

// Conn frames protocol messages over a net.Conn
// Reads must come from a single goroutine; writes are not serialised here
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
}

// NewConn wraps a network connection
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, MaxLineLength),
	}
}

// ReadMessage blocks until the next non-blank line arrives and decodes it
// ErrUnknownKind leaves the stream usable; any other error does not
func (c *Conn) ReadMessage() (Message, error) {
	for {
		line, err := c.readLine()
		if err != nil {
			return Message{}, err
		}
		msg, err := Parse(line)
		if errors.Is(err, ErrEmptyMessage) {
			continue
		}
		return msg, err
	}
}

// ReadMessageTimeout reads the next message, failing once the deadline passes
func (c *Conn) ReadMessageTimeout(timeout time.Duration) (Message, error) {
	if timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Message{}, err
		}
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}
	return c.ReadMessage()
}

// WriteMessage encodes and writes one message, bounded by timeout when positive
func (c *Conn) WriteMessage(msg Message, timeout time.Duration) error {
	if timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.conn, msg.String()+"\n")
	return err
}

// Close closes the underlying connection
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address
func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *Conn) readLine() (string, error) {
	line, err := c.reader.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrLineTooLong, MaxLineLength)
	}
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return string(bytes.TrimRight(line, "\r\n")), nil
		}
		return "", err
	}
	return string(bytes.TrimRight(line, "\r\n")), nil
}

// IsTransportError reports whether err came from the connection rather than decoding
func IsTransportError(err error) bool {
	return err != nil && !errors.Is(err, ErrUnknownKind) && !errors.Is(err, ErrEmptyMessage)
}
