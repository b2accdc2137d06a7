package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mcoot/quizmatch/internal/model"
)

// DefaultSubjectPrefix is prepended to the event type to form the NATS subject
const DefaultSubjectPrefix = "quizmatch.events"

// NATSSink publishes events as JSON on core NATS subjects
type NATSSink struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSSink connects to the NATS server at url
func NewNATSSink(url string, logger *slog.Logger) (*NATSSink, error) {
	logger = logger.With(slog.String("component", "events.nats"))

	conn, err := nats.Connect(url,
		nats.Name("quizmatch-server"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	return &NATSSink{
		conn:   conn,
		prefix: DefaultSubjectPrefix,
		logger: logger,
	}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Write(ctx context.Context, event model.Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(Subject(s.prefix, event.Type), data); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// Close flushes pending publishes and closes the connection
func (s *NATSSink) Close() error {
	if err := s.conn.FlushTimeout(2 * time.Second); err != nil {
		s.logger.Warn("nats flush failed", slog.String("error", err.Error()))
	}
	s.conn.Close()
	return nil
}

// wireEvent is the JSON shape published to subscribers
type wireEvent struct {
	Type      model.EventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	GameID    model.GameID    `json:"game_id,omitempty"`
	Username  string          `json:"username,omitempty"`
	Payload   any             `json:"payload,omitempty"`
}

// Subject returns the subject an event type is published on
func Subject(prefix string, t model.EventType) string {
	return prefix + "." + string(t)
}

// Encode serialises an event for the wire
func Encode(event model.Event) ([]byte, error) {
	data, err := json.Marshal(wireEvent{
		Type:      event.Type,
		Timestamp: event.Timestamp,
		GameID:    event.GameID,
		Username:  event.Username,
		Payload:   event.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	return data, nil
}
