package events

import (
	"context"
	"log/slog"

	"github.com/mcoot/quizmatch/internal/model"
)

// LogSink writes events to a structured logger
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "events"))}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, event model.Event) error {
	attrs := []any{
		slog.String("type", string(event.Type)),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.GameID != "" {
		attrs = append(attrs, slog.String("game_id", string(event.GameID)))
	}
	if event.Username != "" {
		attrs = append(attrs, slog.String("username", event.Username))
	}
	if event.Payload != nil {
		attrs = append(attrs, slog.Any("payload", event.Payload))
	}
	s.logger.InfoContext(ctx, "event", attrs...)
	return nil
}

func (s *LogSink) Close() error { return nil }
