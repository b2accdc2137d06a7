package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/quizmatch/internal/model"
)

// HubConfig holds event hub settings
type HubConfig struct {
	BufferSize   int
	RecentSize   int
	WriteTimeout time.Duration
}

// DefaultHubConfig returns default hub settings
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:   256,
		RecentSize:   100,
		WriteTimeout: 2 * time.Second,
	}
}

// Hub fans events out to its sinks from a single goroutine
type Hub struct {
	sinks  []Sink
	cfg    HubConfig
	logger *slog.Logger

	broadcast chan model.Event
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	recent []model.Event
}

// NewHub creates a Hub writing to the given sinks
func NewHub(logger *slog.Logger, cfg HubConfig, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultHubConfig().BufferSize
	}
	return &Hub{
		sinks:     sinks,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "events")),
		broadcast: make(chan model.Event, cfg.BufferSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Run delivers events until Close is called
func (h *Hub) Run() {
	defer close(h.stopped)
	h.logger.Info("event hub started", slog.Int("sinks", len(h.sinks)))

	for {
		select {
		case event := <-h.broadcast:
			h.deliver(event)
		case <-h.done:
			// Flush what is already buffered
			for {
				select {
				case event := <-h.broadcast:
					h.deliver(event)
				default:
					h.closeSinks()
					h.logger.Info("event hub stopped")
					return
				}
			}
		}
	}
}

// Publish queues an event for delivery, dropping it if the buffer is full
func (h *Hub) Publish(_ context.Context, event model.Event) {
	h.remember(event)

	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("event dropped - hub buffer full", slog.String("type", string(event.Type)))
	}
}

// Recent returns up to the last RecentSize events, oldest first
func (h *Hub) Recent() []model.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.Event, len(h.recent))
	copy(out, h.recent)
	return out
}

// Close stops the hub after flushing buffered events and waits for Run to return
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
	<-h.stopped
}

func (h *Hub) deliver(event model.Event) {
	for _, sink := range h.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
		err := sink.Write(ctx, event)
		cancel()
		if err != nil {
			h.logger.Warn("event sink write failed",
				slog.String("sink", sink.Name()),
				slog.String("type", string(event.Type)),
				slog.String("error", err.Error()))
		}
	}
}

func (h *Hub) remember(event model.Event) {
	if h.cfg.RecentSize <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = append(h.recent, event)
	if over := len(h.recent) - h.cfg.RecentSize; over > 0 {
		h.recent = append(h.recent[:0:0], h.recent[over:]...)
	}
}

func (h *Hub) closeSinks() {
	for _, sink := range h.sinks {
		if err := sink.Close(); err != nil {
			h.logger.Warn("event sink close failed", slog.String("sink", sink.Name()), slog.String("error", err.Error()))
		}
	}
}
