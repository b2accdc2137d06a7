package events

import (
	"context"

	"github.com/mcoot/quizmatch/internal/model"
)

// Publisher accepts lifecycle events; publishing never blocks game or queue progress
type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}

// Sink is a destination events are fanned out to
type Sink interface {
	Name() string
	Write(ctx context.Context, event model.Event) error
	Close() error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, model.Event) {}

// Recorder keeps every published event in memory, for tests
type Recorder struct {
	ch chan model.Event
}

// NewRecorder creates a Recorder buffering up to size events
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan model.Event, size)}
}

func (r *Recorder) Publish(_ context.Context, event model.Event) {
	select {
	case r.ch <- event:
	default:
	}
}

// Events returns the channel of recorded events
func (r *Recorder) Events() <-chan model.Event {
	return r.ch
}

// Recorder doubles as a Sink so a Hub can feed it

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Write(ctx context.Context, event model.Event) error {
	r.Publish(ctx, event)
	return nil
}

func (r *Recorder) Close() error { return nil }
