package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mcoot/quizmatch/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
		fmt.Fprintf(o.w, "Online: %d\n", v.Online)
		fmt.Fprintf(o.w, "Queued: %d\n", v.Queued)
		fmt.Fprintf(o.w, "Running games: %d\n", v.Running)
	case response.QueueStatus:
		o.printQueue(v)
	case response.PoolStatus:
		fmt.Fprintf(o.w, "Games running: %d/%d\n", v.Running, v.Capacity)
		fmt.Fprintf(o.w, "Games waiting: %d\n", v.Queued)
		o.printEvents(v.Recent)
	case []response.Event:
		o.printEvents(v)
	case response.Player:
		online := "no"
		if v.Online {
			online = "yes"
		}
		fmt.Fprintf(o.w, "Player: %s\n", v.Username)
		fmt.Fprintf(o.w, "Rank: %d\n", v.Rank)
		fmt.Fprintf(o.w, "Online: %s\n", online)
	default:
		o.printJSON(data)
	}
}

func (o *Output) printQueue(q response.QueueStatus) {
	fmt.Fprintf(o.w, "Mode: %s\n", q.Mode)
	fmt.Fprintf(o.w, "Waiting (%d):\n", q.Length)
	for _, p := range q.Players {
		fmt.Fprintf(o.w, "  %d. %s (rank %d)\n", p.Position, p.Username, p.Rank)
	}
}

func (o *Output) printEvents(events []response.Event) {
	for _, e := range events {
		line := e.Timestamp.Format("15:04:05") + " " + e.Type
		if e.GameID != "" {
			line += " game=" + e.GameID
		}
		if e.Username != "" {
			line += " player=" + e.Username
		}
		fmt.Fprintln(o.w, line)
	}
}
