package response

import (
	"time"

	"github.com/mcoot/quizmatch/internal/handle"
	"github.com/mcoot/quizmatch/internal/model"
)

// Health is the response for the health endpoint
type Health struct {
	Status  string `json:"status"`
	Online  int    `json:"online"`
	Queued  int    `json:"queued"`
	Running int    `json:"running_games"`
}

// QueueEntry is one waiting player
type QueueEntry struct {
	Position      int       `json:"position"`
	Username      string    `json:"username"`
	Rank          int       `json:"rank"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// QueueStatus describes the matchmaking queue
type QueueStatus struct {
	Mode    string       `json:"mode"`
	Length  int          `json:"length"`
	Players []QueueEntry `json:"players"`
}

// QueueStatusFromHandles builds a QueueStatus from a queue snapshot
func QueueStatusFromHandles(mode model.MatchMode, handles []*handle.Handle) QueueStatus {
	players := make([]QueueEntry, 0, len(handles))
	for i, h := range handles {
		players = append(players, QueueEntry{
			Position:      i + 1,
			Username:      h.Username(),
			Rank:          h.Rank(),
			LastHeartbeat: h.LastHeartbeatAt(),
		})
	}
	return QueueStatus{
		Mode:    string(mode),
		Length:  len(players),
		Players: players,
	}
}

// Event represents a lifecycle event in API responses
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	GameID    string    `json:"game_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// EventFromModel converts a model.Event
func EventFromModel(e model.Event) Event {
	return Event{
		Type:      string(e.Type),
		Timestamp: e.Timestamp,
		GameID:    string(e.GameID),
		Username:  e.Username,
		Payload:   e.Payload,
	}
}

// EventsFromModel converts a slice of model.Event
func EventsFromModel(events []model.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		out = append(out, EventFromModel(e))
	}
	return out
}

// PoolStatus describes the game session pool
type PoolStatus struct {
	Capacity int     `json:"capacity"`
	Running  int     `json:"running"`
	Queued   int     `json:"queued"`
	Recent   []Event `json:"recent"`
}

// Player is a player's public record
type Player struct {
	Username string `json:"username"`
	Rank     int    `json:"rank"`
	Online   bool   `json:"online"`
}
