package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Queue events
	EventPlayerQueued  EventType = "player_queued"
	EventPlayerEvicted EventType = "player_evicted"

	// Game events
	EventMatchFormed   EventType = "match_formed"
	EventGameStarted   EventType = "game_started"
	EventGameCompleted EventType = "game_completed"
)

// Event is the base structure for all events
type Event struct {
	Type      EventType
	Timestamp time.Time
	GameID    GameID // Empty for queue-only events
	Username  string // The player who triggered or is affected
	Payload   any    // Type-specific data
}

// PlayerQueuedPayload contains data for player queued events
type PlayerQueuedPayload struct {
	Position    int
	Reconnected bool
}

// PlayerEvictedPayload contains data for player evicted events
type PlayerEvictedPayload struct {
	Reason string
}

// MatchFormedPayload contains data for match formed events
type MatchFormedPayload struct {
	Mode    MatchMode
	Players []string
	Ranks   []int
}

// GameStartedPayload contains data for game started events
type GameStartedPayload struct {
	Players []string
}

// GameCompletedPayload contains data for game completed events
type GameCompletedPayload struct {
	Result GameResult
}
