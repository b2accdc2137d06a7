package server

// State is a connection's position in the protocol
type State int

const (
	StateConnected State = iota
	StateAuthenticating
	StateAuthenticated
	StateRegistering
	StateReconnecting
	StateQueued
	StateInGame
	StateIdle // identity already online, no admission
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRegistering:
		return "registering"
	case StateReconnecting:
		return "reconnecting"
	case StateQueued:
		return "queued"
	case StateInGame:
		return "in_game"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
