package model

import "time"

// DefaultRank is the skill rank assigned to newly created accounts
const DefaultRank = 100

// Player is the persisted identity record for an account
// Plaintext passwords and session tokens are never stored here
type Player struct {
	Username         string // login username (immutable, no whitespace)
	PasswordHash     string // bcrypt hash
	Rank             int    // skill rank used by ranked matchmaking
	SessionTokenHash string // digest of the current session token, empty if none
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
