package storage

import (
	"context"

	"github.com/mcoot/quizmatch/internal/model"
)

// Storage defines the interface for identity persistence
type Storage interface {
	// Player operations
	CreatePlayer(ctx context.Context, player *model.Player) error
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, username string) (*model.Player, error)

	// Session token operations
	// SetSessionTokenHash replaces the player's token digest and its reverse index atomically
	SetSessionTokenHash(ctx context.Context, username, tokenHash string) error
	GetUsernameBySessionTokenHash(ctx context.Context, tokenHash string) (string, error)
}
