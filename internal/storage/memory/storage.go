package memory

import (
	"context"
	"sync"

	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players    map[string]*model.Player
	tokenIndex map[string]string // token hash -> username
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:    make(map[string]*model.Player),
		tokenIndex: make(map[string]string),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.Username]; ok {
		return model.ErrPlayerExists
	}
	cp := *player
	s.players[player.Username] = &cp
	return nil
}

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *player
	s.players[player.Username] = &cp
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, username string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	cp := *player
	return &cp, nil
}

// Session token operations

func (s *Storage) SetSessionTokenHash(ctx context.Context, username, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[username]
	if !ok {
		return model.ErrPlayerNotFound
	}
	if player.SessionTokenHash != "" {
		delete(s.tokenIndex, player.SessionTokenHash)
	}
	player.SessionTokenHash = tokenHash
	if tokenHash != "" {
		s.tokenIndex[tokenHash] = username
	}
	return nil
}

func (s *Storage) GetUsernameBySessionTokenHash(ctx context.Context, tokenHash string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	username, ok := s.tokenIndex[tokenHash]
	if !ok {
		return "", model.ErrSessionNotFound
	}
	return username, nil
}
