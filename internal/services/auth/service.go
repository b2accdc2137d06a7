package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/blake2b"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session token")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("username must be non-empty and contain no whitespace")
	ErrInvalidPassword    = errors.New("password must be non-empty and contain no whitespace")
	ErrAlreadyLoggedIn    = errors.New("player is already logged in")
)

// Config holds configuration for the auth service
type Config struct {
	BcryptCost int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// Service is the identity provider: credentials, ranks, session tokens and the online set
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config

	// mu guards every read-then-persist sequence and the online set
	mu     sync.Mutex
	online map[string]struct{}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "auth")),
		cfg:     cfg,
		online:  make(map[string]struct{}),
	}
}

// Credentials

// CreateAccount registers a new player with the default rank
func (s *Service) CreateAccount(ctx context.Context, username, password string) error {
	if !validField(username) {
		return ErrInvalidUsername
	}
	if !validField(password) {
		return ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := s.clock.Now()
	player := &model.Player{
		Username:     username,
		PasswordHash: string(hash),
		Rank:         model.DefaultRank,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.CreatePlayer(ctx, player); err != nil {
		if errors.Is(err, model.ErrPlayerExists) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating player: %w", err)
	}

	s.logger.Info("account created", slog.String("username", username))
	return nil
}

// Authenticate checks a username and password pair
func (s *Service) Authenticate(ctx context.Context, username, password string) error {
	player, err := s.storage.GetPlayer(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("loading player: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Ranks

// GetRank returns the player's current rank
func (s *Service) GetRank(ctx context.Context, username string) (int, error) {
	player, err := s.storage.GetPlayer(ctx, username)
	if err != nil {
		return 0, err
	}
	return player.Rank, nil
}

// AddRank adjusts the player's rank by delta and returns the new rank
func (s *Service) AddRank(ctx context.Context, username string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := s.storage.GetPlayer(ctx, username)
	if err != nil {
		return 0, err
	}
	player.Rank += delta
	player.UpdatedAt = s.clock.Now()

	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return 0, fmt.Errorf("saving player: %w", err)
	}
	return player.Rank, nil
}

// Session tokens

// IssueSessionToken creates a fresh token for the player, invalidating any previous one
func (s *Service) IssueSessionToken(ctx context.Context, username string) (string, error) {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.SetSessionTokenHash(ctx, username, digestToken(token)); err != nil {
		return "", fmt.Errorf("storing session token: %w", err)
	}
	return token, nil
}

// ResolveSessionToken returns the username a token was issued to
func (s *Service) ResolveSessionToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidSession
	}

	username, err := s.storage.GetUsernameBySessionTokenHash(ctx, digestToken(token))
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return "", ErrInvalidSession
		}
		return "", fmt.Errorf("resolving session token: %w", err)
	}
	return username, nil
}

// Online set

// Claim marks the player as online, failing if they already are
func (s *Service) Claim(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.online[username]; ok {
		return ErrAlreadyLoggedIn
	}
	s.online[username] = struct{}{}
	return nil
}

// Release marks the player as offline
func (s *Service) Release(username string) {
	s.mu.Lock()
	delete(s.online, username)
	s.mu.Unlock()
}

// IsOnline reports whether the player currently holds a connection
func (s *Service) IsOnline(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[username]
	return ok
}

// OnlineCount returns the number of players currently online
func (s *Service) OnlineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.online)
}

func digestToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func validField(v string) bool {
	if v == "" {
		return false
	}
	return strings.IndexFunc(v, unicode.IsSpace) < 0
}
