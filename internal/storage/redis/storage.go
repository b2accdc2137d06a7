package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	created, err := s.client.SetNX(ctx, playerKey(player.Username), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return model.ErrPlayerExists
	}
	return nil
}

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, playerKey(player.Username), data, 0).Err()
}

func (s *Storage) GetPlayer(ctx context.Context, username string) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

// Session token operations

func (s *Storage) SetSessionTokenHash(ctx context.Context, username, tokenHash string) error {
	player, err := s.GetPlayer(ctx, username)
	if err != nil {
		return err
	}
	previous := player.SessionTokenHash
	player.SessionTokenHash = tokenHash

	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	// Record and index swap go out together
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, playerKey(username), data, 0)
	if previous != "" {
		pipe.Del(ctx, sessionIndexKey(previous))
	}
	if tokenHash != "" {
		pipe.Set(ctx, sessionIndexKey(tokenHash), username, s.cfg.SessionTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetUsernameBySessionTokenHash(ctx context.Context, tokenHash string) (string, error) {
	username, err := s.client.Get(ctx, sessionIndexKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrSessionNotFound
		}
		return "", err
	}
	return username, nil
}
