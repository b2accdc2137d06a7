package factory

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mcoot/quizmatch/internal/api"
	"github.com/mcoot/quizmatch/internal/events"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/server"
	"github.com/mcoot/quizmatch/internal/services/auth"
	"github.com/mcoot/quizmatch/internal/services/gamepool"
	"github.com/mcoot/quizmatch/internal/services/heartbeat"
	"github.com/mcoot/quizmatch/internal/services/matchmaking"
	"github.com/mcoot/quizmatch/internal/services/quiz"
	redisstorage "github.com/mcoot/quizmatch/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// DefaultPort is the TCP port players connect to
const DefaultPort = 5000

// Environment variables read by ConfigFromEnv
const (
	EnvStorage    = "QUIZMATCH_STORAGE"
	EnvRedisURL   = "QUIZMATCH_REDIS_URL"
	EnvAdminAddr  = "QUIZMATCH_ADMIN_ADDR"
	EnvAdminToken = "QUIZMATCH_ADMIN_TOKEN"
	EnvNATSURL    = "QUIZMATCH_NATS_URL"
	EnvQuestions  = "QUIZMATCH_QUESTIONS"
	EnvLogLevel   = "QUIZMATCH_LOG_LEVEL"
)

// Config holds configuration for the application factory
type Config struct {
	// Port is the player-facing TCP port
	Port int
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// Redis holds connection settings, used when StorageType is "redis"
	Redis redisstorage.Config
	// NATSURL enables event publishing to NATS; log-only when empty
	NATSURL string
	// QuestionsFile replaces the embedded question bank when set
	QuestionsFile string
	// AdminToken guards the admin API when set
	AdminToken string
	// LogLevel is the minimum level for the server logger
	LogLevel slog.Level

	Auth        auth.Config
	Server      server.Config
	Matchmaking matchmaking.Config
	Heartbeat   heartbeat.Config
	Pool        gamepool.Config
	Quiz        quiz.Config
	Events      events.HubConfig
	Admin       api.ServerConfig
}

// DefaultConfig returns the default application config
func DefaultConfig() Config {
	return Config{
		Port:        DefaultPort,
		StorageType: StorageTypeMemory,
		Redis:       redisstorage.DefaultConfig(),
		LogLevel:    slog.LevelInfo,
		Auth:        auth.DefaultConfig(),
		Server:      server.DefaultConfig(),
		Matchmaking: matchmaking.DefaultConfig(),
		Heartbeat:   heartbeat.DefaultConfig(),
		Pool:        gamepool.DefaultConfig(),
		Quiz:        quiz.DefaultConfig(),
		Events:      events.DefaultHubConfig(),
		Admin:       api.DefaultServerConfig(),
	}
}

// ConfigFromEnv overlays environment settings onto cfg
func ConfigFromEnv(cfg Config) (Config, error) {
	if v := os.Getenv(EnvStorage); v != "" {
		cfg.StorageType = strings.ToLower(v)
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv(EnvAdminAddr); v != "" {
		cfg.Admin.Addr = v
	}
	cfg.AdminToken = getEnvOrDefault(EnvAdminToken, cfg.AdminToken)
	cfg.NATSURL = getEnvOrDefault(EnvNATSURL, cfg.NATSURL)
	cfg.QuestionsFile = getEnvOrDefault(EnvQuestions, cfg.QuestionsFile)

	if v := os.Getenv(EnvLogLevel); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = level
	}

	return cfg, cfg.Validate()
}

// Validate checks settings that would otherwise fail late
func (c Config) Validate() error {
	switch c.StorageType {
	case "", StorageTypeMemory:
	case StorageTypeRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL required when storage type is %s", StorageTypeRedis)
		}
	default:
		return fmt.Errorf("invalid storage type %q: must be %q or %q", c.StorageType, StorageTypeMemory, StorageTypeRedis)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := model.ParseMatchMode(string(c.Matchmaking.Mode)); err != nil {
		return err
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
