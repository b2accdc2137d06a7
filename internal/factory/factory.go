package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/mcoot/quizmatch/internal/api"
	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/dependencies/random"
	"github.com/mcoot/quizmatch/internal/events"
	"github.com/mcoot/quizmatch/internal/metrics"
	"github.com/mcoot/quizmatch/internal/server"
	"github.com/mcoot/quizmatch/internal/services/auth"
	"github.com/mcoot/quizmatch/internal/services/gamepool"
	"github.com/mcoot/quizmatch/internal/services/heartbeat"
	"github.com/mcoot/quizmatch/internal/services/matchmaking"
	"github.com/mcoot/quizmatch/internal/services/quiz"
	"github.com/mcoot/quizmatch/internal/storage"
	"github.com/mcoot/quizmatch/internal/storage/memory"
	redisstorage "github.com/mcoot/quizmatch/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	Config Config
	Logger *slog.Logger

	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Observability
	Metrics *metrics.Metrics
	Events  *events.Hub

	// Services
	AuthService *auth.Service
	Bank        *quiz.Bank
	QuizRunner  *quiz.Runner
	Pool        *gamepool.Pool
	Matchmaker  *matchmaking.Matchmaker
	Heartbeat   *heartbeat.Monitor
	Server      *server.Server

	// AdminHandler serves the admin HTTP API
	AdminHandler http.Handler

	closers []io.Closer
}

// New creates a new application with all dependencies wired
// Storage and event sink connection errors are returned here so startup can fail fast
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store storage.Storage
	var closers []io.Closer
	switch cfg.StorageType {
	case "", StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		redisStore, err := redisstorage.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		store = redisStore
		closers = append(closers, redisStore)
	}

	sinks := []events.Sink{events.NewLogSink(logger)}
	if cfg.NATSURL != "" {
		natsSink, err := events.NewNATSSink(cfg.NATSURL, logger)
		if err != nil {
			closeAll(closers, logger)
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}
		sinks = append(sinks, natsSink)
	}

	m := metrics.New()
	m.RegisterRuntimeCollectors()

	app, err := newWithDependencies(cfg, logger, store, clock.New(), random.New(), m, sinks...)
	if err != nil {
		closeAll(closers, logger)
		return nil, err
	}
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	cfg Config,
	logger *slog.Logger,
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	m *metrics.Metrics,
	sinks ...events.Sink,
) (*App, error) {
	bank := quiz.NewBank()
	if cfg.QuestionsFile != "" {
		if err := bank.LoadFromFile(cfg.QuestionsFile); err != nil {
			return nil, fmt.Errorf("loading questions: %w", err)
		}
	} else if err := bank.LoadDefault(); err != nil {
		return nil, fmt.Errorf("loading default questions: %w", err)
	}

	hub := events.NewHub(logger, cfg.Events, sinks...)
	authService := auth.New(store, clk, logger, cfg.Auth)
	runner := quiz.NewRunner(bank, authService, rnd, logger, cfg.Quiz)
	pool := gamepool.New(runner, hub, m, clk, logger, cfg.Pool)

	matchmaker, err := matchmaking.New(matchmaking.NewQueue(m), pool, hub, m, clk, logger, cfg.Matchmaking)
	if err != nil {
		return nil, err
	}
	monitor := heartbeat.New(matchmaker, hub, m, clk, logger, cfg.Heartbeat)
	srv := server.New(authService, matchmaker, m, clk, logger, cfg.Server)

	adminHandler := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		AuthService: authService,
		Matchmaker:  matchmaker,
		Pool:        pool,
		Events:      hub,
		Metrics:     m,
		AdminToken:  cfg.AdminToken,
	})

	return &App{
		Config:       cfg,
		Logger:       logger,
		Storage:      store,
		Clock:        clk,
		Random:       rnd,
		Metrics:      m,
		Events:       hub,
		AuthService:  authService,
		Bank:         bank,
		QuizRunner:   runner,
		Pool:         pool,
		Matchmaker:   matchmaker,
		Heartbeat:    monitor,
		Server:       srv,
		AdminHandler: adminHandler,
	}, nil
}

// Run starts every background component, serves players on ln until ctx is
// cancelled, then shuts everything down in dependency order
// adminLn may be nil to leave the admin API off
func (a *App) Run(ctx context.Context, ln net.Listener, adminLn net.Listener) error {
	go a.Events.Run()

	a.Pool.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Heartbeat.Run(ctx)
	}()

	var admin *api.Server
	adminErr := make(chan error, 1)
	if adminLn != nil {
		admin = api.NewServer(a.AdminHandler, a.Config.Admin, a.Logger)
		go func() { adminErr <- admin.Serve(adminLn) }()
	}

	a.Logger.Info("quiz server listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("mode", string(a.Matchmaker.Mode())))

	serveErr := a.Server.Serve(ctx, ln)

	wg.Wait()
	a.Pool.Stop()

	var errs []error
	if serveErr != nil {
		errs = append(errs, serveErr)
	}
	if admin != nil {
		if err := admin.Shutdown(context.WithoutCancel(ctx)); err != nil {
			errs = append(errs, err)
		}
		if err := <-adminErr; err != nil {
			errs = append(errs, err)
		}
	}

	a.Events.Close()
	return errors.Join(errs...)
}

// Close releases storage connections
func (a *App) Close() {
	closeAll(a.closers, a.Logger)
	a.closers = nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}
