package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/quizmatch/internal/api/handler"
	"github.com/mcoot/quizmatch/internal/api/middleware"
	"github.com/mcoot/quizmatch/internal/metrics"
	"github.com/mcoot/quizmatch/internal/services/auth"
	"github.com/mcoot/quizmatch/internal/services/gamepool"
	"github.com/mcoot/quizmatch/internal/services/matchmaking"
)

// RouterConfig holds configuration for the admin router
type RouterConfig struct {
	Logger      *slog.Logger
	AuthService *auth.Service
	Matchmaker  *matchmaking.Matchmaker
	Pool        *gamepool.Pool
	Events      handler.EventLog
	Metrics     *metrics.Metrics
	AdminToken  string
}

// NewRouter creates the admin router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	statusHandler := handler.NewStatusHandler(cfg.AuthService, cfg.Matchmaker, cfg.Pool, cfg.Events)
	playerHandler := handler.NewPlayerHandler(cfg.AuthService)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)
	adminMiddleware := middleware.AdminToken(cfg.AdminToken)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	// Health stays open for load balancer probes
	api.HandleFunc("/health", statusHandler.Health).Methods(http.MethodGet)

	admin := api.NewRoute().Subrouter()
	admin.Use(adminMiddleware)
	admin.HandleFunc("/queue", statusHandler.Queue).Methods(http.MethodGet)
	admin.HandleFunc("/games", statusHandler.Games).Methods(http.MethodGet)
	admin.HandleFunc("/events", statusHandler.Events).Methods(http.MethodGet)
	admin.HandleFunc("/players", playerHandler.Create).Methods(http.MethodPost)
	admin.HandleFunc("/players/{username}", playerHandler.Get).Methods(http.MethodGet)
	admin.HandleFunc("/players/{username}/rank", playerHandler.AdjustRank).Methods(http.MethodPost)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}
