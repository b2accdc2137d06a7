package handler

import (
	"net/http"
	"strconv"

	"github.com/mcoot/quizmatch/internal/api/apierr"
	"github.com/mcoot/quizmatch/internal/api/response"
	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/services/auth"
	"github.com/mcoot/quizmatch/internal/services/gamepool"
	"github.com/mcoot/quizmatch/internal/services/matchmaking"
)

// EventLog exposes recently published lifecycle events
type EventLog interface {
	Recent() []model.Event
}

// StatusHandler serves queue, pool and event status
type StatusHandler struct {
	authService *auth.Service
	matchmaker  *matchmaking.Matchmaker
	pool        *gamepool.Pool
	events      EventLog
}

// NewStatusHandler creates a new status handler; events may be nil
func NewStatusHandler(authService *auth.Service, matchmaker *matchmaking.Matchmaker, pool *gamepool.Pool, events EventLog) *StatusHandler {
	return &StatusHandler{
		authService: authService,
		matchmaker:  matchmaker,
		pool:        pool,
		events:      events,
	}
}

// Health handles GET /api/v1/health
func (h *StatusHandler) Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{
		Status:  "ok",
		Online:  h.authService.OnlineCount(),
		Queued:  h.matchmaker.Queue().Len(),
		Running: h.pool.Running(),
	})
}

// Queue handles GET /api/v1/queue
func (h *StatusHandler) Queue(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.QueueStatusFromHandles(h.matchmaker.Mode(), h.matchmaker.Queue().Snapshot()))
}

// Games handles GET /api/v1/games
func (h *StatusHandler) Games(w http.ResponseWriter, _ *http.Request) {
	var recent []model.Event
	for _, e := range h.recent() {
		switch e.Type {
		case model.EventMatchFormed, model.EventGameStarted, model.EventGameCompleted:
			recent = append(recent, e)
		}
	}

	response.JSON(w, http.StatusOK, response.PoolStatus{
		Capacity: h.pool.Capacity(),
		Running:  h.pool.Running(),
		Queued:   h.pool.Queued(),
		Recent:   response.EventsFromModel(recent),
	})
}

// Events handles GET /api/v1/events?limit=n, newest last
func (h *StatusHandler) Events(w http.ResponseWriter, r *http.Request) {
	events := h.recent()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			apierr.WriteError(w, apierr.NewInvalidRequestError("limit must be a non-negative integer"))
			return
		}
		if limit < len(events) {
			events = events[len(events)-limit:]
		}
	}

	response.JSON(w, http.StatusOK, response.EventsFromModel(events))
}

func (h *StatusHandler) recent() []model.Event {
	if h.events == nil {
		return nil
	}
	return h.events.Recent()
}
