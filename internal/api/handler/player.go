package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/quizmatch/internal/api/apierr"
	"github.com/mcoot/quizmatch/internal/api/request"
	"github.com/mcoot/quizmatch/internal/api/response"
	"github.com/mcoot/quizmatch/internal/services/auth"
)

// PlayerHandler handles player account endpoints
type PlayerHandler struct {
	authService *auth.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(authService *auth.Service) *PlayerHandler {
	return &PlayerHandler{
		authService: authService,
	}
}

// Create handles POST /api/v1/players
func (h *PlayerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreatePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	if err := h.authService.CreateAccount(r.Context(), req.Username, req.Password); err != nil {
		apierr.WriteError(w, err)
		return
	}

	h.writePlayer(w, r, req.Username, http.StatusCreated)
}

// Get handles GET /api/v1/players/{username}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.writePlayer(w, r, mux.Vars(r)["username"], http.StatusOK)
}

// AdjustRank handles POST /api/v1/players/{username}/rank
func (h *PlayerHandler) AdjustRank(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var req request.AdjustRankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	if _, err := h.authService.AddRank(r.Context(), username, req.Delta); err != nil {
		apierr.WriteError(w, err)
		return
	}

	h.writePlayer(w, r, username, http.StatusOK)
}

func (h *PlayerHandler) writePlayer(w http.ResponseWriter, r *http.Request, username string, status int) {
	rank, err := h.authService.GetRank(r.Context(), username)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, status, response.Player{
		Username: username,
		Rank:     rank,
		Online:   h.authService.IsOnline(username),
	})
}
