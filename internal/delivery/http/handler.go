package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openplay/roster-service/internal/errors"
	"github.com/openplay/roster-service/internal/realtime"
	"github.com/openplay/roster-service/internal/service"
	"github.com/openplay/roster-service/pkg/logger"
)

type HTTPHandler struct {
	rosterService service.RosterService
	viewCache     *realtime.ViewCache
	logger        logger.Logger
	validator     *validator.Validate
}

func NewHTTPHandler(rosterService service.RosterService, viewCache *realtime.ViewCache, logger logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		rosterService: rosterService,
		viewCache:     viewCache,
		logger:        logger,
		validator:     validator.New(),
	}
}

// HealthCheck handles health check requests
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "roster-service",
	})
}

// JoinGame admits the authenticated profile into a game, or waitlists it
// when the game is full. The response status tells the caller which one
// happened.
func (h *HTTPHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	in := service.JoinGameInput{
		GameID:    chi.URLParam(r, "gameId"),
		ProfileID: ProfileIDFromContext(r.Context()),
	}
	if err := h.validator.Struct(in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	out, err := h.rosterService.JoinGame(r.Context(), in)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrGameNotFound):
			h.respondError(w, http.StatusNotFound, "Game not found", err)
		case stderrors.Is(err, errors.ErrGameNotJoinable):
			h.respondError(w, http.StatusConflict, "Game is not joinable", err)
		case stderrors.Is(err, errors.ErrConflict):
			h.respondError(w, http.StatusServiceUnavailable, "Roster is busy, try again", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to join game: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to join game", err)
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, out)
}

type leaveGameRequest struct {
	ReleaseConfirmedSlot bool `json:"release_confirmed_slot"`
}

// LeaveGame drops the authenticated profile's live entry. Confirmed members
// must acknowledge that the freed slot is promoted away irreversibly.
func (h *HTTPHandler) LeaveGame(w http.ResponseWriter, r *http.Request) {
	var req leaveGameRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	in := service.LeaveGameInput{
		GameID:               chi.URLParam(r, "gameId"),
		ProfileID:            ProfileIDFromContext(r.Context()),
		ReleaseConfirmedSlot: req.ReleaseConfirmedSlot,
	}
	if err := h.validator.Struct(in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	out, err := h.rosterService.LeaveGame(r.Context(), in)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrGameNotFound):
			h.respondError(w, http.StatusNotFound, "Game not found", err)
		case stderrors.Is(err, service.ErrConfirmedSlotNotReleased):
			h.respondError(w, http.StatusPreconditionRequired,
				"Leaving releases your confirmed slot; repeat with release_confirmed_slot=true", err)
		case stderrors.Is(err, errors.ErrConflict):
			h.respondError(w, http.StatusServiceUnavailable, "Roster is busy, try again", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to leave game: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to leave game", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, out)
}

// ConfirmAttendance marks the authenticated confirmed member as attending.
func (h *HTTPHandler) ConfirmAttendance(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")
	profileID := ProfileIDFromContext(r.Context())

	out, err := h.rosterService.ConfirmAttendance(r.Context(), gameID, profileID)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrGameNotFound):
			h.respondError(w, http.StatusNotFound, "Game not found", err)
		case stderrors.Is(err, errors.ErrNotConfirmedMember):
			h.respondError(w, http.StatusForbidden, "Only confirmed members can confirm attendance", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to confirm attendance: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to confirm attendance", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, out)
}

// GetRoster serves the roster view observers re-fetch after change events.
func (h *HTTPHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	view, err := h.viewCache.Get(r.Context(), gameID)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrGameNotFound):
			h.respondError(w, http.StatusNotFound, "Game not found", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to get roster: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to get roster", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, view)
}

// RefreshRoster bypasses the debounce delay for an explicit user-triggered
// refresh.
func (h *HTTPHandler) RefreshRoster(w http.ResponseWriter, r *http.Request) {
	h.viewCache.Refresh(chi.URLParam(r, "gameId"))
	w.WriteHeader(http.StatusAccepted)
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorf(context.Background(), "Failed to encode JSON response: %v", err)
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		h.logger.Debugf(context.Background(), "Error response - message: %s, error: %v", message, err)
	}

	h.respondJSON(w, statusCode, map[string]any{
		"error": message,
		"code":  statusCode,
	})
}
