// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/michaelalipng/yap-sub000/auth"
	"github.com/michaelalipng/yap-sub000/cliparse"
	"github.com/michaelalipng/yap-sub000/middleware"
	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/results"
	"github.com/michaelalipng/yap-sub000/store"
	"github.com/michaelalipng/yap-sub000/transitions"
)

const maxEventNameLength = 200

type EventHandler struct {
	repo   store.Repository
	engine *transitions.Engine
	cfg    cliparse.Config
}

func NewEventHandler(repo store.Repository, engine *transitions.Engine, cfg cliparse.Config) *EventHandler {
	return &EventHandler{repo: repo, engine: engine, cfg: cfg}
}

// authorizeModerator checks X-Moderator-Key against the event and writes
// 401 on mismatch.
func authorizeModerator(w http.ResponseWriter, r *http.Request, eventID string, cfg cliparse.Config) bool {
	key := r.Header.Get(auth.HeaderModeratorKey)
	if err := auth.ValidateModeratorKey(eventID, key, cfg.ModeratorKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid moderator key")
		return false
	}
	return true
}

// writeRepoError maps repository errors to responses
func writeRepoError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrPollNotActive):
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not active")
	case errors.Is(err, store.ErrActivePollExists):
		middleware.ErrorResponse(w, http.StatusConflict, "Event already has an active poll")
	case errors.Is(err, store.ErrInvalidOption):
		middleware.ErrorResponse(w, http.StatusBadRequest, "Option does not belong to this poll")
	case errors.Is(err, store.ErrNoOptions):
		middleware.ErrorResponse(w, http.StatusBadRequest, "Poll needs options")
	default:
		slog.Error("repository error", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
	}
}

// writeBodyError maps ParseJSONBody failures to responses
func writeBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, middleware.ErrBodyTooLarge) {
		middleware.ErrorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
}

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Name) > maxEventNameLength {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is too long")
		return
	}

	event, err := h.repo.CreateEvent(r.Context(), req.Name)
	if err != nil {
		slog.Error("failed to create event", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create event")
		return
	}

	h.engine.StartMonitoring(event.ID)
	slog.Info("event created", "event_id", event.ID, "name", event.Name)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateEventResponse{
		EventID:      event.ID,
		ModeratorKey: auth.GenerateModeratorKey(event.ID, h.cfg.ModeratorKeySalt),
	})
}

// ListPolls handles GET /events/{id}/polls
func (h *EventHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	if !authorizeModerator(w, r, eventID, h.cfg) {
		return
	}

	if _, err := h.repo.GetEvent(r.Context(), eventID); err != nil {
		writeRepoError(w, err, "Event not found")
		return
	}

	polls, err := h.repo.ListPolls(r.Context(), eventID)
	if err != nil {
		writeRepoError(w, err, "Event not found")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListPollsResponse{
		EventID: eventID,
		Polls:   polls,
	})
}

// GetActive handles GET /events/{id}/active. An event with no active poll
// returns {"poll": null}.
func (h *EventHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	if _, err := h.repo.GetEvent(r.Context(), eventID); err != nil {
		writeRepoError(w, err, "Event not found")
		return
	}

	state, err := results.ActivePoll(r.Context(), h.repo, eventID)
	if err != nil {
		slog.Error("failed to load active poll", "event_id", eventID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, state)
}

// StartNext handles POST /events/{id}/next
func (h *EventHandler) StartNext(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	if !authorizeModerator(w, r, eventID, h.cfg) {
		return
	}

	if _, err := h.repo.GetEvent(r.Context(), eventID); err != nil {
		writeRepoError(w, err, "Event not found")
		return
	}

	started, err := h.engine.EndCurrentAndStartNext(r.Context(), eventID)
	if err != nil {
		slog.Error("failed to advance event", "event_id", eventID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start next poll")
		return
	}

	resp := models.StartNextResponse{Started: started}
	if started {
		active, err := h.repo.FindActivePoll(r.Context(), eventID)
		if err != nil {
			slog.Error("failed to load started poll", "event_id", eventID, "error", err)
		}
		resp.Poll = active
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// StartMonitoring handles POST /events/{id}/monitor
func (h *EventHandler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	if !authorizeModerator(w, r, eventID, h.cfg) {
		return
	}

	if _, err := h.repo.GetEvent(r.Context(), eventID); err != nil {
		writeRepoError(w, err, "Event not found")
		return
	}

	changed := h.engine.StartMonitoring(eventID)
	middleware.JSONResponse(w, http.StatusOK, models.MonitorResponse{
		EventID:    eventID,
		Monitoring: true,
		Changed:    changed,
	})
}

// StopMonitoring handles DELETE /events/{id}/monitor
func (h *EventHandler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	if !authorizeModerator(w, r, eventID, h.cfg) {
		return
	}

	changed := h.engine.StopMonitoring(eventID)
	middleware.JSONResponse(w, http.StatusOK, models.MonitorResponse{
		EventID:    eventID,
		Monitoring: false,
		Changed:    changed,
	})
}
