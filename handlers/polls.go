// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/michaelalipng/yap-sub000/cliparse"
	"github.com/michaelalipng/yap-sub000/middleware"
	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/store"
	"github.com/michaelalipng/yap-sub000/transitions"
)

// Poll input limits
const (
	maxQuestionLength = 500
	maxLabelLength    = 100
	minOptions        = 2
	maxOptions        = 10
	maxDuration       = 24 * 60 * 60
)

type PollHandler struct {
	repo   store.Repository
	engine *transitions.Engine
	cfg    cliparse.Config
}

func NewPollHandler(repo store.Repository, engine *transitions.Engine, cfg cliparse.Config) *PollHandler {
	return &PollHandler{repo: repo, engine: engine, cfg: cfg}
}

// validatePollRequest normalizes req in place and returns a client-facing
// message when it is unusable
func validatePollRequest(req *models.CreatePollRequest) string {
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return "question is required"
	}
	if len(req.Question) > maxQuestionLength {
		return "question is too long"
	}

	if req.Type == "" {
		req.Type = models.TypeMulti
	}
	if req.Type != models.TypeBinary && req.Type != models.TypeMulti {
		return "type must be binary or multi"
	}

	if len(req.Options) < minOptions || len(req.Options) > maxOptions {
		return "poll must have between 2 and 10 options"
	}
	if req.Type == models.TypeBinary && len(req.Options) != 2 {
		return "binary poll must have exactly 2 options"
	}
	for i := range req.Options {
		req.Options[i].Label = strings.TrimSpace(req.Options[i].Label)
		if req.Options[i].Label == "" {
			return "option label is required"
		}
		if len(req.Options[i].Label) > maxLabelLength {
			return "option label is too long"
		}
	}

	if req.CorrectOption != nil && (*req.CorrectOption < 0 || *req.CorrectOption >= len(req.Options)) {
		return "correct_option is out of range"
	}
	if req.DurationSeconds != nil && (*req.DurationSeconds < 0 || *req.DurationSeconds > maxDuration) {
		return "duration_seconds must be between 0 and 86400"
	}

	return ""
}

// CreatePoll handles POST /events/{id}/polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	if !authorizeModerator(w, r, eventID, h.cfg) {
		return
	}

	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if msg := validatePollRequest(&req); msg != "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := h.repo.GetEvent(r.Context(), eventID); err != nil {
		writeRepoError(w, err, "Event not found")
		return
	}

	// Option ids are assigned here so correct_option can reference one
	options := make([]models.PollOption, len(req.Options))
	for i, opt := range req.Options {
		options[i] = models.PollOption{
			ID:       uuid.NewString(),
			Label:    opt.Label,
			Position: i,
			Emoji:    opt.Emoji,
		}
	}

	poll := models.Poll{
		EventID:         eventID,
		Question:        req.Question,
		Type:            req.Type,
		Status:          models.StatusDraft,
		CreatedBy:       req.CreatedBy,
		DurationSeconds: req.DurationSeconds,
		AutoStart:       req.AutoStart,
		QueuePosition:   req.QueuePosition,
	}
	if req.CorrectOption != nil {
		poll.CorrectOptionID = &options[*req.CorrectOption].ID
	}

	poll, options, err := h.repo.CreatePoll(r.Context(), poll, options)
	if err != nil {
		writeRepoError(w, err, "Event not found")
		return
	}

	slog.Info("poll created", "event_id", eventID, "poll_id", poll.ID, "auto_start", poll.AutoStart)

	if req.StartNow {
		started, err := h.engine.StartPoll(r.Context(), poll.ID)
		if err != nil {
			slog.Error("failed to start new poll", "poll_id", poll.ID, "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Poll created but failed to start")
			return
		}
		poll = started
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreatePollResponse{
		Poll:    poll,
		Options: options,
	})
}

// moderatedPoll loads the poll in the path and checks the moderator key of
// its event. It writes the error response and returns false on failure.
func (h *PollHandler) moderatedPoll(w http.ResponseWriter, r *http.Request) (models.Poll, bool) {
	poll, err := h.repo.GetPoll(r.Context(), r.PathValue("id"))
	if err != nil {
		writeRepoError(w, err, "Poll not found")
		return models.Poll{}, false
	}
	if !authorizeModerator(w, r, poll.EventID, h.cfg) {
		return models.Poll{}, false
	}
	return poll, true
}

// StartPoll handles POST /polls/{id}/start
func (h *PollHandler) StartPoll(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.moderatedPoll(w, r)
	if !ok {
		return
	}

	started, err := h.engine.StartPoll(r.Context(), poll.ID)
	switch {
	case errors.Is(err, transitions.ErrPollNotDraft):
		middleware.ErrorResponse(w, http.StatusConflict, "Only draft polls can be started")
		return
	case errors.Is(err, transitions.ErrNotStarted):
		middleware.ErrorResponse(w, http.StatusConflict, "Another poll became active first")
		return
	case err != nil:
		slog.Error("failed to start poll", "poll_id", poll.ID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to start poll")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, started)
}

// EndPoll handles POST /polls/{id}/end
func (h *PollHandler) EndPoll(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.moderatedPoll(w, r)
	if !ok {
		return
	}

	res, err := h.engine.EndPoll(r.Context(), poll.ID)
	if errors.Is(err, transitions.ErrPollNotActive) {
		middleware.ErrorResponse(w, http.StatusConflict, "Poll is not active")
		return
	}
	if err != nil && len(res.Closed) == 0 {
		writeRepoError(w, err, "Poll not found")
		return
	}
	if err != nil {
		// The poll is ended; only the follow-up promotion failed and the
		// monitor retries it.
		slog.Error("promotion after manual end failed", "poll_id", poll.ID, "error", err)
	}

	middleware.JSONResponse(w, http.StatusOK, models.EndPollResponse{
		Closed:  res.Closed,
		Started: res.Started,
	})
}

// DeletePoll handles DELETE /polls/{id}. Active polls must be ended first.
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	poll, ok := h.moderatedPoll(w, r)
	if !ok {
		return
	}

	if poll.Status == models.StatusActive {
		middleware.ErrorResponse(w, http.StatusConflict, "End the poll before deleting it")
		return
	}

	if err := h.repo.DeletePoll(r.Context(), poll.ID); err != nil {
		writeRepoError(w, err, "Poll not found")
		return
	}

	slog.Info("poll deleted", "event_id", poll.EventID, "poll_id", poll.ID)
	w.WriteHeader(http.StatusNoContent)
}
