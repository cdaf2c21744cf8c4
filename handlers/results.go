// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/michaelalipng/yap-sub000/middleware"
	"github.com/michaelalipng/yap-sub000/results"
	"github.com/michaelalipng/yap-sub000/store"
)

type ResultsHandler struct {
	repo store.Repository
}

func NewResultsHandler(repo store.Repository) *ResultsHandler {
	return &ResultsHandler{repo: repo}
}

// GetResults handles GET /polls/{id}/results. Results are live while the
// poll is active and final once it has ended.
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	poll, err := h.repo.GetPoll(r.Context(), r.PathValue("id"))
	if err != nil {
		writeRepoError(w, err, "Poll not found")
		return
	}

	resp, err := results.ForPoll(r.Context(), h.repo, poll)
	if err != nil {
		slog.Error("failed to compute results", "poll_id", poll.ID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute results")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
