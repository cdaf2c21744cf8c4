// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/michaelalipng/yap-sub000/auth"
	"github.com/michaelalipng/yap-sub000/middleware"
	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/store"
)

type VotingHandler struct {
	repo store.Repository
}

func NewVotingHandler(repo store.Repository) *VotingHandler {
	return &VotingHandler{repo: repo}
}

// CastVote handles POST /polls/{id}/votes. Voting again replaces the
// voter's previous choice.
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")

	voterID, err := auth.VoterID(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Missing or invalid voter id")
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if req.OptionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "option_id is required")
		return
	}

	vote, err := h.repo.UpsertVote(r.Context(), models.Vote{
		PollID:   pollID,
		OptionID: req.OptionID,
		VoterID:  voterID,
	})
	if err != nil {
		writeRepoError(w, err, "Poll not found")
		return
	}

	slog.Info("vote recorded", "poll_id", pollID, "option_id", vote.OptionID)

	middleware.JSONResponse(w, http.StatusOK, models.CastVoteResponse{
		VoteID:   vote.ID,
		OptionID: vote.OptionID,
	})
}
