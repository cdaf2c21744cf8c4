// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package results

import (
	"context"
	"fmt"

	"github.com/michaelalipng/yap-sub000/models"
)

// Source is the subset of the repository needed to build result views.
type Source interface {
	FindActivePoll(ctx context.Context, eventID string) (*models.Poll, error)
	FindPollOptions(ctx context.Context, pollID string) ([]models.PollOption, error)
	FindVotes(ctx context.Context, pollID string) ([]models.Vote, error)
}

// ForPoll loads options and votes for poll and aggregates them.
func ForPoll(ctx context.Context, src Source, poll models.Poll) (models.PollResultsResponse, error) {
	options, err := src.FindPollOptions(ctx, poll.ID)
	if err != nil {
		return models.PollResultsResponse{}, fmt.Errorf("failed to load options: %w", err)
	}

	votes, err := src.FindVotes(ctx, poll.ID)
	if err != nil {
		return models.PollResultsResponse{}, fmt.Errorf("failed to load votes: %w", err)
	}

	res := Aggregate(votes, options)
	resp := models.PollResultsResponse{
		Poll:       poll,
		Results:    res,
		TotalVotes: Total(res),
	}
	if leader, ok := Leader(res); ok {
		resp.LeadingOptionID = leader.OptionID
	}
	return resp, nil
}

// ActivePoll builds the view of the event's active poll. The returned
// Poll is nil when nothing is active.
func ActivePoll(ctx context.Context, src Source, eventID string) (models.ActivePollResponse, error) {
	active, err := src.FindActivePoll(ctx, eventID)
	if err != nil {
		return models.ActivePollResponse{}, fmt.Errorf("failed to find active poll: %w", err)
	}

	resp := models.ActivePollResponse{
		Options: []models.PollOption{},
		Results: []models.PollResult{},
	}
	if active == nil {
		return resp, nil
	}

	options, err := src.FindPollOptions(ctx, active.ID)
	if err != nil {
		return models.ActivePollResponse{}, fmt.Errorf("failed to load options: %w", err)
	}
	votes, err := src.FindVotes(ctx, active.ID)
	if err != nil {
		return models.ActivePollResponse{}, fmt.Errorf("failed to load votes: %w", err)
	}

	resp.Poll = active
	resp.Options = options
	resp.Results = Aggregate(votes, options)
	resp.TotalVotes = Total(resp.Results)
	return resp, nil
}
