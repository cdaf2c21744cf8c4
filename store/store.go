// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/michaelalipng/yap-sub000/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidOption = errors.New("option does not belong to poll")
	ErrPollNotActive = errors.New("poll is not accepting votes")
	ErrNoOptions     = errors.New("poll must have options")

	ErrActivePollExists = errors.New("event already has an active poll")
)

// Repository is the poll and vote store the transition engine and the HTTP
// handlers work against. Queries that match nothing return empty results,
// not errors; ErrNotFound is reserved for lookups by id.
type Repository interface {
	CreateEvent(ctx context.Context, name string) (models.Event, error)
	GetEvent(ctx context.Context, eventID string) (models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)

	// CreatePoll stores a poll together with its options.
	CreatePoll(ctx context.Context, poll models.Poll, options []models.PollOption) (models.Poll, []models.PollOption, error)
	GetPoll(ctx context.Context, pollID string) (models.Poll, error)
	ListPolls(ctx context.Context, eventID string) ([]models.Poll, error)
	DeletePoll(ctx context.Context, pollID string) error

	// FindActivePoll returns nil when the event has no active poll.
	FindActivePoll(ctx context.Context, eventID string) (*models.Poll, error)
	// FindActiveTimedPolls returns active polls with a non-null deadline.
	FindActiveTimedPolls(ctx context.Context, eventID string) ([]models.Poll, error)
	// FindNextQueuedPoll returns the first draft auto-start poll by
	// queue_position, then creation order, or nil when the queue is empty.
	FindNextQueuedPoll(ctx context.Context, eventID string) (*models.Poll, error)

	// ClosePoll ends an active poll, pinning ends_at to closedAt. It
	// reports false when the poll was not active.
	ClosePoll(ctx context.Context, pollID string, closedAt time.Time) (bool, error)
	// ActivatePoll starts a draft poll with the given window. It reports
	// false when the poll is not a draft or its event already has an
	// active poll. A nil endsAt makes the poll untimed.
	ActivatePoll(ctx context.Context, pollID string, startsAt time.Time, endsAt *time.Time) (bool, error)

	// FindPollOptions returns options ordered by position.
	FindPollOptions(ctx context.Context, pollID string) ([]models.PollOption, error)
	FindVotes(ctx context.Context, pollID string) ([]models.Vote, error)
	// UpsertVote inserts a vote or, when the voter already voted on the
	// poll, replaces the chosen option.
	UpsertVote(ctx context.Context, vote models.Vote) (models.Vote, error)
}

// Publisher receives row-change notifications after successful writes.
type Publisher interface {
	PublishPollChange(models.PollChange)
	PublishVoteChange(models.VoteChange)
}

type nopPublisher struct{}

func (nopPublisher) PublishPollChange(models.PollChange) {}
func (nopPublisher) PublishVoteChange(models.VoteChange) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// preparePoll fills defaults and ids for a new poll and its options.
// Callers may pre-assign option ids so CorrectOptionID can reference one.
func preparePoll(poll models.Poll, options []models.PollOption, now time.Time) (models.Poll, []models.PollOption, error) {
	if len(options) == 0 {
		return models.Poll{}, nil, ErrNoOptions
	}

	if poll.ID == "" {
		poll.ID = uuid.NewString()
	}
	if poll.Status == "" {
		poll.Status = models.StatusDraft
	}
	if poll.Type == "" {
		poll.Type = models.TypeMulti
	}
	if poll.CreatedAt.IsZero() {
		poll.CreatedAt = now
	}
	poll.CreatedAt = poll.CreatedAt.UTC()

	stored := make([]models.PollOption, len(options))
	correctFound := poll.CorrectOptionID == nil
	for i, opt := range options {
		if opt.ID == "" {
			opt.ID = uuid.NewString()
		}
		opt.PollID = poll.ID
		stored[i] = opt
		if poll.CorrectOptionID != nil && *poll.CorrectOptionID == opt.ID {
			correctFound = true
		}
	}
	if !correctFound {
		return models.Poll{}, nil, ErrInvalidOption
	}

	return poll, stored, nil
}

// validateVote checks a vote against its poll and options before writing.
func validateVote(poll models.Poll, options []models.PollOption, vote models.Vote) error {
	if poll.Status != models.StatusActive {
		return ErrPollNotActive
	}
	for _, opt := range options {
		if opt.ID == vote.OptionID {
			return nil
		}
	}
	return ErrInvalidOption
}
