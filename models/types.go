package models

import (
	"encoding/json"
	"time"
)

// Poll status constants
const (
	StatusDraft  = "draft"
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Poll option-set types
const (
	TypeBinary = "binary"
	TypeMulti  = "multi"
)

// DefaultPollDuration applies when a promoted poll has no configured length.
const DefaultPollDuration = 60 * time.Second

// Request types

type CreateEventRequest struct {
	Name string `json:"name"`
}

type CreateOptionRequest struct {
	Label string  `json:"label"`
	Emoji *string `json:"emoji,omitempty"`
}

type CreatePollRequest struct {
	Question        string                `json:"question"`
	Type            string                `json:"type"`
	Options         []CreateOptionRequest `json:"options"`
	CorrectOption   *int                  `json:"correct_option,omitempty"` // index into Options
	DurationSeconds *int                  `json:"duration_seconds,omitempty"`
	AutoStart       bool                  `json:"auto_start"`
	QueuePosition   int                   `json:"queue_position"`
	StartNow        bool                  `json:"start_now"`
	CreatedBy       *string               `json:"created_by,omitempty"`
}

type CastVoteRequest struct {
	OptionID string `json:"option_id"`
}

// Response types

type CreateEventResponse struct {
	EventID      string `json:"event_id"`
	ModeratorKey string `json:"moderator_key"`
}

type CreatePollResponse struct {
	Poll    Poll         `json:"poll"`
	Options []PollOption `json:"options"`
}

type StartNextResponse struct {
	Started bool  `json:"started"`
	Poll    *Poll `json:"poll,omitempty"`
}

type EndPollResponse struct {
	Closed  []string `json:"closed"`
	Started *Poll    `json:"started,omitempty"`
}

type ListPollsResponse struct {
	EventID string `json:"event_id"`
	Polls   []Poll `json:"polls"`
}

type MonitorResponse struct {
	EventID    string `json:"event_id"`
	Monitoring bool   `json:"monitoring"`
	Changed    bool   `json:"changed"` // false when the request was a no-op
}

type CastVoteResponse struct {
	VoteID   string `json:"vote_id"`
	OptionID string `json:"option_id"`
}

type PollResultsResponse struct {
	Poll            Poll         `json:"poll"`
	Results         []PollResult `json:"results"`
	TotalVotes      int          `json:"total_votes"`
	LeadingOptionID string       `json:"leading_option_id,omitempty"`
}

// ActivePollResponse is what voter and presenter surfaces render. Poll is
// nil when the event has no active poll.
type ActivePollResponse struct {
	Poll       *Poll        `json:"poll"`
	Options    []PollOption `json:"options"`
	Results    []PollResult `json:"results"`
	TotalVotes int          `json:"total_votes"`
}

// Domain types

type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Poll struct {
	ID              string     `json:"id"`
	EventID         string     `json:"event_id"`
	Question        string     `json:"question"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	CreatedBy       *string    `json:"created_by,omitempty"`
	CorrectOptionID *string    `json:"correct_option_id,omitempty"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	AutoStart       bool       `json:"auto_start"`
	QueuePosition   int        `json:"queue_position"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Active is the boolean projection older clients read instead of Status.
func (p Poll) Active() bool {
	return p.Status == StatusActive
}

// MarshalJSON adds the legacy "active" flag next to status.
func (p Poll) MarshalJSON() ([]byte, error) {
	type poll Poll
	return json.Marshal(struct {
		poll
		Active bool `json:"active"`
	}{poll(p), p.Active()})
}

// Deadline returns ends_at for a poll started at start. An unset duration
// falls back to def; an explicit zero means untimed and yields nil.
func (p Poll) Deadline(start time.Time, def time.Duration) *time.Time {
	d := def
	if p.DurationSeconds != nil {
		if *p.DurationSeconds <= 0 {
			return nil
		}
		d = time.Duration(*p.DurationSeconds) * time.Second
	}
	end := start.Add(d)
	return &end
}

// Expired reports whether a timed poll's deadline has passed at now.
func (p Poll) Expired(now time.Time) bool {
	return p.EndsAt != nil && !now.Before(*p.EndsAt)
}

type PollOption struct {
	ID       string  `json:"id"`
	PollID   string  `json:"poll_id"`
	Label    string  `json:"label"`
	Position int     `json:"position"`
	Emoji    *string `json:"emoji,omitempty"`
}

type Vote struct {
	ID        string    `json:"id"`
	PollID    string    `json:"poll_id"`
	OptionID  string    `json:"option_id"`
	VoterID   string    `json:"-"` // Never expose in JSON
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PollResult is derived per option and never persisted.
type PollResult struct {
	OptionID   string `json:"option_id"`
	Label      string `json:"label"`
	VoteCount  int    `json:"vote_count"`
	Percentage int    `json:"percentage"`
}

// Change-feed payloads

// ChangeOp names the kind of row change carried by a feed notification.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

type PollChange struct {
	EventID string   `json:"event_id"`
	PollID  string   `json:"poll_id"`
	Op      ChangeOp `json:"op"`
}

type VoteChange struct {
	EventID  string   `json:"event_id"`
	PollID   string   `json:"poll_id"`
	OptionID string   `json:"option_id"`
	Op       ChangeOp `json:"op"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
