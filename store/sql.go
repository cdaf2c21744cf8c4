// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/michaelalipng/yap-sub000/models"
)

// SQLStore implements Repository over PostgreSQL or SQLite. Statements use
// $N placeholders, which both drivers accept.
type SQLStore struct {
	db  *sql.DB
	pub Publisher
	now func() time.Time

	// beforeVoteWrite runs between vote validation and the write; tests only
	beforeVoteWrite func()
}

func NewSQLStore(db *sql.DB, pub Publisher) *SQLStore {
	return &SQLStore{db: db, pub: publisherOrNop(pub), now: time.Now}
}

const pollColumns = `id, event_id, question, type, status, created_by, correct_option_id,
	starts_at, ends_at, duration_seconds, auto_start, queue_position, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (models.Poll, error) {
	var (
		p             models.Poll
		createdBy     sql.NullString
		correctOption sql.NullString
		startsAt      sql.NullTime
		endsAt        sql.NullTime
		duration      sql.NullInt64
	)
	err := row.Scan(
		&p.ID, &p.EventID, &p.Question, &p.Type, &p.Status, &createdBy, &correctOption,
		&startsAt, &endsAt, &duration, &p.AutoStart, &p.QueuePosition, &p.CreatedAt,
	)
	if err != nil {
		return models.Poll{}, err
	}
	if createdBy.Valid {
		p.CreatedBy = &createdBy.String
	}
	if correctOption.Valid {
		p.CorrectOptionID = &correctOption.String
	}
	if startsAt.Valid {
		t := startsAt.Time.UTC()
		p.StartsAt = &t
	}
	if endsAt.Valid {
		t := endsAt.Time.UTC()
		p.EndsAt = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		p.DurationSeconds = &d
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (s *SQLStore) queryPolls(ctx context.Context, query string, args ...any) ([]models.Poll, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	polls := []models.Poll{}
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, p)
	}
	return polls, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (s *SQLStore) CreateEvent(ctx context.Context, name string) (models.Event, error) {
	event := models.Event{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event (id, name, created_at)
		VALUES ($1, $2, $3)
	`, event.ID, event.Name, event.CreatedAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to insert event: %w", err)
	}
	return event, nil
}

func (s *SQLStore) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	var event models.Event
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM event WHERE id = $1
	`, eventID).Scan(&event.ID, &event.Name, &event.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrNotFound
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to query event: %w", err)
	}
	event.CreatedAt = event.CreatedAt.UTC()
	return event, nil
}

func (s *SQLStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM event ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Name, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *SQLStore) CreatePoll(ctx context.Context, poll models.Poll, options []models.PollOption) (models.Poll, []models.PollOption, error) {
	poll, stored, err := preparePoll(poll, options, s.now())
	if err != nil {
		return models.Poll{}, nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Poll{}, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if poll.Status == models.StatusActive {
		var exists bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM poll WHERE event_id = $1 AND status = $2)
		`, poll.EventID, models.StatusActive).Scan(&exists)
		if err != nil {
			return models.Poll{}, nil, fmt.Errorf("failed to check active poll: %w", err)
		}
		if exists {
			return models.Poll{}, nil, ErrActivePollExists
		}
	}

	var duration any
	if poll.DurationSeconds != nil {
		duration = *poll.DurationSeconds
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO poll (id, event_id, question, type, status, created_by, correct_option_id,
			starts_at, ends_at, duration_seconds, auto_start, queue_position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, poll.ID, poll.EventID, poll.Question, poll.Type, poll.Status, poll.CreatedBy, poll.CorrectOptionID,
		nullableTime(poll.StartsAt), nullableTime(poll.EndsAt), duration, poll.AutoStart, poll.QueuePosition, poll.CreatedAt)
	if isActivePollConflict(err) {
		return models.Poll{}, nil, ErrActivePollExists
	}
	if err != nil {
		return models.Poll{}, nil, fmt.Errorf("failed to insert poll: %w", err)
	}

	for _, opt := range stored {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO poll_option (id, poll_id, label, position, emoji)
			VALUES ($1, $2, $3, $4, $5)
		`, opt.ID, opt.PollID, opt.Label, opt.Position, opt.Emoji)
		if err != nil {
			return models.Poll{}, nil, fmt.Errorf("failed to insert option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Poll{}, nil, fmt.Errorf("failed to commit poll: %w", err)
	}

	s.pub.PublishPollChange(models.PollChange{EventID: poll.EventID, PollID: poll.ID, Op: models.OpInsert})
	return poll, stored, nil
}

func (s *SQLStore) GetPoll(ctx context.Context, pollID string) (models.Poll, error) {
	poll, err := scanPoll(s.db.QueryRowContext(ctx, `
		SELECT `+pollColumns+` FROM poll WHERE id = $1
	`, pollID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Poll{}, ErrNotFound
	}
	if err != nil {
		return models.Poll{}, fmt.Errorf("failed to query poll: %w", err)
	}
	return poll, nil
}

func (s *SQLStore) ListPolls(ctx context.Context, eventID string) ([]models.Poll, error) {
	polls, err := s.queryPolls(ctx, `
		SELECT `+pollColumns+` FROM poll
		WHERE event_id = $1
		ORDER BY queue_position, created_at, id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	return polls, nil
}

func (s *SQLStore) DeletePoll(ctx context.Context, pollID string) error {
	var eventID string
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM poll WHERE id = $1 RETURNING event_id
	`, pollID).Scan(&eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}

	s.pub.PublishPollChange(models.PollChange{EventID: eventID, PollID: pollID, Op: models.OpDelete})
	return nil
}

func (s *SQLStore) FindActivePoll(ctx context.Context, eventID string) (*models.Poll, error) {
	polls, err := s.queryPolls(ctx, `
		SELECT `+pollColumns+` FROM poll
		WHERE event_id = $1 AND status = $2
		ORDER BY starts_at DESC
	`, eventID, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active poll: %w", err)
	}
	if len(polls) == 0 {
		return nil, nil
	}
	return &polls[0], nil
}

func (s *SQLStore) FindActiveTimedPolls(ctx context.Context, eventID string) ([]models.Poll, error) {
	polls, err := s.queryPolls(ctx, `
		SELECT `+pollColumns+` FROM poll
		WHERE event_id = $1 AND status = $2 AND ends_at IS NOT NULL
	`, eventID, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active timed polls: %w", err)
	}
	return polls, nil
}

func (s *SQLStore) FindNextQueuedPoll(ctx context.Context, eventID string) (*models.Poll, error) {
	polls, err := s.queryPolls(ctx, `
		SELECT `+pollColumns+` FROM poll
		WHERE event_id = $1 AND status = $2 AND auto_start = $3
		ORDER BY queue_position, created_at, id
		LIMIT 1
	`, eventID, models.StatusDraft, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query queued poll: %w", err)
	}
	if len(polls) == 0 {
		return nil, nil
	}
	return &polls[0], nil
}

func (s *SQLStore) ClosePoll(ctx context.Context, pollID string, closedAt time.Time) (bool, error) {
	var eventID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE poll
		SET status = $1, ends_at = $2
		WHERE id = $3 AND status = $4
		RETURNING event_id
	`, models.StatusEnded, closedAt.UTC(), pollID, models.StatusActive).Scan(&eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to close poll: %w", err)
	}

	s.pub.PublishPollChange(models.PollChange{EventID: eventID, PollID: pollID, Op: models.OpUpdate})
	return true, nil
}

func (s *SQLStore) ActivatePoll(ctx context.Context, pollID string, startsAt time.Time, endsAt *time.Time) (bool, error) {
	var eventID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE poll
		SET status = $1, starts_at = $2, ends_at = $3
		WHERE id = $4 AND status = $5
		  AND NOT EXISTS (
			SELECT 1 FROM poll other
			WHERE other.event_id = poll.event_id AND other.status = $1
		  )
		RETURNING event_id
	`, models.StatusActive, startsAt.UTC(), nullableTime(endsAt), pollID, models.StatusDraft).Scan(&eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to activate poll: %w", err)
	}

	s.pub.PublishPollChange(models.PollChange{EventID: eventID, PollID: pollID, Op: models.OpUpdate})
	return true, nil
}

func (s *SQLStore) FindPollOptions(ctx context.Context, pollID string) ([]models.PollOption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, poll_id, label, position, emoji
		FROM poll_option
		WHERE poll_id = $1
		ORDER BY position, id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	options := []models.PollOption{}
	for rows.Next() {
		var opt models.PollOption
		var emoji sql.NullString
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Label, &opt.Position, &emoji); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		if emoji.Valid {
			opt.Emoji = &emoji.String
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

func (s *SQLStore) FindVotes(ctx context.Context, pollID string) ([]models.Vote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, poll_id, option_id, voter_id, event_id, created_at
		FROM vote
		WHERE poll_id = $1
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.PollID, &v.OptionID, &v.VoterID, &v.EventID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		v.CreatedAt = v.CreatedAt.UTC()
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (s *SQLStore) UpsertVote(ctx context.Context, vote models.Vote) (models.Vote, error) {
	poll, err := s.GetPoll(ctx, vote.PollID)
	if err != nil {
		return models.Vote{}, err
	}
	options, err := s.FindPollOptions(ctx, vote.PollID)
	if err != nil {
		return models.Vote{}, err
	}
	if err := validateVote(poll, options, vote); err != nil {
		return models.Vote{}, err
	}

	vote.EventID = poll.EventID
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = s.now()
	}
	vote.CreatedAt = vote.CreatedAt.UTC()

	if s.beforeVoteWrite != nil {
		s.beforeVoteWrite()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The no-op update locks the poll row and fails if it closed after validation
	res, err := tx.ExecContext(ctx, `
		UPDATE poll SET status = status WHERE id = $1 AND status = $2
	`, vote.PollID, models.StatusActive)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to lock poll: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to lock poll: %w", err)
	}
	if n == 0 {
		return models.Vote{}, ErrPollNotActive
	}

	// UNIQUE (poll_id, voter_id) turns a second vote into an update
	err = tx.QueryRowContext(ctx, `
		INSERT INTO vote (id, poll_id, option_id, voter_id, event_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (poll_id, voter_id) DO UPDATE SET option_id = excluded.option_id
		RETURNING id, created_at
	`, uuid.NewString(), vote.PollID, vote.OptionID, vote.VoterID, vote.EventID, vote.CreatedAt).Scan(&vote.ID, &vote.CreatedAt)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to upsert vote: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Vote{}, fmt.Errorf("failed to commit vote: %w", err)
	}

	s.pub.PublishVoteChange(models.VoteChange{
		EventID:  vote.EventID,
		PollID:   vote.PollID,
		OptionID: vote.OptionID,
		Op:       models.OpUpdate,
	})
	return vote, nil
}

// isActivePollConflict reports a PostgreSQL violation of idx_poll_one_active.
// SQLite runs on a single connection, so the EXISTS check already covers it.
func isActivePollConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "idx_poll_one_active"
}
