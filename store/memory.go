// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/michaelalipng/yap-sub000/models"
)

// MemoryStore implements Repository in process. It backs the "memory"
// database type and the transition engine tests.
type MemoryStore struct {
	mu      sync.Mutex
	pub     Publisher
	now     func() time.Time
	events  map[string]models.Event
	polls   map[string]models.Poll
	options map[string][]models.PollOption // poll id -> options by position
	votes   map[string]map[string]models.Vote // poll id -> voter id -> vote

	failNext error
}

func NewMemoryStore(pub Publisher) *MemoryStore {
	return &MemoryStore{
		pub:     publisherOrNop(pub),
		now:     time.Now,
		events:  map[string]models.Event{},
		polls:   map[string]models.Poll{},
		options: map[string][]models.PollOption{},
		votes:   map[string]map[string]models.Vote{},
	}
}

// takeFailure must be called with mu held
func (m *MemoryStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// SetFailure makes the next repository call return err. Tests use it to
// simulate a transient store failure.
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MemoryStore) CreateEvent(_ context.Context, name string) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return models.Event{}, err
	}

	event := models.Event{ID: uuid.NewString(), Name: name, CreatedAt: m.now().UTC()}
	m.events[event.ID] = event
	return event, nil
}

func (m *MemoryStore) GetEvent(_ context.Context, eventID string) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return models.Event{}, err
	}

	event, ok := m.events[eventID]
	if !ok {
		return models.Event{}, ErrNotFound
	}
	return event, nil
}

func (m *MemoryStore) ListEvents(_ context.Context) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(m.events))
	for _, e := range m.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (m *MemoryStore) CreatePoll(_ context.Context, poll models.Poll, options []models.PollOption) (models.Poll, []models.PollOption, error) {
	m.mu.Lock()
	if err := m.takeFailure(); err != nil {
		m.mu.Unlock()
		return models.Poll{}, nil, err
	}

	poll, stored, err := preparePoll(poll, options, m.now())
	if err != nil {
		m.mu.Unlock()
		return models.Poll{}, nil, err
	}
	if poll.Status == models.StatusActive && m.activeLocked(poll.EventID) != nil {
		m.mu.Unlock()
		return models.Poll{}, nil, ErrActivePollExists
	}

	sorted := append([]models.PollOption(nil), stored...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	m.polls[poll.ID] = poll
	m.options[poll.ID] = sorted
	m.mu.Unlock()

	m.pub.PublishPollChange(models.PollChange{EventID: poll.EventID, PollID: poll.ID, Op: models.OpInsert})
	return poll, stored, nil
}

func (m *MemoryStore) GetPoll(_ context.Context, pollID string) (models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return models.Poll{}, err
	}

	poll, ok := m.polls[pollID]
	if !ok {
		return models.Poll{}, ErrNotFound
	}
	return poll, nil
}

// pollsLocked returns the event's polls matching keep in queue order
func (m *MemoryStore) pollsLocked(eventID string, keep func(models.Poll) bool) []models.Poll {
	polls := []models.Poll{}
	for _, p := range m.polls {
		if p.EventID == eventID && keep(p) {
			polls = append(polls, p)
		}
	}
	sort.Slice(polls, func(i, j int) bool {
		a, b := polls[i], polls[j]
		if a.QueuePosition != b.QueuePosition {
			return a.QueuePosition < b.QueuePosition
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return polls
}

func (m *MemoryStore) activeLocked(eventID string) *models.Poll {
	active := m.pollsLocked(eventID, func(p models.Poll) bool { return p.Status == models.StatusActive })
	if len(active) == 0 {
		return nil
	}
	return &active[0]
}

func (m *MemoryStore) ListPolls(_ context.Context, eventID string) ([]models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	return m.pollsLocked(eventID, func(models.Poll) bool { return true }), nil
}

func (m *MemoryStore) DeletePoll(_ context.Context, pollID string) error {
	m.mu.Lock()
	if err := m.takeFailure(); err != nil {
		m.mu.Unlock()
		return err
	}

	poll, ok := m.polls[pollID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.polls, pollID)
	delete(m.options, pollID)
	delete(m.votes, pollID)
	m.mu.Unlock()

	m.pub.PublishPollChange(models.PollChange{EventID: poll.EventID, PollID: pollID, Op: models.OpDelete})
	return nil
}

func (m *MemoryStore) FindActivePoll(_ context.Context, eventID string) (*models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	return m.activeLocked(eventID), nil
}

func (m *MemoryStore) FindActiveTimedPolls(_ context.Context, eventID string) ([]models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	return m.pollsLocked(eventID, func(p models.Poll) bool {
		return p.Status == models.StatusActive && p.EndsAt != nil
	}), nil
}

func (m *MemoryStore) FindNextQueuedPoll(_ context.Context, eventID string) (*models.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	queued := m.pollsLocked(eventID, func(p models.Poll) bool {
		return p.Status == models.StatusDraft && p.AutoStart
	})
	if len(queued) == 0 {
		return nil, nil
	}
	return &queued[0], nil
}

func (m *MemoryStore) ClosePoll(_ context.Context, pollID string, closedAt time.Time) (bool, error) {
	m.mu.Lock()
	if err := m.takeFailure(); err != nil {
		m.mu.Unlock()
		return false, err
	}

	poll, ok := m.polls[pollID]
	if !ok || poll.Status != models.StatusActive {
		m.mu.Unlock()
		return false, nil
	}
	closed := closedAt.UTC()
	poll.Status = models.StatusEnded
	poll.EndsAt = &closed
	m.polls[pollID] = poll
	m.mu.Unlock()

	m.pub.PublishPollChange(models.PollChange{EventID: poll.EventID, PollID: pollID, Op: models.OpUpdate})
	return true, nil
}

func (m *MemoryStore) ActivatePoll(_ context.Context, pollID string, startsAt time.Time, endsAt *time.Time) (bool, error) {
	m.mu.Lock()
	if err := m.takeFailure(); err != nil {
		m.mu.Unlock()
		return false, err
	}

	poll, ok := m.polls[pollID]
	if !ok || poll.Status != models.StatusDraft || m.activeLocked(poll.EventID) != nil {
		m.mu.Unlock()
		return false, nil
	}
	start := startsAt.UTC()
	poll.Status = models.StatusActive
	poll.StartsAt = &start
	poll.EndsAt = nil
	if endsAt != nil {
		end := endsAt.UTC()
		poll.EndsAt = &end
	}
	m.polls[pollID] = poll
	m.mu.Unlock()

	m.pub.PublishPollChange(models.PollChange{EventID: poll.EventID, PollID: pollID, Op: models.OpUpdate})
	return true, nil
}

func (m *MemoryStore) FindPollOptions(_ context.Context, pollID string) ([]models.PollOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	return append([]models.PollOption{}, m.options[pollID]...), nil
}

func (m *MemoryStore) FindVotes(_ context.Context, pollID string) ([]models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	votes := make([]models.Vote, 0, len(m.votes[pollID]))
	for _, v := range m.votes[pollID] {
		votes = append(votes, v)
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].ID < votes[j].ID })
	return votes, nil
}

func (m *MemoryStore) UpsertVote(_ context.Context, vote models.Vote) (models.Vote, error) {
	m.mu.Lock()
	if err := m.takeFailure(); err != nil {
		m.mu.Unlock()
		return models.Vote{}, err
	}

	poll, ok := m.polls[vote.PollID]
	if !ok {
		m.mu.Unlock()
		return models.Vote{}, ErrNotFound
	}
	if err := validateVote(poll, m.options[vote.PollID], vote); err != nil {
		m.mu.Unlock()
		return models.Vote{}, err
	}

	byVoter := m.votes[vote.PollID]
	if byVoter == nil {
		byVoter = map[string]models.Vote{}
		m.votes[vote.PollID] = byVoter
	}

	if existing, ok := byVoter[vote.VoterID]; ok {
		existing.OptionID = vote.OptionID
		vote = existing
	} else {
		vote.ID = uuid.NewString()
		vote.EventID = poll.EventID
		if vote.CreatedAt.IsZero() {
			vote.CreatedAt = m.now()
		}
		vote.CreatedAt = vote.CreatedAt.UTC()
	}
	byVoter[vote.VoterID] = vote
	m.mu.Unlock()

	m.pub.PublishVoteChange(models.VoteChange{
		EventID:  vote.EventID,
		PollID:   vote.PollID,
		OptionID: vote.OptionID,
		Op:       models.OpUpdate,
	})
	return vote, nil
}
