// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package transitions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/store"
)

// DefaultInterval is how often a monitored event is checked for expired polls.
const DefaultInterval = time.Second

var (
	ErrPollNotDraft  = errors.New("poll is not a draft")
	ErrPollNotActive = errors.New("poll is not active")
	ErrNotStarted    = errors.New("poll could not be started")
)

// Clock supplies the current time. Tests substitute a virtual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Subscriber is notified after a pass that changed an event's polls.
// Implementations must be comparable; pointer types are the norm.
type Subscriber interface {
	OnTransition(eventID string)
}

// Callback adapts a zero-argument function to Subscriber. Each *Callback is
// a distinct subscription handle.
type Callback struct {
	fn func()
}

func NewCallback(fn func()) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) OnTransition(string) { c.fn() }

// Result describes what one check-and-transition pass changed.
type Result struct {
	Closed  []string     // ids of polls moved to ended
	Started *models.Poll // poll promoted from the queue, if any
}

// Changed reports whether the pass transitioned any poll.
func (r Result) Changed() bool {
	return len(r.Closed) > 0 || r.Started != nil
}

type monitor struct {
	stop chan struct{}
	done chan struct{}
}

// Engine advances each monitored event's polls through draft → active →
// ended. One Engine serves every event in the process.
type Engine struct {
	repo            store.Repository
	clock           Clock
	interval        time.Duration
	defaultDuration time.Duration
	logger          *slog.Logger

	mu          sync.Mutex
	monitors    map[string]*monitor
	subscribers map[string]map[Subscriber]struct{}
	pending     map[string]bool // events owing a promotion after a failed pass
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

func WithDefaultDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultDuration = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func New(repo store.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:            repo,
		clock:           systemClock{},
		interval:        DefaultInterval,
		defaultDuration: models.DefaultPollDuration,
		logger:          slog.Default(),
		monitors:        map[string]*monitor{},
		subscribers:     map[string]map[Subscriber]struct{}{},
		pending:         map[string]bool{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartMonitoring begins periodic checks for the event. It reports false
// when the event was already monitored.
func (e *Engine) StartMonitoring(eventID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.monitors[eventID]; ok {
		return false
	}

	m := &monitor{stop: make(chan struct{}), done: make(chan struct{})}
	e.monitors[eventID] = m
	go e.run(eventID, m)

	e.logger.Info("monitoring started", "event_id", eventID, "interval", e.interval)
	return true
}

// Resume starts monitoring an event that existed before the process
// started. An event with ended polls and none active may have stopped
// between a close and the following promotion, so its first pass promotes
// the next queued poll.
func (e *Engine) Resume(ctx context.Context, eventID string) error {
	active, err := e.repo.FindActivePoll(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to find active poll: %w", err)
	}

	if active == nil {
		polls, err := e.repo.ListPolls(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to list polls: %w", err)
		}
		for _, p := range polls {
			if p.Status == models.StatusEnded {
				e.mu.Lock()
				e.pending[eventID] = true
				e.mu.Unlock()
				e.logger.Info("promotion owed after restart", "event_id", eventID)
				break
			}
		}
	}

	e.StartMonitoring(eventID)
	return nil
}

// StopMonitoring cancels periodic checks for the event. Passes already in
// flight run to completion and still notify subscribers.
func (e *Engine) StopMonitoring(eventID string) bool {
	e.mu.Lock()
	m, ok := e.monitors[eventID]
	if ok {
		delete(e.monitors, eventID)
	}
	e.mu.Unlock()

	if !ok {
		return false
	}
	close(m.stop)
	<-m.done

	e.logger.Info("monitoring stopped", "event_id", eventID)
	return true
}

// Monitoring reports whether the event has a running periodic check.
func (e *Engine) Monitoring(eventID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.monitors[eventID]
	return ok
}

// Close stops every monitor.
func (e *Engine) Close() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.monitors))
	for id := range e.monitors {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.StopMonitoring(id)
	}
}

// run fires a pass every interval. Passes are not serialized: a slow pass
// does not delay the next one.
func (e *Engine) run(eventID string, m *monitor) {
	defer close(m.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			go func() {
				if _, err := e.TriggerTransition(context.Background(), eventID); err != nil {
					e.logger.Error("transition pass failed", "event_id", eventID, "error", err)
				}
			}()
		}
	}
}

// Subscribe registers s for the event's transition notifications.
// Registering the same subscriber twice has no further effect.
func (e *Engine) Subscribe(eventID string, s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := e.subscribers[eventID]
	if set == nil {
		set = map[Subscriber]struct{}{}
		e.subscribers[eventID] = set
	}
	set[s] = struct{}{}
}

func (e *Engine) Unsubscribe(eventID string, s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := e.subscribers[eventID]
	delete(set, s)
	if len(set) == 0 {
		delete(e.subscribers, eventID)
	}
}

func (e *Engine) notify(eventID string) {
	e.mu.Lock()
	subs := make([]Subscriber, 0, len(e.subscribers[eventID]))
	for s := range e.subscribers[eventID] {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	for _, s := range subs {
		e.deliver(eventID, s)
	}
}

// deliver shields the engine from a panicking subscriber
func (e *Engine) deliver(eventID string, s Subscriber) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("transition subscriber panicked", "event_id", eventID, "panic", r)
		}
	}()
	s.OnTransition(eventID)
}

// TriggerTransition runs one check-and-transition pass for the event:
// expired active polls are ended, then, if anything was ended, the next
// queued auto-start poll is activated. Subscribers are notified once when
// the pass changed anything, even if a later step failed.
func (e *Engine) TriggerTransition(ctx context.Context, eventID string) (Result, error) {
	var res Result
	defer func() {
		if res.Changed() {
			e.notify(eventID)
		}
	}()

	active, err := e.repo.FindActiveTimedPolls(ctx, eventID)
	if err != nil {
		return res, fmt.Errorf("failed to find active polls: %w", err)
	}

	now := e.clock.Now()
	for _, poll := range active {
		if !poll.Expired(now) {
			continue
		}
		closed, err := e.repo.ClosePoll(ctx, poll.ID, now)
		if err != nil {
			return res, fmt.Errorf("failed to close poll %s: %w", poll.ID, err)
		}
		if closed {
			res.Closed = append(res.Closed, poll.ID)
			e.logger.Info("poll ended", "event_id", eventID, "poll_id", poll.ID, "ends_at", poll.EndsAt)
		}
	}

	e.mu.Lock()
	owed := e.pending[eventID]
	e.mu.Unlock()

	if len(res.Closed) == 0 && !owed {
		return res, nil
	}

	started, err := e.promoteNext(ctx, eventID, now)
	if err != nil {
		return res, err
	}
	res.Started = started
	return res, nil
}

// promoteNext activates the first queued auto-start poll. A failure leaves
// the event marked so the next pass retries the promotion.
func (e *Engine) promoteNext(ctx context.Context, eventID string, now time.Time) (*models.Poll, error) {
	started, err := e.activateNext(ctx, eventID, now)

	e.mu.Lock()
	if err != nil {
		e.pending[eventID] = true
	} else {
		delete(e.pending, eventID)
	}
	e.mu.Unlock()

	return started, err
}

func (e *Engine) activateNext(ctx context.Context, eventID string, now time.Time) (*models.Poll, error) {
	next, err := e.repo.FindNextQueuedPoll(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to find queued poll: %w", err)
	}
	if next == nil {
		return nil, nil
	}

	endsAt := next.Deadline(now, e.defaultDuration)
	ok, err := e.repo.ActivatePoll(ctx, next.ID, now, endsAt)
	if err != nil {
		return nil, fmt.Errorf("failed to activate poll %s: %w", next.ID, err)
	}
	if !ok {
		// Another writer activated a poll first
		return nil, nil
	}

	start := now.UTC()
	next.Status = models.StatusActive
	next.StartsAt = &start
	next.EndsAt = endsAt

	e.logger.Info("poll started", "event_id", eventID, "poll_id", next.ID, "ends_at", endsAt)
	return next, nil
}

// EndCurrentAndStartNext ends the event's active poll, timed or not, and
// promotes the next queued poll. It reports whether a poll was started;
// an empty queue is not an error.
func (e *Engine) EndCurrentAndStartNext(ctx context.Context, eventID string) (bool, error) {
	var changed bool
	defer func() {
		if changed {
			e.notify(eventID)
		}
	}()

	now := e.clock.Now()

	current, err := e.repo.FindActivePoll(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to find active poll: %w", err)
	}
	if current != nil {
		closed, err := e.repo.ClosePoll(ctx, current.ID, now)
		if err != nil {
			return false, fmt.Errorf("failed to close poll %s: %w", current.ID, err)
		}
		changed = closed
	}

	started, err := e.promoteNext(ctx, eventID, now)
	if err != nil {
		return false, err
	}
	if started != nil {
		changed = true
	}
	return started != nil, nil
}

// StartPoll activates a draft poll on moderator request, ending whatever
// poll is active for its event first. auto_start is not consulted.
func (e *Engine) StartPoll(ctx context.Context, pollID string) (models.Poll, error) {
	poll, err := e.repo.GetPoll(ctx, pollID)
	if err != nil {
		return models.Poll{}, err
	}
	if poll.Status != models.StatusDraft {
		return models.Poll{}, ErrPollNotDraft
	}

	var changed bool
	defer func() {
		if changed {
			e.notify(poll.EventID)
		}
	}()

	now := e.clock.Now()

	current, err := e.repo.FindActivePoll(ctx, poll.EventID)
	if err != nil {
		return models.Poll{}, fmt.Errorf("failed to find active poll: %w", err)
	}
	if current != nil {
		closed, err := e.repo.ClosePoll(ctx, current.ID, now)
		if err != nil {
			return models.Poll{}, fmt.Errorf("failed to close poll %s: %w", current.ID, err)
		}
		changed = closed
	}

	endsAt := poll.Deadline(now, e.defaultDuration)
	ok, err := e.repo.ActivatePoll(ctx, poll.ID, now, endsAt)
	if err != nil {
		return models.Poll{}, fmt.Errorf("failed to activate poll %s: %w", poll.ID, err)
	}
	if !ok {
		return models.Poll{}, ErrNotStarted
	}
	changed = true

	e.logger.Info("poll started manually", "event_id", poll.EventID, "poll_id", poll.ID, "ends_at", endsAt)

	start := now.UTC()
	poll.Status = models.StatusActive
	poll.StartsAt = &start
	poll.EndsAt = endsAt
	return poll, nil
}

// EndPoll ends an active poll on moderator request and immediately runs a
// pass so the next queued poll starts without waiting for a tick.
func (e *Engine) EndPoll(ctx context.Context, pollID string) (Result, error) {
	poll, err := e.repo.GetPoll(ctx, pollID)
	if err != nil {
		return Result{}, err
	}

	closed, err := e.repo.ClosePoll(ctx, poll.ID, e.clock.Now())
	if err != nil {
		return Result{}, fmt.Errorf("failed to close poll %s: %w", poll.ID, err)
	}
	if !closed {
		return Result{}, ErrPollNotActive
	}
	e.logger.Info("poll ended manually", "event_id", poll.EventID, "poll_id", poll.ID)

	e.mu.Lock()
	e.pending[poll.EventID] = true
	e.mu.Unlock()

	res, err := e.TriggerTransition(ctx, poll.EventID)
	res.Closed = append([]string{poll.ID}, res.Closed...)
	if res.Started == nil && len(res.Closed) == 1 {
		// The pass itself changed nothing, so it did not notify
		e.notify(poll.EventID)
	}
	return res, err
}
