// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"log/slog"
	"sync"

	"github.com/michaelalipng/yap-sub000/models"
)

// Feed delivers row-change notifications from the store to in-process
// listeners, filtered by event (polls) or poll (votes). Listeners run
// synchronously on the writer's goroutine after the write is committed.
type Feed struct {
	mu     sync.RWMutex
	nextID uint64
	polls  map[string]map[uint64]func(models.PollChange) // event id -> listeners
	votes  map[string]map[uint64]func(models.VoteChange) // poll id -> listeners
}

func NewFeed() *Feed {
	return &Feed{
		polls: map[string]map[uint64]func(models.PollChange){},
		votes: map[string]map[uint64]func(models.VoteChange){},
	}
}

// OnPollChange registers fn for inserts, updates and deletes of the event's
// polls. The returned func cancels the registration.
func (f *Feed) OnPollChange(eventID string, fn func(models.PollChange)) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	if f.polls[eventID] == nil {
		f.polls[eventID] = map[uint64]func(models.PollChange){}
	}
	f.polls[eventID][id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.polls[eventID], id)
		if len(f.polls[eventID]) == 0 {
			delete(f.polls, eventID)
		}
	}
}

// OnVoteChange registers fn for vote writes on the poll.
func (f *Feed) OnVoteChange(pollID string, fn func(models.VoteChange)) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	if f.votes[pollID] == nil {
		f.votes[pollID] = map[uint64]func(models.VoteChange){}
	}
	f.votes[pollID][id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.votes[pollID], id)
		if len(f.votes[pollID]) == 0 {
			delete(f.votes, pollID)
		}
	}
}

func (f *Feed) PublishPollChange(c models.PollChange) {
	f.mu.RLock()
	listeners := make([]func(models.PollChange), 0, len(f.polls[c.EventID]))
	for _, fn := range f.polls[c.EventID] {
		listeners = append(listeners, fn)
	}
	f.mu.RUnlock()

	for _, fn := range listeners {
		safeCall(func() { fn(c) })
	}
}

func (f *Feed) PublishVoteChange(c models.VoteChange) {
	f.mu.RLock()
	listeners := make([]func(models.VoteChange), 0, len(f.votes[c.PollID]))
	for _, fn := range f.votes[c.PollID] {
		listeners = append(listeners, fn)
	}
	f.mu.RUnlock()

	for _, fn := range listeners {
		safeCall(func() { fn(c) })
	}
}

// safeCall keeps a failing listener from breaking the writer
func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("change listener panicked", "panic", r)
		}
	}()
	fn()
}
