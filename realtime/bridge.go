// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/results"
	"github.com/michaelalipng/yap-sub000/transitions"
)

const refreshTimeout = 5 * time.Second

// Bridge turns engine transitions and store changes into hub broadcasts
// for every event that has at least one connected viewer.
type Bridge struct {
	hub    *Hub
	feed   *Feed
	src    results.Source
	engine *transitions.Engine

	mu      sync.Mutex
	watches map[string]*watch
}

func NewBridge(hub *Hub, feed *Feed, src results.Source, engine *transitions.Engine) *Bridge {
	return &Bridge{
		hub:     hub,
		feed:    feed,
		src:     src,
		engine:  engine,
		watches: map[string]*watch{},
	}
}

// watch holds the subscriptions for one event. It is the engine
// subscriber for that event, so its pointer identity is the
// subscription handle.
type watch struct {
	b       *Bridge
	eventID string

	cancelPolls func()
	refs        int // open Watch calls, guarded by Bridge.mu

	mu          sync.Mutex
	released    bool
	votePollID  string
	cancelVotes func()
}

// Watch starts relaying changes for the event. Every call must be paired
// with a Release; the subscriptions live until the last one.
func (b *Bridge) Watch(eventID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w, ok := b.watches[eventID]; ok {
		w.refs++
		return
	}

	w := &watch{b: b, eventID: eventID, refs: 1}
	b.watches[eventID] = w

	b.engine.Subscribe(eventID, w)
	w.cancelPolls = b.feed.OnPollChange(eventID, w.onPollChange)
	w.followActive()

	slog.Debug("watching event", "event_id", eventID)
}

// Release drops one Watch and stops relaying when none are left.
func (b *Bridge) Release(eventID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.watches[eventID]
	if !ok {
		return
	}
	w.refs--
	if w.refs > 0 {
		return
	}
	delete(b.watches, eventID)

	b.engine.Unsubscribe(eventID, w)
	w.cancelPolls()
	w.mu.Lock()
	w.released = true
	if w.cancelVotes != nil {
		w.cancelVotes()
		w.cancelVotes = nil
	}
	w.mu.Unlock()

	slog.Debug("released event", "event_id", eventID)
}

// Watching reports whether the event is currently relayed.
func (b *Bridge) Watching(eventID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.watches[eventID]
	return ok
}

// Snapshot returns the message sent to a viewer on connect.
func (b *Bridge) Snapshot(ctx context.Context, eventID string) (Message, error) {
	state, err := results.ActivePoll(ctx, b.src, eventID)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MsgTypeState, EventID: eventID, Payload: state}, nil
}

func (w *watch) OnTransition(eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	state, err := results.ActivePoll(ctx, w.b.src, eventID)
	if err != nil {
		slog.Error("failed to load active poll after transition", "event_id", eventID, "error", err)
		return
	}
	w.follow(state.Poll)
	w.b.hub.Broadcast(eventID, Message{Type: MsgTypePollTransition, Payload: state})
}

func (w *watch) onPollChange(c models.PollChange) {
	w.followActive()
	w.b.hub.Broadcast(w.eventID, Message{Type: MsgTypePollChanged, Payload: c})
}

func (w *watch) onVoteChange(c models.VoteChange) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	active, err := w.b.src.FindActivePoll(ctx, w.eventID)
	if err != nil {
		slog.Error("failed to load poll for results", "poll_id", c.PollID, "error", err)
		return
	}
	if active == nil || active.ID != c.PollID {
		return
	}

	resp, err := results.ForPoll(ctx, w.b.src, *active)
	if err != nil {
		slog.Error("failed to aggregate results", "poll_id", c.PollID, "error", err)
		return
	}
	w.b.hub.Broadcast(w.eventID, Message{Type: MsgTypeResults, Payload: resp})
}

func (w *watch) followActive() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	active, err := w.b.src.FindActivePoll(ctx, w.eventID)
	if err != nil {
		slog.Error("failed to find active poll", "event_id", w.eventID, "error", err)
		return
	}
	w.follow(active)
}

// follow moves the vote subscription to the given active poll
func (w *watch) follow(active *models.Poll) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return
	}
	pollID := ""
	if active != nil {
		pollID = active.ID
	}
	if pollID == w.votePollID {
		return
	}

	if w.cancelVotes != nil {
		w.cancelVotes()
		w.cancelVotes = nil
	}
	w.votePollID = pollID
	if pollID != "" {
		w.cancelVotes = w.b.feed.OnVoteChange(pollID, w.onVoteChange)
	}
}
