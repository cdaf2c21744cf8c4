// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/store"
	"github.com/michaelalipng/yap-sub000/transitions"
)

type bridgeFixture struct {
	repo   *store.MemoryStore
	engine *transitions.Engine
	hub    *Hub
	bridge *Bridge
	srv    *httptest.Server
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()

	feed := NewFeed()
	repo := store.NewMemoryStore(feed)
	engine := transitions.New(repo)
	hub := NewHub()
	bridge := NewBridge(hub, feed, repo, engine)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventID := strings.TrimPrefix(r.URL.Path, "/")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		bridge.Watch(eventID)
		defer bridge.Release(eventID)

		snapshot, err := bridge.Snapshot(r.Context(), eventID)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "snapshot failed")
			return
		}
		hub.Serve(r.Context(), eventID, conn, &snapshot)
	}))
	t.Cleanup(srv.Close)

	return &bridgeFixture{repo: repo, engine: engine, hub: hub, bridge: bridge, srv: srv}
}

func (f *bridgeFixture) poll(t *testing.T, eventID string, status string, autoStart bool, position int) (models.Poll, []models.PollOption) {
	t.Helper()
	poll, options, err := f.repo.CreatePoll(context.Background(), models.Poll{
		EventID:       eventID,
		Question:      "Best worship song?",
		Type:          models.TypeMulti,
		Status:        status,
		AutoStart:     autoStart,
		QueuePosition: position,
	}, []models.PollOption{{Label: "Oceans"}, {Label: "Goodness of God", Position: 1}})
	require.NoError(t, err)
	return poll, options
}

func TestBridgeSendsSnapshotOnConnect(t *testing.T) {
	f := newBridgeFixture(t)
	active, _ := f.poll(t, "evt", models.StatusActive, false, 0)

	conn := dial(t, f.srv, "evt")
	got := readType(t, conn, MsgTypeState)

	var state models.ActivePollResponse
	require.NoError(t, json.Unmarshal(got.Payload, &state))
	require.NotNil(t, state.Poll)
	assert.Equal(t, active.ID, state.Poll.ID)
	assert.Len(t, state.Options, 2)
	assert.True(t, f.bridge.Watching("evt"))
}

func TestBridgeBroadcastsResultsOnVote(t *testing.T) {
	f := newBridgeFixture(t)
	active, options := f.poll(t, "evt", models.StatusActive, false, 0)

	conn := dial(t, f.srv, "evt")
	readType(t, conn, MsgTypeState)

	_, err := f.repo.UpsertVote(context.Background(), models.Vote{
		PollID:   active.ID,
		OptionID: options[1].ID,
		VoterID:  "voter-1",
	})
	require.NoError(t, err)

	got := readType(t, conn, MsgTypeResults)
	var res models.PollResultsResponse
	require.NoError(t, json.Unmarshal(got.Payload, &res))
	assert.Equal(t, 1, res.TotalVotes)
	assert.Equal(t, options[1].ID, res.LeadingOptionID)
	assert.Equal(t, 100, res.Results[1].Percentage)
}

func TestBridgeFollowsTransitions(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	f.poll(t, "evt", models.StatusActive, false, 0)
	next, nextOptions := f.poll(t, "evt", models.StatusDraft, true, 1)

	conn := dial(t, f.srv, "evt")
	readType(t, conn, MsgTypeState)

	started, err := f.engine.EndCurrentAndStartNext(ctx, "evt")
	require.NoError(t, err)
	require.True(t, started)

	got := readType(t, conn, MsgTypePollTransition)
	var state models.ActivePollResponse
	require.NoError(t, json.Unmarshal(got.Payload, &state))
	require.NotNil(t, state.Poll)
	assert.Equal(t, next.ID, state.Poll.ID)

	// Votes on the newly active poll now reach viewers
	_, err = f.repo.UpsertVote(ctx, models.Vote{PollID: next.ID, OptionID: nextOptions[0].ID, VoterID: "voter-1"})
	require.NoError(t, err)

	got = readType(t, conn, MsgTypeResults)
	var res models.PollResultsResponse
	require.NoError(t, json.Unmarshal(got.Payload, &res))
	assert.Equal(t, next.ID, res.Poll.ID)
	assert.Equal(t, 1, res.TotalVotes)
}

func TestBridgeReleasesAfterLastViewer(t *testing.T) {
	f := newBridgeFixture(t)

	conn := dial(t, f.srv, "evt")
	readType(t, conn, MsgTypeState)
	require.True(t, f.bridge.Watching("evt"))

	conn.Close(websocket.StatusNormalClosure, "")

	assert.Eventually(t, func() bool {
		return !f.bridge.Watching("evt")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridgeKeepsWatchForConnectingViewer(t *testing.T) {
	f := newBridgeFixture(t)
	ctx := context.Background()
	f.poll(t, "evt", models.StatusActive, false, 0)
	next, _ := f.poll(t, "evt", models.StatusDraft, true, 1)

	f.bridge.Watch("evt") // viewer already connected
	f.bridge.Watch("evt") // viewer connecting, not yet registered with the hub
	f.bridge.Release("evt")
	require.True(t, f.bridge.Watching("evt"), "connecting viewer keeps the watch alive")

	// Finish the connecting viewer's handshake without another Watch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer f.bridge.Release("evt")
		f.hub.Serve(r.Context(), "evt", conn, nil)
	}))
	t.Cleanup(srv.Close)

	conn := dial(t, srv, "evt")
	require.Eventually(t, func() bool {
		return f.hub.ConnectionCount("evt") == 1
	}, 2*time.Second, 10*time.Millisecond)

	started, err := f.engine.EndCurrentAndStartNext(ctx, "evt")
	require.NoError(t, err)
	require.True(t, started)

	got := readType(t, conn, MsgTypePollTransition)
	var state models.ActivePollResponse
	require.NoError(t, json.Unmarshal(got.Payload, &state))
	require.NotNil(t, state.Poll)
	assert.Equal(t, next.ID, state.Poll.ID)
}

func TestBridgeWatchIsReferenceCounted(t *testing.T) {
	f := newBridgeFixture(t)

	f.bridge.Watch("evt")
	f.bridge.Watch("evt")
	f.bridge.Release("evt")
	assert.True(t, f.bridge.Watching("evt"))

	f.bridge.Release("evt")
	assert.False(t, f.bridge.Watching("evt"))

	// Extra releases are ignored
	f.bridge.Release("evt")
	assert.False(t, f.bridge.Watching("evt"))
}
