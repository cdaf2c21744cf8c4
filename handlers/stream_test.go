// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/realtime"
	"github.com/michaelalipng/yap-sub000/testutil"
)

type streamFrame struct {
	Type    string          `json:"type"`
	EventID string          `json:"event_id"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil reads frames until one of the wanted type arrives
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, want string) streamFrame {
	t.Helper()
	for {
		var f streamFrame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("Failed waiting for %q frame: %v", want, err)
		}
		if f.Type == want {
			return f
		}
	}
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)
	hub := realtime.NewHub()
	bridge := realtime.NewBridge(hub, env.feed, env.repo, env.engine)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /events/{id}/stream", NewStreamHandler(env.repo, hub, bridge).Stream)
	mux.HandleFunc("POST /polls/{id}/votes", NewVotingHandler(env.repo).CastVote)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	eventID, _ := testutil.CreateTestEvent(t, env.repo, env.cfg)
	poll, options := testutil.CreateTestPoll(t, env.repo, eventID, testutil.TestPoll{Status: models.StatusActive})
	next, _ := testutil.CreateTestPoll(t, env.repo, eventID, testutil.TestPoll{AutoStart: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("unknown event", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/events/missing/stream")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.StatusCode)
		}
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/" + eventID + "/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.CloseNow()

	// Snapshot first
	f := readUntil(t, ctx, conn, realtime.MsgTypeState)
	var state models.ActivePollResponse
	if err := json.Unmarshal(f.Payload, &state); err != nil {
		t.Fatal(err)
	}
	if state.Poll == nil || state.Poll.ID != poll.ID {
		t.Fatalf("Expected snapshot of %s, got %+v", poll.ID, state.Poll)
	}

	// A vote produces a results frame
	req, _ := http.NewRequest("POST", srv.URL+"/polls/"+poll.ID+"/votes", strings.NewReader(`{"option_id":"`+options[0].ID+`"}`))
	req.Header.Set("X-Voter-ID", "viewer-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Vote returned %d", resp.StatusCode)
	}

	f = readUntil(t, ctx, conn, realtime.MsgTypeResults)
	var live models.PollResultsResponse
	if err := json.Unmarshal(f.Payload, &live); err != nil {
		t.Fatal(err)
	}
	if live.TotalVotes != 1 || live.Results[0].VoteCount != 1 {
		t.Errorf("Expected one vote for the first option, got %+v", live.Results)
	}

	// Advancing the event announces the transition
	if _, err := env.engine.EndCurrentAndStartNext(ctx, eventID); err != nil {
		t.Fatal(err)
	}
	f = readUntil(t, ctx, conn, realtime.MsgTypePollTransition)
	if err := json.Unmarshal(f.Payload, &state); err != nil {
		t.Fatal(err)
	}
	if state.Poll == nil || state.Poll.ID != next.ID {
		t.Errorf("Expected %s to be active after transition, got %+v", next.ID, state.Poll)
	}
}
