// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/testutil"
)

// TestPollLifecycle drives an event from creation through a timed poll
// expiring and the next queued poll taking over.
func TestPollLifecycle(t *testing.T) {
	env := newTestEnv(t)
	events := NewEventHandler(env.repo, env.engine, env.cfg)
	polls := NewPollHandler(env.repo, env.engine, env.cfg)
	voting := NewVotingHandler(env.repo)
	res := NewResultsHandler(env.repo)
	ctx := context.Background()

	// 1. Create the event
	req := testutil.MakeRequest("POST", "/events", models.CreateEventRequest{Name: "Town Hall"}, nil)
	w := httptest.NewRecorder()
	events.CreateEvent(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var event models.CreateEventResponse
	testutil.AssertJSON(t, w, &event)
	mod := testutil.ModeratorHeaders(event.ModeratorKey)

	// 2. Queue two polls
	createPoll := func(body models.CreatePollRequest) models.CreatePollResponse {
		t.Helper()
		req := testutil.MakeRequest("POST", "/events/"+event.EventID+"/polls", body, mod)
		req.SetPathValue("id", event.EventID)
		w := httptest.NewRecorder()
		polls.CreatePoll(w, req)
		testutil.AssertStatus(t, w, http.StatusCreated)

		var resp models.CreatePollResponse
		testutil.AssertJSON(t, w, &resp)
		return resp
	}

	first := createPoll(models.CreatePollRequest{
		Question:        "Budget priority?",
		Options:         []models.CreateOptionRequest{{Label: "Parks"}, {Label: "Roads"}, {Label: "Schools"}},
		DurationSeconds: intPtr(60),
		QueuePosition:   1,
	})
	second := createPoll(models.CreatePollRequest{
		Question:        "Meet monthly?",
		Type:            models.TypeBinary,
		Options:         yesNo(),
		DurationSeconds: intPtr(30),
		AutoStart:       true,
		QueuePosition:   2,
	})

	// 3. Start the first poll by hand
	req = testutil.MakeRequest("POST", "/polls/"+first.Poll.ID+"/start", nil, mod)
	req.SetPathValue("id", first.Poll.ID)
	w = httptest.NewRecorder()
	polls.StartPoll(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	// 4. Vote, with one voter changing their mind
	vote := func(voterID, optionID string) {
		t.Helper()
		req := testutil.MakeRequest("POST", "/polls/"+first.Poll.ID+"/votes", models.CastVoteRequest{OptionID: optionID}, testutil.VoterHeaders(voterID))
		req.SetPathValue("id", first.Poll.ID)
		w := httptest.NewRecorder()
		voting.CastVote(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)
	}
	vote("alice", first.Options[0].ID)
	vote("bob", first.Options[2].ID)
	vote("carol", first.Options[2].ID)
	vote("alice", first.Options[2].ID)

	// 5. Nothing happens before the deadline
	env.clock.Advance(59 * time.Second)
	pass, err := env.engine.TriggerTransition(ctx, event.EventID)
	if err != nil {
		t.Fatalf("TriggerTransition failed: %v", err)
	}
	if pass.Changed() {
		t.Fatalf("Expected no transition before the deadline, got %+v", pass)
	}

	// 6. The deadline passes: first ends and second starts
	env.clock.Advance(2 * time.Second)
	pass, err = env.engine.TriggerTransition(ctx, event.EventID)
	if err != nil {
		t.Fatalf("TriggerTransition failed: %v", err)
	}
	if len(pass.Closed) != 1 || pass.Closed[0] != first.Poll.ID {
		t.Errorf("Expected first poll closed, got %v", pass.Closed)
	}
	if pass.Started == nil || pass.Started.ID != second.Poll.ID {
		t.Fatalf("Expected second poll started, got %+v", pass.Started)
	}

	req = testutil.MakeRequest("GET", "/events/"+event.EventID+"/active", nil, nil)
	req.SetPathValue("id", event.EventID)
	w = httptest.NewRecorder()
	events.GetActive(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var active models.ActivePollResponse
	testutil.AssertJSON(t, w, &active)
	if active.Poll == nil || active.Poll.ID != second.Poll.ID {
		t.Fatalf("Expected second poll active, got %+v", active.Poll)
	}
	wantEnd := env.clock.Now().Add(30 * time.Second)
	if active.Poll.EndsAt == nil || !active.Poll.EndsAt.Equal(wantEnd) {
		t.Errorf("Expected ends_at %v, got %v", wantEnd, active.Poll.EndsAt)
	}

	// 7. Voting on the ended poll is refused
	req = testutil.MakeRequest("POST", "/polls/"+first.Poll.ID+"/votes", models.CastVoteRequest{OptionID: first.Options[0].ID}, testutil.VoterHeaders("dave"))
	req.SetPathValue("id", first.Poll.ID)
	w = httptest.NewRecorder()
	voting.CastVote(w, req)
	testutil.AssertStatus(t, w, http.StatusConflict)

	// 8. Final results of the first poll
	req = testutil.MakeRequest("GET", "/polls/"+first.Poll.ID+"/results", nil, nil)
	req.SetPathValue("id", first.Poll.ID)
	w = httptest.NewRecorder()
	res.GetResults(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var final models.PollResultsResponse
	testutil.AssertJSON(t, w, &final)
	if final.Poll.Status != models.StatusEnded {
		t.Errorf("Expected ended poll, got %s", final.Poll.Status)
	}
	if final.TotalVotes != 3 {
		t.Errorf("Expected 3 votes, got %d", final.TotalVotes)
	}
	if final.LeadingOptionID != first.Options[2].ID {
		t.Errorf("Expected Schools leading, got %s", final.LeadingOptionID)
	}
	if final.Results[2].Percentage != 100 {
		t.Errorf("Expected 100%% for Schools, got %d", final.Results[2].Percentage)
	}

	// 9. The queue is exhausted once the second poll expires
	env.clock.Advance(31 * time.Second)
	pass, err = env.engine.TriggerTransition(ctx, event.EventID)
	if err != nil {
		t.Fatalf("TriggerTransition failed: %v", err)
	}
	if len(pass.Closed) != 1 || pass.Started != nil {
		t.Errorf("Expected second poll closed with nothing started, got %+v", pass)
	}
}
