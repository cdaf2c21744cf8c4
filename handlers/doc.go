// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the yap API.

# Handler Types

Each handler is a struct holding the repository and whatever else it needs:

  - EventHandler: Event creation, active poll view, queue advance, monitoring
  - PollHandler: Poll creation and manual start, end and delete
  - VotingHandler: Vote casting (one vote per voter per poll)
  - ResultsHandler: Live and final results
  - StreamHandler: Websocket feed of transitions, poll changes and results

Handlers are created via constructor functions:

	pollHandler := handlers.NewPollHandler(repo, engine, cfg)

# Poll Lifecycle

Polls move draft → active → ended and never back. At most one poll per
event is active. The transitions engine ends timed polls at their deadline
and promotes the next queued poll with auto_start set.

	POST /events/{id}/polls → CreatePoll (draft, or active with start_now)
	POST /polls/{id}/start  → StartPoll (ends the current poll first)
	POST /polls/{id}/end    → EndPoll (promotes the next queued poll)
	POST /events/{id}/next  → StartNext

Moderator operations require the X-Moderator-Key header returned when the
event was created.

# Voting

	POST /polls/{id}/votes → CastVote

The voter is identified by the X-Voter-ID header. Voting again on the
same poll replaces the earlier choice. Votes are refused with 409 unless
the poll is active.

# Errors

Repository errors map to status codes in writeRepoError: missing rows are
404, state conflicts 409 and options from another poll 400. Bodies over
middleware.MaxBodyBytes are 413.
*/
package handlers
