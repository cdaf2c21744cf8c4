// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateEventRequest: name
  - CreatePollRequest: question, type, options, duration, queue settings
  - CastVoteRequest: option_id

# Response Types

  - CreateEventResponse: event_id, moderator_key
  - CreatePollResponse: poll with its options
  - StartNextResponse: started flag and the promoted poll
  - EndPollResponse: closed poll ids and the promoted poll
  - ListPollsResponse: an event's polls in queue order
  - MonitorResponse: monitoring state after start or stop
  - CastVoteResponse: vote_id, option_id
  - PollResultsResponse / ActivePollResponse: poll with aggregated results
  - ErrorResponse: error, message

# Domain Types

  - Event: scoping context owning polls
  - Poll: question, lifecycle state and timing window
  - PollOption: label, display position, optional emoji
  - Vote: one live vote per (poll, voter)
  - PollResult: derived vote count and percentage per option

# Constants

Status values:

	StatusDraft  = "draft"
	StatusActive = "active"
	StatusEnded  = "ended"

Option-set types:

	TypeBinary = "binary"
	TypeMulti  = "multi"

A poll with a nil EndsAt is untimed and only ends by moderator action.
*/
package models
