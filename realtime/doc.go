// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package realtime pushes poll state to connected viewers over websockets.

It has three parts:

  - Feed is an in-process change feed. The store publishes poll and vote
    writes to it; listeners filter by event (polls) or poll (votes).
  - Hub keeps the websocket clients of each event and fans messages out to
    them. Each client has a bounded send queue; a client that falls behind
    is disconnected rather than slowing the others.
  - Bridge subscribes to the transition engine and the feed for every
    event with viewers and turns what it hears into hub broadcasts.

# Messages

All frames are JSON objects of the form

	{"type": "...", "event_id": "...", "payload": {...}}

with these types:

	state            sent once on connect; payload is the active poll view
	poll_transition  the engine ended and/or started polls
	poll_changed     a poll was created, updated or deleted
	results          the active poll's vote totals changed

# Lifecycle

The stream handler calls Bridge.Watch before Hub.Serve and Bridge.Release
after it returns. Watch and Release are reference counted per event, so
the subscriptions stay up while any viewer is connected or still
connecting.
*/
package realtime
