// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package transitions moves polls through draft → active → ended.

# Engine

One Engine is created per process and shared by every component that needs
to start monitoring or listen for transitions:

	engine := transitions.New(repo, transitions.WithInterval(time.Second))
	engine.StartMonitoring(eventID)
	defer engine.Close()

StartMonitoring is idempotent; the engine holds one monitor per event.

# Check-and-Transition Pass

Each tick (or TriggerTransition call) runs one pass:

 1. Find the event's active polls with a deadline.
 2. End every poll whose ends_at has passed, pinning ends_at to now.
 3. If anything ended, activate the first draft poll with auto_start set,
    ordered by queue_position then creation order. Its window is
    [now, now+duration]; duration defaults to 60 seconds.
 4. Notify the event's subscribers once.

A repository error ends the pass early and is logged by the monitor loop.
When a poll was ended but the promotion failed, the event is remembered and
the next pass retries the promotion.

# Subscribers

	cb := transitions.NewCallback(func() { refresh() })
	engine.Subscribe(eventID, cb)
	defer engine.Unsubscribe(eventID, cb)

# Moderator Actions

  - EndCurrentAndStartNext: end the active poll, start the next queued poll
  - StartPoll: start a specific draft poll, ending the current one
  - EndPoll: end a specific poll and promote the next one immediately

These return errors to the caller instead of logging them.
*/
package transitions
