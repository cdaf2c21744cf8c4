// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store provides the poll and vote repository.

# Implementations

  - SQLStore: PostgreSQL (lib/pq) or SQLite (modernc.org/sqlite)
  - MemoryStore: in-process maps, used for the "memory" database type and tests

	repo := store.NewSQLStore(conn, feed)

# Lifecycle Writes

ClosePoll and ActivatePoll are conditional single-row updates. ClosePoll
only touches an active poll; ActivatePoll only touches a draft poll whose
event has no active poll. Both report whether the row changed, so running
the same transition twice is a no-op.

# Votes

UpsertVote relies on UNIQUE (poll_id, voter_id). A second vote from the same
voter replaces the option on the existing row.

# Change Feed

Every successful write is reported to the Publisher passed at construction
(a *realtime.Feed in the server). A nil Publisher discards notifications.
*/
package store
