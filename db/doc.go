// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the backing SQL store and creates its schema.

# Connecting

Open selects the driver from the database type:

	conn, err := db.Open("postgres", "postgres://...")
	conn, err := db.Open("sqlite", "file:yap.db")

PostgreSQL uses github.com/lib/pq. SQLite uses modernc.org/sqlite with
foreign keys enabled and a single open connection.

# Schema Creation

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - event: scoping context for polls
  - poll: question, lifecycle status and timing window
  - poll_option: options per poll, ordered by position
  - vote: one row per (poll_id, voter_id)

# Relationships

	event 1──* poll
	poll 1──* poll_option
	poll 1──* vote

All foreign keys use ON DELETE CASCADE.

# Indexes

  - poll.(event_id, status)
  - poll.(event_id, queue_position)
  - poll.event_id unique where status = 'active' (single active poll)
  - poll_option.(poll_id, position)
  - vote.poll_id, vote.(poll_id, voter_id) unique
*/
package db
