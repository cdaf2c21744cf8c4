// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the yap API server.

yap runs live polls during events. A moderator queues polls for an event;
the server starts them, ends timed polls at their deadline, promotes the
next queued poll and pushes every change to connected viewers.

# Starting the Server

The server reads environment variables, a .env file or CLI flags:

	MODERATOR_KEY_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -moderator-salt secret

# Configuration

Required settings:

  - MODERATOR_KEY_SALT (-moderator-salt): Secret for moderator key HMAC
  - DATABASE_URL (-d): Connection string, required for postgres

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite, postgres or memory (default: sqlite)
  - TRANSITION_INTERVAL (-interval): Deadline check interval (default: 1s)
  - DEFAULT_POLL_DURATION (-default-duration): Length of promoted polls
    without a duration (default: 60s)

# Architecture

  - handlers: HTTP request handlers (events, polls, voting, results, stream)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - transitions: Deadline monitoring and poll promotion
  - results: Vote aggregation
  - store: Repository over SQL or memory, with change notifications
  - realtime: Change feed, websocket hub and the bridge between them
  - models: Domain and request/response types
  - auth: Moderator keys and voter identity
  - db: Connection and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
