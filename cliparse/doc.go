// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first, if present. Values
already in the environment win over the file.

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseType: sqlite, postgres or memory (default: sqlite)
  - DatabaseURL: Connection string (required for postgres, default file:yap.db for sqlite)
  - ModeratorKeySalt: Secret for moderator key HMAC (required)
  - TransitionInterval: Poll expiry check period per event (default: 1s)
  - DefaultPollDuration: Voting window when a poll has none (default: 60s)

# CLI Flags

	-p                 Server port
	-d                 Database URL
	-t                 Database type
	--moderator-salt   Moderator key salt
	--interval         Transition check interval
	--default-duration Default poll duration

# Environment Variables

Flags fall back to environment variables:

	PORT                  → -p
	DATABASE_URL          → -d
	DATABASE_TYPE         → -t
	MODERATOR_KEY_SALT    → --moderator-salt
	TRANSITION_INTERVAL   → --interval
	DEFAULT_POLL_DURATION → --default-duration

CLI flags take precedence over environment variables. Durations use Go
syntax ("500ms", "90s").
*/
package cliparse
