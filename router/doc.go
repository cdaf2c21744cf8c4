// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the yap API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(router.Deps{
		Repo:   repo,
		Engine: engine,
		Hub:    hub,
		Bridge: bridge,
	}, cfg)

# Endpoints

Health:

	GET /health

Events:

	POST   /events               - Create event (returns moderator_key)
	GET    /events/{id}/active   - Active poll with live results (public)
	GET    /events/{id}/stream   - Websocket feed (public)
	GET    /events/{id}/polls    - All polls in queue order
	POST   /events/{id}/next     - End current poll, start next queued
	POST   /events/{id}/monitor  - Start deadline monitoring
	DELETE /events/{id}/monitor  - Stop deadline monitoring

Polls (moderator, requires X-Moderator-Key):

	POST   /events/{id}/polls - Create poll (draft, or live with start_now)
	POST   /polls/{id}/start  - Start a draft poll now
	POST   /polls/{id}/end    - End an active poll
	DELETE /polls/{id}        - Delete a draft or ended poll

Voting and results (public):

	POST /polls/{id}/votes   - Cast or change a vote (requires X-Voter-ID)
	GET  /polls/{id}/results - Live or final results

Every route except health and root is wrapped in middleware.WithLogging.
*/
package router
