// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/michaelalipng/yap-sub000/cliparse"
	"github.com/michaelalipng/yap-sub000/handlers"
	"github.com/michaelalipng/yap-sub000/middleware"
	"github.com/michaelalipng/yap-sub000/realtime"
	"github.com/michaelalipng/yap-sub000/store"
	"github.com/michaelalipng/yap-sub000/transitions"
)

// Deps are the long-lived services the handlers share.
type Deps struct {
	Repo   store.Repository
	Engine *transitions.Engine
	Hub    *realtime.Hub
	Bridge *realtime.Bridge
}

func NewRouter(deps Deps, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	eventHandler := handlers.NewEventHandler(deps.Repo, deps.Engine, cfg)
	pollHandler := handlers.NewPollHandler(deps.Repo, deps.Engine, cfg)
	votingHandler := handlers.NewVotingHandler(deps.Repo)
	resultsHandler := handlers.NewResultsHandler(deps.Repo)
	streamHandler := handlers.NewStreamHandler(deps.Repo, deps.Hub, deps.Bridge)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Events
	mux.HandleFunc("POST /events", middleware.WithLogging(eventHandler.CreateEvent))
	mux.HandleFunc("GET /events/{id}/polls", middleware.WithLogging(eventHandler.ListPolls))
	mux.HandleFunc("GET /events/{id}/active", middleware.WithLogging(eventHandler.GetActive))
	mux.HandleFunc("POST /events/{id}/next", middleware.WithLogging(eventHandler.StartNext))
	mux.HandleFunc("POST /events/{id}/monitor", middleware.WithLogging(eventHandler.StartMonitoring))
	mux.HandleFunc("DELETE /events/{id}/monitor", middleware.WithLogging(eventHandler.StopMonitoring))
	mux.HandleFunc("GET /events/{id}/stream", middleware.WithLogging(streamHandler.Stream))

	// Poll management (moderator operations)
	mux.HandleFunc("POST /events/{id}/polls", middleware.WithLogging(pollHandler.CreatePoll))
	mux.HandleFunc("POST /polls/{id}/start", middleware.WithLogging(pollHandler.StartPoll))
	mux.HandleFunc("POST /polls/{id}/end", middleware.WithLogging(pollHandler.EndPoll))
	mux.HandleFunc("DELETE /polls/{id}", middleware.WithLogging(pollHandler.DeletePoll))

	// Voting and results (public)
	mux.HandleFunc("POST /polls/{id}/votes", middleware.WithLogging(votingHandler.CastVote))
	mux.HandleFunc("GET /polls/{id}/results", middleware.WithLogging(resultsHandler.GetResults))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("yap API v1"))
	})

	return mux
}
