// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/michaelalipng/yap-sub000/realtime"
	"github.com/michaelalipng/yap-sub000/store"
)

type StreamHandler struct {
	repo   store.Repository
	hub    *realtime.Hub
	bridge *realtime.Bridge
}

func NewStreamHandler(repo store.Repository, hub *realtime.Hub, bridge *realtime.Bridge) *StreamHandler {
	return &StreamHandler{repo: repo, hub: hub, bridge: bridge}
}

// Stream handles GET /events/{id}/stream. The connection first receives a
// state snapshot, then poll_transition, poll_changed and results messages.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	if _, err := h.repo.GetEvent(r.Context(), eventID); err != nil {
		writeRepoError(w, err, "Event not found")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept failed", "event_id", eventID, "error", err)
		return
	}

	h.bridge.Watch(eventID)
	defer h.bridge.Release(eventID)

	snapshot, err := h.bridge.Snapshot(r.Context(), eventID)
	if err != nil {
		slog.Error("failed to build snapshot", "event_id", eventID, "error", err)
		conn.Close(websocket.StatusInternalError, "failed to load state")
		return
	}

	h.hub.Serve(r.Context(), eventID, conn, &snapshot)
}
