// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Connection limits and timeouts
const (
	MaxConnectionsPerEvent = 5000
	SendBufferSize         = 64
	WriteTimeout           = 10 * time.Second
	PingInterval           = 30 * time.Second
)

// Server → client message types
const (
	MsgTypeState          = "state"           // snapshot sent on connect
	MsgTypePollTransition = "poll_transition" // engine ended or started a poll
	MsgTypePollChanged    = "poll_changed"    // poll row inserted, updated or deleted
	MsgTypeResults        = "results"         // vote totals changed
)

type Message struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Client is one websocket viewer with its own send queue.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	eventID string

	closeMu sync.Mutex
	closed  bool
}

func newClient(conn *websocket.Conn, eventID string) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, SendBufferSize),
		eventID: eventID,
	}
}

// enqueue drops the client when its buffer is full
func (c *Client) enqueue(data []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("send buffer full, dropping slow client", "event_id", c.eventID)
		c.closeLocked()
		return false
	}
}

func (c *Client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send queue and keeps the connection alive
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusPolicyViolation, "too slow")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("websocket write failed", "event_id", c.eventID, "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, WriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Hub fans messages out to every viewer connected to an event.
type Hub struct {
	mu     sync.RWMutex
	events map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{events: map[string]map[*Client]struct{}{}}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.events[c.eventID]
	if len(clients) >= MaxConnectionsPerEvent {
		return false
	}
	if clients == nil {
		clients = map[*Client]struct{}{}
		h.events[c.eventID] = clients
	}
	clients[c] = struct{}{}

	slog.Info("viewer connected", "event_id", c.eventID, "connections", len(clients))
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.events[c.eventID]
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.events, c.eventID)
	}
	c.close()

	slog.Info("viewer disconnected", "event_id", c.eventID, "connections", len(clients))
}

// ConnectionCount returns the number of viewers connected to the event.
func (h *Hub) ConnectionCount(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events[eventID])
}

// Serve registers conn as a viewer of the event and blocks until the
// connection closes or ctx is cancelled. initial, if non-nil, is sent
// before any broadcast. Incoming messages are discarded.
func (h *Hub) Serve(ctx context.Context, eventID string, conn *websocket.Conn, initial *Message) {
	c := newClient(conn, eventID)
	if !h.register(c) {
		conn.Close(websocket.StatusTryAgainLater, "too many viewers")
		return
	}
	defer h.unregister(c)

	if initial != nil {
		data, err := json.Marshal(initial)
		if err != nil {
			slog.Error("failed to marshal initial state", "error", err)
		} else {
			c.enqueue(data)
		}
	}

	ctx = conn.CloseRead(ctx)
	c.writePump(ctx)
}

// Broadcast sends msg to every viewer of the event.
func (h *Hub) Broadcast(eventID string, msg Message) {
	msg.EventID = eventID
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal broadcast", "event_id", eventID, "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.events[eventID]))
	for c := range h.events[eventID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(data)
	}

	slog.Debug("broadcast", "event_id", eventID, "type", msg.Type, "connections", len(clients))
}
