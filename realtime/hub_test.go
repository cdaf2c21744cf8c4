// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type    string          `json:"type"`
	EventID string          `json:"event_id"`
	Payload json.RawMessage `json:"payload"`
}

// newHubServer serves the hub at /{eventID}, sending a hello frame on connect
func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		eventID := strings.TrimPrefix(r.URL.Path, "/")
		hub.Serve(r.Context(), eventID, conn, &Message{Type: "hello", EventID: eventID})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, eventID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + eventID
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// readType reads frames until one of the wanted type arrives
func readType(t *testing.T, conn *websocket.Conn, want string) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		var f frame
		require.NoError(t, wsjson.Read(ctx, conn, &f), "waiting for %q", want)
		if f.Type == want {
			return f
		}
	}
}

func TestHubBroadcastReachesOnlyEventViewers(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	a := dial(t, srv, "evt-a")
	b := dial(t, srv, "evt-b")
	readType(t, a, "hello")
	readType(t, b, "hello")

	assert.Equal(t, 1, hub.ConnectionCount("evt-a"))
	assert.Equal(t, 1, hub.ConnectionCount("evt-b"))

	hub.Broadcast("evt-a", Message{Type: MsgTypePollChanged, Payload: map[string]string{"poll_id": "p1"}})
	hub.Broadcast("evt-b", Message{Type: MsgTypeResults})

	got := readType(t, a, MsgTypePollChanged)
	assert.Equal(t, "evt-a", got.EventID)
	assert.JSONEq(t, `{"poll_id":"p1"}`, string(got.Payload))

	// b only ever sees its own event's frames
	got = readType(t, b, MsgTypeResults)
	assert.Equal(t, "evt-b", got.EventID)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub()
	srv := newHubServer(t, hub)

	conn := dial(t, srv, "evt-a")
	readType(t, conn, "hello")
	require.Equal(t, 1, hub.ConnectionCount("evt-a"))

	conn.Close(websocket.StatusNormalClosure, "bye")

	assert.Eventually(t, func() bool {
		return hub.ConnectionCount("evt-a") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientDroppedWhenBufferFull(t *testing.T) {
	c := newClient(nil, "evt-a")
	for i := 0; i < SendBufferSize; i++ {
		require.True(t, c.enqueue([]byte("x")))
	}

	assert.False(t, c.enqueue([]byte("overflow")))
	assert.True(t, c.closed)
	assert.False(t, c.enqueue([]byte("after close")))
}
