package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesMatchingSession(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):] + "?session_id=abc"
	conn, _, err := websocket.Dial(t.Context(), wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// Give the server a moment to register the connection before broadcasting.
	time.Sleep(20 * time.Millisecond)

	hub.Broadcast(Event{Type: "morning_summary", SessionID: "abc", Payload: map[string]string{"hi": "there"}})

	_, data, err := conn.Read(t.Context())
	require.NoError(t, err)
	assert.Contains(t, string(data), "morning_summary")
}

func TestHub_BroadcastSkipsOtherSession(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):] + "?session_id=other"
	conn, _, err := websocket.Dial(t.Context(), wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	time.Sleep(20 * time.Millisecond)
	hub.Broadcast(Event{Type: "noon_checkin", SessionID: "abc", Payload: nil})

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	_, _, err = conn.Read(ctx)
	assert.Error(t, err, "client scoped to a different session should not receive the event")
}
