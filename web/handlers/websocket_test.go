package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/lifecache/web/handlers"
)

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for hub message")
		return nil
	}
}

func TestWebSocketHub_RejectsForeignOrigin(t *testing.T) {
	hub := handlers.NewWebSocketHub("localhost:6464")
	defer hub.Stop()

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://attacker.example")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	w := httptest.NewRecorder()
	hub.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, hub.Clients())
}

func TestWebSocketHub_PublishReachesSubscribers(t *testing.T) {
	hub := handlers.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	first, _ := hub.Subscribe()
	second, _ := hub.Subscribe()
	assert.Equal(t, 2, hub.Clients())

	hub.Publish(handlers.Event{Type: handlers.EventDeliveryCompleted, RecordID: "rec-1", State: "delivered"})

	for _, ch := range []<-chan []byte{first, second} {
		var ev handlers.Event
		require.NoError(t, json.Unmarshal(receive(t, ch), &ev))
		assert.Equal(t, handlers.EventDeliveryCompleted, ev.Type)
		assert.Equal(t, "rec-1", ev.RecordID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestWebSocketHub_Unsubscribe(t *testing.T) {
	hub := handlers.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	ch, unsubscribe := hub.Subscribe()
	unsubscribe()
	unsubscribe()
	assert.Zero(t, hub.Clients())

	_, ok := <-ch
	assert.False(t, ok)
}

func TestWebSocketHub_DropsSlowSubscriber(t *testing.T) {
	hub := handlers.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	slow, _ := hub.Subscribe()
	for i := 0; i < 200; i++ {
		hub.Broadcast(map[string]int{"n": i})
	}

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)

	// The buffered messages stay readable, then the channel is closed.
	n := 0
	for range slow {
		n++
	}
	assert.Positive(t, n)
}

func TestWebSocketHub_StopClosesSubscriptions(t *testing.T) {
	hub := handlers.NewWebSocketHub()
	go hub.Run()

	ch, _ := hub.Subscribe()
	hub.Stop()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := hub.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a stopped hub yields a closed channel")
}

func TestWebSocketHub_StreamsToBrowser(t *testing.T) {
	hub := handlers.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }() //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(handlers.Event{Type: handlers.EventMemoryCreated, RecordID: "rec-9"})

	_, data, err := conn.Read(ctx) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)

	var ev handlers.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, handlers.EventMemoryCreated, ev.Type)
	assert.Equal(t, "rec-9", ev.RecordID)
}
