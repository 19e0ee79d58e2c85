package api

import (
	"encoding/json"
	"testing"
	"time"

	"stock-insight-backend/internal/events"

	"github.com/rs/zerolog"
)

func newHubClient(hub *wsHub, userID string) *wsClient {
	return &wsClient{
		send:      make(chan []byte, 256),
		hub:       hub,
		userID:    userID,
		closeChan: make(chan struct{}),
	}
}

func attach(hub *wsHub, client *wsClient) {
	hub.mu.Lock()
	hub.clients[client] = true
	if client.userID != "" {
		if hub.userClients[client.userID] == nil {
			hub.userClients[client.userID] = make(map[*wsClient]bool)
		}
		hub.userClients[client.userID][client] = true
	}
	hub.mu.Unlock()
}

func receive(t *testing.T, client *wsClient) map[string]interface{} {
	t.Helper()
	select {
	case msg := <-client.send:
		var event map[string]interface{}
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func TestNewWSHub(t *testing.T) {
	hub := newWSHub(zerolog.Nop())

	if hub.clients == nil {
		t.Error("clients map not initialized")
	}
	if hub.userClients == nil {
		t.Error("userClients map not initialized")
	}
	if hub.broadcast == nil {
		t.Error("broadcast channel not initialized")
	}
	if hub.userCast == nil {
		t.Error("userCast channel not initialized")
	}
}

func TestForwardUserScopedEvent(t *testing.T) {
	hub := newWSHub(zerolog.Nop())
	alice := newHubClient(hub, "user-a")
	bob := newHubClient(hub, "user-b")
	attach(hub, alice)
	attach(hub, bob)

	go hub.Run()

	hub.Forward(events.Event{
		Type:      events.EventWatchlistAdded,
		Timestamp: time.Now(),
		UserID:    "user-a",
		Data:      map[string]interface{}{"symbol": "ENEL.MI"},
	})

	event := receive(t, alice)
	if event["type"] != string(events.EventWatchlistAdded) {
		t.Errorf("expected type %s, got %v", events.EventWatchlistAdded, event["type"])
	}
	data, ok := event["data"].(map[string]interface{})
	if !ok || data["symbol"] != "ENEL.MI" {
		t.Errorf("unexpected event data: %v", event["data"])
	}

	select {
	case msg := <-bob.send:
		t.Errorf("other user received scoped event: %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestForwardBroadcastEvent(t *testing.T) {
	hub := newWSHub(zerolog.Nop())
	alice := newHubClient(hub, "user-a")
	bob := newHubClient(hub, "user-b")
	attach(hub, alice)
	attach(hub, bob)

	go hub.Run()

	hub.Forward(events.Event{
		Type:      events.EventScanCompleted,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"scanned": float64(5)},
	})

	for _, client := range []*wsClient{alice, bob} {
		event := receive(t, client)
		if event["type"] != string(events.EventScanCompleted) {
			t.Errorf("expected type %s, got %v", events.EventScanCompleted, event["type"])
		}
	}
}

func TestClientCounts(t *testing.T) {
	hub := newWSHub(zerolog.Nop())
	attach(hub, newHubClient(hub, "user-a"))
	attach(hub, newHubClient(hub, "user-a"))
	attach(hub, newHubClient(hub, ""))

	if got := hub.TotalClientCount(); got != 3 {
		t.Errorf("TotalClientCount = %d, want 3", got)
	}
	if got := hub.UserClientCount("user-a"); got != 2 {
		t.Errorf("UserClientCount(user-a) = %d, want 2", got)
	}
	if got := hub.UserClientCount("user-b"); got != 0 {
		t.Errorf("UserClientCount(user-b) = %d, want 0", got)
	}
}
