package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	hub := NewHub(log)
	go hub.Run()
	return hub
}

func newTestClient(hub *Hub, userID uint, userType string) *Client {
	return &Client{
		UserID:   userID,
		UserType: userType,
		Send:     make(chan []byte, 8),
		Hub:      hub,
	}
}

func TestHubConnectAndSendToUser(t *testing.T) {
	hub := newTestHub()
	shipper := newTestClient(hub, 1, "shipper")
	driver := newTestClient(hub, 2, "driver")

	hub.Connect(shipper)
	hub.Connect(driver)
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 2 }, time.Second, 5*time.Millisecond)

	hub.SendToUser(2, []byte("ping"))

	select {
	case msg := <-driver.Send:
		assert.Equal(t, "ping", string(msg))
	case <-time.After(time.Second):
		t.Fatal("driver never received the message")
	}

	select {
	case msg := <-shipper.Send:
		t.Fatalf("shipper unexpectedly received %q", msg)
	default:
	}
}

func TestHubSendToUnknownUserIsNoop(t *testing.T) {
	hub := newTestHub()

	assert.NotPanics(t, func() { hub.SendToUser(99, []byte("ping")) })
	assert.Zero(t, hub.ConnectedClients())
}

func TestHubReconnectReplacesPriorConnection(t *testing.T) {
	hub := newTestHub()
	first := newTestClient(hub, 1, "driver")
	second := newTestClient(hub, 1, "driver")

	hub.Connect(first)
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Connect(second)

	// The replaced connection's channel is closed by the hub.
	select {
	case _, open := <-first.Send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("prior connection was never closed")
	}

	assert.Equal(t, 1, hub.ConnectedClients())

	hub.SendToUser(1, []byte("hello"))
	select {
	case msg := <-second.Send:
		assert.Equal(t, "hello", string(msg))
	case <-time.After(time.Second):
		t.Fatal("replacement connection never received the message")
	}
}

func TestHubDisconnectRemovesClient(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub, 1, "driver")

	hub.Connect(client)
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Disconnect(client)
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubDisconnectStaleConnectionKeepsReplacement(t *testing.T) {
	hub := newTestHub()
	first := newTestClient(hub, 1, "driver")
	second := newTestClient(hub, 1, "driver")

	hub.Connect(first)
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)
	hub.Connect(second)
	select {
	case <-first.Send:
	case <-time.After(time.Second):
		t.Fatal("prior connection was never closed")
	}

	// The stale connection's own readPump teardown must not evict the
	// replacement that took its slot.
	hub.Disconnect(first)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, hub.ConnectedClients())
}

func TestHubBroadcastExcludesOneUser(t *testing.T) {
	hub := newTestHub()
	shipper := newTestClient(hub, 1, "shipper")
	driverA := newTestClient(hub, 2, "driver")
	driverB := newTestClient(hub, 3, "driver")

	hub.Connect(shipper)
	hub.Connect(driverA)
	hub.Connect(driverB)
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 3 }, time.Second, 5*time.Millisecond)

	hub.Broadcast([]byte("update"), 2)

	for _, c := range []*Client{shipper, driverB} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, "update", string(msg))
		case <-time.After(time.Second):
			t.Fatalf("user %d never received the broadcast", c.UserID)
		}
	}

	select {
	case msg := <-driverA.Send:
		t.Fatalf("excluded user unexpectedly received %q", msg)
	default:
	}
}

func TestHubDropsUnresponsiveClient(t *testing.T) {
	hub := newTestHub()
	client := &Client{
		UserID: 1,
		Send:   make(chan []byte), // unbuffered, nothing reading
		Hub:    hub,
	}

	hub.Connect(client)
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	hub.SendToUser(1, []byte("ping"))
	assert.Zero(t, hub.ConnectedClients())

	_, open := <-client.Send
	assert.False(t, open)
}

func TestHubSendEventEnvelope(t *testing.T) {
	hub := newTestHub()
	client := newTestClient(hub, 5, "shipper")

	hub.Connect(client)
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	hub.SendEvent(5, "bid_placed", BidEvent{LoadID: 10, BidID: 3, DriverID: 7, Amount: 950})

	var payload []byte
	select {
	case payload = <-client.Send:
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}

	var envelope WebSocketMessage
	require.NoError(t, json.Unmarshal(payload, &envelope))
	assert.Equal(t, "bid_placed", envelope.Type)

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(10), data["loadId"])
	assert.Equal(t, float64(950), data["amount"])
}
