package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHub(logger)
}

func newTestClient(hub *Hub, buffer int) *Client {
	return &Client{
		id:    uuid.NewString(),
		conn:  nil,
		send:  make(chan []byte, buffer),
		hub:   hub,
		rooms: make(map[string]bool),
	}
}

func runHub(t *testing.T, hub *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := newTestHub()
	cancel := runHub(t, hub)
	defer cancel()

	c1 := newTestClient(hub, 8)
	c2 := newTestClient(hub, 8)
	hub.register <- c1
	hub.register <- c2
	waitFor(t, func() bool { return hub.ConnectionCount() == 2 })

	hub.Publish("new_sos", map[string]string{"id": "abc"})

	for _, c := range []*Client{c1, c2} {
		select {
		case raw := <-c.send:
			var msg Message
			require.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, "new_sos", msg.Event)
			assert.NotZero(t, msg.Timestamp)
		case <-time.After(2 * time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := newTestHub()
	cancel := runHub(t, hub)
	defer cancel()

	c := newTestClient(hub, 8)
	hub.register <- c
	waitFor(t, func() bool { return hub.ConnectionCount() == 1 })

	hub.unregister <- c
	waitFor(t, func() bool { return hub.ConnectionCount() == 0 })

	// The send channel is closed on unregister.
	_, open := <-c.send
	assert.False(t, open)
}

func TestHub_FullBufferDropsFrame(t *testing.T) {
	hub := newTestHub()
	cancel := runHub(t, hub)
	defer cancel()

	slow := newTestClient(hub, 1)
	hub.register <- slow
	waitFor(t, func() bool { return hub.ConnectionCount() == 1 })

	// First frame fills the buffer, the rest must be dropped without
	// blocking the hub loop.
	for i := 0; i < 10; i++ {
		hub.Publish("timeline_update", i)
	}

	// The hub must still respond to new registrations.
	fresh := newTestClient(hub, 8)
	hub.register <- fresh
	waitFor(t, func() bool { return hub.ConnectionCount() == 2 })
	waitFor(t, func() bool { return len(hub.broadcast) == 0 })

	assert.Len(t, slow.send, 1)
}

func TestHub_RoomScopedFanout(t *testing.T) {
	hub := newTestHub()
	cancel := runHub(t, hub)
	defer cancel()

	member := newTestClient(hub, 8)
	outsider := newTestClient(hub, 8)
	hub.register <- member
	hub.register <- outsider
	waitFor(t, func() bool { return hub.ConnectionCount() == 2 })

	hub.joinRoom(member, "incident:123")
	require.Equal(t, 1, hub.RoomSize("incident:123"))

	hub.broadcast <- &Message{Event: "sos_response", Room: "incident:123"}

	select {
	case <-member.send:
	case <-time.After(2 * time.Second):
		t.Fatal("room member did not receive frame")
	}

	select {
	case <-outsider.send:
		t.Fatal("outsider received room-scoped frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PublishNeverBlocksWhenQueueFull(t *testing.T) {
	hub := newTestHub() // not running, broadcast queue fills up

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish("new_sos", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}
