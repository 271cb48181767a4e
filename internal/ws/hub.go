package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Message is the wire frame pushed to connected clients.
type Message struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
	Room      string      `json:"room,omitempty"`
}

// Hub fans incident events out to every connected client. Delivery is
// at-most-once: a full send buffer drops the frame, offline clients catch
// up through the active-incidents poll.
type Hub struct {
	logger *slog.Logger

	connections map[string]*Client
	rooms       map[string]map[string]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message

	connectionCount int64

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		logger:      logger,
		connections: make(map[string]*Client),
		rooms:       make(map[string]map[string]bool),
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		broadcast:   make(chan *Message, 256),
	}
	h.ctx = ctx
	h.cancel = cancel
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case msg := <-h.broadcast:
			h.fanout(msg)
		}
	}
}

// Publish queues an event for all connected clients without blocking the
// caller. A full broadcast queue drops the event.
func (h *Hub) Publish(event string, payload any) {
	msg := &Message{
		Event:     event,
		Data:      payload,
		Timestamp: time.Now().Unix(),
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, event dropped", slog.String("event", event))
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[c.id] = c
	atomic.AddInt64(&h.connectionCount, 1)
	h.logger.Info("ws client connected",
		slog.String("conn_id", c.id),
		slog.String("user_id", c.userID),
		slog.Int64("connections", atomic.LoadInt64(&h.connectionCount)),
	)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[c.id]; !ok {
		return
	}
	delete(h.connections, c.id)
	atomic.AddInt64(&h.connectionCount, -1)

	for room := range c.rooms {
		if members := h.rooms[room]; members != nil {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	close(c.send)
	h.logger.Info("ws client disconnected",
		slog.String("conn_id", c.id),
		slog.Int64("connections", atomic.LoadInt64(&h.connectionCount)),
	)
}

func (h *Hub) joinRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][c.id] = true
	h.logger.Debug("ws client joined room", slog.String("conn_id", c.id), slog.String("room", room))
}

func (h *Hub) fanout(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("ws marshal failed", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.Room != "" {
		for connID := range h.rooms[msg.Room] {
			if c, ok := h.connections[connID]; ok {
				h.trySend(c, data)
			}
		}
		return
	}
	for _, c := range h.connections {
		h.trySend(c, data)
	}
}

func (h *Hub) trySend(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Debug("ws send buffer full, frame dropped", slog.String("conn_id", c.id))
	}
}

func (h *Hub) ConnectionCount() int64 {
	return atomic.LoadInt64(&h.connectionCount)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	for _, c := range h.connections {
		c.conn.Close()
	}
	h.mu.Unlock()
}
