// Package realtime serves the live check-in feed of an event over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Heartbeat timing, in seconds.
const (
	PingInterval = 30
	PongWait     = 60
)

// Publisher publishes feed messages to other instances.
type Publisher interface {
	PublishEvent(ctx context.Context, eventID uuid.UUID, kind string, payload []byte) error
}

// Subscriber subscribes to an event feed and invokes handler for incoming messages.
type Subscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(kind string, payload []byte)) (cancel func(), err error)
}

// Hub maintains event_id -> set of connections and broadcasts feed messages.
// With Redis configured, messages go through pub/sub so each instance delivers them once to its own clients.
type Hub struct {
	events map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	pub    Publisher
	sub    Subscriber
	logger *zap.Logger
}

// NewHub creates a hub. pub and sub may be nil for a single-instance deployment.
func NewHub(pub Publisher, sub Subscriber, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		events: make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		pub:    pub,
		sub:    sub,
		logger: logger,
	}
}

// Register adds a client to an event feed. The event's channel is subscribed outside the
// hub lock; a failed subscription is retried by the next Register for that event.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.events[c.EventID] == nil {
		h.events[c.EventID] = make(map[string]*Client)
	}
	h.events[c.EventID][c.ID] = c
	_, subscribed := h.subs[c.EventID]
	h.mu.Unlock()
	h.logger.Debug("feed client connected", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))

	if h.sub != nil && !subscribed {
		h.subscribe(c.EventID)
	}
}

func (h *Hub) subscribe(eventID uuid.UUID) {
	cancel, err := h.sub.SubscribeEvent(eventID, func(kind string, payload []byte) {
		h.Broadcast(eventID, kind, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("feed subscribe failed", zap.String("event_id", eventID.String()), zap.Error(err))
		return
	}
	h.mu.Lock()
	_, dup := h.subs[eventID]
	_, watched := h.events[eventID]
	if dup || !watched {
		h.mu.Unlock()
		cancel()
		return
	}
	h.subs[eventID] = cancel
	h.mu.Unlock()
}

// Unregister removes a client. The channel subscription ends with the last client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.events[c.EventID]
	if !ok {
		return
	}
	if _, ok := m[c.ID]; !ok {
		return
	}
	delete(m, c.ID)
	close(c.send)
	if len(m) == 0 {
		delete(h.events, c.EventID)
		if cancel, ok := h.subs[c.EventID]; ok {
			cancel()
			delete(h.subs, c.EventID)
		}
	}
	h.logger.Debug("feed client disconnected", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast sends a message to this instance's clients of an event.
func (h *Hub) Broadcast(eventID uuid.UUID, kind string, data json.RawMessage) {
	msg := Message{Event: kind, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.events[eventID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("feed client buffer full, dropping message", zap.String("client_id", c.ID))
		}
	}
}

// Publish delivers a feed message to every manager watching the event, on all instances.
func (h *Hub) Publish(ctx context.Context, eventID uuid.UUID, kind string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal feed message: %w", err)
	}
	if h.pub != nil {
		if err := h.pub.PublishEvent(ctx, eventID, kind, payload); err != nil {
			return err
		}
		// Clients of an unsubscribed event would never see the Redis copy.
		if h.subscribed(eventID) {
			return nil
		}
	}
	h.Broadcast(eventID, kind, payload)
	return nil
}

func (h *Hub) subscribed(eventID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[eventID]
	return ok
}

// Watchers returns the number of connected clients for an event on this instance.
func (h *Hub) Watchers(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events[eventID])
}

// Close ends all channel subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, cancel := range h.subs {
		cancel()
		delete(h.subs, id)
	}
}
