// Package realtime distributes live gauge updates to websocket subscribers,
// with Redis pub/sub bridging instances.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains place_id -> set of connections and broadcasts gauge events.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// placeID -> map[clientID]*Client
	places map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func() // cancel Redis subscription per place
	mu     sync.RWMutex
	logger *zap.Logger
	pub    RedisPublisher
	sub    RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishPlaceEvent(placeID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to place channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribePlace(placeID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, pub RedisPublisher, sub RedisSubscriber) *Hub {
	return &Hub{
		places: make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to a place room. Starts the Redis subscription for
// this place when the first client arrives.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.places[c.PlaceID] == nil {
		h.places[c.PlaceID] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.SubscribePlace(c.PlaceID, func(event string, payload []byte) {
				h.BroadcastToPlace(c.PlaceID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.PlaceID] = cancel
			}
		}
	}
	h.places[c.PlaceID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client subscribed to place", zap.String("client_id", c.ID), zap.String("place_id", c.PlaceID.String()))
}

// Unregister removes a client from a place room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.places[c.PlaceID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.places, c.PlaceID)
			if cancel, ok := h.subs[c.PlaceID]; ok {
				cancel()
				delete(h.subs, c.PlaceID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left place", zap.String("client_id", c.ID), zap.String("place_id", c.PlaceID.String()))
}

// BroadcastToPlace sends a message to all clients watching a place (local only).
func (h *Hub) BroadcastToPlace(placeID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.places[placeID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToPlaceAndPublish sends to local clients and publishes to Redis for other instances.
func (h *Hub) BroadcastToPlaceAndPublish(placeID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToPlace(placeID, event, json.RawMessage(data))
	if h.pub != nil {
		_ = h.pub.PublishPlaceEvent(placeID, event, data)
	}
}

// WatcherCount returns the number of connected clients watching a place.
func (h *Hub) WatcherCount(placeID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.places[placeID])
}
