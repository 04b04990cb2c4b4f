package realtime

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/akvora/backend/internal/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains channel -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// channel -> map[clientID]*Client
	channels map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per channel
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishChannelEvent(channel, event string, payload []byte) error
}

// RedisSubscriber subscribes to hub channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeChannel(channel string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		channels: make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its channels. Starts a Redis subscription for
// each channel when the first local client joins it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	for _, ch := range c.Channels {
		if h.channels[ch] == nil {
			h.channels[ch] = make(map[string]*Client)
			if h.redisSub != nil {
				channel := ch
				cancel, err := h.redisSub.SubscribeChannel(channel, func(event string, payload []byte) {
					h.broadcastLocal(channel, event, json.RawMessage(payload))
				})
				if err == nil {
					h.subs[ch] = cancel
				}
			}
		}
		h.channels[ch][c.ID] = c
		metrics.WSClients.WithLabelValues(channelClass(ch)).Inc()
	}
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.Strings("channels", c.Channels))
}

// Unregister removes a client from its channels. Cancels the Redis
// subscription when the last client leaves a channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for _, ch := range c.Channels {
		if m, ok := h.channels[ch]; ok {
			if _, present := m[c.ID]; present {
				delete(m, c.ID)
				metrics.WSClients.WithLabelValues(channelClass(ch)).Dec()
			}
			if len(m) == 0 {
				delete(h.channels, ch)
				if cancel, ok := h.subs[ch]; ok {
					cancel()
					delete(h.subs, ch)
				}
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// broadcastLocal sends a message to all local clients in a channel.
func (h *Hub) broadcastLocal(channel, event string, payload interface{}) {
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

	// Snapshot the member set under the lock; the channel map may be
	// mutated by Register/Unregister while we deliver.
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for _, c := range h.channels[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Emit sends an event to all clients in a channel. With Redis configured the
// event goes through pub/sub so every instance (including this one) delivers
// it exactly once; without Redis it is broadcast locally. Implements
// Notifier; failures are logged and never surfaced.
func (h *Hub) Emit(channel, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("emit marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishChannelEvent(channel, event, data); err != nil {
			h.logger.Warn("emit publish failed", zap.String("channel", channel), zap.String("event", event), zap.Error(err))
			h.broadcastLocal(channel, event, json.RawMessage(data))
		}
		return
	}
	h.broadcastLocal(channel, event, json.RawMessage(data))
}

// channelClass buckets channel names for the connected-clients gauge so the
// label set stays bounded.
func channelClass(channel string) string {
	if strings.HasPrefix(channel, "user:") {
		return "user"
	}
	return channel
}

// ClientCount returns the number of connected clients in a channel.
func (h *Hub) ClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
