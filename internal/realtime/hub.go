package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blessbox/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Feed events.
const (
	EventCheckIn   = "check_in"
	EventConnected = "connected"
	EventPong      = "pong"
)

// CheckInEvent is broadcast to dashboards watching a QR code set.
type CheckInEvent struct {
	Registration models.RegistrationView `json:"registration"`
}

// Hub maintains qr_code_set_id -> set of connections and broadcasts check-in events.
// Uses Redis pub/sub for horizontal scaling: a check-in handled by one instance reaches
// dashboards connected to any instance.
type Hub struct {
	sets     map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per set
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes set events to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishSetEvent(setID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to set channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeSet(setID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Either Redis side may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sets:     make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a set's feed. Starts the Redis subscription for the set if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sets[c.SetID] == nil {
		h.sets[c.SetID] = make(map[string]*Client)
		if h.redisSub != nil {
			setID := c.SetID
			cancel, err := h.redisSub.SubscribeSet(setID, func(event string, payload []byte) {
				h.Broadcast(setID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("redis subscribe failed", zap.Error(err), zap.String("qr_code_set_id", setID.String()))
			} else {
				h.subs[setID] = cancel
			}
		}
	}
	h.sets[c.SetID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("dashboard connected", zap.String("client_id", c.ID), zap.String("qr_code_set_id", c.SetID.String()))
}

// Unregister removes a client. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.sets[c.SetID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.sets, c.SetID)
			if cancel, ok := h.subs[c.SetID]; ok {
				cancel()
				delete(h.subs, c.SetID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("dashboard disconnected", zap.String("client_id", c.ID), zap.String("qr_code_set_id", c.SetID.String()))
}

// Broadcast sends a message to all local clients watching a set. Slow clients drop messages.
func (h *Hub) Broadcast(setID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.sets[setID] {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Publish delivers an event to every instance. With Redis the subscriber callback performs the
// local broadcast, so each dashboard receives the event once; without Redis it broadcasts locally.
func (h *Hub) Publish(setID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		err := h.redis.PublishSetEvent(setID, event, data)
		if err == nil {
			return
		}
		h.logger.Warn("redis publish failed, broadcasting locally", zap.Error(err))
	}
	h.Broadcast(setID, event, json.RawMessage(data))
}

// CheckedIn publishes a fresh check-in to the set's dashboards.
func (h *Hub) CheckedIn(reg *models.Registration) {
	h.Publish(reg.QRCodeSetID, EventCheckIn, CheckInEvent{Registration: reg.View()})
}

// Viewers returns the number of local dashboards watching a set.
func (h *Hub) Viewers(setID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sets[setID])
}

// sendTo queues a message for one client.
func (h *Hub) sendTo(c *Client, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.sets[c.SetID][c.ID]; !ok {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}
