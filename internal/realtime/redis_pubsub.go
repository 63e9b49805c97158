package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "checkins:"
	publishTimeout = 5 * time.Second
	// Events older than this are not shown as live check-ins.
	feedStaleAfter = 30 * time.Second
	feedVersion    = 1
)

var (
	errStaleEvent   = errors.New("stale feed event")
	errFeedEnvelope = errors.New("unsupported feed envelope")
)

// feedEnvelope is what travels on a set's Redis channel.
type feedEnvelope struct {
	V     int             `json:"v"`
	Event string          `json:"event"`
	SetID uuid.UUID       `json:"qr_code_set_id"`
	Data  json.RawMessage `json:"data"`
	AtMs  int64           `json:"at_ms"`
}

// decodeFeedEvent parses an envelope received on setID's channel at now. Envelopes for another
// set, from an unknown version, or older than feedStaleAfter are rejected.
func decodeFeedEvent(raw []byte, setID uuid.UUID, now time.Time) (feedEnvelope, error) {
	var env feedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode feed event: %w", err)
	}
	if env.V != feedVersion || env.Event == "" || env.SetID != setID {
		return env, errFeedEnvelope
	}
	if now.Sub(time.UnixMilli(env.AtMs)) > feedStaleAfter {
		return env, errStaleEvent
	}
	return env, nil
}

// RedisPubSub carries check-in feed events between server instances over Redis pub/sub,
// one channel per QR code set.
type RedisPubSub struct {
	client redis.UniversalClient
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for check-in events.
func NewRedisPubSub(client redis.UniversalClient, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, now: time.Now, logger: logger}
}

func channelFor(setID uuid.UUID) string {
	return channelPrefix + setID.String()
}

// PublishSetEvent publishes an event to the set's Redis channel.
func (r *RedisPubSub) PublishSetEvent(setID uuid.UUID, event string, payload []byte) error {
	body, err := json.Marshal(feedEnvelope{
		V:     feedVersion,
		Event: event,
		SetID: setID,
		Data:  payload,
		AtMs:  r.now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channelFor(setID), body).Err()
}

// SubscribeSet subscribes to a set's channel and calls handler for each live event.
// Stale or foreign messages are dropped. The returned function ends the subscription.
func (r *RedisPubSub) SubscribeSet(setID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelFor(setID))
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channelFor(setID), err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				env, err := decodeFeedEvent([]byte(msg.Payload), setID, r.now())
				if err != nil {
					r.logger.Debug("dropping feed message", zap.Error(err), zap.String("qr_code_set_id", setID.String()))
					continue
				}
				handler(env.Event, env.Data)
			}
		}
	}()
	return cancelCtx, nil
}
