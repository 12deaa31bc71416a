package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "place:"
	publishTTL    = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance broadcast.
// Origin identifies the publishing instance so it can drop its own echo: the
// publisher has already delivered the event to its local clients.
type redisPayload struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	Origin string          `json:"origin"`
	At     int64           `json:"at"`
}

// RedisPubSub implements RedisPublisher and RedisSubscriber using Redis pub/sub.
type RedisPubSub struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string
}

// NewRedisPubSub creates a Redis pub/sub bridge for place events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger, instanceID: uuid.New().String()}
}

// PublishPlaceEvent publishes an event to the place's Redis channel.
func (r *RedisPubSub) PublishPlaceEvent(placeID uuid.UUID, event string, payload []byte) error {
	channel := channelPrefix + placeID.String()
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, Origin: r.instanceID, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTTL)
	defer cancel()
	return r.client.Publish(ctx, channel, body).Err()
}

// decode parses a raw pub/sub message and reports whether it should be
// delivered locally. Malformed messages and this instance's own publishes
// are dropped.
func (r *RedisPubSub) decode(raw string) (redisPayload, bool) {
	var p redisPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, false
	}
	if p.Origin == r.instanceID {
		return p, false
	}
	return p, true
}

// SubscribePlace subscribes to a place's Redis channel and calls handler for each message.
// Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribePlace(placeID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error) {
	channel := channelPrefix + placeID.String()
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	_, err = pubsub.Receive(ctx)
	if err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
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
				p, deliver := r.decode(msg.Payload)
				if !deliver {
					continue
				}
				handler(p.Event, p.Data)
			}
		}
	}()
	cancel = func() { cancelCtx() }
	return cancel, nil
}
