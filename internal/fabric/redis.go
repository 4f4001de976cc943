package fabric

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/lox/cardroom/internal/game"
)

const channelPattern = "cardroom.room.*"

const channelPrefix = "cardroom.room."

// Broker publishes every room broadcast to a Redis channel and fans
// incoming messages out to this node's local subscribers. All nodes sharing
// the broker deliver the same snapshot sequence; Redis preserves per-channel
// publish order, and a single consumer goroutine preserves it locally.
type Broker struct {
	client   *redis.Client
	registry *registry
	logger   *log.Logger
	pubsub   *redis.PubSub
	cancel   context.CancelFunc
}

// NewBroker starts the pub/sub consumer. The caller has already verified
// the broker is reachable; if the connection drops later, broadcasts fall
// back to direct local delivery until it recovers.
func NewBroker(client *redis.Client, logger *log.Logger) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		client:   client,
		registry: newRegistry(),
		logger:   logger.WithPrefix("fabric"),
		pubsub:   client.PSubscribe(ctx, channelPattern),
		cancel:   cancel,
	}
	go b.consume()
	return b
}

func (b *Broker) Subscribe(roomID string, sub Subscriber)   { b.registry.add(roomID, sub) }
func (b *Broker) Unsubscribe(roomID string, sub Subscriber) { b.registry.remove(roomID, sub) }
func (b *Broker) SubscriberCount(roomID string) int         { return b.registry.count(roomID) }

// Broadcast publishes the room context to the broker. Local subscribers are
// served by the consumer goroutine when the publish echoes back, which keeps
// a single ordered delivery path; on publish failure we degrade to direct
// local delivery rather than dropping the snapshot.
func (b *Broker) Broadcast(ctx context.Context, roomCtx *game.Context) {
	payload, err := json.Marshal(roomCtx)
	if err != nil {
		b.logger.Error("Failed to encode room context", "room", roomCtx.RoomID, "error", err)
		return
	}

	if err := b.client.Publish(ctx, channelPrefix+roomCtx.RoomID, payload).Err(); err != nil {
		b.logger.Warn("Broker publish failed, delivering locally", "room", roomCtx.RoomID, "error", err)
		b.registry.deliver(roomCtx)
	}
}

func (b *Broker) consume() {
	for msg := range b.pubsub.Channel() {
		var roomCtx game.Context
		if err := json.Unmarshal([]byte(msg.Payload), &roomCtx); err != nil {
			b.logger.Error("Discarding malformed broadcast", "channel", msg.Channel, "error", err)
			continue
		}
		b.registry.deliver(&roomCtx)
	}
}

// Close stops the consumer and releases the subscription.
func (b *Broker) Close() error {
	b.cancel()
	return b.pubsub.Close()
}
