package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "geohunt:events"

// RedisRelay publishes events on a Redis channel so every server instance
// sharing the database sees them. Run relays the channel into the local
// Broker, including this instance's own events.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	local   *Broker
	logger  *slog.Logger
}

func NewRedisRelay(rdb *redis.Client, channel string, local *Broker, logger *slog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{rdb: rdb, channel: channel, local: local, logger: logger}
}

// Publish sends ev to Redis. If Redis is unreachable the event is still
// delivered to local subscribers.
func (r *RedisRelay) Publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("encoding event", "topic", ev.Topic, "error", err)
		return
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn("redis publish failed, delivering locally", "topic", ev.Topic, "error", err)
		r.local.Deliver(ev.Topic, data)
	}
}

// Run blocks relaying messages until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}
	r.logger.Info("relaying events from redis", "channel", r.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("dropping malformed event", "error", err)
				continue
			}
			r.local.Deliver(ev.Topic, []byte(msg.Payload))
		}
	}
}
