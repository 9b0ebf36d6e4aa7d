package revalidate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisPublisher broadcasts invalidations on a Redis pub/sub channel and applies the ones other
// processes broadcast.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, invalidation Invalidation) error {
	payload, err := json.Marshal(invalidation)
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Listen subscribes to the channel and feeds every received invalidation to r until ctx is done.
// It returns once the subscription is confirmed.
func (p *RedisPublisher) Listen(ctx context.Context, r *Revalidator) error {
	sub := p.client.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe to %s: %w", p.channel, err)
	}

	go func() {
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var invalidation Invalidation
				if err := json.Unmarshal([]byte(msg.Payload), &invalidation); err != nil {
					log.Warnf("ignoring malformed invalidation on %s: %v", p.channel, err)
					continue
				}
				r.Apply(invalidation)
			}
		}
	}()
	return nil
}
