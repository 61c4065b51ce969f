package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher fans events out over Redis pub/sub. Delivery is fire and
// forget; subscribers that are offline miss events.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(ctx context.Context, addr, password string, db int) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisPublisher{client: rdb}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, event.Subject(), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
