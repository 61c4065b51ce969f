package events

import (
	"context"
	"fmt"
)

// Options selects and configures a publisher backend.
type Options struct {
	Backend       string
	NatsURL       string
	NatsStream    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func New(ctx context.Context, opts Options) (Publisher, error) {
	switch opts.Backend {
	case "", "none":
		return Nop{}, nil
	case "nats":
		return NewNATSPublisher(ctx, opts.NatsURL, opts.NatsStream)
	case "redis":
		return NewRedisPublisher(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	default:
		return nil, fmt.Errorf("unknown events backend %q", opts.Backend)
	}
}
