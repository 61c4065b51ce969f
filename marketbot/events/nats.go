package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSPublisher writes events to a JetStream stream so downstream consumers
// (archival, analytics) get at-least-once delivery.
type NATSPublisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

func NewNATSPublisher(ctx context.Context, url, stream string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("marketbot"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        stream,
		Description: "Auction lifecycle events",
		Subjects:    []string{"auction.>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream %s: %w", stream, err)
	}

	slog.Info("JetStream stream ready",
		slog.String("type", "sys"),
		slog.String("stream", stream))

	return &NATSPublisher{conn: conn, js: js}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event *Event) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}

	ack, err := p.js.Publish(ctx, event.Subject(), data, jetstream.WithMsgID(event.EventID))
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}

	slog.Debug("Event published",
		slog.String("type", "sys"),
		slog.String("subject", event.Subject()),
		slog.Uint64("seq", ack.Sequence))
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
