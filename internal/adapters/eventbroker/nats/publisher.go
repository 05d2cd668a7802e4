package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"tus-upload/internal/config"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher announces finished uploads on a JetStream subject
type Publisher struct {
	logger *slog.Logger
	conn   *nats.Conn
	js     jetstream.JetStream
	config config.NATSConfig
}

var _ port.EventPublisher = (*Publisher)(nil)

// NewNATSPublisher connects to NATS and makes sure the stream exists
func NewNATSPublisher(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (*Publisher, error) {
	conn, js, err := connect("tus-upload-api", cfg.URL, logger)
	if err != nil {
		return nil, err
	}
	if err := ensureStream(ctx, js, cfg); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{
		conn:   conn,
		js:     js,
		config: cfg,
		logger: logger,
	}, nil
}

// PublishUploadCompleted publishes the event as JSON. The event id is the JetStream message id so
// a republished event is dropped by the stream's duplicate window.
func (p *Publisher) PublishUploadCompleted(ctx context.Context, event domain.UploadCompleted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not marshal upload event: %w", err)
	}

	ack, err := p.js.Publish(ctx, p.config.Subject, data, jetstream.WithMsgID(event.EventID))
	if err != nil {
		return fmt.Errorf("failed to publish upload event: %w", err)
	}
	p.logger.Info("upload event published",
		"upload_id", event.UploadID,
		"stream", ack.Stream,
		"sequence", ack.Sequence,
		"duplicate", ack.Duplicate)
	return nil
}

// Close drains pending publishes and closes the connection
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
