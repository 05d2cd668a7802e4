package port

import (
	"context"
	"tus-upload/internal/core/domain"
)

// EventConsumer is an interface to define an event consumer (kafka, nats, ...)
type EventConsumer interface {
	Subscribe(ctx context.Context, handler MessageService) error
	Close() error
}

// EventPublisher announces finished uploads to downstream processing
type EventPublisher interface {
	PublishUploadCompleted(ctx context.Context, event domain.UploadCompleted) error
}

// MessageService is an interface to define message handling
type MessageService interface {
	HandleMessage(ctx context.Context, data []byte) error
}
