package interfaces

import (
	"context"

	"github.com/customeros/inboxsync/internal/enum"
)

type EventPublisher interface {
	PublishDirectEvent(ctx context.Context, routingKey, entityId string, entityType enum.EntityType, eventType string, message interface{}) error
	Close() error
}

type EventListener interface {
	Handle(ctx context.Context, event any) error
	GetEventType() string
	GetQueueName() string
}

type EventSubscriber interface {
	RegisterListener(listener EventListener)
	ListenQueue(queueName string) error
	Close() error
}

// EmbeddingScheduler requests asynchronous (re)computation of a conversation embedding.
type EmbeddingScheduler interface {
	ScheduleEmbedding(ctx context.Context, conversationID string) error
}
