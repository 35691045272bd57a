package events

import (
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
)

type EventsService struct {
	Publisher          *RabbitMQPublisher
	Subscriber         *RabbitMQSubscriber
	EmbeddingScheduler interfaces.EmbeddingScheduler

	nats *NatsEmbeddingScheduler
}

// NewEventsService connects the RabbitMQ publisher and subscriber and picks the
// embedding transport from the sync configuration.
func NewEventsService(cfg *config.Config, log logger.Logger, publisherConfig *PublisherConfig) (*EventsService, error) {
	publisher, err := NewRabbitMQPublisher(cfg.RabbitMQConfig.URL, log, publisherConfig)
	if err != nil {
		return nil, err
	}
	service := &EventsService{Publisher: publisher}

	service.Subscriber, err = NewRabbitMQSubscriber(cfg.RabbitMQConfig.URL, log, nil)
	if err != nil {
		_ = service.Close()
		return nil, err
	}

	switch cfg.SyncConfig.EmbeddingTransport {
	case EmbeddingTransportNats:
		service.nats, err = NewNatsEmbeddingScheduler(cfg.NatsConfig, log)
		if err != nil {
			_ = service.Close()
			return nil, err
		}
		service.EmbeddingScheduler = service.nats
	case EmbeddingTransportNone:
		service.EmbeddingScheduler = NewNoopEmbeddingScheduler(log)
	default:
		service.EmbeddingScheduler = NewRabbitMQEmbeddingScheduler(publisher)
	}

	return service, nil
}

func (s *EventsService) Close() error {
	var errs []error

	if s.Subscriber != nil {
		if err := s.Subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.nats != nil {
		s.nats.Close()
	}

	if len(errs) > 0 {
		return errors.Errorf("errors closing events service: %v", errs)
	}

	return nil
}
