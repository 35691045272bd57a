package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

const (
	EmbeddingTransportRabbitMQ = "rabbitmq"
	EmbeddingTransportNats     = "nats"
	EmbeddingTransportNone     = "none"

	SubjectConversationEmbedding = "inboxsync.embedding.conversation"

	// repeated requests for a conversation within this window are published once
	embeddingDedupWindow = 2 * time.Minute
)

type rabbitMQEmbeddingScheduler struct {
	publisher interfaces.EventPublisher
}

func NewRabbitMQEmbeddingScheduler(publisher interfaces.EventPublisher) interfaces.EmbeddingScheduler {
	return &rabbitMQEmbeddingScheduler{publisher: publisher}
}

func (s *rabbitMQEmbeddingScheduler) ScheduleEmbedding(ctx context.Context, conversationID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQEmbeddingScheduler.ScheduleEmbedding")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, conversationID)

	event := dto.ConversationEmbeddingRequested{ConversationID: conversationID, RequestedAt: utils.Now()}
	err := s.publisher.PublishDirectEvent(ctx, RoutingKeyConversationEmbedding, conversationID, enum.CONVERSATION, GetEventType[dto.ConversationEmbeddingRequested](), event)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "publish embedding request for conversation %s", conversationID)
	}
	return nil
}

// jetStreamPublisher is the part of nats.JetStreamContext the scheduler uses.
type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type NatsEmbeddingScheduler struct {
	nc *nats.Conn
	js jetStreamPublisher
}

// NewNatsEmbeddingScheduler connects to NATS and makes sure the embedding stream exists.
func NewNatsEmbeddingScheduler(cfg *config.NatsConfig, log logger.Logger) (*NatsEmbeddingScheduler, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(AppSource),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			log.Infof("NATS reconnected to %s", conn.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to NATS")
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "failed to get JetStream context")
	}

	if err := ensureEmbeddingStream(js, cfg.Stream); err != nil {
		nc.Close()
		return nil, err
	}

	return &NatsEmbeddingScheduler{nc: nc, js: js}, nil
}

func ensureEmbeddingStream(js nats.JetStreamContext, stream string) error {
	if info, err := js.StreamInfo(stream); err == nil && info != nil {
		return nil
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:       stream,
		Subjects:   []string{SubjectConversationEmbedding},
		Storage:    nats.FileStorage,
		Retention:  nats.WorkQueuePolicy,
		Duplicates: embeddingDedupWindow,
		MaxAge:     DefaultMessageTTL,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return errors.Wrapf(err, "failed to create stream %s", stream)
	}
	return nil
}

func (s *NatsEmbeddingScheduler) ScheduleEmbedding(ctx context.Context, conversationID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "NatsEmbeddingScheduler.ScheduleEmbedding")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, conversationID)

	now := utils.Now()
	payload, err := json.Marshal(dto.ConversationEmbeddingRequested{ConversationID: conversationID, RequestedAt: now})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	_, err = s.js.Publish(SubjectConversationEmbedding, payload,
		nats.MsgId(embeddingMsgID(conversationID, now)),
		nats.Context(ctx),
	)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "publish embedding request for conversation %s", conversationID)
	}
	return nil
}

// embeddingMsgID is stable within a dedup window so bursts of imports into one
// conversation enqueue a single job.
func embeddingMsgID(conversationID string, at time.Time) string {
	return fmt.Sprintf("%s-%d", conversationID, at.Truncate(embeddingDedupWindow).Unix())
}

func (s *NatsEmbeddingScheduler) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

type noopEmbeddingScheduler struct {
	log logger.Logger
}

// NewNoopEmbeddingScheduler only logs requests, for deployments without an embedding worker.
func NewNoopEmbeddingScheduler(log logger.Logger) interfaces.EmbeddingScheduler {
	return &noopEmbeddingScheduler{log: log}
}

func (s *noopEmbeddingScheduler) ScheduleEmbedding(_ context.Context, conversationID string) error {
	s.log.Debugf("embedding transport disabled, not scheduling conversation %s", conversationID)
	return nil
}
