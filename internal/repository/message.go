package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) interfaces.MessageRepository {
	return &messageRepository{db: db}
}

// InsertIgnore writes the message unless one with the same external or provider
// message id already exists for the account.
func (r *messageRepository) InsertIgnore(ctx context.Context, message *models.Message) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.InsertIgnore")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if message == nil || message.MailAccountID == "" || message.ConversationID == "" || message.ProviderMessageID == "" {
		err := errors.Wrap(inboxsync_errors.ErrInvalidInput, "message requires mail account, conversation and provider message id")
		tracing.TraceErr(span, err)
		return false, err
	}
	tracing.TagAccount(span, message.MailAccountID)
	span.SetTag("provider_message_id", message.ProviderMessageID)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(message)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, result.Error
	}

	inserted := result.RowsAffected > 0
	span.SetTag("inserted", inserted)
	return inserted, nil
}

// GetByExternalMessageIDs maps each stored external message id to its message id.
func (r *messageRepository) GetByExternalMessageIDs(ctx context.Context, mailAccountID string, externalIDs []string) (map[string]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.GetByExternalMessageIDs")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, mailAccountID)
	span.SetTag("external_ids.count", len(externalIDs))

	found := make(map[string]string, len(externalIDs))
	if len(externalIDs) == 0 {
		return found, nil
	}

	var rows []struct {
		ID                string
		ExternalMessageID string
	}
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("id", "external_message_id").
		Where("mail_account_id = ? AND external_message_id IN ?", mailAccountID, externalIDs).
		Scan(&rows).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	for _, row := range rows {
		found[row.ExternalMessageID] = row.ID
	}
	return found, nil
}

// ExistingThreadIDs reports which of threadIDs already have at least one stored message.
func (r *messageRepository) ExistingThreadIDs(ctx context.Context, mailAccountID string, threadIDs []string) (map[string]bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.ExistingThreadIDs")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, mailAccountID)
	span.SetTag("thread_ids.count", len(threadIDs))

	existing := make(map[string]bool, len(threadIDs))
	if len(threadIDs) == 0 {
		return existing, nil
	}

	var stored []string
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Distinct("provider_thread_id").
		Where("mail_account_id = ? AND provider_thread_id IN ?", mailAccountID, threadIDs).
		Pluck("provider_thread_id", &stored).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	for _, id := range stored {
		existing[id] = true
	}
	span.SetTag("existing.count", len(existing))
	return existing, nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.ListByConversation")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, conversationID)

	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, thread_position ASC").
		Find(&messages).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return messages, nil
}

func (r *messageRepository) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.CountByConversation")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, conversationID)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}
