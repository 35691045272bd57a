package repository

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) interfaces.ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "conversationRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var conversation models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(inboxsync_errors.ErrConversationNotFound, "id %s", id)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &conversation, nil
}

// GetByThread returns the conversation mapped to the provider thread, or nil when the thread is unmapped.
func (r *conversationRepository) GetByThread(ctx context.Context, mailAccountID, providerThreadID string) (*models.Conversation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "conversationRepository.GetByThread")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, mailAccountID)
	tracing.TagThread(span, providerThreadID)

	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_threads ct ON ct.conversation_id = conversations.id").
		Where("ct.mail_account_id = ? AND ct.provider_thread_id = ?", mailAccountID, providerThreadID).
		Take(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &conversation, nil
}

func (r *conversationRepository) CreateForThread(ctx context.Context, conversation *models.Conversation, providerThreadID string) (*models.Conversation, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "conversationRepository.CreateForThread")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagThread(span, providerThreadID)

	if conversation == nil || conversation.MailAccountID == "" || providerThreadID == "" {
		err := errors.Wrap(inboxsync_errors.ErrInvalidInput, "conversation, mail account and thread are required")
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	tracing.TagAccount(span, conversation.MailAccountID)

	if conversation.Status == "" {
		conversation.Status = enum.ConversationStatusOpen
	}
	if conversation.Provider == "" {
		conversation.Provider = enum.MailProviderGmail
	}
	now := utils.Now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		mapping := &models.ConversationThread{
			MailAccountID:    conversation.MailAccountID,
			ProviderThreadID: providerThreadID,
			ConversationID:   conversation.ID,
			CreatedAt:        now,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(mapping)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errThreadAlreadyMapped
		}
		return nil
	})
	if err == nil {
		span.SetTag("created", true)
		return conversation, true, nil
	}
	if !errors.Is(err, errThreadAlreadyMapped) {
		tracing.TraceErr(span, err)
		return nil, false, err
	}

	// another writer mapped the thread first
	existing, err := r.GetByThread(ctx, conversation.MailAccountID, providerThreadID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	if existing == nil {
		err = errors.Errorf("thread %s reported as mapped but no mapping found", providerThreadID)
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	span.SetTag("created", false)
	return existing, false, nil
}

func (r *conversationRepository) SetMergedInto(ctx context.Context, id, mergedIntoID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "conversationRepository.SetMergedInto")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)
	span.SetTag("merged_into_id", mergedIntoID)

	result := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"merged_into_id": mergedIntoID,
			"updated_at":     utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(inboxsync_errors.ErrConversationNotFound, "id %s", id)
	}
	return nil
}

// RecomputeLastInboundMessageAt sets the conversation's last inbound time to the newest
// external message in a single statement, so concurrent writers converge on the maximum.
func (r *conversationRepository) RecomputeLastInboundMessageAt(ctx context.Context, conversationID string) (*time.Time, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "conversationRepository.RecomputeLastInboundMessageAt")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, conversationID)

	err := r.db.WithContext(ctx).Exec(
		`UPDATE conversations SET last_inbound_message_at = (
			SELECT MAX(m.created_at) FROM messages m WHERE m.conversation_id = ? AND m.role = ?
		), updated_at = ? WHERE id = ?`,
		conversationID, enum.MessageRoleExternal, utils.Now(), conversationID,
	).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var conversation models.Conversation
	err = r.db.WithContext(ctx).
		Select("id", "last_inbound_message_at").
		Where("id = ?", conversationID).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(inboxsync_errors.ErrConversationNotFound, "id %s", conversationID)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return conversation.LastInboundMessageAt, nil
}
