package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

type messageAttachmentRepository struct {
	db *gorm.DB
}

func NewMessageAttachmentRepository(db *gorm.DB) interfaces.MessageAttachmentRepository {
	return &messageAttachmentRepository{db: db}
}

func (r *messageAttachmentRepository) Create(ctx context.Context, attachment *models.MessageAttachment) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageAttachmentRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if attachment == nil || attachment.MessageID == "" {
		err := errors.Wrap(inboxsync_errors.ErrInvalidInput, "attachment requires a message id")
		tracing.TraceErr(span, err)
		return err
	}
	span.SetTag("message_id", attachment.MessageID)

	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = utils.Now()
	}
	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *messageAttachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]*models.MessageAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageAttachmentRepository.ListByMessage")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("message_id", messageID)

	var attachments []*models.MessageAttachment
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&attachments).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attachments, nil
}
