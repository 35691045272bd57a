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
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

type danglingReferenceRepository struct {
	db *gorm.DB
}

func NewDanglingReferenceRepository(db *gorm.DB) interfaces.DanglingReferenceRepository {
	return &danglingReferenceRepository{db: db}
}

// Record is idempotent per (account, referenced message id, referencing message).
func (r *danglingReferenceRepository) Record(ctx context.Context, ref *models.DanglingReference) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "danglingReferenceRepository.Record")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if ref == nil || ref.MailAccountID == "" || ref.ReferencedMessageID == "" || ref.ReferencedBy == "" {
		err := errors.Wrap(inboxsync_errors.ErrInvalidInput, "dangling reference is incomplete")
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagAccount(span, ref.MailAccountID)
	span.SetTag("referenced_message_id", ref.ReferencedMessageID)

	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = utils.Now()
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(ref).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *danglingReferenceRepository) ListByReferencedMessageID(ctx context.Context, mailAccountID, referencedMessageID string) ([]*models.DanglingReference, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "danglingReferenceRepository.ListByReferencedMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, mailAccountID)
	span.SetTag("referenced_message_id", referencedMessageID)

	var refs []*models.DanglingReference
	err := r.db.WithContext(ctx).
		Where("mail_account_id = ? AND referenced_message_id = ?", mailAccountID, referencedMessageID).
		Order("created_at ASC").
		Find(&refs).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return refs, nil
}

// Resolve links every message waiting on referencedMessageID to parentID and
// clears the dangling rows. It returns the number of messages linked.
func (r *danglingReferenceRepository) Resolve(ctx context.Context, mailAccountID, referencedMessageID, parentID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "danglingReferenceRepository.Resolve")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, mailAccountID)
	span.SetTag("referenced_message_id", referencedMessageID)

	var linked int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		waiting := tx.Model(&models.DanglingReference{}).
			Select("referenced_by").
			Where("mail_account_id = ? AND referenced_message_id = ?", mailAccountID, referencedMessageID)

		result := tx.Model(&models.Message{}).
			Where("id IN (?) AND parent_message_id IS NULL", waiting).
			Update("parent_message_id", parentID)
		if result.Error != nil {
			return result.Error
		}
		linked = result.RowsAffected

		return tx.
			Where("mail_account_id = ? AND referenced_message_id = ?", mailAccountID, referencedMessageID).
			Delete(&models.DanglingReference{}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	span.SetTag("linked", linked)
	return linked, nil
}

func (r *danglingReferenceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "danglingReferenceRepository.DeleteOlderThan")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("cutoff", cutoff.Format(time.RFC3339))

	result := r.db.WithContext(ctx).Delete(&models.DanglingReference{}, "created_at < ?", cutoff)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, result.Error
	}

	span.SetTag("deleted_count", result.RowsAffected)
	return result.RowsAffected, nil
}
