package repository

import (
	"context"
	"strconv"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

type mailAccountRepository struct {
	db *gorm.DB
}

func NewMailAccountRepository(db *gorm.DB) interfaces.MailAccountRepository {
	return &mailAccountRepository{db: db}
}

func (r *mailAccountRepository) GetByID(ctx context.Context, id string) (*models.MailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	if id == "" {
		err := errors.Wrap(inboxsync_errors.ErrInvalidInput, "mail account ID cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var account models.MailAccount
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(inboxsync_errors.ErrMailAccountNotFound, "id %s", id)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &account, nil
}

// GetByEmailAddress returns nil when no account uses the address.
func (r *mailAccountRepository) GetByEmailAddress(ctx context.Context, emailAddress string) (*models.MailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.GetByEmailAddress")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("email_address", emailAddress)

	var account models.MailAccount
	err := r.db.WithContext(ctx).Where("LOWER(email_address) = LOWER(?)", emailAddress).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &account, nil
}

func (r *mailAccountRepository) ListActive(ctx context.Context) ([]*models.MailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.ListActive")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.MailAccount
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&accounts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.SetTag("result.count", len(accounts))
	return accounts, nil
}

func (r *mailAccountRepository) Save(ctx context.Context, account *models.MailAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if account == nil {
		err := errors.Wrap(inboxsync_errors.ErrInvalidInput, "mail account cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}

	if err := r.db.WithContext(ctx).Save(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// GetCursor returns an empty cursor for accounts that never completed an incremental pass.
func (r *mailAccountRepository) GetCursor(ctx context.Context, mailAccountID string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.GetCursor")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, mailAccountID)

	var cursors []string
	err := r.db.WithContext(ctx).
		Model(&models.MailAccount{}).
		Where("id = ?", mailAccountID).
		Pluck("sync_cursor", &cursors).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	if len(cursors) == 0 {
		return "", errors.Wrapf(inboxsync_errors.ErrMailAccountNotFound, "id %s", mailAccountID)
	}

	return cursors[0], nil
}

// SaveCursor only moves the cursor forward. A history id not greater than the
// stored one refreshes last_synced_at and leaves the cursor in place.
func (r *mailAccountRepository) SaveCursor(ctx context.Context, mailAccountID, cursor string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailAccountRepository.SaveCursor")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, mailAccountID)
	span.SetTag("cursor", cursor)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cursors []string
		err := tx.Model(&models.MailAccount{}).
			Where("id = ?", mailAccountID).
			Pluck("sync_cursor", &cursors).Error
		if err != nil {
			return err
		}
		if len(cursors) == 0 {
			return errors.Wrapf(inboxsync_errors.ErrMailAccountNotFound, "id %s", mailAccountID)
		}

		now := utils.Now()
		updates := map[string]interface{}{
			"last_synced_at": now,
			"updated_at":     now,
		}
		if cursorAdvances(cursors[0], cursor) {
			updates["sync_cursor"] = cursor
		} else {
			span.LogKV("skipped", "stored cursor "+cursors[0]+" is not older")
		}
		// matching on the read value keeps a concurrent newer write intact
		return tx.Model(&models.MailAccount{}).
			Where("id = ? AND sync_cursor = ?", mailAccountID, cursors[0]).
			Updates(updates).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// cursorAdvances compares history ids numerically. An empty or unparseable
// stored cursor is always replaced.
func cursorAdvances(stored, next string) bool {
	if stored == "" {
		return true
	}
	storedID, err := strconv.ParseUint(stored, 10, 64)
	if err != nil {
		return true
	}
	nextID, err := strconv.ParseUint(next, 10, 64)
	if err != nil {
		return false
	}
	return nextID > storedID
}
