package mail_sync

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
)

// RunIncrementalSync imports threads with new mail since the stored cursor.
// With a cursor, the provider history feed is read and changed threads are
// re-imported. Without one, or once the provider has expired it, the most
// recent threads are polled instead. The cursor is saved only when every
// thread imported; otherwise ErrIncompleteSync is returned and the next run
// starts from the same cursor.
func (s *mailSyncService) RunIncrementalSync(ctx context.Context, mailAccountID string) (*dto.IncrementalSyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailSyncService.RunIncrementalSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, mailAccountID)

	if mailAccountID == "" {
		err := errors.Wrap(inboxsync_errors.ErrInvalidInput, "mail account id is required")
		tracing.TraceErr(span, err)
		return nil, err
	}

	account, provider, err := s.loadAccount(ctx, mailAccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	cursor, err := s.repositories.MailAccountRepository.GetCursor(ctx, mailAccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "read sync cursor")
	}

	result := &dto.IncrementalSyncResult{MailAccountID: mailAccountID, Cursor: cursor}

	var (
		refs       []dto.ThreadRef
		nextCursor string
	)
	if cursor != "" {
		refs, nextCursor, err = s.listChangedThreads(ctx, account, provider, cursor)
		switch {
		case err == nil:
			result.Source = enum.IncrementalSourceHistory
			result.ThreadsListed = len(refs)
			result.ThreadsNew = len(refs)
		case errors.Is(err, inboxsync_errors.ErrSyncCursorExpired), errors.Is(err, inboxsync_errors.ErrInvalidSyncCursor):
			s.log.Warnf("sync cursor %s of mail account %s is no longer usable, polling recent threads: %v", cursor, mailAccountID, err)
		default:
			tracing.TraceErr(span, err)
			return nil, errors.Wrap(err, "read history feed")
		}
	}

	if result.Source == "" {
		refs, nextCursor, err = s.pollRecentThreads(ctx, account, provider, result)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}
	span.SetTag("source", result.Source)

	counts := s.importThreads(ctx, account, provider, refs, dto.ImportOptions{})
	result.Imported = counts.imported
	result.Skipped = counts.skipped
	result.Failed = counts.failed

	if counts.failed > 0 || len(refs) > counts.imported+counts.skipped+counts.failed {
		err = errors.Wrapf(inboxsync_errors.ErrIncompleteSync, "%d of %d threads not imported", len(refs)-counts.imported-counts.skipped, len(refs))
		tracing.TraceErr(span, err)
		return result, err
	}

	if nextCursor != "" && nextCursor != cursor {
		if err := s.repositories.MailAccountRepository.SaveCursor(ctx, mailAccountID, nextCursor); err != nil {
			tracing.TraceErr(span, err)
			return result, errors.Wrap(err, "save sync cursor")
		}
		result.Cursor = nextCursor
		result.CursorAdvanced = true
	}

	s.log.Infof("incremental sync of mail account %s via %s: listed %d, new %d, imported %d, skipped %d",
		mailAccountID, result.Source, result.ThreadsListed, result.ThreadsNew, result.Imported, result.Skipped)
	tracing.LogObjectAsJson(span, "result", result)
	return result, nil
}

// pollRecentThreads captures the provider's current cursor before listing so
// mail arriving during the pass is picked up by the next one.
func (s *mailSyncService) pollRecentThreads(ctx context.Context, account *models.MailAccount, provider interfaces.MailProvider, result *dto.IncrementalSyncResult) ([]dto.ThreadRef, string, error) {
	result.Source = enum.IncrementalSourcePolling

	nextCursor, err := provider.CurrentCursor(ctx)
	if err != nil {
		return nil, "", errors.Wrap(err, "read current sync cursor")
	}

	candidates, err := s.listRecentThreads(ctx, account, provider)
	if err != nil {
		return nil, "", err
	}
	result.ThreadsListed = len(candidates)

	fresh, err := s.filterNew(ctx, account.ID, candidates)
	if err != nil {
		return nil, "", errors.Wrap(err, "filter stored threads")
	}
	result.ThreadsNew = len(fresh)
	return fresh, nextCursor, nil
}
