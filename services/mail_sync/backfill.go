package mail_sync

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

// RunBackfill imports every thread with mail between windowStart and windowEnd
// (inclusive) that is not stored yet. Imported conversations are closed.
// A listing error aborts the run and is returned together with the windows
// completed so far; re-running resumes because stored threads are skipped.
func (s *mailSyncService) RunBackfill(ctx context.Context, mailAccountID string, windowStart, windowEnd time.Time) (*dto.BackfillResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailSyncService.RunBackfill")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, mailAccountID)
	span.SetTag("window.start", windowStart.Format(time.RFC3339))
	span.SetTag("window.end", windowEnd.Format(time.RFC3339))

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

	maxWindows := s.cfg.MaxWindows
	if maxWindows <= 0 {
		maxWindows = DefaultMaxWindows
	}
	windows := PlanWindowsWithLimit(windowStart, windowEnd, maxWindows)
	result := &dto.BackfillResult{
		MailAccountID: mailAccountID,
		Windows:       make([]dto.WindowResult, 0, len(windows)),
	}
	if next := nextWindowStart(windows, windowEnd); next != nil {
		result.Truncated = true
		result.NextWindowStart = next
		s.log.Warnf("backfill of mail account %s needs more than %d windows, continue from %s", mailAccountID, maxWindows, next.Format(time.RFC3339))
	}

	opts := dto.ImportOptions{ForcedStatus: utils.ToPtr(enum.ConversationStatusClosed)}
	for _, boundary := range windows {
		if err := ctx.Err(); err != nil {
			tracing.TraceErr(span, err)
			return result, errors.Wrap(err, "backfill cancelled")
		}

		end := WindowEnd(boundary, windowEnd)
		window := dto.WindowResult{WindowStart: boundary, WindowEnd: end}

		candidates, truncated, err := s.listThreadsInWindow(ctx, account, provider, boundary, end)
		if err != nil {
			tracing.TraceErr(span, err)
			return result, err
		}
		window.ThreadsListed = len(candidates)
		window.PageTruncated = truncated

		fresh, err := s.filterNew(ctx, mailAccountID, candidates)
		if err != nil {
			tracing.TraceErr(span, err)
			return result, errors.Wrap(err, "filter stored threads")
		}
		window.ThreadsNew = len(fresh)

		counts := s.importThreads(ctx, account, provider, fresh, opts)
		window.Imported = counts.imported
		window.Skipped = counts.skipped
		window.Failed = counts.failed
		result.Windows = append(result.Windows, window)

		s.log.Infof("backfill window %s of mail account %s: listed %d, new %d, imported %d, skipped %d, failed %d",
			boundary.Format(time.DateOnly), mailAccountID, window.ThreadsListed, window.ThreadsNew, window.Imported, window.Skipped, window.Failed)
	}

	tracing.LogObjectAsJson(span, "result", result)
	return result, nil
}
