package mail_sync

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

const (
	defaultBackfillPageSize  = 500
	defaultRecentThreadCount = 10
)

// labels whose changes never start or continue a support conversation
var skippedHistoryLabels = []string{"DRAFT", "SPAM", "TRASH"}

// WindowQuery is the provider search for threads with mail in [start, end).
func WindowQuery(start, end time.Time) string {
	return fmt.Sprintf("after:%d before:%d", start.Unix(), end.Unix())
}

// listThreadsInWindow issues a single provider query. A next page is not
// followed; the second return value reports that the page was truncated.
func (s *mailSyncService) listThreadsInWindow(ctx context.Context, account *models.MailAccount, provider interfaces.MailProvider, start, end time.Time) ([]dto.ThreadRef, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailSyncService.listThreadsInWindow")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)

	pageSize := s.cfg.BackfillPageSize
	if pageSize <= 0 {
		pageSize = defaultBackfillPageSize
	}
	query := WindowQuery(start, end)
	span.SetTag("query", query)

	page, err := provider.ListThreads(ctx, dto.ThreadQuery{Query: query, MaxResults: pageSize})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, errors.Wrapf(err, "list threads %s", query)
	}

	truncated := page.NextPageToken != ""
	if truncated {
		s.log.Warnf("thread listing for mail account %s window %s has more than %d threads, remaining threads are not listed", account.ID, query, pageSize)
	}
	span.SetTag("threads.count", len(page.Threads))
	return page.Threads, truncated, nil
}

func (s *mailSyncService) listRecentThreads(ctx context.Context, account *models.MailAccount, provider interfaces.MailProvider) ([]dto.ThreadRef, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailSyncService.listRecentThreads")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)

	count := s.cfg.RecentThreadCount
	if count <= 0 {
		count = defaultRecentThreadCount
	}

	page, err := provider.ListThreads(ctx, dto.ThreadQuery{MaxResults: count})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "list recent threads")
	}
	span.SetTag("threads.count", len(page.Threads))
	return page.Threads, nil
}

// listChangedThreads reads the history feed after cursor and returns the
// threads with new mail, in feed order, plus the cursor to resume from.
func (s *mailSyncService) listChangedThreads(ctx context.Context, account *models.MailAccount, provider interfaces.MailProvider, cursor string) ([]dto.ThreadRef, string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailSyncService.listChangedThreads")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("cursor", cursor)

	page, err := provider.ListHistory(ctx, cursor)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, "", err
	}

	seen := make(map[string]bool)
	var refs []dto.ThreadRef
	for _, change := range page.Changes {
		if change.ThreadID == "" || seen[change.ThreadID] {
			continue
		}
		if utils.ContainsAny(change.LabelIDs, skippedHistoryLabels) || utils.ContainsAny(change.LabelIDs, s.cfg.IgnoredLabels) {
			continue
		}
		seen[change.ThreadID] = true
		refs = append(refs, dto.ThreadRef{ID: change.ThreadID})
	}

	nextCursor := page.Cursor
	if nextCursor == "" {
		nextCursor = cursor
	}
	span.SetTag("threads.count", len(refs))
	return refs, nextCursor, nil
}
