package listeners

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/services/events"
)

type BackfillListener struct {
	events.BaseEventListener
	syncService interfaces.SyncService
}

func NewBackfillListener(logger logger.Logger, syncService interfaces.SyncService) interfaces.EventListener {
	return &BackfillListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.BackfillRequested](), // subscribed event
			events.QueueSyncJobs,                         // listening on Direct queue
		),
		syncService: syncService,
	}
}

func (l *BackfillListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BackfillListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	request, err := events.DecodeEventData[dto.BackfillRequested](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if request.MailAccountID == "" {
		request.MailAccountID = validatedEvent.Event.EntityId
	}
	tracing.TagAccount(span, request.MailAccountID)
	span.SetTag("job_id", request.JobID)

	result, err := l.syncService.RunBackfill(ctx, request.MailAccountID, request.WindowStart, request.WindowEnd)
	if err != nil {
		// bad requests are not redelivered
		if errors.Is(err, inboxsync_errors.ErrInvalidInput) || errors.Is(err, inboxsync_errors.ErrMailAccountNotFound) {
			l.Logger().Warnf("Dropping backfill request for mail account %s: %v", request.MailAccountID, err)
			return nil
		}
		tracing.TraceErr(span, err)
		return err
	}

	imported, skipped, failed := result.Totals()
	l.Logger().Infof("Backfill of mail account %s finished: %d windows, %d imported, %d skipped, %d failed",
		request.MailAccountID, len(result.Windows), imported, skipped, failed)
	if result.Truncated && result.NextWindowStart != nil {
		l.Logger().Warnf("Backfill of mail account %s truncated, continue from %s",
			request.MailAccountID, result.NextWindowStart.Format("2006-01-02"))
	}
	return nil
}
