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

type IncrementalSyncListener struct {
	events.BaseEventListener
	syncService interfaces.SyncService
}

func NewIncrementalSyncListener(logger logger.Logger, syncService interfaces.SyncService) interfaces.EventListener {
	return &IncrementalSyncListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.IncrementalSyncRequested](),
			events.QueueSyncJobs,
		),
		syncService: syncService,
	}
}

func (l *IncrementalSyncListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IncrementalSyncListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	request, err := events.DecodeEventData[dto.IncrementalSyncRequested](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if request.MailAccountID == "" {
		request.MailAccountID = validatedEvent.Event.EntityId
	}
	tracing.TagAccount(span, request.MailAccountID)
	span.SetTag("job_id", request.JobID)

	result, err := l.syncService.RunIncrementalSync(ctx, request.MailAccountID)
	switch {
	case err == nil:
		l.Logger().Infof("Incremental sync of mail account %s (%s) imported %d threads",
			request.MailAccountID, result.Source, result.Imported)
		return nil
	case errors.Is(err, inboxsync_errors.ErrIncompleteSync):
		// cursor kept, the next run picks the failed threads up again
		l.Logger().Warnf("Incremental sync of mail account %s incomplete: %v", request.MailAccountID, err)
		return nil
	case errors.Is(err, inboxsync_errors.ErrInvalidInput), errors.Is(err, inboxsync_errors.ErrMailAccountNotFound):
		l.Logger().Warnf("Dropping incremental sync request for mail account %s: %v", request.MailAccountID, err)
		return nil
	default:
		tracing.TraceErr(span, err)
		return err
	}
}
