package thread_import

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/tracing"
)

const defaultFetchConcurrency = 5

// fetchThread returns the raw messages of a thread in provider order.
// Any provider failure fails the whole fetch.
func (s *threadImportService) fetchThread(ctx context.Context, provider interfaces.MailProvider, threadID string) ([]*dto.RawMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ThreadImportService.fetchThread")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagThread(span, threadID)

	refs, err := provider.GetThread(ctx, threadID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.SetTag("messages.count", len(refs))

	concurrency := s.cfg.FetchConcurrency
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}

	raws := make([]*dto.RawMessage, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			raw, err := provider.GetRawMessage(gctx, ref.ID)
			if err != nil {
				return err
			}
			if raw.ThreadID == "" {
				raw.ThreadID = threadID
			}
			if len(raw.LabelIDs) == 0 {
				raw.LabelIDs = ref.LabelIDs
			}
			raws[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return raws, nil
}
