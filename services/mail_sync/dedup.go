package mail_sync

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/internal/tracing"
)

// filterNew drops candidates that already have stored messages, and repeated
// candidates, keeping input order. The check is advisory: concurrent imports
// are made safe by the storage constraints, not by this filter.
func (s *mailSyncService) filterNew(ctx context.Context, mailAccountID string, candidates []dto.ThreadRef) ([]dto.ThreadRef, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailSyncService.filterNew")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, mailAccountID)
	span.SetTag("candidates.count", len(candidates))

	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}
	existing, err := s.repositories.MessageRepository.ExistingThreadIDs(ctx, mailAccountID, ids)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	seen := make(map[string]bool, len(candidates))
	fresh := make([]dto.ThreadRef, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.ID == "" || existing[candidate.ID] || seen[candidate.ID] {
			continue
		}
		seen[candidate.ID] = true
		fresh = append(fresh, candidate)
	}

	span.SetTag("new.count", len(fresh))
	return fresh, nil
}
