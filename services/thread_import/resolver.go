package thread_import

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

const (
	spamLabel       = "SPAM"
	maxMergeHops    = 10
	maxSubjectChars = 1000
)

// resolveConversation returns the canonical conversation of a provider thread,
// creating it from the first message when the thread is not mapped yet.
func (s *threadImportService) resolveConversation(ctx context.Context, account *models.MailAccount, threadID string, first *dto.ParsedMessage, forcedStatus *enum.ConversationStatus) (*models.Conversation, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ThreadImportService.resolveConversation")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	tracing.TagThread(span, threadID)

	conversation, err := s.repositories.ConversationRepository.GetByThread(ctx, account.ID, threadID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}

	created := false
	if conversation == nil {
		counterpartyAddress, counterpartyName := counterparty(account, first)
		candidate := &models.Conversation{
			MailAccountID:       account.ID,
			Subject:             utils.TruncateString(first.Subject, maxSubjectChars),
			CounterpartyAddress: counterpartyAddress,
			CounterpartyName:    counterpartyName,
			Status:              initialStatus(first, forcedStatus),
			Provider:            account.Provider,
		}
		conversation, created, err = s.repositories.ConversationRepository.CreateForThread(ctx, candidate, threadID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, false, err
		}
		if !created {
			s.log.Infof("thread %s of mail account %s was mapped concurrently to conversation %s", threadID, account.ID, conversation.ID)
		}
	}

	canonical, err := s.followMerges(ctx, conversation)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}

	span.SetTag("created", created)
	tracing.TagEntity(span, canonical.ID)
	return canonical, created, nil
}

func (s *threadImportService) followMerges(ctx context.Context, conversation *models.Conversation) (*models.Conversation, error) {
	visited := map[string]bool{conversation.ID: true}
	current := conversation
	for hops := 0; current.IsMerged(); hops++ {
		target := *current.MergedIntoID
		if hops >= maxMergeHops || visited[target] {
			return nil, errors.Wrapf(inboxsync_errors.ErrMergeCycle, "conversation %s", conversation.ID)
		}
		visited[target] = true

		next, err := s.repositories.ConversationRepository.GetByID(ctx, target)
		if err != nil {
			return nil, errors.Wrapf(err, "follow merge of conversation %s", current.ID)
		}
		current = next
	}
	return current, nil
}

func initialStatus(first *dto.ParsedMessage, forcedStatus *enum.ConversationStatus) enum.ConversationStatus {
	if forcedStatus != nil && forcedStatus.IsValid() {
		return *forcedStatus
	}
	if utils.IsStringInSlice(spamLabel, first.LabelIDs) {
		return enum.ConversationStatusSpam
	}
	return enum.ConversationStatusOpen
}

// counterparty is the customer side of the conversation: the sender, or the
// first non-staff recipient when the thread was started by staff.
func counterparty(account *models.MailAccount, first *dto.ParsedMessage) (string, string) {
	if !account.IsStaffAddress(first.FromAddress) {
		return first.FromAddress, first.FromName
	}
	for _, address := range append(append([]string{}, first.ToAddresses...), first.CcAddresses...) {
		if !account.IsStaffAddress(address) {
			return address, ""
		}
	}
	return first.FromAddress, first.FromName
}
