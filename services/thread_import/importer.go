package thread_import

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/internal/tracing"
)

type threadImportService struct {
	repositories *repository.Repositories
	parser       interfaces.MessageParser
	classifier   interfaces.MessageClassifier
	storage      interfaces.StorageService
	cfg          *config.SyncConfig
	log          logger.Logger
}

// NewThreadImportService wires the importer. storage may be nil, in which case
// attachment metadata is recorded without content.
func NewThreadImportService(
	repositories *repository.Repositories,
	parser interfaces.MessageParser,
	classifier interfaces.MessageClassifier,
	storage interfaces.StorageService,
	cfg *config.SyncConfig,
	log logger.Logger,
) interfaces.ThreadImporter {
	if cfg == nil {
		cfg = &config.SyncConfig{}
	}
	return &threadImportService{
		repositories: repositories,
		parser:       parser,
		classifier:   classifier,
		storage:      storage,
		cfg:          cfg,
		log:          log,
	}
}

// parsedMessage keeps a parsed message together with its position in the provider thread.
type parsedMessage struct {
	*dto.ParsedMessage
	position int
}

// ImportThread imports one provider thread into a conversation. It returns a nil
// result when there is nothing to import: the provider returned no messages or
// none of them could be parsed.
// Re-importing a thread only writes messages not stored yet.
func (s *threadImportService) ImportThread(ctx context.Context, account *models.MailAccount, provider interfaces.MailProvider, ref dto.ThreadRef, opts dto.ImportOptions) (*dto.ThreadImportResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ThreadImportService.ImportThread")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagThread(span, ref.ID)

	if account == nil || provider == nil || ref.ID == "" {
		err := errors.Wrap(inboxsync_errors.ErrInvalidInput, "account, provider and thread id are required")
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagAccount(span, account.ID)

	raws, err := s.fetchThread(ctx, provider, ref.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "fetch thread %s", ref.ID)
	}
	if len(raws) == 0 {
		s.log.Warnf("thread %s of mail account %s has no messages", ref.ID, account.ID)
		return nil, nil
	}
	// the thread's first message may have been deleted upstream, the rest still belongs to the thread
	if raws[0].ID != ref.ID {
		s.log.Warnf("thread id %s does not match its first message id %s", ref.ID, raws[0].ID)
		span.LogKV("warning", "thread id mismatch")
	}

	parsed := s.parseMessages(ctx, raws)
	if len(parsed) == 0 {
		s.log.Warnf("no parseable messages in thread %s of mail account %s", ref.ID, account.ID)
		return nil, nil
	}

	conversation, created, err := s.resolveConversation(ctx, account, ref.ID, parsed[0].ParsedMessage, opts.ForcedStatus)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "resolve conversation for thread %s", ref.ID)
	}
	tracing.TagEntity(span, conversation.ID)

	written, err := s.writeMessages(ctx, account, conversation, parsed)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "write messages of thread %s", ref.ID)
	}

	for _, w := range written {
		s.storeAttachments(ctx, conversation, w)
	}

	lastInbound, err := s.repositories.ConversationRepository.RecomputeLastInboundMessageAt(ctx, conversation.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "update last inbound time of conversation %s", conversation.ID)
	}

	result := &dto.ThreadImportResult{
		ThreadID:             ref.ID,
		ConversationID:       conversation.ID,
		ConversationSlug:     conversation.Slug,
		LastInboundMessageAt: lastInbound,
		MessagesWritten:      len(written),
		ConversationCreated:  created,
	}
	tracing.LogObjectAsJson(span, "result", result)
	return result, nil
}

func (s *threadImportService) parseMessages(ctx context.Context, raws []*dto.RawMessage) []parsedMessage {
	parsed := make([]parsedMessage, 0, len(raws))
	for i, raw := range raws {
		message, err := s.parser.Parse(raw)
		if err != nil {
			s.log.Warnf("skipping message %s of thread %s: %v", raw.ID, raw.ThreadID, err)
			continue
		}
		if s.classifier != nil {
			s.classifier.Classify(ctx, message)
		}
		parsed = append(parsed, parsedMessage{ParsedMessage: message, position: i})
	}
	return parsed
}
