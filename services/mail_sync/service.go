package mail_sync

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/internal/tracing"
)

const defaultBackfillConcurrency = 20

type mailSyncService struct {
	repositories *repository.Repositories
	providers    interfaces.MailProviderFactory
	importer     interfaces.ThreadImporter
	embeddings   interfaces.EmbeddingScheduler
	cfg          *config.SyncConfig
	log          logger.Logger
}

func NewMailSyncService(
	repositories *repository.Repositories,
	providers interfaces.MailProviderFactory,
	importer interfaces.ThreadImporter,
	embeddings interfaces.EmbeddingScheduler,
	cfg *config.SyncConfig,
	log logger.Logger,
) interfaces.SyncService {
	if cfg == nil {
		cfg = &config.SyncConfig{}
	}
	return &mailSyncService{
		repositories: repositories,
		providers:    providers,
		importer:     importer,
		embeddings:   embeddings,
		cfg:          cfg,
		log:          log,
	}
}

func (s *mailSyncService) loadAccount(ctx context.Context, mailAccountID string) (*models.MailAccount, interfaces.MailProvider, error) {
	account, err := s.repositories.MailAccountRepository.GetByID(ctx, mailAccountID)
	if err != nil {
		return nil, nil, err
	}
	provider, err := s.providers.ForAccount(ctx, account)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create provider client for mail account %s", mailAccountID)
	}
	return account, provider, nil
}

type importCounts struct {
	imported int
	skipped  int
	failed   int
}

// importThreads imports refs with bounded parallelism. A failing thread is
// logged and counted; it never stops the others. Cancelling ctx stops
// scheduling new threads.
func (s *mailSyncService) importThreads(ctx context.Context, account *models.MailAccount, provider interfaces.MailProvider, refs []dto.ThreadRef, opts dto.ImportOptions) importCounts {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailSyncService.importThreads")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("threads.count", len(refs))

	concurrency := s.cfg.BackfillConcurrency
	if concurrency <= 0 {
		concurrency = defaultBackfillConcurrency
	}

	var (
		mu     sync.Mutex
		counts importCounts
	)
	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i, ref := range refs {
		if ctx.Err() != nil {
			s.log.Warnf("import of mail account %s cancelled, %d threads not started", account.ID, len(refs)-i)
			break
		}
		g.Go(func() error {
			result, err := s.importOne(ctx, account, provider, ref, opts)

			mu.Lock()
			switch {
			case err != nil:
				counts.failed++
			case result == nil:
				counts.skipped++
			default:
				counts.imported++
			}
			mu.Unlock()

			if err != nil {
				tracing.TraceErr(span, err)
				s.log.Errorf("failed to import thread %s of mail account %s: %v", ref.ID, account.ID, err)
				return nil
			}
			// a re-import that wrote nothing leaves the conversation text unchanged, its embedding is current
			if result != nil && result.MessagesWritten > 0 {
				s.scheduleEmbedding(ctx, result.ConversationID)
			}
			return nil
		})
	}
	_ = g.Wait()

	span.SetTag("imported", counts.imported)
	span.SetTag("skipped", counts.skipped)
	span.SetTag("failed", counts.failed)
	return counts
}

func (s *mailSyncService) importOne(ctx context.Context, account *models.MailAccount, provider interfaces.MailProvider, ref dto.ThreadRef, opts dto.ImportOptions) (result *dto.ThreadImportResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic importing thread %s: %v", ref.ID, r)
		}
	}()
	return s.importer.ImportThread(ctx, account, provider, ref, opts)
}

// scheduleEmbedding never fails the import; the conversation is already stored.
func (s *mailSyncService) scheduleEmbedding(ctx context.Context, conversationID string) {
	if s.embeddings == nil {
		return
	}
	if err := s.embeddings.ScheduleEmbedding(ctx, conversationID); err != nil {
		s.log.Errorf("failed to schedule embedding for conversation %s: %v", conversationID, err)
	}
}
