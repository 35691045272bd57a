package services

import (
	"context"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/services/email_parser"
	"github.com/customeros/inboxsync/services/events"
	"github.com/customeros/inboxsync/services/gmail"
	"github.com/customeros/inboxsync/services/mail_sync"
	"github.com/customeros/inboxsync/services/message_filter"
	"github.com/customeros/inboxsync/services/notifications"
	"github.com/customeros/inboxsync/services/storage"
	"github.com/customeros/inboxsync/services/thread_import"
)

type Services struct {
	EventsService       *events.EventsService
	ProviderFactory     interfaces.MailProviderFactory
	StorageService      interfaces.StorageService
	ThreadImportService interfaces.ThreadImporter
	SyncService         interfaces.SyncService
	GmailPushListener   *notifications.GmailPushListener
}

func InitServices(ctx context.Context, cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	eventsService, err := events.NewEventsService(cfg, log, events.DefaultPublisherConfig())
	if err != nil {
		return nil, err
	}

	// nil when attachment storage is disabled
	storageService, err := storage.NewR2StorageService(cfg.R2StorageConfig)
	if err != nil {
		_ = eventsService.Close()
		return nil, err
	}

	providerFactory := gmail.NewGmailService(cfg.GmailConfig, log)

	threadImportService := thread_import.NewThreadImportService(
		repos,
		email_parser.NewMessageParser(),
		message_filter.NewMessageFilterService(cfg.SyncConfig.IgnoredLabels),
		storageService,
		cfg.SyncConfig,
		log,
	)

	syncService := mail_sync.NewMailSyncService(
		repos,
		providerFactory,
		threadImportService,
		eventsService.EmbeddingScheduler,
		cfg.SyncConfig,
		log,
	)

	pushListener, err := notifications.NewGmailPushListener(ctx, cfg.PubSubConfig, repos.MailAccountRepository, syncService, log)
	if err != nil {
		_ = eventsService.Close()
		return nil, err
	}

	return &Services{
		EventsService:       eventsService,
		ProviderFactory:     providerFactory,
		StorageService:      storageService,
		ThreadImportService: threadImportService,
		SyncService:         syncService,
		GmailPushListener:   pushListener,
	}, nil
}

func (s *Services) Close() error {
	if s.GmailPushListener != nil {
		_ = s.GmailPushListener.Close()
	}
	return s.EventsService.Close()
}
