package mail_sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/repository"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) ListThreads(ctx context.Context, query dto.ThreadQuery) (*dto.ThreadPage, error) {
	args := m.Called(ctx, query)
	page, _ := args.Get(0).(*dto.ThreadPage)
	return page, args.Error(1)
}

func (m *mockProvider) GetThread(ctx context.Context, threadID string) ([]dto.ProviderMessageRef, error) {
	args := m.Called(ctx, threadID)
	refs, _ := args.Get(0).([]dto.ProviderMessageRef)
	return refs, args.Error(1)
}

func (m *mockProvider) GetRawMessage(ctx context.Context, messageID string) (*dto.RawMessage, error) {
	args := m.Called(ctx, messageID)
	raw, _ := args.Get(0).(*dto.RawMessage)
	return raw, args.Error(1)
}

func (m *mockProvider) ListHistory(ctx context.Context, cursor string) (*dto.HistoryPage, error) {
	args := m.Called(ctx, cursor)
	page, _ := args.Get(0).(*dto.HistoryPage)
	return page, args.Error(1)
}

func (m *mockProvider) CurrentCursor(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type staticProviderFactory struct {
	provider interfaces.MailProvider
}

func (f *staticProviderFactory) ForAccount(_ context.Context, _ *models.MailAccount) (interfaces.MailProvider, error) {
	return f.provider, nil
}

type mockImporter struct {
	mock.Mock
}

func (m *mockImporter) ImportThread(ctx context.Context, account *models.MailAccount, provider interfaces.MailProvider, ref dto.ThreadRef, opts dto.ImportOptions) (*dto.ThreadImportResult, error) {
	args := m.Called(ctx, account, provider, ref, opts)
	result, _ := args.Get(0).(*dto.ThreadImportResult)
	return result, args.Error(1)
}

// imports registers a successful import writing one message for each thread id.
func (m *mockImporter) imports(threadIDs ...string) *mockImporter {
	for _, id := range threadIDs {
		m.On("ImportThread", mock.Anything, mock.Anything, mock.Anything, dto.ThreadRef{ID: id}, mock.Anything).
			Return(&dto.ThreadImportResult{ThreadID: id, ConversationID: "conv-" + id, MessagesWritten: 1}, nil)
	}
	return m
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) ScheduleEmbedding(ctx context.Context, conversationID string) error {
	return m.Called(ctx, conversationID).Error(0)
}

type testEnv struct {
	repos     *repository.Repositories
	account   *models.MailAccount
	provider  *mockProvider
	importer  *mockImporter
	scheduler *mockScheduler
	service   interfaces.SyncService
}

func newTestEnv(t *testing.T, cfg *config.SyncConfig) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))

	account := &models.MailAccount{EmailAddress: "support@acme.com", Active: true}
	require.NoError(t, db.Create(account).Error)

	if cfg == nil {
		cfg = &config.SyncConfig{
			BackfillConcurrency: 3,
			BackfillPageSize:    500,
			RecentThreadCount:   10,
			MaxWindows:          52,
			IgnoredLabels:       []string{"CATEGORY_PROMOTIONS"},
		}
	}

	env := &testEnv{
		repos:     repository.InitRepositories(db),
		account:   account,
		provider:  new(mockProvider),
		importer:  new(mockImporter),
		scheduler: new(mockScheduler),
	}
	env.scheduler.On("ScheduleEmbedding", mock.Anything, mock.Anything).Return(nil).Maybe()
	env.service = NewMailSyncService(env.repos, &staticProviderFactory{provider: env.provider}, env.importer, env.scheduler, cfg, logger.NewNopLogger())
	return env
}

// storeThread writes one message for threadID so the thread counts as imported.
func (e *testEnv) storeThread(t *testing.T, threadID string) {
	t.Helper()
	ctx := context.Background()

	conversation, _, err := e.repos.ConversationRepository.CreateForThread(ctx, &models.Conversation{
		MailAccountID: e.account.ID,
		Status:        enum.ConversationStatusOpen,
	}, threadID)
	require.NoError(t, err)

	inserted, err := e.repos.MessageRepository.InsertIgnore(ctx, &models.Message{
		MailAccountID:     e.account.ID,
		ConversationID:    conversation.ID,
		ProviderThreadID:  threadID,
		ProviderMessageID: threadID,
		Role:              enum.MessageRoleExternal,
	})
	require.NoError(t, err)
	require.True(t, inserted)
}

func threadRefs(ids ...string) []dto.ThreadRef {
	refs := make([]dto.ThreadRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, dto.ThreadRef{ID: id})
	}
	return refs
}
