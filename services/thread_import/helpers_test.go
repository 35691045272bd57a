package thread_import

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/services/email_parser"
	"github.com/customeros/inboxsync/services/message_filter"
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

// withThread registers a thread and its raw messages, in order.
func (m *mockProvider) withThread(threadID string, raws ...*dto.RawMessage) *mockProvider {
	refs := make([]dto.ProviderMessageRef, 0, len(raws))
	for _, raw := range raws {
		refs = append(refs, dto.ProviderMessageRef{ID: raw.ID, ThreadID: threadID, LabelIDs: raw.LabelIDs})
		m.On("GetRawMessage", mock.Anything, raw.ID).Return(raw, nil)
	}
	m.On("GetThread", mock.Anything, threadID).Return(refs, nil)
	return m
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}

func (m *mockStorage) Download(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type testEnv struct {
	db       *gorm.DB
	repos    *repository.Repositories
	account  *models.MailAccount
	importer interfaces.ThreadImporter
}

func newTestEnv(t *testing.T, storage interfaces.StorageService) *testEnv {
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

	account := &models.MailAccount{
		EmailAddress:   "support@acme.com",
		StaffAddresses: models.StringArray{"agent@acme.com"},
		Active:         true,
	}
	require.NoError(t, db.Create(account).Error)

	repos := repository.InitRepositories(db)
	cfg := &config.SyncConfig{
		FetchConcurrency: 2,
		IgnoredLabels:    []string{"CATEGORY_PROMOTIONS"},
	}
	importer := NewThreadImportService(
		repos,
		email_parser.NewMessageParser(),
		message_filter.NewMessageFilterService(cfg.IgnoredLabels),
		storage,
		cfg,
		logger.NewNopLogger(),
	)
	return &testEnv{db: db, repos: repos, account: account, importer: importer}
}

func rawMessage(id, threadID string, labels []string, lines ...string) *dto.RawMessage {
	payload := strings.Join(lines, "\r\n")
	return &dto.RawMessage{
		ID:           id,
		ThreadID:     threadID,
		LabelIDs:     labels,
		InternalDate: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Raw:          base64.RawURLEncoding.EncodeToString([]byte(payload)),
	}
}

func customerMessage(id, threadID, messageID, date string, references ...string) *dto.RawMessage {
	lines := []string{
		"From: Jane Doe <jane@example.com>",
		"To: support@acme.com",
		"Subject: Cannot log in",
		"Date: " + date,
		"Message-ID: " + messageID,
	}
	if len(references) > 0 {
		lines = append(lines, "References: "+strings.Join(references, " "))
	}
	lines = append(lines, "Content-Type: text/plain; charset=utf-8", "", "I cannot log in.")
	return rawMessage(id, threadID, []string{"INBOX"}, lines...)
}

func staffMessage(id, threadID, messageID, date string, references ...string) *dto.RawMessage {
	return rawMessage(id, threadID, []string{"SENT"},
		"From: Agent <agent@acme.com>",
		"To: jane@example.com",
		"Subject: Re: Cannot log in",
		"Date: "+date,
		"Message-ID: "+messageID,
		"References: "+strings.Join(references, " "),
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Try resetting your password.",
	)
}
