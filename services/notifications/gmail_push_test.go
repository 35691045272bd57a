package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
)

type stubAccounts map[string]*models.MailAccount

func (s stubAccounts) GetByEmailAddress(_ context.Context, emailAddress string) (*models.MailAccount, error) {
	return s[emailAddress], nil
}

type mockSyncService struct {
	mock.Mock
}

func (m *mockSyncService) RunBackfill(ctx context.Context, mailAccountID string, windowStart, windowEnd time.Time) (*dto.BackfillResult, error) {
	args := m.Called(ctx, mailAccountID, windowStart, windowEnd)
	result, _ := args.Get(0).(*dto.BackfillResult)
	return result, args.Error(1)
}

func (m *mockSyncService) RunIncrementalSync(ctx context.Context, mailAccountID string) (*dto.IncrementalSyncResult, error) {
	args := m.Called(ctx, mailAccountID)
	result, _ := args.Get(0).(*dto.IncrementalSyncResult)
	return result, args.Error(1)
}

func newTestListener(syncService *mockSyncService) *GmailPushListener {
	accounts := stubAccounts{
		"support@acme.com": {ID: "macc1", EmailAddress: "support@acme.com", Active: true},
		"old@acme.com":     {ID: "macc2", EmailAddress: "old@acme.com", Active: false},
	}
	return newGmailPushListener(accounts, syncService, logger.NewNopLogger())
}

func TestHandleNotification_RunsIncrementalSync(t *testing.T) {
	syncService := new(mockSyncService)
	syncService.On("RunIncrementalSync", mock.Anything, "macc1").Return(&dto.IncrementalSyncResult{}, nil).Once()
	listener := newTestListener(syncService)

	require.NoError(t, listener.HandleNotification(context.Background(), []byte(`{"emailAddress":"support@acme.com","historyId":1200}`)))
	// same history id again is a duplicate delivery
	require.NoError(t, listener.HandleNotification(context.Background(), []byte(`{"emailAddress":"support@acme.com","historyId":1200}`)))

	syncService.AssertNumberOfCalls(t, "RunIncrementalSync", 1)
}

func TestHandleNotification_IgnoresUnknownAndInactiveMailboxes(t *testing.T) {
	syncService := new(mockSyncService)
	listener := newTestListener(syncService)

	require.NoError(t, listener.HandleNotification(context.Background(), []byte(`{"emailAddress":"nobody@acme.com","historyId":1}`)))
	require.NoError(t, listener.HandleNotification(context.Background(), []byte(`{"emailAddress":"old@acme.com","historyId":1}`)))
	require.NoError(t, listener.HandleNotification(context.Background(), []byte(`not json`)))

	syncService.AssertNotCalled(t, "RunIncrementalSync", mock.Anything, mock.Anything)
}

func TestHandleNotification_FailedSyncIsRedelivered(t *testing.T) {
	syncService := new(mockSyncService)
	syncService.On("RunIncrementalSync", mock.Anything, "macc1").
		Return(&dto.IncrementalSyncResult{Failed: 1}, errors.Wrap(inboxsync_errors.ErrIncompleteSync, "1 of 2 threads not imported")).Once()
	syncService.On("RunIncrementalSync", mock.Anything, "macc1").Return(&dto.IncrementalSyncResult{}, nil).Once()
	listener := newTestListener(syncService)

	err := listener.HandleNotification(context.Background(), []byte(`{"emailAddress":"support@acme.com","historyId":7}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, inboxsync_errors.ErrIncompleteSync))

	// the redelivered notification is not treated as a duplicate
	require.NoError(t, listener.HandleNotification(context.Background(), []byte(`{"emailAddress":"support@acme.com","historyId":7}`)))
	syncService.AssertNumberOfCalls(t, "RunIncrementalSync", 2)
}

func TestMarkHistoryID(t *testing.T) {
	listener := newTestListener(new(mockSyncService))

	assert.True(t, listener.markHistoryID("macc1", 10))
	assert.False(t, listener.markHistoryID("macc1", 9))
	assert.False(t, listener.markHistoryID("macc1", 10))
	assert.True(t, listener.markHistoryID("macc1", 11))
	assert.True(t, listener.markHistoryID("macc2", 1))
}
