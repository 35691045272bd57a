package mail_sync

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/internal/enum"
)

func closedImport(opts dto.ImportOptions) bool {
	return opts.ForcedStatus != nil && *opts.ForcedStatus == enum.ConversationStatusClosed
}

func TestRunBackfill_ImportsOnlyNewThreads(t *testing.T) {
	env := newTestEnv(t, nil)
	env.storeThread(t, "t3")

	env.provider.On("ListThreads", mock.Anything, dto.ThreadQuery{Query: "after:1672531200 before:1673049600", MaxResults: 500}).
		Return(&dto.ThreadPage{Threads: threadRefs("t1", "t2", "t3", "t4", "t5", "t6", "t7")}, nil)
	for _, id := range []string{"t1", "t2", "t4", "t5", "t6", "t7"} {
		env.importer.On("ImportThread", mock.Anything, mock.Anything, mock.Anything, dto.ThreadRef{ID: id}, mock.MatchedBy(closedImport)).
			Return(&dto.ThreadImportResult{ThreadID: id, ConversationID: "conv-" + id, MessagesWritten: 2}, nil)
	}

	result, err := env.service.RunBackfill(context.Background(), env.account.ID, day(2023, 1, 1), day(2023, 1, 6))
	require.NoError(t, err)

	require.Len(t, result.Windows, 1)
	window := result.Windows[0]
	assert.Equal(t, day(2023, 1, 1), window.WindowStart)
	assert.Equal(t, day(2023, 1, 7), window.WindowEnd)
	assert.Equal(t, 7, window.ThreadsListed)
	assert.Equal(t, 6, window.ThreadsNew)
	assert.Equal(t, 6, window.Imported)
	assert.False(t, result.Truncated)
	assert.Nil(t, result.NextWindowStart)

	env.importer.AssertNumberOfCalls(t, "ImportThread", 6)
	env.importer.AssertNotCalled(t, "ImportThread", mock.Anything, mock.Anything, mock.Anything, dto.ThreadRef{ID: "t3"}, mock.Anything)
	env.scheduler.AssertNumberOfCalls(t, "ScheduleEmbedding", 6)
	env.scheduler.AssertCalled(t, "ScheduleEmbedding", mock.Anything, "conv-t7")
}

func TestRunBackfill_OneQueryPerWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.On("ListThreads", mock.Anything, mock.Anything).Return(&dto.ThreadPage{}, nil)

	result, err := env.service.RunBackfill(context.Background(), env.account.ID, day(2023, 1, 1), day(2023, 1, 22))
	require.NoError(t, err)

	require.Len(t, result.Windows, 4)
	env.provider.AssertNumberOfCalls(t, "ListThreads", 4)
	assert.Equal(t, day(2023, 1, 22), result.Windows[3].WindowStart)
	assert.Equal(t, day(2023, 1, 23), result.Windows[3].WindowEnd)
}

func TestRunBackfill_ThreadFailureDoesNotStopWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.On("ListThreads", mock.Anything, mock.Anything).
		Return(&dto.ThreadPage{Threads: threadRefs("t1", "t2", "t3")}, nil)
	env.importer.imports("t1", "t3")
	env.importer.On("ImportThread", mock.Anything, mock.Anything, mock.Anything, dto.ThreadRef{ID: "t2"}, mock.Anything).
		Return(nil, errors.New("database unavailable"))

	result, err := env.service.RunBackfill(context.Background(), env.account.ID, day(2023, 1, 1), day(2023, 1, 1))
	require.NoError(t, err)

	imported, skipped, failed := result.Totals()
	assert.Equal(t, 2, imported)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 1, failed)
	env.scheduler.AssertNumberOfCalls(t, "ScheduleEmbedding", 2)
}

func TestRunBackfill_EmptyThreadsAreSkippedWithoutEmbedding(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.On("ListThreads", mock.Anything, mock.Anything).
		Return(&dto.ThreadPage{Threads: threadRefs("t1", "t2")}, nil)
	env.importer.On("ImportThread", mock.Anything, mock.Anything, mock.Anything, dto.ThreadRef{ID: "t1"}, mock.Anything).
		Return(nil, nil)
	env.importer.On("ImportThread", mock.Anything, mock.Anything, mock.Anything, dto.ThreadRef{ID: "t2"}, mock.Anything).
		Return(&dto.ThreadImportResult{ThreadID: "t2", ConversationID: "conv-t2"}, nil)

	result, err := env.service.RunBackfill(context.Background(), env.account.ID, day(2023, 1, 1), day(2023, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Windows[0].Skipped)
	assert.Equal(t, 1, result.Windows[0].Imported)
	env.scheduler.AssertNotCalled(t, "ScheduleEmbedding", mock.Anything, mock.Anything)
}

func TestRunBackfill_EmbeddingFailureIsNotAnError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.scheduler = new(mockScheduler)
	env.scheduler.On("ScheduleEmbedding", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	env.service = NewMailSyncService(env.repos, &staticProviderFactory{provider: env.provider}, env.importer, env.scheduler,
		&config.SyncConfig{BackfillConcurrency: 1}, env.service.(*mailSyncService).log)

	env.provider.On("ListThreads", mock.Anything, mock.Anything).Return(&dto.ThreadPage{Threads: threadRefs("t1")}, nil)
	env.importer.imports("t1")

	result, err := env.service.RunBackfill(context.Background(), env.account.ID, day(2023, 1, 1), day(2023, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Windows[0].Imported)
	env.scheduler.AssertNumberOfCalls(t, "ScheduleEmbedding", 1)
}

func TestRunBackfill_ListingErrorAborts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.On("ListThreads", mock.Anything, mock.Anything).
		Return(&dto.ThreadPage{Threads: threadRefs("t1")}, nil).Once()
	env.provider.On("ListThreads", mock.Anything, mock.Anything).
		Return(nil, inboxsync_errors.NewProviderQueryError("threads.list", 429, errors.New("rate limited")))
	env.importer.imports("t1")

	result, err := env.service.RunBackfill(context.Background(), env.account.ID, day(2023, 1, 1), day(2023, 1, 22))
	require.Error(t, err)
	assert.True(t, inboxsync_errors.IsProviderQueryError(err))
	require.NotNil(t, result)
	assert.Len(t, result.Windows, 1)
	env.provider.AssertNumberOfCalls(t, "ListThreads", 2)
}

func TestRunBackfill_TruncatedPlan(t *testing.T) {
	env := newTestEnv(t, &config.SyncConfig{MaxWindows: 2})
	env.provider.On("ListThreads", mock.Anything, mock.Anything).Return(&dto.ThreadPage{}, nil)

	result, err := env.service.RunBackfill(context.Background(), env.account.ID, day(2023, 1, 1), day(2023, 1, 31))
	require.NoError(t, err)

	assert.Len(t, result.Windows, 2)
	assert.True(t, result.Truncated)
	require.NotNil(t, result.NextWindowStart)
	assert.Equal(t, day(2023, 1, 15), *result.NextWindowStart)
}

func TestRunBackfill_PageTruncationIsReported(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provider.On("ListThreads", mock.Anything, mock.Anything).
		Return(&dto.ThreadPage{Threads: threadRefs("t1"), NextPageToken: "next"}, nil)
	env.importer.imports("t1")

	result, err := env.service.RunBackfill(context.Background(), env.account.ID, day(2023, 1, 1), day(2023, 1, 1))
	require.NoError(t, err)
	assert.True(t, result.Windows[0].PageTruncated)
	env.provider.AssertNumberOfCalls(t, "ListThreads", 1)
}

func TestRunBackfill_CancelledContext(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.service.RunBackfill(ctx, env.account.ID, day(2023, 1, 1), day(2023, 1, 22))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	env.provider.AssertNotCalled(t, "ListThreads", mock.Anything, mock.Anything)
}

func TestRunBackfill_UnknownAccount(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.service.RunBackfill(context.Background(), "missing", day(2023, 1, 1), day(2023, 1, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, inboxsync_errors.ErrMailAccountNotFound))
}

func TestWindowQuery(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "after:1672531200 before:1673136000", WindowQuery(start, start.Add(7*24*time.Hour)))
}
