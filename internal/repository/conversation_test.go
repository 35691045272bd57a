package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
)

func TestConversationRepository_CreateForThread(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := InitRepositories(db)
	account := seedAccount(t, db, "support@acme.com")

	first := seedConversation(t, repos, account.ID, "thread-1")
	assert.NotEmpty(t, first.Slug)
	assert.Equal(t, enum.MailProviderGmail, first.Provider)

	found, err := repos.ConversationRepository.GetByThread(ctx, account.ID, "thread-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	missing, err := repos.ConversationRepository.GetByThread(ctx, account.ID, "thread-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConversationRepository_CreateForThread_LosingWriterGetsWinner(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := InitRepositories(db)
	account := seedAccount(t, db, "support@acme.com")

	winner := seedConversation(t, repos, account.ID, "thread-1")

	loser, created, err := repos.ConversationRepository.CreateForThread(ctx, &models.Conversation{
		MailAccountID: account.ID,
		Subject:       "Help",
	}, "thread-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, loser.ID)

	var conversations int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&conversations).Error)
	assert.Equal(t, int64(1), conversations)
}

func TestConversationRepository_RecomputeLastInboundMessageAt(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := InitRepositories(db)
	account := seedAccount(t, db, "support@acme.com")
	conversation := seedConversation(t, repos, account.ID, "thread-1")

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	messages := []*models.Message{
		newMessage(account.ID, conversation.ID, "thread-1", "m1", "<m1@x>", enum.MessageRoleExternal, base),
		newMessage(account.ID, conversation.ID, "thread-1", "m2", "<m2@x>", enum.MessageRoleExternal, base.Add(2*time.Hour)),
		newMessage(account.ID, conversation.ID, "thread-1", "m3", "<m3@x>", enum.MessageRoleStaff, base.Add(5*time.Hour)),
	}
	for _, m := range messages {
		inserted, err := repos.MessageRepository.InsertIgnore(ctx, m)
		require.NoError(t, err)
		require.True(t, inserted)
	}

	lastInbound, err := repos.ConversationRepository.RecomputeLastInboundMessageAt(ctx, conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, lastInbound)
	assert.True(t, base.Add(2*time.Hour).Equal(*lastInbound), "got %s", lastInbound)
}

func TestConversationRepository_RecomputeLastInboundMessageAt_StaffOnly(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := InitRepositories(db)
	account := seedAccount(t, db, "support@acme.com")
	conversation := seedConversation(t, repos, account.ID, "thread-1")

	_, err := repos.MessageRepository.InsertIgnore(ctx, newMessage(account.ID, conversation.ID, "thread-1", "m1", "<m1@x>", enum.MessageRoleStaff, time.Now().UTC()))
	require.NoError(t, err)

	lastInbound, err := repos.ConversationRepository.RecomputeLastInboundMessageAt(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Nil(t, lastInbound)
}

func TestConversationRepository_SetMergedInto(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := InitRepositories(db)
	account := seedAccount(t, db, "support@acme.com")
	a := seedConversation(t, repos, account.ID, "thread-a")
	b := seedConversation(t, repos, account.ID, "thread-b")

	require.NoError(t, repos.ConversationRepository.SetMergedInto(ctx, a.ID, b.ID))

	merged, err := repos.ConversationRepository.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, merged.IsMerged())
	assert.Equal(t, b.ID, *merged.MergedIntoID)
}
