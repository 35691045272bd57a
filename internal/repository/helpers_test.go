package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// each sqlite in-memory connection is its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, email string) *models.MailAccount {
	t.Helper()
	account := &models.MailAccount{EmailAddress: email, Active: true}
	require.NoError(t, db.Create(account).Error)
	return account
}

func seedConversation(t *testing.T, repos *Repositories, accountID, threadID string) *models.Conversation {
	t.Helper()
	conversation, created, err := repos.ConversationRepository.CreateForThread(context.Background(), &models.Conversation{
		MailAccountID: accountID,
		Subject:       "Help",
		Status:        enum.ConversationStatusOpen,
	}, threadID)
	require.NoError(t, err)
	require.True(t, created)
	return conversation
}

func newMessage(accountID, conversationID, threadID, providerID, externalID string, role enum.MessageRole, at time.Time) *models.Message {
	return &models.Message{
		MailAccountID:     accountID,
		ConversationID:    conversationID,
		ProviderThreadID:  threadID,
		ProviderMessageID: providerID,
		ExternalMessageID: utils.StringPtrOrNil(externalID),
		Role:              role,
		SenderAddress:     "someone@example.com",
		CreatedAt:         at,
	}
}
