package interfaces

import (
	"context"
	"time"

	"github.com/customeros/inboxsync/internal/models"
)

type MailAccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.MailAccount, error)
	GetByEmailAddress(ctx context.Context, emailAddress string) (*models.MailAccount, error)
	ListActive(ctx context.Context) ([]*models.MailAccount, error)
	Save(ctx context.Context, account *models.MailAccount) error
	SyncCursorStore
}

// SyncCursorStore persists the incremental sync position of a mail account.
type SyncCursorStore interface {
	GetCursor(ctx context.Context, mailAccountID string) (string, error)
	SaveCursor(ctx context.Context, mailAccountID, cursor string) error
}

type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetByThread(ctx context.Context, mailAccountID, providerThreadID string) (*models.Conversation, error)
	// CreateForThread creates the conversation and its thread mapping atomically.
	// created is false when another writer mapped the thread first; the winner is returned.
	CreateForThread(ctx context.Context, conversation *models.Conversation, providerThreadID string) (result *models.Conversation, created bool, err error)
	SetMergedInto(ctx context.Context, id, mergedIntoID string) error
	RecomputeLastInboundMessageAt(ctx context.Context, conversationID string) (*time.Time, error)
}

type MessageRepository interface {
	// InsertIgnore returns false when a message with the same identity already exists.
	InsertIgnore(ctx context.Context, message *models.Message) (bool, error)
	GetByExternalMessageIDs(ctx context.Context, mailAccountID string, externalIDs []string) (map[string]string, error)
	ExistingThreadIDs(ctx context.Context, mailAccountID string, threadIDs []string) (map[string]bool, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
}

type MessageAttachmentRepository interface {
	Create(ctx context.Context, attachment *models.MessageAttachment) error
	ListByMessage(ctx context.Context, messageID string) ([]*models.MessageAttachment, error)
}

type DanglingReferenceRepository interface {
	Record(ctx context.Context, ref *models.DanglingReference) error
	ListByReferencedMessageID(ctx context.Context, mailAccountID, referencedMessageID string) ([]*models.DanglingReference, error)
	Resolve(ctx context.Context, mailAccountID, referencedMessageID, parentID string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
