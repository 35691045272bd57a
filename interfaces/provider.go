package interfaces

import (
	"context"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/internal/models"
)

// MailProvider is the read side of a mail provider API for one account.
// Non-2xx responses surface as *errors.ProviderQueryError.
type MailProvider interface {
	ListThreads(ctx context.Context, query dto.ThreadQuery) (*dto.ThreadPage, error)
	GetThread(ctx context.Context, threadID string) ([]dto.ProviderMessageRef, error)
	GetRawMessage(ctx context.Context, messageID string) (*dto.RawMessage, error)
	ListHistory(ctx context.Context, cursor string) (*dto.HistoryPage, error)
	CurrentCursor(ctx context.Context) (string, error)
}

type MailProviderFactory interface {
	ForAccount(ctx context.Context, account *models.MailAccount) (MailProvider, error)
}
