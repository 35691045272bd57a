package interfaces

import (
	"context"
	"time"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/internal/models"
)

type MessageParser interface {
	Parse(raw *dto.RawMessage) (*dto.ParsedMessage, error)
}

type MessageClassifier interface {
	Classify(ctx context.Context, message *dto.ParsedMessage)
}

type ThreadImporter interface {
	ImportThread(ctx context.Context, account *models.MailAccount, provider MailProvider, ref dto.ThreadRef, opts dto.ImportOptions) (*dto.ThreadImportResult, error)
}

type SyncService interface {
	RunBackfill(ctx context.Context, mailAccountID string, windowStart, windowEnd time.Time) (*dto.BackfillResult, error)
	RunIncrementalSync(ctx context.Context, mailAccountID string) (*dto.IncrementalSyncResult, error)
}
