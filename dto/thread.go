package dto

import (
	"time"

	"github.com/customeros/inboxsync/internal/enum"
)

type ThreadRef struct {
	ID        string `json:"id"`
	HistoryID uint64 `json:"historyId,omitempty"`
}

type ThreadQuery struct {
	Query            string
	MaxResults       int64
	IncludeSpamTrash bool
}

type ThreadPage struct {
	Threads       []ThreadRef
	NextPageToken string
}

// ProviderMessageRef identifies a message inside a provider thread.
type ProviderMessageRef struct {
	ID       string
	ThreadID string
	LabelIDs []string
}

// RawMessage is a message as returned by the provider in raw format.
type RawMessage struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	InternalDate int64
	// Raw is the base64url encoded RFC 5322 message.
	Raw string
}

// HistoryPage is the result of reading the provider change feed from a cursor.
type HistoryPage struct {
	Changes []HistoryChange
	Cursor  string
}

type HistoryChange struct {
	MessageID string
	ThreadID  string
	LabelIDs  []string
}

type ParsedAttachment struct {
	FileName    string
	ContentType string
	ContentID   string
	Inline      bool
	Content     []byte
}

type ParsedMessage struct {
	ProviderMessageID string
	ProviderThreadID  string
	ExternalMessageID string
	InReplyTo         string
	References        []string
	FromAddress       string
	FromName          string
	ToAddresses       []string
	CcAddresses       []string
	Subject           string
	SentAt            time.Time
	// Body is HTML; plain text bodies are wrapped.
	Body        string
	CleanedText string
	LabelIDs    []string
	Headers     map[string][]string
	Attachments []ParsedAttachment

	Classification       enum.MessageClassification
	ClassificationReason string
}

type ImportOptions struct {
	ForcedStatus *enum.ConversationStatus
}

type ThreadImportResult struct {
	ThreadID             string     `json:"threadId"`
	ConversationID       string     `json:"conversationId"`
	ConversationSlug     string     `json:"conversationSlug"`
	LastInboundMessageAt *time.Time `json:"lastInboundMessageAt"`
	MessagesWritten      int        `json:"messagesWritten"`
	ConversationCreated  bool       `json:"conversationCreated"`
}
