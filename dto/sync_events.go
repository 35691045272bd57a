package dto

import "time"

// ConversationEmbeddingRequested asks the embedding worker to (re)compute a conversation embedding.
type ConversationEmbeddingRequested struct {
	ConversationID string    `json:"conversationId"`
	RequestedAt    time.Time `json:"requestedAt"`
}

type BackfillRequested struct {
	JobID         string    `json:"jobId"`
	MailAccountID string    `json:"mailAccountId"`
	WindowStart   time.Time `json:"windowStart"`
	WindowEnd     time.Time `json:"windowEnd"`
}

type IncrementalSyncRequested struct {
	JobID         string `json:"jobId"`
	MailAccountID string `json:"mailAccountId"`
}

// GmailPushNotification is the payload Gmail publishes to the watch topic.
type GmailPushNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}
