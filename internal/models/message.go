package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/utils"
)

// Message is immutable once written except for enrichment fields
// (CleanedText, EmbeddingRef) filled by later stages.
type Message struct {
	ID                string      `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MailAccountID     string      `gorm:"column:mail_account_id;type:varchar(50);not null;index;uniqueIndex:idx_messages_account_external;uniqueIndex:idx_messages_account_provider" json:"mailAccountId"`
	ConversationID    string      `gorm:"column:conversation_id;type:varchar(50);not null;index" json:"conversationId"`
	ProviderMessageID string      `gorm:"column:provider_message_id;type:varchar(255);not null;uniqueIndex:idx_messages_account_provider" json:"providerMessageId"`
	ProviderThreadID  string      `gorm:"column:provider_thread_id;type:varchar(255);not null;index" json:"providerThreadId"`
	ExternalMessageID *string     `gorm:"column:external_message_id;type:varchar(998);uniqueIndex:idx_messages_account_external" json:"externalMessageId"`
	InReplyTo         *string     `gorm:"column:in_reply_to;type:varchar(998);index" json:"inReplyTo"`
	References        StringArray `gorm:"column:reference_ids" json:"references"`
	ParentMessageID   *string     `gorm:"column:parent_message_id;type:varchar(50)" json:"parentMessageId"`
	ThreadPosition    int         `gorm:"column:thread_position;not null" json:"threadPosition"`

	Role          enum.MessageRole `gorm:"column:role;type:varchar(20);not null;index" json:"role"`
	SenderAddress string           `gorm:"column:sender_address;type:varchar(255);index" json:"senderAddress"`
	SenderName    string           `gorm:"column:sender_name;type:varchar(255)" json:"senderName"`
	ToAddresses   StringArray      `gorm:"column:to_addresses" json:"toAddresses"`
	CcAddresses   StringArray      `gorm:"column:cc_addresses" json:"ccAddresses"`
	Subject       string           `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	Body          string           `gorm:"column:body;type:text" json:"body"`
	CleanedText   string           `gorm:"column:cleaned_text;type:text" json:"cleanedText"`
	Labels        StringArray      `gorm:"column:labels" json:"labels"`

	Classification       enum.MessageClassification `gorm:"column:classification;type:varchar(50);index" json:"classification"`
	ClassificationReason string                     `gorm:"column:classification_reason;type:text" json:"classificationReason"`
	EmbeddingRef         *string                    `gorm:"column:embedding_ref;type:varchar(255)" json:"embeddingRef"`
	HasAttachments       bool                       `gorm:"column:has_attachments" json:"hasAttachments"`

	// CreatedAt is the message timestamp from its Date header, not the insert time.
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamp;index;autoCreateTime:false" json:"createdAt"`
	ImportedAt time.Time `gorm:"column:imported_at;type:timestamp;autoCreateTime" json:"importedAt"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("msg", 20)
	}
	return nil
}

type MessageAttachment struct {
	ID          string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MessageID   string    `gorm:"column:message_id;type:varchar(50);not null;index" json:"messageId"`
	FileName    string    `gorm:"column:file_name;type:varchar(500)" json:"fileName"`
	ContentType string    `gorm:"column:content_type;type:varchar(255)" json:"contentType"`
	Size        int64     `gorm:"column:size" json:"size"`
	Inline      bool      `gorm:"column:inline" json:"inline"`
	ContentID   string    `gorm:"column:content_id;type:varchar(255)" json:"contentId"`
	StorageKey  string    `gorm:"column:storage_key;type:varchar(1000)" json:"storageKey"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
}

func (MessageAttachment) TableName() string {
	return "message_attachments"
}

func (a *MessageAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("att", 16)
	}
	return nil
}

// DanglingReference records an In-Reply-To whose parent is not stored for the account.
type DanglingReference struct {
	ID                  string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MailAccountID       string    `gorm:"column:mail_account_id;type:varchar(50);not null;uniqueIndex:idx_dangling_references_key" json:"mailAccountId"`
	ReferencedMessageID string    `gorm:"column:referenced_message_id;type:varchar(998);not null;uniqueIndex:idx_dangling_references_key" json:"referencedMessageId"`
	ReferencedBy        string    `gorm:"column:referenced_by;type:varchar(50);not null;uniqueIndex:idx_dangling_references_key" json:"referencedBy"`
	ConversationID      string    `gorm:"column:conversation_id;type:varchar(50);index" json:"conversationId"`
	CreatedAt           time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
}

func (DanglingReference) TableName() string {
	return "dangling_references"
}

func (d *DanglingReference) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = utils.GenerateNanoIDWithPrefix("dref", 16)
	}
	return nil
}
