package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/utils"
)

type Conversation struct {
	ID                   string                  `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Slug                 string                  `gorm:"column:slug;type:varchar(50);uniqueIndex;not null" json:"slug"`
	MailAccountID        string                  `gorm:"column:mail_account_id;type:varchar(50);index;not null" json:"mailAccountId"`
	Subject              string                  `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	CounterpartyAddress  string                  `gorm:"column:counterparty_address;type:varchar(255);index" json:"counterpartyAddress"`
	CounterpartyName     string                  `gorm:"column:counterparty_name;type:varchar(255)" json:"counterpartyName"`
	Status               enum.ConversationStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	MergedIntoID         *string                 `gorm:"column:merged_into_id;type:varchar(50);index" json:"mergedIntoId"`
	Provider             enum.MailProvider       `gorm:"column:provider;type:varchar(50);not null" json:"provider"`
	LastInboundMessageAt *time.Time              `gorm:"column:last_inbound_message_at;type:timestamp" json:"lastInboundMessageAt"`
	CreatedAt            time.Time               `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt            time.Time               `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = utils.GenerateNanoIDWithPrefix("conv", 16)
	}
	if c.Slug == "" {
		c.Slug = utils.GenerateSlug()
	}
	return nil
}

func (c *Conversation) IsMerged() bool {
	return c.MergedIntoID != nil && *c.MergedIntoID != ""
}

// ConversationThread maps a provider thread to the conversation created for it.
// A thread is mapped at most once per mail account.
type ConversationThread struct {
	ID               string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MailAccountID    string    `gorm:"column:mail_account_id;type:varchar(50);not null;uniqueIndex:idx_conversation_threads_account_thread" json:"mailAccountId"`
	ProviderThreadID string    `gorm:"column:provider_thread_id;type:varchar(255);not null;uniqueIndex:idx_conversation_threads_account_thread" json:"providerThreadId"`
	ConversationID   string    `gorm:"column:conversation_id;type:varchar(50);index;not null" json:"conversationId"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
}

func (ConversationThread) TableName() string {
	return "conversation_threads"
}

func (t *ConversationThread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = utils.GenerateNanoIDWithPrefix("cthr", 16)
	}
	return nil
}
