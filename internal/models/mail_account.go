package models

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/utils"
)

// MailAccount is a connected support mailbox. OAuth tokens are maintained by
// the account connection flow; the sync pipeline only reads them.
type MailAccount struct {
	ID             string            `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	EmailAddress   string            `gorm:"column:email_address;type:varchar(255);uniqueIndex;not null" json:"emailAddress"`
	DisplayName    string            `gorm:"column:display_name;type:varchar(255)" json:"displayName"`
	Provider       enum.MailProvider `gorm:"column:provider;type:varchar(50);not null" json:"provider"`
	AccessToken    string            `gorm:"column:access_token;type:text" json:"-"`
	RefreshToken   string            `gorm:"column:refresh_token;type:text" json:"-"`
	TokenExpiry    *time.Time        `gorm:"column:token_expiry;type:timestamp" json:"-"`
	StaffAddresses StringArray       `gorm:"column:staff_addresses" json:"staffAddresses"`
	SyncCursor     string            `gorm:"column:sync_cursor;type:varchar(100)" json:"syncCursor"`
	LastSyncedAt   *time.Time        `gorm:"column:last_synced_at;type:timestamp" json:"lastSyncedAt"`
	Active         bool              `gorm:"column:active;not null;index" json:"active"`
	CreatedAt      time.Time         `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (MailAccount) TableName() string {
	return "mail_accounts"
}

func (m *MailAccount) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("macc", 16)
	}
	if m.Provider == "" {
		m.Provider = enum.MailProviderGmail
	}
	return nil
}

// IsStaffAddress reports whether mail from address was sent by the support team.
func (m *MailAccount) IsStaffAddress(address string) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return false
	}
	if strings.EqualFold(address, m.EmailAddress) {
		return true
	}
	return utils.IsStringInSliceFold(address, m.StaffAddresses)
}
