package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/models"
)

type Repositories struct {
	MailAccountRepository       interfaces.MailAccountRepository
	ConversationRepository      interfaces.ConversationRepository
	MessageRepository           interfaces.MessageRepository
	MessageAttachmentRepository interfaces.MessageAttachmentRepository
	DanglingReferenceRepository interfaces.DanglingReferenceRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		MailAccountRepository:       NewMailAccountRepository(db),
		ConversationRepository:      NewConversationRepository(db),
		MessageRepository:           NewMessageRepository(db),
		MessageAttachmentRepository: NewMessageAttachmentRepository(db),
		DanglingReferenceRepository: NewDanglingReferenceRepository(db),
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.MailAccount{},
		&models.Conversation{},
		&models.ConversationThread{},
		&models.Message{},
		&models.MessageAttachment{},
		&models.DanglingReference{},
	)
}

// MigrateDB runs the schema migration on a narrowed pool, then restores the configured pool limits.
func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = AutoMigrate(db)

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
