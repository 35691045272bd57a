package storage

import (
	"path"
	"regexp"
	"strings"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/utils"
	"github.com/customeros/inboxsync/services/storage/aws_client"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// NewR2StorageService returns nil when R2 storage is disabled.
func NewR2StorageService(cfg *config.R2StorageConfig) (interfaces.StorageService, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	client, err := aws_client.NewR2Client(cfg.AccountID, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, err
	}
	return NewStorageService(client, cfg.MessageAttachmentBucket), nil
}

// AttachmentKey builds the object key attachments/<conversation slug>/<random>/<file name>.
func AttachmentKey(conversationSlug, fileName, contentType string) string {
	name := sanitizeFileName(fileName)
	if name == "" {
		name = "untitled." + utils.GetFileExtensionFromContentType(contentType)
	}
	return path.Join("attachments", conversationSlug, utils.GenerateNanoID(12), name)
}

func sanitizeFileName(fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	name = unsafeKeyChars.ReplaceAllString(name, "_")
	return utils.TruncateString(strings.Trim(name, "_"), 200)
}
