package thread_import

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/services/storage"
)

// storeAttachments uploads the attachments of a newly written message and records
// them. Failures are logged and never fail the import.
func (s *threadImportService) storeAttachments(ctx context.Context, conversation *models.Conversation, w writtenMessage) {
	if len(w.parsed.Attachments) == 0 {
		return
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "ThreadImportService.storeAttachments")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, w.message.ID)

	for _, attachment := range w.parsed.Attachments {
		record := &models.MessageAttachment{
			MessageID:   w.message.ID,
			FileName:    attachment.FileName,
			ContentType: attachment.ContentType,
			Size:        int64(len(attachment.Content)),
			Inline:      attachment.Inline,
			ContentID:   attachment.ContentID,
		}

		if s.storage != nil {
			key := storage.AttachmentKey(conversation.Slug, attachment.FileName, attachment.ContentType)
			if err := s.storage.Upload(ctx, key, attachment.Content, attachment.ContentType); err != nil {
				tracing.TraceErr(span, err)
				s.log.Errorf("failed to upload attachment %s of message %s: %v", attachment.FileName, w.message.ID, err)
				continue
			}
			record.StorageKey = key
		}

		if err := s.repositories.MessageAttachmentRepository.Create(ctx, record); err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("failed to save attachment %s of message %s: %v", attachment.FileName, w.message.ID, err)
		}
	}
}
