package thread_import

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

// writtenMessage is a message inserted by this import, with the parsed data
// still needed for attachments.
type writtenMessage struct {
	message *models.Message
	parsed  parsedMessage
}

// writeMessages inserts the parsed messages in provider order. Messages already
// stored for the account are skipped. Parents are linked when known; unknown
// parents are recorded as dangling references and linked once they arrive.
func (s *threadImportService) writeMessages(ctx context.Context, account *models.MailAccount, conversation *models.Conversation, parsed []parsedMessage) ([]writtenMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ThreadImportService.writeMessages")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, account.ID)
	tracing.TagEntity(span, conversation.ID)

	lookup := make([]string, 0, len(parsed)*2)
	for _, p := range parsed {
		if p.ExternalMessageID != "" {
			lookup = append(lookup, p.ExternalMessageID)
		}
		if p.InReplyTo != "" {
			lookup = append(lookup, p.InReplyTo)
		}
	}
	known, err := s.repositories.MessageRepository.GetByExternalMessageIDs(ctx, account.ID, lookup)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "look up known message ids")
	}

	var written []writtenMessage
	for _, p := range parsed {
		message := s.toMessage(account, conversation, p)
		if parentID, ok := known[p.InReplyTo]; ok && p.InReplyTo != "" {
			message.ParentMessageID = utils.ToPtr(parentID)
		}

		inserted, err := s.repositories.MessageRepository.InsertIgnore(ctx, message)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, errors.Wrapf(err, "insert message %s", p.ProviderMessageID)
		}
		if !inserted {
			continue
		}
		if p.ExternalMessageID != "" {
			known[p.ExternalMessageID] = message.ID
		}

		if p.InReplyTo != "" && message.ParentMessageID == nil {
			err = s.repositories.DanglingReferenceRepository.Record(ctx, &models.DanglingReference{
				MailAccountID:       account.ID,
				ReferencedMessageID: p.InReplyTo,
				ReferencedBy:        message.ID,
				ConversationID:      conversation.ID,
			})
			if err != nil {
				tracing.TraceErr(span, err)
				return nil, errors.Wrapf(err, "record dangling reference of message %s", message.ID)
			}
		}
		if p.ExternalMessageID != "" {
			linked, err := s.repositories.DanglingReferenceRepository.Resolve(ctx, account.ID, p.ExternalMessageID, message.ID)
			if err != nil {
				tracing.TraceErr(span, err)
				return nil, errors.Wrapf(err, "resolve references to message %s", message.ID)
			}
			if linked > 0 {
				s.log.Debugf("linked %d earlier replies to message %s", linked, message.ID)
			}
		}

		written = append(written, writtenMessage{message: message, parsed: p})
	}

	span.SetTag("written", len(written))
	return written, nil
}

func (s *threadImportService) toMessage(account *models.MailAccount, conversation *models.Conversation, p parsedMessage) *models.Message {
	role := enum.MessageRoleExternal
	if account.IsStaffAddress(p.FromAddress) {
		role = enum.MessageRoleStaff
	}
	classification := p.Classification
	if classification == "" {
		classification = enum.MessageOK
	}

	return &models.Message{
		MailAccountID:        account.ID,
		ConversationID:       conversation.ID,
		ProviderMessageID:    p.ProviderMessageID,
		ProviderThreadID:     p.ProviderThreadID,
		ExternalMessageID:    utils.StringPtrOrNil(p.ExternalMessageID),
		InReplyTo:            utils.StringPtrOrNil(p.InReplyTo),
		References:           p.References,
		ThreadPosition:       p.position,
		Role:                 role,
		SenderAddress:        p.FromAddress,
		SenderName:           p.FromName,
		ToAddresses:          p.ToAddresses,
		CcAddresses:          p.CcAddresses,
		Subject:              utils.TruncateString(p.Subject, maxSubjectChars),
		Body:                 p.Body,
		CleanedText:          p.CleanedText,
		Labels:               p.LabelIDs,
		Classification:       classification,
		ClassificationReason: p.ClassificationReason,
		HasAttachments:       len(p.Attachments) > 0,
		CreatedAt:            p.SentAt.UTC(),
	}
}
