package email_parser

import (
	"bytes"
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/utils"
)

type parser struct{}

func NewMessageParser() interfaces.MessageParser {
	return &parser{}
}

// Parse decodes a raw provider message into its headers, body and attachments.
// Undecodable payloads and messages without a usable From address fail with
// ErrMalformedMessage.
func (p *parser) Parse(raw *dto.RawMessage) (*dto.ParsedMessage, error) {
	if raw == nil {
		return nil, errors.Wrap(inboxsync_errors.ErrMalformedMessage, "raw message is nil")
	}

	data, err := decodeRaw(raw.Raw)
	if err != nil {
		return nil, errors.Wrapf(inboxsync_errors.ErrMalformedMessage, "message %s: %v", raw.ID, err)
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(inboxsync_errors.ErrMalformedMessage, "message %s: %v", raw.ID, err)
	}

	from, err := parseFrom(env)
	if err != nil {
		return nil, errors.Wrapf(inboxsync_errors.ErrMalformedMessage, "message %s: %v", raw.ID, err)
	}

	parsed := &dto.ParsedMessage{
		ProviderMessageID: raw.ID,
		ProviderThreadID:  raw.ThreadID,
		ExternalMessageID: utils.FormatMessageID(env.GetHeader("Message-ID")),
		FromAddress:       from.Address,
		FromName:          from.Name,
		ToAddresses:       addressList(env, "To"),
		CcAddresses:       addressList(env, "Cc"),
		Subject:           env.GetHeader("Subject"),
		SentAt:            sentAt(env, raw.InternalDate),
		LabelIDs:          raw.LabelIDs,
		Headers:           make(map[string][]string),
	}

	parsed.References = utils.ParseReferences(env.GetHeader("References"))
	parsed.InReplyTo = utils.ParentReference(env.GetHeader("References"))
	if parsed.InReplyTo == "" {
		parsed.InReplyTo = utils.ParentReference(env.GetHeader("In-Reply-To"))
	}

	for _, key := range env.GetHeaderKeys() {
		parsed.Headers[key] = env.GetHeaderValues(key)
	}

	parsed.Body = BodyHTML(env.HTML, env.Text)
	if isThreadStart(raw) {
		parsed.CleanedText = HTMLToText(parsed.Body)
	} else {
		parsed.CleanedText = HTMLToText(StripQuotations(parsed.Body))
	}

	for _, a := range env.Attachments {
		parsed.Attachments = append(parsed.Attachments, toParsedAttachment(a, false))
	}
	for _, a := range env.Inlines {
		parsed.Attachments = append(parsed.Attachments, toParsedAttachment(a, true))
	}

	return parsed, nil
}

// isThreadStart reports whether the message opened its thread; the provider
// reuses the first message id as the thread id.
func isThreadStart(raw *dto.RawMessage) bool {
	return raw.ID != "" && raw.ID == raw.ThreadID
}

func decodeRaw(raw string) ([]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty raw payload")
	}
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "=")
	data, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		// some producers hand out standard base64
		data, err = base64.RawStdEncoding.DecodeString(trimmed)
		if err != nil {
			return nil, errors.Wrap(err, "invalid base64 payload")
		}
	}
	return data, nil
}

func parseFrom(env *enmime.Envelope) (*mail.Address, error) {
	addresses, err := env.AddressList("From")
	if err != nil || len(addresses) == 0 {
		header := strings.TrimSpace(env.GetHeader("From"))
		if header == "" {
			return nil, errors.New("missing From header")
		}
		// bare addresses without angle brackets still count
		addresses = []*mail.Address{{Address: header}}
	}

	validation := mailvalidate.ValidateEmailSyntax(addresses[0].Address)
	if !validation.IsValid {
		return nil, errors.Errorf("invalid From address %q", addresses[0].Address)
	}

	return &mail.Address{Name: addresses[0].Name, Address: validation.CleanEmail}, nil
}

func addressList(env *enmime.Envelope, header string) []string {
	addresses, err := env.AddressList(header)
	if err != nil {
		return nil
	}
	result := make([]string, 0, len(addresses))
	for _, a := range addresses {
		validation := mailvalidate.ValidateEmailSyntax(a.Address)
		if validation.IsValid {
			result = append(result, validation.CleanEmail)
		}
	}
	return result
}

func sentAt(env *enmime.Envelope, internalDate int64) time.Time {
	if header := env.GetHeader("Date"); header != "" {
		if date, err := mail.ParseDate(header); err == nil {
			return date.UTC()
		}
	}
	if internalDate > 0 {
		return time.UnixMilli(internalDate).UTC()
	}
	return utils.Now()
}

func toParsedAttachment(part *enmime.Part, inline bool) dto.ParsedAttachment {
	fileName := part.FileName
	if fileName == "" {
		fileName = "untitled"
	}
	contentType := part.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return dto.ParsedAttachment{
		FileName:    fileName,
		ContentType: contentType,
		ContentID:   part.ContentID,
		Inline:      inline,
		Content:     part.Content,
	}
}
