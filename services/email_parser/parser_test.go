package email_parser

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
)

func rawMessage(id, threadID string, lines ...string) *dto.RawMessage {
	payload := strings.Join(lines, "\r\n")
	return &dto.RawMessage{
		ID:           id,
		ThreadID:     threadID,
		LabelIDs:     []string{"INBOX"},
		InternalDate: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Raw:          base64.RawURLEncoding.EncodeToString([]byte(payload)),
	}
}

func TestParse_PlainTextMessage(t *testing.T) {
	raw := rawMessage("t1", "t1",
		"From: Jane Doe <jane@example.com>",
		"To: support@acme.com",
		"Cc: Bob <bob@example.com>",
		"Subject: Cannot log in",
		"Date: Mon, 15 Jan 2024 10:30:00 +0000",
		"Message-ID: <m1@example.com>",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Hi,\r\nI cannot log in.\r\n",
	)

	parsed, err := NewMessageParser().Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", parsed.FromAddress)
	assert.Equal(t, "Jane Doe", parsed.FromName)
	assert.Equal(t, []string{"support@acme.com"}, parsed.ToAddresses)
	assert.Equal(t, []string{"bob@example.com"}, parsed.CcAddresses)
	assert.Equal(t, "Cannot log in", parsed.Subject)
	assert.Equal(t, "<m1@example.com>", parsed.ExternalMessageID)
	assert.Empty(t, parsed.InReplyTo)
	assert.Empty(t, parsed.References)
	assert.True(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).Equal(parsed.SentAt))
	assert.Equal(t, "Hi,<br/>I cannot log in.", parsed.Body)
	assert.Equal(t, "Hi,\nI cannot log in.", parsed.CleanedText)
	assert.Equal(t, []string{"INBOX"}, parsed.LabelIDs)
}

func TestParse_ReplyReferences(t *testing.T) {
	raw := rawMessage("m3", "t1",
		"From: jane@example.com",
		"Subject: Re: Cannot log in",
		"Date: Mon, 15 Jan 2024 12:00:00 +0000",
		"Message-ID: <m3@example.com>",
		"In-Reply-To: <other@example.com>",
		"References: <m1@example.com> <m2@example.com>",
		"Content-Type: text/plain",
		"",
		"Still broken.",
	)

	parsed, err := NewMessageParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"<m1@example.com>", "<m2@example.com>"}, parsed.References)
	// the References chain wins over In-Reply-To
	assert.Equal(t, "<m2@example.com>", parsed.InReplyTo)
}

func TestParse_RepeatedReferenceIsParent(t *testing.T) {
	raw := rawMessage("m4", "t1",
		"From: jane@example.com",
		"Message-ID: <m4@example.com>",
		"References: <m1@example.com> <m2@example.com> <m1@example.com>",
		"",
		"replying to the first one again",
	)

	parsed, err := NewMessageParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "<m1@example.com>", parsed.InReplyTo)
	assert.Equal(t, []string{"<m1@example.com>", "<m2@example.com>"}, parsed.References)
}

func TestParse_InReplyToFallback(t *testing.T) {
	raw := rawMessage("m2", "t1",
		"From: jane@example.com",
		"Message-ID: <m2@example.com>",
		"In-Reply-To: <m1@example.com>",
		"",
		"ok",
	)

	parsed, err := NewMessageParser().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "<m1@example.com>", parsed.InReplyTo)
}

func TestParse_MissingDateUsesInternalDate(t *testing.T) {
	raw := rawMessage("t1", "t1",
		"From: jane@example.com",
		"Subject: hello",
		"",
		"body",
	)

	parsed, err := NewMessageParser().Parse(raw)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC).Equal(parsed.SentAt))
	assert.Empty(t, parsed.ExternalMessageID)
}

func TestParse_HTMLReplyStripsQuotation(t *testing.T) {
	raw := rawMessage("m2", "t1",
		"From: jane@example.com",
		"Subject: Re: hello",
		"Content-Type: text/html; charset=utf-8",
		"",
		`<html><body><div>Thanks, that worked!</div><div class="gmail_quote"><div class="gmail_attr">On Mon, Jan 15, 2024 Support wrote:</div><blockquote>Try again</blockquote></div><br><br></body></html>`,
	)

	parsed, err := NewMessageParser().Parse(raw)
	require.NoError(t, err)
	assert.Contains(t, parsed.Body, "gmail_quote")
	assert.False(t, strings.HasSuffix(parsed.Body, "<br/>"))
	assert.Equal(t, "Thanks, that worked!", parsed.CleanedText)
}

func TestParse_FirstMessageKeepsQuotation(t *testing.T) {
	raw := rawMessage("t1", "t1",
		"From: jane@example.com",
		"Content-Type: text/html",
		"",
		`<div>Forwarding this</div><blockquote>Original text</blockquote>`,
	)

	parsed, err := NewMessageParser().Parse(raw)
	require.NoError(t, err)
	assert.Contains(t, parsed.CleanedText, "Original text")
}

func TestParse_Attachments(t *testing.T) {
	raw := rawMessage("t1", "t1",
		"From: jane@example.com",
		"Subject: logs",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain",
		"",
		"see attached",
		"--b1",
		`Content-Type: text/plain; name="log.txt"`,
		`Content-Disposition: attachment; filename="log.txt"`,
		"",
		"line one",
		"--b1--",
	)

	parsed, err := NewMessageParser().Parse(raw)
	require.NoError(t, err)
	require.Len(t, parsed.Attachments, 1)
	assert.Equal(t, "log.txt", parsed.Attachments[0].FileName)
	assert.False(t, parsed.Attachments[0].Inline)
	assert.Contains(t, string(parsed.Attachments[0].Content), "line one")
	assert.Equal(t, "see attached", parsed.CleanedText)
}

func TestParse_Malformed(t *testing.T) {
	parser := NewMessageParser()

	_, err := parser.Parse(&dto.RawMessage{ID: "m1", ThreadID: "t1", Raw: "%%%not base64%%%"})
	assert.True(t, errors.Is(err, inboxsync_errors.ErrMalformedMessage))

	_, err = parser.Parse(rawMessage("m1", "t1", "Subject: no sender", "", "body"))
	assert.True(t, errors.Is(err, inboxsync_errors.ErrMalformedMessage))

	_, err = parser.Parse(rawMessage("m1", "t1", "From: not an address", "", "body"))
	assert.True(t, errors.Is(err, inboxsync_errors.ErrMalformedMessage))

	_, err = parser.Parse(nil)
	assert.True(t, errors.Is(err, inboxsync_errors.ErrMalformedMessage))
}

func TestDecodeRaw_Padding(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte("From: a@b.com\r\n\r\nx"))
	data, err := decodeRaw(padded)
	require.NoError(t, err)
	assert.Equal(t, "From: a@b.com\r\n\r\nx", string(data))
}
