package message_filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/internal/enum"
)

var ignored = []string{"CATEGORY_PROMOTIONS", "CATEGORY_UPDATES", "CATEGORY_FORUMS", "CATEGORY_SOCIAL"}

func classify(message *dto.ParsedMessage) *dto.ParsedMessage {
	NewMessageFilterService(ignored).Classify(context.Background(), message)
	return message
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		message  *dto.ParsedMessage
		expected enum.MessageClassification
	}{
		{
			name:     "regular customer message",
			message:  &dto.ParsedMessage{FromAddress: "jane@example.com", Subject: "Cannot log in", Headers: map[string][]string{"Return-Path": {"<jane@example.com>"}}},
			expected: enum.MessageOK,
		},
		{
			name:     "bounce by failed recipients header",
			message:  &dto.ParsedMessage{FromAddress: "postmaster@example.com", Headers: map[string][]string{"X-Failed-Recipients": {"x@y.com"}}},
			expected: enum.MessageBounceNotification,
		},
		{
			name:     "bounce by sender",
			message:  &dto.ParsedMessage{FromAddress: "mailer-daemon@googlemail.com", Subject: "hello"},
			expected: enum.MessageBounceNotification,
		},
		{
			name:     "bounce by subject",
			message:  &dto.ParsedMessage{FromAddress: "jane@example.com", Subject: "Undeliverable: your message"},
			expected: enum.MessageBounceNotification,
		},
		{
			name:     "auto submitted",
			message:  &dto.ParsedMessage{FromAddress: "jane@example.com", Headers: map[string][]string{"auto-submitted": {"auto-replied"}}},
			expected: enum.MessageAutoResponder,
		},
		{
			name:     "out of office subject",
			message:  &dto.ParsedMessage{FromAddress: "jane@example.com", Subject: "Automatic reply: Cannot log in"},
			expected: enum.MessageAutoResponder,
		},
		{
			name:     "ignored category",
			message:  &dto.ParsedMessage{FromAddress: "news@example.com", LabelIDs: []string{"INBOX", "CATEGORY_PROMOTIONS"}},
			expected: enum.MessageIgnoredCategory,
		},
		{
			name:     "list unsubscribe",
			message:  &dto.ParsedMessage{FromAddress: "jane@example.com", Headers: map[string][]string{"List-Unsubscribe": {"<mailto:u@example.com>"}}},
			expected: enum.MessageBulk,
		},
		{
			name:     "reply-to differs from sender",
			message:  &dto.ParsedMessage{FromAddress: "jane@example.com", Headers: map[string][]string{"Reply-To": {"Sales <sales@example.org>"}}},
			expected: enum.MessageBulk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message := classify(tt.message)
			assert.Equal(t, tt.expected, message.Classification)
			if tt.expected != enum.MessageOK {
				assert.NotEmpty(t, message.ClassificationReason)
			}
		})
	}
}

func TestExtractAddress(t *testing.T) {
	assert.Equal(t, "sales@example.org", extractAddress("Sales <Sales@Example.org>"))
	assert.Equal(t, "a@b.com", extractAddress(" a@b.com "))
	assert.Equal(t, "", extractAddress(""))
}
