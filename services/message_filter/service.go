package message_filter

import (
	"context"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

type messageFilterService struct {
	ignoredLabels []string
}

// NewMessageFilterService classifies messages; ignoredLabels are provider
// categories (promotions, social, ...) that mark a message as ignored.
func NewMessageFilterService(ignoredLabels []string) interfaces.MessageClassifier {
	return &messageFilterService{ignoredLabels: ignoredLabels}
}

func (s *messageFilterService) Classify(ctx context.Context, message *dto.ParsedMessage) {
	span, _ := opentracing.StartSpanFromContext(ctx, "messageFilterService.Classify")
	defer span.Finish()
	tracing.TagComponentService(span)

	classification, reason := s.classify(message)
	message.Classification = classification
	message.ClassificationReason = reason
	span.SetTag("classification", string(classification))
}

func (s *messageFilterService) classify(message *dto.ParsedMessage) (enum.MessageClassification, string) {
	headers := extractHeaders(message.Headers)
	from := strings.ToLower(message.FromAddress)

	if ok, reason := s.isBounceNotification(headers, message.Subject, from); ok {
		return enum.MessageBounceNotification, reason
	}
	if ok, reason := s.isAutoresponder(headers, message.Subject); ok {
		return enum.MessageAutoResponder, reason
	}
	if ok, reason := s.isIgnoredCategory(message.LabelIDs); ok {
		return enum.MessageIgnoredCategory, reason
	}
	if ok, reason := s.isBulkEmail(headers, from); ok {
		return enum.MessageBulk, reason
	}
	return enum.MessageOK, ""
}

func (s *messageFilterService) isIgnoredCategory(labels []string) (bool, string) {
	for _, label := range labels {
		if utils.IsStringInSlice(label, s.ignoredLabels) {
			return true, "LABEL " + label
		}
	}
	return false, ""
}

func (s *messageFilterService) isBulkEmail(headers *messageHeaders, from string) (bool, string) {
	if headers.ForwardedFor == "" {
		switch {
		case headers.ReplyToExists && headers.ReplyTo != "" && headers.ReplyTo != from:
			return true, "REPLY-TO != FROM"
		case headers.ReturnPathExists && headers.ReturnPath == "":
			return true, "RETURN-PATH header is empty"
		}
	}

	switch {
	case headers.ListUnsubscribe:
		return true, "UNSUBSCRIBE header present"
	case strings.EqualFold(headers.Precedence, "bulk") || strings.EqualFold(headers.Precedence, "list"):
		return true, "PRECEDENCE: BULK header present"
	case headers.Sender != "" && headers.Sender != from:
		return true, "SENDER != FROM"
	default:
		return s.mailsherpaChecks(from)
	}
}

func (s *messageFilterService) mailsherpaChecks(from string) (bool, string) {
	if from == "" {
		return true, "FROM is empty"
	}
	syntaxValidation := mailvalidate.ValidateEmailSyntax(from)
	if syntaxValidation.IsSystemGenerated {
		return true, "FROM is system generated"
	}
	return false, ""
}

func (s *messageFilterService) isAutoresponder(headers *messageHeaders, subject string) (bool, string) {
	switch {
	case headers.XAutoreply != "":
		return true, "X-AUTOREPLY header present"
	case headers.XAutoresponse != "":
		return true, "X-AUTORESPONSE header present"
	case headers.XLoop:
		return true, "X-LOOP header present"
	case strings.EqualFold(headers.Precedence, "auto_reply"):
		return true, "PRECEDENCE: AUTO_REPLY header present"
	case headers.AutoSubmitted:
		return true, "AUTO-SUBMITTED header present"
	case isAutoReplySubject(subject):
		return true, "SUBJECT contains auto-reply keywords"
	default:
		return false, ""
	}
}

func (s *messageFilterService) isBounceNotification(headers *messageHeaders, subject, from string) (bool, string) {
	switch {
	case len(headers.XFailedRecipients) > 0:
		return true, "X-FAILED-RECIPIENTS header present"
	case strings.EqualFold(headers.ContentDescription, "delivery report"):
		return true, "CONTENT-DESCRIPTION: DELIVERY REPORT header present"
	case hasBounceKeywords(headers.ReturnPath) && headers.ReturnPathExists:
		return true, "RETURN-PATH contains bounce keywords"
	case hasBounceKeywords(from):
		return true, "FROM contains bounce keywords"
	case isBounceSubject(subject):
		return true, "SUBJECT contains bounce keywords"
	default:
		return false, ""
	}
}

func hasBounceKeywords(str string) bool {
	return strings.Contains(strings.ToLower(str), "mailer-daemon")
}

func isBounceSubject(subject string) bool {
	subject = strings.ToLower(subject)
	keywords := []string{
		"mail delivery failure",
		"undelivered mail returned to sender",
		"delivery status notification",
		"undeliverable",
		"undelivered",
		"delivery failure",
		"failure notice",
		"returned mail",
		"returned to sender",
	}
	for _, phrase := range keywords {
		if strings.Contains(subject, phrase) {
			return true
		}
	}
	return false
}

func isAutoReplySubject(subject string) bool {
	subject = strings.ToLower(subject)
	for _, prefix := range []string{"automatic reply:", "auto-reply:", "autoreply:", "out of office:"} {
		if strings.HasPrefix(subject, prefix) {
			return true
		}
	}
	return false
}
