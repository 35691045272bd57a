package message_filter

import (
	"net/textproto"
	"strings"
)

// messageHeaders holds the header signals used for classification.
type messageHeaders struct {
	AutoSubmitted      bool
	ContentDescription string
	ListUnsubscribe    bool
	Precedence         string
	ReturnPath         string
	ReturnPathExists   bool
	XAutoreply         string
	XAutoresponse      string
	XLoop              bool
	XFailedRecipients  []string
	ReplyTo            string
	ReplyToExists      bool
	Sender             string
	ForwardedFor       string
}

func extractHeaders(raw map[string][]string) *messageHeaders {
	canonical := make(map[string][]string, len(raw))
	for k, v := range raw {
		canonical[textproto.CanonicalMIMEHeaderKey(k)] = v
	}

	get := func(key string) string {
		if values := canonical[key]; len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
		return ""
	}
	exists := func(key string) bool {
		_, ok := canonical[key]
		return ok
	}

	headers := &messageHeaders{
		ContentDescription: get("Content-Description"),
		ListUnsubscribe:    exists("List-Unsubscribe"),
		Precedence:         get("Precedence"),
		ReturnPath:         strings.Trim(get("Return-Path"), "<>"),
		ReturnPathExists:   exists("Return-Path"),
		XAutoreply:         get("X-Autoreply"),
		XAutoresponse:      get("X-Autoresponse"),
		XLoop:              exists("X-Loop"),
		XFailedRecipients:  canonical["X-Failed-Recipients"],
		ReplyTo:            extractAddress(get("Reply-To")),
		ReplyToExists:      exists("Reply-To"),
		Sender:             extractAddress(get("Sender")),
		ForwardedFor:       get("X-Forwarded-For"),
	}

	autoSubmitted := strings.ToLower(get("Auto-Submitted"))
	headers.AutoSubmitted = autoSubmitted != "" && autoSubmitted != "no"

	return headers
}

// extractAddress returns the bare address of a "Name <address>" header value.
func extractAddress(value string) string {
	if start := strings.LastIndex(value, "<"); start >= 0 {
		if end := strings.Index(value[start:], ">"); end > 0 {
			return strings.ToLower(strings.TrimSpace(value[start+1 : start+end]))
		}
	}
	return strings.ToLower(strings.TrimSpace(value))
}
