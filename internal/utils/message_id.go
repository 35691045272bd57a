package utils

import (
	"strings"
)

// NormalizeMessageID strips whitespace and angle brackets.
func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return strings.TrimSpace(messageID)
}

// FormatMessageID returns the id in its header form, e.g. "<abc@host>".
// Empty input stays empty.
func FormatMessageID(messageID string) string {
	normalized := NormalizeMessageID(messageID)
	if normalized == "" {
		return ""
	}
	return "<" + normalized + ">"
}

// ParseReferences splits a References (or In-Reply-To) header into
// bracketed message ids, keeping header order and dropping duplicates.
func ParseReferences(header string) []string {
	tokens := referenceTokens(header)

	seen := make(map[string]struct{}, len(tokens))
	references := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		references = append(references, token)
	}
	return references
}

// ParentReference returns the immediate parent of a message: the last id of
// the header as written, repeats included.
func ParentReference(header string) string {
	tokens := referenceTokens(header)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

func referenceTokens(header string) []string {
	header = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(header)

	var tokens []string
	for _, field := range strings.Fields(header) {
		// "<a@x><b@y>" without whitespace
		for _, part := range strings.SplitAfter(field, ">") {
			if id := FormatMessageID(part); id != "" {
				tokens = append(tokens, id)
			}
		}
	}
	return tokens
}
