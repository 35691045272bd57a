package email_parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var (
	trailingBreaks = regexp.MustCompile(`(?i)(<br\s*/?>)+$`)
	blankLines     = regexp.MustCompile(`\n\s*\n+`)
	replyHeader    = regexp.MustCompile(`(?m)^\s*On .{1,200}wrote:\s*$`)
)

// quotedSelectors match the reply history blocks mail clients append below a reply.
var quotedSelectors = strings.Join([]string{
	"blockquote",
	".gmail_quote",
	".gmail_extra",
	".yahoo_quoted",
	".moz-cite-prefix",
	"#appendonsend",
	"#divRplyFwdMsg",
	"div[id^='mail-editor-reference-message-container']",
}, ", ")

// BodyHTML picks the HTML body when present, otherwise wraps the plain text body.
// The result is the inner HTML of <body>, without trailing line breaks, NFKD normalized.
func BodyHTML(htmlBody, textBody string) string {
	content := htmlBody
	if strings.TrimSpace(content) == "" {
		if strings.TrimSpace(textBody) == "" {
			return ""
		}
		content = html.EscapeString(textBody)
		content = strings.ReplaceAll(content, "\r\n", "<br/>")
		content = strings.ReplaceAll(content, "\n", "<br/>")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err == nil {
		if inner, err := doc.Find("body").Html(); err == nil {
			content = inner
		}
	}

	content = trailingBreaks.ReplaceAllString(strings.TrimSpace(content), "")
	return norm.NFKD.String(content)
}

// StripQuotations removes quoted reply history, keeping the new part of a reply.
func StripQuotations(body string) string {
	if body == "" {
		return body
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}

	doc.Find(quotedSelectors).Remove()
	// plain text replies keep the history inline after an attribution line
	doc.Find("body").Contents().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) != "#text" || !replyHeader.MatchString(s.Text()) {
			return true
		}
		// NextAll skips text nodes, the quoted lines are mostly text
		node := s.Get(0)
		for sibling := node.NextSibling; sibling != nil; {
			next := sibling.NextSibling
			node.Parent.RemoveChild(sibling)
			sibling = next
		}
		s.Remove()
		return false
	})

	inner, err := doc.Find("body").Html()
	if err != nil {
		return body
	}
	return inner
}

// HTMLToText renders an HTML fragment as plain text with line breaks preserved.
func HTMLToText(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
		s.AppendHtml("\n")
	})

	text := doc.Find("body").Text()
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
