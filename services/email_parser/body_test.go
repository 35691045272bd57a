package email_parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBodyHTML(t *testing.T) {
	assert.Equal(t, "<p>Hello</p>", BodyHTML("<html><head><title>x</title></head><body><p>Hello</p><br><br/></body></html>", "ignored"))
	assert.Equal(t, "a &lt;b&gt;<br/>c", BodyHTML("", "a <b>\r\nc\r\n"))
	assert.Equal(t, "", BodyHTML("", "  "))
	// compatibility ligature decomposes under NFKD
	assert.Equal(t, "file", BodyHTML("", "ﬁle"))
}

func TestStripQuotations_PlainTextAttribution(t *testing.T) {
	body := BodyHTML("", "New answer\r\nOn Mon, Jan 1, 2024 at 9:00 AM Support <help@acme.com> wrote:\r\n> old text")
	assert.Equal(t, "New answer", HTMLToText(StripQuotations(body)))
}

func TestStripQuotations_RemovesEveryLineAfterAttribution(t *testing.T) {
	body := BodyHTML("", "Thanks, that fixed it\nOn Tue, Feb 6, 2024 Help <help@acme.com> wrote:\n> first quoted\n> second quoted\n>\n> third quoted")

	stripped := StripQuotations(body)

	assert.Equal(t, "Thanks, that fixed it", HTMLToText(stripped))
	assert.NotContains(t, stripped, "quoted")
}

func TestStripQuotations_HTMLQuoteBlocks(t *testing.T) {
	body := `<div>See below</div><div class="gmail_quote">On Mon wrote:<blockquote>old</blockquote></div>`
	assert.Equal(t, "See below", HTMLToText(StripQuotations(body)))
}

func TestStripQuotations_NoHistory(t *testing.T) {
	assert.Equal(t, "Just a question", HTMLToText(StripQuotations("Just a question")))
	assert.Equal(t, "", StripQuotations(""))
}

func TestHTMLToText_BlockElementsBreakLines(t *testing.T) {
	assert.Equal(t, "Hi\nFirst\n\nSecond", HTMLToText("Hi<p>First</p><p>Second</p>"))
	assert.Equal(t, "Title\n\nOne\n\nTwo", HTMLToText("<h1>Title</h1><ul><li>One</li><li>Two</li></ul>"))
}

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "Line 1\nLine 2\n\nPara", HTMLToText("Line 1<br/>Line 2<p></p><p>Para</p><script>x()</script>"))
	assert.Equal(t, "", HTMLToText(""))
}
