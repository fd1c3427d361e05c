package markdown

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"

	"hermes/pkg/errors"
)

// Kind is the structural classification of a piece of generated text.
type Kind string

const (
	KindHTML     Kind = "html"
	KindMarkdown Kind = "markdown"
	KindPlain    Kind = "plain"
)

var (
	htmlTagRe = regexp.MustCompile(`(?i)</?(p|div|span|br|hr|h[1-6]|ul|ol|li|table|thead|tbody|tr|td|th|a|strong|em|b|i|u|img|blockquote|pre|code)\b[^>]*>`)

	markdownRes = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^#{1,6}\s+\S`),          // headings
		regexp.MustCompile(`(?m)^\s*[-*+]\s+\S`),        // bullet lists
		regexp.MustCompile(`(?m)^\s*\d+\.\s+\S`),        // numbered lists
		regexp.MustCompile(`\*\*[^*\n]+\*\*`),           // bold
		regexp.MustCompile(`(?m)^>\s+\S`),               // blockquote
		regexp.MustCompile("(?s)```.+```"),              // fenced code
		regexp.MustCompile(`\[[^\]\n]+\]\([^)\s]+\)`),   // links
		regexp.MustCompile("`[^`\n]+`"),                 // inline code
		regexp.MustCompile(`(?m)^(-{3,}|\*{3,})\s*$`),   // horizontal rule
		regexp.MustCompile(`(?m)^\|.+\|\s*$`),           // tables
	}
)

// Classify inspects text structure, never the producing provider.
// HTML markup wins over Markdown markers since generated HTML frequently
// contains Markdown-looking fragments inside tags.
func Classify(text string) Kind {
	if htmlTagRe.MatchString(text) {
		return KindHTML
	}
	for _, re := range markdownRes {
		if re.MatchString(text) {
			return KindMarkdown
		}
	}
	return KindPlain
}

var policy = bluemonday.UGCPolicy()

// ToHTML renders Markdown to sanitized HTML. A single paragraph of inline
// content is unwrapped so short responses stay inline when written to
// record fields.
func ToHTML(text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(errors.ErrInternal, "markdown conversion panic: %v", r)
		}
	}()

	rendered := blackfriday.Run([]byte(text),
		blackfriday.WithExtensions(blackfriday.CommonExtensions))

	out = strings.TrimSpace(policy.Sanitize(string(rendered)))
	out = unwrapSingleParagraph(out)
	return out, nil
}

// Sanitize strips disallowed markup from already-HTML content.
func Sanitize(htmlText string) string {
	return strings.TrimSpace(policy.Sanitize(htmlText))
}

var strictPolicy = bluemonday.StrictPolicy()

// ToText strips all markup, leaving plain text. Used when HTML content
// must be embedded into a text prompt.
func ToText(htmlText string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(htmlText)))
}

// EscapeToHTML converts plain text to HTML, preserving line breaks.
func EscapeToHTML(text string) string {
	escaped := html.EscapeString(text)
	return strings.ReplaceAll(escaped, "\n", "<br/>")
}

func unwrapSingleParagraph(s string) string {
	if !strings.HasPrefix(s, "<p>") || !strings.HasSuffix(s, "</p>") {
		return s
	}
	inner := s[len("<p>") : len(s)-len("</p>")]
	// A second paragraph or any block element means this is not inline content.
	if strings.Contains(inner, "<p>") || strings.Contains(inner, "</p>") {
		return s
	}
	return inner
}
