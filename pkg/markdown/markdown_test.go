package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Kind
	}{
		{"paragraph tags", "<p>Hello there</p>", KindHTML},
		{"div with attrs", `<div class="summary">ok</div>`, KindHTML},
		{"heading marker", "# Summary\n\nBody", KindMarkdown},
		{"bullet list", "- first\n- second", KindMarkdown},
		{"numbered list", "1. first\n2. second", KindMarkdown},
		{"bold", "This is **important** news", KindMarkdown},
		{"fenced code", "```\ncode\n```", KindMarkdown},
		{"link", "see [docs](https://example.com)", KindMarkdown},
		{"blockquote", "> quoted line", KindMarkdown},
		{"table", "| a | b |\n| 1 | 2 |", KindMarkdown},
		{"plain", "Just a sentence with numbers 1 and 2.", KindPlain},
		{"plain with asterisk", "a * b equals c", KindPlain},
		{"html wins over markdown", "<p>uses **stars** inside</p>", KindHTML},
		{"empty", "", KindPlain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestToHTMLInlineStaysInline(t *testing.T) {
	out, err := ToHTML("**bold** text")
	require.NoError(t, err)
	assert.Equal(t, "<strong>bold</strong> text", out)
}

func TestToHTMLBlocks(t *testing.T) {
	out, err := ToHTML("# Title\n\n- one\n- two")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<li>one</li>")
	assert.Contains(t, out, "<li>two</li>")
}

func TestToHTMLStripsScripts(t *testing.T) {
	out, err := ToHTML("hello <script>alert(1)</script> world")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestSanitizeKeepsStructureDropsScripts(t *testing.T) {
	out := Sanitize(`<p>ok</p><script>alert(1)</script><a href="javascript:x()">x</a>`)
	assert.Contains(t, out, "<p>ok</p>")
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "javascript:")
}

func TestEscapeToHTML(t *testing.T) {
	out := EscapeToHTML("a < b\nnext & last")
	assert.Equal(t, "a &lt; b<br/>next &amp; last", out)
}

func TestToText(t *testing.T) {
	assert.Equal(t, "Hello world", ToText("<p>Hello <b>world</b></p>"))
	assert.Equal(t, "plain", ToText("plain"))
}
