package fragment

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/dubedition/guidecore/internal/errors"
)

// markdownRenderer converts Markdown fragment bodies to HTML. Heading IDs
// are auto-generated so rendered sections participate in search indexing
// like hand-written HTML fragments.
var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

// isMarkdownSource reports whether the source path names a Markdown file.
func isMarkdownSource(source string) bool {
	s := strings.ToLower(source)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.HasSuffix(s, ".md") || strings.HasSuffix(s, ".markdown")
}

// renderMarkdown converts a Markdown body to HTML.
func renderMarkdown(body string) (string, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(body), &buf); err != nil {
		return "", errors.New(errors.ErrCodeRenderFailed,
			"markdown conversion failed", err)
	}
	return buf.String(), nil
}
