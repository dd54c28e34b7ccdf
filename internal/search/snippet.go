package search

import (
	"strings"
	"unicode/utf8"
)

// ellipsis marks a snippet edge truncated out of the full content.
const ellipsis = "…"

// snippet derives the excerpt for a matching unit: a window of
// SnippetMin..SnippetMax bytes centered on the earliest keyword occurrence
// in the content, grown outward to word boundaries, with ellipsis markers
// on truncated edges. Content that fits entirely is returned as-is; units
// without body text yield an empty snippet.
func (e *Engine) snippet(unit *indexed, keywords []string) string {
	content := unit.Content
	if content == "" {
		return ""
	}
	if len(content) <= e.opts.SnippetMax {
		return content
	}

	idx, kwLen, found := earliestMatch(unit.lowerContent, keywords)
	if !found {
		// Title-only match: excerpt the head of the body.
		idx, kwLen = 0, 0
	}
	if idx > len(content) {
		idx = len(content)
	}

	start, end := centerWindow(len(content), idx, kwLen, e.opts.SnippetMin)
	start, end = growToBoundaries(content, start, end, e.opts.SnippetMax)

	var sb strings.Builder
	if start > 0 {
		sb.WriteString(ellipsis)
	}
	sb.WriteString(content[start:end])
	if end < len(content) {
		sb.WriteString(ellipsis)
	}
	return sb.String()
}

// earliestMatch returns the position and length of the keyword occurring
// first in the lowered content.
func earliestMatch(lowerContent string, keywords []string) (idx, kwLen int, found bool) {
	idx = -1
	for _, kw := range keywords {
		i := strings.Index(lowerContent, kw)
		if i < 0 {
			continue
		}
		if idx < 0 || i < idx {
			idx, kwLen = i, len(kw)
			found = true
		}
	}
	if !found {
		return 0, 0, false
	}
	return idx, kwLen, true
}

// centerWindow places a window of width bytes around the match, clamped to
// the content and re-anchored at the edges so the full width is kept.
func centerWindow(length, idx, kwLen, width int) (start, end int) {
	center := idx + kwLen/2
	start = center - width/2
	if start < 0 {
		start = 0
	}
	if start > idx {
		start = idx
	}
	end = start + width
	if end > length {
		end = length
		start = end - width
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

// growToBoundaries widens the window outward until both edges sit on word
// boundaries or the max width is spent, then aligns any remaining hard cut
// to a rune boundary.
func growToBoundaries(content string, start, end, max int) (int, int) {
	for start > 0 && content[start-1] != ' ' && end-start < max {
		start--
	}
	for end < len(content) && content[end] != ' ' && end-start < max {
		end++
	}
	for start > 0 && start < len(content) && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}
	return start, end
}
