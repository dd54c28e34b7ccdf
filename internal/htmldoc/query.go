package htmldoc

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags are elements that imply a word break in extracted text.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// skipTags are elements whose text content is never user-visible.
var skipTags = map[string]bool{
	"head": true, "noscript": true, "script": true, "style": true,
	"template": true, "title": true,
}

// headingTags in rank order h1..h6.
var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// ByID returns the handle of the element carrying the given id attribute.
func (d *Document) ByID(id string) (NodeRef, bool) {
	if id == "" {
		return InvalidRef, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && attrValue(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return InvalidRef, false
	}
	if r, ok := d.refs[found]; ok {
		return r, true
	}
	return InvalidRef, false
}

// ElementsWithAttr returns, in document order, the handles of all elements
// carrying the named attribute.
func (d *Document) ElementsWithAttr(attr string) []NodeRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []NodeRef
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasAttr(n, attr) {
			if r, ok := d.refs[n]; ok {
				out = append(out, r)
			}
		}
		return true
	})
	return out
}

// IdentifiedElements returns, in document order, the handles of all
// descendants of root that carry a non-empty id attribute. The root itself
// is excluded.
func (d *Document) IdentifiedElements(root NodeRef) []NodeRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	start := d.node(root)
	if start == nil {
		return nil
	}
	var out []NodeRef
	for c := start.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode && attrValue(n, "id") != "" {
				if r, ok := d.refs[n]; ok {
					out = append(out, r)
				}
			}
			return true
		})
	}
	return out
}

// Headings returns, in document order, the handles of all h1-h6 elements
// in the subtree rooted at root (root excluded).
func (d *Document) Headings(root NodeRef) []NodeRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	start := d.node(root)
	if start == nil {
		return nil
	}
	var out []NodeRef
	for c := start.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode && headingTags[n.Data] {
				if r, ok := d.refs[n]; ok {
					out = append(out, r)
				}
			}
			return true
		})
	}
	return out
}

// FirstHeadingText returns the text of the node itself when it is a
// heading, otherwise the text of its first heading descendant, or "".
func (d *Document) FirstHeadingText(ref NodeRef) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := d.node(ref)
	if n == nil {
		return ""
	}
	if n.Type == html.ElementNode && headingTags[n.Data] {
		return extractText(n)
	}
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if c != n && c.Type == html.ElementNode && headingTags[c.Data] {
			found = c
			return false
		}
		return true
	})
	if found == nil {
		return ""
	}
	return extractText(found)
}

// Attr returns the value of the named attribute on the element.
func (d *Document) Attr(ref NodeRef, name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := d.node(ref)
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// ID returns the element's id attribute, or "".
func (d *Document) ID(ref NodeRef) string {
	v, _ := d.Attr(ref, "id")
	return v
}

// TagName returns the element's tag, or "" for non-element nodes.
func (d *Document) TagName(ref NodeRef) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := d.node(ref)
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return n.Data
}

// Text returns the normalized plain text of the subtree rooted at ref.
// Block boundaries become single spaces and whitespace runs are collapsed.
func (d *Document) Text(ref NodeRef) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := d.node(ref)
	if n == nil {
		return ""
	}
	return extractText(n)
}

// walk visits n and its subtree in document order. The visitor returns
// false to stop the walk.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

// attrValue returns the attribute's value, or "".
func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// hasAttr reports whether the element carries the named attribute.
func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

// extractText collects the visible text of a subtree with block-aware
// whitespace: a space at every block-element boundary, then all runs
// collapsed to single spaces.
func extractText(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && skipTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	isBlock := n.Type == html.ElementNode && blockTags[n.Data]
	if isBlock {
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	if isBlock {
		sb.WriteByte(' ')
	}
}
