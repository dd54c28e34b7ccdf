// Package htmldoc models the guide page as an arena-backed HTML document.
//
// Nodes are addressed through NodeRef handles (indices into the document's
// node table) rather than pointers, so collaborators like the search index
// and the fragment loader hold non-owning back-references: the document owns
// every node, and a handle to a node that was later detached stays valid but
// its mutations no longer affect serialized output.
//
// Parsing is delegated to golang.org/x/net/html. Malformed markup yields a
// best-effort tree, never an error: odd input simply produces fewer
// addressable elements.
package htmldoc

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeRef is a non-owning handle to a node in a Document's arena.
// Refs are assigned in registration order and stay valid for the life of
// the document, including for nodes detached after registration.
type NodeRef int

// InvalidRef is the zero-signal handle returned by failed lookups.
const InvalidRef NodeRef = -1

// Valid reports whether the handle refers to a registered node.
func (r NodeRef) Valid() bool {
	return r >= 0
}

// Document is a parsed HTML page with handle-based node access.
// Safe for concurrent use.
type Document struct {
	mu    sync.RWMutex
	nodes []*html.Node
	refs  map[*html.Node]NodeRef
	root  *html.Node
}

// Parse reads and parses an HTML document.
// The only error source is the reader itself; malformed markup is repaired
// by the parser into a best-effort tree.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	doc := &Document{
		refs: make(map[*html.Node]NodeRef),
		root: root,
	}
	doc.registerTree(root)
	return doc, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// registerTree enrolls a subtree into the arena in document order.
// Caller must hold the write lock (or be the constructor).
func (d *Document) registerTree(n *html.Node) {
	if _, ok := d.refs[n]; !ok {
		d.refs[n] = NodeRef(len(d.nodes))
		d.nodes = append(d.nodes, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.registerTree(c)
	}
}

// node resolves a handle to its node, or nil for out-of-range handles.
// Caller must hold at least the read lock.
func (d *Document) node(ref NodeRef) *html.Node {
	if ref < 0 || int(ref) >= len(d.nodes) {
		return nil
	}
	return d.nodes[ref]
}

// ref returns the handle for a node, registering it if needed.
// Caller must hold the write lock.
func (d *Document) ref(n *html.Node) NodeRef {
	if r, ok := d.refs[n]; ok {
		return r
	}
	r := NodeRef(len(d.nodes))
	d.refs[n] = r
	d.nodes = append(d.nodes, n)
	return r
}

// Root returns the handle of the document node.
func (d *Document) Root() NodeRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if r, ok := d.refs[d.root]; ok {
		return r
	}
	return InvalidRef
}

// Body returns the handle of the <body> element, or InvalidRef when the
// tree has none (the parser normally synthesizes one).
func (d *Document) Body() NodeRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := findElement(d.root, "body")
	if n == nil {
		return InvalidRef
	}
	if r, ok := d.refs[n]; ok {
		return r
	}
	return InvalidRef
}

// NodeCount returns the number of registered nodes, detached ones included.
func (d *Document) NodeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}

// IsAttached reports whether the node is still reachable from the
// document root. Detached nodes keep valid handles but no longer
// contribute to serialized output.
func (d *Document) IsAttached(ref NodeRef) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := d.node(ref)
	if n == nil {
		return false
	}
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

// Render serializes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	return nil
}

// HTML returns the serialized document.
func (d *Document) HTML() (string, error) {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderNode serializes the subtree rooted at ref.
func (d *Document) RenderNode(w io.Writer, ref NodeRef) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := d.node(ref)
	if n == nil {
		return fmt.Errorf("unknown node handle %d", ref)
	}
	if err := html.Render(w, n); err != nil {
		return fmt.Errorf("failed to render node: %w", err)
	}
	return nil
}

// NodeHTML returns the serialized subtree rooted at ref.
func (d *Document) NodeHTML(ref NodeRef) (string, error) {
	var sb strings.Builder
	if err := d.RenderNode(&sb, ref); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// findElement returns the first element with the given tag in document order.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// parseFragment parses an HTML snippet in a <div> context, returning the
// top-level nodes. Whitespace-only text nodes at the top level are dropped.
func parseFragment(fragment string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	parsed, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	nodes := make([]*html.Node, 0, len(parsed))
	for _, n := range parsed {
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) == "" {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
