package htmldoc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// SetAttr sets (or overwrites) an attribute on the element.
// Unknown handles and non-element nodes are ignored.
func (d *Document) SetAttr(ref NodeRef, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.node(ref)
	if n == nil || n.Type != html.ElementNode {
		return
	}
	setAttr(n, name, value)
}

// RemoveAttr removes an attribute from the element if present.
func (d *Document) RemoveAttr(ref NodeRef, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.node(ref)
	if n == nil || n.Type != html.ElementNode {
		return
	}
	removeAttr(n, name)
}

// AddClass adds a class token to the element, preserving existing tokens.
// Adding a token already present is a no-op.
func (d *Document) AddClass(ref NodeRef, class string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.node(ref)
	if n == nil || n.Type != html.ElementNode {
		return
	}
	tokens := strings.Fields(attrValue(n, "class"))
	for _, tok := range tokens {
		if tok == class {
			return
		}
	}
	setAttr(n, "class", strings.Join(append(tokens, class), " "))
}

// RemoveClass removes a class token from the element. Removing the last
// token drops the class attribute entirely.
func (d *Document) RemoveClass(ref NodeRef, class string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.node(ref)
	if n == nil || n.Type != html.ElementNode {
		return
	}
	tokens := strings.Fields(attrValue(n, "class"))
	kept := tokens[:0]
	for _, tok := range tokens {
		if tok != class {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		removeAttr(n, "class")
		return
	}
	setAttr(n, "class", strings.Join(kept, " "))
}

// ReplaceChildrenHTML replaces the node's children with a parsed HTML
// fragment.
//
// When the fragment has exactly one element root, that container is
// unwrapped: its attributes are merged onto the owner (attribute names in
// excludeAttrs are skipped) and its children become the owner's children.
// Any other root shape is inserted raw, children only, and reported with
// merged=false so callers can flag the degraded path.
//
// Mutating a detached node succeeds but has no effect on serialized output.
func (d *Document) ReplaceChildrenHTML(ref NodeRef, fragment string, excludeAttrs ...string) (merged bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.node(ref)
	if n == nil {
		return false, fmt.Errorf("unknown node handle %d", ref)
	}

	roots, err := parseFragment(fragment)
	if err != nil {
		return false, err
	}

	excluded := make(map[string]bool, len(excludeAttrs))
	for _, a := range excludeAttrs {
		excluded[a] = true
	}

	if len(roots) == 1 && roots[0].Type == html.ElementNode {
		container := roots[0]
		for _, a := range container.Attr {
			if !excluded[a.Key] {
				setAttr(n, a.Key, a.Val)
			}
		}
		removeChildren(n)
		for c := container.FirstChild; c != nil; {
			next := c.NextSibling
			container.RemoveChild(c)
			n.AppendChild(c)
			d.registerTree(c)
			c = next
		}
		return true, nil
	}

	removeChildren(n)
	for _, root := range roots {
		n.AppendChild(root)
		d.registerTree(root)
	}
	return false, nil
}

// AppendHTML parses an HTML snippet and appends its top-level nodes as
// children of the given node.
func (d *Document) AppendHTML(ref NodeRef, fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.node(ref)
	if n == nil {
		return fmt.Errorf("unknown node handle %d", ref)
	}
	roots, err := parseFragment(fragment)
	if err != nil {
		return err
	}
	for _, root := range roots {
		n.AppendChild(root)
		d.registerTree(root)
	}
	return nil
}

// Detach removes the node from its parent. The node and its subtree stay
// registered in the arena, so existing handles remain valid; they simply
// stop contributing to serialized output.
func (d *Document) Detach(ref NodeRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.node(ref)
	if n == nil || n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// setAttr updates or appends an attribute on a node.
func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// removeAttr drops an attribute from a node if present.
func removeAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != name {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

// removeChildren detaches every child of n. The children stay in the
// arena for any handles already pointing at them.
func removeChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}
