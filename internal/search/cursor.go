package search

import (
	"sync"
	"time"

	"github.com/dubedition/guidecore/internal/htmldoc"
)

// DefaultHighlightClass is added to a committed result's node.
const DefaultHighlightClass = "search-highlight"

// DefaultHighlightFor is how long a committed highlight stays applied.
const DefaultHighlightFor = 2 * time.Second

// Target is what a committed result points at: the unit's id for anchor
// navigation and its node handle for scroll-into-view.
type Target struct {
	ID  string
	Ref htmldoc.NodeRef
}

// Cursor tracks the single currently-highlighted result over a result
// list. Next and Prev wrap around; Commit marks the current result's node
// with a transient highlight class that is removed after a fixed delay.
// Safe for concurrent use.
type Cursor struct {
	doc            *htmldoc.Document
	highlightClass string
	highlightFor   time.Duration

	mu      sync.Mutex
	results []Result
	pos     int
	started bool

	timer       *time.Timer
	highlighted htmldoc.NodeRef
}

// CursorOption adjusts cursor behavior.
type CursorOption func(*Cursor)

// WithHighlightClass overrides the class applied to committed nodes.
func WithHighlightClass(class string) CursorOption {
	return func(c *Cursor) {
		if class != "" {
			c.highlightClass = class
		}
	}
}

// WithHighlightFor overrides how long a committed highlight lasts.
func WithHighlightFor(d time.Duration) CursorOption {
	return func(c *Cursor) {
		if d > 0 {
			c.highlightFor = d
		}
	}
}

// NewCursor creates a cursor over the document with an empty result list.
func NewCursor(doc *htmldoc.Document, opts ...CursorOption) *Cursor {
	c := &Cursor{
		doc:            doc,
		highlightClass: DefaultHighlightClass,
		highlightFor:   DefaultHighlightFor,
		highlighted:    htmldoc.InvalidRef,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetResults installs a new result list and rewinds the cursor, clearing
// any highlight still applied from the previous list.
func (c *Cursor) SetResults(results []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearHighlightLocked()
	c.results = results
	c.pos = 0
	c.started = false
}

// Len returns the size of the current result list.
func (c *Cursor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Current returns the result under the cursor without moving it.
// Before any Next/Prev call the cursor rests on the first result.
func (c *Cursor) Current() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) == 0 {
		return Result{}, false
	}
	return c.results[c.pos], true
}

// Next moves the cursor forward, wrapping past the last result to the
// first. The very first call settles on the first result.
func (c *Cursor) Next() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) == 0 {
		return Result{}, false
	}
	if !c.started {
		c.started = true
		return c.results[c.pos], true
	}
	c.pos = (c.pos + 1) % len(c.results)
	return c.results[c.pos], true
}

// Prev moves the cursor backward, wrapping past the first result to the
// last. The very first call settles on the last result.
func (c *Cursor) Prev() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) == 0 {
		return Result{}, false
	}
	if !c.started {
		c.started = true
		c.pos = len(c.results) - 1
		return c.results[c.pos], true
	}
	c.pos = (c.pos - 1 + len(c.results)) % len(c.results)
	return c.results[c.pos], true
}

// Commit resolves the current result into a navigation target and applies
// the transient highlight to its node. The highlight is removed after the
// configured delay, or immediately when a newer commit supersedes it.
func (c *Cursor) Commit() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) == 0 {
		return Target{}, false
	}
	c.started = true
	unit := c.results[c.pos].Unit

	c.clearHighlightLocked()
	if unit.Ref.Valid() {
		c.doc.AddClass(unit.Ref, c.highlightClass)
		c.highlighted = unit.Ref
		ref := unit.Ref
		c.timer = time.AfterFunc(c.highlightFor, func() {
			c.expireHighlight(ref)
		})
	}
	return Target{ID: unit.ID, Ref: unit.Ref}, true
}

// Close cancels any pending highlight removal and clears the applied
// highlight. Call when tearing the engine down.
func (c *Cursor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearHighlightLocked()
}

// expireHighlight removes the highlight when its timer fires, unless a
// newer commit has already replaced it.
func (c *Cursor) expireHighlight(ref htmldoc.NodeRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.highlighted != ref {
		return
	}
	c.doc.RemoveClass(ref, c.highlightClass)
	c.highlighted = htmldoc.InvalidRef
	c.timer = nil
}

// clearHighlightLocked stops the pending timer and strips the current
// highlight. Caller holds c.mu.
func (c *Cursor) clearHighlightLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.highlighted.Valid() {
		c.doc.RemoveClass(c.highlighted, c.highlightClass)
		c.highlighted = htmldoc.InvalidRef
	}
}
