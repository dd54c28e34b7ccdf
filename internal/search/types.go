// Package search builds an in-memory index over a guide document's
// addressable content and answers free-text queries with ranked, snippeted
// results. Rebuilds replace the index wholesale; queries are memoized per
// build generation.
package search

import (
	"fmt"

	"github.com/dubedition/guidecore/internal/htmldoc"
)

// Unit is one indexed piece of page content.
type Unit struct {
	// ID is the element id of the source node, unique within one build.
	ID string `json:"id"`

	// Title is the nearest heading text, or empty.
	Title string `json:"title"`

	// Content is the unit's plain text. Empty for jump-to-heading units.
	Content string `json:"content,omitempty"`

	// Ref is a non-owning back-reference to the source node, used for
	// scroll-into-view and highlighting. The index never mutates it.
	Ref htmldoc.NodeRef `json:"-"`

	// Kind distinguishes content sections from jump-to headings.
	Kind UnitKind `json:"kind"`
}

// UnitKind classifies an indexed unit.
type UnitKind int

const (
	// KindSection is an identified element indexed with its full text.
	KindSection UnitKind = iota
	// KindHeading is an identified heading indexed for jump-to navigation.
	KindHeading
)

// String returns a human-readable kind name.
func (k UnitKind) String() string {
	switch k {
	case KindSection:
		return "section"
	case KindHeading:
		return "heading"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler for JSON output.
func (k UnitKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Result pairs a unit with its computed relevance and snippet. Ephemeral:
// recomputed (or served from the memo cache) per query.
type Result struct {
	Unit    Unit   `json:"unit"`
	Score   int    `json:"score"`
	Snippet string `json:"snippet,omitempty"`
}

// State is the user-visible outcome category of a query. An empty query
// and a query with no matches both carry zero results but are distinct
// states and must never be conflated.
type State int

const (
	// StatePrompt means the query was empty: invite the user to type.
	StatePrompt State = iota
	// StateResults means at least one unit matched.
	StateResults
	// StateNoResults means a non-empty query matched nothing.
	StateNoResults
)

// String returns a stable state name for logs and JSON.
func (s State) String() string {
	switch s {
	case StatePrompt:
		return "prompt"
	case StateResults:
		return "results"
	case StateNoResults:
		return "no_results"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler for JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is a query's complete answer: the state, the echoed query, and
// the ranked results.
type Outcome struct {
	State   State    `json:"state"`
	Query   string   `json:"query"`
	Results []Result `json:"results"`

	// Total counts every matching unit, including those trimmed by the
	// result cap.
	Total int `json:"total"`
}

// Message returns the user-facing text for the outcome's state.
func (o Outcome) Message() string {
	switch o.State {
	case StatePrompt:
		return "Type to search"
	case StateNoResults:
		return fmt.Sprintf("No results for %q", o.Query)
	default:
		return ""
	}
}
