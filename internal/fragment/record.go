// Package fragment loads externally-sourced HTML fragments into placeholder
// nodes of a guide document.
//
// Placeholders are elements carrying a content-source attribute (default
// data-content-src). Each enrolled placeholder is tracked as a record with a
// Pending → Loading → {Loaded | Failed} state machine; Failed records may be
// retried back through Loading. Concurrent loads of the same resolved source
// share a single fetch, and batch operations isolate per-record failures.
package fragment

import (
	"time"

	"github.com/dubedition/guidecore/internal/htmldoc"
)

// State is a record's position in the load state machine.
type State int

const (
	// StatePending marks a discovered placeholder not yet loading.
	StatePending State = iota
	// StateLoading marks a record with a fetch in flight.
	StateLoading
	// StateLoaded marks a record whose content was inserted. Terminal:
	// a Loaded record never returns to Pending.
	StateLoaded
	// StateFailed marks a failed load. Retry moves it back to Loading.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// record is one enrolled placeholder. Guarded by the loader's mutex.
type record struct {
	id       string
	source   string // raw content-source attribute value
	resolved string // resolved fetch target
	owner    htmldoc.NodeRef
	slot     int // document-order position at enrollment
	state    State
	lastErr  error
	loadedAt time.Time
}

// Info is a read-only snapshot of a record for callers outside the loader.
type Info struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Resolved  string `json:"resolved"`
	State     string `json:"state"`
	Slot      int    `json:"slot"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// BatchResult summarizes a LoadAll/ForceLoadAll pass. Per-record failures
// are collected here, never propagated as an error of the batch itself.
type BatchResult struct {
	Loaded  int               `json:"loaded"`
	Failed  int               `json:"failed"`
	Skipped int               `json:"skipped"`
	Errors  map[string]string `json:"errors,omitempty"`
}
