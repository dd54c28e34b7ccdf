package ui

import (
	"sync"

	"github.com/dubedition/guidecore/internal/fragment"
)

// LoadTracker counts fragment load completions against an expected total.
// It is safe for concurrent use: event subscriptions feed it from outside
// the render loop.
type LoadTracker struct {
	mu     sync.Mutex
	total  int
	loaded int
	failed int
	lastID string
}

// LoadStats is a snapshot of tracker counts.
type LoadStats struct {
	Total  int
	Loaded int
	Failed int
	LastID string
}

// NewLoadTracker creates a tracker expecting total completions.
func NewLoadTracker(total int) *LoadTracker {
	if total < 0 {
		total = 0
	}
	return &LoadTracker{total: total}
}

// Observe folds one fragment event into the counts.
func (t *LoadTracker) Observe(ev fragment.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case fragment.EventLoaded:
		t.loaded++
		t.lastID = ev.RecordID
	case fragment.EventFailed:
		t.failed++
		t.lastID = ev.RecordID
	case fragment.EventRescan:
		// Enrollment, not a completion.
	}
}

// Stats returns the current counts.
func (t *LoadTracker) Stats() LoadStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return LoadStats{
		Total:  t.total,
		Loaded: t.loaded,
		Failed: t.failed,
		LastID: t.lastID,
	}
}

// Done returns completions so far, loads and failures both.
func (s LoadStats) Done() int {
	return s.Loaded + s.Failed
}

// Fraction returns completion progress in the 0.0-1.0 range.
func (s LoadStats) Fraction() float64 {
	if s.Total <= 0 {
		return 0
	}
	f := float64(s.Done()) / float64(s.Total)
	if f > 1 {
		return 1
	}
	return f
}
