// Package telemetry collects search query metrics for a running guide
// engine. All data stays in memory on the local machine - nothing is
// reported externally. The HTTP API exposes a snapshot so site authors
// can see what readers search for and which queries find nothing,
// which is the signal for missing or badly titled sections.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Query states mirror the search engine's outcome categories.
const (
	StatePrompt    = "prompt"
	StateResults   = "results"
	StateNoResults = "no_results"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one answered search query.
type QueryEvent struct {
	Query       string
	State       string
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult reports whether the query was a real search that found
// nothing. Prompt-state events (empty query) never count.
func (e QueryEvent) IsZeroResult() bool {
	return e.State == StateNoResults
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int // next write position
	size     int
	capacity int
}

// NewCircularBuffer creates a circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffer contents oldest-first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear drops all items.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// ExtractTerms splits a query into trackable terms: lowercased words of
// at least three characters. Short connectives would dominate the term
// table otherwise.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var terms []string
	for _, w := range strings.Fields(query) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of collected metrics.
type Snapshot struct {
	StateCounts         map[string]int64        `json:"state_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of real queries that found
// nothing, as a percentage. Prompt-state events are excluded from the
// denominator.
func (s *Snapshot) ZeroResultPercentage() float64 {
	searched := s.TotalQueries - s.StateCounts[StatePrompt]
	if searched <= 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(searched) * 100
}

// Collector aggregates query events. Safe for concurrent use.
type Collector struct {
	mu sync.RWMutex

	states          map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	startTime       time.Time
}

// Capacities for the bounded aggregates. Terms past the cap age out
// least-recently-seen first; zero-result queries keep the newest window.
const (
	topTermsCapacity    = 100
	zeroResultsCapacity = 100
)

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	topTerms, _ := lru.New[string, int64](topTermsCapacity)
	return &Collector{
		states:      make(map[string]int64),
		topTerms:    topTerms,
		zeroResults: NewCircularBuffer[string](zeroResultsCapacity),
		latencies:   make(map[LatencyBucket]int64),
		startTime:   time.Now(),
	}
}

// Record folds one query event into the aggregates.
func (c *Collector) Record(ev QueryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalQueries++
	c.states[ev.State]++
	c.latencies[LatencyToBucket(ev.Latency)]++

	for _, term := range ExtractTerms(ev.Query) {
		count, _ := c.topTerms.Get(term)
		c.topTerms.Add(term, count+1)
	}

	if ev.IsZeroResult() {
		c.zeroResultCount++
		c.zeroResults.Add(ev.Query)
	}
}

// Snapshot returns a copy of the current aggregates. Top terms are
// sorted by descending count, ties by term.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	states := make(map[string]int64, len(c.states))
	for k, v := range c.states {
		states[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(c.latencies))
	for k, v := range c.latencies {
		latencies[k] = v
	}

	terms := make([]TermCount, 0, c.topTerms.Len())
	for _, term := range c.topTerms.Keys() {
		if count, ok := c.topTerms.Peek(term); ok {
			terms = append(terms, TermCount{Term: term, Count: count})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})

	return Snapshot{
		StateCounts:         states,
		TopTerms:            terms,
		ZeroResultQueries:   c.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        c.totalQueries,
		ZeroResultCount:     c.zeroResultCount,
		Since:               c.startTime,
	}
}

// Reset clears all aggregates and restarts the collection window.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states = make(map[string]int64)
	c.topTerms.Purge()
	c.zeroResults.Clear()
	c.latencies = make(map[LatencyBucket]int64)
	c.totalQueries = 0
	c.zeroResultCount = 0
	c.startTime = time.Now()
}
