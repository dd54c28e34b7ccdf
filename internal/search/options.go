package search

import "time"

// Options configures an Engine.
type Options struct {
	// ContentRootID is the id of the element whose descendants are indexed.
	// When no such element exists the document body is used.
	// Default: content
	ContentRootID string

	// TitleScore is awarded per keyword contained in a unit's title.
	// Default: 10
	TitleScore int

	// ExactTitleBonus is awarded additionally when the whole title equals
	// a keyword. The rule is deliberately narrow: the entire title must
	// equal one keyword; multi-word titles never earn it.
	// Default: 50
	ExactTitleBonus int

	// BodyScore is awarded per keyword contained in a unit's content.
	// Default: 5
	BodyScore int

	// MaxResults caps the returned result list. Negative means unlimited.
	// Default: 20
	MaxResults int

	// SnippetMin and SnippetMax bound excerpt length in bytes before
	// word-boundary adjustment.
	// Defaults: 80 and 100
	SnippetMin int
	SnippetMax int

	// CacheSize is the memoized-outcome cache capacity.
	// Default: 128
	CacheSize int

	// CacheTTL expires memoized outcomes. Zero memoizes without expiry.
	// Default: 5m
	CacheTTL time.Duration
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{
		ContentRootID:   "content",
		TitleScore:      10,
		ExactTitleBonus: 50,
		BodyScore:       5,
		MaxResults:      20,
		SnippetMin:      80,
		SnippetMax:      100,
		CacheSize:       128,
		CacheTTL:        5 * time.Minute,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.ContentRootID == "" {
		o.ContentRootID = defaults.ContentRootID
	}
	if o.TitleScore == 0 {
		o.TitleScore = defaults.TitleScore
	}
	if o.ExactTitleBonus == 0 {
		o.ExactTitleBonus = defaults.ExactTitleBonus
	}
	if o.BodyScore == 0 {
		o.BodyScore = defaults.BodyScore
	}
	if o.MaxResults == 0 {
		o.MaxResults = defaults.MaxResults
	}
	if o.SnippetMin == 0 {
		o.SnippetMin = defaults.SnippetMin
	}
	if o.SnippetMax == 0 {
		o.SnippetMax = defaults.SnippetMax
	}
	if o.SnippetMax < o.SnippetMin {
		o.SnippetMax = o.SnippetMin
	}
	if o.CacheSize == 0 {
		o.CacheSize = defaults.CacheSize
	}
	if o.CacheTTL == 0 {
		o.CacheTTL = defaults.CacheTTL
	}
	return o
}
