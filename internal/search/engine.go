package search

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dubedition/guidecore/internal/cache"
	"github.com/dubedition/guidecore/internal/htmldoc"
)

// headingTags are the elements indexed as jump-to-heading units.
var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// indexed is a unit plus the lowercase projections scoring runs against.
type indexed struct {
	Unit
	lowerTitle   string
	lowerContent string
}

// Engine answers free-text queries over a guide document.
//
// BuildIndex installs a complete new unit list atomically: concurrent
// queries observe either the previous index or the new one, never a mix.
// Queries never return errors; thin or malformed markup simply yields
// fewer units.
type Engine struct {
	doc  *htmldoc.Document
	opts Options
	memo *cache.Cache[Outcome]

	mu         sync.RWMutex
	units      []indexed
	generation uint64
}

// NewEngine creates an engine over the document. The index is empty until
// BuildIndex runs.
func NewEngine(doc *htmldoc.Document, opts Options) *Engine {
	opts = opts.WithDefaults()
	return &Engine{
		doc:  doc,
		opts: opts,
		memo: cache.New[Outcome](opts.CacheSize),
	}
}

// BuildIndex rescans the document and replaces the entire index. Units are
// collected in document order, which is also the tie-break order for equal
// relevance scores. Returns the unit count.
func (e *Engine) BuildIndex() int {
	root, ok := e.doc.ByID(e.opts.ContentRootID)
	if !ok {
		root = e.doc.Body()
	}

	var units []indexed
	seen := make(map[string]bool)
	if root.Valid() {
		for _, ref := range e.doc.IdentifiedElements(root) {
			id := e.doc.ID(ref)
			if seen[id] {
				slog.Debug("duplicate unit id, keeping first occurrence",
					slog.String("id", id))
				continue
			}
			seen[id] = true
			units = append(units, e.collectUnit(ref, id))
		}
	}

	e.mu.Lock()
	e.units = units
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	slog.Debug("search index rebuilt",
		slog.Int("units", len(units)),
		slog.Uint64("generation", gen))
	return len(units)
}

// collectUnit builds the indexed unit for one identified element. Headings
// become jump-to units with empty content; everything else is a content
// section carrying its full text.
func (e *Engine) collectUnit(ref htmldoc.NodeRef, id string) indexed {
	if headingTags[e.doc.TagName(ref)] {
		title := e.doc.Text(ref)
		return indexed{
			Unit:       Unit{ID: id, Title: title, Ref: ref, Kind: KindHeading},
			lowerTitle: strings.ToLower(title),
		}
	}

	title := e.doc.FirstHeadingText(ref)
	content := e.doc.Text(ref)
	return indexed{
		Unit:         Unit{ID: id, Title: title, Content: content, Ref: ref, Kind: KindSection},
		lowerTitle:   strings.ToLower(title),
		lowerContent: strings.ToLower(content),
	}
}

// RefreshIndex re-runs BuildIndex. Wire it to fragment load completions,
// and call it after any external bulk mutation of the document.
func (e *Engine) RefreshIndex() int {
	return e.BuildIndex()
}

// Generation returns the current index build counter.
func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Units returns a snapshot of the indexed units in build order.
func (e *Engine) Units() []Unit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Unit, len(e.units))
	for i, u := range e.units {
		out[i] = u.Unit
	}
	return out
}

// Query tokenizes the text on whitespace into case-insensitive keywords
// and ranks every indexed unit against them. A blank query returns the
// prompt state; a query matching nothing returns the no-results state.
func (e *Engine) Query(text string) Outcome {
	keywords := strings.Fields(strings.ToLower(text))
	if len(keywords) == 0 {
		return Outcome{State: StatePrompt, Query: text, Results: []Result{}}
	}
	normalized := strings.Join(keywords, " ")

	e.mu.RLock()
	units := e.units
	gen := e.generation
	e.mu.RUnlock()

	memoKey := fmt.Sprintf("%d:%s", gen, normalized)
	if out, ok := e.memo.Get(memoKey); ok {
		out.Query = text // echo the caller's text, not the first caller's
		return out
	}

	start := time.Now()
	results := e.rank(units, keywords)
	total := len(results)
	if e.opts.MaxResults > 0 && total > e.opts.MaxResults {
		results = results[:e.opts.MaxResults]
	}

	out := Outcome{
		State:   StateResults,
		Query:   text,
		Results: results,
		Total:   total,
	}
	if total == 0 {
		out.State = StateNoResults
	}

	slog.Debug("search query ranked",
		slog.String("query", normalized),
		slog.Int("matches", total),
		slog.Uint64("generation", gen),
		slog.Duration("duration", time.Since(start)))

	if e.opts.CacheTTL > 0 {
		e.memo.SetTTL(memoKey, out, e.opts.CacheTTL)
	} else {
		e.memo.Set(memoKey, out)
	}
	return out
}

// rank scores every unit and sorts matches by descending relevance. The
// sort is stable: equal scores keep index-build order.
func (e *Engine) rank(units []indexed, keywords []string) []Result {
	results := []Result{}
	for i := range units {
		unit := &units[i]
		score := e.score(unit, keywords)
		if score == 0 {
			continue
		}
		results = append(results, Result{
			Unit:    unit.Unit,
			Score:   score,
			Snippet: e.snippet(unit, keywords),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// score computes the unit's relevance: per keyword, TitleScore when the
// title contains it, ExactTitleBonus additionally when the whole title
// equals it, and BodyScore when the content contains it.
func (e *Engine) score(unit *indexed, keywords []string) int {
	score := 0
	for _, kw := range keywords {
		if unit.lowerTitle != "" && strings.Contains(unit.lowerTitle, kw) {
			score += e.opts.TitleScore
			if unit.lowerTitle == kw {
				score += e.opts.ExactTitleBonus
			}
		}
		if unit.lowerContent != "" && strings.Contains(unit.lowerContent, kw) {
			score += e.opts.BodyScore
		}
	}
	return score
}
