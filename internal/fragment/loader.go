package fragment

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dubedition/guidecore/internal/cache"
	"github.com/dubedition/guidecore/internal/errors"
	"github.com/dubedition/guidecore/internal/htmldoc"
)

const (
	// DefaultSourceAttr marks placeholder elements in guide pages.
	DefaultSourceAttr = "data-content-src"

	// stateAttr mirrors the record state onto the owning element so
	// stylesheets can render spinners and failure badges.
	stateAttr = "data-fragment-state"

	// errorAttr carries the failure code on the owning element.
	errorAttr = "data-fragment-error"
)

// nominalSlotHeight is the assumed rendered height of one fragment for
// the default layout estimate used by viewport gating.
const nominalSlotHeight = 600

// LayoutFunc estimates the vertical pixel offset of the placeholder in
// the given enrollment slot. Viewport gating compares these estimates
// against the visible range.
type LayoutFunc func(slot int) int

// Options configures a Loader.
type Options struct {
	// SourceAttr is the attribute naming a placeholder's content source.
	// Default: data-content-src
	SourceAttr string

	// BasePath is prefixed to relative source references.
	// Default: ./content/
	BasePath string

	// Timeout bounds a single fragment fetch.
	// Default: 10s
	Timeout time.Duration

	// MaxConcurrent limits parallel fetches in batch operations.
	// Default: 8
	MaxConcurrent int

	// ViewportMargin extends the visible range on both sides so fragments
	// just outside the viewport load before they scroll in.
	// Default: 200
	ViewportMargin int

	// Markdown enables conversion of .md/.markdown sources to HTML.
	Markdown bool

	// Cache stores fetched bodies keyed by resolved source. Optional.
	Cache *cache.Cache[string]

	// CacheTTL expires cached bodies. Zero caches without expiry.
	CacheTTL time.Duration

	// Layout estimates placeholder offsets for viewport gating.
	// Default: slot times a nominal section height.
	Layout LayoutFunc
}

// DefaultOptions returns the default loader options.
func DefaultOptions() Options {
	return Options{
		SourceAttr:     DefaultSourceAttr,
		BasePath:       DefaultBasePath,
		Timeout:        10 * time.Second,
		MaxConcurrent:  8,
		ViewportMargin: 200,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.SourceAttr == "" {
		o.SourceAttr = defaults.SourceAttr
	}
	if o.BasePath == "" {
		o.BasePath = defaults.BasePath
	}
	if o.Timeout == 0 {
		o.Timeout = defaults.Timeout
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaults.MaxConcurrent
	}
	if o.ViewportMargin == 0 {
		o.ViewportMargin = defaults.ViewportMargin
	}
	if o.Layout == nil {
		o.Layout = func(slot int) int { return slot * nominalSlotHeight }
	}
	return o
}

// Loader discovers placeholder elements in a document and fills them with
// fetched content. All state transitions happen under one mutex; fetches
// for the same resolved source are shared through a singleflight group.
type Loader struct {
	doc      *htmldoc.Document
	fetcher  Fetcher
	resolver *Resolver
	opts     Options
	bus      *Bus

	flight singleflight.Group

	mu       sync.Mutex
	records  map[string]*record
	order    []string // record IDs in enrollment (document) order
	enrolled map[htmldoc.NodeRef]bool
}

// NewLoader creates a loader over the document. Placeholders are not
// discovered until Scan is called.
func NewLoader(doc *htmldoc.Document, fetcher Fetcher, opts Options) *Loader {
	opts = opts.WithDefaults()
	return &Loader{
		doc:      doc,
		fetcher:  fetcher,
		resolver: NewResolver(opts.BasePath),
		opts:     opts,
		bus:      NewBus(),
		records:  make(map[string]*record),
		enrolled: make(map[htmldoc.NodeRef]bool),
	}
}

// Bus returns the loader's event bus.
func (l *Loader) Bus() *Bus {
	return l.bus
}

// Close shuts down the event bus. The loader itself holds no other
// resources.
func (l *Loader) Close() {
	l.bus.Close()
}

// Scan walks the document for placeholder elements and enrolls the ones
// not seen before as Pending records. Safe to call repeatedly; already
// enrolled placeholders keep their state. Returns the number of records
// added and publishes a rescan event when that number is positive.
func (l *Loader) Scan() int {
	refs := l.doc.ElementsWithAttr(l.opts.SourceAttr)

	l.mu.Lock()
	added := 0
	for _, ref := range refs {
		if l.enrolled[ref] {
			continue
		}
		l.enrolled[ref] = true

		source, _ := l.doc.Attr(ref, l.opts.SourceAttr)
		source = strings.TrimSpace(source)
		if source == "" {
			slog.Debug("skipping placeholder with empty content source",
				slog.Int("node", int(ref)))
			continue
		}

		slot := len(l.order)
		id := l.doc.ID(ref)
		if id == "" {
			id = fmt.Sprintf("fragment-%d", slot+1)
		}
		if _, dup := l.records[id]; dup {
			slog.Warn("duplicate fragment id, skipping placeholder",
				slog.String("record_id", id),
				slog.String("source", source))
			continue
		}

		l.records[id] = &record{
			id:       id,
			source:   source,
			resolved: l.resolver.Resolve(source),
			owner:    ref,
			slot:     slot,
			state:    StatePending,
		}
		l.order = append(l.order, id)
		added++
	}
	total := len(l.order)
	l.mu.Unlock()

	if added > 0 {
		slog.Debug("fragment scan enrolled placeholders",
			slog.Int("added", added),
			slog.Int("total", total))
		l.bus.Publish(Event{Type: EventRescan})
	}
	return added
}

// Load fetches and inserts the fragment for one record. Loaded records
// are a no-op; Pending and Failed records move to Loading; a record
// already Loading joins the in-flight fetch. Concurrent loads that
// resolve to the same source share one fetch.
func (l *Loader) Load(ctx context.Context, id string) error {
	l.mu.Lock()
	rec, ok := l.records[id]
	if !ok {
		l.mu.Unlock()
		return errors.New(errors.ErrCodeUnknownTarget,
			fmt.Sprintf("unknown fragment: %s", id), nil).
			WithDetail("record_id", id)
	}
	switch rec.state {
	case StateLoaded:
		l.mu.Unlock()
		return nil
	case StatePending, StateFailed:
		rec.state = StateLoading
		rec.lastErr = nil
		l.doc.SetAttr(rec.owner, stateAttr, StateLoading.String())
	case StateLoading:
		// join the in-flight fetch below
	}
	source, resolved := rec.source, rec.resolved
	l.mu.Unlock()

	body, err, _ := l.flight.Do(resolved, func() (interface{}, error) {
		return l.fetchSource(ctx, source, resolved)
	})
	if err != nil {
		return l.finalize(id, "", err)
	}
	return l.finalize(id, body.(string), nil)
}

// Retry re-attempts a failed fragment. It shares Load's semantics, so
// retrying a Loaded record is a no-op and a Pending record simply loads.
func (l *Loader) Retry(ctx context.Context, id string) error {
	return l.Load(ctx, id)
}

// fetchSource runs one shared fetch: cache lookup, bounded fetch,
// optional Markdown conversion, emptiness check, cache fill.
func (l *Loader) fetchSource(ctx context.Context, source, resolved string) (string, error) {
	if l.opts.Cache != nil {
		if body, ok := l.opts.Cache.Get(resolved); ok {
			slog.Debug("fragment cache hit", slog.String("source", resolved))
			return body, nil
		}
	}

	fctx, cancel := deadlineOrDefault(ctx, l.opts.Timeout)
	defer cancel()

	start := time.Now()
	body, err := l.fetcher.Fetch(fctx, resolved)
	if err != nil {
		return "", err
	}

	if l.opts.Markdown && isMarkdownSource(source) {
		body, err = renderMarkdown(body)
		if err != nil {
			return "", err
		}
	}

	if strings.TrimSpace(body) == "" {
		return "", errors.New(errors.ErrCodeEmptyContent,
			fmt.Sprintf("fragment source returned no content: %s", source), nil).
			WithDetail("source", source).
			WithSuggestion("Check that the content file is not empty.")
	}

	slog.Debug("fragment fetched",
		slog.String("source", resolved),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)))

	if l.opts.Cache != nil {
		if l.opts.CacheTTL > 0 {
			l.opts.Cache.SetTTL(resolved, body, l.opts.CacheTTL)
		} else {
			l.opts.Cache.Set(resolved, body)
		}
	}
	return body, nil
}

// finalize applies a fetch outcome to the record exactly once. When two
// callers share one fetch, the first finalizes and the second observes
// the already-settled state.
func (l *Loader) finalize(id, body string, fetchErr error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return errors.New(errors.ErrCodeUnknownTarget,
			fmt.Sprintf("unknown fragment: %s", id), nil)
	}
	if rec.state != StateLoading {
		if rec.state == StateFailed {
			return rec.lastErr
		}
		return nil
	}

	if fetchErr != nil {
		return l.fail(rec, fetchErr)
	}

	merged, err := l.doc.ReplaceChildrenHTML(rec.owner, body,
		l.opts.SourceAttr, stateAttr, errorAttr)
	if err != nil {
		return l.fail(rec, errors.New(errors.ErrCodeInternal,
			"fragment insertion failed", err))
	}
	if !merged {
		slog.Warn("fragment content lacked a single container root, inserted as-is",
			slog.String("record_id", rec.id),
			slog.String("source", rec.source))
	}

	rec.state = StateLoaded
	rec.lastErr = nil
	rec.loadedAt = time.Now()
	l.doc.SetAttr(rec.owner, stateAttr, StateLoaded.String())
	l.doc.RemoveAttr(rec.owner, errorAttr)

	slog.Info("fragment loaded",
		slog.String("record_id", rec.id),
		slog.String("source", rec.source))
	l.bus.Publish(Event{
		Type:     EventLoaded,
		RecordID: rec.id,
		Source:   rec.source,
		Owner:    rec.owner,
	})
	return nil
}

// fail settles a Loading record as Failed. Caller holds l.mu.
func (l *Loader) fail(rec *record, cause error) error {
	gerr := classifyLoadError(rec.resolved, cause)
	rec.state = StateFailed
	rec.lastErr = gerr

	l.doc.SetAttr(rec.owner, stateAttr, StateFailed.String())
	l.doc.SetAttr(rec.owner, errorAttr, gerr.Code)

	slog.Warn("fragment load failed",
		slog.String("record_id", rec.id),
		slog.String("source", rec.source),
		slog.String("code", gerr.Code),
		slog.Bool("retryable", gerr.Retryable))
	l.bus.Publish(Event{
		Type:     EventFailed,
		RecordID: rec.id,
		Source:   rec.source,
		Owner:    rec.owner,
		Err:      gerr,
	})
	return gerr
}

// classifyLoadError normalizes a load failure into a GuideError. Fetchers
// already classify their errors; this catches context errors surfacing
// from a shared fetch started by another caller.
func classifyLoadError(target string, err error) *errors.GuideError {
	var gerr *errors.GuideError
	if stderrors.As(err, &gerr) {
		return gerr
	}
	return classifyTransportError(target, err)
}

// LoadAll loads every Pending record concurrently. Failures are isolated:
// one bad fragment never stops its siblings, and the batch itself never
// returns an error.
func (l *Loader) LoadAll(ctx context.Context) BatchResult {
	ids, skipped := l.snapshot(StatePending)
	return l.loadBatch(ctx, ids, skipped)
}

// ForceLoadAll loads every Pending and Failed record sequentially in
// document order. Used by print preparation and static rendering, where
// deterministic completion matters more than throughput.
func (l *Loader) ForceLoadAll(ctx context.Context) BatchResult {
	ids, skipped := l.snapshot(StatePending, StateFailed)
	res := BatchResult{Skipped: skipped, Errors: make(map[string]string)}
	for _, id := range ids {
		if err := l.Load(ctx, id); err != nil {
			res.Failed++
			res.Errors[id] = err.Error()
			continue
		}
		res.Loaded++
	}
	return res
}

// ObserveViewport loads Pending records whose estimated offsets fall
// within the visible range extended by the configured margin. Returns the
// IDs it attempted, in document order.
func (l *Loader) ObserveViewport(ctx context.Context, top, bottom int) []string {
	lo := top - l.opts.ViewportMargin
	hi := bottom + l.opts.ViewportMargin

	l.mu.Lock()
	var ids []string
	for _, id := range l.order {
		rec := l.records[id]
		if rec.state != StatePending {
			continue
		}
		if off := l.opts.Layout(rec.slot); off >= lo && off <= hi {
			ids = append(ids, id)
		}
	}
	l.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	l.loadBatch(ctx, ids, 0)
	return ids
}

// loadBatch fans the IDs out over MaxConcurrent workers. Workers report
// per-record outcomes into the result instead of returning errors, so a
// failure never cancels the rest of the group.
func (l *Loader) loadBatch(ctx context.Context, ids []string, skipped int) BatchResult {
	res := BatchResult{Skipped: skipped, Errors: make(map[string]string)}
	if len(ids) == 0 {
		return res
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, l.opts.MaxConcurrent)
	var mu sync.Mutex

	for _, id := range ids {
		id := id
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				mu.Lock()
				res.Failed++
				res.Errors[id] = gctx.Err().Error()
				mu.Unlock()
				return nil
			}

			if err := l.Load(gctx, id); err != nil {
				mu.Lock()
				res.Failed++
				res.Errors[id] = err.Error()
				mu.Unlock()
				return nil
			}
			mu.Lock()
			res.Loaded++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	slog.Debug("fragment batch complete",
		slog.Int("loaded", res.Loaded),
		slog.Int("failed", res.Failed),
		slog.Int("skipped", res.Skipped))
	return res
}

// snapshot returns the IDs currently in any of the given states, in
// document order, plus the count of enrolled records left out.
func (l *Loader) snapshot(states ...State) ([]string, int) {
	want := make(map[State]bool, len(states))
	for _, s := range states {
		want[s] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []string
	skipped := 0
	for _, id := range l.order {
		if want[l.records[id].state] {
			ids = append(ids, id)
		} else {
			skipped++
		}
	}
	return ids, skipped
}

// Records returns snapshots of every enrolled record in document order.
func (l *Loader) Records() []Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	infos := make([]Info, 0, len(l.order))
	for _, id := range l.order {
		infos = append(infos, l.records[id].info())
	}
	return infos
}

// Record returns the snapshot for one record.
func (l *Loader) Record(id string) (Info, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return Info{}, false
	}
	return rec.info(), true
}

// info builds the external snapshot. Caller holds the loader's mutex.
func (r *record) info() Info {
	info := Info{
		ID:       r.id,
		Source:   r.source,
		Resolved: r.resolved,
		State:    r.state.String(),
		Slot:     r.slot,
	}
	if r.lastErr != nil {
		info.Error = r.lastErr.Error()
		info.Retryable = errors.IsRetryable(r.lastErr)
	}
	return info
}
