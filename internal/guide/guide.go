// Package guide assembles the document model, fragment loader, and search
// engine into one lifecycle-managed engine. The CLI, HTTP API, MCP server,
// and TUI all consume this facade instead of wiring the parts themselves.
//
// Construction is explicit: New validates configuration, Initialize parses
// the guide page, enrolls fragment placeholders, and builds the search
// index, and Close releases subscriptions. There are no package-level
// singletons.
package guide

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/dubedition/guidecore/internal/cache"
	"github.com/dubedition/guidecore/internal/config"
	"github.com/dubedition/guidecore/internal/errors"
	"github.com/dubedition/guidecore/internal/fragment"
	"github.com/dubedition/guidecore/internal/htmldoc"
	"github.com/dubedition/guidecore/internal/search"
	"github.com/dubedition/guidecore/internal/telemetry"
)

// bodyCacheSize bounds the fragment body cache shared across page reloads.
const bodyCacheSize = 64

// Option adjusts engine construction.
type Option func(*Engine)

// WithFetcher replaces the default site fetcher. Used by tests and by
// callers that already hold a configured fetcher.
func WithFetcher(f fragment.Fetcher) Option {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithHTTPClient sets the client used for remote fragment sources.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = c
	}
}

// WithPage parses the guide page from r instead of reading
// site.root/site.index from disk. The reader is consumed by Initialize;
// Reload still reads from disk.
func WithPage(r io.Reader) Option {
	return func(e *Engine) {
		e.pageSource = r
	}
}

// Engine is the assembled guide core. Accessors hand the current
// document, loader, searcher, and cursor to the serving layers; Reload
// swaps all four atomically when the page on disk changes.
type Engine struct {
	cfg      *config.Config
	siteRoot string
	pagePath string

	pageSource io.Reader
	httpClient *http.Client
	fetcher    fragment.Fetcher

	// bodies caches fetched fragment bodies across reloads so a page
	// reload does not refetch unchanged sources. Cleared by Reload.
	bodies *cache.Cache[string]

	// metrics aggregates query telemetry across the engine's lifetime,
	// surviving page reloads.
	metrics *telemetry.Collector

	mu          sync.RWMutex
	doc         *htmldoc.Document
	loader      *fragment.Loader
	searcher    *search.Engine
	cursor      *search.Cursor
	sub         *fragment.Subscription
	reloads     uint64
	initialized bool
	closed      bool

	wg sync.WaitGroup
}

// New creates an engine for the site described by cfg. A nil cfg uses the
// defaults. The engine is inert until Initialize runs.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	root, err := filepath.Abs(cfg.Site.Root)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			"cannot resolve site root", err).
			WithDetail("root", cfg.Site.Root)
	}

	e := &Engine{
		cfg:      cfg,
		siteRoot: root,
		pagePath: filepath.Join(root, cfg.Site.Index),
		bodies:   cache.New[string](bodyCacheSize),
		metrics:  telemetry.NewCollector(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		e.fetcher = newSiteFetcher(root, e.httpClient, cfg.Content.BasePath)
	}
	return e, nil
}

// Initialize parses the guide page, enrolls fragment placeholders, builds
// the search index, and wires the load-completion subscription that keeps
// the index fresh. Calling it twice is an error.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New(errors.ErrCodeInternal, "engine is closed", nil)
	}
	if e.initialized {
		return errors.New(errors.ErrCodeInternal, "engine already initialized", nil)
	}

	doc, err := e.readPage()
	if err != nil {
		return err
	}
	e.install(doc)
	e.initialized = true

	slog.Info("guide engine initialized",
		slog.String("page", e.pagePath),
		slog.Int("fragments", len(e.loader.Records())),
		slog.Int("units", len(e.searcher.Units())))
	return nil
}

// Reload re-reads the page from disk and rebuilds the document, loader,
// searcher, and cursor. Fragment records start over as Pending and the
// body cache is dropped, so changed content is refetched. Subscriptions
// on the previous loader's bus are closed.
func (e *Engine) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed || !e.initialized {
		e.mu.Unlock()
		return errors.New(errors.ErrCodeInternal, "engine not running", nil)
	}
	doc, err := e.readPage()
	if err != nil {
		e.mu.Unlock()
		return err
	}

	oldSub, oldCursor, oldLoader := e.sub, e.cursor, e.loader
	e.bodies.Clear()
	e.install(doc)
	e.reloads++
	reloads := e.reloads
	e.mu.Unlock()

	oldSub.Cancel()
	oldCursor.Close()
	oldLoader.Close()

	slog.Info("guide page reloaded",
		slog.String("page", e.pagePath),
		slog.Uint64("reloads", reloads))
	return nil
}

// Close cancels the refresh subscription and releases loader and cursor
// resources. Safe to call once; the engine cannot be reused afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	sub, cursor, loader := e.sub, e.cursor, e.loader
	e.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	e.wg.Wait()
	if cursor != nil {
		cursor.Close()
	}
	if loader != nil {
		loader.Close()
	}
}

// install builds the component set over a freshly parsed document and
// starts its refresh loop. Caller holds e.mu.
func (e *Engine) install(doc *htmldoc.Document) {
	e.doc = doc
	e.loader = fragment.NewLoader(doc, e.fetcher, e.loaderOptions())
	e.loader.Scan()
	e.searcher = search.NewEngine(doc, e.searchOptions())
	e.searcher.BuildIndex()
	e.cursor = search.NewCursor(doc)

	e.sub = e.loader.Bus().Subscribe()
	e.wg.Add(1)
	go e.refreshLoop(e.sub)
}

// readPage parses the page from the injected reader (first Initialize
// only) or from site.root/site.index on disk. Caller holds e.mu.
func (e *Engine) readPage() (*htmldoc.Document, error) {
	if e.pageSource != nil {
		src := e.pageSource
		e.pageSource = nil
		doc, err := htmldoc.Parse(src)
		if err != nil {
			return nil, errors.New(errors.ErrCodeParseAnomaly,
				"cannot parse guide page", err)
		}
		return doc, nil
	}

	f, err := os.Open(e.pagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound,
				"guide page not found", err).
				WithDetail("page", e.pagePath).
				WithSuggestion("Check site.root and site.index in .guidecore.yaml.")
		}
		return nil, errors.New(errors.ErrCodeInternal,
			"cannot read guide page", err).
			WithDetail("page", e.pagePath)
	}
	defer f.Close()

	doc, err := htmldoc.Parse(f)
	if err != nil {
		return nil, errors.New(errors.ErrCodeParseAnomaly,
			"cannot parse guide page", err).
			WithDetail("page", e.pagePath)
	}
	return doc, nil
}

// refreshLoop keeps the search index aligned with the document as
// fragments land. A loaded fragment may carry placeholders of its own, so
// completions trigger a rescan before the index refresh. The loop exits
// when its subscription closes (reload or shutdown).
func (e *Engine) refreshLoop(sub *fragment.Subscription) {
	defer e.wg.Done()
	for ev := range sub.Events() {
		e.mu.RLock()
		loader, searcher := e.loader, e.searcher
		e.mu.RUnlock()

		switch ev.Type {
		case fragment.EventLoaded:
			loader.Scan()
			searcher.RefreshIndex()
		case fragment.EventRescan:
			searcher.RefreshIndex()
		case fragment.EventFailed:
			// Failure is reflected in record state and node attributes;
			// the index keeps whatever content the owner already had.
		}
	}
}

// loaderOptions maps config onto fragment loader options.
func (e *Engine) loaderOptions() fragment.Options {
	return fragment.Options{
		BasePath:       e.cfg.Content.BasePath,
		Timeout:        e.cfg.FetchTimeoutDuration(),
		MaxConcurrent:  e.cfg.Content.MaxConcurrent,
		ViewportMargin: e.cfg.Content.ViewportMargin,
		Markdown:       e.cfg.Content.Markdown,
		Cache:          e.bodies,
	}
}

// searchOptions maps config onto search engine options.
func (e *Engine) searchOptions() search.Options {
	return search.Options{
		TitleScore:      e.cfg.Search.TitleScore,
		ExactTitleBonus: e.cfg.Search.ExactTitleBonus,
		BodyScore:       e.cfg.Search.BodyScore,
		MaxResults:      e.cfg.Search.MaxResults,
		SnippetMin:      e.cfg.Search.SnippetMin,
		SnippetMax:      e.cfg.Search.SnippetMax,
		CacheSize:       e.cfg.Search.CacheSize,
		CacheTTL:        e.cfg.CacheTTLDuration(),
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// SiteRoot returns the absolute site root directory.
func (e *Engine) SiteRoot() string {
	return e.siteRoot
}

// Document returns the current parsed page. Nil before Initialize.
func (e *Engine) Document() *htmldoc.Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc
}

// Loader returns the current fragment loader. Nil before Initialize.
func (e *Engine) Loader() *fragment.Loader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loader
}

// Searcher returns the current search engine. Nil before Initialize.
func (e *Engine) Searcher() *search.Engine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.searcher
}

// Cursor returns the current result cursor. Nil before Initialize.
func (e *Engine) Cursor() *search.Cursor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cursor
}

// Subscribe attaches to the current loader's event stream. The channel
// closes when Reload replaces the loader or the engine shuts down;
// callers that outlive a reload subscribe again.
func (e *Engine) Subscribe() *fragment.Subscription {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loader.Bus().Subscribe()
}

// Search answers a free-text query against the current index and
// records the query in the telemetry collector.
func (e *Engine) Search(text string) search.Outcome {
	e.mu.RLock()
	s := e.searcher
	e.mu.RUnlock()

	start := time.Now()
	outcome := s.Query(text)
	e.metrics.Record(telemetry.QueryEvent{
		Query:       outcome.Query,
		State:       outcome.State.String(),
		ResultCount: outcome.Total,
		Latency:     time.Since(start),
		Timestamp:   start,
	})
	return outcome
}

// Metrics returns the engine's query telemetry collector.
func (e *Engine) Metrics() *telemetry.Collector {
	return e.metrics
}

// Fragments snapshots the current fragment records in document order.
func (e *Engine) Fragments() []fragment.Info {
	e.mu.RLock()
	l := e.loader
	e.mu.RUnlock()
	return l.Records()
}

// LoadAll loads every pending fragment concurrently, isolating per-record
// failures.
func (e *Engine) LoadAll(ctx context.Context) fragment.BatchResult {
	e.mu.RLock()
	l := e.loader
	e.mu.RUnlock()
	return l.LoadAll(ctx)
}

// ForceLoadAll loads every unloaded fragment in document order, retrying
// failed ones. Used by the static render path.
func (e *Engine) ForceLoadAll(ctx context.Context) fragment.BatchResult {
	e.mu.RLock()
	l := e.loader
	e.mu.RUnlock()
	return l.ForceLoadAll(ctx)
}

// RetryFragment retries a failed fragment record.
func (e *Engine) RetryFragment(ctx context.Context, id string) error {
	e.mu.RLock()
	l := e.loader
	e.mu.RUnlock()
	return l.Retry(ctx, id)
}

// PageHTML serializes the current document.
func (e *Engine) PageHTML() (string, error) {
	e.mu.RLock()
	d := e.doc
	e.mu.RUnlock()
	return d.HTML()
}
