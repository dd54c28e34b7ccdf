package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dubedition/guidecore/internal/config"
	"github.com/dubedition/guidecore/internal/errors"
	"github.com/dubedition/guidecore/internal/guide"
)

const renderPage = `<!DOCTYPE html>
<html><head>
<title>Deck Guide</title>
<link rel="stylesheet" href="css/site.css">
<script src="https://cdn.example.com/app.js"></script>
</head><body>
<nav id="sidebar"><a href="#audio">Audio</a></nav>
<main id="content">
  <section id="intro"><h2>Introduction</h2><p>Welcome aboard.</p><img src="img/deck.png"></section>
  <section id="audio" data-content-src="audio.html"></section>
  <section id="video" data-content-src="video.html"></section>
</main>
</body></html>`

// writeSite lays out a site directory: the entry page plus content files.
func writeSite(t *testing.T, page string, content map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(page), 0o644))
	for name, body := range content {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

// newRenderEngine builds and initializes an engine over the site directory.
func newRenderEngine(t *testing.T, dir string) *guide.Engine {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Site.Root = dir

	engine, err := guide.New(cfg)
	require.NoError(t, err)
	require.NoError(t, engine.Initialize(context.Background()))
	t.Cleanup(engine.Close)
	return engine
}

// recordingReporter captures progress calls for assertions.
type recordingReporter struct {
	total    int
	updates  []string
	finished bool
}

func (r *recordingReporter) Start(total int) { r.total = total }
func (r *recordingReporter) Update(_ int, message string) {
	r.updates = append(r.updates, message)
}
func (r *recordingReporter) Finish() { r.finished = true }

// =============================================================================
// Render Output Tests
// =============================================================================

func TestRun_WritesFullyLoadedPage(t *testing.T) {
	// Given: a site with two fragment placeholders
	dir := writeSite(t, renderPage, map[string]string{
		"audio.html": `<h2>Audio</h2><p>Crank the mixer.</p>`,
		"video.html": `<h2>Video</h2><p>Set the refresh rate.</p>`,
	})
	engine := newRenderEngine(t, dir)
	out := t.TempDir()

	// When: rendering
	res, err := New(engine, Options{Output: out}).Run(context.Background())

	// Then: the page lands with every fragment inlined
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fragments.Loaded)
	assert.Equal(t, 0, res.Fragments.Failed)
	assert.Equal(t, filepath.Join(out, "index.html"), res.IndexFile)

	page, readErr := os.ReadFile(res.IndexFile)
	require.NoError(t, readErr)
	assert.Contains(t, string(page), "Crank the mixer.")
	assert.Contains(t, string(page), "Set the refresh rate.")
	assert.Contains(t, string(page), `data-fragment-state="loaded"`)
}

func TestRun_CopiesLocalAssetsOnly(t *testing.T) {
	// Given: a page referencing one stylesheet, one image, a CDN script,
	// and an in-page anchor
	dir := writeSite(t, renderPage, map[string]string{
		"audio.html":   `<h2>Audio</h2>`,
		"video.html":   `<h2>Video</h2>`,
		"css/site.css": "body { margin: 0 }",
		"img/deck.png": "png-bytes",
	})
	engine := newRenderEngine(t, dir)
	out := t.TempDir()

	// When: rendering
	res, err := New(engine, Options{Output: out}).Run(context.Background())

	// Then: only the local files are copied, layout preserved
	require.NoError(t, err)
	assert.Equal(t, 2, res.Assets)
	assert.FileExists(t, filepath.Join(out, "css", "site.css"))
	assert.FileExists(t, filepath.Join(out, "img", "deck.png"))
	assert.NoFileExists(t, filepath.Join(out, "app.js"))
}

func TestRun_MissingAssetIsSkipped(t *testing.T) {
	// Given: the page references img/deck.png but the file is absent
	dir := writeSite(t, renderPage, map[string]string{
		"audio.html":   `<h2>Audio</h2>`,
		"video.html":   `<h2>Video</h2>`,
		"css/site.css": "body { margin: 0 }",
	})
	engine := newRenderEngine(t, dir)
	out := t.TempDir()

	// When: rendering
	res, err := New(engine, Options{Output: out}).Run(context.Background())

	// Then: the render succeeds without the missing asset
	require.NoError(t, err)
	assert.Equal(t, 1, res.Assets)
	assert.NoFileExists(t, filepath.Join(out, "img", "deck.png"))
}

func TestRun_CleanRemovesStaleOutput(t *testing.T) {
	// Given: an output directory holding a file from an earlier render
	dir := writeSite(t, renderPage, map[string]string{
		"audio.html": `<h2>Audio</h2>`,
		"video.html": `<h2>Video</h2>`,
	})
	engine := newRenderEngine(t, dir)
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "stale.html"), []byte("old"), 0o644))

	// When: rendering with Clean
	_, err := New(engine, Options{Output: out, Clean: true}).Run(context.Background())

	// Then: the stale file is gone, the fresh page is there
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(out, "stale.html"))
	assert.FileExists(t, filepath.Join(out, "index.html"))
}

func TestRun_FailedFragmentsDoNotAbort(t *testing.T) {
	// Given: one fragment source is missing from the site
	dir := writeSite(t, renderPage, map[string]string{
		"audio.html": `<h2>Audio</h2><p>Crank the mixer.</p>`,
	})
	engine := newRenderEngine(t, dir)
	out := t.TempDir()

	// When: rendering
	res, err := New(engine, Options{Output: out}).Run(context.Background())

	// Then: the render completes, the failure is visible in the output
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fragments.Loaded)
	assert.Equal(t, 1, res.Fragments.Failed)

	page, readErr := os.ReadFile(res.IndexFile)
	require.NoError(t, readErr)
	assert.Contains(t, string(page), "Crank the mixer.")
	assert.Contains(t, string(page), `data-fragment-state="failed"`)
}

// =============================================================================
// Locking and Progress Tests
// =============================================================================

func TestRun_RefusesLockedOutput(t *testing.T) {
	// Given: another process holds the render lock
	dir := writeSite(t, renderPage, map[string]string{
		"audio.html": `<h2>Audio</h2>`,
		"video.html": `<h2>Video</h2>`,
	})
	engine := newRenderEngine(t, dir)
	out := t.TempDir()

	other := flock.New(filepath.Join(out, lockFileName))
	held, lockErr := other.TryLock()
	require.NoError(t, lockErr)
	require.True(t, held)
	defer other.Unlock()

	// When: rendering into the locked directory
	_, err := New(engine, Options{Output: out}).Run(context.Background())

	// Then: the render refuses instead of interleaving writes
	require.Error(t, err)
	var gerr *errors.GuideError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, errors.ErrCodeRenderFailed, gerr.Code)
	assert.Contains(t, gerr.Message, "another render")
}

func TestRun_ReportsProgress(t *testing.T) {
	// Given: a reporter wired into the render
	dir := writeSite(t, renderPage, map[string]string{
		"audio.html": `<h2>Audio</h2>`,
		"video.html": `<h2>Video</h2>`,
	})
	engine := newRenderEngine(t, dir)
	rep := &recordingReporter{}

	// When: rendering
	_, err := New(engine, Options{Output: t.TempDir(), Reporter: rep}).Run(context.Background())

	// Then: the reporter saw the batch start and finish
	require.NoError(t, err)
	assert.Equal(t, 2, rep.total)
	assert.True(t, rep.finished)
	assert.NotEmpty(t, rep.updates)
}

func TestRun_DefaultsToConfiguredOutput(t *testing.T) {
	// Given: no explicit output, render.output set in config
	dir := writeSite(t, renderPage, map[string]string{
		"audio.html": `<h2>Audio</h2>`,
		"video.html": `<h2>Video</h2>`,
	})
	out := filepath.Join(t.TempDir(), "dist")

	cfg := config.NewConfig()
	cfg.Site.Root = dir
	cfg.Render.Output = out
	engine, err := guide.New(cfg)
	require.NoError(t, err)
	require.NoError(t, engine.Initialize(context.Background()))
	t.Cleanup(engine.Close)

	// When: rendering with empty Options.Output
	res, runErr := New(engine, Options{}).Run(context.Background())

	// Then: the configured directory is used
	require.NoError(t, runErr)
	assert.Equal(t, out, res.Output)
	assert.FileExists(t, filepath.Join(out, "index.html"))
}
