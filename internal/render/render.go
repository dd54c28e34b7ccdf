// Package render writes a fully-loaded guide page to disk as static HTML.
//
// A render pass force-loads every fragment, serializes the document to
// index.html in the output directory, and copies the local assets the page
// references. Concurrent renders into the same output directory are
// excluded with a file lock, so a watch-triggered render and a manual one
// never interleave writes.
package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"github.com/dubedition/guidecore/internal/errors"
	"github.com/dubedition/guidecore/internal/fragment"
	"github.com/dubedition/guidecore/internal/guide"
)

// lockFileName guards an output directory against concurrent renders.
const lockFileName = ".render.lock"

// Options adjust a render pass.
type Options struct {
	// Output is the directory the page is written to. Empty falls back
	// to the engine's render.output config.
	Output string
	// Clean removes prior output contents before writing.
	Clean bool
	// Reporter receives progress feedback. Nil renders silently.
	Reporter Reporter
}

// Result summarizes a completed render.
type Result struct {
	Output    string               `json:"output"`
	IndexFile string               `json:"index_file"`
	Fragments fragment.BatchResult `json:"fragments"`
	Assets    int                  `json:"assets"`
	Duration  time.Duration        `json:"duration_ns"`
}

// Renderer produces static output from a guide engine.
type Renderer struct {
	engine *guide.Engine
	opts   Options
}

// New creates a renderer over an initialized engine.
func New(engine *guide.Engine, opts Options) *Renderer {
	if opts.Output == "" {
		opts.Output = engine.Config().Render.Output
	}
	if opts.Reporter == nil {
		opts.Reporter = noopReporter{}
	}
	return &Renderer{engine: engine, opts: opts}
}

// Run renders the guide to the output directory. Per-fragment load
// failures do not abort the render; they are summarized in the result and
// the failed placeholders keep their error attributes in the output.
func (r *Renderer) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	out, err := filepath.Abs(r.opts.Output)
	if err != nil {
		return nil, errors.New(errors.ErrCodeRenderFailed,
			"cannot resolve output directory", err).
			WithDetail("output", r.opts.Output)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeRenderFailed,
			"cannot create output directory", err).
			WithDetail("output", out)
	}

	lock := flock.New(filepath.Join(out, lockFileName))
	held, err := lock.TryLock()
	if err != nil {
		return nil, errors.New(errors.ErrCodeRenderFailed,
			"cannot acquire render lock", err).
			WithDetail("lock", lock.Path())
	}
	if !held {
		return nil, errors.New(errors.ErrCodeRenderFailed,
			"another render is writing this output directory", nil).
			WithDetail("lock", lock.Path()).
			WithSuggestion("Wait for the other render to finish or choose a different --output.")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("render lock release failed",
				slog.String("lock", lock.Path()),
				slog.String("error", err.Error()))
		}
	}()

	if r.opts.Clean {
		if err := cleanDir(out); err != nil {
			return nil, err
		}
	}

	batch := r.loadFragments(ctx)

	indexFile := filepath.Join(out, r.engine.Config().Site.Index)
	if err := r.writePage(indexFile); err != nil {
		return nil, err
	}

	assets, err := r.copyAssets(out)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Output:    out,
		IndexFile: indexFile,
		Fragments: batch,
		Assets:    assets,
		Duration:  time.Since(started),
	}
	slog.Info("render complete",
		slog.String("output", out),
		slog.Int("loaded", batch.Loaded),
		slog.Int("failed", batch.Failed),
		slog.Int("assets", assets),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// loadFragments force-loads everything not yet loaded, streaming progress
// off the engine's event bus. Progress is advisory: a dropped event only
// skips a tick, the batch result stays exact.
func (r *Renderer) loadFragments(ctx context.Context) fragment.BatchResult {
	total := 0
	for _, info := range r.engine.Fragments() {
		if info.State != fragment.StateLoaded.String() {
			total++
		}
	}
	r.opts.Reporter.Start(total)

	sub := r.engine.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		n := 0
		for ev := range sub.Events() {
			switch ev.Type {
			case fragment.EventLoaded, fragment.EventFailed:
				n++
				r.opts.Reporter.Update(n, ev.RecordID)
			case fragment.EventRescan:
				// New placeholders found inside a loaded fragment; the
				// batch picks them up, the bar total stays as started.
			}
		}
	}()

	batch := r.engine.ForceLoadAll(ctx)
	sub.Cancel()
	<-done
	r.opts.Reporter.Finish()
	return batch
}

// writePage serializes the current document to the index file.
func (r *Renderer) writePage(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.New(errors.ErrCodeRenderFailed,
			"cannot write rendered page", err).
			WithDetail("path", path)
	}
	if err := r.engine.Document().Render(f); err != nil {
		f.Close()
		return errors.New(errors.ErrCodeRenderFailed,
			"cannot serialize guide page", err).
			WithDetail("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.New(errors.ErrCodeRenderFailed,
			"cannot write rendered page", err).
			WithDetail("path", path)
	}
	return nil
}

// copyAssets copies every local file the page references through src or
// href into the output tree, preserving relative layout. References that
// leave the site root, point nowhere, or target the page itself are
// skipped.
func (r *Renderer) copyAssets(out string) (int, error) {
	root := r.engine.SiteRoot()
	doc := r.engine.Document()
	indexName := filepath.Clean(r.engine.Config().Site.Index)

	seen := make(map[string]struct{})
	copied := 0
	for _, attr := range []string{"src", "href"} {
		for _, ref := range doc.ElementsWithAttr(attr) {
			val, ok := doc.Attr(ref, attr)
			if !ok || !isLocalAsset(val) {
				continue
			}
			rel := filepath.Clean(filepath.FromSlash(strings.SplitN(val, "#", 2)[0]))
			if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
				continue
			}
			// The page itself was already serialized; copying the source
			// over it would undo the render.
			if rel == indexName {
				continue
			}
			if _, dup := seen[rel]; dup {
				continue
			}
			seen[rel] = struct{}{}

			src := filepath.Join(root, rel)
			info, err := os.Stat(src)
			if err != nil || !info.Mode().IsRegular() {
				slog.Debug("asset skipped",
					slog.String("ref", val),
					slog.String("path", src))
				continue
			}

			dst := filepath.Join(out, rel)
			if err := copyFile(src, dst); err != nil {
				return copied, errors.New(errors.ErrCodeRenderFailed,
					fmt.Sprintf("cannot copy asset %s", rel), err).
					WithDetail("source", src).
					WithDetail("dest", dst)
			}
			copied++
		}
	}
	return copied, nil
}

// cleanDir empties a directory, keeping the render lock file alive.
func cleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.New(errors.ErrCodeRenderFailed,
			"cannot clean output directory", err).
			WithDetail("output", dir)
	}
	for _, entry := range entries {
		if entry.Name() == lockFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return errors.New(errors.ErrCodeRenderFailed,
				"cannot clean output directory", err).
				WithDetail("path", filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}

// isLocalAsset reports whether an attribute value names a file inside the
// site rather than an external or in-page target.
func isLocalAsset(val string) bool {
	if val == "" || strings.HasPrefix(val, "#") {
		return false
	}
	lower := strings.ToLower(val)
	for _, prefix := range []string{"http://", "https://", "//", "data:", "mailto:", "tel:", "javascript:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// copyFile copies src to dst, creating parent directories.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
