package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dubedition/guidecore/internal/guide"
	"github.com/dubedition/guidecore/internal/output"
	"github.com/dubedition/guidecore/internal/server"
	"github.com/dubedition/guidecore/internal/watcher"
)

// shutdownGrace bounds draining in-flight requests at shutdown.
const shutdownGrace = 5 * time.Second

// serveOptions holds CLI flags for serve.
type serveOptions struct {
	host    string
	port    int
	noWatch bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the guide over HTTP with live reload",
		Long: `Serve the guide page, the search and fragment API, and the site's
static content over HTTP.

While serving, the site root is watched for changes: edits reload the
page, rebuild the search index, and notify connected browsers over the
live-reload WebSocket. The render output directory is ignored so a
render pass does not retrigger itself.

Examples:
  guidecore serve
  guidecore serve --port 9000
  guidecore serve --no-watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "Listen host (default: site config server.host)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Listen port (default: site config server.port)")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not watch the site for changes")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadSiteConfig()
	if err != nil {
		return err
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}

	engine, err := startEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := server.New(engine)

	watching := cfg.Watch.Enabled && !opts.noWatch
	if watching {
		w, err := startSiteWatcher(ctx, engine)
		if err != nil {
			slog.Warn("site watcher unavailable, live reload limited to fragment events",
				slog.String("error", err.Error()))
			watching = false
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("🌐", "Serving %s at http://%s", cfg.Site.Title, srv.Addr())
	if watching {
		out.Statusf("👀", "Watching %s for changes", engine.SiteRoot())
	}
	out.Status("", "Press Ctrl+C to stop")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown incomplete", slog.String("error", err.Error()))
		}
		<-errCh
		out.Newline()
		out.Status("", "Server stopped")
		return nil
	}
}

// startSiteWatcher watches the site root and reloads the engine after
// each debounced change burst. The live-reload hub notices the reload
// through the loader swap and pushes refresh notices on its own.
func startSiteWatcher(ctx context.Context, engine *guide.Engine) (*watcher.HybridWatcher, error) {
	cfg := engine.Config()

	wopts := watcher.DefaultOptions()
	wopts.DebounceWindow = cfg.DebounceDuration()
	if cfg.Render.Output != "" {
		wopts.IgnorePatterns = append(wopts.IgnorePatterns, cfg.Render.Output)
	}

	w, err := watcher.NewHybridWatcher(wopts)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx, engine.SiteRoot()); err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-w.Events():
				if !ok {
					return
				}
				applySiteEvents(ctx, engine, drainEvents(w, batch))
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				slog.Warn("site watcher error", slog.String("error", err.Error()))
			}
		}
	}()
	return w, nil
}

// drainEvents gathers whatever other batches the debouncer flushed
// alongside the first so one change burst maps to one reload.
func drainEvents(w *watcher.HybridWatcher, first []watcher.FileEvent) []watcher.FileEvent {
	evs := first
	for {
		select {
		case batch, ok := <-w.Events():
			if !ok {
				return evs
			}
			evs = append(evs, batch...)
		default:
			return evs
		}
	}
}

// applySiteEvents reloads the page once per change burst. Config edits
// only log; the running process keeps its startup configuration.
func applySiteEvents(ctx context.Context, engine *guide.Engine, evs []watcher.FileEvent) {
	reload := false
	for _, ev := range evs {
		switch ev.Operation {
		case watcher.OpConfigChange:
			slog.Info("site config changed, restart to apply",
				slog.String("path", ev.Path))
		case watcher.OpIgnoreChange:
			slog.Debug("ignore rules reloaded", slog.String("path", ev.Path))
		default:
			if !ev.IsDir {
				reload = true
			}
		}
	}
	if !reload {
		return
	}

	if err := engine.Reload(ctx); err != nil {
		slog.Error("page reload failed", slog.String("error", err.Error()))
		return
	}
	slog.Info("page reloaded after site change", slog.Int("events", len(evs)))
}
