package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dubedition/guidecore/internal/guide"
	"github.com/dubedition/guidecore/internal/output"
	"github.com/dubedition/guidecore/internal/search"
)

// refreshWait bounds how long --load waits for the search index rebuild
// that follows a fragment load.
const refreshWait = 2 * time.Second

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	format string // "text", "json"
	load   bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the guide from the shell",
		Long: `Search the guide's section index and print ranked results.

Keywords in section titles weigh more than keywords in body text, and a
single-word query that equals a title exactly ranks highest. Content
that has not been loaded yet is not in the index; use --load to fetch
pending fragments first.

Examples:
  guidecore search "audio levels"
  guidecore search deck --limit 5
  guidecore search mixer --format json
  guidecore search appendix --load`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: site config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.load, "load", false, "Load pending fragments before searching")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadSiteConfig()
	if err != nil {
		return err
	}
	if opts.limit > 0 {
		cfg.Search.MaxResults = opts.limit
	}

	engine, err := startEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	if opts.load {
		gen := engine.Status().Generation
		batch := engine.LoadAll(ctx)
		slog.Info("fragments loaded before search",
			slog.Int("loaded", batch.Loaded),
			slog.Int("failed", batch.Failed))
		if batch.Loaded > 0 {
			waitForRefresh(ctx, engine, gen)
		}
	}

	outcome := engine.Search(query)
	slog.Info("search complete",
		slog.String("query", query),
		slog.String("state", outcome.State.String()),
		slog.Int("total", outcome.Total))

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	printOutcome(output.New(cmd.OutOrStdout()), outcome)
	return nil
}

// waitForRefresh blocks until the index generation moves past gen. The
// rebuild after a fragment load rides the event bus asynchronously, so a
// one-shot command has to give it time to land.
func waitForRefresh(ctx context.Context, engine *guide.Engine, gen uint64) {
	deadline := time.Now().Add(refreshWait)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		if engine.Status().Generation > gen {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// printOutcome renders a search outcome as readable text.
func printOutcome(out *output.Writer, outcome search.Outcome) {
	if msg := outcome.Message(); msg != "" {
		out.Status("", msg)
		return
	}

	if outcome.Total > len(outcome.Results) {
		out.Statusf("🔍", "Found %d results for %q (showing %d):",
			outcome.Total, outcome.Query, len(outcome.Results))
	} else {
		out.Statusf("🔍", "Found %d results for %q:", outcome.Total, outcome.Query)
	}
	out.Newline()

	for i, res := range outcome.Results {
		title := res.Unit.Title
		if title == "" {
			title = res.Unit.ID
		}
		if res.Unit.Kind == search.KindHeading {
			out.Statusf("", "%d. %s [jump-to] (#%s, score %d)", i+1, title, res.Unit.ID, res.Score)
		} else {
			out.Statusf("", "%d. %s (#%s, score %d)", i+1, title, res.Unit.ID, res.Score)
		}
		if res.Snippet != "" {
			out.Detail(res.Snippet)
		}
	}
}
