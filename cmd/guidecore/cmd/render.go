package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dubedition/guidecore/internal/output"
	"github.com/dubedition/guidecore/internal/render"
)

// renderOptions holds CLI flags for render.
type renderOptions struct {
	output  string
	clean   bool
	jsonOut bool
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the guide to static HTML",
		Long: `Load every fragment and write the finished page to the output
directory, together with the local assets it references.

Fragments that fail to load do not abort the render; their placeholders
keep the error state in the output and the failure is listed in the
summary. The output directory is lock-guarded, so a second render into
the same directory fails fast instead of interleaving files.

Examples:
  guidecore render
  guidecore render --output ./public --clean
  guidecore render --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output directory (default: site config render.output)")
	cmd.Flags().BoolVar(&opts.clean, "clean", false, "Empty the output directory before rendering")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the render summary as JSON")

	return cmd
}

func runRender(ctx context.Context, cmd *cobra.Command, opts renderOptions) error {
	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	// JSON mode keeps stdout machine-readable; progress would race the
	// summary on the same terminal anyway.
	var reporter render.Reporter
	if !opts.jsonOut {
		reporter = render.NewReporter()
	}

	renderer := render.New(engine, render.Options{
		Output:   opts.output,
		Clean:    opts.clean,
		Reporter: reporter,
	})

	res, err := renderer.Run(ctx)
	if err != nil {
		return err
	}

	if opts.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	out := output.New(cmd.OutOrStdout())
	out.Successf("Rendered %s to %s", engine.Config().Site.Title, res.Output)
	out.Statusf("", "Fragments: %d loaded, %d failed, %d already loaded",
		res.Fragments.Loaded, res.Fragments.Failed, res.Fragments.Skipped)
	out.Statusf("", "Assets copied: %d", res.Assets)
	out.Statusf("⏱️ ", "Completed in %.1fs", res.Duration.Seconds())

	if res.Fragments.Failed > 0 {
		out.Newline()
		out.Warning("Some fragments failed; their placeholders keep the error state:")
		lines := make([]string, 0, len(res.Fragments.Errors))
		for id, msg := range res.Fragments.Errors {
			lines = append(lines, fmt.Sprintf("%s: %s", id, msg))
		}
		sort.Strings(lines)
		for _, line := range lines {
			out.Detail(line)
		}
	}
	return nil
}
