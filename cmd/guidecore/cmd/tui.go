package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dubedition/guidecore/internal/ui"
)

// tuiOptions holds CLI flags for the interactive UI.
type tuiOptions struct {
	plain   bool
	noColor bool
}

func newTUICmd() *cobra.Command {
	var opts tuiOptions

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive search UI",
		Long: `Open the full-screen interactive search UI.

Type to search, tab to move between the query and the results, enter to
jump to a section, and "a" to load all pending fragments. Without a TTY
(pipes, CI) a line-based prompt is used instead.

Examples:
  guidecore tui
  guidecore tui --plain
  guidecore tui --no-color`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTUI(ctx, cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Force the line-based prompt (no full-screen UI)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runTUI(ctx context.Context, cmd *cobra.Command, opts tuiOptions) error {
	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	session := ui.NewSession(engine, ui.NewConfig(cmd.OutOrStdout(),
		ui.WithInput(cmd.InOrStdin()),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor)))
	return session.Run(ctx)
}
