package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dubedition/guidecore/internal/logging"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
}

func newLogsCmd() *cobra.Command {
	opts := &logsOptions{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View guidecore log files",
		Long: `View and follow guidecore log files.

Logs are written as JSON lines to ` + logging.DefaultLogPath() + `
when commands run with --debug, and always for the MCP server. This
command pretty-prints them with optional level and pattern filters.`,
		Example: `  # Show the last 50 entries
  guidecore logs

  # Follow new entries as they arrive
  guidecore logs -f

  # Only warnings and errors mentioning fragments
  guidecore logs --level warn --filter fragment`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow the log file for new entries")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of recent entries to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show entries matching this regexp")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Log file to read (default: "+logging.DefaultLogPath()+")")

	return cmd
}

func runLogs(cmd *cobra.Command, opts *logsOptions) error {
	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return fmt.Errorf("no log file found: %w (run a command with --debug to create one)", err)
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor,
	}, cmd.OutOrStdout())

	// Keep the banner off stdout so piped output stays clean.
	fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n", path)

	if opts.follow {
		return followLogs(cmd, viewer, path)
	}

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

func followLogs(cmd *cobra.Command, viewer *logging.Viewer, path string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(cmd.ErrOrStderr(), "Following... (Ctrl+C to stop)")
	fmt.Fprintln(cmd.ErrOrStderr(), "---")

	entries := make(chan logging.LogEntry, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
