// Package cmd provides the CLI commands for guidecore.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dubedition/guidecore/internal/config"
	"github.com/dubedition/guidecore/internal/guide"
	"github.com/dubedition/guidecore/internal/logging"
	"github.com/dubedition/guidecore/internal/profiling"
	"github.com/dubedition/guidecore/pkg/version"
)

// Persistent flags shared by every command.
var (
	// sitePath is the --site override; empty means discovery walks up
	// from the working directory.
	sitePath string

	debugMode      bool
	loggingCleanup func()

	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// NewRootCmd creates the root command for the guidecore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guidecore",
		Short: "Search and serve lazy-loading guide sites",
		Long: `GuideCore works with guide sites: a single HTML page whose content
sections are loaded lazily from fragment files. It indexes the page for
instant keyword search and can serve, render, and expose the guide to
AI coding assistants.

Run it inside a site directory, or point --site at one.

Running with no arguments opens the interactive search UI.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTUI(ctx, cmd, tuiOptions{})
		},
	}

	cmd.SetVersionTemplate("guidecore version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&sitePath, "site", "",
		"Path to the guide site root (default: auto-detect from the working directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging to "+logging.DefaultLogPath())
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startCommandDiagnostics
	cmd.PersistentPostRunE = stopCommandDiagnostics

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newTUICmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startCommandDiagnostics routes engine logs to the guidecore log file
// so command output stays clean, and starts profiling when requested.
// The mcp command configures its own stdio-safe logging instead.
func startCommandDiagnostics(cmd *cobra.Command, _ []string) error {
	if cmd.Name() != "mcp" {
		cfg := logging.DefaultConfig()
		cfg.WriteToStderr = false
		if debugMode {
			cfg.Level = "debug"
		}

		logger, cleanup, err := logging.Setup(cfg)
		if err == nil {
			// An unwritable log directory never blocks the command itself.
			loggingCleanup = cleanup
			slog.SetDefault(logger)

			if debugMode {
				slog.Info("debug logging enabled",
					slog.String("log_file", logging.DefaultLogPath()),
					slog.String("version", version.Version))
			}
		}
	}

	if profileCPU != "" {
		cleanup, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		cpuCleanup = cleanup
	}
	if profileTrace != "" {
		cleanup, err := profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
				cpuCleanup = nil
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
		traceCleanup = cleanup
	}
	return nil
}

// stopCommandDiagnostics stops profiling, writes the heap profile if
// requested, and closes the log file.
func stopCommandDiagnostics(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write heap profile: %v\n", err)
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// resolveSiteRoot returns the site root for this invocation. An explicit
// --site wins; otherwise discovery walks up from the working directory
// looking for .guidecore.yaml, an index.html, or a .git marker.
func resolveSiteRoot() (string, error) {
	if sitePath != "" {
		abs, err := filepath.Abs(sitePath)
		if err != nil {
			return "", fmt.Errorf("cannot resolve --site path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("site directory %s: %w", abs, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("--site must name a directory, got %s", abs)
		}
		return abs, nil
	}
	return config.FindSiteRoot(".")
}

// loadSiteConfig resolves the site root and loads its merged
// configuration, pinning the config's site root to the resolved path.
func loadSiteConfig() (*config.Config, error) {
	root, err := resolveSiteRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	cfg.Site.Root = root
	return cfg, nil
}

// startEngine brings up an initialized engine over cfg. The caller owns
// Close.
func startEngine(ctx context.Context, cfg *config.Config) (*guide.Engine, error) {
	engine, err := guide.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := engine.Initialize(ctx); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

// openEngine is the common command preamble: resolve the site, load its
// config, and initialize an engine over it.
func openEngine(ctx context.Context) (*guide.Engine, error) {
	cfg, err := loadSiteConfig()
	if err != nil {
		return nil, err
	}
	return startEngine(ctx, cfg)
}

// getFileSize returns the size of a file in bytes, zero when unreadable.
func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
