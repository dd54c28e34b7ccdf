// Package ui provides the interactive search surfaces: a full-screen
// terminal UI for real TTYs and a line-oriented fallback for CI and pipes.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/dubedition/guidecore/internal/guide"
)

// Session is an interactive search surface over a guide engine.
type Session interface {
	// Run blocks until the user quits or ctx is cancelled.
	Run(ctx context.Context) error
}

// Config configures a session.
type Config struct {
	Output io.Writer
	// Input is where plain sessions read queries from. Defaults to stdin.
	Input      io.Reader
	ForcePlain bool
	NoColor    bool
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces the line-oriented session.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithInput sets the reader plain sessions take queries from.
func WithInput(in io.Reader) ConfigOption {
	return func(c *Config) {
		c.Input = in
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output: output,
		Input:  os.Stdin,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// NewSession creates an appropriate session based on config and environment.
// It returns the full-screen UI for interactive terminals, and the plain
// line-oriented session for CI environments, pipes, or when plain mode is
// forced.
func NewSession(engine *guide.Engine, cfg Config) Session {
	// Force plain mode if requested
	if cfg.ForcePlain {
		return NewPlainSession(engine, cfg)
	}

	// Use plain mode for non-TTY outputs
	if !IsTTY(cfg.Output) {
		return NewPlainSession(engine, cfg)
	}

	// Use plain mode in CI environments
	if DetectCI() {
		return NewPlainSession(engine, cfg)
	}

	// Try the full-screen UI, fall back to plain on failure
	tui, err := NewTUISession(engine, cfg)
	if err != nil {
		return NewPlainSession(engine, cfg)
	}

	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}

	// Check if it's a file that's a terminal
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
