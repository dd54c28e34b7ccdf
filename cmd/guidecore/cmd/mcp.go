package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dubedition/guidecore/internal/logging"
	"github.com/dubedition/guidecore/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server for AI assistants",
		Long: `Run the Model Context Protocol server, exposing the guide to AI
coding assistants like Claude Code and Cursor.

The protocol runs JSON-RPC over stdio, so this command writes nothing
to stdout or stderr itself; diagnostics go to ` + logging.DefaultLogPath() + `.

Tools: search_guide, read_section, load_fragments, guide_status.

Example .mcp.json entry:
  {
    "mcpServers": {
      "guidecore": {
        "type": "stdio",
        "command": "guidecore",
        "args": ["mcp", "--site", "/path/to/site"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMCP(ctx, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (stdio)")

	return cmd
}

func runMCP(ctx context.Context, transport string) error {
	// Stdout carries JSON-RPC exclusively; route logs to file before
	// anything else can write.
	if cleanup, err := logging.SetupMCPMode(); err == nil {
		defer cleanup()
	}

	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv, err := mcp.NewServer(engine)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, transport)
}
