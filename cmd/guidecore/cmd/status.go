package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dubedition/guidecore/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show guide and fragment status",
		Long: `Display the current state of the guide site:
  - Site root, entry page, and detected content kind
  - Search index size and rebuild generation
  - Fragment counts by state (pending, loading, loaded, failed)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	st := engine.Status()
	info := ui.NewStatusInfo(st)
	info.PageSize = getFileSize(st.PagePath)
	// A one-shot command has nothing watching the site.
	info.WatcherStatus = "n/a"

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}
