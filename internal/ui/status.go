package ui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/dubedition/guidecore/internal/guide"
)

// StatusInfo is the view model for the status command and the plain
// session's :status output.
type StatusInfo struct {
	// Guide identity
	Title    string `json:"title"`
	SiteRoot string `json:"site_root"`
	PagePath string `json:"page_path"`
	SiteKind string `json:"site_kind"`
	PageSize int64  `json:"page_size,omitempty"`

	// Document and index stats
	NodeCount  int    `json:"node_count"`
	Units      int    `json:"units"`
	Generation uint64 `json:"generation"`
	Reloads    uint64 `json:"reloads"`

	Fragments guide.FragmentStats `json:"fragments"`

	// Component status
	WatcherStatus string `json:"watcher_status,omitempty"` // "running", "stopped", "n/a"
}

// NewStatusInfo builds the view model from an engine status snapshot.
// Callers fill PageSize and WatcherStatus themselves.
func NewStatusInfo(st guide.Status) StatusInfo {
	return StatusInfo{
		Title:      st.Title,
		SiteRoot:   st.SiteRoot,
		PagePath:   st.PagePath,
		SiteKind:   st.SiteKind.String(),
		NodeCount:  st.NodeCount,
		Units:      st.Units,
		Generation: st.Generation,
		Reloads:    st.Reloads,
		Fragments:  st.Fragments,
	}
}

// StatusRenderer displays guide status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	// Header
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Guide Status: "+info.Title))

	// Guide identity
	_, _ = fmt.Fprintf(r.out, "  Site root: %s\n", info.SiteRoot)
	_, _ = fmt.Fprintf(r.out, "  Page:      %s", info.PagePath)
	if info.PageSize > 0 {
		_, _ = fmt.Fprintf(r.out, " (%s)", FormatBytes(info.PageSize))
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "  Site kind: %s\n", info.SiteKind)
	_, _ = fmt.Fprintf(r.out, "  Nodes:     %d\n", info.NodeCount)
	_, _ = fmt.Fprintln(r.out)

	// Search index
	_, _ = fmt.Fprintln(r.out, "  Search index:")
	_, _ = fmt.Fprintf(r.out, "    Units:      %d\n", info.Units)
	_, _ = fmt.Fprintf(r.out, "    Generation: %d\n", info.Generation)
	if info.Reloads > 0 {
		_, _ = fmt.Fprintf(r.out, "    Reloads:    %d\n", info.Reloads)
	}
	_, _ = fmt.Fprintln(r.out)

	// Fragments
	_, _ = fmt.Fprintln(r.out, "  Fragments:")
	_, _ = fmt.Fprintf(r.out, "    Total:   %d\n", info.Fragments.Total)
	_, _ = fmt.Fprintf(r.out, "    Loaded:  %s\n", r.renderCount(info.Fragments.Loaded, r.styles.Success))
	_, _ = fmt.Fprintf(r.out, "    Pending: %d\n", info.Fragments.Pending)
	if info.Fragments.Loading > 0 {
		_, _ = fmt.Fprintf(r.out, "    Loading: %d\n", info.Fragments.Loading)
	}
	_, _ = fmt.Fprintf(r.out, "    Failed:  %s\n", r.renderCount(info.Fragments.Failed, r.styles.Error))

	// Watcher status
	if info.WatcherStatus != "" && info.WatcherStatus != "n/a" {
		_, _ = fmt.Fprintf(r.out, "\n  Watcher: %s\n", r.renderState(info.WatcherStatus))
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderCount colors a count only when it is non-zero.
func (r *StatusRenderer) renderCount(n int, style lipgloss.Style) string {
	s := fmt.Sprintf("%d", n)
	if n > 0 {
		return style.Render(s)
	}
	return s
}

// renderState formats a component state with color.
func (r *StatusRenderer) renderState(state string) string {
	switch state {
	case "ready", "running":
		return r.styles.Success.Render(state)
	case "offline", "stopped":
		return r.styles.Warning.Render(state)
	case "error":
		return r.styles.Error.Render(state)
	default:
		return state
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
