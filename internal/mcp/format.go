package mcp

import (
	"fmt"
	"sort"
	"strings"
)

// FormatSearch formats a search outcome as markdown.
func FormatSearch(query string, out SearchGuideOutput) string {
	if len(out.Results) == 0 {
		if out.Message != "" {
			return out.Message
		}
		return fmt.Sprintf("No results for %q", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for %q\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d result", out.Total))
	if out.Total != 1 {
		sb.WriteString("s")
	}
	if out.Total > len(out.Results) {
		sb.WriteString(fmt.Sprintf(" (showing %d)", len(out.Results)))
	}
	sb.WriteString("\n\n")

	for i, hit := range out.Results {
		title := hit.Title
		if title == "" {
			title = hit.ID
		}
		fmt.Fprintf(&sb, "### %d. %s (score: %d)\n", i+1, title, hit.Score)
		fmt.Fprintf(&sb, "Section: `%s`", hit.ID)
		if hit.Kind == "heading" {
			sb.WriteString(" (jump-to heading)")
		}
		sb.WriteString("\n")
		if hit.Snippet != "" {
			fmt.Fprintf(&sb, "> %s\n", hit.Snippet)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatSection formats a section's content as markdown.
func FormatSection(out ReadSectionOutput) string {
	var sb strings.Builder
	if out.Title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", out.Title))
	}
	sb.WriteString(fmt.Sprintf("Section: `%s`\n\n", out.ID))
	text := strings.TrimSpace(out.Text)
	if text == "" {
		sb.WriteString("(empty section)\n")
	} else {
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatLoadResult formats a fragment load batch as markdown.
func FormatLoadResult(out LoadFragmentsOutput) string {
	var sb strings.Builder
	sb.WriteString("## Fragment Load\n\n")
	fmt.Fprintf(&sb, "Loaded %d, failed %d, already loaded %d\n",
		out.Loaded, out.Failed, out.Skipped)

	if len(out.Errors) > 0 {
		sb.WriteString("\n**Failures:**\n")
		ids := make([]string, 0, len(out.Errors))
		for id := range out.Errors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&sb, "- `%s`: %s\n", id, out.Errors[id])
		}
	}

	return sb.String()
}

// FormatStatus formats engine status as markdown.
func FormatStatus(out GuideStatusOutput) string {
	st := out.Status
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s %s\n\n", out.Name, out.Version)
	fmt.Fprintf(&sb, "**Guide:** %s\n", st.Title)
	fmt.Fprintf(&sb, "**Page:** %s\n", st.PagePath)
	fmt.Fprintf(&sb, "**Indexed sections:** %d (generation %d)\n", st.Units, st.Generation)
	fmt.Fprintf(&sb, "**Fragments:** %d total (%d loaded, %d pending, %d loading, %d failed)\n",
		st.Fragments.Total, st.Fragments.Loaded, st.Fragments.Pending,
		st.Fragments.Loading, st.Fragments.Failed)
	if st.Reloads > 0 {
		fmt.Fprintf(&sb, "**Reloads:** %d\n", st.Reloads)
	}
	return sb.String()
}
