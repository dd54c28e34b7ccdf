package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCmd_WritesFinishedPage(t *testing.T) {
	// Given: a site and an output directory
	dir := writeTestSite(t, testPage)
	chdir(t, dir)
	outDir := filepath.Join(t.TempDir(), "dist")

	// When: rendering
	cmd := newRenderCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--output", outDir})

	err := cmd.Execute()

	// Then: the page lands in the output directory and the summary says so
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Rendered")
	assert.Contains(t, buf.String(), "Assets copied:")

	data, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Deck Guide")
}

func TestRenderCmd_InlinesFragments(t *testing.T) {
	// Given: a site whose appendix is a lazy fragment
	page := `<!DOCTYPE html>
<html><head><title>Deck Guide</title></head><body>
<main id="content">
  <section id="intro"><h2>Introduction</h2><p>Welcome aboard.</p></section>
  <section id="appendix" data-content-src="appendix.html"></section>
</main>
</body></html>`
	dir := writeTestSite(t, page)
	frag := `<h2>Appendix</h2><p>Firmware recovery steps.</p>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "appendix.html"), []byte(frag), 0o644))
	chdir(t, dir)
	outDir := filepath.Join(t.TempDir(), "dist")

	// When: rendering
	cmd := newRenderCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--output", outDir})

	err := cmd.Execute()

	// Then: the fragment body is inlined in the written page
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Firmware recovery steps")
}

func TestRenderCmd_JSONSummary(t *testing.T) {
	// Given: a site and an output directory
	dir := writeTestSite(t, testPage)
	chdir(t, dir)
	outDir := filepath.Join(t.TempDir(), "dist")

	// When: rendering with --json
	cmd := newRenderCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--output", outDir, "--json"})

	err := cmd.Execute()

	// Then: stdout is a machine-readable summary pointing at real files
	require.NoError(t, err)
	var got struct {
		Output    string `json:"output"`
		IndexFile string `json:"index_file"`
		Assets    int    `json:"assets"`
		Fragments struct {
			Loaded int `json:"loaded"`
			Failed int `json:"failed"`
		} `json:"fragments"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 0, got.Fragments.Failed)
	assert.FileExists(t, got.IndexFile)
	assert.DirExists(t, got.Output)
}

func TestRenderCmd_HasFlags(t *testing.T) {
	// Given: a render command
	cmd := newRenderCmd()

	// Then: output, clean, and json flags exist with safe defaults
	outFlag := cmd.Flags().Lookup("output")
	require.NotNil(t, outFlag, "Should have --output flag")
	assert.Equal(t, "", outFlag.DefValue, "Output should default to the site config")

	cleanFlag := cmd.Flags().Lookup("clean")
	require.NotNil(t, cleanFlag, "Should have --clean flag")
	assert.Equal(t, "false", cleanFlag.DefValue, "Clean must be opt-in")

	jsonFlag := cmd.Flags().Lookup("json")
	require.NotNil(t, jsonFlag, "Should have --json flag")
}
