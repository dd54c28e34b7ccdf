package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dubedition/guidecore/internal/config"
	"github.com/dubedition/guidecore/internal/guide"
)

const guidePage = `<!DOCTYPE html>
<html><head><title>Deck Guide</title></head><body>
<nav id="sidebar"><a href="#audio">Audio</a></nav>
<main id="content">
  <section id="intro"><h2>Introduction</h2><p>Welcome to the deck setup guide.</p></section>
  <section id="audio" data-content-src="audio.html"></section>
  <section id="video" data-content-src="video.html"></section>
  <h3 id="quick-jump">Quick Jump</h3>
</main>
</body></html>`

// newMCPFixture builds an MCP server over a temp site.
func newMCPFixture(t *testing.T, content map[string]string) (*Server, *guide.Engine) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(guidePage), 0o644))
	for name, body := range content {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	cfg := config.NewConfig()
	cfg.Site.Root = dir
	engine, err := guide.New(cfg)
	require.NoError(t, err)
	require.NoError(t, engine.Initialize(context.Background()))
	t.Cleanup(engine.Close)

	srv, err := NewServer(engine)
	require.NoError(t, err)
	return srv, engine
}

var guideContent = map[string]string{
	"content/audio.html": `<h2>Audio</h2><p>Crank the volume mixer before docking.</p>`,
	"content/video.html": `<h2>Video</h2><p>Pick a refresh rate that matches the panel.</p>`,
}

// =============================================================================
// Server Construction Tests
// =============================================================================

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine")
}

func TestListTools_NamesAllFour(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	tools := srv.ListTools()

	require.Len(t, tools, 4)
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t,
		[]string{"search_guide", "read_section", "load_fragments", "guide_status"}, names)
}

// =============================================================================
// search_guide Tests
// =============================================================================

func TestSearchGuide_FindsStaticSections(t *testing.T) {
	// Given: the guide with its static intro section
	srv, _ := newMCPFixture(t, guideContent)

	// When: searching for intro content
	out, err := srv.searchGuide("welcome", 0)

	// Then: the intro section matches
	require.NoError(t, err)
	assert.Equal(t, "results", out.State)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "intro", out.Results[0].ID)
	assert.Equal(t, "Introduction", out.Results[0].Title)
}

func TestSearchGuide_EmptyQueryIsPromptNotNoResults(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	// When: the query is empty
	out, err := srv.searchGuide("", 0)

	// Then: the prompt state comes back, distinct from no_results
	require.NoError(t, err)
	assert.Equal(t, "prompt", out.State)
	assert.Equal(t, "Type to search", out.Message)
	assert.Empty(t, out.Results)

	// And: a miss is a different state
	miss, err := srv.searchGuide("zzzz", 0)
	require.NoError(t, err)
	assert.Equal(t, "no_results", miss.State)
	assert.Equal(t, `No results for "zzzz"`, miss.Message)
}

func TestSearchGuide_LimitTrimsResults(t *testing.T) {
	srv, engine := newMCPFixture(t, guideContent)
	engine.LoadAll(context.Background())

	// When: limiting to one result on a query matching several units
	out, err := srv.searchGuide("guide", 1)

	// Then: one result is returned, total still counts all matches
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.GreaterOrEqual(t, out.Total, 1)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 1, 50))
	assert.Equal(t, 1, clampLimit(-3, 10, 1, 50))
	assert.Equal(t, 50, clampLimit(500, 10, 1, 50))
	assert.Equal(t, 25, clampLimit(25, 10, 1, 50))
}

// =============================================================================
// read_section Tests
// =============================================================================

func TestReadSection_ReturnsStaticContent(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	out, err := srv.readSection(context.Background(), "intro")

	require.NoError(t, err)
	assert.Equal(t, "intro", out.ID)
	assert.Equal(t, "Introduction", out.Title)
	assert.Contains(t, out.Text, "Welcome to the deck")
	assert.Contains(t, out.HTML, "<section")
}

func TestReadSection_LoadsPlaceholderOnDemand(t *testing.T) {
	// Given: the audio section is an unloaded placeholder
	srv, engine := newMCPFixture(t, guideContent)
	rec, ok := engine.Loader().Record("audio")
	require.True(t, ok)
	require.Equal(t, "pending", rec.State)

	// When: reading it
	out, err := srv.readSection(context.Background(), "audio")

	// Then: the fragment was fetched and the content is complete
	require.NoError(t, err)
	assert.Contains(t, out.Text, "Crank the volume mixer")

	rec, _ = engine.Loader().Record("audio")
	assert.Equal(t, "loaded", rec.State)
}

func TestReadSection_UnknownIDIsSectionNotFound(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	_, err := srv.readSection(context.Background(), "nope")

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeSectionNotFound, mcpErr.Code)
}

func TestReadSection_EmptyIDIsInvalidParams(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	_, err := srv.readSection(context.Background(), "  ")

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

// =============================================================================
// load_fragments Tests
// =============================================================================

func TestLoadFragments_AllPending(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	out := srv.loadFragments(context.Background(), nil)

	assert.Equal(t, 2, out.Loaded)
	assert.Equal(t, 0, out.Failed)
	require.Len(t, out.Fragments, 2)
	for _, info := range out.Fragments {
		assert.Equal(t, "loaded", info.State)
	}
}

func TestLoadFragments_NamedSubset(t *testing.T) {
	srv, engine := newMCPFixture(t, guideContent)

	out := srv.loadFragments(context.Background(), []string{"audio"})

	assert.Equal(t, 1, out.Loaded)
	rec, _ := engine.Loader().Record("video")
	assert.Equal(t, "pending", rec.State)
}

func TestLoadFragments_UnknownIDReportsFailure(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	out := srv.loadFragments(context.Background(), []string{"audio", "nope"})

	assert.Equal(t, 1, out.Loaded)
	assert.Equal(t, 1, out.Failed)
	assert.Contains(t, out.Errors, "nope")
}

// =============================================================================
// guide_status and CallTool Tests
// =============================================================================

func TestGuideStatus_CountsFragments(t *testing.T) {
	srv, engine := newMCPFixture(t, guideContent)
	require.NoError(t, engine.Loader().Load(context.Background(), "audio"))

	out := srv.guideStatus()

	assert.Equal(t, "GuideCore", out.Name)
	assert.Equal(t, 2, out.Status.Fragments.Total)
	assert.Equal(t, 1, out.Status.Fragments.Loaded)
	assert.Equal(t, 1, out.Status.Fragments.Pending)
}

func TestCallTool_SearchReturnsMarkdown(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	md, err := srv.CallTool(context.Background(), "search_guide",
		map[string]any{"query": "welcome"})

	require.NoError(t, err)
	assert.Contains(t, md, `## Search Results for "welcome"`)
	assert.Contains(t, md, "Introduction")
	assert.Contains(t, md, "`intro`")
}

func TestCallTool_EmptyQueryReturnsPromptText(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	md, err := srv.CallTool(context.Background(), "search_guide",
		map[string]any{"query": ""})

	require.NoError(t, err)
	assert.Equal(t, "Type to search", md)
}

func TestCallTool_UnknownToolIsMethodNotFound(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	_, err := srv.CallTool(context.Background(), "bogus", nil)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestCallTool_LoadFragmentsAcceptsRawIDs(t *testing.T) {
	srv, _ := newMCPFixture(t, guideContent)

	md, err := srv.CallTool(context.Background(), "load_fragments",
		map[string]any{"ids": []interface{}{"audio"}})

	require.NoError(t, err)
	assert.Contains(t, md, "Loaded 1, failed 0")
}
