package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snippetEngine builds an engine whose options matter but whose document
// does not; snippets are computed from hand-built units.
func snippetEngine(min, max int) *Engine {
	opts := DefaultOptions()
	opts.SnippetMin = min
	opts.SnippetMax = max
	return NewEngine(nil, opts)
}

// unitWithContent builds an indexed unit carrying only body text.
func unitWithContent(content string) *indexed {
	return &indexed{
		Unit:         Unit{ID: "u", Content: content},
		lowerContent: strings.ToLower(content),
	}
}

func TestSnippet_ShortContentReturnedWhole(t *testing.T) {
	engine := snippetEngine(80, 100)
	unit := unitWithContent("Short body with a keyword inside.")

	got := engine.snippet(unit, []string{"keyword"})

	assert.Equal(t, "Short body with a keyword inside.", got)
	assert.NotContains(t, got, ellipsis)
}

func TestSnippet_WindowsAroundEarliestKeyword(t *testing.T) {
	// Given: a long body with the keyword far from both edges
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("filler words drift along here ")
	}
	sb.WriteString("thermal paste application ")
	for i := 0; i < 30; i++ {
		sb.WriteString("more trailing filler text here ")
	}
	engine := snippetEngine(80, 100)
	unit := unitWithContent(sb.String())

	// When: the snippet is derived
	got := engine.snippet(unit, []string{"thermal"})

	// Then: it is ellipsized on both edges and centered on the match
	assert.True(t, strings.HasPrefix(got, ellipsis))
	assert.True(t, strings.HasSuffix(got, ellipsis))
	assert.Contains(t, got, "thermal")

	// And: the window respects the configured bounds
	core := strings.TrimSuffix(strings.TrimPrefix(got, ellipsis), ellipsis)
	assert.GreaterOrEqual(t, len(core), 80)
	assert.LessOrEqual(t, len(core), 100)
}

func TestSnippet_KeywordAtStart_NoLeadingEllipsis(t *testing.T) {
	content := "Battery care starts with charge limits. " +
		strings.Repeat("Keep the cell between twenty and eighty percent. ", 10)
	engine := snippetEngine(80, 100)
	unit := unitWithContent(content)

	got := engine.snippet(unit, []string{"battery"})

	assert.False(t, strings.HasPrefix(got, ellipsis))
	assert.True(t, strings.HasSuffix(got, ellipsis))
	assert.True(t, strings.HasPrefix(got, "Battery care"))
}

func TestSnippet_ExpandsToWordBoundaries(t *testing.T) {
	// Given: a body of known words
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot",
		"golf", "hotel", "india", "juliett", "kilo", "lima", "mike",
		"november", "oscar", "papa", "quebec", "romeo", "sierra", "tango",
		"uniform", "victor", "whiskey", "xray", "yankee", "zulu"}
	content := strings.Join(words, " ") + " " + strings.Join(words, " ")
	engine := snippetEngine(40, 60)
	unit := unitWithContent(content)

	// When: a mid-body keyword is matched
	got := engine.snippet(unit, []string{"november"})
	core := strings.TrimSuffix(strings.TrimPrefix(got, ellipsis), ellipsis)

	// Then: the window edges land on whole words from the source
	fields := strings.Fields(core)
	require.NotEmpty(t, fields)
	assert.Contains(t, words, fields[0])
	assert.Contains(t, words, fields[len(fields)-1])
	assert.Contains(t, fields, "november")
}

func TestSnippet_TitleOnlyMatch_ExcerptsHead(t *testing.T) {
	// A unit matched through its title still gets a body excerpt, taken
	// from the start of the content.
	content := strings.Repeat("The fan curve stays quiet under light load. ", 8)
	engine := snippetEngine(80, 100)
	unit := unitWithContent(content)

	got := engine.snippet(unit, []string{"absentword"})

	assert.True(t, strings.HasPrefix(got, "The fan curve"))
	assert.True(t, strings.HasSuffix(got, ellipsis))
}

func TestSnippet_EmptyContent_EmptySnippet(t *testing.T) {
	engine := snippetEngine(80, 100)
	unit := unitWithContent("")

	assert.Empty(t, engine.snippet(unit, []string{"anything"}))
}

func TestSnippet_MultibyteContent_CutsOnRuneBoundaries(t *testing.T) {
	content := strings.Repeat("héllo wörld çafé über ", 20)
	engine := snippetEngine(40, 50)
	unit := unitWithContent(content)

	got := engine.snippet(unit, []string{"çafé"})

	// The snippet must stay valid UTF-8 with the match inside.
	assert.Contains(t, got, "çafé")
	for _, r := range got {
		assert.NotEqual(t, rune(0xFFFD), r, "snippet split a rune")
	}
}

func TestQuery_SnippetsAttachedToResults(t *testing.T) {
	// End to end: a long section produces an ellipsized snippet in its
	// query result.
	long := strings.Repeat("Steam input profiles map buttons to actions. ", 6)
	page := `<html><body><main id="content">
	  <section id="input"><h2>Input</h2><p>` + long + `</p></section>
	</main></body></html>`
	_, engine := newEngineFixture(t, page, nil)

	out := engine.Query("profiles")

	require.Len(t, out.Results, 1)
	snippet := out.Results[0].Snippet
	assert.Contains(t, snippet, "profiles")
	assert.True(t, strings.HasSuffix(snippet, ellipsis))
}
