package htmldoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Attribute Mutation Tests
// =============================================================================

func TestSetAttr_AddsAndOverwrites(t *testing.T) {
	doc, err := ParseString(`<body><div id="x" class="old"></div></body>`)
	require.NoError(t, err)
	ref, _ := doc.ByID("x")

	doc.SetAttr(ref, "class", "new")
	doc.SetAttr(ref, "data-state", "loaded")

	class, _ := doc.Attr(ref, "class")
	state, _ := doc.Attr(ref, "data-state")
	assert.Equal(t, "new", class)
	assert.Equal(t, "loaded", state)

	out, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, `class="new"`)
	assert.Contains(t, out, `data-state="loaded"`)
}

func TestRemoveAttr_DropsAttribute(t *testing.T) {
	doc, err := ParseString(`<body><div id="x" data-tmp="1"></div></body>`)
	require.NoError(t, err)
	ref, _ := doc.ByID("x")

	doc.RemoveAttr(ref, "data-tmp")

	_, ok := doc.Attr(ref, "data-tmp")
	assert.False(t, ok)
}

func TestSetAttr_UnknownHandle_IsNoOp(t *testing.T) {
	doc, err := ParseString(`<body><div id="x"></div></body>`)
	require.NoError(t, err)

	// Must not panic
	doc.SetAttr(InvalidRef, "class", "v")
	doc.SetAttr(NodeRef(99999), "class", "v")
}

// =============================================================================
// Fragment Insertion Tests
// =============================================================================

func TestReplaceChildrenHTML_SingleContainer_MergesAttributes(t *testing.T) {
	// Given: a placeholder owner with a source-reference attribute
	doc, err := ParseString(`<body><div id="slot" class="shell" data-content-src="a.html">old text</div></body>`)
	require.NoError(t, err)
	ref, _ := doc.ByID("slot")

	// When: inserting a fragment whose root is a single container
	fragment := `<section class="fresh" data-content-src="other.html" data-extra="yes"><p>New content</p></section>`
	merged, err := doc.ReplaceChildrenHTML(ref, fragment, "data-content-src")

	// Then: the container is unwrapped, its attributes merged onto the
	// owner except the excluded source reference
	require.NoError(t, err)
	assert.True(t, merged)

	class, _ := doc.Attr(ref, "class")
	extra, _ := doc.Attr(ref, "data-extra")
	src, _ := doc.Attr(ref, "data-content-src")
	assert.Equal(t, "fresh", class, "container class should overwrite owner class")
	assert.Equal(t, "yes", extra, "container-only attributes should be merged")
	assert.Equal(t, "a.html", src, "excluded source ref must not be clobbered")

	out, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, "<p>New content</p>")
	assert.NotContains(t, out, "old text")
	assert.NotContains(t, out, "<section", "single container root should be unwrapped")
}

func TestReplaceChildrenHTML_MultiRoot_InsertsRaw(t *testing.T) {
	// Given: a placeholder owner
	doc, err := ParseString(`<body><div id="slot" class="shell">old</div></body>`)
	require.NoError(t, err)
	ref, _ := doc.ByID("slot")

	// When: inserting a fragment with several top-level nodes
	merged, err := doc.ReplaceChildrenHTML(ref, `<p>one</p><p>two</p>`)

	// Then: the nodes are inserted as-is and the owner's attributes are untouched
	require.NoError(t, err)
	assert.False(t, merged)

	class, _ := doc.Attr(ref, "class")
	assert.Equal(t, "shell", class)

	out, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, "<p>one</p><p>two</p>")
	assert.NotContains(t, out, "old")
}

func TestReplaceChildrenHTML_NonElementRoot_InsertsRaw(t *testing.T) {
	doc, err := ParseString(`<body><div id="slot"></div></body>`)
	require.NoError(t, err)
	ref, _ := doc.ByID("slot")

	// A comment root is not a container element
	merged, err := doc.ReplaceChildrenHTML(ref, `<!-- note --><p>x</p>`)

	require.NoError(t, err)
	assert.False(t, merged)
}

func TestReplaceChildrenHTML_LeadingWhitespace_StillMerges(t *testing.T) {
	doc, err := ParseString(`<body><div id="slot"></div></body>`)
	require.NoError(t, err)
	ref, _ := doc.ByID("slot")

	merged, err := doc.ReplaceChildrenHTML(ref, "\n  <article><p>body</p></article>\n  ")

	require.NoError(t, err)
	assert.True(t, merged, "surrounding whitespace should not defeat container detection")
}

func TestReplaceChildrenHTML_InsertedNodesAreQueryable(t *testing.T) {
	// Given: a fragment carrying its own identified elements and a
	// nested placeholder
	doc, err := ParseString(`<body><main id="content"><div id="slot"></div></main></body>`)
	require.NoError(t, err)
	ref, _ := doc.ByID("slot")

	fragment := `<section><h2 id="new-heading">Fresh</h2><div data-content-src="nested.html"></div></section>`
	_, err = doc.ReplaceChildrenHTML(ref, fragment)
	require.NoError(t, err)

	// Then: the inserted nodes are reachable through queries,
	// so re-indexing and re-scanning pick them up
	hRef, ok := doc.ByID("new-heading")
	require.True(t, ok)
	assert.Equal(t, "Fresh", doc.Text(hRef))

	placeholders := doc.ElementsWithAttr("data-content-src")
	require.Len(t, placeholders, 1)
	nestedSrc, _ := doc.Attr(placeholders[0], "data-content-src")
	assert.Equal(t, "nested.html", nestedSrc)
}

func TestReplaceChildrenHTML_UnknownHandle_ReturnsError(t *testing.T) {
	doc, err := ParseString(`<body></body>`)
	require.NoError(t, err)

	_, err = doc.ReplaceChildrenHTML(NodeRef(99999), `<p>x</p>`)

	assert.Error(t, err)
}

func TestAppendHTML_AddsChildren(t *testing.T) {
	doc, err := ParseString(`<body><div id="x"><p>first</p></div></body>`)
	require.NoError(t, err)
	ref, _ := doc.ByID("x")

	err = doc.AppendHTML(ref, `<p>second</p>`)

	require.NoError(t, err)
	assert.Equal(t, "first second", doc.Text(ref))
}

// =============================================================================
// Detached Node Tests
// =============================================================================

func TestDetach_RemovesFromOutputButKeepsHandle(t *testing.T) {
	// Given: an attached node
	doc, err := ParseString(`<body><div id="gone"><p>bye</p></div><div id="stays">hi</div></body>`)
	require.NoError(t, err)
	ref, _ := doc.ByID("gone")

	// When: the node is detached
	doc.Detach(ref)

	// Then: it vanishes from output but the handle still resolves
	out, err := doc.HTML()
	require.NoError(t, err)
	assert.NotContains(t, out, "bye")
	assert.Contains(t, out, "hi")
	assert.False(t, doc.IsAttached(ref))
	assert.Equal(t, "bye", doc.Text(ref), "detached subtree should stay readable")
}

func TestMutateDetachedNode_SilentNoOpOnOutput(t *testing.T) {
	// Given: a detached node, as when a fetch finishes after its
	// placeholder was removed from the page
	doc, err := ParseString(`<body><div id="slot">old</div></body>`)
	require.NoError(t, err)
	ref, _ := doc.ByID("slot")
	doc.Detach(ref)

	// When: mutating it anyway
	doc.SetAttr(ref, "data-state", "loaded")
	_, err = doc.ReplaceChildrenHTML(ref, `<p>late content</p>`)
	require.NoError(t, err)

	// Then: the mutations succeed but serialized output is unaffected
	out, err := doc.HTML()
	require.NoError(t, err)
	assert.NotContains(t, out, "late content")
	assert.NotContains(t, out, "loaded")
}

func TestDetach_RootOrUnknown_IsNoOp(t *testing.T) {
	doc, err := ParseString(`<body><p>x</p></body>`)
	require.NoError(t, err)

	// Must not panic
	doc.Detach(doc.Root())
	doc.Detach(InvalidRef)
	doc.Detach(NodeRef(99999))

	out, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, "<p>x</p>")
}
