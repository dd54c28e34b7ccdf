package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("→", "Loading fragments...")

	// Then: output contains icon and message
	output := buf.String()
	assert.Contains(t, output, "→")
	assert.Contains(t, output, "Loading fragments...")
}

func TestWriter_Success_PrintsCheckmark(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a success message
	w.Success("Render complete!")

	// Then: output contains checkmark and message
	output := buf.String()
	assert.Contains(t, output, "✓")
	assert.Contains(t, output, "Render complete!")
}

func TestWriter_Warning_PrintsWarningIcon(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a warning message
	w.Warning("2 fragments failed to load")

	// Then: output contains warning icon and message
	output := buf.String()
	assert.Contains(t, output, "⚠")
	assert.Contains(t, output, "2 fragments failed to load")
}

func TestWriter_Error_PrintsErrorIcon(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing an error message
	w.Error("Failed to read page")

	// Then: output contains error icon and message
	output := buf.String()
	assert.Contains(t, output, "✗")
	assert.Contains(t, output, "Failed to read page")
}

func TestWriter_Code_PrintsCodeBlock(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a code block
	code := `site:
  title: "Mixer Guide"`
	w.Code(code)

	// Then: every line lands indented
	output := buf.String()
	assert.Contains(t, output, "  site:")
	assert.Contains(t, output, `    title: "Mixer Guide"`)
}

func TestWriter_Statusf_FormatsMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a formatted status message
	w.Statusf("→", "Loaded %d fragments in %s", 4, "120ms")

	// Then: output contains formatted message
	output := buf.String()
	assert.Contains(t, output, "Loaded 4 fragments in 120ms")
}

func TestWriter_DetailIsIndented(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := NewPlain(buf)

	// When: printing a detail line
	w.Detailf("output: %s", "/tmp/site")

	// Then: the line is indented under its parent
	assert.Equal(t, "  output: /tmp/site\n", buf.String())
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a newline
	w.Newline()

	// Then: output is just a newline
	assert.Equal(t, "\n", buf.String())
}

func TestNew_BufferOutputStaysPlain(t *testing.T) {
	// Given: a non-TTY destination
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing styled text
	w.Header("Guide")

	// Then: no escape codes leak into the stream
	assert.Equal(t, "Guide\n", buf.String())
}
