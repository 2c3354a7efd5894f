package adf_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/ccfm/pkg/adf"
)

func TestRenderNilDocument(t *testing.T) {
	assert.Equal(t, "", adf.RenderDocument(nil))
	assert.Equal(t, "", adf.Render(nil))
}

func TestRenderHeadingAndParagraph(t *testing.T) {
	doc := adf.Convert("# Title\n\nBody text")
	out := adf.RenderDocument(doc)
	assert.Contains(t, out, "# Title")
	assert.Contains(t, out, "Body text")
}

func TestRenderMarksRoundTrip(t *testing.T) {
	doc := adf.Convert("**bold** and `code` and ~~strike~~")
	out := adf.RenderDocument(doc)
	assert.Contains(t, out, "**bold**")
	assert.Contains(t, out, "`code`")
	assert.Contains(t, out, "~~strike~~")
}

func TestRenderLists(t *testing.T) {
	doc := adf.Convert("- one\n- two\n\n1. first\n2. second")
	out := adf.RenderDocument(doc)
	assert.Contains(t, out, "- one")
	assert.Contains(t, out, "1. first")
	assert.Contains(t, out, "2. second")
}

func TestRenderTaskList(t *testing.T) {
	doc := adf.Convert("- [ ] open\n- [x] closed")
	out := adf.RenderDocument(doc)
	assert.Contains(t, out, "- [ ] open")
	assert.Contains(t, out, "- [x] closed")
}

func TestRenderPanelAndExpand(t *testing.T) {
	doc := adf.Convert("> [!warning]\n> Careful now")
	out := adf.RenderDocument(doc)
	assert.Contains(t, out, "[!warning]")
	assert.Contains(t, out, "Careful now")

	doc = adf.Convert("> [!expand More]\n> hidden")
	out = adf.RenderDocument(doc)
	assert.Contains(t, out, "[!expand More]")
}

func TestRenderStatusAndDate(t *testing.T) {
	doc := adf.Convert("::Shipped::green:: on @date:2024-03-15")
	out := adf.RenderDocument(doc)
	assert.Contains(t, out, "::Shipped::green::")
	assert.Contains(t, out, "@date:2024-03-15")
}

func TestRenderTable(t *testing.T) {
	doc := adf.Convert("| A | B |\n|---|---|\n| 1 | 2 |")
	out := adf.RenderDocument(doc)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.True(t, strings.HasPrefix(lines[0], "|"))
	assert.Contains(t, lines[1], "---")
}

func TestRenderCodeBlock(t *testing.T) {
	doc := adf.Convert("```go\nfmt.Println(1)\n```")
	out := adf.RenderDocument(doc)
	assert.Contains(t, out, "```go")
	assert.Contains(t, out, "fmt.Println(1)")
}

func TestRenderExternalMedia(t *testing.T) {
	doc := adf.Convert("![alt text](pic.png)")
	out := adf.RenderDocument(doc)
	assert.Contains(t, out, "![alt text](pic.png)")
}
