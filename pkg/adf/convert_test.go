package adf_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/ccfm/pkg/adf"
)

func TestConvertEmptyInput(t *testing.T) {
	doc := adf.Convert("")
	assert.Equal(t, adf.TypeDoc, doc.Type)
	assert.Equal(t, 1, doc.Version)
	assert.NotNil(t, doc.Content)
	assert.Empty(t, doc.Content)

	// The wire contract requires content to be present even when empty.
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"type":"doc","content":[]}`, string(raw))
}

func TestConvertSimpleParagraph(t *testing.T) {
	doc := adf.Convert("Hello world")
	require.Len(t, doc.Content, 1)
	p := doc.Content[0]
	assert.Equal(t, adf.TypeParagraph, p.Type)
	assert.Equal(t, "Hello world", p.Content[0].Text)
}

func TestConvertTwoParagraphs(t *testing.T) {
	doc := adf.Convert("A\n\nB")
	require.Len(t, doc.Content, 2)
	assert.Equal(t, "A", doc.Content[0].Content[0].Text)
	assert.Equal(t, "B", doc.Content[1].Content[0].Text)
}

func TestConvertHeadings(t *testing.T) {
	doc := adf.Convert("# One\n\n###### Six")
	require.Len(t, doc.Content, 2)
	assert.Equal(t, adf.TypeHeading, doc.Content[0].Type)
	assert.Equal(t, 1, doc.Content[0].Attrs["level"])
	assert.Equal(t, 6, doc.Content[1].Attrs["level"])
}

func TestConvertSevenHashesIsParagraph(t *testing.T) {
	doc := adf.Convert("####### too deep")
	require.Len(t, doc.Content, 1)
	assert.Equal(t, adf.TypeParagraph, doc.Content[0].Type)
}

func TestConvertBoldItalicMarks(t *testing.T) {
	doc := adf.Convert("***x***")
	require.Len(t, doc.Content, 1)
	texts := doc.Content[0].Content
	require.Len(t, texts, 1)
	assert.Equal(t, "x", texts[0].Text)
	assert.Equal(t, []adf.MarkType{adf.MarkStrong, adf.MarkEm}, markTypes(texts[0]))
}

func TestConvertCodeBlock(t *testing.T) {
	doc := adf.Convert("```python\nprint('hi')\n```")
	require.Len(t, doc.Content, 1)
	cb := doc.Content[0]
	assert.Equal(t, adf.TypeCodeBlock, cb.Type)
	assert.Equal(t, "python", cb.Attrs["language"])
	assert.Equal(t, "print('hi')", cb.Content[0].Text)
}

func TestConvertCodeBlockNoLanguage(t *testing.T) {
	doc := adf.Convert("```\nraw\n```")
	cb := doc.Content[0]
	assert.Equal(t, adf.TypeCodeBlock, cb.Type)
	assert.Nil(t, cb.Attrs)
}

func TestConvertCodeBlockUnclosedRunsToEOF(t *testing.T) {
	doc := adf.Convert("```go\nline1\nline2")
	require.Len(t, doc.Content, 1)
	assert.Equal(t, "line1\nline2", doc.Content[0].Content[0].Text)
}

func TestConvertThematicBreaks(t *testing.T) {
	for _, input := range []string{"---", "*****", "___"} {
		doc := adf.Convert(input)
		require.Len(t, doc.Content, 1, input)
		assert.Equal(t, adf.TypeRule, doc.Content[0].Type, input)
	}
}

func TestConvertFlatBulletList(t *testing.T) {
	doc := adf.Convert("- a\n- b\n- c")
	require.Len(t, doc.Content, 1)
	list := doc.Content[0]
	assert.Equal(t, adf.TypeBulletList, list.Type)
	require.Len(t, list.Content, 3)
	for _, item := range list.Content {
		assert.Len(t, item.Content, 1) // paragraph only, no nesting
	}
}

func TestConvertNestedBulletList(t *testing.T) {
	doc := adf.Convert("- Top\n  - Nested 1\n  - Nested 2\n- Top 2")
	require.Len(t, doc.Content, 1)
	list := doc.Content[0]
	require.Len(t, list.Content, 2)

	first := list.Content[0]
	require.Len(t, first.Content, 2)
	assert.Equal(t, adf.TypeParagraph, first.Content[0].Type)
	assert.Equal(t, adf.TypeBulletList, first.Content[1].Type)
	assert.Len(t, first.Content[1].Content, 2)
}

func TestConvertTaskListWithChildContent(t *testing.T) {
	doc := adf.Convert("- [ ] Task\n  - child")
	require.Len(t, doc.Content, 1)
	list := doc.Content[0]
	assert.Equal(t, adf.TypeTaskList, list.Type)
	require.Len(t, list.Content, 1)
	for _, n := range list.Content[0].Content {
		assert.Equal(t, adf.TypeText, n.Type)
	}
}

func TestConvertTableAlignments(t *testing.T) {
	doc := adf.Convert(strings.Join([]string{
		"| Left | Center | Right |",
		"|:-----|:------:|------:|",
		"| a    | b      | c     |",
	}, "\n"))
	require.Len(t, doc.Content, 1)
	table := doc.Content[0]
	assert.Equal(t, adf.TypeTable, table.Type)

	dataRow := table.Content[1]
	assert.Empty(t, dataRow.Content[0].Content[0].Marks)
	assert.Equal(t, "center", dataRow.Content[1].Content[0].Marks[0].Attrs["align"])
	assert.Equal(t, "end", dataRow.Content[2].Content[0].Marks[0].Attrs["align"])
}

func TestConvertTableRequiresSeparator(t *testing.T) {
	doc := adf.Convert("| not | a table |\njust text")
	require.NotEmpty(t, doc.Content)
	assert.Equal(t, adf.TypeParagraph, doc.Content[0].Type)
}

func TestConvertImageDefaultWidth(t *testing.T) {
	doc := adf.Convert("![x](a.png)")
	require.Len(t, doc.Content, 1)
	ms := doc.Content[0]
	assert.Equal(t, adf.TypeMediaSingle, ms.Type)
	assert.Equal(t, "center", ms.Attrs["layout"])
	assert.Equal(t, 760, ms.Attrs["width"])
	assert.Equal(t, "pixel", ms.Attrs["widthType"])

	media := ms.Content[0]
	assert.Equal(t, "external", media.Attrs["type"])
	assert.Equal(t, "a.png", media.Attrs["url"])
	assert.Equal(t, "x", media.Attrs["alt"])
}

func TestConvertImageWideLayout(t *testing.T) {
	doc := adf.Convert("![x](a.png){width=wide}")
	ms := doc.Content[0]
	assert.Equal(t, "wide", ms.Attrs["layout"])
	_, hasWidth := ms.Attrs["width"]
	assert.False(t, hasWidth)
	_, hasWidthType := ms.Attrs["widthType"]
	assert.False(t, hasWidthType)
}

func TestConvertImageMaxLayout(t *testing.T) {
	doc := adf.Convert("![x](a.png){width=max}")
	assert.Equal(t, "full-width", doc.Content[0].Attrs["layout"])
}

func TestConvertImageExplicitPixels(t *testing.T) {
	doc := adf.Convert("![x](a.png){width=500}")
	ms := doc.Content[0]
	assert.Equal(t, "center", ms.Attrs["layout"])
	assert.Equal(t, 500, ms.Attrs["width"])
	assert.Equal(t, "pixel", ms.Attrs["widthType"])
}

func TestConvertImageBogusWidthFallsBackToNarrow(t *testing.T) {
	doc := adf.Convert("![x](a.png){width=banana}")
	assert.Equal(t, 760, doc.Content[0].Attrs["width"])
}

func TestConvertImageQuotedURL(t *testing.T) {
	doc := adf.Convert(`![diagram]("my file.png")`)
	media := doc.Content[0].Content[0]
	assert.Equal(t, "my file.png", media.Attrs["url"])
}

func TestConvertBlockquote(t *testing.T) {
	doc := adf.Convert("> Line 1\n> Line 2")
	require.Len(t, doc.Content, 1)
	assert.Equal(t, adf.TypeBlockquote, doc.Content[0].Type)
}

func TestConvertPanel(t *testing.T) {
	doc := adf.Convert("> [!info]\n> Heads up")
	require.Len(t, doc.Content, 1)
	panel := doc.Content[0]
	assert.Equal(t, adf.TypePanel, panel.Type)
	assert.Equal(t, "info", panel.Attrs["panelType"])
}

func TestConvertExpand(t *testing.T) {
	doc := adf.Convert("> [!expand Details]\n> hidden text")
	node := doc.Content[0]
	assert.Equal(t, adf.TypeExpand, node.Type)
	assert.Equal(t, "Details", node.Attrs["title"])
}

func TestConvertBareQuoteMarkerSeparatesParagraphs(t *testing.T) {
	doc := adf.Convert("> one\n>\n> two")
	quote := doc.Content[0]
	assert.Equal(t, adf.TypeBlockquote, quote.Type)
	assert.Len(t, quote.Content, 2)
}

func TestConvertHTMLCommentsStripped(t *testing.T) {
	doc := adf.Convert("<!-- markdownlint-disable -->\nText\n<!-- a\nmultiline comment -->")
	require.Len(t, doc.Content, 1)
	assert.Equal(t, "Text", doc.Content[0].Content[0].Text)
}

func TestConvertParagraphStopsAtBlockTriggers(t *testing.T) {
	cases := map[string]string{
		"heading": "text\n# Head",
		"quote":   "text\n> quoted",
		"fence":   "text\n```\ncode\n```",
		"rule":    "text\n---",
		"list":    "text\n- item",
		"table":   "text\n| a | b |\n|---|---|",
	}
	for name, input := range cases {
		doc := adf.Convert(input)
		require.GreaterOrEqual(t, len(doc.Content), 2, name)
		assert.Equal(t, adf.TypeParagraph, doc.Content[0].Type, name)
		assert.Equal(t, "text", doc.Content[0].Content[0].Text, name)
	}
}

func TestConvertHardBreakInParagraph(t *testing.T) {
	doc := adf.Convert("one  \ntwo")
	require.Len(t, doc.Content, 1)
	inline := doc.Content[0].Content
	require.Len(t, inline, 3)
	assert.Equal(t, adf.TypeHardBreak, inline[1].Type)
}

func TestConvertMalformedInputNeverPanics(t *testing.T) {
	inputs := []string{
		"**unclosed",
		"[bad(link",
		"| lonely pipe",
		"> ",
		"```",
		"![](",
		strings.Repeat(">", 100),
		strings.Repeat("*", 101),
	}
	for _, input := range inputs {
		doc := adf.Convert(input)
		require.NotNil(t, doc, input)
		assert.NotNil(t, doc.Content, input)
	}
}

func TestConvertCRLFInput(t *testing.T) {
	doc := adf.Convert("# Title\r\n\r\nBody\r\n")
	require.Len(t, doc.Content, 2)
	assert.Equal(t, adf.TypeHeading, doc.Content[0].Type)
	assert.Equal(t, "Body", doc.Content[1].Content[0].Text)
}

func TestConvertMixedDocument(t *testing.T) {
	input := strings.Join([]string{
		"# Title",
		"",
		"Intro with **bold**.",
		"",
		"- one",
		"- two",
		"",
		"```sh",
		"echo hi",
		"```",
		"",
		"| A | B |",
		"|---|---|",
		"| 1 | 2 |",
		"",
		"---",
	}, "\n")
	doc := adf.Convert(input)
	require.Len(t, doc.Content, 6)
	assert.Equal(t, adf.TypeHeading, doc.Content[0].Type)
	assert.Equal(t, adf.TypeParagraph, doc.Content[1].Type)
	assert.Equal(t, adf.TypeBulletList, doc.Content[2].Type)
	assert.Equal(t, adf.TypeCodeBlock, doc.Content[3].Type)
	assert.Equal(t, adf.TypeTable, doc.Content[4].Type)
	assert.Equal(t, adf.TypeRule, doc.Content[5].Type)
}
