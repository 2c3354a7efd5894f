package deploy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/ccfm/pkg/adf"
	"github.com/athapong/ccfm/pkg/deploy"
)

type fakeResolver struct {
	pages map[string]string
	calls []string
}

func (f *fakeResolver) FindPageWebUIURL(_ context.Context, _ string, title string) (string, error) {
	f.calls = append(f.calls, title)
	return f.pages[title], nil
}

func TestAddCIBannerDefaultText(t *testing.T) {
	doc := adf.Convert("# Page")
	deploy.AddCIBanner(doc, "", "", deploy.Metadata{})

	require.GreaterOrEqual(t, len(doc.Content), 2)
	banner := doc.Content[0]
	assert.Equal(t, adf.TypePanel, banner.Type)
	assert.Equal(t, "info", banner.Attrs["panelType"])
	assert.Equal(t, deploy.DefaultBannerText, banner.Content[0].Content[0].Text)
	assert.Equal(t, adf.TypeHeading, doc.Content[1].Type)
}

func TestAddCIBannerGitLink(t *testing.T) {
	doc := adf.Convert("Body")
	deploy.AddCIBanner(doc, "https://github.com/org/repo/docs/a.md", "Custom warning", deploy.Metadata{})

	inline := doc.Content[0].Content[0].Content
	require.Len(t, inline, 3)
	assert.Equal(t, "Custom warning", inline[0].Text)
	assert.Equal(t, "source", inline[2].Text)
	require.Len(t, inline[2].Marks, 1)
	assert.Equal(t, adf.MarkLink, inline[2].Marks[0].Type)
	assert.Equal(t, "https://github.com/org/repo/docs/a.md", inline[2].Marks[0].Attrs["href"])
}

func TestAddCIBannerWithMetadataExpand(t *testing.T) {
	doc := adf.Convert("Body")
	meta := deploy.Metadata{
		Author:              "Jane Doe",
		Labels:              []string{"api"},
		PageStatus:          "current",
		IncludePageMetadata: true,
	}
	deploy.AddCIBanner(doc, "", "", meta)

	require.GreaterOrEqual(t, len(doc.Content), 3)
	assert.Equal(t, adf.TypePanel, doc.Content[0].Type)
	expandNode := doc.Content[1]
	assert.Equal(t, adf.TypeExpand, expandNode.Type)
	assert.Equal(t, "📋 Page Metadata", expandNode.Attrs["title"])
}

func TestMetadataExpandFields(t *testing.T) {
	meta := deploy.Metadata{Author: "Jane Doe", Labels: []string{"a", "b"}, PageStatus: "draft"}
	node := deploy.MetadataExpand(meta, "https://git/repo/file.md")

	para := node.Content[0]
	var texts []string
	var breaks int
	for _, n := range para.Content {
		if n.Type == adf.TypeHardBreak {
			breaks++
			continue
		}
		texts = append(texts, n.Text)
	}
	joined := ""
	for _, s := range texts {
		joined += s
	}
	assert.Contains(t, joined, "Author:")
	assert.Contains(t, joined, "Jane Doe")
	assert.Contains(t, joined, "a, b")
	assert.Contains(t, joined, "draft")
	assert.Equal(t, 4, breaks, "five fields separated by hard breaks")
}

func TestResolvePageLinks(t *testing.T) {
	doc := adf.Convert("See [the guide](<Style Guide>) and [missing](<Nope>).")
	resolver := &fakeResolver{pages: map[string]string{
		"Style Guide": "https://x.atlassian.net/wiki/spaces/D/pages/1/Style+Guide",
	}}

	deploy.ResolvePageLinks(context.Background(), doc, resolver, "9")

	inline := doc.Content[0].Content
	var cards []*adf.Node
	for _, n := range inline {
		if n.Type == adf.TypeInlineCard {
			cards = append(cards, n)
		}
	}
	require.Len(t, cards, 2)
	assert.Equal(t, "https://x.atlassian.net/wiki/spaces/D/pages/1/Style+Guide", cards[0].Attrs["url"])
	assert.Equal(t, adf.PagePlaceholderScheme+"Nope", cards[1].Attrs["url"], "unresolved links keep the sentinel")
	assert.ElementsMatch(t, []string{"Style Guide", "Nope"}, resolver.calls)
}

func TestResolveAttachmentMediaNodes(t *testing.T) {
	doc := adf.Convert("![diagram](images/diagram.png)\n\n![other](kept.png)")
	attachments := map[string]deploy.AttachmentRef{
		"diagram.png": {ID: "att1", FileID: "file-uuid-1"},
	}

	deploy.ResolveAttachmentMediaNodes(doc, attachments, "777")

	media := doc.Content[0].Content[0]
	assert.Equal(t, "file", media.Attrs["type"])
	assert.Equal(t, "file-uuid-1", media.Attrs["id"])
	assert.Equal(t, "contentId-777", media.Attrs["collection"])
	assert.Equal(t, "diagram", media.Attrs["alt"])
	_, hasURL := media.Attrs["url"]
	assert.False(t, hasURL)

	kept := doc.Content[1].Content[0]
	assert.Equal(t, "external", kept.Attrs["type"], "unmatched media stays external")
}

func TestResolveAttachmentMediaNodesWidthOverride(t *testing.T) {
	doc := adf.Convert("![d](pic.png)")
	deploy.ResolveAttachmentMediaNodes(doc, map[string]deploy.AttachmentRef{
		"pic.png": {ID: "a", FileID: "f", DisplayWidth: "wide"},
	}, "1")

	ms := doc.Content[0]
	assert.Equal(t, "wide", ms.Attrs["layout"])
	_, hasWidth := ms.Attrs["width"]
	assert.False(t, hasWidth)

	doc = adf.Convert("![d](pic.png)")
	deploy.ResolveAttachmentMediaNodes(doc, map[string]deploy.AttachmentRef{
		"pic.png": {ID: "a", FileID: "f", DisplayWidth: "300"},
	}, "1")
	ms = doc.Content[0]
	assert.Equal(t, "center", ms.Attrs["layout"])
	assert.Equal(t, 300, ms.Attrs["width"])
	assert.Equal(t, "pixel", ms.Attrs["widthType"])
}
