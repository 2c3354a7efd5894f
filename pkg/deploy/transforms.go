package deploy

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/athapong/ccfm/pkg/adf"
)

// DefaultBannerText is the warning prepended to every generated page unless
// the front matter overrides it.
const DefaultBannerText = "⚠️ This page is automatically generated and deployed. Manual edits may be overwritten."

// PageLinkResolver resolves an internal page title to its canonical webui
// URL. Satisfied by *Client.
type PageLinkResolver interface {
	FindPageWebUIURL(ctx context.Context, spaceID, title string) (string, error)
}

// AddCIBanner prepends the CI warning panel to the document, optionally
// followed by the page metadata expand.
func AddCIBanner(doc *adf.Document, gitURL, bannerText string, meta Metadata) {
	if bannerText == "" {
		bannerText = DefaultBannerText
	}

	content := []*adf.Node{adf.Text(bannerText)}
	if gitURL != "" {
		content = append(content,
			adf.Text(" View source: "),
			adf.Text("source", &adf.Mark{
				Type:  adf.MarkLink,
				Attrs: map[string]interface{}{"href": gitURL},
			}),
		)
	}
	banner := adf.Panel("info", []*adf.Node{adf.Paragraph(content)})

	blocks := []*adf.Node{banner}
	if meta.IncludePageMetadata {
		blocks = append(blocks, MetadataExpand(meta, gitURL))
	}
	doc.Content = append(blocks, doc.Content...)
}

// MetadataExpand builds the collapsed page metadata block shown under the
// CI banner.
func MetadataExpand(meta Metadata, gitURL string) *adf.Node {
	author := meta.Author
	if author == "" {
		author = "Not specified"
	}

	lines := []string{
		"**Author:** " + author,
		"**Last Updated:** " + time.Now().UTC().Format("2006-01-02 15:04 UTC"),
	}
	if len(meta.Labels) > 0 {
		lines = append(lines, "**Labels:** "+strings.Join(meta.Labels, ", "))
	}
	if gitURL != "" {
		lines = append(lines, "**Source:** ["+gitURL+"]("+gitURL+")")
	}
	lines = append(lines, "**Status:** "+meta.PageStatus)

	// Two trailing spaces force a hard break between fields.
	inline := adf.ParseInlineWithBreaks(strings.Join(lines, "  \n"))
	return adf.Expand("📋 Page Metadata", []*adf.Node{adf.Paragraph(inline)})
}

// ResolvePageLinks walks the document and rewrites inlineCard sentinel URLs
// produced by the converter into real Confluence page URLs. Links to pages
// that do not exist are left as sentinels and logged.
func ResolvePageLinks(ctx context.Context, doc *adf.Document, resolver PageLinkResolver, spaceID string) {
	for _, node := range doc.Content {
		resolveLinksInNode(ctx, node, resolver, spaceID)
	}
}

func resolveLinksInNode(ctx context.Context, node *adf.Node, resolver PageLinkResolver, spaceID string) {
	if node == nil {
		return
	}
	if node.Type == adf.TypeInlineCard {
		if url, ok := node.Attrs["url"].(string); ok && strings.HasPrefix(url, adf.PagePlaceholderScheme) {
			title := strings.TrimPrefix(url, adf.PagePlaceholderScheme)
			realURL, err := resolver.FindPageWebUIURL(ctx, spaceID, title)
			if err != nil {
				logrus.WithError(err).WithField("title", title).Warn("page link lookup failed")
			} else if realURL == "" {
				logrus.WithField("title", title).Warn("page not found for link")
			} else {
				node.Attrs["url"] = realURL
			}
		}
	}
	for _, child := range node.Content {
		resolveLinksInNode(ctx, child, resolver, spaceID)
	}
}

// AttachmentRef carries what the media rewrite needs to know about one
// uploaded attachment.
type AttachmentRef struct {
	ID           string
	FileID       string
	DisplayWidth string // "" means keep the converter's sizing
}

// ResolveAttachmentMediaNodes rewrites external media nodes whose URL
// basename matches an uploaded attachment into file media nodes.
//
// The API forces a three-step deploy: the page is created with external
// URLs first, attachments are uploaded to get fileIds, then the page is
// updated with file media nodes pointing at the contentId collection.
func ResolveAttachmentMediaNodes(doc *adf.Document, attachments map[string]AttachmentRef, pageID string) {
	collection := "contentId-" + pageID
	for _, node := range doc.Content {
		resolveMediaInNode(node, attachments, collection)
	}
}

func resolveMediaInNode(node *adf.Node, attachments map[string]AttachmentRef, collection string) {
	if node == nil {
		return
	}
	if node.Type == adf.TypeMediaSingle {
		for _, media := range node.Content {
			if media.Type != adf.TypeMedia {
				continue
			}
			url, _ := media.Attrs["url"].(string)
			ref, ok := attachments[path.Base(url)]
			if !ok {
				continue
			}

			alt, _ := media.Attrs["alt"].(string)
			media.Attrs = map[string]interface{}{
				"type":       "file",
				"id":         ref.FileID,
				"collection": collection,
			}
			if alt != "" {
				media.Attrs["alt"] = alt
			}

			if ref.DisplayWidth != "" {
				layout, width, widthType := adf.ResolveImageWidth(ref.DisplayWidth)
				node.Attrs["layout"] = layout
				if widthType != "" {
					node.Attrs["width"] = width
					node.Attrs["widthType"] = widthType
				} else {
					// wide and full-width layouts carry no width attrs
					delete(node.Attrs, "width")
					delete(node.Attrs, "widthType")
				}
			}
		}
	}
	for _, child := range node.Content {
		resolveMediaInNode(child, attachments, collection)
	}
}
