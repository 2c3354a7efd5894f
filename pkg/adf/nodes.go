package adf

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NarrowPageWidthPx is the safe maximum pixel width for images on the default
// narrow Confluence page layout (~760px content area). Wider images overflow.
const NarrowPageWidthPx = 760

// ResolveImageWidth maps a CCFM width specifier to (layout, pixelWidth,
// widthType). pixelWidth is 0 and widthType empty for the "wide" and
// "full-width" layouts, where Confluence ignores width attributes.
//
//	"" / "narrow"  → center layout, 760px
//	"wide"         → wide layout
//	"max"          → full-width layout
//	numeric string → center layout, that pixel width
//
// Anything unparseable falls back to the narrow default.
func ResolveImageWidth(width string) (layout string, pixelWidth int, widthType string) {
	switch width {
	case "", "narrow":
		return "center", NarrowPageWidthPx, "pixel"
	case "wide":
		return "wide", 0, ""
	case "max":
		return "full-width", 0, ""
	}
	if px, err := strconv.Atoi(width); err == nil {
		return "center", px, "pixel"
	}
	return "center", NarrowPageWidthPx, "pixel"
}

// Doc builds the root document node. Content is never nil on the wire.
func Doc(content []*Node) *Document {
	if content == nil {
		content = []*Node{}
	}
	return &Document{Version: 1, Type: TypeDoc, Content: content}
}

// Heading builds a heading node, level 1–6.
func Heading(level int, content []*Node) *Node {
	return &Node{
		Type:    TypeHeading,
		Attrs:   map[string]interface{}{"level": level},
		Content: content,
	}
}

// Paragraph builds a paragraph node over inline content.
func Paragraph(content []*Node) *Node {
	return &Node{Type: TypeParagraph, Content: content}
}

// ParagraphWithAlignment builds a paragraph carrying an alignment mark.
// Alignment is the one mark that attaches to the paragraph node rather than
// to its text nodes. The ADF schema only allows "center" and "end"; left is
// the default and needs no mark, so align "" returns a plain paragraph.
func ParagraphWithAlignment(content []*Node, align string) *Node {
	if align == "" {
		return Paragraph(content)
	}
	return &Node{
		Type: TypeParagraph,
		Marks: []*Mark{{
			Type:  MarkAlignment,
			Attrs: map[string]interface{}{"align": align},
		}},
		Content: content,
	}
}

// Rule builds a horizontal divider node.
func Rule() *Node {
	return &Node{Type: TypeRule}
}

// CodeBlock builds a codeBlock node. language may be empty.
func CodeBlock(code, language string) *Node {
	n := &Node{
		Type:    TypeCodeBlock,
		Content: []*Node{{Type: TypeText, Text: code}},
	}
	if language != "" {
		n.Attrs = map[string]interface{}{"language": language}
	}
	return n
}

// Blockquote builds a blockquote node over block content.
func Blockquote(content []*Node) *Node {
	return &Node{Type: TypeBlockquote, Content: content}
}

// Panel builds a panel node. panelType is one of info, note, warning,
// success, error.
func Panel(panelType string, content []*Node) *Node {
	return &Node{
		Type:    TypePanel,
		Attrs:   map[string]interface{}{"panelType": panelType},
		Content: content,
	}
}

// Expand builds a collapsible expand node.
func Expand(title string, content []*Node) *Node {
	return &Node{
		Type:    TypeExpand,
		Attrs:   map[string]interface{}{"title": title},
		Content: content,
	}
}

// BulletList builds a bulletList node over listItem nodes.
func BulletList(items []*Node) *Node {
	return &Node{Type: TypeBulletList, Content: items}
}

// OrderedList builds an orderedList node. order sets the starting number.
func OrderedList(items []*Node, order int) *Node {
	return &Node{
		Type:    TypeOrderedList,
		Attrs:   map[string]interface{}{"order": order},
		Content: items,
	}
}

// TaskList builds a taskList (checklist) node over taskItem nodes.
func TaskList(items []*Node) *Node {
	return &Node{
		Type:    TypeTaskList,
		Attrs:   map[string]interface{}{"localId": uuid.NewString()},
		Content: items,
	}
}

// TaskItem builds a taskItem node. state is "TODO" or "DONE". Unlike
// ListItem, a taskItem holds inline nodes directly, never block nodes.
func TaskItem(state string, content []*Node) *Node {
	return &Node{
		Type: TypeTaskItem,
		Attrs: map[string]interface{}{
			"localId": uuid.NewString(),
			"state":   state,
		},
		Content: content,
	}
}

// ListItem builds a listItem node over block content (a paragraph plus an
// optional nested list).
func ListItem(content []*Node) *Node {
	return &Node{Type: TypeListItem, Content: content}
}

// Table builds a table node over tableRow nodes.
func Table(rows []*Node) *Node {
	return &Node{
		Type: TypeTable,
		Attrs: map[string]interface{}{
			"isNumberColumnEnabled": false,
			"layout":                "default",
		},
		Content: rows,
	}
}

// TableRow builds a tableRow node over header or cell nodes.
func TableRow(cells []*Node) *Node {
	return &Node{Type: TypeTableRow, Content: cells}
}

// TableHeader builds a tableHeader cell. Alignment lives on the cell's
// paragraph content, not on the cell itself.
func TableHeader(content []*Node) *Node {
	return &Node{Type: TypeTableHeader, Content: content}
}

// TableCell builds a tableCell. Alignment lives on the cell's paragraph
// content, not on the cell itself.
func TableCell(content []*Node) *Node {
	return &Node{Type: TypeTableCell, Content: content}
}

// Text builds a text leaf, optionally with marks.
func Text(text string, marks ...*Mark) *Node {
	n := &Node{Type: TypeText, Text: text}
	if len(marks) > 0 {
		n.Marks = marks
	}
	return n
}

// HardBreak builds a hardBreak inline node.
func HardBreak() *Node {
	return &Node{Type: TypeHardBreak}
}

// PagePlaceholderScheme prefixes sentinel inlineCard URLs produced from
// internal page links. The deploy post-pass replaces them with real page URLs
// once the target page ID is known.
const PagePlaceholderScheme = "confluence-page://"

// InlineCard builds an inlineCard node pointing at url.
func InlineCard(url string) *Node {
	return &Node{
		Type:  TypeInlineCard,
		Attrs: map[string]interface{}{"url": url},
	}
}

// MediaSingleOptions selects between the two media modes and carries the
// optional width specifier and alt text.
type MediaSingleOptions struct {
	URL        string // external mode
	FileID     string // attachment mode, with Collection
	Collection string
	Alt        string
	Width      string // "", "narrow", "wide", "max", or pixel count
}

// MediaSingle builds a mediaSingle node wrapping a single media child.
// Exactly one of the external (URL) or attachment (FileID+Collection) modes
// must be selected; requesting neither is a caller-contract bug and fails
// loudly rather than degrading.
func MediaSingle(opts MediaSingleOptions) (*Node, error) {
	var mediaAttrs map[string]interface{}
	switch {
	case opts.FileID != "" && opts.Collection != "":
		mediaAttrs = map[string]interface{}{
			"type":       "file",
			"id":         opts.FileID,
			"collection": opts.Collection,
		}
	case opts.URL != "":
		mediaAttrs = map[string]interface{}{
			"type": "external",
			"url":  opts.URL,
		}
	default:
		return nil, errors.New("media node requires either url or fileID+collection")
	}
	if opts.Alt != "" {
		mediaAttrs["alt"] = opts.Alt
	}

	layout, pixelWidth, widthType := ResolveImageWidth(opts.Width)
	attrs := map[string]interface{}{"layout": layout}
	if pixelWidth > 0 {
		attrs["width"] = pixelWidth
		attrs["widthType"] = widthType
	}

	return &Node{
		Type:    TypeMediaSingle,
		Attrs:   attrs,
		Content: []*Node{{Type: TypeMedia, Attrs: mediaAttrs}},
	}, nil
}

// Emoji builds an emoji node from a bare shortname ("rocket") or one already
// wrapped in colons.
func Emoji(shortName string) *Node {
	name := strings.Trim(shortName, ":")
	return &Node{
		Type: TypeEmoji,
		Attrs: map[string]interface{}{
			"shortName": ":" + name + ":",
			"text":      ":" + name + ":",
		},
	}
}

// Status builds a status badge node. ADF expects uppercase color values
// (NEUTRAL, BLUE, RED, YELLOW, GREEN, PURPLE).
func Status(text, color string) *Node {
	return &Node{
		Type: TypeStatus,
		Attrs: map[string]interface{}{
			"text":    text,
			"color":   strings.ToUpper(color),
			"localId": uuid.NewString(),
			"style":   "",
		},
	}
}

// Date builds a date node from a YYYY-MM-DD string. ADF expects a millisecond
// UTC timestamp serialized as a string; unparseable dates degrade to "0".
func Date(dateStr string) *Node {
	timestamp := "0"
	if t, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC); err == nil {
		timestamp = strconv.FormatInt(t.UnixMilli(), 10)
	}
	return &Node{
		Type:  TypeDate,
		Attrs: map[string]interface{}{"timestamp": timestamp},
	}
}
