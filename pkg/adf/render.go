package adf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RenderDocument renders an ADF document to markdown. The output is meant
// for human-readable diffing, not for round-tripping byte-exactly.
func RenderDocument(doc *Document) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	for _, child := range doc.Content {
		renderNode(child, &b, 0)
	}
	return b.String()
}

// Render renders a single ADF node (and its children) to markdown.
func Render(node *Node) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	renderNode(node, &b, 0)
	return b.String()
}

func renderNode(node *Node, b *strings.Builder, depth int) {
	switch node.Type {
	case TypeDoc:
		renderChildren(node, b, depth)
	case TypeParagraph:
		renderParagraph(node, b, depth)
	case TypeHeading:
		renderHeading(node, b, depth)
	case TypeText:
		renderText(node, b)
	case TypeHardBreak:
		b.WriteString("\n")
	case TypeBulletList:
		renderBulletList(node, b, depth)
	case TypeOrderedList:
		renderOrderedList(node, b, depth)
	case TypeTaskList:
		renderTaskList(node, b, depth)
	case TypeListItem, TypeTaskItem:
		renderChildren(node, b, depth)
	case TypeCodeBlock:
		renderCodeBlock(node, b)
	case TypeBlockquote:
		renderBlockquote(node, b, depth)
	case TypePanel:
		renderPanel(node, b, depth)
	case TypeExpand:
		renderExpand(node, b, depth)
	case TypeRule:
		b.WriteString("---\n")
	case TypeTable:
		renderTable(node, b)
	case TypeMediaSingle, TypeMedia:
		renderMedia(node, b)
	case TypeInlineCard:
		if url, ok := node.Attrs["url"].(string); ok {
			b.WriteString(fmt.Sprintf("[%s](%s)", url, url))
		}
	case TypeEmoji:
		if short, ok := node.Attrs["shortName"].(string); ok {
			b.WriteString(short)
		}
	case TypeStatus:
		text, _ := node.Attrs["text"].(string)
		color, _ := node.Attrs["color"].(string)
		b.WriteString(fmt.Sprintf("::%s::%s::", text, strings.ToLower(color)))
	case TypeDate:
		renderDate(node, b)
	case TypeTableRow, TypeTableHeader, TypeTableCell:
		renderChildren(node, b, depth)
	default:
		renderChildren(node, b, depth)
	}
}

func renderParagraph(node *Node, b *strings.Builder, depth int) {
	if depth > 0 {
		b.WriteString(strings.Repeat("  ", depth))
	}
	renderChildren(node, b, depth)
	b.WriteString("\n\n")
}

func renderHeading(node *Node, b *strings.Builder, depth int) {
	level := 1
	switch l := node.Attrs["level"].(type) {
	case int:
		level = l
	case float64:
		level = int(l)
	}
	b.WriteString(strings.Repeat("#", level) + " ")
	renderChildren(node, b, depth)
	b.WriteString("\n\n")
}

func renderText(node *Node, b *strings.Builder) {
	text := node.Text
	for _, mark := range node.Marks {
		switch mark.Type {
		case MarkStrong:
			text = "**" + text + "**"
		case MarkEm:
			text = "_" + text + "_"
		case MarkCode:
			text = "`" + text + "`"
		case MarkStrike:
			text = "~~" + text + "~~"
		case MarkUnderline:
			text = "++" + text + "++"
		case MarkSubSup:
			if t, ok := mark.Attrs["type"].(string); ok && t == "sub" {
				text = "~" + text + "~"
			} else {
				text = "^" + text + "^"
			}
		case MarkLink:
			if href, ok := mark.Attrs["href"].(string); ok {
				text = fmt.Sprintf("[%s](%s)", text, href)
			}
		}
	}
	b.WriteString(text)
}

func renderBulletList(node *Node, b *strings.Builder, depth int) {
	for _, child := range node.Content {
		b.WriteString(strings.Repeat("  ", depth) + "- ")
		renderChildren(child, b, depth+1)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func renderOrderedList(node *Node, b *strings.Builder, depth int) {
	start := 1
	switch o := node.Attrs["order"].(type) {
	case int:
		start = o
	case float64:
		start = int(o)
	}
	for i, child := range node.Content {
		b.WriteString(fmt.Sprintf("%s%d. ", strings.Repeat("  ", depth), start+i))
		renderChildren(child, b, depth+1)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func renderTaskList(node *Node, b *strings.Builder, depth int) {
	for _, child := range node.Content {
		box := "[ ]"
		if state, ok := child.Attrs["state"].(string); ok && state == "DONE" {
			box = "[x]"
		}
		b.WriteString(strings.Repeat("  ", depth) + "- " + box + " ")
		renderChildren(child, b, depth+1)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func renderCodeBlock(node *Node, b *strings.Builder) {
	language, _ := node.Attrs["language"].(string)
	b.WriteString("```" + language + "\n")
	renderChildren(node, b, 0)
	b.WriteString("\n```\n\n")
}

func renderBlockquote(node *Node, b *strings.Builder, depth int) {
	var inner strings.Builder
	renderChildren(node, &inner, depth)
	for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
		b.WriteString("> " + line + "\n")
	}
	b.WriteString("\n")
}

func renderPanel(node *Node, b *strings.Builder, depth int) {
	ptype, _ := node.Attrs["panelType"].(string)
	var inner strings.Builder
	renderChildren(node, &inner, depth)
	b.WriteString("> [!" + ptype + "]\n")
	for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
		b.WriteString("> " + line + "\n")
	}
	b.WriteString("\n")
}

func renderExpand(node *Node, b *strings.Builder, depth int) {
	title, _ := node.Attrs["title"].(string)
	var inner strings.Builder
	renderChildren(node, &inner, depth)
	b.WriteString("> [!expand " + title + "]\n")
	for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
		b.WriteString("> " + line + "\n")
	}
	b.WriteString("\n")
}

func renderMedia(node *Node, b *strings.Builder) {
	if node.Type == TypeMediaSingle {
		renderChildren(node, b, 0)
		return
	}
	alt, _ := node.Attrs["alt"].(string)
	if url, ok := node.Attrs["url"].(string); ok {
		b.WriteString(fmt.Sprintf("![%s](%s)\n\n", alt, url))
		return
	}
	if id, ok := node.Attrs["id"].(string); ok {
		b.WriteString(fmt.Sprintf("![%s](attachment:%s)\n\n", alt, id))
	}
}

func renderDate(node *Node, b *strings.Builder) {
	ts, _ := node.Attrs["timestamp"].(string)
	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		b.WriteString("@date:" + ts)
		return
	}
	b.WriteString("@date:" + time.UnixMilli(millis).UTC().Format("2006-01-02"))
}

func renderTable(node *Node, b *strings.Builder) {
	if len(node.Content) == 0 {
		return
	}

	colWidths := make([]int, 0)
	var rows [][]string

	for i, rowNode := range node.Content {
		row := make([]string, 0, len(rowNode.Content))
		for j, cell := range rowNode.Content {
			var cellContent strings.Builder
			renderChildren(cell, &cellContent, 0)
			content := strings.TrimSpace(cellContent.String())
			row = append(row, content)
			if i == 0 {
				colWidths = append(colWidths, len(content))
			} else if j < len(colWidths) && len(content) > colWidths[j] {
				colWidths[j] = len(content)
			}
		}
		rows = append(rows, row)
	}

	for i, row := range rows {
		b.WriteString("|")
		for j, cell := range row {
			if j < len(colWidths) {
				padding := colWidths[j] - len(cell)
				b.WriteString(" " + cell + strings.Repeat(" ", padding) + " |")
			}
		}
		b.WriteString("\n")

		if i == 0 {
			b.WriteString("|")
			for _, width := range colWidths {
				b.WriteString(strings.Repeat("-", width+2) + "|")
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
}

func renderChildren(node *Node, b *strings.Builder, depth int) {
	for _, child := range node.Content {
		renderNode(child, b, depth)
	}
}
