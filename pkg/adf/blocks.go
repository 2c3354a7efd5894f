package adf

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// log is the package logger. Conversion is total, so the only thing ever
// logged from the core is the nested-task-content warning; tests observe it
// through a logrus hook.
var log = logrus.StandardLogger()

// SetLogger replaces the package logger.
func SetLogger(l *logrus.Logger) { log = l }

var panelTypes = map[string]bool{
	"info":    true,
	"note":    true,
	"warning": true,
	"success": true,
	"error":   true,
}

var (
	panelRe  = regexp.MustCompile(`^\[!(\w+)\]$`)
	expandRe = regexp.MustCompile(`(?i)^\[!expand\s+(.+)\]$`)
	fenceRe  = regexp.MustCompile("^(`{3,})([\\w+\\-]*)$")
)

// ParseBlockquoteBlock classifies de-prefixed blockquote lines into a panel,
// an expand, or a plain blockquote. Only the first line is inspected: an
// exact [!type] directive from the panel whitelist selects a panel, an
// [!expand Title] directive selects an expand, and anything else (including
// unknown bracket directives) degrades to a plain blockquote over all lines.
func ParseBlockquoteBlock(quoteLines []string) *Node {
	if len(quoteLines) == 0 {
		return Blockquote([]*Node{Paragraph(nil)})
	}

	first := strings.TrimSpace(quoteLines[0])

	if m := panelRe.FindStringSubmatch(first); m != nil {
		ptype := strings.ToLower(m[1])
		if panelTypes[ptype] {
			return Panel(ptype, ParseBlockContent(quoteLines[1:]))
		}
	}

	if m := expandRe.FindStringSubmatch(first); m != nil {
		return Expand(strings.TrimSpace(m[1]), ParseBlockContent(quoteLines[1:]))
	}

	return Blockquote(ParseBlockContent(quoteLines))
}

// ParseBlockContent converts plain text lines into block nodes, recognizing
// fenced code blocks and paragraphs. Used for the bodies of panels, expands,
// and blockquotes. Empty input yields a single empty paragraph.
func ParseBlockContent(lines []string) []*Node {
	var nodes []*Node
	i := 0

	for i < len(lines) {
		line := lines[i]

		if strings.TrimSpace(line) == "" {
			i++
			continue
		}

		if m := fenceRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			fence, language := m[1], strings.TrimSpace(m[2])
			var codeLines []string
			i++
			for i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), fence) {
				codeLines = append(codeLines, lines[i])
				i++
			}
			i++ // closing fence
			nodes = append(nodes, CodeBlock(strings.Join(codeLines, "\n"), language))
			continue
		}

		var paraLines []string
		for i < len(lines) {
			line = lines[i]
			if strings.TrimSpace(line) == "" {
				break
			}
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				break
			}
			paraLines = append(paraLines, line)
			i++
		}
		if len(paraLines) > 0 {
			nodes = append(nodes, Paragraph(ParseInlineWithBreaks(strings.Join(paraLines, "\n"))))
		}
	}

	if len(nodes) == 0 {
		return []*Node{Paragraph(nil)}
	}
	return nodes
}

// LinesToParagraphs converts lines, possibly with blank separators, into a
// list of paragraph nodes. Empty input yields a single empty paragraph.
func LinesToParagraphs(lines []string) []*Node {
	var paragraphs []*Node
	var current []string

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, Paragraph(ParseInlineWithBreaks(strings.Join(current, "\n"))))
			current = nil
		}
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
		} else {
			current = append(current, line)
		}
	}
	flush()

	if len(paragraphs) == 0 {
		return []*Node{Paragraph(nil)}
	}
	return paragraphs
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

// splitTableRow splits a pipe-table line into trimmed cells. Exactly one
// leading and one trailing pipe is removed before splitting.
func splitTableRow(line string) []string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "|")
	s = strings.TrimSuffix(s, "|")
	cells := strings.Split(s, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// separatorAlign derives a column alignment from one separator cell: colons
// on both sides mean center, a trailing colon alone means end. Left is the
// ADF default and carries no mark, so it reports as "".
func separatorAlign(sep string) string {
	s := strings.TrimSpace(sep)
	left := strings.HasPrefix(s, ":")
	right := strings.HasSuffix(s, ":")
	switch {
	case left && right:
		return "center"
	case right:
		return "end"
	default:
		return ""
	}
}

// ParseTable builds a table node from pipe-table lines: line 0 is the header,
// line 1 the alignment separator (parsed, never emitted as a row), lines 2+
// are data rows with blanks skipped. Column alignment applies to each cell's
// paragraph; a column index beyond the separator's length falls back to no
// alignment. Mismatched row lengths are preserved as authored.
func ParseTable(lines []string) *Node {
	headerCells := splitTableRow(lines[0])
	sepCells := splitTableRow(lines[1])

	alignments := make([]string, len(sepCells))
	for i, s := range sepCells {
		alignments[i] = separatorAlign(s)
	}
	alignFor := func(col int) string {
		if col < len(alignments) {
			return alignments[col]
		}
		return ""
	}

	cellParagraph := func(cell string, col int) *Node {
		content := ParseInline(cell)
		if align := alignFor(col); align != "" {
			return ParagraphWithAlignment(content, align)
		}
		return Paragraph(content)
	}

	var rows []*Node

	headerRow := make([]*Node, 0, len(headerCells))
	for i, cell := range headerCells {
		headerRow = append(headerRow, TableHeader([]*Node{cellParagraph(cell, i)}))
	}
	rows = append(rows, TableRow(headerRow))

	for _, line := range lines[2:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := splitTableRow(line)
		dataRow := make([]*Node, 0, len(cells))
		for i, cell := range cells {
			dataRow = append(dataRow, TableCell([]*Node{cellParagraph(cell, i)}))
		}
		rows = append(rows, TableRow(dataRow))
	}

	return Table(rows)
}

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

type listKind int

const (
	listNone listKind = iota
	listBullet
	listOrdered
	listTask
)

// listLine is the classification of one list-item line.
type listLine struct {
	indent    int
	kind      listKind
	taskState string // TODO or DONE for task items
	text      string
}

var (
	taskItemRe    = regexp.MustCompile(`^( *)([-*+])\s+\[([ xX])\]\s+(.*)`)
	listItemRe    = regexp.MustCompile(`^( *)([-*+]|\d+\.)\s+(.*)`)
	orderedStart  = regexp.MustCompile(`^ *(\d+)\.`)
	orderedMarker = regexp.MustCompile(`^\d+\.`)
)

// classifyListLine reports whether line is a list item and, if so, its
// indent, kind, task state, and remaining text.
func classifyListLine(line string) (listLine, bool) {
	if m := taskItemRe.FindStringSubmatch(line); m != nil {
		state := "TODO"
		if strings.ToLower(m[3]) == "x" {
			state = "DONE"
		}
		return listLine{indent: len(m[1]), kind: listTask, taskState: state, text: m[4]}, true
	}
	if m := listItemRe.FindStringSubmatch(line); m != nil {
		kind := listBullet
		if orderedMarker.MatchString(m[2]) {
			kind = listOrdered
		}
		return listLine{indent: len(m[1]), kind: kind, text: m[3]}, true
	}
	return listLine{}, false
}

// IsListLine reports whether line starts a list item.
func IsListLine(line string) bool {
	_, ok := classifyListLine(line)
	return ok
}

// maxListDepth bounds recursive list nesting. Past the limit child lines are
// flattened into paragraphs instead of growing the call stack further.
const maxListDepth = 16

// BuildList recursively builds a list node from list-item lines, returning
// the node and the number of lines consumed. The first item at baseIndent
// locks the node's kind; later same-indent items of a different kind are
// folded into the same node. Strictly deeper lines after an item become its
// nested child list (non-task items only); task items discard child content
// with a warning. It stops, without consuming, at a non-list line or one
// shallower than baseIndent.
func BuildList(lines []string, baseIndent int) (*Node, int) {
	return buildList(lines, baseIndent, 0)
}

func buildList(lines []string, baseIndent, depth int) (*Node, int) {
	var items []*Node
	kind := listNone
	startNumber := 1
	i := 0

	for i < len(lines) {
		info, ok := classifyListLine(lines[i])
		if !ok {
			break
		}
		if info.indent < baseIndent {
			break
		}
		if info.indent > baseIndent {
			// A deeper line with no preceding base-level item; skip it.
			i++
			continue
		}

		if kind == listNone {
			kind = info.kind
			if kind == listOrdered {
				if m := orderedStart.FindStringSubmatch(lines[i]); m != nil {
					if n, err := strconv.Atoi(m[1]); err == nil {
						startNumber = n
					}
				}
			}
		}

		i++
		var childLines []string
		for i < len(lines) {
			child, ok := classifyListLine(lines[i])
			if !ok || child.indent <= info.indent {
				break
			}
			childLines = append(childLines, lines[i])
			i++
		}

		if kind == listTask {
			// taskItem holds inline content directly and cannot nest lists.
			if len(childLines) > 0 {
				log.Warn("nested content under task items is not supported, ignoring")
			}
			state := info.taskState
			if state == "" {
				state = "TODO"
			}
			items = append(items, TaskItem(state, ParseInlineWithBreaks(info.text)))
		} else {
			content := []*Node{Paragraph(ParseInlineWithBreaks(info.text))}
			if len(childLines) > 0 {
				if depth >= maxListDepth {
					content = append(content, LinesToParagraphs(childLines)...)
				} else {
					childIndent := leadingSpaces(childLines[0])
					child, _ := buildList(childLines, childIndent, depth+1)
					content = append(content, child)
				}
			}
			items = append(items, ListItem(content))
		}
	}

	if len(items) == 0 {
		return BulletList(nil), 0
	}

	switch kind {
	case listTask:
		return TaskList(items), i
	case listOrdered:
		return OrderedList(items, startNumber), i
	default:
		return BulletList(items), i
	}
}

func leadingSpaces(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}
