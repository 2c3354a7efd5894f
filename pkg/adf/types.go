// Package adf converts CCFM markdown into Atlassian Document Format trees
// and renders ADF back to markdown for diffing.
package adf

// NodeType identifies an ADF node kind. The constants below are the full
// closed set this package ever produces; render.go switches over all of them.
type NodeType string

const (
	TypeDoc         NodeType = "doc"
	TypeHeading     NodeType = "heading"
	TypeParagraph   NodeType = "paragraph"
	TypeRule        NodeType = "rule"
	TypeCodeBlock   NodeType = "codeBlock"
	TypeBlockquote  NodeType = "blockquote"
	TypePanel       NodeType = "panel"
	TypeExpand      NodeType = "expand"
	TypeBulletList  NodeType = "bulletList"
	TypeOrderedList NodeType = "orderedList"
	TypeTaskList    NodeType = "taskList"
	TypeListItem    NodeType = "listItem"
	TypeTaskItem    NodeType = "taskItem"
	TypeTable       NodeType = "table"
	TypeTableRow    NodeType = "tableRow"
	TypeTableHeader NodeType = "tableHeader"
	TypeTableCell   NodeType = "tableCell"
	TypeText        NodeType = "text"
	TypeHardBreak   NodeType = "hardBreak"
	TypeInlineCard  NodeType = "inlineCard"
	TypeMediaSingle NodeType = "mediaSingle"
	TypeMedia       NodeType = "media"
	TypeEmoji       NodeType = "emoji"
	TypeStatus      NodeType = "status"
	TypeDate        NodeType = "date"
)

// MarkType identifies a text decoration.
type MarkType string

const (
	MarkStrong    MarkType = "strong"
	MarkEm        MarkType = "em"
	MarkStrike    MarkType = "strike"
	MarkUnderline MarkType = "underline"
	MarkCode      MarkType = "code"
	MarkLink      MarkType = "link"
	MarkSubSup    MarkType = "subsup"
	MarkAlignment MarkType = "alignment"
)

// Node represents an ADF node. Attrs holds kind-specific attributes keyed by
// their wire names; the builders in nodes.go are the only producers, so the
// set of attr shapes stays closed even though the field is a map.
type Node struct {
	Type    NodeType               `json:"type"`
	Text    string                 `json:"text,omitempty"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Marks   []*Mark                `json:"marks,omitempty"`
	Content []*Node                `json:"content,omitempty"`
}

// Mark represents a formatting mark attached to a text node (or, for
// alignment, to a paragraph node).
type Mark struct {
	Type  MarkType               `json:"type"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

// Document is the root ADF node, kept as a distinct type so the wire contract
// always carries version and a content array, even when the document is empty.
type Document struct {
	Version int      `json:"version"`
	Type    NodeType `json:"type"`
	Content []*Node  `json:"content"`
}
