package adf

import (
	"regexp"
	"strings"
)

// inlineKind names a recognized inline construct.
type inlineKind int

const (
	kindStatus inlineKind = iota
	kindDate
	kindEmoji
	kindPageLink
	kindLink
	kindCode
	kindBoldItalic
	kindBold
	kindItalic
	kindItalicUnderscore
	kindStrike
	kindUnderline
	kindSuperscript
	kindSubscript
)

// inlineMatch is one candidate occurrence of a construct within a span.
type inlineMatch struct {
	start, end int
	groups     []string
}

// matcher finds the earliest candidate occurrence of one construct.
// Implementations must return the match with the smallest start offset.
type matcher interface {
	find(s string) (inlineMatch, bool)
}

// reMatcher adapts a compiled regexp to the matcher interface.
type reMatcher struct {
	re *regexp.Regexp
}

func (m reMatcher) find(s string) (inlineMatch, bool) {
	loc := m.re.FindStringSubmatchIndex(s)
	if loc == nil {
		return inlineMatch{}, false
	}
	im := inlineMatch{start: loc[0], end: loc[1]}
	for i := 2; i < len(loc); i += 2 {
		if loc[i] < 0 {
			im.groups = append(im.groups, "")
		} else {
			im.groups = append(im.groups, s[loc[i]:loc[i+1]])
		}
	}
	return im, true
}

func pattern(expr string) matcher {
	return reMatcher{re: regexp.MustCompile(expr)}
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSpaceByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// italicUnderscoreMatcher matches _text_ where the delimiters do not touch
// word characters on the outside (so snake_case identifiers survive) and the
// span stays on one line. Hand-rolled because RE2 has no lookarounds.
type italicUnderscoreMatcher struct{}

func (italicUnderscoreMatcher) find(s string) (inlineMatch, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			continue
		}
		if i > 0 && isWordByte(s[i-1]) {
			continue
		}
		for j := i + 2; j < len(s); j++ {
			if s[j] == '\n' {
				break
			}
			if s[j] != '_' {
				continue
			}
			if j+1 < len(s) && isWordByte(s[j+1]) {
				continue
			}
			return inlineMatch{start: i, end: j + 1, groups: []string{s[i+1 : j]}}, true
		}
	}
	return inlineMatch{}, false
}

// subscriptMatcher matches ~text~ with a single tilde on each side and no
// whitespace or tildes inside, keeping it distinct from ~~strike~~.
type subscriptMatcher struct{}

func (subscriptMatcher) find(s string) (inlineMatch, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '~' {
			continue
		}
		if i > 0 && s[i-1] == '~' {
			continue
		}
		j := i + 1
		for j < len(s) && s[j] != '~' && !isSpaceByte(s[j]) {
			j++
		}
		if j >= len(s) || s[j] != '~' || j == i+1 {
			continue
		}
		if j+1 < len(s) && s[j+1] == '~' {
			continue
		}
		return inlineMatch{start: i, end: j + 1, groups: []string{s[i+1 : j]}}, true
	}
	return inlineMatch{}, false
}

// inlinePatterns is the fixed ordered construct table. Each pass the match
// with the smallest start offset wins; table order only breaks ties at the
// same position, which is why the longer delimiters come first.
var inlinePatterns = []struct {
	kind inlineKind
	m    matcher
}{
	{kindStatus, pattern(`::([^:]+)::(\w+)::`)},
	{kindDate, pattern(`@date:(\d{4}-\d{2}-\d{2})`)},
	{kindEmoji, pattern(`:([a-z0-9_+\-]+):`)},
	{kindPageLink, pattern(`\[([^\]]+)\]\(<([^>]+)>\)`)},
	{kindLink, pattern(`\[([^\]]+)\]\(([^)]+)\)`)},
	{kindCode, pattern("`([^`]+)`")},
	{kindBoldItalic, pattern(`(?s)\*\*\*(.+?)\*\*\*`)},
	{kindBold, pattern(`(?s)\*\*(.+?)\*\*`)},
	{kindItalic, pattern(`(?s)\*(.+?)\*`)},
	{kindItalicUnderscore, italicUnderscoreMatcher{}},
	{kindStrike, pattern(`(?s)~~(.+?)~~`)},
	{kindUnderline, pattern(`(?s)\+\+(.+?)\+\+`)},
	{kindSuperscript, pattern(`\^(.+?)\^`)},
	{kindSubscript, subscriptMatcher{}},
}

// withMark returns a copy of nodes where every text node carries an extra
// mark. Text nodes are cloned rather than mutated so spans shared across the
// tree under assembly are never aliased mid-build.
func withMark(nodes []*Node, markType MarkType, attrs map[string]interface{}) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		if n.Type != TypeText {
			out[i] = n
			continue
		}
		clone := *n
		marks := make([]*Mark, 0, len(n.Marks)+1)
		marks = append(marks, n.Marks...)
		marks = append(marks, &Mark{Type: markType, Attrs: attrs})
		clone.Marks = marks
		out[i] = &clone
	}
	return out
}

// ParseInline tokenizes a CCFM text span into ADF inline nodes. It is total:
// unmatched or unclosed syntax degrades to literal text, never an error.
// Each pass finds the earliest-starting construct, emits any preceding text
// verbatim, emits the construct (recursing into captured inner spans), and
// recurses on the tail. Recursion strictly shrinks the input.
func ParseInline(text string) []*Node {
	if text == "" {
		return nil
	}

	bestStart := len(text)
	bestKind := inlineKind(-1)
	var best inlineMatch
	found := false

	for _, p := range inlinePatterns {
		m, ok := p.m.find(text)
		if ok && m.start < bestStart {
			best = m
			bestStart = m.start
			bestKind = p.kind
			found = true
		}
	}

	if !found {
		return []*Node{Text(text)}
	}

	var nodes []*Node
	if bestStart > 0 {
		nodes = append(nodes, Text(text[:bestStart]))
	}
	tail := text[best.end:]

	switch bestKind {
	case kindStatus:
		nodes = append(nodes, Status(strings.TrimSpace(best.groups[0]), strings.TrimSpace(best.groups[1])))

	case kindDate:
		nodes = append(nodes, Date(best.groups[0]))

	case kindEmoji:
		nodes = append(nodes, Emoji(best.groups[0]))

	case kindPageLink:
		// The markdown link text is intentionally discarded: the inlineCard
		// renders as a smart card and Confluence shows the real page title.
		nodes = append(nodes, InlineCard(PagePlaceholderScheme+best.groups[1]))

	case kindLink:
		inner := ParseInline(best.groups[0])
		nodes = append(nodes, withMark(inner, MarkLink, map[string]interface{}{"href": best.groups[1]})...)

	case kindCode:
		nodes = append(nodes, Text(best.groups[0], &Mark{Type: MarkCode}))

	case kindBoldItalic:
		inner := ParseInline(best.groups[0])
		inner = withMark(inner, MarkStrong, nil)
		inner = withMark(inner, MarkEm, nil)
		nodes = append(nodes, inner...)

	case kindBold:
		nodes = append(nodes, withMark(ParseInline(best.groups[0]), MarkStrong, nil)...)

	case kindItalic, kindItalicUnderscore:
		nodes = append(nodes, withMark(ParseInline(best.groups[0]), MarkEm, nil)...)

	case kindStrike:
		nodes = append(nodes, withMark(ParseInline(best.groups[0]), MarkStrike, nil)...)

	case kindUnderline:
		nodes = append(nodes, withMark(ParseInline(best.groups[0]), MarkUnderline, nil)...)

	case kindSuperscript:
		nodes = append(nodes, withMark(ParseInline(best.groups[0]), MarkSubSup, map[string]interface{}{"type": "sup"})...)

	case kindSubscript:
		nodes = append(nodes, withMark(ParseInline(best.groups[0]), MarkSubSup, map[string]interface{}{"type": "sub"})...)
	}

	return append(nodes, ParseInline(tail)...)
}

var hardBreakRe = regexp.MustCompile(`\\\n|[ ]{2,}\n`)

// ParseInlineWithBreaks tokenizes text that may contain hard break markers:
// a trailing backslash or two or more trailing spaces before a newline. Each
// segment is tokenized independently with explicit hardBreak nodes between.
func ParseInlineWithBreaks(text string) []*Node {
	segments := hardBreakRe.Split(text, -1)
	if len(segments) == 1 {
		return ParseInline(text)
	}
	var nodes []*Node
	for i, seg := range segments {
		nodes = append(nodes, ParseInline(seg)...)
		if i < len(segments)-1 {
			nodes = append(nodes, HardBreak())
		}
	}
	return nodes
}
