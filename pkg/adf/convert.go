package adf

import (
	"regexp"
	"strings"
)

var (
	htmlCommentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	headingRe     = regexp.MustCompile(`^(#{1,6})\s+(.*)`)
	ruleRe        = regexp.MustCompile(`^(-{3,}|\*{3,}|_{3,})\s*$`)
	imageRe       = regexp.MustCompile(`^!\[([^\]]*)\]\(([^)]+)\)(?:\{width=([^}]+)\})?\s*$`)
	tableSepRe    = regexp.MustCompile(`^\|?[\s\-:|]+\|`)
)

// Convert converts a CCFM markdown string into an ADF document. The caller
// is responsible for stripping front matter first. Conversion is total:
// malformed input degrades to a best-effort tree, never an error.
func Convert(markdown string) *Document {
	markdown = htmlCommentRe.ReplaceAllString(markdown, "")
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	markdown = strings.ReplaceAll(markdown, "\r", "\n")

	lines := strings.Split(markdown, "\n")
	content := []*Node{}
	i := 0

	for i < len(lines) {
		line := lines[i]

		// Blank line
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}

		// Fenced code block, collected verbatim to the matching fence or EOF
		if m := fenceRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			fence, language := m[1], strings.TrimSpace(m[2])
			var codeLines []string
			i++
			for i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), fence) {
				codeLines = append(codeLines, lines[i])
				i++
			}
			i++ // closing fence
			content = append(content, CodeBlock(strings.Join(codeLines, "\n"), language))
			continue
		}

		// Heading
		if m := headingRe.FindStringSubmatch(line); m != nil {
			content = append(content, Heading(len(m[1]), ParseInline(strings.TrimSpace(m[2]))))
			i++
			continue
		}

		// Thematic break
		if ruleRe.MatchString(strings.TrimSpace(line)) {
			content = append(content, Rule())
			i++
			continue
		}

		// Standalone image line, with optional {width=...} suffix
		if m := imageRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			alt, url, width := m[1], strings.TrimSpace(m[2]), m[3]
			url = unquote(url)
			media, err := MediaSingle(MediaSingleOptions{URL: url, Alt: alt, Width: width})
			if err == nil {
				content = append(content, media)
			}
			i++
			continue
		}

		// Table: current line has a pipe and the next is a separator row
		if strings.Contains(line, "|") {
			next := ""
			if i+1 < len(lines) {
				next = lines[i+1]
			}
			if tableSepRe.MatchString(next) {
				var tableLines []string
				for i < len(lines) && strings.Contains(lines[i], "|") {
					tableLines = append(tableLines, lines[i])
					i++
				}
				if len(tableLines) >= 2 {
					content = append(content, ParseTable(tableLines))
				}
				continue
			}
		}

		// Blockquote / panel / expand
		if strings.HasPrefix(line, ">") {
			var quoteLines []string
			for i < len(lines) && strings.HasPrefix(lines[i], ">") {
				quoteLines = append(quoteLines, stripQuoteMarker(lines[i]))
				i++
			}
			for len(quoteLines) > 0 && strings.TrimSpace(quoteLines[len(quoteLines)-1]) == "" {
				quoteLines = quoteLines[:len(quoteLines)-1]
			}
			content = append(content, ParseBlockquoteBlock(quoteLines))
			continue
		}

		// List run, including 2+-space continuation lines
		if IsListLine(line) {
			var listLines []string
			for i < len(lines) {
				if IsListLine(lines[i]) {
					listLines = append(listLines, lines[i])
					i++
				} else if len(listLines) > 0 && strings.HasPrefix(lines[i], "  ") {
					listLines = append(listLines, lines[i])
					i++
				} else {
					break
				}
			}
			node, _ := BuildList(listLines, 0)
			content = append(content, node)
			continue
		}

		// Paragraph: collect until a lookahead line triggers another block
		var paraLines []string
		for i < len(lines) {
			line = lines[i]
			if strings.TrimSpace(line) == "" {
				break
			}
			if headingRe.MatchString(line) {
				break
			}
			if strings.HasPrefix(line, ">") {
				break
			}
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				break
			}
			if ruleRe.MatchString(strings.TrimSpace(line)) {
				break
			}
			if IsListLine(line) {
				break
			}
			if strings.Contains(line, "|") && i+1 < len(lines) && tableSepRe.MatchString(lines[i+1]) {
				break
			}
			paraLines = append(paraLines, line)
			i++
		}

		if len(paraLines) > 0 {
			inline := ParseInlineWithBreaks(strings.Join(paraLines, "\n"))
			if len(inline) > 0 {
				content = append(content, Paragraph(inline))
			}
		}
	}

	return Doc(content)
}

// stripQuoteMarker removes one leading '>' and at most one following space.
// A bare '>' becomes an empty separator line within the quote body.
func stripQuoteMarker(line string) string {
	s := strings.TrimPrefix(line, ">")
	if strings.HasPrefix(s, " ") {
		s = s[1:]
	}
	return s
}

// unquote strips one pair of matching surrounding quotes, as used for image
// URLs containing spaces.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
