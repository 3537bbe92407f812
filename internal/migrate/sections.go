// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package migrate

import (
	"strings"
)

// Section is one heading-delimited slice of a legacy document. Raw holds
// the heading line and body exactly as they appear in the source, always
// terminated by a newline.
type Section struct {
	Heading string `json:"heading" yaml:"heading"`
	Level   int    `json:"level" yaml:"level"`
	Raw     string `json:"-" yaml:"-"`
}

// Body returns the section text after its heading line.
func (s Section) Body() string {
	if i := strings.IndexByte(s.Raw, '\n'); i >= 0 {
		return s.Raw[i+1:]
	}
	return ""
}

type line struct {
	text    string
	heading string
	level   int
}

// splitSections cuts content into sections at the section level: the
// shallowest heading level once a lone leading title heading is set aside.
// Deeper headings stay inside their parent section and headings inside
// code fences are ignored. Text before the first section is returned as
// the preamble.
func splitSections(content string) (preamble string, sections []Section) {
	if strings.TrimSpace(content) == "" {
		return content, nil
	}
	lines := scanLines(content)
	level := sectionLevel(lines)
	if level == 0 {
		return content, nil
	}

	var pre strings.Builder
	var cur *Section
	var raw strings.Builder
	flush := func() {
		if cur != nil {
			cur.Raw = raw.String()
			sections = append(sections, *cur)
		}
		raw.Reset()
	}

	for _, ln := range lines {
		if ln.level == level {
			flush()
			cur = &Section{Heading: ln.heading, Level: ln.level}
		}
		if cur == nil {
			pre.WriteString(ln.text)
			continue
		}
		raw.WriteString(ln.text)
	}
	flush()
	return pre.String(), sections
}

// scanLines splits content keeping line endings and marks ATX headings
// that sit outside fenced code blocks.
func scanLines(content string) []line {
	parts := strings.SplitAfter(content, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	} else {
		parts[len(parts)-1] += "\n"
	}

	out := make([]line, 0, len(parts))
	fence := ""
	for _, p := range parts {
		ln := line{text: p}
		trimmed := strings.TrimSpace(p)
		switch {
		case fence != "":
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
		case strings.HasPrefix(trimmed, "```"):
			fence = "```"
		case strings.HasPrefix(trimmed, "~~~"):
			fence = "~~~"
		default:
			ln.heading, ln.level = parseHeading(p)
		}
		out = append(out, ln)
	}
	return out
}

// parseHeading recognizes "# Title" through "###### Title" with at most
// three spaces of indentation.
func parseHeading(s string) (string, int) {
	s = strings.TrimRight(s, "\r\n")
	indent := len(s) - len(strings.TrimLeft(s, " "))
	if indent > 3 {
		return "", 0
	}
	s = s[indent:]
	level := 0
	for level < len(s) && s[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return "", 0
	}
	rest := s[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", 0
	}
	heading := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
	return heading, level
}

func sectionLevel(lines []line) int {
	var levels []int
	for _, ln := range lines {
		if ln.level > 0 {
			levels = append(levels, ln.level)
		}
	}
	if len(levels) == 0 {
		return 0
	}
	top := levels[0]
	count := 0
	for _, l := range levels {
		if l < top {
			top = l
		}
	}
	for _, l := range levels {
		if l == top {
			count++
		}
	}
	// A single top-level heading that opens the document is a title.
	if count == 1 && levels[0] == top && len(levels) > 1 {
		next := 0
		for _, l := range levels[1:] {
			if next == 0 || l < next {
				next = l
			}
		}
		return next
	}
	return top
}
