// Package extract pulls an existing title and a leading content excerpt out of
// raw markdown text.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	titlePattern     = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t]*\r?$`)
	anchorTagPattern = regexp.MustCompile(`<a\s+[^>]*>|<a>|</a>`)
	mdLinkPattern    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// Title returns the first top-level heading with link decoration removed, or
// an empty string when the text has none.
func Title(text string) string {
	m := titlePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	title := anchorTagPattern.ReplaceAllString(m[1], "")
	title = mdLinkPattern.ReplaceAllString(title, "$1")
	return strings.TrimSpace(title)
}

// Length counts characters, not bytes.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

type state int

const (
	seeking state = iota
	skipBlock
	collecting
	done
)

// closer reports whether a line ends the skip block that was opened.
type closer func(trimmed string) bool

// Excerpt returns the first paragraph of body text. Front matter, fenced code
// and bold-lead callouts are skipped; headings before the paragraph are
// ignored and a heading after it ends the paragraph.
func Excerpt(text string) string {
	var (
		st        = seeking
		collected []string
		closes    closer
		seenText  bool
	)

	for _, line := range strings.Split(text, "\n") {
		if st == done {
			break
		}
		trimmed := strings.TrimSpace(line)

		if st == skipBlock {
			if closes(trimmed) {
				st = seeking
				closes = nil
			}
			continue
		}

		if c := opensSkipBlock(trimmed, !seenText); c != nil {
			collected = collected[:0]
			closes = c
			st = skipBlock
			seenText = true
			continue
		}
		if trimmed != "" {
			seenText = true
		}

		switch {
		case trimmed == "", isRule(trimmed):
			if st == collecting {
				st = done
			}
		case isHeading(trimmed):
			if st == collecting {
				st = done
			}
		default:
			st = collecting
			collected = append(collected, trimmed)
		}
	}

	return strings.Join(collected, " ")
}

func opensSkipBlock(trimmed string, atStart bool) closer {
	switch {
	case atStart && trimmed == "---":
		return func(l string) bool { return l == "---" || l == "..." }
	case isRule(trimmed):
		return nil
	case strings.HasPrefix(trimmed, "```"):
		return func(l string) bool { return strings.HasPrefix(l, "```") }
	case strings.HasPrefix(trimmed, "~~~"):
		return func(l string) bool { return strings.HasPrefix(l, "~~~") }
	case strings.HasPrefix(trimmed, "**"):
		// bold-lead callouts run to the next blank line
		return func(l string) bool { return l == "" }
	}
	return nil
}

func isHeading(trimmed string) bool {
	return strings.HasPrefix(trimmed, "#")
}

// isRule matches thematic breaks such as ---, *** and ___.
func isRule(trimmed string) bool {
	if len(trimmed) < 3 {
		return false
	}
	c := trimmed[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	for i := 1; i < len(trimmed); i++ {
		if trimmed[i] != c && trimmed[i] != ' ' {
			return false
		}
	}
	return true
}
