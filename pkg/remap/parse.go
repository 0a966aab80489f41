package remap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/xhad/docmeta/internal/models"
)

var (
	startPattern = regexp.MustCompile(`^<!-- START: (.+):(\d+) -->$`)
	endPattern   = regexp.MustCompile(`^<!-- END: (.+):(\d+) -->$`)
)

type openEntry struct {
	section models.MetaSection
	line    int
	bad     bool
}

// Parse reads a meta-document. Entries whose markers cannot be parsed are
// returned as errors wrapping ErrMalformedEntry and left out of the result;
// the remaining entries still parse. Only a read failure returns err.
func Parse(r io.Reader) (sections []models.MetaSection, malformed []error, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var open *openEntry
	bad := func(line int, format string, args ...any) {
		malformed = append(malformed, fmt.Errorf("line %d: %s: %w", line, fmt.Sprintf(format, args...), ErrMalformedEntry))
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "<!-- START:"):
			if open != nil && !open.bad {
				bad(open.line, "entry for %s has no END marker", open.section.File)
			}
			open = &openEntry{line: lineNo}
			m := startPattern.FindStringSubmatch(trimmed)
			if m == nil {
				open.bad = true
				bad(lineNo, "unparseable START marker %q", trimmed)
				continue
			}
			open.section.File = m[1]
			open.section.Start, _ = strconv.Atoi(m[2])

		case strings.HasPrefix(trimmed, "<!-- END:"):
			if open == nil {
				bad(lineNo, "END marker without START")
				continue
			}
			entry := open
			open = nil
			if entry.bad {
				continue
			}
			m := endPattern.FindStringSubmatch(trimmed)
			if m == nil {
				bad(lineNo, "unparseable END marker %q", trimmed)
				continue
			}
			if m[1] != entry.section.File {
				bad(lineNo, "END marker names %s, START named %s", m[1], entry.section.File)
				continue
			}
			entry.section.End, _ = strconv.Atoi(m[2])
			if entry.section.Lines == nil {
				entry.section.Lines = []string{}
			}
			sections = append(sections, entry.section)

		case open != nil:
			open.section.Lines = append(open.section.Lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return sections, malformed, fmt.Errorf("failed to read meta-document: %w", err)
	}
	if open != nil && !open.bad {
		bad(open.line, "entry for %s has no END marker", open.section.File)
	}
	return sections, malformed, nil
}

// ParseFile parses the configured meta-document, logging malformed entries.
func (e *Engine) ParseFile() ([]models.MetaSection, error) {
	f, err := os.Open(e.config.MetaDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to open meta-document: %w", err)
	}
	defer f.Close()

	sections, malformed, err := Parse(f)
	for _, m := range malformed {
		e.logger.Warn("skipping meta-document entry", "error", m)
	}
	return sections, err
}
