package remap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xhad/docmeta/internal/fsutil"
	"github.com/xhad/docmeta/internal/models"
)

const (
	rootOpen  = "<root>"
	rootClose = "</root>"
)

func startMarker(file string, line int) string {
	return fmt.Sprintf("<!-- START: %s:%d -->", file, line)
}

func endMarker(file string, line int) string {
	return fmt.Sprintf("<!-- END: %s:%d -->", file, line)
}

// Extract collects the target sections of every markup file under the source
// directory. An entry spans the section's opening tag through the end of its
// leading <info> block, or just the opening tag line when there is none.
// File names are recorded relative to the source directory.
func (e *Engine) Extract() ([]models.MetaSection, error) {
	files, err := fsutil.WalkFiles(e.config.SourceDir, e.ext)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(e.config.Exclude))
	for _, name := range e.config.Exclude {
		excluded[name] = true
	}

	self, _ := filepath.Abs(e.config.MetaDocument)

	var sections []models.MetaSection
	for _, path := range files {
		if abs, _ := filepath.Abs(path); abs == self {
			continue
		}
		if excluded[filepath.Base(path)] {
			e.logger.Debug("skipping excluded file", "file", path)
			continue
		}

		rel, err := filepath.Rel(e.config.SourceDir, path)
		if err != nil {
			return nil, err
		}

		src, err := readSource(path)
		if err != nil {
			e.logger.Error("failed to read markup file", "file", path, "error", err)
			continue
		}

		found := e.extractLines(filepath.ToSlash(rel), src.Lines)
		e.logger.Debug("extracted sections", "file", rel, "sections", len(found))
		sections = append(sections, found...)
	}
	return sections, nil
}

// extractLines locates opening tags on the whole text, so a tag split over
// several lines still yields an entry starting at the tag's first line.
func (e *Engine) extractLines(file string, lines []string) []models.MetaSection {
	text := strings.Join(lines, "\n")
	starts := make([]int, len(lines))
	pos := 0
	for i, line := range lines {
		starts[i] = pos
		pos += len(line) + 1
	}
	lineAt := func(offset int) int {
		return sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
	}

	var sections []models.MetaSection
	last := -1
	for _, s := range e.locator.Locate(text) {
		first := lineAt(s.TagStart)
		// entries never share lines, so apply can replay all of them
		if first <= last {
			continue
		}

		end := infoEnd(lines, lineAt(s.Offset-1))
		body := make([]string, end-first+1)
		copy(body, lines[first:end+1])
		sections = append(sections, models.MetaSection{
			File:  file,
			Start: first + 1,
			End:   end + 1,
			Lines: body,
		})
		last = end
	}
	return sections
}

// infoEnd returns the index of the line closing the <info> block that
// directly follows the opening tag at index open, or open itself.
func infoEnd(lines []string, open int) int {
	i := open + 1
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= len(lines) {
		return open
	}
	if t := strings.TrimSpace(lines[i]); !strings.HasPrefix(t, "<info>") && !strings.HasPrefix(t, "<info ") {
		return open
	}
	for j := i; j < len(lines); j++ {
		if strings.Contains(lines[j], "</info>") {
			return j
		}
	}
	return open
}

// WriteMetaDocument renders sections as a meta-document wrapped in a root element.
func WriteMetaDocument(w io.Writer, sections []models.MetaSection) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, rootOpen)
	for _, s := range sections {
		fmt.Fprintln(bw, startMarker(s.File, s.Start))
		for _, line := range s.Lines {
			fmt.Fprintln(bw, line)
		}
		fmt.Fprintln(bw, endMarker(s.File, s.End))
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, rootClose)
	return bw.Flush()
}

// Build extracts the source tree and writes the meta-document to the
// configured path. It returns the number of entries written.
func (e *Engine) Build() (int, error) {
	sections, err := e.Extract()
	if err != nil {
		return 0, err
	}

	if dir := filepath.Dir(e.config.MetaDocument); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	f, err := os.Create(e.config.MetaDocument)
	if err != nil {
		return 0, fmt.Errorf("failed to create meta-document: %w", err)
	}
	defer f.Close()

	if err := WriteMetaDocument(f, sections); err != nil {
		return 0, fmt.Errorf("failed to write meta-document: %w", err)
	}
	e.logger.Info("meta-document created", "path", e.config.MetaDocument, "sections", len(sections))
	return len(sections), nil
}
