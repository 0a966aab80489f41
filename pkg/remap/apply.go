package remap

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"

	"github.com/xhad/docmeta/internal/fsutil"
	"github.com/xhad/docmeta/internal/models"
)

// Applied records where an edit landed in the file as it was being rewritten.
type Applied struct {
	Edit           models.Edit
	EffectiveStart int
	EffectiveEnd   int
}

type Rejected struct {
	Edit models.Edit
	Err  error
}

type FileResult struct {
	File     string
	Applied  []Applied
	Rejected []Rejected
	Written  bool
	Err      error
}

type Report struct {
	Files []FileResult
}

func (r Report) Counts() (applied, rejected, written, failed int) {
	for _, f := range r.Files {
		applied += len(f.Applied)
		rejected += len(f.Rejected)
		if f.Written {
			written++
		}
		if f.Err != nil {
			failed++
		}
	}
	return applied, rejected, written, failed
}

// ApplyLines replays edits for a single file. Edits are taken in ascending
// order of original start line regardless of input order. An edit whose
// original range intersects one already accepted is rejected with ErrOverlap,
// and one that does not fit the original file with ErrOutOfRange. Every
// accepted edit is shifted by the summed line delta of the edits accepted
// before it.
func ApplyLines(lines []string, edits []models.Edit) ([]string, []Applied, []Rejected) {
	ordered := make([]models.Edit, len(edits))
	copy(ordered, edits)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	out := make([]string, len(lines))
	copy(out, lines)

	var (
		applied  []Applied
		rejected []Rejected
		shift    int
		lastEnd  int
	)
	for _, edit := range ordered {
		if edit.Start < 1 || edit.End < edit.Start || edit.End > len(lines) {
			rejected = append(rejected, Rejected{Edit: edit, Err: fmt.Errorf("lines %d-%d of %d: %w", edit.Start, edit.End, len(lines), ErrOutOfRange)})
			continue
		}
		if edit.Start <= lastEnd {
			rejected = append(rejected, Rejected{Edit: edit, Err: fmt.Errorf("lines %d-%d: %w", edit.Start, edit.End, ErrOverlap)})
			continue
		}

		start, end := edit.Start+shift, edit.End+shift
		next := make([]string, 0, len(out)+edit.Delta())
		next = append(next, out[:start-1]...)
		next = append(next, edit.Lines...)
		next = append(next, out[end:]...)
		out = next

		applied = append(applied, Applied{Edit: edit, EffectiveStart: start, EffectiveEnd: end})
		shift += edit.Delta()
		lastEnd = edit.End
	}
	return out, applied, rejected
}

// Apply replays sections into their source files under the configured source
// directory. Each file is read once, edited in memory and written back once,
// and only when its content changed. A failing file is recorded in
// the report and does not stop the others.
func (e *Engine) Apply(sections []models.MetaSection) Report {
	byFile := make(map[string][]models.Edit)
	var order []string
	for _, s := range sections {
		if _, ok := byFile[s.File]; !ok {
			order = append(order, s.File)
		}
		byFile[s.File] = append(byFile[s.File], s.Edit())
	}
	sort.Strings(order)

	var report Report
	for _, file := range order {
		result := e.applyFile(file, byFile[file])
		report.Files = append(report.Files, result)

		switch {
		case result.Err != nil:
			e.logger.Error("failed to update source file", "file", file, "error", result.Err)
		case result.Written:
			e.logger.Info("updated source file", "file", file, "applied", len(result.Applied))
		}
		for _, r := range result.Rejected {
			e.logger.Warn("rejected edit", "file", file, "start", r.Edit.Start, "end", r.Edit.End, "error", r.Err)
		}
	}
	return report
}

func (e *Engine) applyFile(file string, edits []models.Edit) FileResult {
	result := FileResult{File: file}

	rel := filepath.FromSlash(file)
	if !filepath.IsLocal(rel) {
		result.Err = fmt.Errorf("source file %q escapes the source directory", file)
		return result
	}
	path := filepath.Join(e.config.SourceDir, rel)

	src, err := readSource(path)
	if err != nil {
		result.Err = fmt.Errorf("failed to read source file: %w", err)
		return result
	}

	out, applied, rejected := ApplyLines(src.Lines, edits)
	result.Applied, result.Rejected = applied, rejected
	if len(applied) == 0 || slices.Equal(out, src.Lines) {
		return result
	}

	if err := fsutil.WriteFile(path, []byte(src.render(out))); err != nil {
		result.Err = fmt.Errorf("failed to write source file: %w", err)
		return result
	}
	result.Written = true
	return result
}

// ApplyMetaDocument parses the configured meta-document and applies it.
func (e *Engine) ApplyMetaDocument() (Report, error) {
	sections, err := e.ParseFile()
	if err != nil {
		return Report{}, err
	}
	return e.Apply(sections), nil
}
