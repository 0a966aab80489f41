package markup

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xhad/docmeta/internal/fsutil"
	"github.com/xhad/docmeta/internal/models"
	"github.com/xhad/docmeta/pkg/config"
)

const (
	// Marker opens every inserted block; finding it right after a section's
	// opening tag means the section is already patched.
	Marker    = "START_AUTO_GENERATED_CONTENT"
	EndMarker = "END_AUTO_GENERATED_CONTENT"

	// minLookahead is the shortest window that still sees the marker of a
	// block inserted directly after the opening tag.
	minLookahead = len("\n<!-- ") + len(Marker)
)

// Report counts what one Patch call did.
type Report struct {
	Inserted       int
	AlreadyPatched int
	Missing        int
	Duplicates     int
}

func (r Report) Changed() bool { return r.Inserted > 0 }

// TreeStats summarises a PatchTree run.
type TreeStats struct {
	Files     int
	Modified  int
	Unchanged int
	Failed    int
	Inserted  int
}

// Patcher inserts generated title/abstract blocks into markup sections.
type Patcher struct {
	locator   *Locator
	lookahead int
	extension string
	logger    *slog.Logger
	onFile    func(path string, err error)
}

type Option func(*Patcher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Patcher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFileCallback is called once per file visited by PatchTree.
func WithFileCallback(fn func(path string, err error)) Option {
	return func(p *Patcher) { p.onFile = fn }
}

func NewPatcher(cfg *config.Config, opts ...Option) (*Patcher, error) {
	if cfg == nil {
		return nil, config.ErrNotConfigured
	}
	if len(cfg.Patch.ContainerTags)+len(cfg.Patch.RoleTags) == 0 {
		return nil, fmt.Errorf("no section tags configured")
	}

	p := &Patcher{
		locator:   NewLocator(cfg.Patch),
		lookahead: cfg.Patch.Lookahead,
		extension: cfg.Patch.Extension,
		logger:    slog.Default(),
	}
	if p.lookahead < minLookahead {
		p.lookahead = minLookahead
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Patcher) Locator() *Locator { return p.locator }

// Patch inserts one block per section whose id is in meta and returns the new
// text and whether anything changed. Sections already carrying a block are
// left alone, so patching the output again is a no-op. When an id occurs more
// than once in a file only its first occurrence is patched.
func (p *Patcher) Patch(text string, meta map[string]models.MetadataRecord) (string, bool) {
	out, report := p.PatchText(text, meta)
	return out, report.Changed()
}

func (p *Patcher) PatchText(text string, meta map[string]models.MetadataRecord) (string, Report) {
	var report Report
	seen := make(map[string]bool)

	for _, section := range p.locator.Locate(text) {
		if seen[section.ID] {
			report.Duplicates++
			p.logger.Warn("duplicate section id, keeping first occurrence", "id", section.ID)
			continue
		}
		seen[section.ID] = true

		rec, ok := meta[section.ID]
		if !ok {
			report.Missing++
			p.logger.Debug("no metadata for section", "id", section.ID)
			continue
		}

		// offsets shift after every insertion, so resolve against the current text
		current, found := p.locator.Find(text, section.ID)
		if !found {
			p.logger.Warn("could not re-locate section", "id", section.ID)
			continue
		}

		if p.hasMarker(text, current.Offset) {
			report.AlreadyPatched++
			p.logger.Debug("section already patched", "id", section.ID)
			continue
		}

		text = text[:current.Offset] + Block(section.ID, rec) + text[current.Offset:]
		report.Inserted++
		p.logger.Debug("inserted metadata block", "id", section.ID)
	}

	return text, report
}

func (p *Patcher) hasMarker(text string, offset int) bool {
	end := offset + p.lookahead
	if end > len(text) {
		end = len(text)
	}
	return strings.Contains(text[offset:end], Marker)
}

// Block renders the commented metadata block inserted after a section's opening tag.
func Block(id string, rec models.MetadataRecord) string {
	return fmt.Sprintf("\n<!-- %s\n<title id=\"%s.title\">%s</title>\n<abstract><para>%s</para></abstract>\n%s -->\n",
		Marker, id, commentSafe(rec.GeneratedTitle), commentSafe(rec.Abstract), EndMarker)
}

// commentSafe keeps text legal inside an XML comment.
func commentSafe(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "- -")
	}
	return s
}

// PatchFile patches one file in place. The file is rewritten only when a
// block was inserted; otherwise it stays byte-identical.
func (p *Patcher) PatchFile(path string, meta map[string]models.MetadataRecord) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	out, report := p.PatchText(string(data), meta)
	if !report.Changed() {
		return report, nil
	}

	if err := fsutil.WriteFile(path, []byte(out)); err != nil {
		return report, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return report, nil
}

// PatchTree patches every markup file under root. A failing file is logged
// and skipped; only failing to walk root is returned as an error.
func (p *Patcher) PatchTree(root string, meta map[string]models.MetadataRecord) (TreeStats, error) {
	var stats TreeStats

	files, err := fsutil.WalkFiles(root, p.extension)
	if err != nil {
		return stats, err
	}

	for _, path := range files {
		stats.Files++
		report, err := p.PatchFile(path, meta)
		switch {
		case err != nil:
			stats.Failed++
			p.logger.Error("failed to patch file", "file", path, "error", err)
		case report.Changed():
			stats.Modified++
			stats.Inserted += report.Inserted
			p.logger.Info("modified file", "file", path, "inserted", report.Inserted)
		default:
			stats.Unchanged++
			p.logger.Debug("no changes needed", "file", path)
		}
		if p.onFile != nil {
			p.onFile(path, err)
		}
	}

	return stats, nil
}
