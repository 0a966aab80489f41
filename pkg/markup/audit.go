package markup

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/xhad/docmeta/internal/fsutil"
	"github.com/xhad/docmeta/pkg/config"
)

// AuditReport describes how many target sections of a document carry a
// generated block.
type AuditReport struct {
	File      string
	Sections  int
	Patched   []string
	Unpatched []string
	// Doubled lists sections holding more than one generated block.
	Doubled []string
	// Err is set when the file could not be read or parsed.
	Err error
}

func (r AuditReport) Complete() bool {
	return r.Err == nil && len(r.Unpatched) == 0 && len(r.Doubled) == 0
}

// Auditor inspects patched markup with a DOM parser rather than the regex
// locator, so it gives an independent view of what Patch produced.
type Auditor struct {
	selector  string
	extension string
	logger    *slog.Logger
}

type AuditOption func(*Auditor)

func WithAuditLogger(logger *slog.Logger) AuditOption {
	return func(a *Auditor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewAuditor(cfg *config.Config, opts ...AuditOption) (*Auditor, error) {
	if cfg == nil {
		return nil, config.ErrNotConfigured
	}

	var selectors []string
	for _, tag := range cfg.Patch.ContainerTags {
		selectors = append(selectors, fmt.Sprintf("%s[id]", strings.ToLower(tag)))
	}
	for _, tag := range cfg.Patch.RoleTags {
		selectors = append(selectors, fmt.Sprintf("%s[id][role=%q]", strings.ToLower(tag), cfg.Patch.Role))
	}
	if len(selectors) == 0 {
		return nil, fmt.Errorf("no section tags configured")
	}

	a := &Auditor{
		selector:  strings.Join(selectors, ", "),
		extension: cfg.Patch.Extension,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Auditor) Audit(r io.Reader) (AuditReport, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return AuditReport{}, fmt.Errorf("failed to parse markup: %w", err)
	}

	var report AuditReport
	doc.Find(a.selector).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		report.Sections++

		switch n := countBlocks(s.Get(0)); {
		case n == 0:
			report.Unpatched = append(report.Unpatched, id)
		case n > 1:
			report.Doubled = append(report.Doubled, id)
			report.Patched = append(report.Patched, id)
		default:
			report.Patched = append(report.Patched, id)
		}
	})
	return report, nil
}

// countBlocks counts the leading generated comments of a section, skipping
// whitespace between them.
func countBlocks(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) == "":
		case c.Type == html.CommentNode && strings.Contains(c.Data, Marker):
			count++
		default:
			return count
		}
	}
	return count
}

func (a *Auditor) AuditFile(path string) (AuditReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return AuditReport{}, err
	}
	defer f.Close()

	report, err := a.Audit(f)
	report.File = path
	return report, err
}

// AuditTree audits every markup file under root, in path order. A file that
// cannot be audited is logged and reported with Err set; the walk goes on.
// Only a failure to walk root returns an error.
func (a *Auditor) AuditTree(root string) ([]AuditReport, error) {
	files, err := fsutil.WalkFiles(root, a.extension)
	if err != nil {
		return nil, err
	}

	reports := make([]AuditReport, 0, len(files))
	for _, path := range files {
		report, err := a.AuditFile(path)
		if err != nil {
			a.logger.Error("failed to audit file", "file", path, "error", err)
			report = AuditReport{File: path, Err: err}
		}
		reports = append(reports, report)
	}
	return reports, nil
}
