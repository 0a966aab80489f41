package markup

import (
	"regexp"
	"sort"
	"strings"

	"github.com/xhad/docmeta/internal/models"
	"github.com/xhad/docmeta/pkg/config"
)

var attrPattern = regexp.MustCompile(`([A-Za-z_:][-A-Za-z0-9_:.]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// Locator finds opening tags of target sections. Container tags always count;
// role tags count only when their role attribute matches. Both need an id.
type Locator struct {
	container map[string]bool
	roleTags  map[string]bool
	role      string
	pattern   *regexp.Regexp
}

func NewLocator(cfg config.PatchConfig) *Locator {
	l := &Locator{
		container: make(map[string]bool),
		roleTags:  make(map[string]bool),
		role:      cfg.Role,
	}

	var names []string
	for _, tag := range cfg.ContainerTags {
		l.container[tag] = true
		names = append(names, regexp.QuoteMeta(tag))
	}
	for _, tag := range cfg.RoleTags {
		l.roleTags[tag] = true
		names = append(names, regexp.QuoteMeta(tag))
	}
	// longest first so a tag never shadows another it prefixes
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	l.pattern = regexp.MustCompile(`<(` + strings.Join(names, "|") + `)(\s[^>]*)?>`)
	return l
}

// Locate returns the target sections of text in document order.
func (l *Locator) Locate(text string) []models.Section {
	var sections []models.Section
	for _, m := range l.pattern.FindAllStringSubmatchIndex(text, -1) {
		tag := text[m[2]:m[3]]
		// self-closing tags have no body to patch
		if text[m[1]-2] == '/' {
			continue
		}
		var attrs map[string]string
		if m[4] >= 0 {
			attrs = parseAttrs(text[m[4]:m[5]])
		}

		id := attrs["id"]
		if id == "" {
			continue
		}
		role := attrs["role"]
		if !l.container[tag] && !(l.roleTags[tag] && role == l.role) {
			continue
		}

		sections = append(sections, models.Section{
			Tag:      tag,
			ID:       id,
			Role:     role,
			TagStart: m[0],
			Offset:   m[1],
		})
	}
	return sections
}

// Find re-locates the first section carrying id in the current text.
func (l *Locator) Find(text, id string) (models.Section, bool) {
	for _, s := range l.Locate(text) {
		if s.ID == id {
			return s, true
		}
	}
	return models.Section{}, false
}

func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(s, -1) {
		if _, seen := attrs[m[1]]; seen {
			continue
		}
		if m[2] != "" || m[3] == "" {
			attrs[m[1]] = m[2]
		} else {
			attrs[m[1]] = m[3]
		}
	}
	return attrs
}
