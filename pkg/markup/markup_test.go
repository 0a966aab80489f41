package markup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docmeta/internal/models"
	"github.com/xhad/docmeta/pkg/config"
)

func newTestPatcher(t *testing.T) *Patcher {
	t.Helper()
	p, err := NewPatcher(config.Default())
	require.NoError(t, err)
	return p
}

func meta(entries ...models.MetadataRecord) map[string]models.MetadataRecord {
	m := make(map[string]models.MetadataRecord)
	for _, rec := range entries {
		m[rec.ID()] = rec
	}
	return m
}

func record(id, title, abstract string) models.MetadataRecord {
	return models.MetadataRecord{FileName: id + ".md", GeneratedTitle: title, Abstract: abstract}
}

func TestLocate(t *testing.T) {
	l := NewLocator(config.Default().Patch)

	text := `<chapter id="intro">
<section id="a" role="topic">
<section id="b" role="concept">
<section role="topic">
<section id='c' role='topic' xml:lang="en">
<sectionx id="d" role="topic">
<section id="e" role="topic"/>
<chapter>`

	sections := l.Locate(text)
	require.Len(t, sections, 3)
	assert.Equal(t, "intro", sections[0].ID)
	assert.Equal(t, "chapter", sections[0].Tag)
	assert.Equal(t, "a", sections[1].ID)
	assert.Equal(t, "topic", sections[1].Role)
	assert.Equal(t, "c", sections[2].ID)

	// offset points just past the opening tag
	assert.Equal(t, len(`<chapter id="intro">`), sections[0].Offset)

	s, ok := l.Find(text, "c")
	require.True(t, ok)
	assert.Equal(t, "\n<sectionx", text[s.Offset:s.Offset+10])

	_, ok = l.Find(text, "b")
	assert.False(t, ok)
}

func TestPatchInsertsBlock(t *testing.T) {
	p := newTestPatcher(t)

	text := `<section id="foo" role="topic"></section>`
	out, changed := p.Patch(text, meta(record("foo", "T", "A")))
	require.True(t, changed)

	expected := `<section id="foo" role="topic">` +
		"\n<!-- START_AUTO_GENERATED_CONTENT\n" +
		`<title id="foo.title">T</title>` + "\n" +
		"<abstract><para>A</para></abstract>\n" +
		"END_AUTO_GENERATED_CONTENT -->\n" +
		`</section>`
	assert.Equal(t, expected, out)
	assert.Equal(t, 1, strings.Count(out, Marker))
}

func TestPatchIsIdempotent(t *testing.T) {
	p := newTestPatcher(t)
	m := meta(record("foo", "T", "A"), record("intro", "Intro", "About"))

	text := "<chapter id=\"intro\">\n<section id=\"foo\" role=\"topic\">\n<para>x</para>\n</section>\n</chapter>\n"
	once, changed := p.Patch(text, m)
	require.True(t, changed)
	assert.Equal(t, 2, strings.Count(once, Marker))

	twice, changed := p.Patch(once, m)
	assert.False(t, changed)
	assert.Equal(t, once, twice)
}

func TestPatchShortLookaheadStaysIdempotent(t *testing.T) {
	cfg := config.Default()
	cfg.Patch.Lookahead = 20
	p, err := NewPatcher(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.MinLookahead, minLookahead)

	m := meta(record("foo", "T", "A"))
	once, changed := p.Patch(`<section id="foo" role="topic"></section>`, m)
	require.True(t, changed)

	twice, changed := p.Patch(once, m)
	assert.False(t, changed)
	assert.Equal(t, 1, strings.Count(twice, Marker))
}

func TestPatchMissingMetadataLeavesTextUnchanged(t *testing.T) {
	p := newTestPatcher(t)

	text := `<section id="other" role="topic"><para>x</para></section>`
	out, report := p.PatchText(text, meta(record("foo", "T", "A")))
	assert.Equal(t, text, out)
	assert.False(t, report.Changed())
	assert.Equal(t, 1, report.Missing)
}

func TestPatchIgnoresNonTargetSections(t *testing.T) {
	p := newTestPatcher(t)
	m := meta(record("foo", "T", "A"))

	for _, text := range []string{
		`<section role="topic"></section>`,
		`<section id="foo"></section>`,
		`<section id="foo" role="reference"></section>`,
		`<section id="foo" role="topic"/>`,
	} {
		out, changed := p.Patch(text, m)
		assert.False(t, changed, text)
		assert.Equal(t, text, out)
	}
}

func TestPatchDuplicateIDPatchesFirstOnly(t *testing.T) {
	p := newTestPatcher(t)

	text := `<section id="dup" role="topic"></section><section id="dup" role="topic"></section>`
	out, report := p.PatchText(text, meta(record("dup", "T", "A")))

	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, strings.Count(out, Marker))
	assert.True(t, strings.HasSuffix(out, `<section id="dup" role="topic"></section>`))

	// a second pass neither patches the duplicate nor the first section again
	again, changed := p.Patch(out, meta(record("dup", "T", "A")))
	assert.False(t, changed)
	assert.Equal(t, out, again)
}

func TestPatchEscapesCommentTerminators(t *testing.T) {
	p := newTestPatcher(t)

	out, changed := p.Patch(`<chapter id="c"></chapter>`, meta(record("c", "Use --force", "Run a --- b -->")))
	require.True(t, changed)

	body := out[strings.Index(out, "<!--")+4 : strings.LastIndex(out, "-->")]
	assert.NotContains(t, body, "--")
}

func TestPatchTree(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "guide")
	require.NoError(t, os.MkdirAll(sub, 0755))

	files := map[string]string{
		filepath.Join(root, "a.xml"): `<section id="foo" role="topic"></section>`,
		filepath.Join(sub, "b.xml"):  `<section id="bar" role="topic"></section>`,
		filepath.Join(sub, "c.xml"):  `<section id="none" role="topic"></section>`,
		filepath.Join(root, "d.txt"): `<section id="foo" role="topic"></section>`,
	}
	for path, content := range files {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	var visited []string
	p, err := NewPatcher(config.Default(), WithFileCallback(func(path string, err error) {
		visited = append(visited, filepath.Base(path))
	}))
	require.NoError(t, err)

	m := meta(record("foo", "T", "A"), record("bar", "U", "B"))
	stats, err := p.PatchTree(root, m)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 2, stats.Modified)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, []string{"a.xml", "b.xml", "c.xml"}, visited)

	untouched, err := os.ReadFile(filepath.Join(sub, "c.xml"))
	require.NoError(t, err)
	assert.Equal(t, files[filepath.Join(sub, "c.xml")], string(untouched))

	other, err := os.ReadFile(filepath.Join(root, "d.txt"))
	require.NoError(t, err)
	assert.NotContains(t, string(other), Marker)

	// rerun changes nothing
	stats, err = p.PatchTree(root, m)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Modified)
}

func TestPatchTreeMissingRoot(t *testing.T) {
	p := newTestPatcher(t)
	_, err := p.PatchTree(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestNewPatcherRequiresConfig(t *testing.T) {
	_, err := NewPatcher(nil)
	assert.ErrorIs(t, err, config.ErrNotConfigured)

	cfg := config.Default()
	cfg.Patch.ContainerTags = nil
	cfg.Patch.RoleTags = nil
	_, err = NewPatcher(cfg)
	assert.Error(t, err)
}

func TestAudit(t *testing.T) {
	a, err := NewAuditor(config.Default())
	require.NoError(t, err)
	p := newTestPatcher(t)

	text := `<chapter id="intro">
<section id="foo" role="topic"><para>one</para></section>
<section id="bar" role="topic"><para>two</para></section>
<section id="skip" role="concept"><para>three</para></section>
</chapter>`
	patched, _ := p.Patch(text, meta(record("intro", "I", "X"), record("foo", "T", "A")))

	report, err := a.Audit(strings.NewReader(patched))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Sections)
	assert.ElementsMatch(t, []string{"intro", "foo"}, report.Patched)
	assert.Equal(t, []string{"bar"}, report.Unpatched)
	assert.Empty(t, report.Doubled)
	assert.False(t, report.Complete())
}

func TestAuditDetectsDoubledBlocks(t *testing.T) {
	a, err := NewAuditor(config.Default())
	require.NoError(t, err)

	block := Block("foo", record("foo", "T", "A"))
	text := `<section id="foo" role="topic">` + block + block + `<para>x</para></section>`

	report, err := a.Audit(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, report.Doubled)
}

func TestAuditTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.xml"),
		[]byte(`<section id="foo" role="topic">`+Block("foo", record("foo", "T", "A"))+`</section>`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.xml"),
		[]byte(`<section id="bar" role="topic"></section>`), 0644))

	a, err := NewAuditor(config.Default())
	require.NoError(t, err)

	reports, err := a.AuditTree(root)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.True(t, reports[0].Complete())
	assert.Equal(t, []string{"bar"}, reports[1].Unpatched)
}

func TestAuditTreeSkipsUnreadableFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.xml"),
		[]byte(`<section id="foo" role="topic"></section>`), 0644))
	require.NoError(t, os.Symlink(filepath.Join(root, "gone.xml"), filepath.Join(root, "b.xml")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.xml"),
		[]byte(`<section id="bar" role="topic">`+Block("bar", record("bar", "T", "A"))+`</section>`), 0644))

	a, err := NewAuditor(config.Default())
	require.NoError(t, err)

	reports, err := a.AuditTree(root)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, []string{"foo"}, reports[0].Unpatched)
	assert.Error(t, reports[1].Err)
	assert.Equal(t, filepath.Join(root, "b.xml"), reports[1].File)
	assert.False(t, reports[1].Complete())
	assert.True(t, reports[2].Complete())
}
