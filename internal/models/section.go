package models

// Section is a tagged markup region carrying an id. TagStart is the byte
// position of the opening tag's '<'; Offset is the position immediately after
// its closing angle bracket.
type Section struct {
	Tag      string
	ID       string
	Role     string
	TagStart int
	Offset   int
}

// MetaSection is one entry of a meta-document: provenance plus replacement body.
// Start and End are 1-indexed, inclusive line numbers in the original file.
type MetaSection struct {
	File  string
	Start int
	End   int
	Lines []string
}

// Edit is an immutable line-range replacement resolved against one file.
type Edit struct {
	File  string
	Start int
	End   int
	Lines []string
}

// Delta is the line-count change the edit causes once applied.
func (e Edit) Delta() int {
	return len(e.Lines) - (e.End - e.Start + 1)
}

// Edit converts the entry into an immutable edit.
func (m MetaSection) Edit() Edit {
	lines := make([]string, len(m.Lines))
	copy(lines, m.Lines)
	return Edit{File: m.File, Start: m.Start, End: m.End, Lines: lines}
}
