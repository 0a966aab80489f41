package models

import (
	"path/filepath"
	"strings"
)

// Document is one input content unit, read once per run.
type Document struct {
	ID       string
	Path     string
	FileName string
	Content  string
}

// NewDocument builds a Document from a file path and its raw text.
func NewDocument(path, content string) Document {
	name := filepath.Base(path)
	return Document{
		ID:       strings.TrimSuffix(name, filepath.Ext(name)),
		Path:     path,
		FileName: name,
		Content:  content,
	}
}

// MetadataRecord is the generated metadata for one document. It is created by a
// single annotation task and never mutated afterwards.
type MetadataRecord struct {
	FileName             string
	ExistingTitle        string
	ExistingTitleLength  int
	Abstract             string
	GeneratedTitle       string
	GeneratedTitleLength int
	Excerpt              string
}

// ID returns the join key: the file name with any markdown suffix stripped.
func (r MetadataRecord) ID() string {
	return DocumentID(r.FileName)
}

// DocumentID strips a markdown suffix from a file name.
func DocumentID(fileName string) string {
	for _, ext := range []string{".md", ".markdown"} {
		if strings.HasSuffix(fileName, ext) {
			return strings.TrimSuffix(fileName, ext)
		}
	}
	return fileName
}
