package remap

import (
	"os"
	"strings"
)

// sourceFile is a markup file split into lines without their terminators.
// The line ending and final newline are kept so an unchanged line sequence
// renders back to the same bytes.
type sourceFile struct {
	Lines    []string
	EOL      string
	Trailing bool
}

func readSource(path string) (sourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sourceFile{}, err
	}
	return splitSource(string(data)), nil
}

func splitSource(text string) sourceFile {
	src := sourceFile{EOL: "\n"}
	if text == "" {
		return src
	}
	if i := strings.IndexByte(text, '\n'); i > 0 && text[i-1] == '\r' {
		src.EOL = "\r\n"
	}

	src.Trailing = strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")
	src.Lines = strings.Split(text, "\n")
	if src.EOL == "\r\n" {
		for i, line := range src.Lines {
			src.Lines[i] = strings.TrimSuffix(line, "\r")
		}
	}
	return src
}

func (s sourceFile) render(lines []string) string {
	text := strings.Join(lines, s.EOL)
	if s.Trailing {
		text += s.EOL
	}
	return text
}
