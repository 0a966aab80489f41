package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xhad/docmeta/internal/models"
	"github.com/xhad/docmeta/internal/types"
)

// Columns is the fixed header of the metadata table.
var Columns = []string{
	"File Name",
	"Existing Title",
	"Existing Title Length",
	"AI Generated Abstract",
	"AI Generated Title",
	"AI Generated Title Length",
	"First Paragraph",
}

// CSVSink writes the results table to a file.
type CSVSink struct {
	Path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{Path: path}
}

// Write replaces the file with a header row followed by one row per record.
func (s *CSVSink) Write(records []models.MetadataRecord) error {
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Path, err)
	}
	defer f.Close()

	if err := WriteCSV(f, records); err != nil {
		return err
	}
	return f.Close()
}

func WriteCSV(w io.Writer, records []models.MetadataRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.FileName,
			r.ExistingTitle,
			strconv.Itoa(r.ExistingTitleLength),
			r.Abstract,
			r.GeneratedTitle,
			strconv.Itoa(r.GeneratedTitleLength),
			r.Excerpt,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", r.FileName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable loads a results table from path and keys it by document id.
func ReadTable(path string, logger *slog.Logger) (map[string]models.MetadataRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, logger)
}

// ReadCSV parses a results table. Columns are located by header name; missing
// columns read as empty. The first row wins when two rows share an id.
func ReadCSV(r io.Reader, logger *slog.Logger) (map[string]models.MetadataRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return map[string]models.MetadataRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	if _, ok := index["File Name"]; !ok {
		return nil, fmt.Errorf("missing \"File Name\" column")
	}

	table := make(map[string]models.MetadataRecord)
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(name string) string {
			if i, ok := index[name]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}
		number := func(name string) int {
			n, _ := strconv.Atoi(field(name))
			return n
		}

		rec := models.MetadataRecord{
			FileName:             field("File Name"),
			ExistingTitle:        field("Existing Title"),
			ExistingTitleLength:  number("Existing Title Length"),
			Abstract:             field("AI Generated Abstract"),
			GeneratedTitle:       field("AI Generated Title"),
			GeneratedTitleLength: number("AI Generated Title Length"),
			Excerpt:              field("First Paragraph"),
		}
		id := rec.ID()
		if id == "" {
			logger.Warn("skipping row without file name", "line", line)
			continue
		}
		if _, dup := table[id]; dup {
			logger.Warn("duplicate metadata row ignored", "id", id, "line", line)
			continue
		}
		table[id] = rec
	}
	return table, nil
}

var _ types.RecordSink = (*CSVSink)(nil)
