package types

import (
	"context"

	"github.com/xhad/docmeta/internal/models"
)

// Generator is the boundary to the external text-generation service.
// Retries and backoff live behind it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// RecordSink receives the aggregated results table of a run.
type RecordSink interface {
	Write(records []models.MetadataRecord) error
}

// RecordStore persists metadata records and loads them back as a join table.
type RecordStore interface {
	Store(ctx context.Context, runID string, records []models.MetadataRecord) error
	Load(ctx context.Context) (map[string]models.MetadataRecord, error)
	Close()
}
