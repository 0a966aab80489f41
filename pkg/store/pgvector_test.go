package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docmeta/internal/models"
	"github.com/xhad/docmeta/pkg/config"
)

type fixedEmbedder struct {
	dim int
}

func (f fixedEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func TestNewWithConfigValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewWithConfig(ctx, nil, nil)
	assert.ErrorIs(t, err, config.ErrNotConfigured)

	cfg := config.Default()
	cfg.Database.URL = ""
	_, err = NewWithConfig(ctx, cfg, nil)
	assert.Error(t, err)

	cfg.Database.URL = "postgres://localhost:5432/test"
	cfg.Database.TableName = "meta; DROP TABLE x"
	_, err = NewWithConfig(ctx, cfg, nil)
	assert.ErrorContains(t, err, "invalid table name")
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "héllo", sanitizeUTF8("héllo"))
	assert.Equal(t, "ab", sanitizeUTF8("a\xffb"))
}

// This test requires a PostgreSQL server with the pgvector extension available.
func TestStoreAndLoad(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	cfg := config.Default()
	cfg.Database.URL = dbURL
	cfg.Database.TableName = fmt.Sprintf("doc_metadata_test_%d", time.Now().UnixNano())
	cfg.Database.VectorDim = 4
	cfg.Database.Embed = true

	ctx := context.Background()
	ms, err := NewWithConfig(ctx, cfg, fixedEmbedder{dim: 4})
	require.NoError(t, err)
	defer func() {
		ms.pool.Exec(ctx, "DROP TABLE IF EXISTS "+cfg.Database.TableName)
		ms.Close()
	}()

	records := []models.MetadataRecord{
		{FileName: "foo.md", Abstract: "A", GeneratedTitle: "T", GeneratedTitleLength: 1},
		{FileName: "bar.md", Abstract: "B", GeneratedTitle: "U", Excerpt: "x"},
	}
	require.NoError(t, ms.Store(ctx, "run-1", records))

	// upsert replaces the earlier row
	records[0].GeneratedTitle = "T2"
	require.NoError(t, ms.Store(ctx, "run-2", records[:1]))

	table, err := ms.Load(ctx)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, "T2", table["foo"].GeneratedTitle)
	assert.Equal(t, "x", table["bar"].Excerpt)
}

func TestStoreRejectsWrongDimension(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	cfg := config.Default()
	cfg.Database.URL = dbURL
	cfg.Database.TableName = fmt.Sprintf("doc_metadata_dim_%d", time.Now().UnixNano())
	cfg.Database.VectorDim = 4
	cfg.Database.Embed = true

	ctx := context.Background()
	ms, err := NewWithConfig(ctx, cfg, fixedEmbedder{dim: 3})
	require.NoError(t, err)
	defer func() {
		ms.pool.Exec(ctx, "DROP TABLE IF EXISTS "+cfg.Database.TableName)
		ms.Close()
	}()

	err = ms.Store(ctx, "run", []models.MetadataRecord{{FileName: "foo.md", Abstract: "A"}})
	assert.ErrorContains(t, err, "dimensions")
}
