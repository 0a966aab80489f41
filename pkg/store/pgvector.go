package store

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/docmeta/internal/models"
	"github.com/xhad/docmeta/internal/types"
	"github.com/xhad/docmeta/pkg/config"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MetadataStore keeps annotation results in PostgreSQL, optionally with an
// embedding of each abstract.
type MetadataStore struct {
	config   config.DatabaseConfig
	pool     *pgxpool.Pool
	embedder types.Embedder
}

// NewWithConfig connects to the database and prepares the table. embedder may
// be nil, in which case the embedding column stays NULL.
func NewWithConfig(ctx context.Context, cfg *config.Config, embedder types.Embedder) (*MetadataStore, error) {
	if cfg == nil {
		return nil, config.ErrNotConfigured
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	if !tableNamePattern.MatchString(cfg.Database.TableName) {
		return nil, fmt.Errorf("invalid table name: %q", cfg.Database.TableName)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ms := &MetadataStore{
		config:   cfg.Database,
		pool:     pool,
		embedder: embedder,
	}

	if err := ms.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return ms, nil
}

func (ms *MetadataStore) initialize(ctx context.Context) error {
	if err := ms.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	_, err := ms.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			existing_title TEXT,
			existing_title_length INTEGER,
			abstract TEXT,
			generated_title TEXT,
			generated_title_length INTEGER,
			excerpt TEXT,
			run_id TEXT,
			embedding vector(%d),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, ms.config.TableName, ms.config.VectorDim)

	_, err = ms.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// Store upserts records in one transaction, keyed by document id.
func (ms *MetadataStore) Store(ctx context.Context, runID string, records []models.MetadataRecord) error {
	tx, err := ms.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, file_name, existing_title, existing_title_length, abstract,
			generated_title, generated_title_length, excerpt, run_id, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			existing_title = EXCLUDED.existing_title,
			existing_title_length = EXCLUDED.existing_title_length,
			abstract = EXCLUDED.abstract,
			generated_title = EXCLUDED.generated_title,
			generated_title_length = EXCLUDED.generated_title_length,
			excerpt = EXCLUDED.excerpt,
			run_id = EXCLUDED.run_id,
			embedding = EXCLUDED.embedding,
			updated_at = now()`,
		ms.config.TableName)

	for _, rec := range records {
		var embedding any
		if ms.embedder != nil && ms.config.Embed && rec.Abstract != "" {
			vectors, err := ms.embedder.CreateEmbedding(ctx, []string{sanitizeUTF8(rec.Abstract)})
			if err != nil {
				return fmt.Errorf("failed to embed abstract for %s: %w", rec.ID(), err)
			}
			if len(vectors[0]) != ms.config.VectorDim {
				return fmt.Errorf("embedding for %s has %d dimensions, table expects %d",
					rec.ID(), len(vectors[0]), ms.config.VectorDim)
			}
			embedding = pgvector.NewVector(vectors[0])
		}

		_, err = tx.Exec(ctx, stmt,
			rec.ID(),
			rec.FileName,
			sanitizeUTF8(rec.ExistingTitle),
			rec.ExistingTitleLength,
			sanitizeUTF8(rec.Abstract),
			sanitizeUTF8(rec.GeneratedTitle),
			rec.GeneratedTitleLength,
			sanitizeUTF8(rec.Excerpt),
			runID,
			embedding,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert %s: %w", rec.ID(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Load returns every stored record keyed by document id.
func (ms *MetadataStore) Load(ctx context.Context) (map[string]models.MetadataRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, file_name, COALESCE(existing_title, ''), COALESCE(existing_title_length, 0),
			COALESCE(abstract, ''), COALESCE(generated_title, ''),
			COALESCE(generated_title_length, 0), COALESCE(excerpt, '')
		FROM %s
		ORDER BY id`,
		ms.config.TableName)

	rows, err := ms.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	table := make(map[string]models.MetadataRecord)
	for rows.Next() {
		var id string
		var rec models.MetadataRecord
		err := rows.Scan(
			&id,
			&rec.FileName,
			&rec.ExistingTitle,
			&rec.ExistingTitleLength,
			&rec.Abstract,
			&rec.GeneratedTitle,
			&rec.GeneratedTitleLength,
			&rec.Excerpt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		table[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return table, nil
}

func (ms *MetadataStore) Close() {
	if ms.pool != nil {
		ms.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}

var _ types.RecordStore = (*MetadataStore)(nil)
