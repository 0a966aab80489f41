package llm

import (
	"context"
	"fmt"

	"github.com/xhad/docmeta/pkg/config"
)

type embeddingModel interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder turns generated abstracts into vectors for the metadata store.
type Embedder struct {
	Model string
	embed embeddingModel
}

func NewEmbedder(cfg *config.Config) (*Embedder, error) {
	if cfg == nil {
		return nil, config.ErrNotConfigured
	}

	model, err := newModel(cfg.LLM, cfg.LLM.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	embed, ok := model.(embeddingModel)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support embeddings", cfg.LLM.Provider)
	}

	return &Embedder{Model: cfg.LLM.EmbeddingModel, embed: embed}, nil
}

func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embed.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, classify(err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}
	return vectors, nil
}
