// Package remap supports the edit-then-reapply workflow for markup sections.
//
// Build flattens the target sections of a markup tree into a single
// meta-document whose entries carry their source file and original line range.
// After the meta-document has been edited externally, Parse reads it back and
// Apply replays every entry into its source file. Within a file, entries are
// applied by ascending original start line and each later entry is shifted by
// the line-count change of the entries applied before it.
package remap

import (
	"errors"
	"log/slog"

	"github.com/xhad/docmeta/pkg/config"
	"github.com/xhad/docmeta/pkg/markup"
)

var (
	ErrOverlap        = errors.New("edit overlaps an earlier edit")
	ErrOutOfRange     = errors.New("edit range outside file")
	ErrMalformedEntry = errors.New("malformed meta-document entry")
)

type Engine struct {
	config  config.RemapConfig
	locator *markup.Locator
	ext     string
	logger  *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, config.ErrNotConfigured
	}

	e := &Engine{
		config:  cfg.Remap,
		locator: markup.NewLocator(cfg.Patch),
		ext:     cfg.Patch.Extension,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}
