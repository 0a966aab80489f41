// Package annotator runs the per-document enrichment pipeline over a capped
// document set with a bounded number of tasks in flight.
//
// Each task extracts the existing title and excerpt, asks the generator for an
// abstract and then for a title derived from that abstract, and yields one
// MetadataRecord. A failing task is logged and dropped; it never aborts its
// siblings. Results arrive in completion order. Which documents make the cap
// depends on the order they were discovered in, which the filesystem does not
// guarantee.
package annotator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/xhad/docmeta/internal/models"
	"github.com/xhad/docmeta/internal/types"
	"github.com/xhad/docmeta/pkg/config"
	"github.com/xhad/docmeta/pkg/extract"
	"github.com/xhad/docmeta/pkg/prompts"
)

// Result is the outcome of one document task.
type Result struct {
	Doc    models.Document
	Record models.MetadataRecord
	Err    error
}

// Stats summarises a run.
type Stats struct {
	RunID     string
	Eligible  int
	Attempted int
	Succeeded int
	Failed    int
	Pauses    int
	Elapsed   time.Duration
}

type Annotator struct {
	config     config.AnnotateConfig
	gen        types.Generator
	logger     *slog.Logger
	onProgress func(Result)
	pause      func(ctx context.Context, d time.Duration) error
}

type Option func(*Annotator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Annotator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithProgress registers a callback invoked once per finished task, from the
// orchestrating goroutine.
func WithProgress(fn func(Result)) Option {
	return func(a *Annotator) { a.onProgress = fn }
}

func New(cfg *config.Config, gen types.Generator, opts ...Option) (*Annotator, error) {
	if cfg == nil {
		return nil, config.ErrNotConfigured
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Annotate.MaxWorkers < 1 {
		return nil, fmt.Errorf("max_workers must be positive, got %d", cfg.Annotate.MaxWorkers)
	}

	a := &Annotator{
		config: cfg.Annotate,
		gen:    gen,
		logger: slog.Default(),
		pause:  sleep,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run processes at most MaxFiles documents with MaxWorkers tasks in flight.
// After every RateLimitEvery completions dispatch pauses for RateLimitPause.
// If ctx is cancelled, no new tasks start and in-flight tasks are drained.
func (a *Annotator) Run(ctx context.Context, docs []models.Document) ([]models.MetadataRecord, Stats) {
	start := time.Now()
	stats := Stats{RunID: uuid.NewString()}
	logger := a.logger.With("run", stats.RunID)

	if a.config.MaxFiles >= 0 && len(docs) > a.config.MaxFiles {
		docs = docs[:a.config.MaxFiles]
	}
	stats.Eligible = len(docs)
	logger.Info("annotation started", "documents", len(docs), "workers", a.config.MaxWorkers)

	results := make(chan Result, a.config.MaxWorkers)
	records := make([]models.MetadataRecord, 0, len(docs))

	next, inFlight, completed := 0, 0, 0
	for (next < len(docs) && ctx.Err() == nil) || inFlight > 0 {
		if next < len(docs) && inFlight < a.config.MaxWorkers && ctx.Err() == nil {
			doc := docs[next]
			next++
			inFlight++
			stats.Attempted++
			go func() {
				results <- a.process(ctx, doc)
			}()
			continue
		}

		res := <-results
		inFlight--
		completed++

		if res.Err != nil {
			stats.Failed++
			logger.Error("document failed", "doc", res.Doc.ID, "error", res.Err)
		} else {
			stats.Succeeded++
			records = append(records, res.Record)
			logger.Info("document annotated", "doc", res.Doc.ID)
		}
		if a.onProgress != nil {
			a.onProgress(res)
		}

		every := a.config.RateLimitEvery
		if every > 0 && completed%every == 0 && next < len(docs) && ctx.Err() == nil {
			stats.Pauses++
			logger.Debug("pausing dispatch", "completed", completed, "pause", a.config.RateLimitPause)
			if err := a.pause(ctx, a.config.RateLimitPause); err != nil {
				logger.Warn("pause interrupted", "error", err)
			}
		}
	}

	stats.Elapsed = time.Since(start)
	logger.Info("annotation finished",
		"attempted", stats.Attempted,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"elapsed", stats.Elapsed)
	return records, stats
}

// process runs the pipeline for one document.
func (a *Annotator) process(ctx context.Context, doc models.Document) (res Result) {
	res.Doc = doc
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic processing %s: %v", doc.ID, r)
		}
	}()

	content := doc.Content
	if content == "" && doc.Path != "" {
		data, err := os.ReadFile(doc.Path)
		if err != nil {
			res.Err = fmt.Errorf("failed to read %s: %w", doc.Path, err)
			return res
		}
		content = string(data)
	}

	existingTitle := extract.Title(content)
	excerpt := extract.Excerpt(content)

	abstract, err := a.gen.Generate(ctx, prompts.Abstract(a.config.ServiceName, doc.FileName, content))
	if err != nil {
		res.Err = fmt.Errorf("abstract generation for %s: %w", doc.ID, err)
		return res
	}

	title, err := a.gen.Generate(ctx, prompts.Title(a.config.ServiceName, existingTitle, abstract))
	if err != nil {
		res.Err = fmt.Errorf("title generation for %s: %w", doc.ID, err)
		return res
	}

	res.Record = models.MetadataRecord{
		FileName:             doc.FileName,
		ExistingTitle:        existingTitle,
		ExistingTitleLength:  extract.Length(existingTitle),
		Abstract:             abstract,
		GeneratedTitle:       title,
		GeneratedTitleLength: extract.Length(title),
		Excerpt:              excerpt,
	}
	return res
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
