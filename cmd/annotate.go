package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/docmeta/internal/fsutil"
	"github.com/xhad/docmeta/internal/models"
	"github.com/xhad/docmeta/internal/types"
	"github.com/xhad/docmeta/pkg/annotator"
	"github.com/xhad/docmeta/pkg/llm"
	"github.com/xhad/docmeta/pkg/sink"
	"github.com/xhad/docmeta/pkg/store"
)

var annotateOpts struct {
	input    string
	output   string
	maxFiles int
	workers  int
	toDB     bool
}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Generate titles, abstracts and excerpts for Markdown documents",
	Long: `Annotate reads up to max_files Markdown documents from the input directory,
asks the configured model for an abstract and a title for each, and writes one
row per successful document to the metadata CSV.

A document that fails is logged and left out; the rest of the batch continues
and whatever succeeded is written.`,
	RunE: runAnnotate,
}

func init() {
	f := annotateCmd.Flags()
	f.StringVarP(&annotateOpts.input, "input", "i", "", "directory of Markdown documents (overrides annotate.input_dir)")
	f.StringVarP(&annotateOpts.output, "output", "o", "", "metadata CSV path (overrides output.csv_path)")
	f.IntVar(&annotateOpts.maxFiles, "max-files", 0, "maximum number of documents to process")
	f.IntVar(&annotateOpts.workers, "workers", 0, "number of documents processed concurrently")
	f.BoolVar(&annotateOpts.toDB, "db", false, "also upsert records into PostgreSQL (database.url)")
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if annotateOpts.input != "" {
		cfg.Annotate.InputDir = annotateOpts.input
	}
	if annotateOpts.output != "" {
		cfg.Output.CSVPath = annotateOpts.output
	}
	if annotateOpts.maxFiles > 0 {
		cfg.Annotate.MaxFiles = annotateOpts.maxFiles
	}
	if annotateOpts.workers > 0 {
		cfg.Annotate.MaxWorkers = annotateOpts.workers
	}

	// Preconditions abort before any document is processed
	if err := fsutil.RequireDir(cfg.Annotate.InputDir); err != nil {
		return err
	}

	client, err := llm.NewWithConfig(cfg, llm.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize generation client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("generation service unavailable: %w", err)
	}

	var recordStore types.RecordStore
	if annotateOpts.toDB {
		var embedder types.Embedder
		if cfg.Database.Embed {
			e, err := llm.NewEmbedder(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize embedder: %w", err)
			}
			embedder = e
		}
		ms, err := store.NewWithConfig(ctx, cfg, embedder)
		if err != nil {
			return fmt.Errorf("failed to initialize metadata store: %w", err)
		}
		defer ms.Close()
		recordStore = ms
	}

	paths, err := fsutil.ListFiles(cfg.Annotate.InputDir, cfg.Annotate.Extension)
	if err != nil {
		return err
	}
	docs := make([]models.Document, 0, len(paths))
	for _, path := range paths {
		docs = append(docs, models.NewDocument(path, ""))
	}

	total := len(docs)
	if total > cfg.Annotate.MaxFiles {
		total = cfg.Annotate.MaxFiles
	}
	color.Blue("\nAnnotating %d of %d documents in %s\n", total, len(docs), cfg.Annotate.InputDir)

	bar := newProgressBar(os.Stderr, total, "docs", "Annotating documents")
	ann, err := annotator.New(cfg, client,
		annotator.WithLogger(logger),
		annotator.WithProgress(func(annotator.Result) { bar.Add(1) }),
	)
	if err != nil {
		return err
	}

	records, stats := ann.Run(ctx, docs)
	bar.Finish()

	if stats.Failed > 0 || stats.Attempted < stats.Eligible {
		logger.Warn("writing partial output",
			"succeeded", stats.Succeeded,
			"failed", stats.Failed,
			"not_attempted", stats.Eligible-stats.Attempted)
	}

	if err := sink.NewCSVSink(cfg.Output.CSVPath).Write(records); err != nil {
		return err
	}

	if recordStore != nil {
		if err := recordStore.Store(ctx, stats.RunID, records); err != nil {
			color.Red("✗ Failed to store records in PostgreSQL: %v\n", err)
			return err
		}
		color.Green("✓ Stored %d records in PostgreSQL\n", len(records))
	}

	summary := color.GreenString
	if stats.Failed > 0 {
		summary = color.YellowString
	}
	fmt.Println(summary("✓ Annotated %d of %d attempted documents in %s", stats.Succeeded, stats.Attempted, stats.Elapsed.Round(time.Millisecond)))
	if stats.Failed > 0 {
		color.Yellow("  %d documents failed; the CSV holds only the successful ones\n", stats.Failed)
	}
	color.Green("✓ Metadata written to %s\n", cfg.Output.CSVPath)

	return ctx.Err()
}
