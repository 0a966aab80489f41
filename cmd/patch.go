package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/docmeta/internal/fsutil"
	"github.com/xhad/docmeta/internal/models"
	"github.com/xhad/docmeta/pkg/markup"
	"github.com/xhad/docmeta/pkg/sink"
	"github.com/xhad/docmeta/pkg/store"
)

var patchOpts struct {
	markupDir string
	csv       string
	fromDB    bool
}

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Insert generated metadata blocks into markup sections",
	Long: `Patch joins every <chapter id=...> and <section id=... role="topic"> in the
markup tree against the metadata table by id and inserts a commented title and
abstract block right after the opening tag.

Sections that already carry a block are left alone, so patch can be re-run
safely. Files without changes are never rewritten.`,
	RunE: runPatch,
}

func init() {
	f := patchCmd.Flags()
	f.StringVarP(&patchOpts.markupDir, "markup-dir", "d", "", "markup tree to patch (overrides patch.markup_dir)")
	f.StringVar(&patchOpts.csv, "csv", "", "metadata CSV to read (overrides output.csv_path)")
	f.BoolVar(&patchOpts.fromDB, "from-db", false, "read metadata from PostgreSQL instead of the CSV")
}

func runPatch(cmd *cobra.Command, args []string) error {
	if patchOpts.markupDir != "" {
		cfg.Patch.MarkupDir = patchOpts.markupDir
	}
	if patchOpts.csv != "" {
		cfg.Output.CSVPath = patchOpts.csv
	}

	if err := fsutil.RequireDir(cfg.Patch.MarkupDir); err != nil {
		return err
	}

	meta, err := loadMetadata(cmd)
	if err != nil {
		return err
	}
	color.Blue("\nLoaded metadata for %d documents\n", len(meta))

	files, err := fsutil.WalkFiles(cfg.Patch.MarkupDir, cfg.Patch.Extension)
	if err != nil {
		return err
	}

	bar := newProgressBar(os.Stderr, len(files), "files", "Patching markup")
	patcher, err := markup.NewPatcher(cfg,
		markup.WithLogger(logger),
		markup.WithFileCallback(func(string, error) { bar.Add(1) }),
	)
	if err != nil {
		return err
	}

	stats, err := patcher.PatchTree(cfg.Patch.MarkupDir, meta)
	bar.Finish()
	if err != nil {
		return err
	}

	color.Green("✓ Patched %d of %d files (%d blocks inserted, %d unchanged)\n",
		stats.Modified, stats.Files, stats.Inserted, stats.Unchanged)
	if stats.Failed > 0 {
		color.Yellow("  %d files could not be patched; see the log for details\n", stats.Failed)
	}
	return nil
}

func loadMetadata(cmd *cobra.Command) (map[string]models.MetadataRecord, error) {
	if !patchOpts.fromDB {
		return sink.ReadTable(cfg.Output.CSVPath, logger)
	}

	spinner := newSpinner(os.Stderr, "Loading metadata from PostgreSQL...")
	defer spinner.Finish()

	ms, err := store.NewWithConfig(cmd.Context(), cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	defer ms.Close()

	return ms.Load(cmd.Context())
}
