package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/docmeta/internal/fsutil"
	"github.com/xhad/docmeta/pkg/remap"
)

var metaOpts struct {
	source string
	meta   string
}

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Edit section front matter through a single meta-document",
	Long: `The meta commands flatten the opening tag and <info> block of every target
section into one meta-document, and replay an edited copy of that document back
into the source files.

Entries carry their source file and original line range. When entries are
applied, later entries in the same file are shifted by the line-count change of
earlier ones; overlapping ranges are rejected.

Examples:
  docmeta meta extract --source ./xml --meta meta_document.xml
  docmeta meta apply   --source ./xml --meta meta_document.xml`,
}

var metaExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Write the meta-document for a markup tree",
	RunE:  runMetaExtract,
}

var metaApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Replay an edited meta-document into its source files",
	RunE:  runMetaApply,
}

func init() {
	metaCmd.PersistentFlags().StringVarP(&metaOpts.source, "source", "s", "", "markup source directory (overrides remap.source_dir)")
	metaCmd.PersistentFlags().StringVarP(&metaOpts.meta, "meta", "m", "", "meta-document path (overrides remap.meta_document)")

	metaCmd.AddCommand(metaExtractCmd)
	metaCmd.AddCommand(metaApplyCmd)
}

func newRemapEngine() (*remap.Engine, error) {
	if metaOpts.source != "" {
		cfg.Remap.SourceDir = metaOpts.source
	}
	if metaOpts.meta != "" {
		cfg.Remap.MetaDocument = metaOpts.meta
	}
	if cfg.Remap.SourceDir == "" {
		cfg.Remap.SourceDir = cfg.Patch.MarkupDir
	}
	if err := fsutil.RequireDir(cfg.Remap.SourceDir); err != nil {
		return nil, err
	}
	return remap.New(cfg, remap.WithLogger(logger))
}

func runMetaExtract(cmd *cobra.Command, args []string) error {
	engine, err := newRemapEngine()
	if err != nil {
		return err
	}

	n, err := engine.Build()
	if err != nil {
		return err
	}
	color.Green("✓ Meta-document with %d sections written to %s\n", n, cfg.Remap.MetaDocument)
	return nil
}

func runMetaApply(cmd *cobra.Command, args []string) error {
	engine, err := newRemapEngine()
	if err != nil {
		return err
	}

	report, err := engine.ApplyMetaDocument()
	if err != nil {
		return err
	}

	for _, f := range report.Files {
		for _, r := range f.Rejected {
			color.Yellow("  %s lines %d-%d: %v\n", f.File, r.Edit.Start, r.Edit.End, r.Err)
		}
		if f.Err != nil {
			color.Red("  %s: %v\n", f.File, f.Err)
		}
	}

	applied, rejected, written, failed := report.Counts()
	color.Green("✓ Applied %d sections, updated %d of %d files\n", applied, written, len(report.Files))
	if rejected > 0 || failed > 0 {
		color.Yellow("  %d sections rejected, %d files failed\n", rejected, failed)
	}
	if applied == 0 && len(report.Files) > 0 {
		return fmt.Errorf("no sections applied")
	}
	return nil
}
