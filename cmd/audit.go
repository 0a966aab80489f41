package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/docmeta/internal/fsutil"
	"github.com/xhad/docmeta/pkg/markup"
)

var auditOpts struct {
	markupDir string
	strict    bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report sections without (or with repeated) generated blocks",
	RunE:  runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.StringVarP(&auditOpts.markupDir, "markup-dir", "d", "", "markup tree to audit (overrides patch.markup_dir)")
	f.BoolVar(&auditOpts.strict, "strict", false, "exit with an error when any section is incomplete")
}

func runAudit(cmd *cobra.Command, args []string) error {
	if auditOpts.markupDir != "" {
		cfg.Patch.MarkupDir = auditOpts.markupDir
	}
	if err := fsutil.RequireDir(cfg.Patch.MarkupDir); err != nil {
		return err
	}

	auditor, err := markup.NewAuditor(cfg, markup.WithAuditLogger(logger))
	if err != nil {
		return err
	}

	reports, err := auditor.AuditTree(cfg.Patch.MarkupDir)
	if err != nil {
		return err
	}

	var sections, patched, unpatched, doubled, failed int
	for _, r := range reports {
		if r.Err != nil {
			failed++
			color.Red("%s: %v\n", r.File, r.Err)
			continue
		}
		sections += r.Sections
		patched += len(r.Patched)
		unpatched += len(r.Unpatched)
		doubled += len(r.Doubled)

		if r.Complete() {
			logger.Debug("file complete", "file", r.File, "sections", r.Sections)
			continue
		}
		fmt.Println(r.File)
		if len(r.Unpatched) > 0 {
			color.Yellow("  missing: %s\n", strings.Join(r.Unpatched, ", "))
		}
		if len(r.Doubled) > 0 {
			color.Red("  repeated: %s\n", strings.Join(r.Doubled, ", "))
		}
	}

	color.Green("\n✓ %d of %d sections carry a generated block across %d files\n", patched, sections, len(reports)-failed)
	if failed > 0 {
		color.Yellow("  %d files could not be audited; see the log for details\n", failed)
	}
	if auditOpts.strict && (unpatched > 0 || doubled > 0 || failed > 0) {
		return fmt.Errorf("%d sections missing a block, %d with repeated blocks, %d files unreadable", unpatched, doubled, failed)
	}
	return nil
}
