package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/docmeta/internal/logging"
	"github.com/xhad/docmeta/pkg/config"
)

var (
	cfgFile  string
	logLevel string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "docmeta",
	Short: "Generate and inject documentation metadata",
	Long: `docmeta enriches a folder of Markdown documents with generated titles,
abstracts and excerpts, then injects that metadata into DocBook-style markup.

Typical workflow:
  docmeta annotate              # Markdown -> metadata CSV (and optionally PostgreSQL)
  docmeta patch                 # metadata -> <section>/<chapter> blocks in markup
  docmeta audit                 # report sections that still lack a block
  docmeta meta extract          # flatten sections into a meta-document for editing
  docmeta meta apply            # replay the edited meta-document into the sources`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level = logLevel
		}

		if errs := loaded.Validate(); len(errs) > 0 {
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			color.Red("Invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
			return fmt.Errorf("invalid configuration")
		}

		l, closer, err := logging.Setup(loaded.Logging)
		if err != nil {
			return err
		}
		cfg, logger, logCloser = loaded, l, closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./docmeta.yaml, ./config.yaml or ~/.config/docmeta/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(metaCmd)
}
