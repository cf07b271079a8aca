package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/studygen/internal/app"
	"github.com/ternarybob/studygen/internal/services/memo"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored generation results",
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored notes and quizzes as JSON or YAML",
	Args:  cobra.NoArgs,
	RunE:  runHistoryExport,
}

var (
	historyFormat string
	historyUser   string
	historyOutput string
)

func init() {
	historyExportCmd.Flags().StringVarP(&historyFormat, "format", "f", memo.FormatJSON, "Output format (json, yaml)")
	historyExportCmd.Flags().StringVarP(&historyUser, "user", "u", "", "Only export this user's results")
	historyExportCmd.Flags().StringVarP(&historyOutput, "output", "o", "", "Write to this file instead of stdout")

	historyCmd.AddCommand(historyExportCmd)
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	switch historyFormat {
	case memo.FormatJSON, memo.FormatYAML, "yml":
	default:
		return invalidParameter(fmt.Errorf("unsupported export format: %s (expected 'json' or 'yaml')", historyFormat))
	}

	ctx, cancel := signalContext()
	defer cancel()

	application, err := app.New(ctx, config, logger, app.Options{})
	if err != nil {
		return err
	}
	defer application.Close()

	records, err := application.Memoizer.Records(ctx)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if historyOutput != "" {
		f, err := os.Create(historyOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", historyOutput, err)
		}
		defer f.Close()
		out = f
	}

	if err := memo.ExportHistory(out, records, historyFormat, historyUser); err != nil {
		return err
	}
	logger.Debug().Int("records", len(records)).Str("format", historyFormat).Msg("History exported")
	return nil
}
