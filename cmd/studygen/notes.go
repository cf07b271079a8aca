package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/studygen/internal/app"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/services/pipeline"
	"github.com/ternarybob/studygen/internal/services/prompt"
)

var notesCmd = &cobra.Command{
	Use:   "notes <pdf> <topic>",
	Short: "Generate study notes on a topic from a PDF",
	Long: `Generates notes on the topic from the passage of the PDF that best matches it.
Detail levels: "very detailed", "slightly detailed", "small overview".`,
	Args: cobra.ExactArgs(2),
	RunE: runNotes,
}

var (
	notesDetail string
	notesPDFOut string
)

func init() {
	notesCmd.Flags().StringVarP(&notesDetail, "detail", "d", string(prompt.DefaultDetailLevel), "Detail level")
	notesCmd.Flags().StringVar(&notesPDFOut, "pdf-out", "", "Also write the notes to this PDF file")
	addGenerateFlags(notesCmd)
}

func runNotes(cmd *cobra.Command, args []string) error {
	task, err := prompt.ParseNotesTask(notesDetail)
	if err != nil {
		return invalidParameter(err)
	}

	var export func(*app.App, *pipeline.Result) error
	if notesPDFOut != "" {
		export = func(application *app.App, result *pipeline.Result) error {
			return writeNotesPDF(application.NotesExporter, result, args[1], notesPDFOut)
		}
	}

	_, err = runGeneration(cmd, args[0], args[1], task, export)
	return err
}

// writeNotesPDF renders the notes markup to path. Records stored without markup
// fall back to the cleaned text.
func writeNotesPDF(exporter interfaces.PDFService, result *pipeline.Result, title, path string) error {
	source := result.Markdown
	if source == "" {
		source = result.Text
	}

	data, err := exporter.ConvertMarkdownToPDF(source, title)
	if err != nil {
		return fmt.Errorf("failed to render notes PDF: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Info().Str("path", path).Int("bytes", len(data)).Msg("Notes PDF written")
	return nil
}
