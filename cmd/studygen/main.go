package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/studygen/internal/common"
)

var (
	configFiles []string
	logLevel    string

	// Resolved in loadConfig before any command runs
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "studygen",
	Short: "Generate study notes and quizzes from textbook PDFs",
	Long: `studygen extracts the text of a textbook PDF, indexes it by content hash and
generates notes or quizzes on a topic from the most relevant passage.
Results are remembered per user, topic and parameters.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves configuration (defaults -> files -> .env -> env -> flags) and the logger
func loadConfig(cmd *cobra.Command, args []string) error {
	files := configFiles
	if len(files) == 0 {
		if _, err := os.Stat("studygen.toml"); err == nil {
			files = append(files, "studygen.toml")
		}
	}

	cfg, err := common.LoadFromFiles(files...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	common.ApplyFlagOverrides(cfg, logLevel)

	config = cfg
	logger = common.InitLogger(cfg)

	logger.Debug().
		Strs("config_files", files).
		Str("storage_type", cfg.Storage.Type).
		Str("llm_provider", string(cfg.LLM.DefaultProvider)).
		Str("ocr_engine", cfg.Extraction.OCREngine).
		Str("log_level", cfg.Logging.Level).
		Msg("Resolved configuration")
	return nil
}

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
