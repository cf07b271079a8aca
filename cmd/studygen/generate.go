package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/studygen/internal/app"
	"github.com/ternarybob/studygen/internal/services/pipeline"
	"github.com/ternarybob/studygen/internal/services/prompt"
)

// Exit codes for pipeline statuses; ok and no_content exit 0
const (
	exitInvalidParameter = 2
	exitUpstreamError    = 3
)

var (
	generateUser       string
	generateRegenerate bool
	generateJSON       bool
)

// addGenerateFlags registers the flags shared by notes and quiz
func addGenerateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&generateUser, "user", "u", "", "User the result is remembered for (default from pipeline.default_user)")
	cmd.Flags().BoolVar(&generateRegenerate, "regenerate", false, "Ignore a stored result and generate again")
	cmd.Flags().BoolVar(&generateJSON, "json", false, "Print the full result as JSON")
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runGeneration runs one pipeline request and prints its outcome. onSuccess, when
// set, runs on an ok result before the application closes.
func runGeneration(cmd *cobra.Command, path, topic string, task prompt.Task, onSuccess func(*app.App, *pipeline.Result) error) (*pipeline.Result, error) {
	ctx, cancel := signalContext()
	defer cancel()

	application, err := app.New(ctx, config, logger, app.Options{Models: true})
	if err != nil {
		return nil, err
	}
	defer application.Close()

	result := application.Pipeline.Run(ctx, pipeline.Request{
		DocumentPath:    path,
		Topic:           topic,
		Task:            task,
		UserID:          generateUser,
		ForceRegenerate: generateRegenerate,
	})

	if err := printResult(cmd, result); err != nil {
		return nil, err
	}
	if err := statusError(result); err != nil {
		return result, err
	}
	if onSuccess != nil && result.OK() {
		return result, onSuccess(application, result)
	}
	return result, nil
}

func printResult(cmd *cobra.Command, result *pipeline.Result) error {
	out := cmd.OutOrStdout()
	if generateJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	switch result.Status {
	case pipeline.StatusOK:
		fmt.Fprintln(out, result.Text)
	case pipeline.StatusNoContent:
		fmt.Fprintln(out, "No relevant content found in the document for this topic.")
	}
	return nil
}

func statusError(result *pipeline.Result) error {
	switch result.Status {
	case pipeline.StatusInvalidParameter:
		return &exitError{code: exitInvalidParameter, err: fmt.Errorf("invalid parameter: %s", result.Detail)}
	case pipeline.StatusUpstreamError:
		return &exitError{code: exitUpstreamError, err: fmt.Errorf("upstream error: %s", result.Detail)}
	default:
		return nil
	}
}

// invalidParameter reports a parameter rejected before the pipeline starts
func invalidParameter(err error) error {
	return &exitError{code: exitInvalidParameter, err: err}
}
