package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/studygen/internal/app"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/services/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the document index",
	Long:  `Add documents to the index ahead of generation, list indexed documents or purge one by content hash.`,
}

var indexAddCmd = &cobra.Command{
	Use:   "add <pdf>...",
	Short: "Extract, embed and index documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexAdd,
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runIndexList,
}

var indexPurgeCmd = &cobra.Command{
	Use:   "purge <hash>",
	Short: "Remove a document from the index",
	Long:  `Removes the index entry for a content hash. The document is extracted again the next time it is used.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexPurge,
}

var indexUser string

func init() {
	indexAddCmd.Flags().StringVarP(&indexUser, "user", "u", "", "Owner recorded for newly indexed documents (default from pipeline.default_user)")

	indexCmd.AddCommand(indexAddCmd)
	indexCmd.AddCommand(indexListCmd)
	indexCmd.AddCommand(indexPurgeCmd)
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	application, err := app.New(ctx, config, logger, app.Options{Models: true})
	if err != nil {
		return err
	}
	defer application.Close()

	user := indexUser
	if user == "" {
		user = config.Pipeline.DefaultUser
	}

	out := cmd.OutOrStdout()
	for _, path := range args {
		result, err := application.IndexService.EnsureIndexed(ctx, path, user)
		if errors.Is(err, index.ErrUnreadableDocument) {
			return invalidParameter(err)
		}
		if err != nil {
			return &exitError{code: exitUpstreamError, err: err}
		}

		state := "already indexed"
		switch {
		case result.Added && result.Empty:
			state = "indexed (no extractable text)"
		case result.Added:
			state = "indexed"
		}
		fmt.Fprintf(out, "%s  %s  %s\n", result.DocumentID, path, state)
	}
	return nil
}

func runIndexList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	application, err := app.New(ctx, config, logger, app.Options{})
	if err != nil {
		return err
	}
	defer application.Close()

	docs, err := application.IndexService.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HASH\tSOURCE\tUSER\tCHARS\tINDEXED")
	for _, doc := range docs {
		chars := fmt.Sprintf("%d", doc.TextChars)
		if doc.Empty {
			chars = "empty"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", doc.ID, doc.Source, doc.UserID, chars, doc.IndexedAt.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d document(s)\n", len(docs))
	return nil
}

func runIndexPurge(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	application, err := app.New(ctx, config, logger, app.Options{})
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.IndexService.Purge(ctx, args[0]); err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			return invalidParameter(fmt.Errorf("no indexed document with hash %s", args[0]))
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", args[0])
	return nil
}
