package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/studygen/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// No configuration is needed to print the version
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		common.PrintBanner(common.GetVersion())
		fmt.Fprintf(cmd.OutOrStdout(), "StudyGen version %s\n", common.GetFullVersion())
	},
}
