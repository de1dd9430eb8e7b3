package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "statusdoc",
	Short: "Append AI-summarized weekly status reports to a Google Doc",
	Long: `statusdoc builds a periodic engineering status report: it resolves a date
range, pulls the matching commits from the configured repository, asks a
generation model to sort them into completed / in-progress / new work, and
appends the result to a Google Doc as a table or a bullet list.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Default behavior - show help
		cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}
