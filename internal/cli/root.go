package cli

import (
	"github.com/spf13/cobra"
)

// asUser is the acting username for commands that act on cases or tasks.
var asUser string

var rootCmd = &cobra.Command{
	Use:   "caseflow",
	Short: "Case approval workflow for KYC teams",
	Long: "caseflow moves KYC cases through a staged approval pipeline.\n" +
		"Each stage belongs to a role. Reviewers claim, approve or reject cases\n" +
		"and exchange ad-hoc requests with each other.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&asUser, "as", "", "Act as this user (default $"+userEnv+")")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(caseCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(adhocCmd)
	rootCmd.AddCommand(questionCmd)
	rootCmd.AddCommand(screeningCmd)
	rootCmd.AddCommand(riskCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}
