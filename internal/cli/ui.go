package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive inbox",
	Long:  "Opens an interactive inbox to claim, approve and reject cases and to answer ad-hoc requests.",
	RunE:  runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}

	model := tui.New(cmd.Context(), a.engine, actor)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
