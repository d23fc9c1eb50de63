package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [case-id]",
	Short: "Show the audit log for a case",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := parseID("case", args[0])
	if err != nil {
		return err
	}

	events, err := a.engine.History(cmd.Context(), id)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("No events for case #%d\n", id)
		return nil
	}

	fmt.Printf("Events for case #%d:\n\n", id)
	for _, e := range events {
		source := ""
		if e.Source != "" {
			source = fmt.Sprintf("[%s] ", e.Source)
		}
		fmt.Printf("  %s  %s%-17s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), source, e.Type, e.Description)
	}
	return nil
}
