package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/workflow"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List cases and requests waiting for you",
	RunE:  runInbox,
}

func runInbox(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	items, err := a.engine.Inbox(cmd.Context(), actor)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Printf("Inbox for %s is empty.\n", actor)
		return nil
	}

	for _, it := range items {
		when := it.CreatedAt.Format("2006-01-02 15:04")
		if it.Origin == workflow.OriginCase {
			owner := colorDim + "pool" + colorReset
			if it.Assignee != "" {
				owner = colorCyan + it.Assignee + colorReset
			}
			fmt.Printf("%sCASE %s #%-6d %s  %-14s %s  %s\n", colorBlue, colorReset, it.CaseID, when, it.Stage, it.Title, owner)
			continue
		}
		fmt.Printf("%sADHOC%s %s  %-14s %s\n      %s%s%s\n", colorMagenta, colorReset, when, it.Status, it.Title, colorDim, it.TaskID, colorReset)
	}
	return nil
}
