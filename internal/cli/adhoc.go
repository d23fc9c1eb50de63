package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/store"
)

var adhocClient int64

var adhocCmd = &cobra.Command{
	Use:   "adhoc",
	Short: "Send and answer ad-hoc requests between users",
}

var adhocCreateCmd = &cobra.Command{
	Use:   "create [assignee] [request]",
	Short: "Ask another user for something",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAdHocCreate,
}

var adhocListCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests you sent and received",
	RunE:  runAdHocList,
}

var adhocShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a request and its activity",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdHocShow,
}

var adhocRespondCmd = &cobra.Command{
	Use:   "respond [id] [response]",
	Short: "Answer a request assigned to you",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAdHocRespond,
}

var adhocCompleteCmd = &cobra.Command{
	Use:   "complete [id]",
	Short: "Accept the response and close a request you sent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdHocComplete,
}

var adhocReassignCmd = &cobra.Command{
	Use:   "reassign [id] [user]",
	Short: "Hand a request you sent to someone else",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdHocReassign,
}

func init() {
	adhocCreateCmd.Flags().Int64Var(&adhocClient, "client", 0, "Client the request is about")

	adhocCmd.AddCommand(adhocCreateCmd)
	adhocCmd.AddCommand(adhocListCmd)
	adhocCmd.AddCommand(adhocShowCmd)
	adhocCmd.AddCommand(adhocRespondCmd)
	adhocCmd.AddCommand(adhocCompleteCmd)
	adhocCmd.AddCommand(adhocReassignCmd)
}

func runAdHocCreate(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	var clientID *int64
	if adhocClient > 0 {
		clientID = &adhocClient
	}

	task, err := a.engine.CreateAdHoc(cmd.Context(), actor, args[0], strings.Join(args[1:], " "), clientID)
	if err != nil {
		return err
	}
	fmt.Printf("Created request %s for %s\n", task.ID, task.Assignee)
	return nil
}

func runAdHocList(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	mine, err := a.engine.ListMyAdHoc(cmd.Context(), actor)
	if err != nil {
		return err
	}
	if len(mine.Owned) == 0 && len(mine.Assigned) == 0 {
		fmt.Println("No requests.")
		return nil
	}

	printTasks := func(label string, tasks []store.AdHocTask, other func(store.AdHocTask) string) {
		if len(tasks) == 0 {
			return
		}
		fmt.Printf("%s%s%s\n", colorBold, label, colorReset)
		for _, t := range tasks {
			fmt.Printf("  %s  %s%-10s%s %-10s %s\n", t.ID, statusColor(t.Status), t.Status, colorReset,
				other(t), truncate(t.RequestText, 40))
		}
	}
	printTasks("Sent", mine.Owned, func(t store.AdHocTask) string { return "→ " + t.Assignee })
	printTasks("Received", mine.Assigned, func(t store.AdHocTask) string { return "← " + t.Owner })
	return nil
}

func runAdHocShow(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	t, err := a.engine.AdHocTask(cmd.Context(), args[0], actor)
	if err != nil {
		return err
	}

	fmt.Printf("Request %s\n", t.ID)
	fmt.Printf("  From:     %s\n", t.Owner)
	fmt.Printf("  To:       %s\n", t.Assignee)
	fmt.Printf("  Status:   %s%s%s\n", statusColor(t.Status), t.Status, colorReset)
	if t.ClientID != nil {
		fmt.Printf("  Client:   %d\n", *t.ClientID)
	}
	fmt.Printf("  Request:  %s\n", t.RequestText)
	if t.ResponseText != "" {
		fmt.Printf("  Response: %s (%s)\n", t.ResponseText, t.Responder)
	}
	if len(t.Activity) > 0 {
		fmt.Println("\n  Activity:")
		for _, act := range t.Activity {
			fmt.Printf("    %s [%s] %s\n", act.Time.Format("01-02 15:04"), act.Author, act.Message)
		}
	}
	return nil
}

func runAdHocRespond(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	t, err := a.engine.RespondAdHoc(cmd.Context(), args[0], strings.Join(args[1:], " "), actor)
	if err != nil {
		return err
	}
	fmt.Printf("Responded to %s; waiting for %s to complete it\n", t.ID, t.Owner)
	return nil
}

func runAdHocComplete(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	t, err := a.engine.CompleteAdHoc(cmd.Context(), args[0], actor)
	if err != nil {
		return err
	}
	fmt.Printf("Completed %s\n", t.ID)
	return nil
}

func runAdHocReassign(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	t, err := a.engine.ReassignAdHoc(cmd.Context(), args[0], args[1], actor)
	if err != nil {
		return err
	}
	fmt.Printf("Reassigned %s to %s\n", t.ID, t.Assignee)
	return nil
}

func statusColor(s store.AdHocStatus) string {
	switch s {
	case store.AdHocOpen:
		return colorYellow
	case store.AdHocResponded:
		return colorBlue
	case store.AdHocComplete:
		return colorGreen
	default:
		return ""
	}
}
