package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/screening"
	"github.com/venus-kyc/caseflow/internal/store"
)

var screeningCmd = &cobra.Command{
	Use:   "screening",
	Short: "Run watch-list screening for a subject",
}

var screeningStartCmd = &cobra.Command{
	Use:   "start [subject-id]",
	Short: "Submit a subject for screening",
	Args:  cobra.ExactArgs(1),
	RunE:  runScreeningStart,
}

var screeningStatusCmd = &cobra.Command{
	Use:   "status [request-id]",
	Short: "Fetch the latest results of a screening request",
	Args:  cobra.ExactArgs(1),
	RunE:  runScreeningStatus,
}

var screeningHistoryCmd = &cobra.Command{
	Use:   "history [subject-id]",
	Short: "List a subject's screening requests",
	Args:  cobra.ExactArgs(1),
	RunE:  runScreeningHistory,
}

var screeningSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Refresh every screening still in progress",
	Args:  cobra.NoArgs,
	RunE:  runScreeningSweep,
}

func init() {
	screeningCmd.AddCommand(screeningStartCmd)
	screeningCmd.AddCommand(screeningStatusCmd)
	screeningCmd.AddCommand(screeningHistoryCmd)
	screeningCmd.AddCommand(screeningSweepCmd)
}

func runScreeningStart(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	subjectID, err := parseID("subject", args[0])
	if err != nil {
		return err
	}

	req, err := a.screening.Start(cmd.Context(), subjectID, actor.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Started screening %s for subject %d\n", req.ID, subjectID)
	fmt.Printf("  → %scaseflow screening status %s%s\n", colorCyan, req.ID, colorReset)
	return nil
}

func runScreeningStatus(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := a.screening.Refresh(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printScreening(req)
	return nil
}

func runScreeningHistory(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	subjectID, err := parseID("subject", args[0])
	if err != nil {
		return err
	}
	reqs, err := a.screening.History(cmd.Context(), subjectID)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		fmt.Printf("No screenings for subject %d\n", subjectID)
		return nil
	}
	for _, r := range reqs {
		fmt.Printf("  %s  %s  %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.ID, r.Status)
	}
	return nil
}

func runScreeningSweep(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.sweeper().Sweep(cmd.Context())
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No screenings in progress.")
		return nil
	}
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Printf("  %s✗%s %s  %v\n", colorRed, colorReset, r.RequestID, r.Err)
		case r.Status == screening.RequestCompleted:
			fmt.Printf("  %s✓%s %s  %d hit(s)\n", colorGreen, colorReset, r.RequestID, r.Hits)
		default:
			fmt.Printf("  %s…%s %s  %s\n", colorYellow, colorReset, r.RequestID, r.Status)
		}
	}
	fmt.Printf("\n%d refreshed, %d failed\n", len(results)-failed, failed)
	return nil
}

func printScreening(req *store.ScreeningRequest) {
	fmt.Printf("Screening %s (subject %d): %s\n", req.ID, req.SubjectID, req.Status)
	for _, r := range req.Results {
		color := colorDim
		switch screening.Status(r.Status) {
		case screening.StatusHit:
			color = colorRed
		case screening.StatusNoHit:
			color = colorGreen
		}
		fmt.Printf("  %-4s %s%-12s%s", r.Context, color, r.Status, colorReset)
		if r.AlertID != "" {
			fmt.Printf(" %s %s", r.AlertID, r.AlertMessage)
		}
		fmt.Println()
	}
}
