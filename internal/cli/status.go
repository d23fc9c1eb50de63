package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/store"
	"github.com/venus-kyc/caseflow/internal/workflow"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Quick status overview",
	Long:  "Shows case counts per stage and, with --as, what is waiting for you.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	counts, err := a.store.CountByStage(cmd.Context())
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		fmt.Printf("No cases. Run: %scaseflow --as <user> case create <subject-id>%s\n", colorCyan, colorReset)
		return nil
	}

	fmt.Printf("%sCases: %d total%s\n", colorBold, total, colorReset)
	for _, s := range a.engine.Pipeline().Stages() {
		fmt.Printf("  %-16s %s%d%s  %s(%s)%s\n", s.Name+":", colorBlue, counts[s.Name], colorReset, colorDim, s.Role, colorReset)
	}
	fmt.Printf("  %-16s %s%d%s\n", store.StageApproved+":", colorGreen, counts[store.StageApproved], colorReset)
	fmt.Printf("  %-16s %s%d%s\n", store.StageRejected+":", colorRed, counts[store.StageRejected], colorReset)

	if asUser == "" && !hasUserEnv() {
		return nil
	}
	actor, err := a.actor()
	if err != nil {
		return err
	}
	items, err := a.engine.Inbox(cmd.Context(), actor)
	if err != nil {
		return err
	}
	cases, adhoc := 0, 0
	for _, it := range items {
		if it.Origin == workflow.OriginCase {
			cases++
		} else if it.Status != string(store.AdHocComplete) {
			adhoc++
		}
	}
	fmt.Printf("\n%sInbox for %s:%s %d cases, %d open requests\n", colorBold, actor, colorReset, cases, adhoc)
	return nil
}
