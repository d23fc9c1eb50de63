package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/store"
	"github.com/venus-kyc/caseflow/internal/workflow"
)

var (
	caseReason   string
	docCategory  string
	docMimeType  string
	docComment   string
	caseListMine bool
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Create or work on cases",
}

var caseCreateCmd = &cobra.Command{
	Use:   "create [subject-id]",
	Short: "Open a case for a subject",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseCreate,
}

var caseListCmd = &cobra.Command{
	Use:   "list [stage]",
	Short: "List cases, optionally filtered by stage",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCaseList,
}

var caseShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show case details",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseShow,
}

var caseApproveCmd = &cobra.Command{
	Use:   "approve [id] [comment]",
	Short: "Approve the current stage",
	Long:  "Moves the case to the next stage, or to APPROVED after the last one.\nAll mandatory questions must be answered.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCaseDecision(workflow.ActionApprove),
}

var caseRejectCmd = &cobra.Command{
	Use:   "reject [id] [comment]",
	Short: "Reject the case",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCaseDecision(workflow.ActionReject),
}

var caseAssignCmd = &cobra.Command{
	Use:   "assign [id] [user]",
	Short: "Assign a case to a user",
	Args:  cobra.ExactArgs(2),
	RunE:  runCaseAssign,
}

var caseClaimCmd = &cobra.Command{
	Use:   "claim [id]",
	Short: "Assign a case to yourself",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseClaim,
}

var caseReleaseCmd = &cobra.Command{
	Use:   "release [id]",
	Short: "Return a case to the pool",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseRelease,
}

var caseEligibleCmd = &cobra.Command{
	Use:   "eligible [id]",
	Short: "List users the case can be assigned to",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseEligible,
}

var caseNoteCmd = &cobra.Command{
	Use:   "note [id] [text]",
	Short: "Add a comment to a case",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCaseNote,
}

var caseAttachCmd = &cobra.Command{
	Use:   "attach [id] [name]",
	Short: "Record a document on a case",
	Args:  cobra.ExactArgs(2),
	RunE:  runCaseAttach,
}

func init() {
	caseCreateCmd.Flags().StringVarP(&caseReason, "reason", "r", "", "Why the case was opened")
	caseListCmd.Flags().BoolVarP(&caseListMine, "mine", "m", false, "Only cases in your queue")

	caseAttachCmd.Flags().StringVarP(&docCategory, "category", "c", "", "Document category (required)")
	caseAttachCmd.Flags().StringVar(&docMimeType, "mime", "", "MIME type")
	caseAttachCmd.Flags().StringVarP(&docComment, "comment", "m", "", "Comment")

	caseCmd.AddCommand(caseCreateCmd)
	caseCmd.AddCommand(caseListCmd)
	caseCmd.AddCommand(caseShowCmd)
	caseCmd.AddCommand(caseApproveCmd)
	caseCmd.AddCommand(caseRejectCmd)
	caseCmd.AddCommand(caseAssignCmd)
	caseCmd.AddCommand(caseClaimCmd)
	caseCmd.AddCommand(caseReleaseCmd)
	caseCmd.AddCommand(caseEligibleCmd)
	caseCmd.AddCommand(caseNoteCmd)
	caseCmd.AddCommand(caseAttachCmd)
}

func runCaseCreate(cmd *cobra.Command, args []string) error {
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

	c, err := a.engine.CreateCase(cmd.Context(), subjectID, caseReason, actor)
	if err != nil {
		return err
	}
	fmt.Printf("Created case #%d for subject %d [%s]\n", c.ID, c.SubjectID, c.Stage)
	return nil
}

func runCaseList(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var cases []store.Case
	if caseListMine {
		actor, err := a.actor()
		if err != nil {
			return err
		}
		items, err := a.engine.ListCaseTasks(cmd.Context(), actor)
		if err != nil {
			return err
		}
		for _, it := range items {
			c, err := a.engine.Case(cmd.Context(), it.CaseID)
			if err != nil {
				return err
			}
			cases = append(cases, *c)
		}
	} else {
		stage := ""
		if len(args) > 0 {
			stage = strings.ToUpper(args[0])
		}
		if cases, err = a.engine.ListCases(cmd.Context(), stage); err != nil {
			return err
		}
	}

	if len(cases) == 0 {
		fmt.Println("No cases found.")
		return nil
	}
	for _, c := range cases {
		assignee := ""
		if c.Assignee != "" {
			assignee = fmt.Sprintf(" [%s]", c.Assignee)
		}
		fmt.Printf("#%-4d %-14s subject %-6d %s%s\n", c.ID, c.Stage, c.SubjectID, c.CreatedAt.Format("2006-01-02"), assignee)
	}
	return nil
}

func runCaseShow(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := parseID("case", args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	c, err := a.engine.Case(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Case #%d\n", c.ID)
	fmt.Printf("  Subject:  %d\n", c.SubjectID)
	fmt.Printf("  Stage:    %s\n", stageLabel(a.engine.Pipeline(), c.Stage))
	fmt.Printf("  Assignee: %s\n", orDash(c.Assignee))
	if c.Reason != "" {
		fmt.Printf("  Reason:   %s\n", c.Reason)
	}
	fmt.Printf("  Created:  %s\n", c.CreatedAt.Format("2006-01-02 15:04"))
	if c.ClosedAt != nil {
		fmt.Printf("  Closed:   %s\n", c.ClosedAt.Format("2006-01-02 15:04"))
	}

	if !c.Terminal() {
		res, err := a.engine.Validate(ctx, id)
		if err != nil {
			return err
		}
		if res.Valid {
			fmt.Printf("  Ready:    %syes%s\n", colorGreen, colorReset)
		} else {
			fmt.Printf("  Ready:    %sno, %d unanswered%s\n", colorYellow, len(res.Missing), colorReset)
			for _, m := range res.Missing {
				fmt.Printf("            - %s\n", m)
			}
		}
	}

	docs, err := a.engine.Documents(ctx, id)
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		fmt.Println("\n  Documents:")
		for _, d := range docs {
			fmt.Printf("    %s  %-20s %-12s by %s\n", d.Timestamp.Format("2006-01-02"), d.Name, d.Category, d.UploadedBy)
		}
	}

	comments, err := a.engine.Comments(ctx, id)
	if err != nil {
		return err
	}
	if len(comments) > 0 {
		fmt.Println("\n  Comments:")
		for _, cm := range comments {
			fmt.Printf("    %s [%s/%s] %s\n", cm.Timestamp.Format("01-02 15:04"), cm.Author, cm.Role, cm.Text)
		}
	}
	return nil
}

func runCaseDecision(action workflow.Action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := mustApp()
		if err != nil {
			return err
		}
		defer a.Close()

		actor, err := a.actor()
		if err != nil {
			return err
		}
		id, err := parseID("case", args[0])
		if err != nil {
			return err
		}

		c, err := a.engine.Transition(cmd.Context(), id, action, strings.Join(args[1:], " "), actor)
		if err != nil {
			return err
		}
		fmt.Printf("Case #%d -> %s\n", c.ID, c.Stage)
		return nil
	}
}

func assign(ctx context.Context, args []string, assignee func(workflow.Actor) string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	id, err := parseID("case", args[0])
	if err != nil {
		return err
	}

	c, err := a.engine.Assign(ctx, id, assignee(actor), actor)
	if err != nil {
		return err
	}
	if c.Assignee == "" {
		fmt.Printf("Case #%d returned to the %s pool\n", c.ID, c.Stage)
	} else {
		fmt.Printf("Case #%d assigned to %s\n", c.ID, c.Assignee)
	}
	return nil
}

func runCaseAssign(cmd *cobra.Command, args []string) error {
	return assign(cmd.Context(), args, func(workflow.Actor) string { return args[1] })
}

func runCaseClaim(cmd *cobra.Command, args []string) error {
	return assign(cmd.Context(), args, func(actor workflow.Actor) string { return actor.ID })
}

func runCaseRelease(cmd *cobra.Command, args []string) error {
	return assign(cmd.Context(), args, func(workflow.Actor) string { return "" })
}

func runCaseEligible(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	id, err := parseID("case", args[0])
	if err != nil {
		return err
	}

	users, err := a.engine.EligibleAssignees(cmd.Context(), id, actor)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Printf("Nobody can be assigned case #%d\n", id)
		return nil
	}
	for _, u := range users {
		fmt.Printf("  %-14s %-14s %s\n", u.Username, u.Role, u.Name)
	}
	return nil
}

func runCaseNote(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	id, err := parseID("case", args[0])
	if err != nil {
		return err
	}

	if _, err := a.engine.AddNote(cmd.Context(), id, strings.Join(args[1:], " "), actor); err != nil {
		return err
	}
	fmt.Printf("Added note to case #%d\n", id)
	return nil
}

func runCaseAttach(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	id, err := parseID("case", args[0])
	if err != nil {
		return err
	}

	doc, err := a.engine.AttachDocument(cmd.Context(), id, workflow.DocumentInput{
		Name:     args[1],
		Category: docCategory,
		MimeType: docMimeType,
		Comment:  docComment,
	}, actor)
	if err != nil {
		return err
	}
	fmt.Printf("Attached %s (%s) to case #%d\n", doc.Name, doc.Category, id)
	return nil
}

// stageLabel renders a stage with its position, e.g. "KYC_REVIEWER (2/4)".
func stageLabel(p *workflow.Pipeline, stage string) string {
	pos := p.Position(stage)
	n := len(p.Stages())
	if pos < 0 || pos >= n {
		return stage
	}
	return fmt.Sprintf("%s (%d/%d)", stage, pos+1, n)
}
