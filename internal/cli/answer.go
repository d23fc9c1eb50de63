package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/store"
)

var (
	questionTemplate     string
	questionSection      string
	questionSectionOrder int
	questionOrder        int
	questionType         string
	questionOptions      string
	questionMandatory    bool
)

var answerCmd = &cobra.Command{
	Use:   "answer [case-id] [question-id] [value...]",
	Short: "Answer a questionnaire question on a case",
	Long: `Records the answer to one question, replacing any earlier answer.
Multi-choice questions take several values. Give no value to clear an answer.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAnswer,
}

var questionCmd = &cobra.Command{
	Use:   "question",
	Short: "Manage questionnaire templates",
}

var questionAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a question to a template (admins only)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuestionAdd,
}

var questionListCmd = &cobra.Command{
	Use:   "list [case-id]",
	Short: "List template questions, with answers when a case is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runQuestionList,
}

func init() {
	questionAddCmd.Flags().StringVarP(&questionTemplate, "template", "t", store.DefaultTemplate, "Template name")
	questionAddCmd.Flags().StringVarP(&questionSection, "section", "s", "", "Section title")
	questionAddCmd.Flags().IntVar(&questionSectionOrder, "section-order", 0, "Section position")
	questionAddCmd.Flags().IntVar(&questionOrder, "order", 0, "Position within the section")
	questionAddCmd.Flags().StringVar(&questionType, "type", store.QuestionText,
		"TEXT, SINGLE_CHOICE or MULTI_CHOICE")
	questionAddCmd.Flags().StringVar(&questionOptions, "options", "", "Comma-separated choices")
	questionAddCmd.Flags().BoolVarP(&questionMandatory, "mandatory", "m", false, "Must be answered before approval")

	questionListCmd.Flags().StringVarP(&questionTemplate, "template", "t", store.DefaultTemplate, "Template name")

	questionCmd.AddCommand(questionAddCmd)
	questionCmd.AddCommand(questionListCmd)
}

func runAnswer(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	caseID, err := parseID("case", args[0])
	if err != nil {
		return err
	}
	questionID, err := parseID("question", args[1])
	if err != nil {
		return err
	}

	ans, err := a.engine.RecordAnswer(cmd.Context(), caseID, questionID, args[2:], actor)
	if err != nil {
		return err
	}
	if len(ans.Values) == 0 {
		fmt.Printf("Cleared answer to question %d on case #%d\n", questionID, caseID)
		return nil
	}
	fmt.Printf("Case #%d, question %d: %s\n", caseID, questionID, strings.Join(ans.Values, ", "))
	return nil
}

func runQuestionAdd(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	q := &store.Question{
		Template:     questionTemplate,
		Section:      questionSection,
		SectionOrder: questionSectionOrder,
		Text:         strings.Join(args, " "),
		Type:         strings.ToUpper(questionType),
		Mandatory:    questionMandatory,
		DisplayOrder: questionOrder,
	}
	for _, opt := range strings.Split(questionOptions, ",") {
		if opt = strings.TrimSpace(opt); opt != "" {
			q.Options = append(q.Options, opt)
		}
	}

	if err := a.engine.AddQuestion(cmd.Context(), q, actor); err != nil {
		return err
	}
	fmt.Printf("Added question %d to %s: %s\n", q.ID, q.Template, q.Text)
	return nil
}

func runQuestionList(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	template := questionTemplate
	var answers map[int64]store.AnswerSet
	withAnswers := len(args) > 0
	if withAnswers {
		caseID, err := parseID("case", args[0])
		if err != nil {
			return err
		}
		c, err := a.engine.Case(ctx, caseID)
		if err != nil {
			return err
		}
		template = c.Template
		if answers, err = a.store.Answers(ctx, caseID); err != nil {
			return err
		}
	}

	questions, err := a.engine.Questions(ctx, template)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		fmt.Printf("Template %s has no questions.\n", template)
		return nil
	}

	section := "\x00"
	for _, q := range questions {
		if q.Section != section {
			section = q.Section
			fmt.Printf("%s%s%s\n", colorBold, orDash(section), colorReset)
		}
		mark := " "
		if q.Mandatory {
			mark = colorRed + "*" + colorReset
		}
		line := fmt.Sprintf("  %s%3d  %s", mark, q.ID, q.Text)
		if len(q.Options) > 0 {
			line += colorDim + " [" + strings.Join(q.Options, "|") + "]" + colorReset
		}
		if withAnswers {
			if set := answers[q.ID]; !set.Blank() {
				line += "  " + colorGreen + strings.Join(set, ", ") + colorReset
			} else if q.Mandatory {
				line += "  " + colorYellow + "unanswered" + colorReset
			}
		}
		fmt.Println(line)
	}
	return nil
}
