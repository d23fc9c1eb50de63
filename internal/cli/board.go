package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/store"
)

// ANSI color codes.
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorWhite   = "\033[37m"
)

var boardShowClosed bool

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show cases by pipeline stage",
	RunE:  runBoard,
}

func init() {
	boardCmd.Flags().BoolVarP(&boardShowClosed, "all", "a", false, "Include APPROVED and REJECTED columns")
}

type boardColumn struct {
	stage string
	color string
}

func runBoard(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cases, err := a.engine.ListCases(cmd.Context(), "")
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		fmt.Printf("%sBoard is empty.%s Open a case: %scaseflow --as <user> case create <subject-id>%s\n",
			colorDim, colorReset, colorCyan, colorReset)
		return nil
	}

	palette := []string{colorWhite, colorBlue, colorMagenta, colorYellow, colorCyan}
	var order []boardColumn
	for i, s := range a.engine.Pipeline().Stages() {
		order = append(order, boardColumn{s.Name, palette[i%len(palette)]})
	}
	if boardShowClosed {
		order = append(order, boardColumn{store.StageApproved, colorGreen}, boardColumn{store.StageRejected, colorRed})
	}

	columns := map[string][]store.Case{}
	for _, c := range cases {
		columns[c.Stage] = append(columns[c.Stage], c)
	}

	colWidth := 22
	headerLine := ""
	sepLine := ""
	for _, col := range order {
		count := len(columns[col.stage])
		label := truncate(col.stage, colWidth-6)
		header := fmt.Sprintf(" %s%s%s (%d)", col.color+colorBold, label, colorReset, count)
		// Pad on visible length; ANSI codes add bytes.
		visibleLen := len(fmt.Sprintf(" %s (%d)", label, count))
		headerLine += header + strings.Repeat(" ", max(colWidth-visibleLen, 0))
		sepLine += strings.Repeat("─", colWidth)
	}
	fmt.Println(headerLine)
	fmt.Println(colorDim + sepLine + colorReset)

	maxRows := 0
	for _, col := range order {
		maxRows = max(maxRows, len(columns[col.stage]))
	}

	for i := 0; i < maxRows; i++ {
		line := ""
		detailLine := ""
		for _, col := range order {
			stageCases := columns[col.stage]
			if i >= len(stageCases) {
				line += strings.Repeat(" ", colWidth)
				detailLine += strings.Repeat(" ", colWidth)
				continue
			}
			c := stageCases[i]
			idStr := fmt.Sprintf("#%d", c.ID)
			subject := truncate(fmt.Sprintf("subject %d", c.SubjectID), colWidth-len(idStr)-3)
			line += fmt.Sprintf(" %s%s%s %s", colorBold, idStr, colorReset, subject) +
				strings.Repeat(" ", max(colWidth-len(fmt.Sprintf(" %s %s", idStr, subject)), 0))

			detail, visible := "", ""
			if c.Assignee != "" {
				name := truncate(c.Assignee, colWidth-6)
				detail = fmt.Sprintf("    %s[%s]%s", colorCyan, name, colorReset)
				visible = fmt.Sprintf("    [%s]", name)
			} else if !c.Terminal() {
				detail = fmt.Sprintf("    %spool%s", colorDim, colorReset)
				visible = "    pool"
			}
			detailLine += detail + strings.Repeat(" ", max(colWidth-len(visible), 0))
		}
		fmt.Println(line)
		fmt.Println(detailLine)
		fmt.Println()
	}

	open, pooled := 0, 0
	for _, c := range cases {
		if !c.Terminal() {
			open++
			if c.Assignee == "" {
				pooled++
			}
		}
	}
	fmt.Printf("%s%d cases%s", colorBold, len(cases), colorReset)
	if open > 0 {
		fmt.Printf("  %s● %d open%s", colorBlue, open, colorReset)
	}
	if pooled > 0 {
		fmt.Printf("  %s○ %d unassigned%s", colorYellow, pooled, colorReset)
	}
	if n := len(columns[store.StageApproved]); n > 0 {
		fmt.Printf("  %s✓ %d approved%s", colorGreen, n, colorReset)
	}
	if n := len(columns[store.StageRejected]); n > 0 {
		fmt.Printf("  %s✗ %d rejected%s", colorRed, n, colorReset)
	}
	fmt.Println()
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
