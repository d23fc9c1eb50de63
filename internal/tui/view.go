package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/venus-kyc/caseflow/internal/store"
	"github.com/venus-kyc/caseflow/internal/workflow"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrCyan      = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle    = lipgloss.NewStyle().Foreground(clrDim)
	subtleStyle = lipgloss.NewStyle().Foreground(clrSubtle)

	rowStyle         = lipgloss.NewStyle().PaddingLeft(2)
	rowSelectedStyle = lipgloss.NewStyle().PaddingLeft(1).Bold(true).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(clrHighlight)

	caseTagStyle  = lipgloss.NewStyle().Foreground(clrBlue).Bold(true)
	adhocTagStyle = lipgloss.NewStyle().Foreground(clrCyan).Bold(true)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrHighlight).
			Padding(1, 2).
			Width(60)

	statusStyle = lipgloss.NewStyle().Foreground(clrGreen).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.screen {
	case screenInbox:
		content = m.viewInbox()
	case screenDetail:
		content = m.viewDetail()
	}

	if m.popup != popupNone {
		content = m.overlayPopup(content)
	}
	return content
}

func (m Model) viewInbox() string {
	var b strings.Builder

	header := titleStyle.Render("caseflow inbox")
	header += dimStyle.Render(fmt.Sprintf(" · %s · %d items", m.actor, len(m.items)))
	b.WriteString(header + "\n\n")

	if len(m.items) == 0 {
		b.WriteString(subtleStyle.Render("  Nothing waiting for you.") + "\n")
	}
	for i, it := range m.items {
		line := m.renderItem(it)
		if i == m.cursor {
			b.WriteString(rowSelectedStyle.Render(line) + "\n")
		} else {
			b.WriteString(rowStyle.Render(line) + "\n")
		}
	}

	b.WriteString("\n" + m.viewStatus())
	b.WriteString(renderFooter([]struct{ key, desc string }{
		{"enter", "open"},
		{"a/r", "approve/reject"},
		{"c/u", "claim/release"},
		{"n", "note"},
		{"s", "respond"},
		{"d", "complete"},
		{"g", "refresh"},
		{"q", "quit"},
	}))
	return b.String()
}

func (m Model) renderItem(it workflow.InboxItem) string {
	created := dimStyle.Render(it.CreatedAt.Format("01-02 15:04"))
	if it.Origin == workflow.OriginCase {
		owner := dimStyle.Render("pool")
		if it.Assignee != "" {
			owner = it.Assignee
		}
		return fmt.Sprintf("%s %s  %-14s %-32s %s",
			caseTagStyle.Render("CASE "), created, it.Stage, truncate(it.Title, 32), owner)
	}
	return fmt.Sprintf("%s %s  %-14s %-32s %s",
		adhocTagStyle.Render("ADHOC"), created, statusLabel(it.Status), truncate(it.Title, 32), dimStyle.Render(shortID(it.TaskID)))
}

func statusLabel(status string) string {
	style := lipgloss.NewStyle()
	switch store.AdHocStatus(status) {
	case store.AdHocOpen:
		style = style.Foreground(clrYellow)
	case store.AdHocResponded:
		style = style.Foreground(clrBlue)
	case store.AdHocComplete:
		style = style.Foreground(clrGreen)
	}
	return style.Render(status)
}

func (m Model) viewDetail() string {
	var b strings.Builder
	title := fmt.Sprintf("Case #%d", m.target.CaseID)
	keys := []struct{ key, desc string }{{"a/r", "approve/reject"}, {"c/u", "claim/release"}, {"n", "note"}}
	if m.target.Origin == workflow.OriginAdHoc {
		title = "Request " + shortID(m.target.TaskID)
		keys = []struct{ key, desc string }{{"s", "respond"}, {"d", "complete"}}
	}
	keys = append(keys, struct{ key, desc string }{"esc", "back"})

	b.WriteString(titleStyle.Render(title) + "\n\n")
	b.WriteString(m.detailViewport.View() + "\n")
	b.WriteString(m.viewStatus())
	b.WriteString(renderFooter(keys))
	return b.String()
}

func (m Model) viewStatus() string {
	if m.statusMsg == "" {
		return "\n"
	}
	if m.statusErr {
		return errorStyle.Render("  "+m.statusMsg) + "\n"
	}
	return statusStyle.Render("  "+m.statusMsg) + "\n"
}

// renderCase formats a case with its readiness, comments and audit trail.
func renderCase(c *store.Case, res workflow.Result, events []store.Event, comments []store.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject   %d\n", c.SubjectID)
	fmt.Fprintf(&b, "Stage     %s\n", c.Stage)
	assignee := c.Assignee
	if assignee == "" {
		assignee = "(pool)"
	}
	fmt.Fprintf(&b, "Assignee  %s\n", assignee)
	if c.Reason != "" {
		fmt.Fprintf(&b, "Reason    %s\n", c.Reason)
	}
	if !c.Terminal() {
		if res.Valid {
			b.WriteString("Ready     " + statusStyle.Render("yes") + "\n")
		} else {
			b.WriteString("Ready     " + errorStyle.Render(fmt.Sprintf("no, %d unanswered", len(res.Missing))) + "\n")
			for _, q := range res.Missing {
				b.WriteString(dimStyle.Render("          - "+q) + "\n")
			}
		}
	}

	if len(comments) > 0 {
		b.WriteString("\n" + titleStyle.Render("Comments") + "\n")
		for _, cm := range comments {
			fmt.Fprintf(&b, "  %s %s %s\n", dimStyle.Render(cm.Timestamp.Format("01-02 15:04")),
				lipgloss.NewStyle().Bold(true).Render(cm.Author), cm.Text)
		}
	}

	b.WriteString("\n" + titleStyle.Render("History") + "\n")
	for _, e := range events {
		fmt.Fprintf(&b, "  %s %-17s %s\n", dimStyle.Render(e.Timestamp.Format("01-02 15:04")), e.Type, e.Description)
	}
	return b.String()
}

// renderAdHoc formats an ad-hoc request and its activity log.
func renderAdHoc(t *store.AdHocTask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From      %s\n", t.Owner)
	fmt.Fprintf(&b, "To        %s\n", t.Assignee)
	fmt.Fprintf(&b, "Status    %s\n", statusLabel(string(t.Status)))
	if t.ClientID != nil {
		fmt.Fprintf(&b, "Client    %d\n", *t.ClientID)
	}
	b.WriteString("\n" + t.RequestText + "\n")
	if t.ResponseText != "" {
		fmt.Fprintf(&b, "\n%s %s\n", lipgloss.NewStyle().Bold(true).Render(t.Responder+":"), t.ResponseText)
	}
	if len(t.Activity) > 0 {
		b.WriteString("\n" + titleStyle.Render("Activity") + "\n")
		for _, a := range t.Activity {
			fmt.Fprintf(&b, "  %s %s %s\n", dimStyle.Render(a.Time.Format("01-02 15:04")), a.Author, a.Message)
		}
	}
	return b.String()
}

func (m Model) overlayPopup(bg string) string {
	var popup string
	switch m.popup {
	case popupApprove:
		popup = m.viewTextPopup("Approve Case", clrGreen,
			fmt.Sprintf("Move case #%d past %s.", m.target.CaseID, m.target.Stage))
	case popupReject:
		popup = m.viewTextPopup("Reject Case", clrRed,
			fmt.Sprintf("Case #%d will be closed as REJECTED.", m.target.CaseID))
	case popupNote:
		popup = m.viewTextPopup("Add Note", clrHighlight, fmt.Sprintf("Comment on case #%d.", m.target.CaseID))
	case popupRespond:
		popup = m.viewTextPopup("Respond", clrCyan, m.target.Title)
	case popupConfirmComplete:
		popup = m.viewConfirmCompletePopup()
	default:
		return bg
	}

	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height,
			lipgloss.Center, lipgloss.Center,
			popup,
			lipgloss.WithWhitespaceChars(" "),
		)
	}
	return popup
}

func (m Model) viewTextPopup(title string, color lipgloss.AdaptiveColor, body string) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(color).Render(title) + "\n\n")
	b.WriteString(body + "\n\n")
	b.WriteString(m.textInput.View() + "\n\n")
	b.WriteString(footerDescStyle.Render("enter submit • esc cancel"))
	return m.popupBoxStyle().Render(b.String())
}

func (m Model) viewConfirmCompletePopup() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(clrGreen).Render("Complete Request") + "\n\n")
	b.WriteString("Accept the response and close this request?\n\n")
	b.WriteString(footerKeyStyle.Render("y") + footerDescStyle.Render(" confirm  ") +
		footerKeyStyle.Render("n") + footerDescStyle.Render(" cancel"))
	return m.popupBoxStyle().Render(b.String())
}

func (m Model) popupBoxStyle() lipgloss.Style {
	w := 60
	if m.width > 0 {
		w = min(max(m.width-12, 42), 84)
	}
	return popupStyle.Width(w)
}

func renderFooter(keys []struct{ key, desc string }) string {
	var parts []string
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+footerDescStyle.Render(k.desc))
	}
	return "  " + strings.Join(parts, "  ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
