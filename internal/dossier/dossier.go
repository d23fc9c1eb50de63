// Package dossier renders a case and everything known about its subject as
// a single Markdown document, for hand-over between reviewers and for the
// case file.
package dossier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/venus-kyc/caseflow/internal/screening"
	"github.com/venus-kyc/caseflow/internal/store"
	"github.com/venus-kyc/caseflow/internal/workflow"
)

// Cases is the read side of the workflow engine.
type Cases interface {
	Case(ctx context.Context, caseID int64) (*store.Case, error)
	Validate(ctx context.Context, caseID int64) (workflow.Result, error)
	Questions(ctx context.Context, template string) ([]store.Question, error)
	History(ctx context.Context, caseID int64) ([]store.Event, error)
	Comments(ctx context.Context, caseID int64) ([]store.Comment, error)
	Documents(ctx context.Context, caseID int64) ([]store.Document, error)
}

// Records is the case data read straight from the store.
type Records interface {
	Answers(ctx context.Context, caseID int64) (map[int64]store.AnswerSet, error)
	ListCasesBySubject(ctx context.Context, subjectID int64) ([]store.Case, error)
}

// Screenings looks up a subject's screening requests.
type Screenings interface {
	History(ctx context.Context, subjectID int64) ([]store.ScreeningRequest, error)
	Get(ctx context.Context, requestID string) (*store.ScreeningRequest, error)
}

// Risk returns the latest assessment, or nil when there is none.
type Risk interface {
	Latest(ctx context.Context, clientID int64) (*store.RiskAssessment, error)
}

// Builder assembles dossiers. Screenings and Risk may be nil; their
// sections are then left out.
type Builder struct {
	cases      Cases
	records    Records
	screenings Screenings
	risk       Risk
}

// New creates a dossier builder.
func New(cases Cases, records Records, screenings Screenings, risk Risk) *Builder {
	return &Builder{cases: cases, records: records, screenings: screenings, risk: risk}
}

// Build renders the dossier for a case. Failing to load the case itself,
// its questionnaire or its audit trail is an error. Subject sections that
// cannot be loaded are skipped.
func (b *Builder) Build(ctx context.Context, caseID int64) (string, error) {
	c, err := b.cases.Case(ctx, caseID)
	if err != nil {
		return "", err
	}

	parts := []string{header(c)}

	readiness, err := b.readiness(ctx, c)
	if err != nil {
		return "", err
	}
	parts = append(parts, readiness)

	questionnaire, err := b.questionnaire(ctx, c)
	if err != nil {
		return "", err
	}
	parts = append(parts, questionnaire)

	related, err := b.related(ctx, c)
	if err != nil {
		return "", err
	}
	if related != "" {
		parts = append(parts, related)
	}

	if s, err := b.screening(ctx, c.SubjectID); err == nil && s != "" {
		parts = append(parts, s)
	}
	if s, err := b.riskSection(ctx, c.SubjectID); err == nil && s != "" {
		parts = append(parts, s)
	}

	docs, err := b.cases.Documents(ctx, c.ID)
	if err != nil {
		return "", err
	}
	if len(docs) > 0 {
		parts = append(parts, documents(docs))
	}

	comments, err := b.cases.Comments(ctx, c.ID)
	if err != nil {
		return "", err
	}
	if len(comments) > 0 {
		parts = append(parts, notes(comments))
	}

	events, err := b.cases.History(ctx, c.ID)
	if err != nil {
		return "", err
	}
	parts = append(parts, history(events))

	return strings.Join(parts, "\n\n") + "\n", nil
}

func header(c *store.Case) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Case #%d\n", c.ID)
	fmt.Fprintf(&sb, "Subject: %d\n", c.SubjectID)
	fmt.Fprintf(&sb, "Stage: %s\n", c.Stage)
	assignee := c.Assignee
	if assignee == "" {
		assignee = "(pool)"
	}
	fmt.Fprintf(&sb, "Assignee: %s\n", assignee)
	fmt.Fprintf(&sb, "Opened: %s\n", stamp(c.CreatedAt))
	if c.ClosedAt != nil {
		fmt.Fprintf(&sb, "Closed: %s\n", stamp(*c.ClosedAt))
	}
	if c.Reason != "" {
		fmt.Fprintf(&sb, "\n%s\n", c.Reason)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Builder) readiness(ctx context.Context, c *store.Case) (string, error) {
	if c.Terminal() {
		return "## Readiness\nClosed.", nil
	}
	res, err := b.cases.Validate(ctx, c.ID)
	if err != nil {
		return "", err
	}
	if res.Valid {
		return "## Readiness\nAll mandatory questions answered.", nil
	}
	var sb strings.Builder
	sb.WriteString("## Readiness\nMissing mandatory answers:\n")
	for _, m := range res.Missing {
		fmt.Fprintf(&sb, "- %s\n", m)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Builder) questionnaire(ctx context.Context, c *store.Case) (string, error) {
	questions, err := b.cases.Questions(ctx, c.Template)
	if err != nil {
		return "", err
	}
	if len(questions) == 0 {
		return fmt.Sprintf("## Questionnaire (%s)\nNo questions.", c.Template), nil
	}
	answers, err := b.records.Answers(ctx, c.ID)
	if err != nil {
		return "", fmt.Errorf("load answers: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Questionnaire (%s)\n", c.Template)
	section := "\x00"
	for _, q := range questions {
		if q.Section != section {
			section = q.Section
			if section != "" {
				fmt.Fprintf(&sb, "\n### %s\n", section)
			}
		}
		mark := ""
		if q.Mandatory {
			mark = " *"
		}
		value := "_unanswered_"
		if set := answers[q.ID]; !set.Blank() {
			value = strings.Join(set, ", ")
		}
		fmt.Fprintf(&sb, "- %s%s: %s\n", q.Text, mark, value)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// related lists the subject's other cases, newest first.
func (b *Builder) related(ctx context.Context, c *store.Case) (string, error) {
	cases, err := b.records.ListCasesBySubject(ctx, c.SubjectID)
	if err != nil {
		return "", fmt.Errorf("load subject cases: %w", err)
	}
	var sb strings.Builder
	for _, other := range cases {
		if other.ID == c.ID {
			continue
		}
		fmt.Fprintf(&sb, "- #%d %s, opened %s\n", other.ID, other.Stage, stamp(other.CreatedAt))
	}
	if sb.Len() == 0 {
		return "", nil
	}
	return "## Other cases of subject\n" + strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Builder) screening(ctx context.Context, subjectID int64) (string, error) {
	if b.screenings == nil {
		return "", nil
	}
	reqs, err := b.screenings.History(ctx, subjectID)
	if err != nil || len(reqs) == 0 {
		return "", err
	}
	// History has no results; fetch them for the newest request.
	latest, err := b.screenings.Get(ctx, reqs[0].ID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Screening\nRequest %s: %s (%s)\n", latest.ID, latest.Status, stamp(latest.UpdatedAt))
	for _, r := range latest.Results {
		line := fmt.Sprintf("- %s: %s", r.Context, r.Status)
		if r.Status == string(screening.StatusHit) && r.AlertID != "" {
			line += fmt.Sprintf(" (%s: %s)", r.AlertID, r.AlertMessage)
		}
		sb.WriteString(line + "\n")
	}
	if len(reqs) > 1 {
		fmt.Fprintf(&sb, "\n%d earlier request(s).\n", len(reqs)-1)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Builder) riskSection(ctx context.Context, clientID int64) (string, error) {
	if b.risk == nil {
		return "", nil
	}
	a, err := b.risk.Latest(ctx, clientID)
	if err != nil || a == nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Risk\n**%s** (score %d", a.OverallLevel, a.OverallScore)
	if a.InitialLevel != "" && a.InitialLevel != a.OverallLevel {
		fmt.Fprintf(&sb, ", initially %s", a.InitialLevel)
	}
	fmt.Fprintf(&sb, "), assessed %s\n", stamp(a.CreatedAt))
	if a.LogicApplied != "" {
		fmt.Fprintf(&sb, "Logic: %s\n", a.LogicApplied)
	}
	if a.SMEAssessment != "" {
		fmt.Fprintf(&sb, "SME: %s\n", a.SMEAssessment)
	}
	for _, d := range a.Details {
		fmt.Fprintf(&sb, "- %s / %s = %s (%d)\n", d.RiskType, d.ElementName, d.ElementValue, d.Score)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func documents(docs []store.Document) string {
	var sb strings.Builder
	sb.WriteString("## Documents\n")
	for _, d := range docs {
		fmt.Fprintf(&sb, "- %s [%s] by %s, %s", d.Name, d.Category, d.UploadedBy, stamp(d.Timestamp))
		if d.Comment != "" {
			fmt.Fprintf(&sb, ": %s", d.Comment)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func notes(comments []store.Comment) string {
	var sb strings.Builder
	sb.WriteString("## Comments\n")
	for _, c := range comments {
		fmt.Fprintf(&sb, "- **[%s, %s]** %s: %s\n", c.Author, c.Role, stamp(c.Timestamp), c.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func history(events []store.Event) string {
	var sb strings.Builder
	sb.WriteString("## History\n")
	for _, e := range events {
		source := e.Source
		if source == "" {
			source = "system"
		}
		fmt.Fprintf(&sb, "- %s %s [%s] %s\n", stamp(e.Timestamp), e.Type, source, e.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func stamp(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") }
