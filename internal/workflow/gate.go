package workflow

import (
	"context"
	"sort"

	"github.com/venus-kyc/caseflow/internal/store"
)

// Result is the outcome of a validation gate check.
type Result struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing,omitempty"`
}

// ValidationGate checks that every mandatory question of a case's template
// has a non-blank answer. It never writes.
type ValidationGate struct {
	questions Questionnaire
}

// NewValidationGate creates a gate backed by q.
func NewValidationGate(q Questionnaire) *ValidationGate {
	return &ValidationGate{questions: q}
}

// Check evaluates c. Missing lists the unanswered question texts in
// section order, then display order. If the questionnaire cannot be read
// the check fails closed with a dependency error.
func (g *ValidationGate) Check(ctx context.Context, c *store.Case) (Result, error) {
	questions, err := g.questions.Template(ctx, c.Template)
	if err != nil {
		return Result{}, dependencyError("load questionnaire template", err)
	}
	answers, err := g.questions.Answers(ctx, c.ID)
	if err != nil {
		return Result{}, dependencyError("load questionnaire answers", err)
	}

	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].SectionOrder != questions[j].SectionOrder {
			return questions[i].SectionOrder < questions[j].SectionOrder
		}
		return questions[i].DisplayOrder < questions[j].DisplayOrder
	})

	var missing []string
	for _, q := range questions {
		if !q.Mandatory {
			continue
		}
		if answers[q.ID].Blank() {
			missing = append(missing, q.Text)
		}
	}
	return Result{Valid: len(missing) == 0, Missing: missing}, nil
}
