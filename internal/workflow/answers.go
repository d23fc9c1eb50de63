package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/venus-kyc/caseflow/internal/store"
)

// ErrInvalidAnswer is returned when an answer does not fit its question.
var ErrInvalidAnswer = &Error{Kind: KindValidation, Code: "invalid_answer"}

// Questions returns a questionnaire template in display order.
func (e *Engine) Questions(ctx context.Context, template string) ([]store.Question, error) {
	qs, err := e.questions.Template(ctx, template)
	if err != nil {
		return nil, dependencyError("load questionnaire template", err)
	}
	return qs, nil
}

// AddQuestion adds a question to a template. Admins only.
func (e *Engine) AddQuestion(ctx context.Context, q *store.Question, actor Actor) error {
	if !actor.Can(CapAdminOverride) {
		return newError(ErrUnauthorized, "%s may not edit questionnaires", actor)
	}
	if strings.TrimSpace(q.Text) == "" {
		return newError(ErrEmptyField, "question text is required")
	}
	switch q.Type {
	case "", store.QuestionText:
	case store.QuestionSingle, store.QuestionMulti:
		if len(q.Options) == 0 {
			return newError(ErrEmptyField, "choice questions need options")
		}
	default:
		return newError(ErrInvalidAnswer, "unknown question type %q", q.Type)
	}
	if err := e.store.AddQuestion(ctx, q); err != nil {
		return fmt.Errorf("add question: %w", err)
	}
	return nil
}

// RecordAnswer stores the answer to one question of an open case, replacing
// any earlier answer. Only someone who could act on the case may answer.
// Choice answers must use the question's options and a single-choice answer
// holds at most one value.
func (e *Engine) RecordAnswer(ctx context.Context, caseID, questionID int64, values []string, actor Actor) (*store.Answer, error) {
	unlock := e.caseLocks.Lock(caseID)
	defer unlock()

	c, err := e.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Terminal() {
		return nil, newError(ErrInvalidState, "case #%d is already %s", c.ID, c.Stage)
	}
	if !e.canAct(c, actor) {
		return nil, newError(ErrUnauthorized, "%s may not answer for case #%d at %s", actor, c.ID, c.Stage)
	}

	questions, err := e.questions.Template(ctx, c.Template)
	if err != nil {
		return nil, dependencyError("load questionnaire template", err)
	}
	var q *store.Question
	for i := range questions {
		if questions[i].ID == questionID {
			q = &questions[i]
			break
		}
	}
	if q == nil {
		return nil, newError(ErrNotFound, "question %d in template %s", questionID, c.Template)
	}

	var trimmed []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	set := store.NewAnswerSet(trimmed...)
	if err := checkAnswer(q, set); err != nil {
		return nil, err
	}

	a := &store.Answer{CaseID: c.ID, QuestionID: q.ID, Values: set, UpdatedBy: actor.ID, UpdatedAt: e.now()}
	if err := e.store.SaveAnswer(ctx, a); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}
	return a, nil
}

func checkAnswer(q *store.Question, set store.AnswerSet) error {
	switch q.Type {
	case store.QuestionSingle:
		if len(set) > 1 {
			return newError(ErrInvalidAnswer, "%q takes a single value", q.Text)
		}
	case store.QuestionMulti:
	default:
		if len(set) > 1 {
			return newError(ErrInvalidAnswer, "%q takes a single text value", q.Text)
		}
		return nil
	}
	for _, v := range set {
		if !contains(q.Options, v) {
			return newError(ErrInvalidAnswer, "%q is not an option of %q", v, q.Text)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
