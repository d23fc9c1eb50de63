package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/venus-kyc/caseflow/internal/store"
)

// Action is a reviewer decision on the current stage.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionApprove, ActionReject:
		return a, nil
	}
	return "", newError(ErrInvalidAction, "unknown action %q", s)
}

// CreateCase opens a case for a subject in the first pipeline stage with
// no assignee.
func (e *Engine) CreateCase(ctx context.Context, subjectID int64, reason string, actor Actor) (*store.Case, error) {
	if !actor.Can(CapCreateCase) {
		return nil, newError(ErrUnauthorized, "%s may not create cases", actor)
	}
	if subjectID <= 0 {
		return nil, newError(ErrEmptyField, "subject id is required")
	}
	reason = strings.TrimSpace(reason)

	now := e.now()
	first := e.pipeline.First()
	var c *store.Case
	var events []store.Event
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		c, err = tx.CreateCase(ctx, subjectID, reason, store.DefaultTemplate, first.Name, now)
		if err != nil {
			return err
		}
		text := "Case created"
		if reason != "" {
			text += ": " + reason
		}
		if err := tx.AddComment(ctx, &store.Comment{
			CaseID: c.ID, Author: actor.ID, Role: string(actor.Role), Text: text, Timestamp: now,
		}); err != nil {
			return err
		}
		ev := store.Event{
			CaseID:      c.ID,
			Type:        store.EventCaseCreated,
			Description: fmt.Sprintf("Case created for subject %d in stage %s", subjectID, first.Name),
			Source:      actor.ID,
			Timestamp:   now,
		}
		if err := tx.AddEvent(ctx, &ev); err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}

	e.log.Info("case created", "case", c.ID, "subject", subjectID, "actor", actor.ID)
	e.publish(ctx, events...)
	return c, nil
}

// Transition applies a reviewer decision to a case. Preconditions are
// checked in order (existence, terminal stage, authorization, comment,
// action) and all of them before anything is written. APPROVE additionally
// requires the validation gate to pass.
func (e *Engine) Transition(ctx context.Context, caseID int64, action Action, comment string, actor Actor) (_ *store.Case, err error) {
	defer func() { e.observeTransition(action, err) }()

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
		return nil, newError(ErrUnauthorized, "%s may not act on stage %s", actor, c.Stage)
	}
	if strings.TrimSpace(comment) == "" {
		return nil, newError(ErrEmptyComment, "a comment is required")
	}

	var next string
	switch action {
	case ActionReject:
		next = store.StageRejected
	case ActionApprove:
		res, err := e.gate.Check(ctx, c)
		if err != nil {
			return nil, err
		}
		if !res.Valid {
			return nil, &Error{
				Kind:    KindValidation,
				Code:    ErrValidationFailed.Code,
				Msg:     fmt.Sprintf("case #%d has unanswered mandatory questions", c.ID),
				Missing: res.Missing,
			}
		}
		if next, err = e.pipeline.Next(c.Stage); err != nil {
			return nil, newError(ErrInvalidState, "%v", err)
		}
	default:
		return nil, newError(ErrInvalidAction, "unknown action %q", action)
	}

	now := e.now()
	from := c.Stage
	ev := store.Event{
		CaseID:      c.ID,
		Type:        store.EventStageChanged,
		Description: fmt.Sprintf("%s: %s -> %s", action, from, next),
		Source:      actor.ID,
		Timestamp:   now,
	}
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		var closedAt = &now
		if next != store.StageApproved && next != store.StageRejected {
			closedAt = nil
		}
		moved, err := tx.MoveStage(ctx, c.ID, from, next, closedAt)
		if err != nil {
			return err
		}
		if !moved {
			return newError(ErrInvalidState, "case #%d is no longer in stage %s", c.ID, from)
		}
		if err := tx.AddComment(ctx, &store.Comment{
			CaseID: c.ID, Author: actor.ID, Role: string(actor.Role), Text: comment, Timestamp: now,
		}); err != nil {
			return err
		}
		return tx.AddEvent(ctx, &ev)
	})
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) {
			return nil, err
		}
		return nil, fmt.Errorf("transition case #%d: %w", c.ID, err)
	}

	c.Stage = next
	c.Assignee = ""
	if next == store.StageApproved || next == store.StageRejected {
		c.ClosedAt = &now
	}
	e.log.Info("case transitioned", "case", c.ID, "action", action, "from", from, "to", next, "actor", actor.ID)
	e.publish(ctx, ev)
	return c, nil
}

// AddNote appends an informational comment to an open case. Any known user
// may comment, not only the stage owner.
func (e *Engine) AddNote(ctx context.Context, caseID int64, text string, actor Actor) (*store.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, newError(ErrEmptyComment, "note text is required")
	}
	c, err := e.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Terminal() {
		return nil, newError(ErrInvalidState, "case #%d is already %s", c.ID, c.Stage)
	}

	now := e.now()
	note := &store.Comment{CaseID: c.ID, Author: actor.ID, Role: string(actor.Role), Text: text, Timestamp: now}
	ev := store.Event{CaseID: c.ID, Type: store.EventNoteAdded, Description: "Note added", Source: actor.ID, Timestamp: now}
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.AddComment(ctx, note); err != nil {
			return err
		}
		return tx.AddEvent(ctx, &ev)
	})
	if err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}
	e.publish(ctx, ev)
	return note, nil
}

// DocumentInput describes an attachment. Only metadata is recorded.
type DocumentInput struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	MimeType string `json:"mime_type,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// AttachDocument records a document against an open case.
func (e *Engine) AttachDocument(ctx context.Context, caseID int64, in DocumentInput, actor Actor) (*store.Document, error) {
	c, err := e.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Terminal() {
		return nil, newError(ErrInvalidState, "case #%d is already %s", c.ID, c.Stage)
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Category) == "" {
		return nil, newError(ErrEmptyField, "document name and category are required")
	}

	now := e.now()
	doc := &store.Document{
		CaseID:     c.ID,
		Name:       in.Name,
		Category:   in.Category,
		MimeType:   in.MimeType,
		UploadedBy: actor.ID,
		Comment:    in.Comment,
		Timestamp:  now,
	}
	ev := store.Event{
		CaseID:      c.ID,
		Type:        store.EventDocUploaded,
		Description: fmt.Sprintf("Document %s uploaded (%s)", in.Name, in.Category),
		Source:      actor.ID,
		Timestamp:   now,
	}
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.AddDocument(ctx, doc); err != nil {
			return err
		}
		return tx.AddEvent(ctx, &ev)
	})
	if err != nil {
		return nil, fmt.Errorf("attach document: %w", err)
	}
	e.publish(ctx, ev)
	return doc, nil
}

// Case returns a single case.
func (e *Engine) Case(ctx context.Context, caseID int64) (*store.Case, error) {
	return e.loadCase(ctx, caseID)
}

// ListCases returns all cases, optionally restricted to one stage.
func (e *Engine) ListCases(ctx context.Context, stage string) ([]store.Case, error) {
	cases, err := e.store.ListCases(ctx, stage)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return cases, nil
}

// Validate runs the validation gate without transitioning.
func (e *Engine) Validate(ctx context.Context, caseID int64) (Result, error) {
	c, err := e.loadCase(ctx, caseID)
	if err != nil {
		return Result{}, err
	}
	return e.gate.Check(ctx, c)
}

// canAct reports whether actor may transition c: the stage's role, the
// current assignee, or an admin.
func (e *Engine) canAct(c *store.Case, actor Actor) bool {
	if actor.Can(CapAdminOverride) {
		return true
	}
	if c.Assignee != "" && c.Assignee == actor.ID {
		return true
	}
	role, ok := e.pipeline.RoleFor(c.Stage)
	return ok && role == actor.Role
}

func (e *Engine) loadCase(ctx context.Context, id int64) (*store.Case, error) {
	c, err := e.store.GetCase(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "case #%d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load case #%d: %w", id, err)
	}
	return c, nil
}
