package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/venus-kyc/caseflow/internal/store"
)

// Origin tells case-stage work apart from ad-hoc tasks in an inbox.
type Origin string

const (
	OriginCase  Origin = "CASE"
	OriginAdHoc Origin = "AD_HOC"
)

// InboxItem is one entry of a user's work queue.
type InboxItem struct {
	Origin    Origin    `json:"origin"`
	CaseID    int64     `json:"case_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	SubjectID int64     `json:"subject_id,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Status    string    `json:"status,omitempty"`
	Assignee  string    `json:"assignee,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Inbox returns the actor's case items and ad-hoc items, newest first.
// It is recomputed on every call.
func (e *Engine) Inbox(ctx context.Context, actor Actor) ([]InboxItem, error) {
	items, err := e.ListCaseTasks(ctx, actor)
	if err != nil {
		return nil, err
	}

	tasks, err := e.store.ListAdHocByAssignee(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list adhoc tasks: %w", err)
	}
	for _, t := range tasks {
		item := InboxItem{
			Origin:    OriginAdHoc,
			TaskID:    t.ID,
			Status:    string(t.Status),
			Assignee:  t.Assignee,
			Title:     t.RequestText,
			CreatedAt: t.CreatedAt,
		}
		if t.ClientID != nil {
			item.SubjectID = *t.ClientID
		}
		items = append(items, item)
	}

	sortInbox(items)
	return items, nil
}

// ListCaseTasks returns the open cases the actor should see: those assigned
// to it, pooled cases in a stage bound to its role, and for admins every
// pooled case.
func (e *Engine) ListCaseTasks(ctx context.Context, actor Actor) ([]InboxItem, error) {
	cases, err := e.store.ListOpenCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open cases: %w", err)
	}

	var items []InboxItem
	for _, c := range cases {
		if !e.visible(&c, actor) {
			continue
		}
		items = append(items, InboxItem{
			Origin:    OriginCase,
			CaseID:    c.ID,
			SubjectID: c.SubjectID,
			Stage:     c.Stage,
			Assignee:  c.Assignee,
			Title:     caseTitle(&c),
			CreatedAt: c.CreatedAt,
		})
	}
	sortInbox(items)
	return items, nil
}

func (e *Engine) visible(c *store.Case, actor Actor) bool {
	if c.Assignee != "" {
		return c.Assignee == actor.ID
	}
	if actor.Can(CapViewAllUnassigned) {
		return true
	}
	role, ok := e.pipeline.RoleFor(c.Stage)
	return ok && role == actor.Role
}

func caseTitle(c *store.Case) string {
	if c.Reason != "" {
		return fmt.Sprintf("Case #%d: %s", c.ID, c.Reason)
	}
	return fmt.Sprintf("Case #%d for subject %d", c.ID, c.SubjectID)
}

// sortInbox orders by creation time descending, then CASE before AD_HOC,
// then by ID.
func sortInbox(items []InboxItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Origin != b.Origin {
			return a.Origin == OriginCase
		}
		if a.Origin == OriginCase {
			return a.CaseID < b.CaseID
		}
		return a.TaskID < b.TaskID
	})
}
