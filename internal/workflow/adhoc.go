package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/venus-kyc/caseflow/internal/store"
)

// Ad-hoc operation names, used as metrics labels.
const (
	opCreate   = "create"
	opRespond  = "respond"
	opComplete = "complete"
	opReassign = "reassign"
)

// MyTasks splits a user's ad-hoc tasks by relation.
type MyTasks struct {
	Owned    []store.AdHocTask `json:"owned"`
	Assigned []store.AdHocTask `json:"assigned"`
}

// CreateAdHoc opens a request from owner to assignee. The task starts OPEN.
func (e *Engine) CreateAdHoc(ctx context.Context, owner Actor, assignee, text string, clientID *int64) (_ *store.AdHocTask, err error) {
	defer func() { e.observeAdHoc(opCreate, err) }()

	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, newError(ErrEmptyField, "assignee is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, newError(ErrEmptyField, "request text is required")
	}
	if _, ok := e.dir.Lookup(assignee); !ok {
		return nil, newError(ErrNotFound, "user %q", assignee)
	}

	now := e.now()
	task := &store.AdHocTask{
		ID:          e.newID(),
		Owner:       owner.ID,
		Assignee:    assignee,
		RequestText: text,
		ClientID:    clientID,
		Status:      store.AdHocOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	act := store.Activity{Author: owner.ID, Message: fmt.Sprintf("Created and assigned to %s", assignee), Time: now}
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.CreateAdHocTask(ctx, task); err != nil {
			return err
		}
		return tx.AddActivity(ctx, task.ID, act)
	})
	if err != nil {
		return nil, fmt.Errorf("create adhoc task: %w", err)
	}

	task.Activity = []store.Activity{act}
	e.log.Info("adhoc task created", "task", task.ID, "owner", owner.ID, "assignee", assignee)
	e.publishActivity(ctx, task, act)
	return task, nil
}

// RespondAdHoc records the assignee's response. A task may be answered
// again while it is RESPONDED; the latest response wins.
func (e *Engine) RespondAdHoc(ctx context.Context, id, text string, actor Actor) (_ *store.AdHocTask, err error) {
	defer func() { e.observeAdHoc(opRespond, err) }()

	unlock := e.taskLocks.Lock(id)
	defer unlock()

	task, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Assignee != actor.ID {
		return nil, newError(ErrUnauthorized, "only %s may respond to task %s", task.Assignee, id)
	}
	if task.Status != store.AdHocOpen && task.Status != store.AdHocResponded {
		return nil, newError(ErrInvalidState, "task %s is %s", id, task.Status)
	}
	if strings.TrimSpace(text) == "" {
		return nil, newError(ErrEmptyField, "response text is required")
	}

	act := store.Activity{Author: actor.ID, Message: "Responded: " + text, Time: e.now()}
	return e.moveTask(ctx, task, []store.AdHocStatus{store.AdHocOpen, store.AdHocResponded}, store.AdHocResponded, actor.ID, text, act)
}

// CompleteAdHoc closes a RESPONDED task. Only the owner may complete.
func (e *Engine) CompleteAdHoc(ctx context.Context, id string, actor Actor) (_ *store.AdHocTask, err error) {
	defer func() { e.observeAdHoc(opComplete, err) }()

	unlock := e.taskLocks.Lock(id)
	defer unlock()

	task, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Owner != actor.ID {
		return nil, newError(ErrUnauthorized, "only %s may complete task %s", task.Owner, id)
	}
	if task.Status != store.AdHocResponded {
		return nil, newError(ErrInvalidState, "task %s is %s, expected %s", id, task.Status, store.AdHocResponded)
	}

	act := store.Activity{Author: actor.ID, Message: "Completed", Time: e.now()}
	return e.moveTask(ctx, task, []store.AdHocStatus{store.AdHocResponded}, store.AdHocComplete, "", "", act)
}

// moveTask applies a status change guarded by the expected previous
// statuses and appends act, then returns the fresh task.
func (e *Engine) moveTask(ctx context.Context, task *store.AdHocTask, from []store.AdHocStatus, to store.AdHocStatus,
	responder, text string, act store.Activity) (*store.AdHocTask, error) {
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		ok, err := tx.UpdateAdHocStatus(ctx, task.ID, from, to, responder, text, act.Time)
		if err != nil {
			return err
		}
		if !ok {
			return newError(ErrInvalidState, "task %s changed concurrently", task.ID)
		}
		return tx.AddActivity(ctx, task.ID, act)
	})
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) {
			return nil, err
		}
		return nil, fmt.Errorf("update adhoc task %s: %w", task.ID, err)
	}

	e.log.Info("adhoc task updated", "task", task.ID, "status", to, "actor", act.Author)
	fresh, err := e.loadTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	e.publishActivity(ctx, fresh, act)
	return fresh, nil
}

// ReassignAdHoc hands an unfinished task to another user. The status is
// kept as is.
func (e *Engine) ReassignAdHoc(ctx context.Context, id, newAssignee string, actor Actor) (_ *store.AdHocTask, err error) {
	defer func() { e.observeAdHoc(opReassign, err) }()

	unlock := e.taskLocks.Lock(id)
	defer unlock()

	task, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Owner != actor.ID {
		return nil, newError(ErrUnauthorized, "only %s may reassign task %s", task.Owner, id)
	}
	if task.Status == store.AdHocComplete {
		return nil, newError(ErrInvalidState, "task %s is already complete", id)
	}
	newAssignee = strings.TrimSpace(newAssignee)
	if newAssignee == "" {
		return nil, newError(ErrEmptyField, "assignee is required")
	}
	if _, ok := e.dir.Lookup(newAssignee); !ok {
		return nil, newError(ErrNotFound, "user %q", newAssignee)
	}

	now := e.now()
	act := store.Activity{
		Author:  actor.ID,
		Message: fmt.Sprintf("Reassigned from %s to %s", task.Assignee, newAssignee),
		Time:    now,
	}
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		cur, err := tx.GetAdHocTask(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status == store.AdHocComplete {
			return newError(ErrInvalidState, "task %s is already complete", id)
		}
		if err := tx.SetAdHocAssignee(ctx, id, newAssignee, now); err != nil {
			return err
		}
		return tx.AddActivity(ctx, id, act)
	})
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) {
			return nil, err
		}
		return nil, fmt.Errorf("reassign adhoc task %s: %w", id, err)
	}

	fresh, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	e.publishActivity(ctx, fresh, act)
	return fresh, nil
}

// AdHocTask returns a task with its activity log. Only the owner, the
// assignee or an admin may read it.
func (e *Engine) AdHocTask(ctx context.Context, id string, actor Actor) (*store.AdHocTask, error) {
	task, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Owner != actor.ID && task.Assignee != actor.ID && !actor.Can(CapAdminOverride) {
		return nil, newError(ErrUnauthorized, "%s may not view task %s", actor, id)
	}
	return task, nil
}

// ListMyAdHoc returns the tasks the actor created and the ones assigned to it.
func (e *Engine) ListMyAdHoc(ctx context.Context, actor Actor) (MyTasks, error) {
	owned, err := e.store.ListAdHocByOwner(ctx, actor.ID)
	if err != nil {
		return MyTasks{}, fmt.Errorf("list owned adhoc tasks: %w", err)
	}
	assigned, err := e.store.ListAdHocByAssignee(ctx, actor.ID)
	if err != nil {
		return MyTasks{}, fmt.Errorf("list assigned adhoc tasks: %w", err)
	}
	return MyTasks{Owned: owned, Assigned: assigned}, nil
}

func (e *Engine) loadTask(ctx context.Context, id string) (*store.AdHocTask, error) {
	task, err := e.store.GetAdHocTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "task %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load adhoc task %s: %w", id, err)
	}
	return task, nil
}
