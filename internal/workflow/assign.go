package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/venus-kyc/caseflow/internal/store"
)

// Assign sets the owner of a case. An empty assignee returns the case to
// the shared pool. Concurrent calls on one case are serialized and the last
// one wins; there is no compare-and-swap on the previous assignee.
func (e *Engine) Assign(ctx context.Context, caseID int64, assignee string, actor Actor) (_ *store.Case, err error) {
	defer func() { e.observeAssignment(err) }()

	unlock := e.caseLocks.Lock(caseID)
	defer unlock()

	c, err := e.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Terminal() {
		return nil, newError(ErrInvalidState, "case #%d is already %s", c.ID, c.Stage)
	}

	stageRole, _ := e.pipeline.RoleFor(c.Stage)
	admin := actor.Can(CapAdminOverride)
	holdsRole := actor.Role == stageRole

	var desc string
	switch {
	case assignee == "":
		if !admin && !holdsRole && c.Assignee != actor.ID {
			return nil, newError(ErrUnauthorized, "%s may not release case #%d", actor, c.ID)
		}
		desc = fmt.Sprintf("Returned to pool by %s", actor.ID)
	case assignee == actor.ID:
		if !admin && !holdsRole {
			return nil, newError(ErrUnauthorized, "%s may not claim a case in stage %s", actor, c.Stage)
		}
		desc = fmt.Sprintf("Claimed by %s", actor.ID)
	default:
		if !admin && !holdsRole {
			return nil, newError(ErrUnauthorized, "%s may not assign cases in stage %s", actor, c.Stage)
		}
		if !e.eligible(assignee, stageRole, admin) {
			return nil, newError(ErrIneligibleAssignee, "%s cannot work stage %s", assignee, c.Stage)
		}
		desc = fmt.Sprintf("Assigned to %s by %s", assignee, actor.ID)
	}

	now := e.now()
	ev := store.Event{CaseID: c.ID, Type: store.EventAssigned, Description: desc, Source: actor.ID, Timestamp: now}
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.SetAssignee(ctx, c.ID, assignee); err != nil {
			return err
		}
		return tx.AddEvent(ctx, &ev)
	})
	if err != nil {
		return nil, fmt.Errorf("assign case #%d: %w", c.ID, err)
	}

	c.Assignee = assignee
	e.log.Info("case assigned", "case", c.ID, "assignee", assignee, "actor", actor.ID)
	e.publish(ctx, ev)
	return c, nil
}

// eligible reports whether username may be handed a case in a stage bound
// to role. Admins may hand cases to any known user.
func (e *Engine) eligible(username string, role Role, admin bool) bool {
	u, ok := e.dir.Lookup(username)
	if !ok {
		return false
	}
	return admin || u.Role == role
}

// EligibleAssignees lists the users the actor may assign the case to.
// Terminal cases have none.
func (e *Engine) EligibleAssignees(ctx context.Context, caseID int64, actor Actor) ([]User, error) {
	c, err := e.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Terminal() {
		return nil, nil
	}
	if actor.Can(CapAdminOverride) {
		return sortUsers(e.dir.Users()), nil
	}
	role, _ := e.pipeline.RoleFor(c.Stage)
	return sortUsers(e.dir.UsersByRole(role)), nil
}

// UsersForRole lists the users holding role.
func (e *Engine) UsersForRole(ctx context.Context, role Role) ([]User, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return nil, newError(ErrNotFound, "%v", err)
	}
	return sortUsers(e.dir.UsersByRole(role)), nil
}

func sortUsers(users []User) []User {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}
