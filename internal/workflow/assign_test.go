package workflow

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venus-kyc/caseflow/internal/store"
)

func TestAssign_SelfClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)

	got, err := env.engine.Assign(ctx, c.ID, "alice", env.actor(t, "alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Assignee)

	// A peer with the stage role may take it over.
	got, err = env.engine.Assign(ctx, c.ID, "anna", env.actor(t, "anna"))
	require.NoError(t, err)
	assert.Equal(t, "anna", got.Assignee)

	// A user without the stage role may not claim.
	_, err = env.engine.Assign(ctx, c.ID, "rita", env.actor(t, "rita"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	events := env.events(t, c.ID)
	assert.Equal(t, 2, countEvents(events, store.EventAssigned))
	comments, _ := env.engine.Comments(ctx, c.ID)
	assert.Len(t, comments, 1, "assignment adds no comment")
}

func TestAssign_Release(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, releaser := range []string{"anna", "alice", "root"} {
		c := env.newCase(t, 1)
		_, err := env.engine.Assign(ctx, c.ID, "anna", env.actor(t, "anna"))
		require.NoError(t, err)

		got, err := env.engine.Assign(ctx, c.ID, "", env.actor(t, releaser))
		require.NoError(t, err, releaser)
		assert.Empty(t, got.Assignee)

		stored, _ := env.engine.Case(ctx, c.ID)
		assert.Empty(t, stored.Assignee, releaser)
	}

	c := env.newCase(t, 2)
	_, err := env.engine.Assign(ctx, c.ID, "anna", env.actor(t, "anna"))
	require.NoError(t, err)
	_, err = env.engine.Assign(ctx, c.ID, "", env.actor(t, "rita"))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAssign_ReleaseByAssigneeWithoutRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)

	_, err := env.engine.Assign(ctx, c.ID, "rita", env.actor(t, "root"))
	require.NoError(t, err)

	got, err := env.engine.Assign(ctx, c.ID, "", env.actor(t, "rita"))
	require.NoError(t, err)
	assert.Empty(t, got.Assignee)
}

func TestAssign_Others(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)

	got, err := env.engine.Assign(ctx, c.ID, "anna", env.actor(t, "alice"))
	require.NoError(t, err)
	assert.Equal(t, "anna", got.Assignee)

	_, err = env.engine.Assign(ctx, c.ID, "rita", env.actor(t, "alice"))
	assert.ErrorIs(t, err, ErrIneligibleAssignee)
	assert.Equal(t, KindAuthorization, KindOf(err))

	_, err = env.engine.Assign(ctx, c.ID, "ghost", env.actor(t, "alice"))
	assert.ErrorIs(t, err, ErrIneligibleAssignee)

	_, err = env.engine.Assign(ctx, c.ID, "alice", env.actor(t, "frank"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err = env.engine.Assign(ctx, c.ID, "olga", env.actor(t, "root"))
	require.NoError(t, err)
	assert.Equal(t, "olga", got.Assignee)
}

func TestAssign_TerminalAndMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)

	_, err := env.engine.Transition(ctx, c.ID, ActionReject, "no", env.actor(t, "alice"))
	require.NoError(t, err)

	_, err = env.engine.Assign(ctx, c.ID, "alice", env.actor(t, "root"))
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = env.engine.Assign(ctx, 12345, "alice", env.actor(t, "root"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"invalid_state", "not_found"}, env.observer.assignments)
}

func TestTransition_ClearsAssignee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)

	_, err := env.engine.Assign(ctx, c.ID, "alice", env.actor(t, "alice"))
	require.NoError(t, err)
	got, err := env.engine.Transition(ctx, c.ID, ActionApprove, "ok", env.actor(t, "alice"))
	require.NoError(t, err)
	assert.Empty(t, got.Assignee)
}

// Concurrent assigns serialize; the case ends with one of the written values.
func TestAssign_ConcurrentLastWriterWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)
	root := env.actor(t, "root")

	var wg sync.WaitGroup
	for _, target := range []string{"alice", "anna"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.Assign(ctx, c.ID, target, root)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := env.engine.Case(ctx, c.ID)
	require.NoError(t, err)
	assert.Contains(t, []string{"alice", "anna"}, stored.Assignee)

	// The last ASSIGNED event names the value that persisted.
	events := env.events(t, c.ID)
	require.Equal(t, 2, countEvents(events, store.EventAssigned))
	last := events[len(events)-1]
	assert.Equal(t, store.EventAssigned, last.Type)
	assert.True(t, strings.HasPrefix(last.Description, "Assigned to "+stored.Assignee+" "), last.Description)
}

func TestEligibleAssignees(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)

	users, err := env.engine.EligibleAssignees(ctx, c.ID, env.actor(t, "alice"))
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "anna", users[1].Username)

	users, err = env.engine.EligibleAssignees(ctx, c.ID, env.actor(t, "root"))
	require.NoError(t, err)
	assert.Len(t, users, len(testUsers))

	_, err = env.engine.EligibleAssignees(ctx, 999, env.actor(t, "alice"))
	assert.ErrorIs(t, err, ErrNotFound)

	reviewers, err := env.engine.UsersForRole(ctx, RoleKYCReviewer)
	require.NoError(t, err)
	require.Len(t, reviewers, 1)
	assert.Equal(t, "rita", reviewers[0].Username)

	_, err = env.engine.UsersForRole(ctx, "JANITOR")
	assert.ErrorIs(t, err, ErrNotFound)
}
