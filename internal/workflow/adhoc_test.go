package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venus-kyc/caseflow/internal/store"
)

// Only the assignee may respond and only the owner may complete.
func TestAdHoc_RespondThenComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, assignee := env.actor(t, "rita"), env.actor(t, "alice")
	client := int64(77)

	task, err := env.engine.CreateAdHoc(ctx, owner, "alice", "confirm address", &client)
	require.NoError(t, err)
	assert.Equal(t, store.AdHocOpen, task.Status)
	assert.NotEmpty(t, task.ID)

	task, err = env.engine.RespondAdHoc(ctx, task.ID, "done", assignee)
	require.NoError(t, err)
	assert.Equal(t, store.AdHocResponded, task.Status)
	assert.Equal(t, "done", task.ResponseText)
	assert.Equal(t, "alice", task.Responder)

	task, err = env.engine.CompleteAdHoc(ctx, task.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, store.AdHocComplete, task.Status)

	_, err = env.engine.CompleteAdHoc(ctx, task.ID, assignee)
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := env.engine.AdHocTask(ctx, task.ID, owner)
	require.NoError(t, err)
	assert.Len(t, got.Activity, 3)
	require.NotNil(t, got.ClientID)
	assert.Equal(t, int64(77), *got.ClientID)

	// Notifier errors are logged, not returned.
	assert.Len(t, env.notifier.activity, 3)
	assert.Equal(t, []string{"create:ok", "respond:ok", "complete:ok", "complete:unauthorized"}, env.observer.adhoc)
}

func TestAdHoc_NeverSkipsResponded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, assignee := env.actor(t, "rita"), env.actor(t, "alice")

	task, err := env.engine.CreateAdHoc(ctx, owner, "alice", "confirm address", nil)
	require.NoError(t, err)

	_, err = env.engine.CompleteAdHoc(ctx, task.ID, owner)
	assert.ErrorIs(t, err, ErrInvalidState, "OPEN -> COMPLETE is not allowed")

	_, err = env.engine.RespondAdHoc(ctx, task.ID, "first", assignee)
	require.NoError(t, err)
	task, err = env.engine.RespondAdHoc(ctx, task.ID, "second", assignee)
	require.NoError(t, err)
	assert.Equal(t, "second", task.ResponseText, "latest response wins")

	_, err = env.engine.CompleteAdHoc(ctx, task.ID, owner)
	require.NoError(t, err)

	_, err = env.engine.RespondAdHoc(ctx, task.ID, "late", assignee)
	assert.ErrorIs(t, err, ErrInvalidState, "COMPLETE never reopens")
}

func TestAdHoc_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.actor(t, "rita")

	_, err := env.engine.CreateAdHoc(ctx, owner, " ", "text", nil)
	assert.ErrorIs(t, err, ErrEmptyField)
	_, err = env.engine.CreateAdHoc(ctx, owner, "alice", "  ", nil)
	assert.ErrorIs(t, err, ErrEmptyField)
	_, err = env.engine.CreateAdHoc(ctx, owner, "ghost", "text", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	task, err := env.engine.CreateAdHoc(ctx, owner, "alice", "text", nil)
	require.NoError(t, err)

	_, err = env.engine.RespondAdHoc(ctx, task.ID, "hi", env.actor(t, "anna"))
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.engine.RespondAdHoc(ctx, task.ID, "", env.actor(t, "alice"))
	assert.ErrorIs(t, err, ErrEmptyField)
	_, err = env.engine.RespondAdHoc(ctx, "missing", "hi", env.actor(t, "alice"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.engine.AdHocTask(ctx, task.ID, env.actor(t, "frank"))
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.engine.AdHocTask(ctx, task.ID, env.actor(t, "root"))
	assert.NoError(t, err)
}

func TestAdHoc_Reassign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.actor(t, "rita")

	task, err := env.engine.CreateAdHoc(ctx, owner, "alice", "text", nil)
	require.NoError(t, err)
	_, err = env.engine.RespondAdHoc(ctx, task.ID, "partial", env.actor(t, "alice"))
	require.NoError(t, err)

	_, err = env.engine.ReassignAdHoc(ctx, task.ID, "anna", env.actor(t, "alice"))
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.engine.ReassignAdHoc(ctx, task.ID, "ghost", owner)
	assert.ErrorIs(t, err, ErrNotFound)

	task, err = env.engine.ReassignAdHoc(ctx, task.ID, "anna", owner)
	require.NoError(t, err)
	assert.Equal(t, "anna", task.Assignee)
	assert.Equal(t, store.AdHocResponded, task.Status, "reassign keeps the status")

	// The previous assignee can no longer respond.
	_, err = env.engine.RespondAdHoc(ctx, task.ID, "more", env.actor(t, "alice"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.engine.CompleteAdHoc(ctx, task.ID, owner)
	require.NoError(t, err)
	_, err = env.engine.ReassignAdHoc(ctx, task.ID, "alice", owner)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestListMyAdHoc(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rita, alice := env.actor(t, "rita"), env.actor(t, "alice")

	_, err := env.engine.CreateAdHoc(ctx, rita, "alice", "one", nil)
	require.NoError(t, err)
	_, err = env.engine.CreateAdHoc(ctx, alice, "rita", "two", nil)
	require.NoError(t, err)
	_, err = env.engine.CreateAdHoc(ctx, rita, "anna", "three", nil)
	require.NoError(t, err)

	mine, err := env.engine.ListMyAdHoc(ctx, rita)
	require.NoError(t, err)
	assert.Len(t, mine.Owned, 2)
	assert.Len(t, mine.Assigned, 1)
	assert.Equal(t, "three", mine.Owned[0].RequestText, "newest first")
}
