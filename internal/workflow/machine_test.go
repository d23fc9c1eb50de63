package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venus-kyc/caseflow/internal/store"
)

func TestCreateCase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c, err := env.engine.CreateCase(ctx, 42, "periodic review", env.actor(t, "max"))
	require.NoError(t, err)
	assert.Equal(t, "KYC_ANALYST", c.Stage)
	assert.Empty(t, c.Assignee)
	assert.Equal(t, store.DefaultTemplate, c.Template)

	events := env.events(t, c.ID)
	require.Len(t, events, 1)
	assert.Equal(t, store.EventCaseCreated, events[0].Type)

	comments, err := env.engine.Comments(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Case created: periodic review", comments[0].Text)
	assert.Equal(t, string(RoleCaseManager), comments[0].Role)

	assert.Len(t, env.notifier.events, 1)
}

func TestCreateCase_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.CreateCase(ctx, 42, "", env.actor(t, "rita"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.engine.CreateCase(ctx, 0, "", env.actor(t, "alice"))
	assert.ErrorIs(t, err, ErrEmptyField)

	cases, err := env.engine.ListCases(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, cases)
}

// Approving moves to the next stage, clears the assignee and records one
// comment and one STAGE_CHANGED event.
func TestTransition_ApproveAdvances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)
	q := env.mandatory(t, "Identity", "Full legal name", 1, 1)
	env.answer(t, c.ID, q, "Jane Doe")

	before := env.events(t, c.ID)
	beforeComments, _ := env.engine.Comments(ctx, c.ID)

	got, err := env.engine.Transition(ctx, c.ID, ActionApprove, "ok", env.actor(t, "alice"))
	require.NoError(t, err)
	assert.Equal(t, "KYC_REVIEWER", got.Stage)
	assert.Empty(t, got.Assignee)
	assert.Nil(t, got.ClosedAt)

	stored, err := env.engine.Case(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "KYC_REVIEWER", stored.Stage)
	assert.Empty(t, stored.Assignee)

	after := env.events(t, c.ID)
	assert.Len(t, after, len(before)+1)
	assert.Equal(t, 1, countEvents(after, store.EventStageChanged))

	afterComments, _ := env.engine.Comments(ctx, c.ID)
	require.Len(t, afterComments, len(beforeComments)+1)
	assert.Equal(t, "ok", afterComments[len(afterComments)-1].Text)

	assert.Equal(t, []string{"APPROVE:ok"}, env.observer.transitions)
}

// An unanswered mandatory question blocks approval without any write.
func TestTransition_ApproveBlockedByUnansweredQuestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)
	answered := env.mandatory(t, "Identity", "Full legal name", 1, 1)
	env.mandatory(t, "Funds", "Source of wealth", 2, 1)
	env.answer(t, c.ID, answered, "Jane Doe")

	alice := env.actor(t, "alice")
	_, err := env.engine.Assign(ctx, c.ID, "alice", alice)
	require.NoError(t, err)
	before := env.events(t, c.ID)

	_, err = env.engine.Transition(ctx, c.ID, ActionApprove, "ok", alice)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, []string{"Source of wealth"}, MissingFields(err))

	stored, _ := env.engine.Case(ctx, c.ID)
	assert.Equal(t, "KYC_ANALYST", stored.Stage)
	assert.Equal(t, "alice", stored.Assignee)
	assert.Equal(t, before, env.events(t, c.ID))
	assert.Equal(t, []string{"APPROVE:validation_failed"}, env.observer.transitions)
}

func TestTransition_MissingInTemplateOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)
	env.mandatory(t, "Funds", "Source of wealth", 2, 1)
	env.mandatory(t, "Identity", "Nationality", 1, 2)
	env.mandatory(t, "Identity", "Full legal name", 1, 1)
	blank := env.mandatory(t, "Identity", "Date of birth", 1, 3)
	env.answer(t, c.ID, blank, "  ")

	_, err := env.engine.Transition(ctx, c.ID, ActionApprove, "ok", env.actor(t, "alice"))
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, []string{"Full legal name", "Nationality", "Date of birth", "Source of wealth"}, MissingFields(err))
}

func TestTransition_RejectIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)
	env.mandatory(t, "Identity", "Full legal name", 1, 1)

	// Reject skips the gate.
	got, err := env.engine.Transition(ctx, c.ID, ActionReject, "fraud indicators", env.actor(t, "anna"))
	require.NoError(t, err)
	assert.Equal(t, store.StageRejected, got.Stage)
	require.NotNil(t, got.ClosedAt)

	for _, action := range []Action{ActionApprove, ActionReject} {
		_, err = env.engine.Transition(ctx, c.ID, action, "again", env.actor(t, "root"))
		assert.ErrorIs(t, err, ErrInvalidState)
	}
}

func TestTransition_FullPipelineIsMonotonic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)
	p := env.engine.Pipeline()

	last := p.Position(c.Stage)
	for _, user := range []string{"alice", "rita", "frank", "olga"} {
		got, err := env.engine.Transition(ctx, c.ID, ActionApprove, "approved by "+user, env.actor(t, user))
		require.NoError(t, err, user)
		pos := p.Position(got.Stage)
		assert.Equal(t, last+1, pos, "stage must advance exactly one step")
		last = pos
	}

	final, _ := env.engine.Case(ctx, c.ID)
	assert.Equal(t, store.StageApproved, final.Stage)
	assert.NotNil(t, final.ClosedAt)
	assert.Equal(t, 4, countEvents(env.events(t, c.ID), store.EventStageChanged))

	_, err := env.engine.Transition(ctx, c.ID, ActionApprove, "more", env.actor(t, "root"))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTransition_EmptyCommentRejectedBeforeMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)
	before := env.events(t, c.ID)

	for _, comment := range []string{"", "   \n\t"} {
		_, err := env.engine.Transition(ctx, c.ID, ActionReject, comment, env.actor(t, "alice"))
		assert.ErrorIs(t, err, ErrEmptyComment)
	}
	assert.Equal(t, before, env.events(t, c.ID))
	stored, _ := env.engine.Case(ctx, c.ID)
	assert.Equal(t, "KYC_ANALYST", stored.Stage)
}

func TestTransition_Authorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)

	// Wrong role for the stage.
	_, err := env.engine.Transition(ctx, c.ID, ActionReject, "no", env.actor(t, "rita"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The current assignee may act even without the stage role.
	_, err = env.engine.Assign(ctx, c.ID, "rita", env.actor(t, "root"))
	require.NoError(t, err)
	got, err := env.engine.Transition(ctx, c.ID, ActionApprove, "covered for analyst", env.actor(t, "rita"))
	require.NoError(t, err)
	assert.Equal(t, "KYC_REVIEWER", got.Stage)

	// Admin override.
	got, err = env.engine.Transition(ctx, c.ID, ActionApprove, "override", env.actor(t, "root"))
	require.NoError(t, err)
	assert.Equal(t, "AFC_REVIEWER", got.Stage)
}

func TestTransition_PreconditionOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Transition(ctx, 999, "BOGUS", "", env.actor(t, "rita"))
	assert.ErrorIs(t, err, ErrNotFound)

	c := env.newCase(t, 1)
	_, err = env.engine.Transition(ctx, c.ID, "BOGUS", "", env.actor(t, "rita"))
	assert.ErrorIs(t, err, ErrUnauthorized, "authorization before comment and action")

	_, err = env.engine.Transition(ctx, c.ID, "BOGUS", "", env.actor(t, "alice"))
	assert.ErrorIs(t, err, ErrEmptyComment, "comment before action")

	_, err = env.engine.Transition(ctx, c.ID, "BOGUS", "hmm", env.actor(t, "alice"))
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = env.engine.Transition(ctx, c.ID, ActionReject, "done", env.actor(t, "alice"))
	require.NoError(t, err)
	_, err = env.engine.Transition(ctx, c.ID, ActionReject, "", env.actor(t, "rita"))
	assert.ErrorIs(t, err, ErrInvalidState, "terminal state before authorization")
}

// failingQuestionnaire simulates an unreachable questionnaire provider.
type failingQuestionnaire struct{}

func (failingQuestionnaire) Template(context.Context, string) ([]store.Question, error) {
	return nil, errors.New("connection refused")
}

func (failingQuestionnaire) Answers(context.Context, int64) (map[int64]store.AnswerSet, error) {
	return nil, errors.New("connection refused")
}

func TestTransition_QuestionnaireFailureFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)

	e := NewEngine(EngineConfig{Store: env.store, Directory: testUsers, Questionnaire: failingQuestionnaire{}})
	_, err := e.Transition(ctx, c.ID, ActionApprove, "ok", env.actor(t, "alice"))
	require.ErrorIs(t, err, ErrDependency)
	assert.Equal(t, KindDependency, KindOf(err))

	stored, _ := e.Case(ctx, c.ID)
	assert.Equal(t, "KYC_ANALYST", stored.Stage)

	// Rejection does not consult the questionnaire.
	_, err = e.Transition(ctx, c.ID, ActionReject, "no", env.actor(t, "alice"))
	assert.NoError(t, err)
}

func TestTransition_ConcurrentOnlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)

	actors := []Actor{env.actor(t, "alice"), env.actor(t, "anna")}

	var wg sync.WaitGroup
	errs := make([]error, len(actors))
	for i, a := range actors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.engine.Transition(ctx, c.ID, ActionApprove, "ok", a)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		// The loser sees the case already in the reviewer stage.
		assert.True(t, errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidState), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	stored, _ := env.engine.Case(ctx, c.ID)
	assert.Equal(t, "KYC_REVIEWER", stored.Stage)
	assert.Equal(t, 1, countEvents(env.events(t, c.ID), store.EventStageChanged))
}

func TestAddNoteAndAttachDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)
	rita := env.actor(t, "rita")

	_, err := env.engine.AddNote(ctx, c.ID, " ", rita)
	assert.ErrorIs(t, err, ErrEmptyComment)

	note, err := env.engine.AddNote(ctx, c.ID, "called the client", rita)
	require.NoError(t, err)
	assert.NotZero(t, note.ID)

	_, err = env.engine.AttachDocument(ctx, c.ID, DocumentInput{Name: "passport.pdf"}, rita)
	assert.ErrorIs(t, err, ErrEmptyField)

	doc, err := env.engine.AttachDocument(ctx, c.ID, DocumentInput{Name: "passport.pdf", Category: "ID"}, rita)
	require.NoError(t, err)
	assert.Equal(t, "rita", doc.UploadedBy)

	docs, err := env.engine.Documents(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	events := env.events(t, c.ID)
	assert.Equal(t, 1, countEvents(events, store.EventNoteAdded))
	assert.Equal(t, 1, countEvents(events, store.EventDocUploaded))

	_, err = env.engine.History(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	// Any user may comment on an open case; closed cases take no more notes.
	_, err = env.engine.Transition(ctx, c.ID, ActionReject, "duplicate", env.actor(t, "root"))
	require.NoError(t, err)
	_, err = env.engine.AddNote(ctx, c.ID, "late remark", rita)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, countEvents(env.events(t, c.ID), store.EventNoteAdded))
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newCase(t, 1)

	// An empty template is valid.
	res, err := env.engine.Validate(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	q := env.mandatory(t, "Identity", "Full legal name", 1, 1)
	res, err = env.engine.Validate(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Full legal name"}, res.Missing)

	env.answer(t, c.ID, q, "Jane")
	// Answers to unknown questions are ignored.
	require.NoError(t, env.store.SaveAnswer(ctx, &store.Answer{CaseID: c.ID, QuestionID: 999, Values: store.NewAnswerSet("x")}))
	res, err = env.engine.Validate(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}
