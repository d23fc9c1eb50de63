// Package workflow is the case-management core: the stage machine, the
// assignment resolver, the validation gate, the task queue and the ad-hoc
// task service. Every mutation runs in one store transaction and appends
// to the audit log before it commits.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/venus-kyc/caseflow/internal/store"
)

// Questionnaire supplies the template questions and recorded answers the
// validation gate checks.
type Questionnaire interface {
	Template(ctx context.Context, name string) ([]store.Question, error)
	Answers(ctx context.Context, caseID int64) (map[int64]store.AnswerSet, error)
}

// Directory resolves user names to roles.
type Directory interface {
	Lookup(username string) (User, bool)
	UsersByRole(role Role) []User
	Users() []User
}

// Notifier receives committed audit events and ad-hoc activity. Failures
// are logged and never undo the committed change.
type Notifier interface {
	CaseEvent(ctx context.Context, e store.Event) error
	AdHocActivity(ctx context.Context, task store.AdHocTask, a store.Activity) error
}

// Observer records operation outcomes. The outcome label is "ok" or the
// error code.
type Observer interface {
	ObserveTransition(action Action, outcome string)
	ObserveAssignment(outcome string)
	ObserveAdHoc(op, outcome string)
}

// Engine exposes the workflow operations.
type Engine struct {
	store     *store.Store
	pipeline  *Pipeline
	questions Questionnaire
	gate      *ValidationGate
	dir       Directory
	notifier  Notifier
	observer  Observer
	log       *slog.Logger
	now       func() time.Time
	newID     func() string

	caseLocks keyedMutex[int64]
	taskLocks keyedMutex[string]
}

// EngineConfig holds the collaborators for NewEngine. Store and Directory
// are required; the rest have defaults.
type EngineConfig struct {
	Store         *store.Store
	Pipeline      *Pipeline     // Default: DefaultPipeline().
	Questionnaire Questionnaire // Default: Store.
	Directory     Directory
	Notifier      Notifier
	Observer      Observer
	Logger        *slog.Logger     // Default: slog.Default().
	Clock         func() time.Time // Default: time.Now in UTC.
	NewID         func() string    // Default: uuid.NewString.
}

// NewEngine creates a workflow engine.
func NewEngine(ec EngineConfig) *Engine {
	e := &Engine{
		store:     ec.Store,
		pipeline:  ec.Pipeline,
		questions: ec.Questionnaire,
		dir:       ec.Directory,
		notifier:  ec.Notifier,
		observer:  ec.Observer,
		log:       ec.Logger,
		now:       ec.Clock,
		newID:     ec.NewID,
	}
	if e.pipeline == nil {
		e.pipeline = DefaultPipeline()
	}
	if e.questions == nil {
		e.questions = ec.Store
	}
	e.gate = NewValidationGate(e.questions)
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Pipeline returns the configured pipeline.
func (e *Engine) Pipeline() *Pipeline { return e.pipeline }

// ResolveActor looks a user up in the directory and resolves its
// capabilities. Unknown users are unauthorized.
func (e *Engine) ResolveActor(username string) (Actor, error) {
	if username == "" {
		return Actor{}, newError(ErrUnauthorized, "no user given")
	}
	u, ok := e.dir.Lookup(username)
	if !ok {
		return Actor{}, newError(ErrUnauthorized, "unknown user %q", username)
	}
	return NewActor(u.Username, u.Role), nil
}

// publish hands committed events to the notifier.
func (e *Engine) publish(ctx context.Context, events ...store.Event) {
	if e.notifier == nil {
		return
	}
	for _, ev := range events {
		if err := e.notifier.CaseEvent(ctx, ev); err != nil {
			e.log.Warn("publish case event failed", "case", ev.CaseID, "type", ev.Type, "err", err)
		}
	}
}

func (e *Engine) publishActivity(ctx context.Context, task *store.AdHocTask, a store.Activity) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.AdHocActivity(ctx, *task, a); err != nil {
		e.log.Warn("publish adhoc activity failed", "task", task.ID, "err", err)
	}
}

func (e *Engine) observeTransition(action Action, err error) {
	if e.observer != nil {
		e.observer.ObserveTransition(action, outcome(err))
	}
}

func (e *Engine) observeAssignment(err error) {
	if e.observer != nil {
		e.observer.ObserveAssignment(outcome(err))
	}
}

func (e *Engine) observeAdHoc(op string, err error) {
	if e.observer != nil {
		e.observer.ObserveAdHoc(op, outcome(err))
	}
}
