package dossier

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/venus-kyc/caseflow/internal/config"
	"github.com/venus-kyc/caseflow/internal/risk"
	"github.com/venus-kyc/caseflow/internal/screening"
	"github.com/venus-kyc/caseflow/internal/store"
	"github.com/venus-kyc/caseflow/internal/workflow"
)

type env struct {
	store     *store.Store
	engine    *workflow.Engine
	screening *screening.Service
	risk      *risk.Service
}

func testEnv(t *testing.T) *env {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	provider := screening.NewSimulatedProvider(1)
	provider.HitRate = 1
	return &env{
		store:     s,
		engine:    workflow.NewEngine(workflow.EngineConfig{Store: s, Directory: config.DefaultConfig().Directory()}),
		screening: screening.NewService(s, provider, nil, nil),
		risk:      risk.NewService(s, nil, nil),
	}
}

func (e *env) actor(t *testing.T, name string) workflow.Actor {
	t.Helper()
	a, err := e.engine.ResolveActor(name)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	return a
}

func TestBuild_OpenCase(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()
	analyst := e.actor(t, "analyst")

	q := &store.Question{Section: "Identity", Text: "Occupation", Mandatory: true}
	if err := e.store.AddQuestion(ctx, q); err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	residence := &store.Question{Section: "Identity", Text: "Residence", DisplayOrder: 1}
	if err := e.store.AddQuestion(ctx, residence); err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}

	c, err := e.engine.CreateCase(ctx, 42, "periodic review", analyst)
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if _, err := e.engine.RecordAnswer(ctx, c.ID, residence.ID, []string{"DE"}, analyst); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if _, err := e.engine.AddNote(ctx, c.ID, "Called the client", analyst); err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	b := New(e.engine, e.store, nil, nil)
	doc, err := b.Build(ctx, c.ID)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, want := range []string{
		"# Case #" + strconv.FormatInt(c.ID, 10),
		"Subject: 42",
		"Stage: KYC_ANALYST",
		"periodic review",
		"Missing mandatory answers:\n- Occupation",
		"### Identity",
		"- Occupation *: _unanswered_",
		"- Residence: DE",
		"Called the client",
		store.EventCaseCreated,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("dossier missing %q:\n%s", want, doc)
		}
	}

	if strings.Contains(doc, "## Other cases of subject") {
		t.Errorf("case listed as its own relative:\n%s", doc)
	}

	// Sources left nil are skipped.
	if strings.Contains(doc, "## Screening") || strings.Contains(doc, "## Risk") {
		t.Errorf("unexpected subject sections:\n%s", doc)
	}
}

func TestBuild_SubjectSections(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()

	c, err := e.engine.CreateCase(ctx, 7, "", e.actor(t, "analyst"))
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	req, err := e.screening.Start(ctx, 7, "analyst")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := e.screening.Refresh(ctx, req.ID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	err = e.risk.Record(ctx, &store.RiskAssessment{
		ClientID:     7,
		OverallScore: 80,
		InitialLevel: "MEDIUM",
		OverallLevel: "HIGH",
		Details:      []store.RiskDetail{{RiskType: "Geo", ElementName: "Residence", ElementValue: "IR", Score: 40}},
	}, "scoring")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	other, err := e.engine.CreateCase(ctx, 7, "onboarding", e.actor(t, "analyst"))
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}

	b := New(e.engine, e.store, e.screening, e.risk)
	doc, err := b.Build(ctx, c.ID)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, want := range []string{
		"## Screening\nRequest " + req.ID + ": COMPLETED",
		"- SAN: HIT (ALT-",
		"**HIGH** (score 80, initially MEDIUM)",
		"- Geo / Residence = IR (40)",
		"## Other cases of subject\n- #" + strconv.FormatInt(other.ID, 10) + " KYC_ANALYST",
		store.EventScreeningStarted,
		store.EventRiskChanged,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("dossier missing %q:\n%s", want, doc)
		}
	}
}

func TestBuild_ClosedCase(t *testing.T) {
	e := testEnv(t)
	ctx := context.Background()

	c, err := e.engine.CreateCase(ctx, 3, "", e.actor(t, "analyst"))
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if _, err := e.engine.Transition(ctx, c.ID, workflow.ActionReject, "duplicate", e.actor(t, "admin")); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	doc, err := New(e.engine, e.store, nil, nil).Build(ctx, c.ID)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(doc, "Stage: REJECTED") || !strings.Contains(doc, "## Readiness\nClosed.") {
		t.Errorf("closed case not rendered as closed:\n%s", doc)
	}
	if !strings.Contains(doc, "Closed: ") {
		t.Errorf("missing close time:\n%s", doc)
	}
}

func TestBuild_UnknownCase(t *testing.T) {
	e := testEnv(t)
	_, err := New(e.engine, e.store, nil, nil).Build(context.Background(), 999)
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
