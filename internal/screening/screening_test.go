package screening

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venus-kyc/caseflow/internal/store"
)

// scriptedProvider returns canned findings.
type scriptedProvider struct {
	id       string
	findings map[Context]Finding
	calls    int
	err      error
}

func (p *scriptedProvider) Initiate(context.Context, int64) (string, error) {
	return p.id, p.err
}

func (p *scriptedProvider) Status(context.Context, string) (map[Context]Finding, error) {
	p.calls++
	return p.findings, p.err
}

type capturePublisher struct{ events []store.Event }

func (c *capturePublisher) CaseEvent(_ context.Context, e store.Event) error {
	c.events = append(c.events, e)
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func openCase(t *testing.T, s *store.Store, subjectID int64) *store.Case {
	t.Helper()
	var c *store.Case
	err := s.InTx(context.Background(), func(tx *store.Tx) error {
		var err error
		c, err = tx.CreateCase(context.Background(), subjectID, "", "", "KYC_ANALYST", nowUTC())
		return err
	})
	require.NoError(t, err)
	return c
}

func TestStart_InitialisesAllContexts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	c := openCase(t, s, 5)
	openCase(t, s, 6)
	pub := &capturePublisher{}

	svc := NewService(s, &scriptedProvider{id: "req-1"}, pub, nil)
	req, err := svc.Start(ctx, 5, "alice")
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, RequestInProgress, req.Status)
	require.Len(t, req.Results, len(Contexts))
	for _, r := range req.Results {
		assert.Equal(t, string(StatusInProgress), r.Status)
	}

	events, err := s.GetEvents(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, store.EventScreeningStarted, events[0].Type)
	assert.Len(t, pub.events, 1, "only the subject's case is notified")

	_, err = svc.Start(ctx, 0, "alice")
	assert.Error(t, err)
}

func TestRefresh_CompletesAndStops(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := &scriptedProvider{id: "req-2", findings: map[Context]Finding{
		ContextPEP: {Status: StatusHit, AlertMessage: "PEP match", AlertID: "ALT-1"},
		ContextADM: {Status: StatusNoHit},
		ContextINT: {Status: StatusNoHit},
	}}
	svc := NewService(s, p, nil, nil)

	_, err := svc.Start(ctx, 9, "alice")
	require.NoError(t, err)

	// SAN is still pending.
	req, err := svc.Refresh(ctx, "req-2")
	require.NoError(t, err)
	assert.Equal(t, RequestInProgress, req.Status)
	assert.Len(t, Hits(req.Results), 1)

	p.findings[ContextSAN] = Finding{Status: StatusNoHit}
	req, err = svc.Refresh(ctx, "req-2")
	require.NoError(t, err)
	assert.Equal(t, RequestCompleted, req.Status)
	assert.Equal(t, 2, p.calls)

	_, err = svc.Refresh(ctx, "req-2")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls, "completed requests are served from the store")

	hist, err := svc.History(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestRefresh_UnknownRequest(t *testing.T) {
	svc := NewService(testStore(t), &scriptedProvider{}, nil, nil)

	_, err := svc.Refresh(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownRequest)
	_, err = svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestStart_ProviderFailure(t *testing.T) {
	s := testStore(t)
	svc := NewService(s, &scriptedProvider{err: errors.New("vendor down")}, nil, nil)

	_, err := svc.Start(context.Background(), 3, "alice")
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorContains(t, err, "vendor down")

	hist, _ := svc.History(context.Background(), 3)
	assert.Empty(t, hist)
}

func TestStart_InvalidSubject(t *testing.T) {
	svc := NewService(testStore(t), &scriptedProvider{id: "req-1"}, nil, nil)

	_, err := svc.Start(context.Background(), 0, "alice")
	assert.ErrorIs(t, err, ErrInvalidSubject)
}

func TestRefresh_ProviderFailure(t *testing.T) {
	s := testStore(t)
	p := &scriptedProvider{id: "req-1"}
	svc := NewService(s, p, nil, nil)
	req, err := svc.Start(context.Background(), 3, "alice")
	require.NoError(t, err)

	p.err = errors.New("timeout")
	_, err = svc.Refresh(context.Background(), req.ID)
	assert.ErrorIs(t, err, ErrProvider)
}

func TestSimulatedProvider_Deterministic(t *testing.T) {
	ctx := context.Background()
	a := NewSimulatedProvider(42)
	b := NewSimulatedProvider(42)

	id, err := a.Initiate(ctx, 1)
	require.NoError(t, err)

	fa, err := a.Status(ctx, id)
	require.NoError(t, err)
	fb, err := b.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
	assert.Len(t, fa, len(Contexts))

	always := &SimulatedProvider{HitRate: 1}
	f, _ := always.Status(ctx, "x")
	for _, c := range Contexts {
		assert.Equal(t, StatusHit, f[c].Status)
		assert.NotEmpty(t, f[c].AlertID)
	}
}
