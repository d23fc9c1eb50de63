package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/venus-kyc/caseflow/internal/screening"
	"github.com/venus-kyc/caseflow/internal/store"
)

type fakeLister struct {
	ids []string
	err error
}

func (f fakeLister) ScreeningRequestIDs(context.Context, string) ([]string, error) {
	return f.ids, f.err
}

// slowRefresher tracks how many refreshes run at once.
type slowRefresher struct {
	running atomic.Int32
	peak    atomic.Int32
	fail    map[string]bool
}

func (r *slowRefresher) Refresh(_ context.Context, id string) (*store.ScreeningRequest, error) {
	n := r.running.Add(1)
	defer r.running.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	if r.fail[id] {
		return nil, errors.New("provider timeout")
	}
	return &store.ScreeningRequest{
		ID:      id,
		Status:  screening.RequestCompleted,
		Results: []store.ScreeningResult{{Context: "SAN", Status: string(screening.StatusHit)}},
	}, nil
}

func TestNewPool_Defaults(t *testing.T) {
	p := NewPool(PoolConfig{})
	if p.maxWorkers != DefaultWorkers {
		t.Errorf("expected %d workers, got %d", DefaultWorkers, p.maxWorkers)
	}
	if p.log == nil {
		t.Error("expected a default logger")
	}
}

func TestSweep_BoundedAndOrdered(t *testing.T) {
	ref := &slowRefresher{fail: map[string]bool{"r3": true}}
	p := NewPool(PoolConfig{
		Refresher:  ref,
		Lister:     fakeLister{ids: []string{"r1", "r2", "r3", "r4", "r5", "r6"}},
		MaxWorkers: 2,
	})

	results, err := p.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	for i, r := range results {
		want := []string{"r1", "r2", "r3", "r4", "r5", "r6"}[i]
		if r.RequestID != want {
			t.Errorf("result %d: expected %s, got %s", i, want, r.RequestID)
		}
	}
	if results[2].Err == nil || results[2].Status != "" {
		t.Errorf("r3: expected failure, got %+v", results[2])
	}
	if results[0].Status != screening.RequestCompleted || results[0].Hits != 1 {
		t.Errorf("r1: unexpected result %+v", results[0])
	}
	if peak := ref.peak.Load(); peak > 2 {
		t.Errorf("expected at most 2 concurrent refreshes, saw %d", peak)
	}
}

func TestSweep_ListError(t *testing.T) {
	p := NewPool(PoolConfig{Lister: fakeLister{err: errors.New("db locked")}})
	if _, err := p.Sweep(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
}

func TestSweep_SkipsWhileRunning(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	ref := refresherFunc(func(ctx context.Context, id string) (*store.ScreeningRequest, error) {
		once.Do(func() { close(started) })
		<-block
		return &store.ScreeningRequest{ID: id, Status: screening.RequestInProgress}, nil
	})
	p := NewPool(PoolConfig{Refresher: ref, Lister: fakeLister{ids: []string{"a"}}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Sweep(context.Background())
	}()
	<-started

	results, err := p.Sweep(context.Background())
	if err != nil || results != nil {
		t.Errorf("overlapping sweep should be skipped, got %v, %v", results, err)
	}
	close(block)
	<-done
}

type refresherFunc func(ctx context.Context, id string) (*store.ScreeningRequest, error)

func (f refresherFunc) Refresh(ctx context.Context, id string) (*store.ScreeningRequest, error) {
	return f(ctx, id)
}

// TestSweep_CompletesStoredRequests runs a sweep against a real store and
// the simulated provider.
func TestSweep_CompletesStoredRequests(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "sweep.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	svc := screening.NewService(s, screening.NewSimulatedProvider(3), nil, nil)
	for subject := int64(1); subject <= 3; subject++ {
		if _, err := svc.Start(ctx, subject, "analyst"); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}

	p := NewPool(PoolConfig{Refresher: svc, Lister: s, MaxWorkers: 2})
	results, err := p.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil || r.Status != screening.RequestCompleted {
			t.Errorf("unexpected result %+v", r)
		}
	}

	pending, err := s.ScreeningRequestIDs(ctx, screening.RequestInProgress)
	if err != nil {
		t.Fatalf("ScreeningRequestIDs: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected nothing pending after sweep, got %v", pending)
	}
}
