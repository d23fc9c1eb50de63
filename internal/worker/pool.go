// Package worker refreshes pending screening requests in the background.
// A sweep lists every request still in progress and refreshes them on a
// bounded pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/venus-kyc/caseflow/internal/screening"
	"github.com/venus-kyc/caseflow/internal/store"
)

// DefaultWorkers is used when PoolConfig.MaxWorkers is not positive.
const DefaultWorkers = 4

// Result holds the outcome of refreshing one request.
type Result struct {
	RequestID string
	Status    string // Request status after the refresh; empty on error.
	Hits      int
	Duration  time.Duration
	Err       error
}

// Refresher pulls fresh results for a request.
type Refresher interface {
	Refresh(ctx context.Context, requestID string) (*store.ScreeningRequest, error)
}

// Lister finds requests by status.
type Lister interface {
	ScreeningRequestIDs(ctx context.Context, status string) ([]string, error)
}

// Pool runs sweeps.
type Pool struct {
	refresher  Refresher
	lister     Lister
	maxWorkers int
	log        *slog.Logger

	mu       sync.Mutex
	sweeping bool
}

// PoolConfig holds configuration for creating a pool.
type PoolConfig struct {
	Refresher  Refresher
	Lister     Lister
	MaxWorkers int
	Logger     *slog.Logger
}

// NewPool creates a new pool.
func NewPool(pc PoolConfig) *Pool {
	if pc.MaxWorkers <= 0 {
		pc.MaxWorkers = DefaultWorkers
	}
	if pc.Logger == nil {
		pc.Logger = slog.Default()
	}
	return &Pool{
		refresher:  pc.Refresher,
		lister:     pc.Lister,
		maxWorkers: pc.MaxWorkers,
		log:        pc.Logger,
	}
}

// Sweep refreshes every in-progress request once. Results are in listing
// order. A failed refresh is reported in its Result and does not stop the
// sweep. Overlapping sweeps are skipped and return nil.
func (p *Pool) Sweep(ctx context.Context) ([]Result, error) {
	p.mu.Lock()
	if p.sweeping {
		p.mu.Unlock()
		return nil, nil
	}
	p.sweeping = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.sweeping = false
		p.mu.Unlock()
	}()

	ids, err := p.lister.ScreeningRequestIDs(ctx, screening.RequestInProgress)
	if err != nil {
		return nil, fmt.Errorf("list pending screenings: %w", err)
	}

	results := make([]Result, len(ids))
	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup

	for i, id := range ids {
		select {
		case sem <- struct{}{}: // Acquire worker slot.
		case <-ctx.Done():
			results[i] = Result{RequestID: id, Err: ctx.Err()}
			continue
		}
		wg.Add(1)
		go func(idx int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = p.refresh(ctx, id)
		}(i, id)
	}
	wg.Wait()

	done := 0
	for _, r := range results {
		if r.Status == screening.RequestCompleted {
			done++
		}
	}
	if len(ids) > 0 {
		p.log.Info("screening sweep finished", "pending", len(ids), "completed", done)
	}
	return results, nil
}

func (p *Pool) refresh(ctx context.Context, id string) Result {
	start := time.Now()
	req, err := p.refresher.Refresh(ctx, id)
	r := Result{RequestID: id, Duration: time.Since(start), Err: err}
	if err != nil {
		p.log.Warn("screening refresh failed", "request", id, "err", err)
		return r
	}
	r.Status = req.Status
	r.Hits = len(screening.Hits(req.Results))
	return r
}

// Run sweeps every interval until ctx is done.
func (p *Pool) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Sweep(ctx); err != nil {
				p.log.Error("screening sweep failed", "err", err)
			}
		}
	}
}
