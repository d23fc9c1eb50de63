package screening

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// SimulatedProvider stands in for a real watch-list vendor. Each context
// of each request is a HIT with probability HitRate. Findings are derived
// from the request ID and Seed, so they are stable across calls and
// processes.
type SimulatedProvider struct {
	HitRate float64
	Seed    int64

	mu    sync.Mutex
	cache map[string]map[Context]Finding
}

// NewSimulatedProvider returns a provider with a 30% hit rate.
func NewSimulatedProvider(seed int64) *SimulatedProvider {
	return &SimulatedProvider{HitRate: 0.3, Seed: seed}
}

// Initiate returns a fresh request ID.
func (p *SimulatedProvider) Initiate(_ context.Context, _ int64) (string, error) {
	return uuid.NewString(), nil
}

// Status returns the findings for a request.
func (p *SimulatedProvider) Status(_ context.Context, requestID string) (map[Context]Finding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.cache[requestID]; ok {
		return f, nil
	}

	h := fnv.New64a()
	h.Write([]byte(requestID))
	rng := rand.New(rand.NewSource(p.Seed ^ int64(h.Sum64())))

	findings := make(map[Context]Finding, len(Contexts))
	for _, c := range Contexts {
		f := Finding{Status: StatusNoHit}
		if rng.Float64() < p.HitRate {
			f = Finding{
				Status:       StatusHit,
				AlertMessage: fmt.Sprintf("%s match found in watch list", c),
				AlertID:      fmt.Sprintf("ALT-%03d", rng.Intn(1000)),
			}
		}
		findings[c] = f
	}

	if p.cache == nil {
		p.cache = make(map[string]map[Context]Finding)
	}
	p.cache[requestID] = findings
	return findings, nil
}
