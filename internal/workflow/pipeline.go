package workflow

import (
	"errors"
	"fmt"

	"github.com/venus-kyc/caseflow/internal/store"
)

// Stage is a pipeline node bound to the role that may act on it.
type Stage struct {
	Name string
	Role Role
}

// Pipeline is the ordered list of review stages. APPROVED follows the last
// stage; REJECTED is reachable from any of them.
type Pipeline struct {
	stages []Stage
	index  map[string]int
}

// NewPipeline validates and builds a pipeline.
func NewPipeline(stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, errors.New("pipeline: at least one stage is required")
	}
	p := &Pipeline{index: make(map[string]int, len(stages))}
	for i, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("pipeline: stage %d has no name", i+1)
		}
		if s.Name == store.StageApproved || s.Name == store.StageRejected {
			return nil, fmt.Errorf("pipeline: %s is a terminal stage and cannot be configured", s.Name)
		}
		if _, err := ParseRole(string(s.Role)); err != nil {
			return nil, fmt.Errorf("pipeline: stage %s: %w", s.Name, err)
		}
		if _, dup := p.index[s.Name]; dup {
			return nil, fmt.Errorf("pipeline: duplicate stage %s", s.Name)
		}
		p.index[s.Name] = i
		p.stages = append(p.stages, s)
	}
	return p, nil
}

// DefaultPipeline is the four-step KYC review chain.
func DefaultPipeline() *Pipeline {
	p, _ := NewPipeline(
		Stage{Name: "KYC_ANALYST", Role: RoleKYCAnalyst},
		Stage{Name: "KYC_REVIEWER", Role: RoleKYCReviewer},
		Stage{Name: "AFC_REVIEWER", Role: RoleAFCReviewer},
		Stage{Name: "ACO_REVIEWER", Role: RoleACOReviewer},
	)
	return p
}

// First returns the entry stage for new cases.
func (p *Pipeline) First() Stage {
	return p.stages[0]
}

// Stages returns a copy of the configured stages in order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// RoleFor returns the role bound to a stage. Terminal and unknown stages
// have no role.
func (p *Pipeline) RoleFor(stage string) (Role, bool) {
	i, ok := p.index[stage]
	if !ok {
		return "", false
	}
	return p.stages[i].Role, true
}

// Next returns the stage after the given one, or APPROVED after the last.
func (p *Pipeline) Next(stage string) (string, error) {
	i, ok := p.index[stage]
	if !ok {
		return "", fmt.Errorf("stage %s is not in the pipeline", stage)
	}
	if i == len(p.stages)-1 {
		return store.StageApproved, nil
	}
	return p.stages[i+1].Name, nil
}

// Position returns the 0-based index of a stage, len(stages) for APPROVED
// and -1 for REJECTED or unknown values.
func (p *Pipeline) Position(stage string) int {
	if stage == store.StageApproved {
		return len(p.stages)
	}
	if i, ok := p.index[stage]; ok {
		return i
	}
	return -1
}
