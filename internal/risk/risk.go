// Package risk records client risk assessments produced by an external
// scoring engine. Scoring itself happens elsewhere.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/venus-kyc/caseflow/internal/store"
)

// Pillars are the risk types a detail row may belong to.
var Pillars = []string{"Entity", "Industry", "Geo", "Product", "Channel"}

// Levels are the accepted overall risk levels.
var Levels = []string{"LOW", "MEDIUM", "HIGH"}

// ErrInvalid marks an assessment that failed input checks.
var ErrInvalid = errors.New("invalid risk assessment")

// Publisher receives committed case events.
type Publisher interface {
	CaseEvent(ctx context.Context, e store.Event) error
}

// Service stores assessments and flags affected cases.
type Service struct {
	store     *store.Store
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

// NewService creates a risk service. publisher and logger may be nil.
func NewService(st *store.Store, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		publisher: publisher,
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record stores an assessment and appends RISK_CHANGED to every open case
// of the client, all in one transaction.
func (s *Service) Record(ctx context.Context, a *store.RiskAssessment, actor string) error {
	if err := validate(a); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	prev, err := s.store.LatestRiskAssessment(ctx, a.ClientID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load previous assessment: %w", err)
	}
	desc := fmt.Sprintf("Risk level set to %s (score %d)", a.OverallLevel, a.OverallScore)
	if prev != nil {
		desc = fmt.Sprintf("Risk level changed from %s to %s (score %d)", prev.OverallLevel, a.OverallLevel, a.OverallScore)
	}

	var events []store.Event
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.AddRiskAssessment(ctx, a); err != nil {
			return err
		}
		cases, err := tx.ListOpenCasesBySubject(ctx, a.ClientID)
		if err != nil {
			return err
		}
		for _, c := range cases {
			ev := store.Event{CaseID: c.ID, Type: store.EventRiskChanged, Description: desc, Source: actor, Timestamp: a.CreatedAt}
			if err := tx.AddEvent(ctx, &ev); err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record risk assessment: %w", err)
	}

	s.log.Info("risk assessment recorded", "client", a.ClientID, "level", a.OverallLevel, "cases", len(events))
	if s.publisher != nil {
		for _, ev := range events {
			if err := s.publisher.CaseEvent(ctx, ev); err != nil {
				s.log.Warn("publish risk event failed", "case", ev.CaseID, "err", err)
			}
		}
	}
	return nil
}

// Latest returns the client's most recent assessment, or nil if none.
func (s *Service) Latest(ctx context.Context, clientID int64) (*store.RiskAssessment, error) {
	a, err := s.store.LatestRiskAssessment(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return a, err
}

func validate(a *store.RiskAssessment) error {
	if a.ClientID <= 0 {
		return fmt.Errorf("%w: client id is required", ErrInvalid)
	}
	if a.OverallScore < 0 {
		return fmt.Errorf("%w: negative score %d", ErrInvalid, a.OverallScore)
	}
	a.OverallLevel = strings.ToUpper(strings.TrimSpace(a.OverallLevel))
	if !contains(Levels, a.OverallLevel) {
		return fmt.Errorf("%w: level must be one of %s, got %q", ErrInvalid, strings.Join(Levels, ", "), a.OverallLevel)
	}
	for _, d := range a.Details {
		if !contains(Pillars, d.RiskType) {
			return fmt.Errorf("%w: unknown risk type %q", ErrInvalid, d.RiskType)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
