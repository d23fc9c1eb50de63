// Package screening runs watch-list screening for case subjects. Results
// are pulled from a Provider on request; nothing polls in the background.
package screening

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/venus-kyc/caseflow/internal/store"
)

// Context is one of the fixed watch-list categories.
type Context string

const (
	ContextPEP Context = "PEP" // Politically exposed persons.
	ContextADM Context = "ADM" // Adverse media.
	ContextINT Context = "INT" // Internal lists.
	ContextSAN Context = "SAN" // Sanctions.
)

// Contexts lists every screening context in report order.
var Contexts = []Context{ContextPEP, ContextADM, ContextINT, ContextSAN}

// Status is the state of one context.
type Status string

const (
	StatusNotRun     Status = "NOT_RUN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusHit        Status = "HIT"
	StatusNoHit      Status = "NO_HIT"
)

// Request statuses.
const (
	RequestInProgress = "IN_PROGRESS"
	RequestCompleted  = "COMPLETED"
)

// Finding is a provider's answer for one context.
type Finding struct {
	Status       Status
	AlertMessage string
	AlertID      string
}

// Provider is the external screening system.
type Provider interface {
	// Initiate submits a subject and returns the provider's request ID.
	Initiate(ctx context.Context, subjectID int64) (string, error)
	// Status returns the current findings for a request. Contexts missing
	// from the map are still in progress.
	Status(ctx context.Context, requestID string) (map[Context]Finding, error)
}

// Publisher receives committed case events.
type Publisher interface {
	CaseEvent(ctx context.Context, e store.Event) error
}

var (
	// ErrUnknownRequest is returned for request IDs that were never started.
	ErrUnknownRequest = errors.New("unknown screening request")
	// ErrInvalidSubject is returned for a missing or non-positive subject ID.
	ErrInvalidSubject = errors.New("invalid screening subject")
	// ErrProvider wraps failures of the external screening system.
	ErrProvider = errors.New("screening provider failed")
)

// Service records screening requests and their results.
type Service struct {
	store     *store.Store
	provider  Provider
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

// NewService creates a screening service. publisher and logger may be nil.
func NewService(st *store.Store, p Provider, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		provider:  p,
		publisher: publisher,
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start submits a subject for screening. Every context starts IN_PROGRESS
// and each of the subject's open cases gets a SCREENING_STARTED event.
func (s *Service) Start(ctx context.Context, subjectID int64, actor string) (*store.ScreeningRequest, error) {
	if subjectID <= 0 {
		return nil, fmt.Errorf("%w: subject id %d", ErrInvalidSubject, subjectID)
	}
	id, err := s.provider.Initiate(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: initiate: %w", ErrProvider, err)
	}

	now := s.now()
	req := &store.ScreeningRequest{
		ID:        id,
		SubjectID: subjectID,
		Status:    RequestInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, c := range Contexts {
		req.Results = append(req.Results, store.ScreeningResult{Context: string(c), Status: string(StatusInProgress)})
	}

	var events []store.Event
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.AddScreeningRequest(ctx, req); err != nil {
			return err
		}
		cases, err := tx.ListOpenCasesBySubject(ctx, subjectID)
		if err != nil {
			return err
		}
		for _, c := range cases {
			ev := store.Event{
				CaseID:      c.ID,
				Type:        store.EventScreeningStarted,
				Description: fmt.Sprintf("Screening %s started", id),
				Source:      actor,
				Timestamp:   now,
			}
			if err := tx.AddEvent(ctx, &ev); err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save screening request: %w", err)
	}

	s.log.Info("screening started", "request", id, "subject", subjectID, "cases", len(events))
	s.publish(ctx, events)
	return req, nil
}

// Refresh pulls the provider's current findings and stores them. Once no
// context is in progress the request is COMPLETED and further refreshes
// return the stored results without calling the provider.
func (s *Service) Refresh(ctx context.Context, requestID string) (*store.ScreeningRequest, error) {
	req, err := s.store.GetScreeningRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	if err != nil {
		return nil, err
	}
	if req.Status == RequestCompleted {
		return req, nil
	}

	findings, err := s.provider.Status(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: status of %s: %w", ErrProvider, requestID, err)
	}

	results := make([]store.ScreeningResult, 0, len(Contexts))
	pending := false
	for _, c := range Contexts {
		f, ok := findings[c]
		if !ok || f.Status == StatusInProgress || f.Status == "" {
			pending = true
			f = Finding{Status: StatusInProgress}
		}
		results = append(results, store.ScreeningResult{
			Context:      string(c),
			Status:       string(f.Status),
			AlertMessage: f.AlertMessage,
			AlertID:      f.AlertID,
		})
	}
	status := RequestCompleted
	if pending {
		status = RequestInProgress
	}

	if err := s.store.UpdateScreeningResults(ctx, requestID, status, results, s.now()); err != nil {
		return nil, err
	}
	s.log.Info("screening refreshed", "request", requestID, "status", status, "hits", len(Hits(results)))
	return s.store.GetScreeningRequest(ctx, requestID)
}

// Get returns a stored request without contacting the provider.
func (s *Service) Get(ctx context.Context, requestID string) (*store.ScreeningRequest, error) {
	req, err := s.store.GetScreeningRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	return req, err
}

// History lists a subject's screening requests, newest first.
func (s *Service) History(ctx context.Context, subjectID int64) ([]store.ScreeningRequest, error) {
	return s.store.ListScreeningRequests(ctx, subjectID)
}

// Hits returns the contexts with a HIT.
func Hits(results []store.ScreeningResult) []store.ScreeningResult {
	var hits []store.ScreeningResult
	for _, r := range results {
		if r.Status == string(StatusHit) {
			hits = append(hits, r)
		}
	}
	return hits
}

func (s *Service) publish(ctx context.Context, events []store.Event) {
	if s.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := s.publisher.CaseEvent(ctx, ev); err != nil {
			s.log.Warn("publish screening event failed", "case", ev.CaseID, "err", err)
		}
	}
}
