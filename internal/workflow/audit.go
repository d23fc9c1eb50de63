package workflow

import (
	"context"
	"fmt"

	"github.com/venus-kyc/caseflow/internal/store"
)

// History returns the audit events of a case in append order.
func (e *Engine) History(ctx context.Context, caseID int64) ([]store.Event, error) {
	if _, err := e.loadCase(ctx, caseID); err != nil {
		return nil, err
	}
	events, err := e.store.GetEvents(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("case history: %w", err)
	}
	return events, nil
}

// Comments returns the comment thread of a case, oldest first.
func (e *Engine) Comments(ctx context.Context, caseID int64) ([]store.Comment, error) {
	if _, err := e.loadCase(ctx, caseID); err != nil {
		return nil, err
	}
	comments, err := e.store.GetComments(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("case comments: %w", err)
	}
	return comments, nil
}

// Documents returns the documents attached to a case.
func (e *Engine) Documents(ctx context.Context, caseID int64) ([]store.Document, error) {
	if _, err := e.loadCase(ctx, caseID); err != nil {
		return nil, err
	}
	docs, err := e.store.GetDocuments(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("case documents: %w", err)
	}
	return docs, nil
}
