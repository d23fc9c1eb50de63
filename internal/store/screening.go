package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// saveScreeningRequest inserts a request together with its initial results.
func (s *Store) saveScreeningRequest(ctx context.Context, r *ScreeningRequest) error {
	return s.InTx(ctx, func(tx *Tx) error {
		return tx.AddScreeningRequest(ctx, r)
	})
}

// AddScreeningRequest inserts a request and its initial results inside an
// open transaction.
func (t *Tx) AddScreeningRequest(ctx context.Context, r *ScreeningRequest) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO screening_requests (id, subject_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.SubjectID, r.Status, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert screening request: %w", err)
	}
	return t.putResults(ctx, r.ID, r.Results)
}

// UpdateScreeningResults replaces a request's results and status.
func (s *Store) UpdateScreeningResults(ctx context.Context, id, status string, results []ScreeningResult, now time.Time) error {
	return s.InTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx,
			`UPDATE screening_requests SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
		if err != nil {
			return fmt.Errorf("update screening request: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("screening request %s: %w", id, ErrNotFound)
		}
		return tx.putResults(ctx, id, results)
	})
}

func (t *Tx) putResults(ctx context.Context, id string, results []ScreeningResult) error {
	for _, r := range results {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO screening_results (request_id, context, status, alert_message, alert_id)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(request_id, context) DO UPDATE SET
			   status = excluded.status,
			   alert_message = excluded.alert_message,
			   alert_id = excluded.alert_id`,
			id, r.Context, r.Status, r.AlertMessage, r.AlertID,
		)
		if err != nil {
			return fmt.Errorf("save screening result: %w", err)
		}
	}
	return nil
}

// GetScreeningRequest returns a request with its results, or ErrNotFound.
func (s *Store) GetScreeningRequest(ctx context.Context, id string) (*ScreeningRequest, error) {
	var r ScreeningRequest
	err := s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, status, created_at, updated_at FROM screening_requests WHERE id = ?`, id,
	).Scan(&r.ID, &r.SubjectID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("screening request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get screening request: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT context, status, alert_message, alert_id FROM screening_results WHERE request_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("get screening results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var res ScreeningResult
		if err := rows.Scan(&res.Context, &res.Status, &res.AlertMessage, &res.AlertID); err != nil {
			return nil, fmt.Errorf("scan screening result: %w", err)
		}
		r.Results = append(r.Results, res)
	}
	return &r, rows.Err()
}

// ListScreeningRequests returns a subject's screening history, newest first,
// without results.
func (s *Store) ListScreeningRequests(ctx context.Context, subjectID int64) ([]ScreeningRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, status, created_at, updated_at FROM screening_requests
		 WHERE subject_id = ? ORDER BY created_at DESC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list screening requests: %w", err)
	}
	defer rows.Close()

	var out []ScreeningRequest
	for rows.Next() {
		var r ScreeningRequest
		if err := rows.Scan(&r.ID, &r.SubjectID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan screening request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ScreeningRequestIDs returns the IDs of requests in the given status,
// oldest first.
func (s *Store) ScreeningRequestIDs(ctx context.Context, status string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM screening_requests WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("list screening requests by status: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan screening request id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
