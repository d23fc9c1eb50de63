package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// caseColumns is the standard column list for case queries.
const caseColumns = `id, subject_id, reason, template, stage, assignee, created_at, closed_at`

// CreateCase inserts a case in the given initial stage with no assignee.
func (t *Tx) CreateCase(ctx context.Context, subjectID int64, reason, template, stage string, now time.Time) (*Case, error) {
	if template == "" {
		template = DefaultTemplate
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO cases (subject_id, reason, template, stage, assignee, created_at)
		 VALUES (?, ?, ?, ?, '', ?)`,
		subjectID, reason, template, stage, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert case: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Case{
		ID:        id,
		SubjectID: subjectID,
		Reason:    reason,
		Template:  template,
		Stage:     stage,
		CreatedAt: now,
	}, nil
}

// GetCase returns a single case by ID, or ErrNotFound.
func (s *Store) GetCase(ctx context.Context, id int64) (*Case, error) {
	return getCase(ctx, s.db, id)
}

// GetCase reads a case inside the transaction.
func (t *Tx) GetCase(ctx context.Context, id int64) (*Case, error) {
	return getCase(ctx, t.tx, id)
}

func getCase(ctx context.Context, q querier, id int64) (*Case, error) {
	row := q.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case #%d: %w", id, ErrNotFound)
	}
	return c, err
}

// ListCases returns all cases, optionally filtered by stage.
func (s *Store) ListCases(ctx context.Context, stage string) ([]Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases`
	var args []any
	if stage != "" {
		query += ` WHERE stage = ?`
		args = append(args, stage)
	}
	query += ` ORDER BY id`
	return s.queryCases(ctx, query, args...)
}

// ListOpenCases returns every case that has not reached a terminal stage.
func (s *Store) ListOpenCases(ctx context.Context) ([]Case, error) {
	return s.queryCases(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE stage NOT IN (?, ?) ORDER BY id`,
		StageApproved, StageRejected,
	)
}

// ListCasesBySubject returns a subject's cases, newest first.
func (s *Store) ListCasesBySubject(ctx context.Context, subjectID int64) ([]Case, error) {
	return s.queryCases(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE subject_id = ? ORDER BY created_at DESC, id DESC`,
		subjectID,
	)
}

// ListOpenCasesBySubject is ListCasesBySubject restricted to non-terminal
// cases, read inside the transaction.
func (t *Tx) ListOpenCasesBySubject(ctx context.Context, subjectID int64) ([]Case, error) {
	return queryCases(ctx, t.tx,
		`SELECT `+caseColumns+` FROM cases WHERE subject_id = ? AND stage NOT IN (?, ?) ORDER BY id`,
		subjectID, StageApproved, StageRejected,
	)
}

// CountByStage returns the number of cases per stage value.
func (s *Store) CountByStage(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, COUNT(*) FROM cases GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}

// MoveStage changes a case's stage only if it is still in from, clearing the
// assignee. It reports false when the stage had already moved on.
func (t *Tx) MoveStage(ctx context.Context, id int64, from, to string, closedAt *time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE cases SET stage = ?, assignee = '', closed_at = ? WHERE id = ? AND stage = ?`,
		to, nullTime(closedAt), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("move stage: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// SetAssignee overwrites the case assignee. Empty returns it to the pool.
func (t *Tx) SetAssignee(ctx context.Context, id int64, assignee string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE cases SET assignee = ? WHERE id = ?`, assignee, id)
	if err != nil {
		return fmt.Errorf("set assignee: %w", err)
	}
	return nil
}

func (s *Store) queryCases(ctx context.Context, query string, args ...any) ([]Case, error) {
	return queryCases(ctx, s.db, query, args...)
}

// queryCases is a shared helper for running case-list queries.
func queryCases(ctx context.Context, q querier, query string, args ...any) ([]Case, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	return cases, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*Case, error) {
	var c Case
	var closedAt sql.NullTime
	err := row.Scan(&c.ID, &c.SubjectID, &c.Reason, &c.Template, &c.Stage, &c.Assignee, &c.CreatedAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan case: %w", err)
	}
	if closedAt.Valid {
		t := closedAt.Time
		c.ClosedAt = &t
	}
	return &c, nil
}
