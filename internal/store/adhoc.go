package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const adhocColumns = `id, owner, assignee, request_text, client_id, status, response_text, responder, created_at, updated_at`

// CreateAdHocTask inserts a new OPEN task. The caller supplies the ID.
func (t *Tx) CreateAdHocTask(ctx context.Context, task *AdHocTask) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO adhoc_tasks (id, owner, assignee, request_text, client_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Owner, task.Assignee, task.RequestText, nullInt(task.ClientID),
		string(task.Status), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert adhoc task: %w", err)
	}
	return nil
}

// GetAdHocTask returns a task with its activity log, or ErrNotFound.
func (s *Store) GetAdHocTask(ctx context.Context, id string) (*AdHocTask, error) {
	task, err := getAdHocTask(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	task.Activity, err = activity(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetAdHocTask reads a task (without activity) inside the transaction.
func (t *Tx) GetAdHocTask(ctx context.Context, id string) (*AdHocTask, error) {
	return getAdHocTask(ctx, t.tx, id)
}

func getAdHocTask(ctx context.Context, q querier, id string) (*AdHocTask, error) {
	row := q.QueryRowContext(ctx, `SELECT `+adhocColumns+` FROM adhoc_tasks WHERE id = ?`, id)
	task, err := scanAdHoc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("adhoc task %s: %w", id, ErrNotFound)
	}
	return task, err
}

// ListAdHocByAssignee returns tasks assigned to user, newest first.
func (s *Store) ListAdHocByAssignee(ctx context.Context, user string) ([]AdHocTask, error) {
	return s.queryAdHoc(ctx,
		`SELECT `+adhocColumns+` FROM adhoc_tasks WHERE assignee = ? ORDER BY created_at DESC, id`, user)
}

// ListAdHocByOwner returns tasks created by user, newest first.
func (s *Store) ListAdHocByOwner(ctx context.Context, user string) ([]AdHocTask, error) {
	return s.queryAdHoc(ctx,
		`SELECT `+adhocColumns+` FROM adhoc_tasks WHERE owner = ? ORDER BY created_at DESC, id`, user)
}

// UpdateAdHocStatus moves a task from one of the allowed statuses to next,
// recording the latest response when text is non-empty. It reports false if
// the task was no longer in an allowed status.
func (t *Tx) UpdateAdHocStatus(ctx context.Context, id string, allowed []AdHocStatus, next AdHocStatus, responder, text string, now time.Time) (bool, error) {
	if len(allowed) == 0 {
		return false, errors.New("update adhoc status: no allowed statuses")
	}
	query := `UPDATE adhoc_tasks SET status = ?, updated_at = ?`
	args := []any{string(next), now}
	if text != "" {
		query += `, response_text = ?, responder = ?`
		args = append(args, text, responder)
	}
	query += ` WHERE id = ? AND status IN (?` + strings.Repeat(",?", len(allowed)-1) + `)`
	args = append(args, id)
	for _, st := range allowed {
		args = append(args, string(st))
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update adhoc status: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// SetAdHocAssignee hands the task to another user.
func (t *Tx) SetAdHocAssignee(ctx context.Context, id, assignee string, now time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE adhoc_tasks SET assignee = ?, updated_at = ? WHERE id = ?`, assignee, now, id)
	if err != nil {
		return fmt.Errorf("reassign adhoc task: %w", err)
	}
	return nil
}

// AddActivity appends one entry to a task's activity log.
func (t *Tx) AddActivity(ctx context.Context, taskID string, a Activity) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO adhoc_activity (task_id, author, message, timestamp) VALUES (?, ?, ?, ?)`,
		taskID, a.Author, a.Message, a.Time,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func activity(ctx context.Context, q querier, taskID string) ([]Activity, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT author, message, timestamp FROM adhoc_activity WHERE task_id = ? ORDER BY timestamp, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	defer rows.Close()

	var log []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.Author, &a.Message, &a.Time); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		log = append(log, a)
	}
	return log, rows.Err()
}

func (s *Store) queryAdHoc(ctx context.Context, query string, args ...any) ([]AdHocTask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query adhoc tasks: %w", err)
	}
	defer rows.Close()

	var tasks []AdHocTask
	for rows.Next() {
		task, err := scanAdHoc(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanAdHoc(row rowScanner) (*AdHocTask, error) {
	var t AdHocTask
	var clientID sql.NullInt64
	var status string
	err := row.Scan(&t.ID, &t.Owner, &t.Assignee, &t.RequestText, &clientID, &status,
		&t.ResponseText, &t.Responder, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan adhoc task: %w", err)
	}
	t.Status = AdHocStatus(status)
	if clientID.Valid {
		id := clientID.Int64
		t.ClientID = &id
	}
	return &t, nil
}
