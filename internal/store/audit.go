package store

import (
	"context"
	"fmt"
)

// The audit tables are append-only: this file offers inserts and reads,
// never updates or deletes.

// AddComment inserts a comment and fills in its ID.
func (t *Tx) AddComment(ctx context.Context, c *Comment) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO comments (case_id, author, role, text, timestamp) VALUES (?, ?, ?, ?, ?)`,
		c.CaseID, c.Author, c.Role, c.Text, c.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// AddEvent appends an audit event and fills in its ID.
func (t *Tx) AddEvent(ctx context.Context, e *Event) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO events (case_id, event_type, description, source, timestamp) VALUES (?, ?, ?, ?, ?)`,
		e.CaseID, e.Type, e.Description, e.Source, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// AddDocument records document metadata for a case.
func (t *Tx) AddDocument(ctx context.Context, d *Document) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO documents (case_id, name, category, mime_type, uploaded_by, comment, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.CaseID, d.Name, d.Category, d.MimeType, d.UploadedBy, d.Comment, d.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	d.ID, _ = res.LastInsertId()
	return nil
}

// GetEvents returns all events for a case in append order.
func (s *Store) GetEvents(ctx context.Context, caseID int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, event_type, description, source, timestamp
		 FROM events WHERE case_id = ? ORDER BY timestamp, id`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Type, &e.Description, &e.Source, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetComments returns all comments for a case, oldest first.
func (s *Store) GetComments(ctx context.Context, caseID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, author, role, text, timestamp
		 FROM comments WHERE case_id = ? ORDER BY timestamp, id`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.CaseID, &c.Author, &c.Role, &c.Text, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// GetDocuments returns the documents attached to a case.
func (s *Store) GetDocuments(ctx context.Context, caseID int64) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, name, category, mime_type, uploaded_by, comment, timestamp
		 FROM documents WHERE case_id = ? ORDER BY timestamp, id`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("get documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.CaseID, &d.Name, &d.Category, &d.MimeType, &d.UploadedBy, &d.Comment, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
