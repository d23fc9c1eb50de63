package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store provides access to the caseflow database.
type Store struct {
	db *sql.DB
}

// querier is the subset of *sql.DB and *sql.Tx the row helpers need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens (or creates) the SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: writers are serialized by the database handle itself,
	// and callers must never touch the Store while holding a Tx.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id  INTEGER NOT NULL,
		reason      TEXT DEFAULT '',
		template    TEXT NOT NULL DEFAULT 'kyc',
		stage       TEXT NOT NULL,
		assignee    TEXT DEFAULT '',
		created_at  DATETIME NOT NULL,
		closed_at   DATETIME
	);

	CREATE TABLE IF NOT EXISTS comments (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id     INTEGER NOT NULL REFERENCES cases(id),
		author      TEXT NOT NULL,
		role        TEXT DEFAULT '',
		text        TEXT NOT NULL,
		timestamp   DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id      INTEGER NOT NULL REFERENCES cases(id),
		event_type   TEXT NOT NULL,
		description  TEXT DEFAULT '',
		source       TEXT DEFAULT '',
		timestamp    DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id      INTEGER NOT NULL REFERENCES cases(id),
		name         TEXT NOT NULL,
		category     TEXT NOT NULL,
		mime_type    TEXT DEFAULT '',
		uploaded_by  TEXT NOT NULL,
		comment      TEXT DEFAULT '',
		timestamp    DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS adhoc_tasks (
		id             TEXT PRIMARY KEY,
		owner          TEXT NOT NULL,
		assignee       TEXT NOT NULL,
		request_text   TEXT NOT NULL,
		client_id      INTEGER,
		status         TEXT NOT NULL DEFAULT 'OPEN',
		response_text  TEXT DEFAULT '',
		responder      TEXT DEFAULT '',
		created_at     DATETIME NOT NULL,
		updated_at     DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS adhoc_activity (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id   TEXT NOT NULL REFERENCES adhoc_tasks(id),
		author    TEXT NOT NULL,
		message   TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		template       TEXT NOT NULL DEFAULT 'kyc',
		section        TEXT NOT NULL DEFAULT '',
		section_order  INTEGER NOT NULL DEFAULT 0,
		text           TEXT NOT NULL,
		type           TEXT NOT NULL DEFAULT 'TEXT',
		mandatory      INTEGER NOT NULL DEFAULT 0,
		options        TEXT DEFAULT '',
		display_order  INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS answers (
		case_id      INTEGER NOT NULL REFERENCES cases(id),
		question_id  INTEGER NOT NULL REFERENCES questions(id),
		answer_text  TEXT DEFAULT '',
		updated_by   TEXT DEFAULT '',
		updated_at   DATETIME NOT NULL,
		PRIMARY KEY (case_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS screening_requests (
		id          TEXT PRIMARY KEY,
		subject_id  INTEGER NOT NULL,
		status      TEXT NOT NULL,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS screening_results (
		request_id     TEXT NOT NULL REFERENCES screening_requests(id),
		context        TEXT NOT NULL,
		status         TEXT NOT NULL,
		alert_message  TEXT DEFAULT '',
		alert_id       TEXT DEFAULT '',
		PRIMARY KEY (request_id, context)
	);

	CREATE TABLE IF NOT EXISTS risk_assessments (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id       INTEGER NOT NULL,
		overall_score   INTEGER NOT NULL,
		initial_level   TEXT DEFAULT '',
		overall_level   TEXT NOT NULL,
		logic_applied   TEXT DEFAULT '',
		sme_assessment  TEXT DEFAULT '',
		created_at      DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS risk_details (
		assessment_id  INTEGER NOT NULL REFERENCES risk_assessments(id),
		risk_type      TEXT NOT NULL,
		element_name   TEXT NOT NULL,
		element_value  TEXT DEFAULT '',
		score          INTEGER NOT NULL DEFAULT 0,
		flag           TEXT DEFAULT '',
		local_rule     TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_events_case ON events(case_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_cases_stage ON cases(stage);
	CREATE INDEX IF NOT EXISTS idx_adhoc_assignee ON adhoc_tasks(assignee);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Tx is a database transaction handed to InTx callbacks. All writes that
// must land together (stage change, comment, event) go through one Tx.
type Tx struct {
	tx *sql.Tx
}

// InTx runs fn inside a transaction, committing on nil and rolling back on
// error or panic.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// nullTime converts an optional time to a driver value.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
