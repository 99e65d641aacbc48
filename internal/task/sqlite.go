package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

// SQLiteRegistry persists tasks with modernc.org/sqlite, surviving
// process restarts.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the registry database at the given path
// and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "task: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "task: sqlite exec %s", pragma)
		}
	}

	r := &SQLiteRegistry{db: db}
	if err := r.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tasks (
	case_id       TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'processing',
	progress      INTEGER NOT NULL DEFAULT 0,
	stage         TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	documents     TEXT,
	created_at    DATETIME NOT NULL,
	completed_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`

func (r *SQLiteRegistry) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "task: sqlite migrate")
}

func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

func (r *SQLiteRegistry) Create(ctx context.Context, caseID string) (*model.Task, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (case_id, status, progress, stage, created_at) VALUES (?, ?, 0, 'preparing', ?)`,
		caseID, string(model.TaskStatusProcessing), now,
	)
	if err != nil {
		if exists, getErr := r.exists(ctx, caseID); getErr == nil && exists {
			return nil, ErrDuplicate
		}
		return nil, eris.Wrap(err, "task: sqlite insert")
	}

	return &model.Task{
		CaseID:    caseID,
		Status:    model.TaskStatusProcessing,
		Stage:     "preparing",
		CreatedAt: now,
	}, nil
}

func (r *SQLiteRegistry) Get(ctx context.Context, caseID string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT case_id, status, progress, stage, message, error_message, documents, created_at, completed_at
		 FROM tasks WHERE case_id = ?`, caseID)

	var t model.Task
	var status string
	var documents sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&t.CaseID, &status, &t.Progress, &t.Stage, &t.Message,
		&t.ErrorMessage, &documents, &t.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "task: sqlite get")
	}

	t.Status = model.TaskStatus(status)
	if documents.Valid && documents.String != "" {
		if err := json.Unmarshal([]byte(documents.String), &t.Documents); err != nil {
			return nil, eris.Wrap(err, "task: sqlite unmarshal documents")
		}
	}
	if completedAt.Valid {
		ts := completedAt.Time
		t.CompletedAt = &ts
	}
	return &t, nil
}

func (r *SQLiteRegistry) Update(ctx context.Context, caseID string, progress int, stage, message string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET progress = ?, stage = ?, message = ?
		 WHERE case_id = ? AND status NOT IN ('completed', 'failed')`,
		progress, stage, message, caseID,
	)
	if err != nil {
		return eris.Wrap(err, "task: sqlite update")
	}
	return r.checkMutated(ctx, res, caseID)
}

func (r *SQLiteRegistry) Complete(ctx context.Context, caseID string, documents []model.GeneratedDocument) error {
	docsJSON, err := json.Marshal(documents)
	if err != nil {
		return eris.Wrap(err, "task: sqlite marshal documents")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'completed', progress = 100, documents = ?, completed_at = ?
		 WHERE case_id = ? AND status NOT IN ('completed', 'failed')`,
		string(docsJSON), time.Now().UTC(), caseID,
	)
	if err != nil {
		return eris.Wrap(err, "task: sqlite complete")
	}
	return r.checkMutated(ctx, res, caseID)
}

func (r *SQLiteRegistry) Fail(ctx context.Context, caseID string, errorMessage string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'failed', error_message = ?, completed_at = ?
		 WHERE case_id = ? AND status NOT IN ('completed', 'failed')`,
		errorMessage, time.Now().UTC(), caseID,
	)
	if err != nil {
		return eris.Wrap(err, "task: sqlite fail")
	}
	return r.checkMutated(ctx, res, caseID)
}

// checkMutated distinguishes "no such case" from "case is terminal"
// when a guarded UPDATE touched zero rows.
func (r *SQLiteRegistry) checkMutated(ctx context.Context, res sql.Result, caseID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "task: sqlite rows affected")
	}
	if n > 0 {
		return nil
	}
	exists, err := r.exists(ctx, caseID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrTerminal
}

func (r *SQLiteRegistry) exists(ctx context.Context, caseID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE case_id = ?`, caseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "task: sqlite exists")
	}
	return true, nil
}
