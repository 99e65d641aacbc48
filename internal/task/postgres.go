package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

// Pool is the subset of pgxpool.Pool the registry needs. pgxmock
// satisfies it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresRegistry persists tasks in Postgres so multiple processes can
// share one registry.
type PostgresRegistry struct {
	pool Pool
}

// NewPostgres connects to Postgres and runs the schema migration.
func NewPostgres(ctx context.Context, connString string) (*PostgresRegistry, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "task: postgres parse config")
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "task: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "task: postgres ping")
	}

	r := &PostgresRegistry{pool: pool}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// NewPostgresWithPool wraps an existing pool (or a mock in tests).
// The caller is responsible for migration.
func NewPostgresWithPool(pool Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tasks (
	case_id       TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'processing',
	progress      INTEGER NOT NULL DEFAULT 0,
	stage         TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	documents     JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`

func (r *PostgresRegistry) migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "task: postgres migrate")
}

func (r *PostgresRegistry) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRegistry) Create(ctx context.Context, caseID string) (*model.Task, error) {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tasks (case_id, status, progress, stage, created_at) VALUES ($1, $2, 0, 'preparing', $3)`,
		caseID, string(model.TaskStatusProcessing), now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicate
		}
		return nil, eris.Wrap(err, "task: postgres insert")
	}

	return &model.Task{
		CaseID:    caseID,
		Status:    model.TaskStatusProcessing,
		Stage:     "preparing",
		CreatedAt: now,
	}, nil
}

func (r *PostgresRegistry) Get(ctx context.Context, caseID string) (*model.Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT case_id, status, progress, stage, message, error_message, documents, created_at, completed_at
		 FROM tasks WHERE case_id = $1`, caseID)

	var t model.Task
	var status string
	var documents []byte
	var completedAt *time.Time
	err := row.Scan(&t.CaseID, &status, &t.Progress, &t.Stage, &t.Message,
		&t.ErrorMessage, &documents, &t.CreatedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "task: postgres get")
	}

	t.Status = model.TaskStatus(status)
	if len(documents) > 0 {
		if err := json.Unmarshal(documents, &t.Documents); err != nil {
			return nil, eris.Wrap(err, "task: postgres unmarshal documents")
		}
	}
	t.CompletedAt = completedAt
	return &t, nil
}

func (r *PostgresRegistry) Update(ctx context.Context, caseID string, progress int, stage, message string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET progress = $1, stage = $2, message = $3
		 WHERE case_id = $4 AND status NOT IN ('completed', 'failed')`,
		progress, stage, message, caseID,
	)
	if err != nil {
		return eris.Wrap(err, "task: postgres update")
	}
	return r.checkMutated(ctx, tag, caseID)
}

func (r *PostgresRegistry) Complete(ctx context.Context, caseID string, documents []model.GeneratedDocument) error {
	docsJSON, err := json.Marshal(documents)
	if err != nil {
		return eris.Wrap(err, "task: postgres marshal documents")
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET status = 'completed', progress = 100, documents = $1, completed_at = $2
		 WHERE case_id = $3 AND status NOT IN ('completed', 'failed')`,
		docsJSON, time.Now().UTC(), caseID,
	)
	if err != nil {
		return eris.Wrap(err, "task: postgres complete")
	}
	return r.checkMutated(ctx, tag, caseID)
}

func (r *PostgresRegistry) Fail(ctx context.Context, caseID string, errorMessage string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET status = 'failed', error_message = $1, completed_at = $2
		 WHERE case_id = $3 AND status NOT IN ('completed', 'failed')`,
		errorMessage, time.Now().UTC(), caseID,
	)
	if err != nil {
		return eris.Wrap(err, "task: postgres fail")
	}
	return r.checkMutated(ctx, tag, caseID)
}

func (r *PostgresRegistry) checkMutated(ctx context.Context, tag pgconn.CommandTag, caseID string) error {
	if tag.RowsAffected() > 0 {
		return nil
	}
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM tasks WHERE case_id = $1`, caseID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrap(err, "task: postgres exists")
	}
	return ErrTerminal
}
