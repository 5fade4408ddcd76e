package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/basel-ax/tripo/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS tripo_tasks (
		task_id    TEXT PRIMARY KEY,
		run_id     TEXT NOT NULL,
		kind       TEXT NOT NULL,
		image_path TEXT NOT NULL,
		status     TEXT NOT NULL,
		output_dir TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

// PostgresTaskJournal implements domain.TaskJournal for PostgreSQL
type PostgresTaskJournal struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresTaskJournal creates a new PostgreSQL task journal
func NewPostgresTaskJournal(db *sql.DB) *PostgresTaskJournal {
	return &PostgresTaskJournal{db: db, now: time.Now}
}

// EnsureSchema creates the journal table if it does not exist
func (r *PostgresTaskJournal) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Record inserts a submitted task
func (r *PostgresTaskJournal) Record(ctx context.Context, rec domain.TaskRecord) error {
	query := `
		INSERT INTO tripo_tasks (task_id, run_id, kind, image_path, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (task_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, rec.TaskID, rec.RunID, string(rec.Kind), rec.ImagePath, string(rec.Status), r.now())
	return err
}

// UpdateStatus updates the status of a task
func (r *PostgresTaskJournal) UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	query := `
		UPDATE tripo_tasks
		SET status = $1, updated_at = $2
		WHERE task_id = $3
	`

	_, err := r.db.ExecContext(ctx, query, string(status), r.now(), taskID)
	return err
}

// UpdateOutputDir stores the folder the task artifacts were written to
func (r *PostgresTaskJournal) UpdateOutputDir(ctx context.Context, taskID, dir string) error {
	query := `
		UPDATE tripo_tasks
		SET output_dir = $1, updated_at = $2
		WHERE task_id = $3
	`

	_, err := r.db.ExecContext(ctx, query, dir, r.now(), taskID)
	return err
}

// NopTaskJournal is used when no journal database is configured
type NopTaskJournal struct{}

func (NopTaskJournal) Record(context.Context, domain.TaskRecord) error               { return nil }
func (NopTaskJournal) UpdateStatus(context.Context, string, domain.TaskStatus) error { return nil }
func (NopTaskJournal) UpdateOutputDir(context.Context, string, string) error         { return nil }
