package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// Postgres persists tasks in a shared database for multi-replica
// deployments. Schema management goes through Migrate.
type Postgres struct {
	db     *sql.DB
	logger *log.Logger
}

func NewPostgres(ctx context.Context, dsn string, logger *log.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[STORE] ", log.LstdFlags)
	}
	return &Postgres{db: db, logger: logger}, nil
}

func (p *Postgres) Save(ctx context.Context, task Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `
INSERT INTO tasks
    (task_id, status, envelope, quality, bibliography, source_map, notes, findings, evidence, overall_confidence, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (task_id) DO UPDATE SET
    status = EXCLUDED.status,
    envelope = EXCLUDED.envelope,
    quality = EXCLUDED.quality,
    bibliography = EXCLUDED.bibliography,
    source_map = EXCLUDED.source_map,
    notes = EXCLUDED.notes,
    findings = EXCLUDED.findings,
    evidence = EXCLUDED.evidence,
    overall_confidence = EXCLUDED.overall_confidence,
    error = EXCLUDED.error,
    updated_at = EXCLUDED.updated_at`,
		task.TaskID, task.Status,
		encodeJSON(task.Envelope), encodeJSON(task.Quality),
		nullString(task.Bibliography), encodeJSON(task.SourceMap),
		encodeJSON(task.Notes), encodeJSON(task.Findings), encodeJSON(task.Evidence),
		nullString(task.OverallConfidence), nullString(task.Error),
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.TaskID, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, taskID string) (Task, bool, error) {
	row := p.db.QueryRowContext(ctx, `
SELECT task_id, status, envelope, quality, bibliography, source_map, notes, findings, evidence, overall_confidence, error, created_at, updated_at
FROM tasks WHERE task_id = $1`, taskID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	return task, true, nil
}

func (p *Postgres) List(ctx context.Context, status string, limit int) ([]Task, error) {
	query := `
SELECT task_id, status, envelope, quality, bibliography, source_map, notes, findings, evidence, overall_confidence, error, created_at, updated_at
FROM tasks`
	var args []any
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, taskID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }
