package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
    task_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    envelope TEXT,
    quality TEXT,
    bibliography TEXT,
    source_map TEXT,
    notes TEXT,
    findings TEXT,
    evidence TEXT,
    overall_confidence TEXT,
    error TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
`

// SQLite persists tasks in a local file, the default single-node backend.
type SQLite struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLite(path string, logger *log.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tasks schema: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[STORE] ", log.LstdFlags)
	}
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Save(ctx context.Context, task Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO tasks
    (task_id, status, envelope, quality, bibliography, source_map, notes, findings, evidence, overall_confidence, error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *SQLite) Load(ctx context.Context, taskID string) (Task, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT task_id, status, envelope, quality, bibliography, source_map, notes, findings, evidence, overall_confidence, error, created_at, updated_at
FROM tasks WHERE task_id = ?`, taskID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	return task, true, nil
}

func (s *SQLite) List(ctx context.Context, status string, limit int) ([]Task, error) {
	query := `
SELECT task_id, status, envelope, quality, bibliography, source_map, notes, findings, evidence, overall_confidence, error, created_at, updated_at
FROM tasks`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLite) Delete(ctx context.Context, taskID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var task Task
	var envelope, quality, bibliography, sourceMap, notes, findings, evidence, confidence, taskErr sql.NullString
	err := row.Scan(
		&task.TaskID, &task.Status,
		&envelope, &quality, &bibliography, &sourceMap,
		&notes, &findings, &evidence, &confidence, &taskErr,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return Task{}, err
	}
	decodeJSON(envelope, &task.Envelope)
	decodeJSON(quality, &task.Quality)
	decodeJSON(sourceMap, &task.SourceMap)
	decodeJSON(notes, &task.Notes)
	decodeJSON(findings, &task.Findings)
	decodeJSON(evidence, &task.Evidence)
	task.Bibliography = bibliography.String
	task.OverallConfidence = confidence.String
	task.Error = taskErr.String
	return task, nil
}

// encodeJSON serializes to a nullable TEXT column; nils map to SQL NULL.
func encodeJSON(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	default:
		raw, err := json.Marshal(value)
		if err != nil || string(raw) == "null" {
			return nil
		}
		return string(raw)
	}
}

func decodeJSON(column sql.NullString, target any) {
	if !column.Valid || column.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(column.String), target)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
