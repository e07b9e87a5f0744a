package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/brieferhq/briefer/config"
	"github.com/brieferhq/briefer/internal/agent/core"
)

// Task is the persisted record of one research task. Terminal tasks carry the
// full composed result; failed ones carry the verbatim error string.
type Task struct {
	TaskID            string              `json:"task_id"`
	Status            string              `json:"status"`
	Envelope          *core.Envelope      `json:"envelope,omitempty"`
	Quality           *core.QualityReport `json:"quality,omitempty"`
	Bibliography      string              `json:"bibliography,omitempty"`
	SourceMap         map[string]string   `json:"source_map,omitempty"`
	Notes             []string            `json:"notes,omitempty"`
	Findings          []core.Finding      `json:"findings,omitempty"`
	Evidence          []core.Evidence     `json:"evidence,omitempty"`
	OverallConfidence string              `json:"overall_confidence,omitempty"`
	Error             string              `json:"error,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// TaskStore persists task records. Save is an upsert keyed by TaskID.
type TaskStore interface {
	Save(ctx context.Context, task Task) error
	Load(ctx context.Context, taskID string) (Task, bool, error)
	List(ctx context.Context, status string, limit int) ([]Task, error)
	Delete(ctx context.Context, taskID string) error
	Close() error
}

// New builds the task store named by the storage config.
func New(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (TaskStore, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[STORE] ", log.LstdFlags)
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "briefer_tasks.db"
		}
		return NewSQLite(path, logger)
	case "postgres":
		dsn, err := cfg.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		return NewPostgres(ctx, dsn, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
