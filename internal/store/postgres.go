// Package store persists search runs and their per-round iteration
// snapshots. The PostgreSQL store is the durable backend; the in-memory
// store serves single-shot CLI runs with no database configured.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deepsearch-cli/api/schemas"
)

// ErrNotFound is returned when a search record does not exist.
var ErrNotFound = errors.New("search record not found")

// DBPool abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides a PostgreSQL implementation of schemas.RecordStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS searches (
    id         TEXT PRIMARY KEY,
    task       TEXT NOT NULL,
    status     TEXT NOT NULL,
    answer     TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS iterations (
    search_id      TEXT NOT NULL REFERENCES searches(id),
    round          INT NOT NULL,
    workspace_text TEXT NOT NULL,
    tool_records   JSONB NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (search_id, round)
);`

// EnsureSchema creates the backing tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// CreateSearch inserts a new search record.
func (s *Store) CreateSearch(ctx context.Context, record schemas.SearchRecord) error {
	query := `
        INSERT INTO searches (id, task, status, answer, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6);
    `
	_, err := s.pool.Exec(ctx, query,
		record.ID, record.Task, record.Status, record.Answer,
		record.CreatedAt.UTC(), record.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert search record: %w", err)
	}
	return nil
}

// GetSearch loads one search record by id.
func (s *Store) GetSearch(ctx context.Context, id string) (schemas.SearchRecord, error) {
	query := `
        SELECT id, task, status, answer, created_at, updated_at
        FROM searches
        WHERE id = $1;
    `
	var record schemas.SearchRecord
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&record.ID, &record.Task, &record.Status, &record.Answer,
		&record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.SearchRecord{}, ErrNotFound
	}
	if err != nil {
		return schemas.SearchRecord{}, fmt.Errorf("failed to query search record: %w", err)
	}
	return record, nil
}

// UpdateSearch moves a search record to a new status, optionally attaching
// the final answer.
func (s *Store) UpdateSearch(ctx context.Context, id, status string, answer *string) error {
	query := `
        UPDATE searches
        SET status = $2, answer = COALESCE($3, answer), updated_at = $4
        WHERE id = $1;
    `
	tag, err := s.pool.Exec(ctx, query, id, status, answer, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update search record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveIteration persists one round snapshot for a search.
func (s *Store) SaveIteration(ctx context.Context, iteration schemas.Iteration) error {
	records := json.RawMessage("[]")
	if len(iteration.ToolRecords) > 0 {
		encoded, err := json.Marshal(iteration.ToolRecords)
		if err != nil {
			return fmt.Errorf("failed to marshal tool records: %w", err)
		}
		records = encoded
	}

	query := `
        INSERT INTO iterations (search_id, round, workspace_text, tool_records, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (search_id, round) DO UPDATE SET
            workspace_text = EXCLUDED.workspace_text,
            tool_records = EXCLUDED.tool_records,
            created_at = EXCLUDED.created_at;
    `
	_, err := s.pool.Exec(ctx, query,
		iteration.SearchID, iteration.Round, iteration.WorkspaceText,
		records, iteration.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert iteration: %w", err)
	}
	return nil
}

// ListIterations returns a search's persisted rounds in ascending order.
func (s *Store) ListIterations(ctx context.Context, searchID string) ([]schemas.Iteration, error) {
	query := `
        SELECT search_id, round, workspace_text, tool_records, created_at
        FROM iterations
        WHERE search_id = $1
        ORDER BY round ASC;
    `
	rows, err := s.pool.Query(ctx, query, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterations: %w", err)
	}
	defer rows.Close()

	var iterations []schemas.Iteration
	for rows.Next() {
		var it schemas.Iteration
		var records []byte
		if err := rows.Scan(&it.SearchID, &it.Round, &it.WorkspaceText, &records, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan iteration row: %w", err)
		}
		if err := json.Unmarshal(records, &it.ToolRecords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool records: %w", err)
		}
		iterations = append(iterations, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return iterations, nil
}
