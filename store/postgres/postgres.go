// Package postgres implements replcore.SnapshotStore using PostgreSQL,
// grounded on the teacher's postgres Store: an externally-owned
// *pgxpool.Pool injected via constructor, caller owns the pool's lifetime.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnscript/replcore"
)

// Store implements replcore.SnapshotStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ replcore.SnapshotStore = (*Store)(nil)

// New creates a Store using an existing pool. The caller owns the pool and
// is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates the snapshots table.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
		agent_id       TEXT PRIMARY KEY,
		namespace_blob TEXT NOT NULL,
		history_json   TEXT NOT NULL,
		mem_json       TEXT NOT NULL,
		updated_at     BIGINT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}
	return nil
}

// Save upserts rec by agent ID.
func (s *Store) Save(ctx context.Context, rec replcore.SnapshotRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshots (agent_id, namespace_blob, history_json, mem_json, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (agent_id) DO UPDATE SET
			namespace_blob = EXCLUDED.namespace_blob,
			history_json   = EXCLUDED.history_json,
			mem_json       = EXCLUDED.mem_json,
			updated_at     = EXCLUDED.updated_at
	`, rec.AgentID, rec.NamespaceBlob, rec.HistoryJSON, rec.MemJSON, rec.UpdatedAtUnix)
	if err != nil {
		return fmt.Errorf("postgres: save snapshot: %w", err)
	}
	return nil
}

// Load retrieves the snapshot for agentID. ok is false when none exists.
func (s *Store) Load(ctx context.Context, agentID string) (replcore.SnapshotRecord, bool, error) {
	var rec replcore.SnapshotRecord
	rec.AgentID = agentID
	err := s.pool.QueryRow(ctx, `
		SELECT namespace_blob, history_json, mem_json, updated_at
		FROM snapshots WHERE agent_id = $1
	`, agentID).Scan(&rec.NamespaceBlob, &rec.HistoryJSON, &rec.MemJSON, &rec.UpdatedAtUnix)
	if errors.Is(err, pgx.ErrNoRows) {
		return replcore.SnapshotRecord{}, false, nil
	}
	if err != nil {
		return replcore.SnapshotRecord{}, false, fmt.Errorf("postgres: load snapshot: %w", err)
	}
	return rec, true, nil
}

// Delete removes the snapshot for agentID, if any.
func (s *Store) Delete(ctx context.Context, agentID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE agent_id = $1`, agentID); err != nil {
		return fmt.Errorf("postgres: delete snapshot: %w", err)
	}
	return nil
}
