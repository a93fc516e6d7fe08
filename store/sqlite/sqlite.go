// Package sqlite implements replcore.SnapshotStore using pure-Go SQLite
// (modernc.org/sqlite, zero CGO), grounded on the teacher's sqlite Store:
// same single-connection-pool pattern to avoid SQLITE_BUSY, same
// create-table-if-not-exists init step.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/turnscript/replcore"

	_ "modernc.org/sqlite"
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store. When unset, no logs
// are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements replcore.SnapshotStore backed by a local SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ replcore.SnapshotStore = (*Store)(nil)

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath. A single shared
// connection serializes all writers, eliminating SQLITE_BUSY errors from
// concurrent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates the snapshots table.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
		agent_id       TEXT PRIMARY KEY,
		namespace_blob TEXT NOT NULL,
		history_json   TEXT NOT NULL,
		mem_json       TEXT NOT NULL,
		updated_at     INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("sqlite: create table: %w", err)
	}
	return nil
}

// Save upserts rec by agent ID.
func (s *Store) Save(ctx context.Context, rec replcore.SnapshotRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (agent_id, namespace_blob, history_json, mem_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			namespace_blob = excluded.namespace_blob,
			history_json   = excluded.history_json,
			mem_json       = excluded.mem_json,
			updated_at     = excluded.updated_at
	`, rec.AgentID, rec.NamespaceBlob, rec.HistoryJSON, rec.MemJSON, rec.UpdatedAtUnix)
	if err != nil {
		return fmt.Errorf("sqlite: save snapshot: %w", err)
	}
	s.logger.Debug("sqlite: snapshot saved", "agent_id", rec.AgentID)
	return nil
}

// Load retrieves the snapshot for agentID. ok is false when none exists.
func (s *Store) Load(ctx context.Context, agentID string) (replcore.SnapshotRecord, bool, error) {
	var rec replcore.SnapshotRecord
	rec.AgentID = agentID
	err := s.db.QueryRowContext(ctx, `
		SELECT namespace_blob, history_json, mem_json, updated_at
		FROM snapshots WHERE agent_id = ?
	`, agentID).Scan(&rec.NamespaceBlob, &rec.HistoryJSON, &rec.MemJSON, &rec.UpdatedAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return replcore.SnapshotRecord{}, false, nil
	}
	if err != nil {
		return replcore.SnapshotRecord{}, false, fmt.Errorf("sqlite: load snapshot: %w", err)
	}
	return rec, true, nil
}

// Delete removes the snapshot for agentID, if any.
func (s *Store) Delete(ctx context.Context, agentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("sqlite: delete snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
