package replcore

import "context"

// SnapshotRecord is everything a host needs to reconstruct a Session across
// a process restart: the namespace blob from Namespace.Snapshot() plus the
// serialised turn history and memory. The core itself stays in-memory
// (Non-goals) — SnapshotStore is the host's own prerogative.
type SnapshotRecord struct {
	AgentID       string
	NamespaceBlob string
	HistoryJSON   string
	MemJSON       string
	UpdatedAtUnix int64
}

// SnapshotStore persists and retrieves SnapshotRecords, keyed by agent ID.
// store/sqlite and store/postgres provide reference implementations.
type SnapshotStore interface {
	Save(ctx context.Context, rec SnapshotRecord) error
	Load(ctx context.Context, agentID string) (SnapshotRecord, bool, error)
	Delete(ctx context.Context, agentID string) error
}
