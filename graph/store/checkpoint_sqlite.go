package store

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite"

	"github.com/agentflow/graphcore/graph"
)

// SQLiteCheckpointStore persists RunSnapshots to a local SQLite file,
// suitable for a single-process deployment that wants resume-after-
// restart without standing up a separate database.
type SQLiteCheckpointStore struct {
	db *sql.DB
}

// OpenSQLiteCheckpointStore opens (creating if absent) a SQLite file at
// path and ensures the checkpoints table exists.
func OpenSQLiteCheckpointStore(path string) (*SQLiteCheckpointStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id TEXT PRIMARY KEY,
	graph_id TEXT NOT NULL,
	current_node_id TEXT NOT NULL,
	message BLOB NOT NULL,
	saved_at TIMESTAMP NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteCheckpointStore{db: db}, nil
}

func (s *SQLiteCheckpointStore) Save(ctx context.Context, snap graph.RunSnapshot) error {
	raw, err := json.Marshal(snap.Message)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO checkpoints (run_id, graph_id, current_node_id, message, saved_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
	graph_id = excluded.graph_id,
	current_node_id = excluded.current_node_id,
	message = excluded.message,
	saved_at = excluded.saved_at`,
		snap.RunID, snap.GraphID, snap.CurrentNodeID, raw, snap.SavedAt)
	return err
}

func (s *SQLiteCheckpointStore) LoadLatest(ctx context.Context, runID string) (graph.RunSnapshot, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT graph_id, current_node_id, message, saved_at FROM checkpoints WHERE run_id = ?`, runID)
	var snap graph.RunSnapshot
	snap.RunID = runID
	var raw []byte
	if err := row.Scan(&snap.GraphID, &snap.CurrentNodeID, &raw, &snap.SavedAt); err != nil {
		if err == sql.ErrNoRows {
			return graph.RunSnapshot{}, false, nil
		}
		return graph.RunSnapshot{}, false, err
	}
	if err := json.Unmarshal(raw, &snap.Message); err != nil {
		return graph.RunSnapshot{}, false, err
	}
	return snap, true, nil
}

func (s *SQLiteCheckpointStore) Close() error { return s.db.Close() }
