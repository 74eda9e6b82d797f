package store

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/go-sql-driver/mysql"

	"github.com/agentflow/graphcore/graph"
)

// MySQLCheckpointStore is the durable CheckpointStore for a
// multi-instance deployment sharing one database. dsn follows
// go-sql-driver/mysql's DSN format.
type MySQLCheckpointStore struct {
	db *sql.DB
}

func OpenMySQLCheckpointStore(dsn string) (*MySQLCheckpointStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id VARCHAR(191) PRIMARY KEY,
	graph_id VARCHAR(191) NOT NULL,
	current_node_id VARCHAR(191) NOT NULL,
	message LONGBLOB NOT NULL,
	saved_at DATETIME NOT NULL
) ENGINE=InnoDB;`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &MySQLCheckpointStore{db: db}, nil
}

func (s *MySQLCheckpointStore) Save(ctx context.Context, snap graph.RunSnapshot) error {
	raw, err := json.Marshal(snap.Message)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO checkpoints (run_id, graph_id, current_node_id, message, saved_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	graph_id = VALUES(graph_id),
	current_node_id = VALUES(current_node_id),
	message = VALUES(message),
	saved_at = VALUES(saved_at)`,
		snap.RunID, snap.GraphID, snap.CurrentNodeID, raw, snap.SavedAt)
	return err
}

func (s *MySQLCheckpointStore) LoadLatest(ctx context.Context, runID string) (graph.RunSnapshot, bool, error) {
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

func (s *MySQLCheckpointStore) Close() error { return s.db.Close() }
