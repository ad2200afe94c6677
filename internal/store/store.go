// Package store persists analysis runs to SQLite so CI history can be
// queried and served long after the build tree is gone.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lgili/stacklens/internal/analyze"
	"github.com/lgili/stacklens/internal/su"
)

// Store handles persistence of analysis runs to SQLite.
type Store struct {
	db      *sql.DB
	dbPath  string
	baseDir string // Project root directory
}

// Open creates or opens a StackLens run database.
// By default, stores at .stacklens/stacklens.db relative to the given
// project directory.
func Open(projectDir string) (*Store, error) {
	stacklensDir := filepath.Join(projectDir, ".stacklens")
	if err := os.MkdirAll(stacklensDir, 0755); err != nil {
		return nil, fmt.Errorf("creating .stacklens directory: %w", err)
	}

	dbPath := filepath.Join(stacklensDir, "stacklens.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys and WAL mode for better performance
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	// Create schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:      db,
		dbPath:  dbPath,
		baseDir: projectDir,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the path to the database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

// Clear removes all data from the database.
func (s *Store) Clear() error {
	tables := []string{"paths", "edges", "records", "runs", "metadata"}
	for _, table := range tables {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing table %s: %w", table, err)
		}
	}
	return nil
}

// SaveResult persists one analysis run and returns its ID. Records,
// edges and paths land in a single transaction; a failed save leaves
// no partial run behind.
func (s *Store) SaveResult(res *analyze.Result, label string) (RunID, error) {
	id := RunID(uuid.NewString())

	batch, err := s.BeginBatch()
	if err != nil {
		return "", fmt.Errorf("beginning batch: %w", err)
	}
	defer batch.Rollback()

	run := &Run{
		ID:        id,
		Label:     label,
		CreatedAt: time.Now().UTC(),
		SuFiles:   len(res.SuFiles),
		Records:   len(res.Records),
		Skipped:   res.Skipped,
	}
	if res.Graph != nil {
		run.Edges = res.Graph.EdgeCount()
	}
	run.Paths = len(res.Critical)

	if err := batch.insertRun(run); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	for _, rec := range res.Records {
		if err := batch.InsertRecord(id, rec); err != nil {
			return "", fmt.Errorf("inserting record %s: %w", rec.Function, err)
		}
	}
	if res.Graph != nil {
		for _, caller := range res.Graph.Callers() {
			for seq, callee := range res.Graph.Callees(caller) {
				if err := batch.InsertEdge(id, Edge{Caller: caller, Callee: callee}, seq); err != nil {
					return "", fmt.Errorf("inserting edge %s->%s: %w", caller, callee, err)
				}
			}
		}
	}
	for _, c := range res.Critical {
		sp := StoredPath{Entry: c.Entry, TotalBytes: c.Path.TotalBytes, Chain: c.Path.Chain}
		if err := batch.InsertPath(id, sp); err != nil {
			return "", fmt.Errorf("inserting path %s: %w", c.Entry, err)
		}
	}

	if err := batch.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}

	if err := s.SetMetadata("latest_run", string(id)); err != nil {
		return "", fmt.Errorf("storing metadata: %w", err)
	}
	return id, nil
}

// GetRun returns one saved run by ID.
func (s *Store) GetRun(id RunID) (*Run, error) {
	run := &Run{}
	var created string
	err := s.db.QueryRow(`
		SELECT id, label, created_at, su_files, records, skipped, edges, paths
		FROM runs WHERE id = ?
	`, string(id)).Scan(&run.ID, &run.Label, &created, &run.SuFiles, &run.Records, &run.Skipped, &run.Edges, &run.Paths)
	if err != nil {
		return nil, err
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return run, nil
}

// LatestRun returns the most recently saved run, preferring the
// metadata pointer and falling back to creation order.
func (s *Store) LatestRun() (*Run, error) {
	if id, err := s.GetMetadata("latest_run"); err == nil && id != "" {
		if run, err := s.GetRun(RunID(id)); err == nil {
			return run, nil
		}
	}

	var id string
	err := s.db.QueryRow("SELECT id FROM runs ORDER BY created_at DESC, id LIMIT 1").Scan(&id)
	if err != nil {
		return nil, err
	}
	return s.GetRun(RunID(id))
}

// ListRuns returns saved runs, newest first. limit <= 0 lists all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := "SELECT id FROM runs ORDER BY created_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		run, err := s.GetRun(RunID(id))
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordsForRun returns a run's records ordered by frame size
// descending then name. limit <= 0 returns all.
func (s *Store) RecordsForRun(id RunID, limit int) ([]su.Record, error) {
	query := `
		SELECT function, file, line, stack_bytes, qualifier
		FROM records WHERE run_id = ?
		ORDER BY stack_bytes DESC, function`
	args := []any{string(id)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []su.Record
	for rows.Next() {
		var rec su.Record
		if err := rows.Scan(&rec.Function, &rec.File, &rec.Line, &rec.StackBytes, &rec.Qualifier); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// EdgesForRun returns a run's call edges in caller order with each
// caller's callees in their original first-seen order.
func (s *Store) EdgesForRun(id RunID) ([]Edge, error) {
	rows, err := s.db.Query(`
		SELECT caller, callee FROM edges
		WHERE run_id = ? ORDER BY caller, seq
	`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Caller, &e.Callee); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// PathsForRun returns a run's solved worst-case paths sorted by entry.
func (s *Store) PathsForRun(id RunID) ([]StoredPath, error) {
	rows, err := s.db.Query(`
		SELECT entry, total_bytes, chain_json FROM paths
		WHERE run_id = ? ORDER BY entry
	`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []StoredPath
	for rows.Next() {
		var p StoredPath
		var chain string
		if err := rows.Scan(&p.Entry, &p.TotalBytes, &chain); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(chain), &p.Chain); err != nil {
			return nil, fmt.Errorf("decoding chain for %s: %w", p.Entry, err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// SetMetadata stores a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetMetadata retrieves a value from the metadata table.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	return value, err
}

// Stats holds statistics about the stored runs.
type Stats struct {
	RunCount    int       `json:"run_count"`
	RecordCount int       `json:"record_count"`
	EdgeCount   int       `json:"edge_count"`
	PathCount   int       `json:"path_count"`
	LatestRunAt time.Time `json:"latest_run_at"`
}

// GetStats returns statistics about the stored runs.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	rows := []struct {
		table string
		dest  *int
	}{
		{"runs", &stats.RunCount},
		{"records", &stats.RecordCount},
		{"edges", &stats.EdgeCount},
		{"paths", &stats.PathCount},
	}

	for _, r := range rows {
		err := s.db.QueryRow("SELECT COUNT(*) FROM " + r.table).Scan(r.dest)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", r.table, err)
		}
	}

	if run, err := s.LatestRun(); err == nil {
		stats.LatestRunAt = run.CreatedAt
	}

	return stats, nil
}

// IndexMetadata holds metadata written to index.json for quick boot of
// dashboards that do not want to open the database.
type IndexMetadata struct {
	Version     string    `json:"version"`
	ProjectPath string    `json:"project_path"`
	LatestRun   RunID     `json:"latest_run,omitempty"`
	LatestRunAt time.Time `json:"latest_run_at"`
	RunCount    int       `json:"run_count"`
	RecordCount int       `json:"record_count"`
	PathCount   int       `json:"path_count"`
	Runs        []RunID   `json:"runs"`
}

// WriteIndexJSON writes index.json next to the database.
func (s *Store) WriteIndexJSON() error {
	stats, err := s.GetStats()
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	meta := &IndexMetadata{
		Version:     "1",
		ProjectPath: s.baseDir,
		LatestRunAt: stats.LatestRunAt,
		RunCount:    stats.RunCount,
		RecordCount: stats.RecordCount,
		PathCount:   stats.PathCount,
	}
	if latest, err := s.GetMetadata("latest_run"); err == nil {
		meta.LatestRun = RunID(latest)
	}

	runs, err := s.ListRuns(0)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	for _, run := range runs {
		meta.Runs = append(meta.Runs, run.ID)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index.json: %w", err)
	}

	indexPath := filepath.Join(filepath.Dir(s.dbPath), "index.json")
	if err := os.WriteFile(indexPath, data, 0644); err != nil {
		return fmt.Errorf("writing index.json: %w", err)
	}

	return nil
}

// Tx returns the underlying database for advanced queries.
// Use with caution - prefer adding methods to Store instead.
func (s *Store) Tx() *sql.DB {
	return s.db
}

// BeginBatch starts a transaction for batch inserts.
// Call Commit() when done, or Rollback() on error.
func (s *Store) BeginBatch() (*BatchTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &BatchTx{tx: tx}, nil
}

// BatchTx wraps a transaction for batch operations.
type BatchTx struct {
	tx   *sql.Tx
	done bool
}

// Commit commits the batch transaction.
func (b *BatchTx) Commit() error {
	b.done = true
	return b.tx.Commit()
}

// Rollback rolls back the batch transaction. Safe to call after
// Commit, which makes it usable in a defer.
func (b *BatchTx) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	return b.tx.Rollback()
}

func (b *BatchTx) insertRun(run *Run) error {
	_, err := b.tx.Exec(`
		INSERT INTO runs (id, label, created_at, su_files, records, skipped, edges, paths)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, string(run.ID), run.Label, run.CreatedAt.Format(time.RFC3339), run.SuFiles, run.Records, run.Skipped, run.Edges, run.Paths)
	return err
}

// InsertRecord inserts a function frame record within the batch.
func (b *BatchTx) InsertRecord(id RunID, rec su.Record) error {
	_, err := b.tx.Exec(`
		INSERT INTO records (run_id, function, file, line, stack_bytes, qualifier)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(id), rec.Function, rec.File, rec.Line, rec.StackBytes, rec.Qualifier)
	return err
}

// InsertEdge inserts a call edge within the batch. seq fixes the
// callee's position among its caller's edges.
func (b *BatchTx) InsertEdge(id RunID, edge Edge, seq int) error {
	_, err := b.tx.Exec(`
		INSERT INTO edges (run_id, caller, callee, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, caller, callee) DO NOTHING
	`, string(id), edge.Caller, edge.Callee, seq)
	return err
}

// InsertPath inserts a solved path within the batch. Solving the same
// entry twice keeps the latest result.
func (b *BatchTx) InsertPath(id RunID, p StoredPath) error {
	chain, err := json.Marshal(p.Chain)
	if err != nil {
		return fmt.Errorf("encoding chain for %s: %w", p.Entry, err)
	}
	_, err = b.tx.Exec(`
		INSERT INTO paths (run_id, entry, total_bytes, chain_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, entry) DO UPDATE SET
			total_bytes = excluded.total_bytes,
			chain_json = excluded.chain_json
	`, string(id), p.Entry, p.TotalBytes, chain)
	return err
}
