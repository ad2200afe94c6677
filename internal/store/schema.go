package store

// schema contains the SQL statements to create the StackLens database schema.
const schema = `
-- Runs table: one row per saved analysis
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    label      TEXT,
    created_at TEXT NOT NULL,
    su_files   INTEGER NOT NULL DEFAULT 0,
    records    INTEGER NOT NULL DEFAULT 0,
    skipped    INTEGER NOT NULL DEFAULT 0,
    edges      INTEGER NOT NULL DEFAULT 0,
    paths      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

-- Function frame records; duplicates across .su files are kept as-is
CREATE TABLE IF NOT EXISTS records (
    run_id      TEXT NOT NULL,
    function    TEXT NOT NULL,
    file        TEXT NOT NULL,
    line        INTEGER NOT NULL,
    stack_bytes INTEGER NOT NULL,
    qualifier   TEXT NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
CREATE INDEX IF NOT EXISTS idx_records_bytes ON records(run_id, stack_bytes);
CREATE INDEX IF NOT EXISTS idx_records_function ON records(run_id, function);

-- Call edges; seq preserves first-seen callee order, the solver's
-- tie-break depends on it
CREATE TABLE IF NOT EXISTS edges (
    run_id TEXT NOT NULL,
    caller TEXT NOT NULL,
    callee TEXT NOT NULL,
    seq    INTEGER NOT NULL,
    PRIMARY KEY (run_id, caller, callee),
    FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_edges_caller ON edges(run_id, caller);

-- Solved worst-case paths, one per entry point
CREATE TABLE IF NOT EXISTS paths (
    run_id      TEXT NOT NULL,
    entry       TEXT NOT NULL,
    total_bytes INTEGER NOT NULL,
    chain_json  TEXT NOT NULL,
    PRIMARY KEY (run_id, entry),
    FOREIGN KEY (run_id) REFERENCES runs(id)
);

-- Metadata table for store info
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT
);
`
