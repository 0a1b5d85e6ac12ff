package runstore

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
    id TEXT PRIMARY KEY,
    genome_id TEXT NOT NULL,
    tool TEXT NOT NULL,
    args TEXT,
    status TEXT NOT NULL,
    exit_code INTEGER,
    output_path TEXT,
    error TEXT,
    started_at TIMESTAMP,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_invocations_genome_id ON invocations(genome_id);
CREATE INDEX IF NOT EXISTS idx_invocations_status ON invocations(status);
`
