package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: RUNS AND TRANSCRIPTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One row per simulation run
CREATE TABLE IF NOT EXISTS simulation_runs (
    id UUID PRIMARY KEY,
    scenario VARCHAR(200) NOT NULL,
    seed BIGINT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'running',
    steps INTEGER NOT NULL DEFAULT 0,
    declined INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    finished_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_run_status CHECK (status IN ('running', 'completed', 'failed'))
);

CREATE INDEX IF NOT EXISTS idx_simulation_runs_started_at ON simulation_runs(started_at DESC);

-- Every line a run emitted, in order
CREATE TABLE IF NOT EXISTS transcript_lines (
    id BIGSERIAL PRIMARY KEY,
    run_id UUID NOT NULL REFERENCES simulation_runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    kind VARCHAR(20) NOT NULL,
    subject VARCHAR(200) NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    emitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT unique_transcript_seq UNIQUE (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_transcript_lines_subject ON transcript_lines(run_id, subject);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: DOMAIN EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS domain_events (
    id BIGSERIAL PRIMARY KEY,
    run_id UUID NOT NULL REFERENCES simulation_runs(id) ON DELETE CASCADE,
    event_type VARCHAR(60) NOT NULL,
    aggregate_id UUID NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_domain_events_run_type ON domain_events(run_id, event_type);
CREATE INDEX IF NOT EXISTS idx_domain_events_aggregate ON domain_events(aggregate_id, occurred_at);
`
