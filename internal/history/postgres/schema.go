// Package postgres implements a durable Postgres history store for metric
// snapshots, validation runs and alert state.
package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS metrics (
    dataset       TEXT NOT NULL,
    measured_at   TIMESTAMPTZ NOT NULL,
    completeness  DOUBLE PRECISION NOT NULL,
    uniqueness    DOUBLE PRECISION NOT NULL,
    validity      DOUBLE PRECISION NOT NULL,
    consistency   DOUBLE PRECISION NOT NULL,
    timeliness    DOUBLE PRECISION NOT NULL,
    quality_score DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (dataset, measured_at)
);
CREATE INDEX IF NOT EXISTS idx_metrics_measured_at ON metrics (measured_at);

CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    dataset     TEXT NOT NULL,
    run_at      TIMESTAMPTZ NOT NULL,
    total_rules INTEGER NOT NULL,
    passed      INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    errored     INTEGER NOT NULL,
    valid       BOOLEAN NOT NULL,
    outcomes    JSONB
);
CREATE INDEX IF NOT EXISTS idx_runs_dataset_run_at ON runs (dataset, run_at);

CREATE TABLE IF NOT EXISTS alerts (
    alert_id         TEXT PRIMARY KEY,
    dataset          TEXT NOT NULL,
    metric           TEXT NOT NULL,
    condition        TEXT NOT NULL,
    severity         TEXT NOT NULL,
    message          TEXT,
    metric_value     DOUBLE PRECISION NOT NULL,
    threshold        DOUBLE PRECISION NOT NULL,
    status           TEXT NOT NULL,
    triggered_at     TIMESTAMPTZ NOT NULL,
    acknowledged_at  TIMESTAMPTZ,
    resolved_at      TIMESTAMPTZ,
    last_notified_at TIMESTAMPTZ,
    notifications    JSONB
);
CREATE INDEX IF NOT EXISTS idx_alerts_dataset_status ON alerts (dataset, status);
CREATE INDEX IF NOT EXISTS idx_alerts_triggered_at ON alerts (triggered_at);
`
