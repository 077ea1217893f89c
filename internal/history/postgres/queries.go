package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

// ListMetrics returns up to limit snapshots for the dataset, newest first.
func (s *Store) ListMetrics(ctx context.Context, dataset string, limit int) ([]types.QualityMetrics, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT dataset, measured_at, completeness, uniqueness, validity, consistency, timeliness, quality_score
		FROM metrics
		WHERE dataset = $1
		ORDER BY measured_at DESC
		LIMIT $2
	`, dataset, limit)
	if err != nil {
		return nil, history.Unavailable("postgres list metrics", err)
	}
	defer rows.Close()

	var out []types.QualityMetrics
	for rows.Next() {
		var m types.QualityMetrics
		if err := rows.Scan(&m.Dataset, &m.MeasuredAt, &m.Completeness, &m.Uniqueness,
			&m.Validity, &m.Consistency, &m.Timeliness, &m.Score); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListRuns returns up to limit validation runs for the dataset, newest first.
func (s *Store) ListRuns(ctx context.Context, dataset string, limit int) ([]types.ValidationResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, dataset, run_at, total_rules, passed, failed, errored, valid, outcomes
		FROM runs
		WHERE dataset = $1
		ORDER BY run_at DESC
		LIMIT $2
	`, dataset, limit)
	if err != nil {
		return nil, history.Unavailable("postgres list runs", err)
	}
	defer rows.Close()

	var out []types.ValidationResult
	for rows.Next() {
		var r types.ValidationResult
		var outcomesJSON []byte
		if err := rows.Scan(&r.RunID, &r.Dataset, &r.Timestamp, &r.TotalRules,
			&r.Passed, &r.Failed, &r.Errored, &r.Valid, &outcomesJSON); err != nil {
			return nil, err
		}
		if len(outcomesJSON) > 0 {
			if err := json.Unmarshal(outcomesJSON, &r.Outcomes); err != nil {
				return nil, fmt.Errorf("unmarshal outcomes for run %s: %w", r.RunID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const alertColumns = `alert_id, dataset, metric, condition, severity, message,
	metric_value, threshold, status, triggered_at, acknowledged_at, resolved_at,
	last_notified_at, notifications`

// GetAlert retrieves an alert by ID.
func (s *Store) GetAlert(ctx context.Context, alertID string) (*types.Alert, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE alert_id = $1`, alertID)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("alert %q: %w", alertID, history.ErrNotFound)
	}
	if err != nil {
		return nil, history.Unavailable("postgres get alert", err)
	}
	return a, nil
}

// ListOpenAlerts returns the dataset's non-RESOLVED alerts, newest first.
func (s *Store) ListOpenAlerts(ctx context.Context, dataset string) ([]types.Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE dataset = $1 AND status != 'RESOLVED'
		ORDER BY triggered_at DESC
	`, dataset)
	if err != nil {
		return nil, history.Unavailable("postgres list open alerts", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListAlerts returns recent alerts for a dataset, newest first.
func (s *Store) ListAlerts(ctx context.Context, dataset string, limit int) ([]types.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE dataset = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`, dataset, limit)
	if err != nil {
		return nil, history.Unavailable("postgres list alerts", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListAllAlerts returns recent alerts across all datasets, newest first.
func (s *Store) ListAllAlerts(ctx context.Context, limit int) ([]types.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		ORDER BY triggered_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, history.Unavailable("postgres list all alerts", err)
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListDatasets returns every dataset with recorded history, sorted.
func (s *Store) ListDatasets(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT dataset FROM metrics
		UNION SELECT dataset FROM runs
		UNION SELECT dataset FROM alerts
		ORDER BY dataset
	`)
	if err != nil {
		return nil, history.Unavailable("postgres list datasets", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func scanAlert(row pgx.Row) (*types.Alert, error) {
	var a types.Alert
	var severity, status string
	var notifJSON []byte
	if err := row.Scan(&a.AlertID, &a.Dataset, &a.Metric, &a.Condition, &severity,
		&a.Message, &a.Value, &a.Threshold, &status, &a.TriggeredAt,
		&a.AcknowledgedAt, &a.ResolvedAt, &a.LastNotifiedAt, &notifJSON); err != nil {
		return nil, err
	}
	a.Severity = types.Severity(severity)
	a.Status = types.AlertStatus(status)
	if len(notifJSON) > 0 {
		if err := json.Unmarshal(notifJSON, &a.Notifications); err != nil {
			return nil, fmt.Errorf("unmarshal notifications for alert %s: %w", a.AlertID, err)
		}
	}
	return &a, nil
}

func collectAlerts(rows pgx.Rows) ([]types.Alert, error) {
	var out []types.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
