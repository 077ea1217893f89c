package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

// AppendMetrics upserts one metric snapshot keyed by (dataset, measured_at),
// so replaying the same snapshot is idempotent.
func (s *Store) AppendMetrics(ctx context.Context, m types.QualityMetrics) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metrics (dataset, measured_at, completeness, uniqueness, validity, consistency, timeliness, quality_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dataset, measured_at) DO UPDATE SET
			completeness  = EXCLUDED.completeness,
			uniqueness    = EXCLUDED.uniqueness,
			validity      = EXCLUDED.validity,
			consistency   = EXCLUDED.consistency,
			timeliness    = EXCLUDED.timeliness,
			quality_score = EXCLUDED.quality_score
	`, m.Dataset, m.MeasuredAt, m.Completeness, m.Uniqueness, m.Validity, m.Consistency, m.Timeliness, m.Score)
	if err != nil {
		return history.Unavailable("postgres append metrics", err)
	}
	return nil
}

// RecordRun upserts one validation run keyed by run ID.
func (s *Store) RecordRun(ctx context.Context, result types.ValidationResult) error {
	outcomesJSON, err := json.Marshal(result.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal run outcomes: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (run_id, dataset, run_at, total_rules, passed, failed, errored, valid, outcomes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			total_rules = EXCLUDED.total_rules,
			passed      = EXCLUDED.passed,
			failed      = EXCLUDED.failed,
			errored     = EXCLUDED.errored,
			valid       = EXCLUDED.valid,
			outcomes    = EXCLUDED.outcomes
	`, result.RunID, result.Dataset, result.Timestamp, result.TotalRules,
		result.Passed, result.Failed, result.Errored, result.Valid, outcomesJSON)
	if err != nil {
		return history.Unavailable("postgres record run", err)
	}
	return nil
}

// UpsertAlert stores or replaces an alert by its ID.
func (s *Store) UpsertAlert(ctx context.Context, alert types.Alert) error {
	if alert.AlertID == "" {
		return fmt.Errorf("upsert alert: empty alert ID")
	}
	notifJSON, err := json.Marshal(alert.Notifications)
	if err != nil {
		return fmt.Errorf("marshal alert notifications: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO alerts (alert_id, dataset, metric, condition, severity, message,
			metric_value, threshold, status, triggered_at, acknowledged_at, resolved_at,
			last_notified_at, notifications)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (alert_id) DO UPDATE SET
			severity         = EXCLUDED.severity,
			message          = EXCLUDED.message,
			metric_value     = EXCLUDED.metric_value,
			status           = EXCLUDED.status,
			acknowledged_at  = EXCLUDED.acknowledged_at,
			resolved_at      = EXCLUDED.resolved_at,
			last_notified_at = EXCLUDED.last_notified_at,
			notifications    = EXCLUDED.notifications
	`, alert.AlertID, alert.Dataset, alert.Metric, alert.Condition, string(alert.Severity),
		alert.Message, alert.Value, alert.Threshold, string(alert.Status), alert.TriggeredAt,
		alert.AcknowledgedAt, alert.ResolvedAt, alert.LastNotifiedAt, notifJSON)
	if err != nil {
		return history.Unavailable("postgres upsert alert", err)
	}
	return nil
}

// PruneBefore deletes metrics and runs older than cutoff plus RESOLVED alerts
// resolved before it.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0

	tag, err := s.pool.Exec(ctx, `DELETE FROM metrics WHERE measured_at < $1`, cutoff)
	if err != nil {
		return removed, history.Unavailable("postgres prune metrics", err)
	}
	removed += int(tag.RowsAffected())

	tag, err = s.pool.Exec(ctx, `DELETE FROM runs WHERE run_at < $1`, cutoff)
	if err != nil {
		return removed, history.Unavailable("postgres prune runs", err)
	}
	removed += int(tag.RowsAffected())

	tag, err = s.pool.Exec(ctx, `
		DELETE FROM alerts WHERE status = 'RESOLVED' AND resolved_at IS NOT NULL AND resolved_at < $1
	`, cutoff)
	if err != nil {
		return removed, history.Unavailable("postgres prune alerts", err)
	}
	removed += int(tag.RowsAffected())

	return removed, nil
}
