// Package monitor evaluates quality metric snapshots against alert conditions
// and drives the alert lifecycle: trigger, refresh, acknowledge, resolve.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/pkg/types"
)

const defaultCooldown = 30 * time.Minute

// NotifyFunc delivers an alert through the configured sinks. channel names a
// single sink; empty means every sink. One record per delivery attempt.
type NotifyFunc func(ctx context.Context, alert types.Alert, channel string) []types.NotificationRecord

// Report summarizes one Observe pass.
type Report struct {
	Metrics        types.QualityMetrics `json:"metrics"`
	Triggered      []types.Alert        `json:"triggered,omitempty"`
	Refreshed      []types.Alert        `json:"refreshed,omitempty"`
	Resolved       []types.Alert        `json:"resolved,omitempty"`
	TrendAnomalies []TrendAnomaly       `json:"trendAnomalies,omitempty"`
	// Degraded is set when the history store is unavailable: the snapshot is
	// still returned to the caller but alert evaluation was skipped.
	Degraded bool `json:"degraded,omitempty"`
}

// Monitor owns alert evaluation for every dataset. History access is
// serialized per dataset key; different datasets proceed independently.
type Monitor struct {
	store  history.Store
	notify NotifyFunc
	logger *slog.Logger

	conditions  []types.AlertCondition
	cooldown    time.Duration
	trend       *types.TrendConfig
	maintenance []types.MaintenanceWindow
	retention   time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Monitor on the given history store. A nil config yields a
// monitor with no conditions, which records snapshots and nothing else.
func New(store history.Store, cfg *types.MonitorConfig) *Monitor {
	m := &Monitor{
		store:    store,
		logger:   slog.Default(),
		cooldown: defaultCooldown,
		locks:    make(map[string]*sync.Mutex),
	}
	if cfg == nil {
		return m
	}

	m.conditions = cfg.Conditions
	m.maintenance = cfg.Maintenance
	m.trend = cfg.Trend
	if m.trend != nil && m.trend.Window <= 0 && cfg.HistoryWindow > 0 {
		t := *m.trend
		t.Window = cfg.HistoryWindow
		m.trend = &t
	}
	if cfg.Cooldown != "" {
		if d, err := time.ParseDuration(cfg.Cooldown); err == nil && d >= 0 {
			m.cooldown = d
		}
	}
	if cfg.Retention != "" {
		if d, err := time.ParseDuration(cfg.Retention); err == nil && d > 0 {
			m.retention = d
		}
	}
	return m
}

// SetLogger overrides the default logger.
func (m *Monitor) SetLogger(l *slog.Logger) {
	if l != nil {
		m.logger = l
	}
}

// SetNotifier wires the notification dispatcher. Without one, alerts still
// transition state but nothing is delivered.
func (m *Monitor) SetNotifier(fn NotifyFunc) {
	m.notify = fn
}

// datasetLock returns the mutex serializing history access for one dataset.
func (m *Monitor) datasetLock(dataset string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[dataset]
	if !ok {
		l = &sync.Mutex{}
		m.locks[dataset] = l
	}
	return l
}

// breach captures one condition evaluation that currently holds.
type breach struct {
	metric    string
	condStr   string
	severity  types.Severity
	channel   string
	value     float64
	threshold float64
	message   string
}

// Observe appends the snapshot to history and evaluates every configured
// condition against it. An unavailable history store degrades the pass
// (snapshot still returned, alert evaluation skipped) instead of failing it.
func (m *Monitor) Observe(ctx context.Context, metrics types.QualityMetrics) (*Report, error) {
	return m.observeAt(ctx, metrics, time.Now())
}

func (m *Monitor) observeAt(ctx context.Context, metrics types.QualityMetrics, now time.Time) (*Report, error) {
	if metrics.Dataset == "" {
		return nil, fmt.Errorf("metrics carry no dataset name")
	}

	lock := m.datasetLock(metrics.Dataset)
	lock.Lock()
	defer lock.Unlock()

	report := &Report{Metrics: metrics}

	if err := m.store.AppendMetrics(ctx, metrics); err != nil {
		if errors.Is(err, history.ErrUnavailable) {
			m.logger.Warn("history unavailable, alert evaluation skipped",
				"dataset", metrics.Dataset, "error", err)
			report.Degraded = true
			return report, nil
		}
		return nil, err
	}

	// Evaluate conditions into a breach set. A nil entry means the condition
	// was checked and is clear, which resolves any open alert on that key.
	evaluated := make(map[string]*breach)
	var order []string

	for _, cond := range m.conditions {
		value, ok := metrics.Dimension(cond.Metric)
		if !ok {
			m.logger.Warn("alert condition references unknown metric", "metric", cond.Metric)
			continue
		}
		if !ValidOperator(cond.Operator) {
			m.logger.Warn("alert condition has unknown operator",
				"metric", cond.Metric, "operator", cond.Operator)
			continue
		}
		condStr := cond.String()
		key := alertKey(metrics.Dataset, cond.Metric, condStr)
		if _, seen := evaluated[key]; seen {
			continue
		}
		order = append(order, key)
		if !conditionHolds(value, cond.Operator, cond.Threshold) {
			evaluated[key] = nil
			continue
		}
		severity := cond.Severity
		if severity == "" {
			severity = types.SeverityHigh
		}
		evaluated[key] = &breach{
			metric:    cond.Metric,
			condStr:   condStr,
			severity:  severity,
			channel:   cond.Channel,
			value:     value,
			threshold: cond.Threshold,
			message:   fmt.Sprintf("%s is %.4g, breaching %s", cond.Metric, value, condStr),
		}
	}

	if m.trend != nil && m.trend.Enabled {
		m.evaluateTrend(ctx, metrics, evaluated, &order, report)
	}

	open, err := m.store.ListOpenAlerts(ctx, metrics.Dataset)
	if err != nil {
		if errors.Is(err, history.ErrUnavailable) {
			m.logger.Warn("history unavailable, alert evaluation skipped",
				"dataset", metrics.Dataset, "error", err)
			report.Degraded = true
			return report, nil
		}
		return nil, err
	}
	openByKey := make(map[string]types.Alert, len(open))
	for _, a := range open {
		openByKey[a.Key()] = a
	}

	for _, key := range order {
		br := evaluated[key]
		existing, exists := openByKey[key]
		switch {
		case br != nil && !exists:
			alert := newAlert(metrics.Dataset, *br, now)
			m.sendNotifications(ctx, &alert, br.channel, now)
			m.persistAlert(ctx, alert, report)
			report.Triggered = append(report.Triggered, alert)
			m.logger.Info("alert triggered",
				"dataset", metrics.Dataset, "alertID", alert.AlertID,
				"condition", alert.Condition, "value", alert.Value)

		case br != nil && exists:
			existing.Value = br.value
			existing.Message = br.message
			if m.canRenotify(existing, now) {
				m.sendNotifications(ctx, &existing, br.channel, now)
			}
			m.persistAlert(ctx, existing, report)
			report.Refreshed = append(report.Refreshed, existing)

		case br == nil && exists:
			if err := Transition(existing.Status, types.AlertResolved); err != nil {
				m.logger.Warn("cannot resolve alert", "alertID", existing.AlertID, "error", err)
				continue
			}
			t := now
			existing.Status = types.AlertResolved
			existing.ResolvedAt = &t
			m.persistAlert(ctx, existing, report)
			report.Resolved = append(report.Resolved, existing)
			m.logger.Info("alert resolved",
				"dataset", metrics.Dataset, "alertID", existing.AlertID,
				"condition", existing.Condition)
		}
	}
	return report, nil
}

// evaluateTrend folds trend checks into the breach set and records anomalies
// on the report. Trend alerts share the lifecycle of threshold alerts; their
// condition strings keep the keys distinct.
func (m *Monitor) evaluateTrend(ctx context.Context, metrics types.QualityMetrics, evaluated map[string]*breach, order *[]string, report *Report) {
	recent, err := m.store.ListMetrics(ctx, metrics.Dataset, trendWindow(*m.trend)+1)
	if err != nil {
		m.logger.Warn("trend detection skipped", "dataset", metrics.Dataset, "error", err)
		return
	}

	severity := m.trend.Severity
	if severity == "" {
		severity = types.SeverityMedium
	}

	for _, check := range runTrendChecks(*m.trend, metrics, historyBefore(recent, metrics.MeasuredAt)) {
		if check.skipped {
			continue
		}
		key := alertKey(metrics.Dataset, check.metric, check.condition)
		if _, seen := evaluated[key]; seen {
			continue
		}
		*order = append(*order, key)
		if check.anomaly == nil {
			evaluated[key] = nil
			continue
		}
		report.TrendAnomalies = append(report.TrendAnomalies, *check.anomaly)
		evaluated[key] = &breach{
			metric:    check.metric,
			condStr:   check.condition,
			severity:  severity,
			value:     check.anomaly.Value,
			threshold: check.bound,
			message: fmt.Sprintf("%s is %.4g, %.2fσ from the trend mean %.4g",
				check.metric, check.anomaly.Value, check.anomaly.Deviation, check.anomaly.Mean),
		}
	}
}

// historyBefore drops the just-appended snapshot so the trend window covers
// only prior history.
func historyBefore(snaps []types.QualityMetrics, measuredAt time.Time) []types.QualityMetrics {
	var out []types.QualityMetrics
	for _, s := range snaps {
		if s.MeasuredAt.Equal(measuredAt) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// sendNotifications dispatches the alert and appends the delivery records.
// Maintenance windows suppress delivery; the alert state change stands.
func (m *Monitor) sendNotifications(ctx context.Context, alert *types.Alert, channel string, now time.Time) {
	if m.notify == nil || m.inMaintenance(now) {
		return
	}
	records := m.notify(ctx, *alert, channel)
	alert.Notifications = append(alert.Notifications, records...)
	t := now
	alert.LastNotifiedAt = &t
	for _, r := range records {
		if !r.Success {
			m.logger.Warn("alert notification failed",
				"alertID", alert.AlertID, "channel", r.Channel, "error", r.Error)
		}
	}
}

// canRenotify gates repeat notification of an already-open alert. Failed
// attempts count: the cooldown runs from the attempt, not the delivery.
func (m *Monitor) canRenotify(alert types.Alert, now time.Time) bool {
	if alert.LastNotifiedAt == nil {
		return true
	}
	return now.Sub(*alert.LastNotifiedAt) >= m.cooldown
}

func (m *Monitor) persistAlert(ctx context.Context, alert types.Alert, report *Report) {
	if err := m.store.UpsertAlert(ctx, alert); err != nil {
		m.logger.Warn("failed to persist alert", "alertID", alert.AlertID, "error", err)
		if errors.Is(err, history.ErrUnavailable) {
			report.Degraded = true
		}
	}
}

func newAlert(dataset string, br breach, now time.Time) types.Alert {
	return types.Alert{
		AlertID:     ulid.Make().String(),
		Dataset:     dataset,
		Metric:      br.metric,
		Condition:   br.condStr,
		Severity:    br.severity,
		Message:     br.message,
		Value:       br.value,
		Threshold:   br.threshold,
		Status:      types.AlertActive,
		TriggeredAt: now,
	}
}

// Acknowledge marks an open alert as acknowledged by an operator.
func (m *Monitor) Acknowledge(ctx context.Context, alertID string) (*types.Alert, error) {
	return m.setStatus(ctx, alertID, types.AlertAcknowledged)
}

// Resolve resolves an open alert without waiting for the condition to clear.
func (m *Monitor) Resolve(ctx context.Context, alertID string) (*types.Alert, error) {
	return m.setStatus(ctx, alertID, types.AlertResolved)
}

func (m *Monitor) setStatus(ctx context.Context, alertID string, to types.AlertStatus) (*types.Alert, error) {
	probe, err := m.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	lock := m.datasetLock(probe.Dataset)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the dataset lock so a concurrent Observe is not lost.
	alert, err := m.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if err := Transition(alert.Status, to); err != nil {
		return nil, err
	}

	now := time.Now()
	alert.Status = to
	switch to {
	case types.AlertAcknowledged:
		alert.AcknowledgedAt = &now
	case types.AlertResolved:
		alert.ResolvedAt = &now
	}
	if err := m.store.UpsertAlert(ctx, *alert); err != nil {
		return nil, err
	}
	m.logger.Info("alert status changed", "alertID", alertID, "status", to)
	return alert, nil
}

// conditionHolds evaluates value against the operator and threshold.
func conditionHolds(value float64, operator string, threshold float64) bool {
	switch operator {
	case "<":
		return value < threshold
	case "<=":
		return value <= threshold
	case ">":
		return value > threshold
	case ">=":
		return value >= threshold
	case "==", "=":
		return value == threshold
	case "!=":
		return value != threshold
	default:
		return false
	}
}

// ValidOperator reports whether the comparison operator is recognized.
func ValidOperator(op string) bool {
	switch op {
	case "<", "<=", ">", ">=", "==", "=", "!=":
		return true
	default:
		return false
	}
}

// alertKey mirrors types.Alert.Key for a condition that has no alert yet.
func alertKey(dataset, metric, condition string) string {
	return dataset + "|" + metric + "|" + condition
}
