// Package engine executes rule batches against dataset snapshots and
// aggregates the outcomes into validation results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/datavet-systems/datavet/internal/rules"
	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

// Execution defaults.
const (
	defaultRuleTimeout = 30 * time.Second
	defaultSampleLimit = 100
)

// Executor runs rule batches. Rules within a batch execute concurrently on a
// bounded pool; each reads the shared immutable dataset and writes only its
// own outcome slot, so no locking is needed.
type Executor struct {
	registry    *rules.Registry
	workers     int
	ruleTimeout time.Duration
	sampleLimit int
	threshold   types.Severity
	logger      *slog.Logger
}

// New creates an Executor with default settings: one worker per CPU, 30s
// per-rule timeout, 100-row failure samples, HIGH failure threshold.
func New(reg *rules.Registry) *Executor {
	return &Executor{
		registry:    reg,
		workers:     runtime.GOMAXPROCS(0),
		ruleTimeout: defaultRuleTimeout,
		sampleLimit: defaultSampleLimit,
		threshold:   types.SeverityHigh,
		logger:      slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (e *Executor) SetLogger(l *slog.Logger) {
	if l != nil {
		e.logger = l
	}
}

// SetWorkers bounds batch concurrency. Values below 1 are ignored.
func (e *Executor) SetWorkers(n int) {
	if n >= 1 {
		e.workers = n
	}
}

// SetRuleTimeout bounds the run time of a single rule. A rule exceeding it
// is marked ERRORED, never blocking the batch.
func (e *Executor) SetRuleTimeout(d time.Duration) {
	if d > 0 {
		e.ruleTimeout = d
	}
}

// SetSampleLimit caps the failing-row sample kept per outcome.
func (e *Executor) SetSampleLimit(n int) {
	if n > 0 {
		e.sampleLimit = n
	}
}

// SetSeverityThreshold sets the minimum severity at which a failed rule
// flips the batch verdict to invalid.
func (e *Executor) SetSeverityThreshold(s types.Severity) {
	if s.Rank() > 0 {
		e.threshold = s
	}
}

// Execute runs the batch and returns one ValidationResult whose outcomes
// mirror the input spec order. Unknown rule kinds fail here, before anything
// runs. Per-rule failures (missing column, bad params, timeout) become
// ERRORED outcomes and never abort the batch. Cancellation of ctx discards
// all completed outcomes and returns the context error instead of a partial
// result.
func (e *Executor) Execute(ctx context.Context, ds *dataset.Dataset, specs []types.RuleSpec) (*types.ValidationResult, error) {
	// Resolve every kind up front so a typo fails the batch fast.
	checkers := make([]rules.Checker, len(specs))
	for i, spec := range specs {
		c, err := e.registry.Resolve(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		checkers[i] = c
	}

	ctx, span := tracer.Start(ctx, "engine.Execute", trace.WithAttributes(
		attribute.String("dataset", ds.Name()),
		attribute.Int("rules", len(specs)),
	))
	defer span.End()

	start := time.Now()
	outcomes := make([]types.RuleOutcome, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			outcomes[i] = e.runRule(gctx, ds, spec, checkers[i])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := Aggregate(ds.Name(), outcomes, e.threshold)
	result.RunID = ulid.Make().String()
	result.Timestamp = time.Now()

	for _, o := range outcomes {
		rulesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(o.State))))
	}
	batchDuration.Record(ctx, time.Since(start).Seconds())
	span.SetAttributes(attribute.Bool("valid", result.Valid), attribute.Int("failed", result.Failed))

	e.logger.Info("validation batch complete",
		"dataset", ds.Name(),
		"runID", result.RunID,
		"rules", result.TotalRules,
		"failed", result.Failed,
		"errored", result.Errored,
		"valid", result.Valid,
		"elapsed", time.Since(start),
	)
	return result, nil
}

// runRule executes one rule under its own timeout. Every exit path yields a
// complete outcome; errors are folded into the ERRORED state.
func (e *Executor) runRule(ctx context.Context, ds *dataset.Dataset, spec types.RuleSpec, check rules.Checker) types.RuleOutcome {
	if spec.Severity == "" {
		spec.Severity = types.SeverityMedium
	}
	outcome := types.RuleOutcome{Rule: spec}

	rctx, cancel := context.WithTimeout(ctx, e.ruleTimeout)
	defer cancel()

	start := time.Now()
	res, err := check(rctx, ds, spec, e.sampleLimit)
	outcome.Elapsed = time.Since(start)

	switch {
	case err == nil:
		outcome.RowsEvaluated = res.Evaluated
		outcome.FailedRows = res.Failed
		outcome.Sample = res.Sample
		if res.Failed > 0 {
			outcome.State = types.OutcomeFailed
		} else {
			outcome.State = types.OutcomePassed
		}
	case ctx.Err() != nil:
		// Parent cancellation; the whole batch is being discarded.
		outcome.State = types.OutcomeErrored
		outcome.Err = ctx.Err().Error()
	case errors.Is(err, context.DeadlineExceeded):
		outcome.State = types.OutcomeErrored
		outcome.Err = fmt.Sprintf("rule timed out after %s", e.ruleTimeout)
		e.logger.Warn("rule timed out", "dataset", ds.Name(), "rule", spec.Label(), "timeout", e.ruleTimeout)
	default:
		outcome.State = types.OutcomeErrored
		outcome.Err = err.Error()
		e.logger.Warn("rule errored", "dataset", ds.Name(), "rule", spec.Label(), "error", err)
	}
	return outcome
}
