package quality

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

func TestValidateWeights(t *testing.T) {
	assert.NoError(t, ValidateWeights(types.DefaultWeights()))

	err := ValidateWeights(types.Weights{Completeness: 0.5, Validity: 0.3})
	assert.True(t, errors.Is(err, ErrInvalidWeights))

	err = ValidateWeights(types.Weights{Completeness: 1.5, Validity: -0.5})
	assert.True(t, errors.Is(err, ErrInvalidWeights))

	// Within epsilon still passes.
	assert.NoError(t, ValidateWeights(types.Weights{
		Completeness: 0.2501, Validity: 0.30, Consistency: 0.20, Uniqueness: 0.15, Timeliness: 0.0999,
	}))
}

func TestCompleteness(t *testing.T) {
	ds, err := dataset.FromColumns("orders", []string{"a", "b"}, [][]any{
		{1, nil, 3, 4, 5},
		{nil, "x", "y", "z", "w"},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, Completeness(ds), 1e-9)
}

func TestUniqueness(t *testing.T) {
	ds, err := dataset.FromColumns("orders", []string{"id", "region"}, [][]any{
		{1, 2, 2, 3},
		{"eu", "eu", "eu", "us"},
	})
	require.NoError(t, err)

	u, err := Uniqueness(ds, "id")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, u, 1e-9)

	u, err = Uniqueness(ds)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, u, 1e-9)

	_, err = Uniqueness(ds, "ghost")
	assert.True(t, errors.Is(err, dataset.ErrMissingColumn))
}

func TestValidity_SeverityWeighted(t *testing.T) {
	outcome := func(state types.OutcomeState, sev types.Severity) types.RuleOutcome {
		return types.RuleOutcome{
			Rule:  types.RuleSpec{Columns: []string{"c"}, Kind: types.RuleNotNull, Severity: sev},
			State: state,
		}
	}

	tests := []struct {
		name     string
		outcomes []types.RuleOutcome
		want     float64
	}{
		{"no rules", nil, 1.0},
		{
			"high failure dominates low pass",
			[]types.RuleOutcome{
				outcome(types.OutcomeFailed, types.SeverityHigh),
				outcome(types.OutcomePassed, types.SeverityLow),
			},
			1.0 / 5.0,
		},
		{
			"errored counts against",
			[]types.RuleOutcome{
				outcome(types.OutcomePassed, types.SeverityMedium),
				outcome(types.OutcomeErrored, types.SeverityMedium),
			},
			0.5,
		},
		{
			"all passed",
			[]types.RuleOutcome{
				outcome(types.OutcomePassed, types.SeverityCritical),
				outcome(types.OutcomePassed, types.SeverityLow),
			},
			1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Validity(tt.outcomes), 1e-9)
		})
	}
}

func TestConsistency_CrossFieldOnly(t *testing.T) {
	outcomes := []types.RuleOutcome{
		{
			Rule:  types.RuleSpec{Columns: []string{"start", "end"}, Kind: types.RuleCompare, Severity: types.SeverityHigh},
			State: types.OutcomeFailed,
		},
		{
			Rule:  types.RuleSpec{Columns: []string{"ship", "order"}, Kind: types.RuleCompare, Severity: types.SeverityLow},
			State: types.OutcomePassed,
		},
		// Single-column compare and non-compare rules do not count.
		{
			Rule:  types.RuleSpec{Columns: []string{"qty"}, Kind: types.RuleCompare, Severity: types.SeverityHigh},
			State: types.OutcomeFailed,
		},
		{
			Rule:  types.RuleSpec{Columns: []string{"qty"}, Kind: types.RuleNotNull, Severity: types.SeverityHigh},
			State: types.OutcomeFailed,
		},
	}
	assert.InDelta(t, 0.5, Consistency(outcomes), 1e-9)
	assert.InDelta(t, 1.0, Consistency(nil), 1e-9)
}

func TestTimeliness(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sla := 24 * time.Hour

	tests := []struct {
		name string
		asOf time.Time
		sla  time.Duration
		want float64
	}{
		{"fresh", now.Add(-1 * time.Hour), sla, 1.0},
		{"exactly at sla", now.Add(-24 * time.Hour), sla, 1.0},
		{"halfway stale", now.Add(-36 * time.Hour), sla, 0.5},
		{"twice the sla", now.Add(-48 * time.Hour), sla, 0.0},
		{"far beyond", now.Add(-200 * time.Hour), sla, 0.0},
		{"no sla configured", now.Add(-500 * time.Hour), 0, 1.0},
		{"unknown timestamp", time.Time{}, sla, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Timeliness(tt.asOf, tt.sla, now), 1e-9)
		})
	}
}

func TestMeasure_EmptyDataset(t *testing.T) {
	c, err := New(types.DefaultWeights())
	require.NoError(t, err)

	ds := dataset.FromRecords("empty", nil)
	m, err := c.Measure(ds, nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, m.Completeness)
	assert.Equal(t, 1.0, m.Uniqueness)
	assert.Equal(t, 1.0, m.Validity)
	assert.Equal(t, 1.0, m.Consistency)
	assert.Equal(t, 1.0, m.Timeliness)
	assert.Equal(t, 1.0, m.Score)
}

func TestMeasure_CompositeScore(t *testing.T) {
	c, err := New(types.DefaultWeights())
	require.NoError(t, err)
	c.SetFreshnessSLA(24 * time.Hour)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ds, err := dataset.FromColumns("orders", []string{"id"}, [][]any{
		{1, 2, 2, nil},
	}, dataset.WithAsOf(now.Add(-36*time.Hour)))
	require.NoError(t, err)

	result := &types.ValidationResult{Outcomes: []types.RuleOutcome{
		{
			Rule:  types.RuleSpec{Columns: []string{"id"}, Kind: types.RuleNotNull, Severity: types.SeverityMedium},
			State: types.OutcomeFailed,
		},
	}}

	m, err := c.measureAt(ds, result, now)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, m.Completeness, 1e-9)
	assert.InDelta(t, 0.75, m.Uniqueness, 1e-9)
	assert.InDelta(t, 0.0, m.Validity, 1e-9)
	assert.InDelta(t, 1.0, m.Consistency, 1e-9)
	assert.InDelta(t, 0.5, m.Timeliness, 1e-9)

	want := 0.25*0.75 + 0.30*0.0 + 0.20*1.0 + 0.15*0.75 + 0.10*0.5
	assert.InDelta(t, want, m.Score, 1e-9)
	assert.GreaterOrEqual(t, m.Score, 0.0)
	assert.LessOrEqual(t, m.Score, 1.0)
	assert.Equal(t, "orders", m.Dataset)
	assert.Equal(t, now, m.MeasuredAt)
}

func TestMeasure_KeyColumns(t *testing.T) {
	c, err := New(types.DefaultWeights())
	require.NoError(t, err)
	c.SetKeyColumns("id")

	ds, err := dataset.FromColumns("orders", []string{"id", "note"}, [][]any{
		{1, 1},
		{"a", "b"},
	})
	require.NoError(t, err)

	m, err := c.Measure(ds, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.Uniqueness, 1e-9)
}

func TestNew_RejectsBadWeights(t *testing.T) {
	_, err := New(types.Weights{Completeness: 1.0, Validity: 0.5})
	assert.True(t, errors.Is(err, ErrInvalidWeights))
}

func TestNewFromConfig(t *testing.T) {
	c, err := NewFromConfig(nil)
	require.NoError(t, err)
	assert.NotNil(t, c)

	custom := types.Weights{Completeness: 0.4, Validity: 0.3, Consistency: 0.1, Uniqueness: 0.1, Timeliness: 0.1}
	c, err = NewFromConfig(&types.QualityConfig{
		Weights:      &custom,
		KeyColumns:   []string{"id"},
		FreshnessSLA: "24h",
	})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, c.sla)
	assert.Equal(t, []string{"id"}, c.keyColumns)

	_, err = NewFromConfig(&types.QualityConfig{FreshnessSLA: "yesterday"})
	assert.Error(t, err)

	bad := types.Weights{Completeness: 0.9}
	_, err = NewFromConfig(&types.QualityConfig{Weights: &bad})
	assert.True(t, errors.Is(err, ErrInvalidWeights))
}
