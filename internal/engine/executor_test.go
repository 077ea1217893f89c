package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/datavet-systems/datavet/internal/rules"
	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ageDataset builds 100 rows where 5 carry age=150.
func ageDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	cells := make([]any, 100)
	for i := range cells {
		cells[i] = 30
	}
	for _, i := range []int{10, 25, 40, 70, 99} {
		cells[i] = 150
	}
	ds, err := dataset.FromColumns("users", []string{"age"}, [][]any{cells})
	require.NoError(t, err)
	return ds
}

func TestExecute_AgeRangeScenario(t *testing.T) {
	e := New(rules.NewRegistry())

	result, err := e.Execute(context.Background(), ageDataset(t), []types.RuleSpec{{
		Columns:  []string{"age"},
		Kind:     types.RuleRange,
		Severity: types.SeverityHigh,
		Params:   map[string]any{"min": 18, "max": 100},
	}})
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 1)
	o := result.Outcomes[0]
	assert.Equal(t, types.OutcomeFailed, o.State)
	assert.Equal(t, 5, o.FailedRows)
	assert.Equal(t, 100, o.RowsEvaluated)
	assert.False(t, result.Valid, "HIGH severity failure must invalidate the batch")
	assert.NotEmpty(t, result.RunID)
}

func TestExecute_UnknownKindFailsBeforeExecution(t *testing.T) {
	e := New(rules.NewRegistry())

	_, err := e.Execute(context.Background(), ageDataset(t), []types.RuleSpec{
		{Columns: []string{"age"}, Kind: types.RuleNotNull},
		{Columns: []string{"age"}, Kind: "no-such-kind"},
	})
	assert.True(t, errors.Is(err, rules.ErrUnknownRuleKind))
}

func TestExecute_OutcomeOrderMirrorsSpecs(t *testing.T) {
	e := New(rules.NewRegistry())
	e.SetWorkers(8)

	specs := []types.RuleSpec{
		{Columns: []string{"age"}, Kind: types.RuleNotNull},
		{Columns: []string{"age"}, Kind: types.RuleUnique},
		{Columns: []string{"age"}, Kind: types.RuleRange, Params: map[string]any{"min": 0, "max": 200}},
		{Columns: []string{"age"}, Kind: types.RuleCompare, Params: map[string]any{"operator": ">", "value": 0}},
	}
	result, err := e.Execute(context.Background(), ageDataset(t), specs)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, len(specs))
	for i, o := range result.Outcomes {
		assert.Equal(t, specs[i].Kind, o.Rule.Kind, "outcome %d out of order", i)
	}
}

func TestExecute_MissingColumnIsolatedToOneRule(t *testing.T) {
	e := New(rules.NewRegistry())

	result, err := e.Execute(context.Background(), ageDataset(t), []types.RuleSpec{
		{Columns: []string{"ghost"}, Kind: types.RuleNotNull, Severity: types.SeverityLow},
		{Columns: []string{"age"}, Kind: types.RuleNotNull, Severity: types.SeverityHigh},
	})
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeErrored, result.Outcomes[0].State)
	assert.Contains(t, result.Outcomes[0].Err, "ghost")
	assert.Equal(t, types.OutcomePassed, result.Outcomes[1].State)
	assert.Equal(t, 1, result.Errored)
	assert.Equal(t, 1, result.Passed)
	assert.True(t, result.Valid, "LOW severity error must not invalidate")
}

func TestExecute_ErroredSeverityFlipsVerdict(t *testing.T) {
	e := New(rules.NewRegistry())

	result, err := e.Execute(context.Background(), ageDataset(t), []types.RuleSpec{
		{Columns: []string{"ghost"}, Kind: types.RuleNotNull, Severity: types.SeverityCritical},
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestExecute_RuleTimeoutBecomesErroredOutcome(t *testing.T) {
	reg := rules.NewRegistry()
	require.NoError(t, reg.Register("stall", func(ctx context.Context, _ *dataset.Dataset, _ types.RuleSpec, _ int) (*rules.CheckResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	e := New(reg)
	e.SetRuleTimeout(20 * time.Millisecond)

	result, err := e.Execute(context.Background(), ageDataset(t), []types.RuleSpec{
		{Columns: []string{"age"}, Kind: "stall", Severity: types.SeverityLow},
		{Columns: []string{"age"}, Kind: types.RuleNotNull},
	})
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeErrored, result.Outcomes[0].State)
	assert.Contains(t, result.Outcomes[0].Err, "timed out")
	assert.Equal(t, types.OutcomePassed, result.Outcomes[1].State)
}

func TestExecute_CancellationPublishesNothing(t *testing.T) {
	reg := rules.NewRegistry()
	require.NoError(t, reg.Register("stall", func(ctx context.Context, _ *dataset.Dataset, _ types.RuleSpec, _ int) (*rules.CheckResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	e := New(reg)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := e.Execute(ctx, ageDataset(t), []types.RuleSpec{
		{Columns: []string{"age"}, Kind: types.RuleNotNull},
		{Columns: []string{"age"}, Kind: "stall"},
	})
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExecute_DefaultsSeverityToMedium(t *testing.T) {
	e := New(rules.NewRegistry())

	result, err := e.Execute(context.Background(), ageDataset(t), []types.RuleSpec{
		{Columns: []string{"age"}, Kind: types.RuleNotNull},
	})
	require.NoError(t, err)
	assert.Equal(t, types.SeverityMedium, result.Outcomes[0].Rule.Severity)
}

func TestExecute_ConcurrentMatchesSequential(t *testing.T) {
	specs := []types.RuleSpec{
		{Columns: []string{"age"}, Kind: types.RuleNotNull},
		{Columns: []string{"age"}, Kind: types.RuleUnique},
		{Columns: []string{"age"}, Kind: types.RuleRange, Params: map[string]any{"min": 18, "max": 100}},
		{Columns: []string{"age"}, Kind: types.RuleCompare, Params: map[string]any{"operator": "<", "value": 200}},
		{Columns: []string{"age"}, Kind: types.RuleInSet, Params: map[string]any{"values": []any{30, 150}}},
	}
	ds := ageDataset(t)

	sequential := New(rules.NewRegistry())
	sequential.SetWorkers(1)
	seq, err := sequential.Execute(context.Background(), ds, specs)
	require.NoError(t, err)

	concurrent := New(rules.NewRegistry())
	concurrent.SetWorkers(8)
	for i := 0; i < 10; i++ {
		got, err := concurrent.Execute(context.Background(), ds, specs)
		require.NoError(t, err)

		require.Equal(t, len(seq.Outcomes), len(got.Outcomes))
		for i := range seq.Outcomes {
			assert.Equal(t, seq.Outcomes[i].State, got.Outcomes[i].State)
			assert.Equal(t, seq.Outcomes[i].FailedRows, got.Outcomes[i].FailedRows)
			assert.Equal(t, seq.Outcomes[i].RowsEvaluated, got.Outcomes[i].RowsEvaluated)
		}
		assert.Equal(t, seq.Valid, got.Valid)
	}
}

func TestExecute_EmptyBatch(t *testing.T) {
	e := New(rules.NewRegistry())

	result, err := e.Execute(context.Background(), ageDataset(t), nil)
	require.NoError(t, err)
	assert.Zero(t, result.TotalRules)
	assert.True(t, result.Valid)
}
