package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

func TestRegistry_ResolveBuiltins(t *testing.T) {
	r := NewRegistry()

	for _, kind := range []types.RuleKind{
		types.RuleNotNull, types.RuleUnique, types.RuleRange, types.RulePattern,
		types.RuleInSet, types.RuleCompare, types.RuleLength,
		types.RuleDateNotFuture, types.RuleDateNotPast, types.RuleDateRange,
		types.RuleEmail, types.RulePhone, types.RuleURL,
	} {
		c, err := r.Resolve(kind)
		require.NoError(t, err, "kind %s", kind)
		assert.NotNil(t, c)
	}
}

func TestRegistry_ResolveUnknownKind(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("no-such-kind")
	assert.True(t, errors.Is(err, ErrUnknownRuleKind))
	assert.Contains(t, err.Error(), "no-such-kind")
}

func TestRegistry_RegisterCustomKind(t *testing.T) {
	r := NewRegistry()

	custom := func(_ context.Context, ds *dataset.Dataset, _ types.RuleSpec, _ int) (*CheckResult, error) {
		return &CheckResult{Evaluated: ds.Rows()}, nil
	}
	require.NoError(t, r.Register("row-parity", custom))

	c, err := r.Resolve("row-parity")
	require.NoError(t, err)

	ds := dataset.FromRecords("t", []map[string]any{{"a": 1}})
	res, err := c(context.Background(), ds, types.RuleSpec{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
}

func TestRegistry_RegisterDuplicateKind(t *testing.T) {
	r := NewRegistry()

	err := r.Register(types.RuleNotNull, checkNotNull)
	assert.True(t, errors.Is(err, ErrDuplicateRuleKind))
}

func TestRegistry_RegisterOverrideReplaces(t *testing.T) {
	r := NewRegistry()

	called := false
	r.RegisterOverride(types.RuleNotNull, func(_ context.Context, _ *dataset.Dataset, _ types.RuleSpec, _ int) (*CheckResult, error) {
		called = true
		return &CheckResult{}, nil
	})

	c, err := r.Resolve(types.RuleNotNull)
	require.NoError(t, err)
	_, err = c(context.Background(), nil, types.RuleSpec{}, 0)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestRegistry_KindsSorted(t *testing.T) {
	r := NewRegistry()

	kinds := r.Kinds()
	assert.Len(t, kinds, 13)
	for i := 1; i < len(kinds); i++ {
		assert.Less(t, string(kinds[i-1]), string(kinds[i]))
	}
}
