package lambdafn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Stateless(t *testing.T) {
	t.Setenv("TABLE_NAME", "")

	deps, err := Init(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, deps.Executor)
	assert.NotNil(t, deps.Registry)
	assert.Nil(t, deps.Store)
}

func TestInit_InvalidRuleTimeout(t *testing.T) {
	t.Setenv("TABLE_NAME", "")
	t.Setenv("RULE_TIMEOUT", "soon")

	_, err := Init(t.Context())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "RULE_TIMEOUT")
}

func TestInit_InvalidSeverityThreshold(t *testing.T) {
	t.Setenv("TABLE_NAME", "")
	t.Setenv("SEVERITY_THRESHOLD", "SEVERE")

	_, err := Init(t.Context())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SEVERITY_THRESHOLD")
}
