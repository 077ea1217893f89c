package lambdafn

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/datavet-systems/datavet/internal/engine"
	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/internal/history/dynamo"
	"github.com/datavet-systems/datavet/internal/rules"
	"github.com/datavet-systems/datavet/pkg/types"
)

// Deps holds shared dependencies for the Lambda handler.
type Deps struct {
	Executor *engine.Executor
	Registry *rules.Registry
	Store    history.Store
	Logger   *slog.Logger
}

// Init creates shared dependencies from environment variables.
// Reads: TABLE_NAME (optional DynamoDB history store), AWS_REGION,
// RULE_TIMEOUT, SEVERITY_THRESHOLD. Without TABLE_NAME the function runs
// stateless and records nothing.
func Init(_ context.Context) (*Deps, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	reg := rules.NewRegistry()
	exec := engine.New(reg)
	exec.SetLogger(logger)

	if v := os.Getenv("RULE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing RULE_TIMEOUT: %w", err)
		}
		exec.SetRuleTimeout(d)
	}
	if v := os.Getenv("SEVERITY_THRESHOLD"); v != "" {
		sev, err := types.ParseSeverity(v)
		if err != nil {
			return nil, fmt.Errorf("parsing SEVERITY_THRESHOLD: %w", err)
		}
		exec.SetSeverityThreshold(sev)
	}

	var store history.Store
	if tableName := os.Getenv("TABLE_NAME"); tableName != "" {
		ddb, err := dynamo.New(&types.DynamoConfig{
			TableName: tableName,
			Region:    os.Getenv("AWS_REGION"),
		})
		if err != nil {
			return nil, fmt.Errorf("creating DynamoDB store: %w", err)
		}
		ddb.SetLogger(logger)
		store = ddb
	}

	return &Deps{
		Executor: exec,
		Registry: reg,
		Store:    store,
		Logger:   logger,
	}, nil
}
