// Package commands implements the subcommands of the datavet CLI.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/datavet-systems/datavet/internal/config"
	"github.com/datavet-systems/datavet/internal/engine"
	"github.com/datavet-systems/datavet/internal/history"
	ddbhist "github.com/datavet-systems/datavet/internal/history/dynamo"
	pghist "github.com/datavet-systems/datavet/internal/history/postgres"
	redishist "github.com/datavet-systems/datavet/internal/history/redis"
	"github.com/datavet-systems/datavet/pkg/types"
)

// newStore creates the history store named by the project config.
func newStore(ctx context.Context, cfg *types.ProjectConfig) (history.Store, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		return history.NewMemory(), nil
	case config.StoreRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis config is required when store is redis")
		}
		return redishist.New(cfg.Redis), nil
	case config.StorePostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres config is required when store is postgres")
		}
		return pghist.New(ctx, cfg.Postgres.DSN)
	case config.StoreDynamo:
		if cfg.Dynamo == nil {
			return nil, fmt.Errorf("dynamodb config is required when store is dynamodb")
		}
		return ddbhist.New(cfg.Dynamo)
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}

// loadOptionalConfig loads datavet.yaml from the working directory when it
// exists. One-shot validation works without a project config.
func loadOptionalConfig() (*types.ProjectConfig, error) {
	cfg, err := config.Load(".")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

// readRecords loads dataset records from a JSON file. Both a top-level array
// of objects and one object per line (JSON Lines) are accepted.
func readRecords(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []map[string]any
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parsing input %s: %w", path, err)
		}
		return records, nil
	}

	var records []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("parsing input %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// applyEngineConfig copies optional engine settings onto an executor. The
// setters ignore zero values, so absent fields keep their defaults.
func applyEngineConfig(exec *engine.Executor, ec *types.EngineConfig) {
	if ec == nil {
		return
	}
	exec.SetWorkers(ec.Workers)
	exec.SetSampleLimit(ec.SampleLimit)
	if ec.RuleTimeout != "" {
		if d, err := time.ParseDuration(ec.RuleTimeout); err == nil {
			exec.SetRuleTimeout(d)
		}
	}
	if ec.SeverityThreshold != "" {
		if sev, err := types.ParseSeverity(string(ec.SeverityThreshold)); err == nil {
			exec.SetSeverityThreshold(sev)
		}
	}
}
