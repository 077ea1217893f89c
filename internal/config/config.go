// Package config handles loading and validation of datavet.yaml project
// configuration, including secretsmanager:// reference resolution.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/datavet-systems/datavet/internal/monitor"
	"github.com/datavet-systems/datavet/internal/quality"
	"github.com/datavet-systems/datavet/pkg/types"
)

// FileName is the project configuration file looked up in the config dir.
const FileName = "datavet.yaml"

// Store backend names accepted in the store field.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreDynamo   = "dynamodb"
)

// Load reads and parses datavet.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	return LoadContext(context.Background(), dir, nil)
}

// LoadContext is Load with a caller-supplied context and Secrets Manager
// client. A nil client builds the default one when the config holds a
// secretsmanager:// reference.
func LoadContext(ctx context.Context, dir string, secrets SecretsAPI) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := resolveSecrets(ctx, &cfg, secrets); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.Store == "" {
		cfg.Store = StoreMemory
	}
	if cfg.Server != nil && cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

func validate(cfg *types.ProjectConfig) error {
	switch cfg.Store {
	case StoreMemory:
	case StoreRedis:
		if cfg.Redis == nil {
			return fmt.Errorf("redis config is required when store is redis")
		}
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required")
		}
	case StorePostgres:
		if cfg.Postgres == nil {
			return fmt.Errorf("postgres config is required when store is postgres")
		}
		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required")
		}
	case StoreDynamo:
		if cfg.Dynamo == nil {
			return fmt.Errorf("dynamodb config is required when store is dynamodb")
		}
		if cfg.Dynamo.TableName == "" {
			return fmt.Errorf("dynamodb.tableName is required")
		}
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}

	for i, sink := range cfg.Alerts {
		if err := validateSink(sink); err != nil {
			return fmt.Errorf("alerts[%d]: %w", i, err)
		}
	}

	if cfg.Engine != nil {
		if cfg.Engine.RuleTimeout != "" {
			if _, err := time.ParseDuration(cfg.Engine.RuleTimeout); err != nil {
				return fmt.Errorf("engine.ruleTimeout: %w", err)
			}
		}
		if cfg.Engine.SeverityThreshold != "" {
			if _, err := types.ParseSeverity(string(cfg.Engine.SeverityThreshold)); err != nil {
				return fmt.Errorf("engine.severityThreshold: %w", err)
			}
		}
	}

	if cfg.Quality != nil {
		if cfg.Quality.Weights != nil {
			if err := quality.ValidateWeights(*cfg.Quality.Weights); err != nil {
				return fmt.Errorf("quality.weights: %w", err)
			}
		}
		if cfg.Quality.FreshnessSLA != "" {
			if _, err := time.ParseDuration(cfg.Quality.FreshnessSLA); err != nil {
				return fmt.Errorf("quality.freshnessSla: %w", err)
			}
		}
	}

	if cfg.Monitor != nil {
		if err := validateMonitor(cfg.Monitor); err != nil {
			return err
		}
	}
	return nil
}

func validateMonitor(mc *types.MonitorConfig) error {
	for i, cond := range mc.Conditions {
		if !knownMetric(cond.Metric) {
			return fmt.Errorf("monitor.conditions[%d]: unknown metric %q", i, cond.Metric)
		}
		if !monitor.ValidOperator(cond.Operator) {
			return fmt.Errorf("monitor.conditions[%d]: unknown operator %q", i, cond.Operator)
		}
		if cond.Severity != "" {
			if _, err := types.ParseSeverity(string(cond.Severity)); err != nil {
				return fmt.Errorf("monitor.conditions[%d]: %w", i, err)
			}
		}
	}
	if mc.Cooldown != "" {
		if _, err := time.ParseDuration(mc.Cooldown); err != nil {
			return fmt.Errorf("monitor.cooldown: %w", err)
		}
	}
	if mc.Retention != "" {
		if _, err := time.ParseDuration(mc.Retention); err != nil {
			return fmt.Errorf("monitor.retention: %w", err)
		}
	}
	if mc.SweepSchedule != "" {
		if _, err := cron.ParseStandard(mc.SweepSchedule); err != nil {
			return fmt.Errorf("monitor.sweepSchedule: %w", err)
		}
	}
	for i, w := range mc.Maintenance {
		if err := validateMaintenance(w); err != nil {
			return fmt.Errorf("monitor.maintenance[%d]: %w", i, err)
		}
	}
	return nil
}

var weekdays = map[string]struct{}{
	"sunday": {}, "monday": {}, "tuesday": {}, "wednesday": {},
	"thursday": {}, "friday": {}, "saturday": {},
}

func validateMaintenance(w types.MaintenanceWindow) error {
	for _, d := range w.Days {
		if _, ok := weekdays[strings.ToLower(d)]; !ok {
			return fmt.Errorf("unknown day %q", d)
		}
	}
	for _, d := range w.Dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", d)
		}
	}
	if w.Start != "" {
		if _, err := time.Parse("15:04", w.Start); err != nil {
			return fmt.Errorf("invalid start %q: expected HH:MM", w.Start)
		}
	}
	if w.End != "" {
		if _, err := time.Parse("15:04", w.End); err != nil {
			return fmt.Errorf("invalid end %q: expected HH:MM", w.End)
		}
	}
	if w.Timezone != "" {
		if _, err := time.LoadLocation(w.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q", w.Timezone)
		}
	}
	return nil
}

func validateSink(s types.SinkConfig) error {
	switch s.Type {
	case types.SinkConsole, types.SinkEventBridge:
	case types.SinkFile:
		if s.Path == "" {
			return fmt.Errorf("file sink requires path")
		}
	case types.SinkWebhook:
		if s.URL == "" {
			return fmt.Errorf("webhook sink requires url")
		}
	case types.SinkSNS:
		if s.TopicARN == "" {
			return fmt.Errorf("sns sink requires topicArn")
		}
	case types.SinkSQS:
		if s.QueueURL == "" {
			return fmt.Errorf("sqs sink requires queueUrl")
		}
	default:
		return fmt.Errorf("unknown sink type %q", s.Type)
	}
	return nil
}

func knownMetric(name string) bool {
	for _, m := range types.MetricNames() {
		if m == name {
			return true
		}
	}
	return false
}
