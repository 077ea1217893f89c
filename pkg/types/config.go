package types

import "fmt"

// Weights configures the contribution of each dimension to the composite
// quality score. Weights must sum to 1.0 within a small epsilon.
type Weights struct {
	Completeness float64 `yaml:"completeness" json:"completeness"`
	Validity     float64 `yaml:"validity" json:"validity"`
	Consistency  float64 `yaml:"consistency" json:"consistency"`
	Uniqueness   float64 `yaml:"uniqueness" json:"uniqueness"`
	Timeliness   float64 `yaml:"timeliness" json:"timeliness"`
}

// DefaultWeights returns the standard dimension weighting.
func DefaultWeights() Weights {
	return Weights{
		Completeness: 0.25,
		Validity:     0.30,
		Consistency:  0.20,
		Uniqueness:   0.15,
		Timeliness:   0.10,
	}
}

// EngineConfig holds rule execution settings.
type EngineConfig struct {
	Workers           int      `yaml:"workers,omitempty" json:"workers,omitempty"`
	RuleTimeout       string   `yaml:"ruleTimeout,omitempty" json:"ruleTimeout,omitempty"` // e.g. "30s"
	SampleLimit       int      `yaml:"sampleLimit,omitempty" json:"sampleLimit,omitempty"`
	SeverityThreshold Severity `yaml:"severityThreshold,omitempty" json:"severityThreshold,omitempty"` // default HIGH
}

// QualityConfig holds metric calculation settings.
type QualityConfig struct {
	Weights      *Weights `yaml:"weights,omitempty" json:"weights,omitempty"`
	KeyColumns   []string `yaml:"keyColumns,omitempty" json:"keyColumns,omitempty"`
	FreshnessSLA string   `yaml:"freshnessSla,omitempty" json:"freshnessSla,omitempty"` // e.g. "24h"
}

// AlertCondition defines one threshold check against a quality metric.
type AlertCondition struct {
	Metric    string   `yaml:"metric" json:"metric"`
	Operator  string   `yaml:"operator" json:"operator"` // <, <=, >, >=, ==, !=
	Threshold float64  `yaml:"threshold" json:"threshold"`
	Severity  Severity `yaml:"severity,omitempty" json:"severity,omitempty"`
	Channel   string   `yaml:"channel,omitempty" json:"channel,omitempty"` // named sink; empty = all sinks
}

// String renders the condition the way it appears in alerts, e.g.
// "completeness < 0.95".
func (c AlertCondition) String() string {
	return fmt.Sprintf("%s %s %g", c.Metric, c.Operator, c.Threshold)
}

// TrendConfig enables deviation-from-history anomaly detection.
type TrendConfig struct {
	Enabled    bool     `yaml:"enabled" json:"enabled"`
	Window     int      `yaml:"window,omitempty" json:"window,omitempty"`         // snapshots considered, default 10
	Sigmas     float64  `yaml:"sigmas,omitempty" json:"sigmas,omitempty"`         // default 3.0
	MinHistory int      `yaml:"minHistory,omitempty" json:"minHistory,omitempty"` // skip below this, default 3
	Severity   Severity `yaml:"severity,omitempty" json:"severity,omitempty"`     // default MEDIUM
}

// MaintenanceWindow defines a recurring or dated window during which alert
// notifications are suppressed. State transitions still happen.
type MaintenanceWindow struct {
	Name     string   `yaml:"name,omitempty" json:"name,omitempty"`
	Days     []string `yaml:"days,omitempty" json:"days,omitempty"`   // "saturday", "sunday"
	Dates    []string `yaml:"dates,omitempty" json:"dates,omitempty"` // "2026-12-25"
	Start    string   `yaml:"start,omitempty" json:"start,omitempty"` // "HH:MM", whole day if unset
	End      string   `yaml:"end,omitempty" json:"end,omitempty"`     // "HH:MM"
	Timezone string   `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// MonitorConfig configures the anomaly and alert engine.
type MonitorConfig struct {
	Conditions    []AlertCondition    `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Cooldown      string              `yaml:"cooldown,omitempty" json:"cooldown,omitempty"` // min gap between repeat notifications, default "30m"
	HistoryWindow int                 `yaml:"historyWindow,omitempty" json:"historyWindow,omitempty"`
	Trend         *TrendConfig        `yaml:"trend,omitempty" json:"trend,omitempty"`
	Maintenance   []MaintenanceWindow `yaml:"maintenance,omitempty" json:"maintenance,omitempty"`
	Retention     string              `yaml:"retention,omitempty" json:"retention,omitempty"`       // e.g. "720h"
	SweepSchedule string              `yaml:"sweepSchedule,omitempty" json:"sweepSchedule,omitempty"` // cron spec, default "@hourly"
}

// SinkConfig defines a notification sink.
type SinkConfig struct {
	Type      SinkType `yaml:"type" json:"type"`
	Name      string   `yaml:"name,omitempty" json:"name,omitempty"` // channel key for AlertCondition routing
	URL       string   `yaml:"url,omitempty" json:"url,omitempty"`
	AuthToken string   `yaml:"authToken,omitempty" json:"authToken,omitempty"`
	Path      string   `yaml:"path,omitempty" json:"path,omitempty"`
	TopicARN  string   `yaml:"topicArn,omitempty" json:"topicArn,omitempty"`
	QueueURL  string   `yaml:"queueUrl,omitempty" json:"queueUrl,omitempty"`
	EventBus  string   `yaml:"eventBus,omitempty" json:"eventBus,omitempty"`
	Region    string   `yaml:"region,omitempty" json:"region,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string `yaml:"addr" json:"addr"`
	APIKey         string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	MaxRequestBody int64  `yaml:"maxRequestBody,omitempty" json:"maxRequestBody,omitempty"`
}

// RedisConfig holds Redis/Valkey connection settings for the history store.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password,omitempty" json:"password,omitempty"`
	DB        int    `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
	IndexMax  int64  `yaml:"indexMax,omitempty" json:"indexMax,omitempty"` // per-dataset snapshot cap
}

// PostgresConfig holds Postgres connection settings for the history store.
type PostgresConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// DynamoConfig holds DynamoDB table settings for the history store.
type DynamoConfig struct {
	TableName   string `yaml:"tableName" json:"tableName"`
	Region      string `yaml:"region" json:"region"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	CreateTable bool   `yaml:"createTable,omitempty" json:"createTable,omitempty"`
}

// TelemetryConfig enables OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"` // OTLP gRPC, e.g. "localhost:4317"
	Insecure    bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// ProjectConfig represents the top-level datavet.yaml configuration.
type ProjectConfig struct {
	Store     string           `yaml:"store"` // memory | redis | postgres | dynamodb
	Redis     *RedisConfig     `yaml:"redis,omitempty"`
	Postgres  *PostgresConfig  `yaml:"postgres,omitempty"`
	Dynamo    *DynamoConfig    `yaml:"dynamodb,omitempty"`
	Server    *ServerConfig    `yaml:"server,omitempty"`
	Engine    *EngineConfig    `yaml:"engine,omitempty"`
	Quality   *QualityConfig   `yaml:"quality,omitempty"`
	Monitor   *MonitorConfig   `yaml:"monitor,omitempty"`
	RuleDirs  []string         `yaml:"ruleDirs,omitempty"`
	Alerts    []SinkConfig     `yaml:"alerts,omitempty"`
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}
