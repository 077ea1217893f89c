// Package alert delivers quality alerts to configured notification sinks.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/datavet-systems/datavet/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher fans an alert out to its sinks and reports per-sink outcomes.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher builds a dispatcher from sink configs. Sinks that cross the
// network are wrapped in a circuit breaker so a dead endpoint fails fast
// instead of stalling every delivery.
func NewDispatcher(configs []types.SinkConfig) (*Dispatcher, error) {
	d := &Dispatcher{logger: slog.Default()}
	for _, cfg := range configs {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		if remote(cfg.Type) {
			sink = withBreaker(sink)
		}
		if cfg.Name != "" && cfg.Name != sink.Name() {
			sink = named{Sink: sink, alias: cfg.Name}
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// SetLogger overrides the default logger.
func (d *Dispatcher) SetLogger(l *slog.Logger) {
	if l != nil {
		d.logger = l
	}
}

// Sinks returns the configured sink names, for readiness reporting.
func (d *Dispatcher) Sinks() []string {
	out := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		out = append(out, s.Name())
	}
	return out
}

// Dispatch sends the alert to every sink, or only to the sink named by
// channel when it is non-empty. One NotificationRecord per attempted sink; a
// failing sink never blocks the others.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert, channel string) []types.NotificationRecord {
	var records []types.NotificationRecord
	for _, sink := range d.sinks {
		if channel != "" && sink.Name() != channel {
			continue
		}
		rec := types.NotificationRecord{Channel: sink.Name(), SentAt: time.Now(), Success: true}
		if err := sink.Send(ctx, alert); err != nil {
			rec.Success = false
			rec.Error = err.Error()
			d.logger.Error("alert delivery failed",
				"sink", sink.Name(), "alertID", alert.AlertID, "error", err)
		}
		records = append(records, rec)
	}
	if channel != "" && len(records) == 0 {
		d.logger.Warn("no sink matches alert channel",
			"channel", channel, "alertID", alert.AlertID)
	}
	return records
}

// NotifyFunc adapts the dispatcher to the monitor's delivery callback.
func (d *Dispatcher) NotifyFunc() func(context.Context, types.Alert, string) []types.NotificationRecord {
	return d.Dispatch
}

func newSink(cfg types.SinkConfig) (Sink, error) {
	switch cfg.Type {
	case types.SinkConsole:
		return NewConsoleSink(), nil
	case types.SinkFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.SinkWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL, cfg.AuthToken), nil
	case types.SinkSNS:
		return NewSNSSink(cfg.TopicARN, WithSNSRegion(cfg.Region))
	case types.SinkSQS:
		return NewSQSSink(cfg.QueueURL, WithSQSRegion(cfg.Region))
	case types.SinkEventBridge:
		return NewEventBridgeSink(cfg.EventBus, WithEventBridgeRegion(cfg.Region))
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}

// remote reports whether a sink type crosses the network.
func remote(t types.SinkType) bool {
	switch t {
	case types.SinkWebhook, types.SinkSNS, types.SinkSQS, types.SinkEventBridge:
		return true
	default:
		return false
	}
}

// named overrides a sink's routing name when the config assigns one.
type named struct {
	Sink
	alias string
}

func (n named) Name() string { return n.alias }
