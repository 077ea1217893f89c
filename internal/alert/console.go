package alert

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/datavet-systems/datavet/pkg/types"
)

// ConsoleSink writes alerts to the terminal with color-coded severity.
type ConsoleSink struct{}

// NewConsoleSink creates a new console alert sink.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes the alert to the terminal.
func (s *ConsoleSink) Send(_ context.Context, alert types.Alert) error {
	var prefix string
	switch alert.Severity {
	case types.SeverityCritical, types.SeverityHigh:
		prefix = color.RedString("[%s]", alert.Severity)
	case types.SeverityMedium:
		prefix = color.YellowString("[%s]", alert.Severity)
	default:
		prefix = color.CyanString("[%s]", alert.Severity)
	}

	if alert.Dataset != "" {
		fmt.Printf("%s [%s] %s\n", prefix, alert.Dataset, alert.Message)
	} else {
		fmt.Printf("%s %s\n", prefix, alert.Message)
	}
	return nil
}
