package monitor

import (
	"fmt"

	"github.com/datavet-systems/datavet/pkg/types"
)

// Transition table: from -> allowed tos
var validTransitions = map[types.AlertStatus][]types.AlertStatus{
	types.AlertActive:       {types.AlertAcknowledged, types.AlertResolved},
	types.AlertAcknowledged: {types.AlertResolved},
	types.AlertResolved:     {},
}

// CanTransition checks if moving an alert from one status to another is valid.
func CanTransition(from, to types.AlertStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates a status change, or returns an error if it is invalid.
// A resolved alert never reopens; a re-triggered condition mints a new alert.
func Transition(from, to types.AlertStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid alert transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the status ends the alert lifecycle.
func IsTerminal(status types.AlertStatus) bool {
	return status == types.AlertResolved
}
