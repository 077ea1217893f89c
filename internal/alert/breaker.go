package alert

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/datavet-systems/datavet/pkg/types"
)

// Circuit breaker tuning for remote sinks.
const (
	breakerTripAfter = 3                // consecutive failures before the circuit opens
	breakerCooldown  = 30 * time.Second // open -> half-open probe delay
)

// breakerSink wraps a remote sink with a circuit breaker so a dead endpoint
// stops consuming delivery attempts. While the circuit is open, Send fails
// immediately with gobreaker.ErrOpenState.
type breakerSink struct {
	sink Sink
	cb   *gobreaker.CircuitBreaker
}

func withBreaker(s Sink) Sink {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    s.Name(),
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
	})
	return &breakerSink{sink: s, cb: cb}
}

// Name returns the wrapped sink's identifier.
func (s *breakerSink) Name() string { return s.sink.Name() }

// Send delivers through the breaker.
func (s *breakerSink) Send(ctx context.Context, alert types.Alert) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.sink.Send(ctx, alert)
	})
	return err
}
