package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/datavet-systems/datavet/pkg/types"
)

// Event envelope fields for alerts published to EventBridge.
const (
	eventSource     = "datavet.monitor"
	eventDetailType = "Data Quality Alert"
)

// EventBridgeAPI is the subset of the EventBridge client used by EventBridgeSink.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, input *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeSink publishes alerts as events on an event bus.
type EventBridgeSink struct {
	client  EventBridgeAPI
	busName string
	region  string
}

// EventBridgeSinkOption configures an EventBridgeSink.
type EventBridgeSinkOption func(*EventBridgeSink)

// WithEventBridgeClient sets a custom EventBridge client (useful for testing).
func WithEventBridgeClient(c EventBridgeAPI) EventBridgeSinkOption {
	return func(s *EventBridgeSink) { s.client = c }
}

// WithEventBridgeRegion pins the AWS region for the default client.
func WithEventBridgeRegion(region string) EventBridgeSinkOption {
	return func(s *EventBridgeSink) { s.region = region }
}

// NewEventBridgeSink creates a new EventBridge alert sink. An empty bus name
// publishes to the account's default event bus.
func NewEventBridgeSink(busName string, opts ...EventBridgeSinkOption) (*EventBridgeSink, error) {
	s := &EventBridgeSink{busName: busName}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		cfg, err := loadAWSConfig(context.Background(), s.region)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = eventbridge.NewFromConfig(cfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *EventBridgeSink) Name() string { return "eventbridge" }

// Send publishes the alert as an event with the alert JSON as detail.
func (s *EventBridgeSink) Send(ctx context.Context, alert types.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	entry := ebtypes.PutEventsRequestEntry{
		Source:     aws.String(eventSource),
		DetailType: aws.String(eventDetailType),
		Detail:     aws.String(string(data)),
	}
	if s.busName != "" {
		entry.EventBusName = aws.String(s.busName)
	}

	out, err := s.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("publishing to EventBridge: %w", err)
	}
	if out.FailedEntryCount > 0 && len(out.Entries) > 0 {
		return fmt.Errorf("EventBridge rejected event: %s (%s)",
			aws.ToString(out.Entries[0].ErrorMessage), aws.ToString(out.Entries[0].ErrorCode))
	}
	return nil
}
