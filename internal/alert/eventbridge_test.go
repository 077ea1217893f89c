package alert

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datavet-systems/datavet/pkg/types"
)

type mockEventBridge struct {
	inputs []*eventbridge.PutEventsInput
	output *eventbridge.PutEventsOutput
}

func (m *mockEventBridge) PutEvents(_ context.Context, input *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	m.inputs = append(m.inputs, input)
	if m.output != nil {
		return m.output, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestEventBridgeSink_Send(t *testing.T) {
	mock := &mockEventBridge{}
	sink, err := NewEventBridgeSink("quality-bus", WithEventBridgeClient(mock))
	require.NoError(t, err)
	assert.Equal(t, "eventbridge", sink.Name())

	alert := testAlert()
	err = sink.Send(context.Background(), alert)
	require.NoError(t, err)

	require.Len(t, mock.inputs, 1)
	require.Len(t, mock.inputs[0].Entries, 1)
	entry := mock.inputs[0].Entries[0]
	assert.Equal(t, "quality-bus", *entry.EventBusName)
	assert.Equal(t, "datavet.monitor", *entry.Source)
	assert.Equal(t, "Data Quality Alert", *entry.DetailType)

	var decoded types.Alert
	require.NoError(t, json.Unmarshal([]byte(*entry.Detail), &decoded))
	assert.Equal(t, alert.AlertID, decoded.AlertID)
}

func TestEventBridgeSink_DefaultBus(t *testing.T) {
	mock := &mockEventBridge{}
	sink, err := NewEventBridgeSink("", WithEventBridgeClient(mock))
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), testAlert()))
	require.Len(t, mock.inputs, 1)
	assert.Nil(t, mock.inputs[0].Entries[0].EventBusName)
}

func TestEventBridgeSink_FailedEntry(t *testing.T) {
	mock := &mockEventBridge{
		output: &eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []ebtypes.PutEventsResultEntry{{
				ErrorCode:    aws.String("ThrottlingException"),
				ErrorMessage: aws.String("rate exceeded"),
			}},
		},
	}
	sink, err := NewEventBridgeSink("quality-bus", WithEventBridgeClient(mock))
	require.NoError(t, err)

	err = sink.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ThrottlingException")
}
