package alert

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datavet-systems/datavet/pkg/types"
)

type mockSQS struct {
	sent []*sqs.SendMessageInput
}

func (m *mockSQS) SendMessage(_ context.Context, input *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.sent = append(m.sent, input)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSSink_Send(t *testing.T) {
	mock := &mockSQS{}
	sink, err := NewSQSSink("https://sqs.us-east-1.amazonaws.com/123456789/quality-alerts", WithSQSClient(mock))
	require.NoError(t, err)
	assert.Equal(t, "sqs", sink.Name())

	alert := testAlert()
	err = sink.Send(context.Background(), alert)
	require.NoError(t, err)

	require.Len(t, mock.sent, 1)
	msg := mock.sent[0]
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123456789/quality-alerts", *msg.QueueUrl)

	var decoded types.Alert
	require.NoError(t, json.Unmarshal([]byte(*msg.MessageBody), &decoded))
	assert.Equal(t, alert.AlertID, decoded.AlertID)

	require.Contains(t, msg.MessageAttributes, "severity")
	assert.Equal(t, "HIGH", *msg.MessageAttributes["severity"].StringValue)
	require.Contains(t, msg.MessageAttributes, "dataset")
	assert.Equal(t, "orders", *msg.MessageAttributes["dataset"].StringValue)
}

func TestSQSSink_EmptyQueueURL(t *testing.T) {
	_, err := NewSQSSink("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "queue URL required")
}
