package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/datavet-systems/datavet/pkg/types"
)

// SQSAPI is the subset of the SQS client used by SQSSink.
type SQSAPI interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink enqueues alerts on an SQS queue for downstream consumers.
type SQSSink struct {
	client   SQSAPI
	queueURL string
	region   string
}

// SQSSinkOption configures an SQSSink.
type SQSSinkOption func(*SQSSink)

// WithSQSClient sets a custom SQS client (useful for testing).
func WithSQSClient(c SQSAPI) SQSSinkOption {
	return func(s *SQSSink) { s.client = c }
}

// WithSQSRegion pins the AWS region for the default client.
func WithSQSRegion(region string) SQSSinkOption {
	return func(s *SQSSink) { s.region = region }
}

// NewSQSSink creates a new SQS alert sink.
func NewSQSSink(queueURL string, opts ...SQSSinkOption) (*SQSSink, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("SQS queue URL required")
	}
	s := &SQSSink{queueURL: queueURL}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		cfg, err := loadAWSConfig(context.Background(), s.region)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = sqs.NewFromConfig(cfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *SQSSink) Name() string { return "sqs" }

// Send enqueues the alert as JSON. Severity and dataset ride along as message
// attributes so consumers can filter without parsing the body.
func (s *SQSSink) Send(ctx context.Context, alert types.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(data)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"severity": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(alert.Severity)),
			},
			"dataset": {
				DataType:    aws.String("String"),
				StringValue: aws.String(alert.Dataset),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending to SQS: %w", err)
	}
	return nil
}
