package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/datavet-systems/datavet/pkg/types"
)

// snsSubjectMax is the SNS hard limit on subject length.
const snsSubjectMax = 100

// SNSAPI is the subset of the SNS client used by SNSSink.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSink publishes alerts to an SNS topic.
type SNSSink struct {
	client   SNSAPI
	topicARN string
	region   string
}

// SNSSinkOption configures an SNSSink.
type SNSSinkOption func(*SNSSink)

// WithSNSClient sets a custom SNS client (useful for testing).
func WithSNSClient(c SNSAPI) SNSSinkOption {
	return func(s *SNSSink) { s.client = c }
}

// WithSNSRegion pins the AWS region for the default client.
func WithSNSRegion(region string) SNSSinkOption {
	return func(s *SNSSink) { s.region = region }
}

// NewSNSSink creates a new SNS alert sink.
func NewSNSSink(topicARN string, opts ...SNSSinkOption) (*SNSSink, error) {
	if topicARN == "" {
		return nil, fmt.Errorf("SNS topic ARN required")
	}
	s := &SNSSink{topicARN: topicARN}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		cfg, err := loadAWSConfig(context.Background(), s.region)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = sns.NewFromConfig(cfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *SNSSink) Name() string { return "sns" }

// Send publishes the alert as JSON to the configured SNS topic.
func (s *SNSSink) Send(ctx context.Context, alert types.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}

	subject := fmt.Sprintf("[%s] %s %s", alert.Severity, alert.Dataset, alert.Metric)
	if len(subject) > snsSubjectMax {
		subject = subject[:snsSubjectMax]
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(data)),
	})
	if err != nil {
		return fmt.Errorf("publishing to SNS: %w", err)
	}
	return nil
}
