package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/datavet-systems/datavet/pkg/types"
)

// Webhook HTTP delivery defaults.
const (
	webhookTimeout = 10 * time.Second
)

// WebhookSink sends alerts as JSON POST requests to a URL.
type WebhookSink struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookSink creates a new webhook alert sink. A non-empty token is sent
// as a bearer Authorization header.
func NewWebhookSink(url, token string) *WebhookSink {
	return &WebhookSink{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
	}
}

// Name returns the sink identifier.
func (s *WebhookSink) Name() string { return "webhook" }

// Send posts the alert as JSON to the configured webhook URL.
func (s *WebhookSink) Send(ctx context.Context, alert types.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook POST failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
