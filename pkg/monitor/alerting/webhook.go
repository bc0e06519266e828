package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"meridian-hq/saturn/pkg/monitor"
)

// WebhookSink posts alerts as JSON to a chat or incident webhook.
type WebhookSink struct {
	url    string
	client *http.Client
}

// webhookPayload is the JSON body posted for each alert. Record
// snapshots are summarized to a count; webhook consumers wanting the
// full context query the durable sink instead.
type webhookPayload struct {
	ID        string           `json:"id"`
	Rule      string           `json:"rule"`
	Severity  monitor.Severity `json:"severity"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	SubjectID string           `json:"subject_id"`
	AccountID string           `json:"account_id"`
	Records   int              `json:"records"`
}

// NewWebhookSink creates a webhook sink posting to the given URL.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return "webhook" }

// Deliver implements Sink.
func (s *WebhookSink) Deliver(ctx context.Context, alert monitor.Alert) error {
	body, err := json.Marshal(webhookPayload{
		ID:        alert.ID,
		Rule:      alert.RuleName,
		Severity:  alert.Severity,
		Message:   alert.Message,
		Timestamp: alert.Timestamp,
		SubjectID: alert.SubjectID,
		AccountID: alert.AccountID,
		Records:   len(alert.Records),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert %q: %w", alert.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
