package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// WebhookDispatcher delivers webhook messages over HTTP POST. It implements
// only the messaging half of the Sink contract; applications compose it
// with their own mutation implementation.
//
// Delivery is accept-based: Deliver returns once the remote endpoint has
// answered with a 2xx status, or fails with the reject reason. The engine
// does not retry; retry policy belongs to the surrounding application's
// delivery pipeline.
type WebhookDispatcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewWebhookDispatcher creates a dispatcher with the given timeout per
// delivery. A zero timeout defaults to 10 seconds.
func NewWebhookDispatcher(timeout time.Duration, logger *slog.Logger) *WebhookDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookDispatcher{
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "sink.webhook"),
	}
}

// Deliver posts the message payload as JSON to the message URL.
// Non-webhook kinds are rejected; compose with a full sink for those.
func (d *WebhookDispatcher) Deliver(ctx context.Context, msg Message) error {
	if msg.Kind != KindWebhook {
		return fmt.Errorf("webhook dispatcher cannot deliver %q messages", msg.Kind)
	}
	if msg.URL == "" {
		return fmt.Errorf("webhook message has no URL")
	}

	payload := msg.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery to %q failed: %w", msg.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook endpoint %q rejected delivery: status %d", msg.URL, resp.StatusCode)
	}

	d.logger.Debug("webhook delivered",
		"url", msg.URL,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}
