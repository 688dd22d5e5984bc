// Package notify delivers job completion callbacks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds one webhook delivery.
const DefaultTimeout = 10 * time.Second

// ErrDeliveryFailed is returned when the receiver rejects or cannot be reached.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// Payload is the body posted to a webhook.
type Payload struct {
	Status                string    `json:"status"`
	ProjectID             string    `json:"project_id"`
	FileID                string    `json:"file_id"`
	TotalPages            int       `json:"total_pages"`
	ProcessedPages        int       `json:"processed_pages"`
	FailedPages           []int     `json:"failed_pages"`
	FinalJSONURL          string    `json:"final_json_url,omitempty"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	Timestamp             time.Time `json:"timestamp"`
}

// Notifier sends a completion payload to url.
type Notifier interface {
	Notify(ctx context.Context, url string, payload Payload) error
}

// Webhook posts JSON payloads over HTTP.
type Webhook struct {
	client *http.Client
}

// NewWebhook creates a notifier. A nil client uses one with DefaultTimeout.
func NewWebhook(client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Webhook{client: client}
}

// Notify implements Notifier. Any non-2xx status is an error.
func (w *Webhook) Notify(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}
