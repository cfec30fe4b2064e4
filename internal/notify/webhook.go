package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sweeney/source-watcher/internal/logic"
)

// Webhook posts alerts as JSON to an HTTP endpoint.
type Webhook struct {
	http *resty.Client
	url  string
}

// NewWebhook creates a webhook channel. token, if set, is sent as a bearer token.
func NewWebhook(url, token string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Webhook{http: client, url: url}
}

// Name implements Channel.
func (w *Webhook) Name() string { return "webhook" }

// Notify posts the alert payload.
func (w *Webhook) Notify(ctx context.Context, alert logic.AlertEvent) error {
	resp, err := w.http.R().
		SetContext(ctx).
		SetBody(NewPayload(alert)).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post webhook: %s", resp.Status())
	}
	return nil
}
