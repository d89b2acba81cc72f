package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"InferGate/internal/conf"
	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// notifyTimeout bounds one webhook delivery attempt.
const notifyTimeout = 10 * time.Second

// WebhookNotifier delivers high/critical alerts to a configured
// webhook. Delivery failures are logged and swallowed; the resilience
// loop must never observe them.
type WebhookNotifier struct {
	webhookURL string
	recipients []string
	httpClient *http.Client
	logger     *log.Helper
}

// NewWebhookNotifier creates a notification sink from health config.
// When no webhook URL is configured the notifier degrades to log-only.
func NewWebhookNotifier(c *conf.Health, logger log.Logger) *WebhookNotifier {
	var url string
	var recipients []string
	if c != nil {
		url = c.AlertWebhookUrl
		recipients = c.AlertRecipients
	}

	return &WebhookNotifier{
		webhookURL: url,
		recipients: recipients,
		httpClient: &http.Client{Timeout: notifyTimeout},
		logger:     log.NewHelper(logger),
	}
}

// Send delivers an alert to the configured webhook. It never returns
// delivery failures to the caller; they are logged instead.
func (n *WebhookNotifier) Send(ctx context.Context, alert *model.Alert) error {
	if n.webhookURL == "" {
		n.logger.Infow("alert notification (webhook not configured)",
			"alert_id", alert.ID,
			"provider", alert.Provider,
			"severity", alert.Severity,
			"title", alert.Title)
		return nil
	}

	payload := map[string]any{
		"recipients": n.recipients,
		"alert":      alert,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Errorw("failed to marshal alert notification", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Errorw("failed to create alert notification request", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Errorw("failed to deliver alert notification",
			"alert_id", alert.ID,
			"provider", alert.Provider,
			"error", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		n.logger.Errorw("alert notification rejected",
			"alert_id", alert.ID,
			"provider", alert.Provider,
			"status", fmt.Sprintf("%d", resp.StatusCode))
		return nil
	}

	n.logger.Infow("alert notification delivered",
		"alert_id", alert.ID,
		"provider", alert.Provider,
		"severity", alert.Severity)

	return nil
}
