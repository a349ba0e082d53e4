package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	alerts "geofleet-cloud/internal/alerts/domain"
)

// Channel delivers one alert message to an external receiver.
type Channel interface {
	Send(ctx context.Context, alert alerts.Alert) error
}

// WebhookChannel posts alert messages to a webhook URL.
type WebhookChannel struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookChannel constructs a channel.
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the alert to the webhook.
func (c *WebhookChannel) Send(ctx context.Context, alert alerts.Alert) error {
	if c == nil || c.url == "" {
		return errors.New("alert webhook: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatAlert(alert)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("alert webhook: non-2xx")
	}
	return nil
}

func formatAlert(alert alerts.Alert) string {
	var b strings.Builder
	b.WriteString("[Unauthorized Stop]\n")
	if alert.UnitLabel != "" {
		fmt.Fprintf(&b, "Unit: %s\n", alert.UnitLabel)
	}
	if alert.UTCTime != nil {
		fmt.Fprintf(&b, "Time: %s\n", alert.UTCTime.UTC().Format(time.RFC3339))
	} else if alert.LocalTime != "" {
		fmt.Fprintf(&b, "Time: %s\n", alert.LocalTime)
	}
	if alert.Location != "" {
		fmt.Fprintf(&b, "Near: %s\n", alert.Location)
	}
	return strings.TrimSpace(b.String())
}
