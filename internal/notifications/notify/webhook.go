package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	notifications "sourcehub/internal/notifications/domain"
)

// WebhookChannel forwards inbox entries to an external webhook. Delivery
// is best effort; the caller logs failures and moves on.
type WebhookChannel struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	RecipientID string `json:"recipient_id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message,omitempty"`
	RelatedID   string `json:"related_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// NewWebhookChannel constructs a channel.
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver posts the notification to the webhook.
func (c *WebhookChannel) Deliver(ctx context.Context, n *notifications.Notification) error {
	if c == nil || c.url == "" {
		return errors.New("webhook channel: empty url")
	}
	if n == nil {
		return notifications.ErrInvalidNotification
	}
	body, err := json.Marshal(webhookPayload{
		RecipientID: n.RecipientID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		RelatedID:   n.RelatedID,
		CreatedAt:   n.CreatedAt.Format(time.RFC3339),
	})
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
		return errors.New("webhook channel: non-2xx")
	}
	return nil
}
