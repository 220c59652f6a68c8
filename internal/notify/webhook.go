package notify

import (
	"context"
	"net/http"
	"time"

	"stockalert/internal/httpx"
)

// WebhookChannel POSTs a JSON payload to the endpoint address.
type WebhookChannel struct {
	client *httpx.Client
	// Secret, when set, is sent as X-Webhook-Secret.
	Secret string
}

func NewWebhookChannel(hc *httpx.Client, secret string) *WebhookChannel {
	return &WebhookChannel{client: hc, Secret: secret}
}

func (w *WebhookChannel) Name() string { return "webhook" }

type webhookPayload struct {
	EndpointID string    `json:"endpoint_id,omitempty"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

func (w *WebhookChannel) Send(ctx context.Context, ep Endpoint, title, body string) error {
	var h http.Header
	if w.Secret != "" {
		h = http.Header{"X-Webhook-Secret": []string{w.Secret}}
	}
	return w.client.PostJSON(ctx, ep.Address, webhookPayload{
		EndpointID: ep.ID,
		OwnerID:    ep.OwnerID,
		Title:      title,
		Body:       body,
		SentAt:     time.Now().UTC(),
	}, h)
}
