package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

// Webhook POSTs a JSON completion summary to a configured URL.
type Webhook struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook notifier.
type WebhookOption func(*Webhook)

// WithWebhookHTTPClient overrides the HTTP client (used in tests).
func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// NewWebhook creates a webhook notifier targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Webhook) Name() string { return "webhook" }

// webhookPayload is the wire shape delivered to the subscriber. Document
// content is included in full; subscribers that only want metadata can
// ignore it.
type webhookPayload struct {
	CaseID      string                    `json:"case_id"`
	Status      string                    `json:"status"`
	Beneficiary string                    `json:"beneficiary_name"`
	VisaType    string                    `json:"visa_type"`
	CompletedAt time.Time                 `json:"completed_at"`
	Documents   []model.GeneratedDocument `json:"documents"`
}

func (w *Webhook) DocumentsReady(ctx context.Context, caseID string, info model.CaseInfo, documents []model.GeneratedDocument) error {
	payload := webhookPayload{
		CaseID:      caseID,
		Status:      "completed",
		Beneficiary: info.FullName,
		VisaType:    info.CaseType,
		CompletedAt: time.Now().UTC(),
		Documents:   documents,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "notify: marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: deliver webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
