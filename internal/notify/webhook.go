package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stclabs/engage-backend/pkg/db/models"
	"github.com/stclabs/engage-backend/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// Webhook forwards outbox event payloads to a configured HTTP endpoint.
// It is the handler behind the survey.submitted topic.
type Webhook struct {
	url    string
	client *http.Client
	logg   *logger.Logger
}

type WebhookParams struct {
	URL    string
	Client *http.Client
	Logger *logger.Logger
}

func NewWebhook(params WebhookParams) (*Webhook, error) {
	if params.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if params.Client == nil {
		params.Client = &http.Client{Timeout: defaultTimeout}
	}
	return &Webhook{
		url:    params.URL,
		client: params.Client,
		logg:   params.Logger,
	}, nil
}

// Deliver posts the event payload. Non-2xx responses are errors so the
// dispatcher records the delivery as failed.
func (w *Webhook) Deliver(ctx context.Context, event models.OutboxEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(event.Payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Topic", event.Topic)
	req.Header.Set("X-Event-ID", event.ID.String())

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	if w.logg != nil {
		w.logg.Info(w.logg.WithTopic(ctx, event.Topic), "webhook delivered")
	}
	return nil
}
