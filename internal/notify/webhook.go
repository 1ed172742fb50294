package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	httpclient "crew-onboarding/internal/common/http"
	"crew-onboarding/internal/models"

	"go.uber.org/multierr"
)

const (
	ChannelWebhook  = "webhook"
	SignatureHeader = "X-Onboarding-Signature"
	EventHeader     = "X-Onboarding-Event"
)

// WebhookSink posts every event to the active webhooks subscribed to it.
type WebhookSink struct {
	client    *httpclient.Client
	directory *Directory
}

func NewWebhookSink(client *httpclient.Client, directory *Directory) *WebhookSink {
	return &WebhookSink{client: client, directory: directory}
}

func (s *WebhookSink) Name() string { return ChannelWebhook }

func (s *WebhookSink) Accepts(string) bool { return true }

func (s *WebhookSink) Deliver(ctx context.Context, event models.Event) ([]models.Delivery, error) {
	hooks, err := s.directory.Webhooks(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	var (
		deliveries []models.Delivery
		errs       error
	)
	for _, hook := range hooks {
		if !hook.Subscribes(event.Type) {
			continue
		}
		d := models.Delivery{Channel: ChannelWebhook, Target: hook.ID, Status: models.DeliverySent}
		headers := map[string]string{EventHeader: event.Type}
		if hook.Secret != "" {
			headers[SignatureHeader] = Sign(hook.Secret, body)
		}
		if _, err := s.client.PostJSON(ctx, hook.URL, body, headers); err != nil {
			d.Status = models.DeliveryFailed
			d.Error = err.Error()
			errs = multierr.Append(errs, fmt.Errorf("webhook %s: %w", hook.ID, err))
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, errs
}

// Sign returns the hex HMAC-SHA256 of body, prefixed with "sha256=".
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature header against body in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
