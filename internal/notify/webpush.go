package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"gardenwatch/internal/types"
)

// pushTimeout bounds a single delivery to one push service endpoint.
const pushTimeout = 10 * time.Second

// pushTTL tells the push service how long to retain an undelivered message.
// One day: an alert about tomorrow is worthless the day after.
const pushTTL = 24 * 60 * 60

// VAPIDKeys identifies this server to browser push services.
type VAPIDKeys struct {
	Subject    string
	PublicKey  string
	PrivateKey string
}

// WebPushSender delivers payloads over the Web Push protocol with VAPID
// authentication. It distinguishes expired subscriptions (404/410 from the
// push service) from transient failures so the fan-out can prune the former.
type WebPushSender struct {
	keys   VAPIDKeys
	client *http.Client
}

// NewWebPushSender creates a sender with its own timeout-bounded HTTP client.
func NewWebPushSender(keys VAPIDKeys) *WebPushSender {
	return &WebPushSender{
		keys:   keys,
		client: &http.Client{Timeout: pushTimeout},
	}
}

// Send pushes one encoded payload to the subscription described by the raw
// descriptor JSON. A types.ErrCodePushGone error means the subscription is
// dead and should be deleted; any other error is a transient delivery failure.
func (s *WebPushSender) Send(ctx context.Context, descriptor string, payload []byte) error {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(descriptor), &sub); err != nil {
		return types.NewAppError(types.ErrCodePushFailure, "malformed push subscription descriptor", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &sub, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.keys.Subject,
		VAPIDPublicKey:  s.keys.PublicKey,
		VAPIDPrivateKey: s.keys.PrivateKey,
		TTL:             pushTTL,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodePushFailure, "push delivery failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return types.NewAppError(types.ErrCodePushGone, "push subscription expired", nil)
	case resp.StatusCode >= 400:
		return types.NewAppError(types.ErrCodePushFailure, fmt.Sprintf("push service returned status %d", resp.StatusCode), nil)
	}

	return nil
}
