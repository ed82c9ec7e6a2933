// Package notify implements the push notification fan-out: payload
// construction from an alert bundle, concurrent best-effort web-push delivery
// to subscribers near the bucket, pruning of expired subscriptions, and batch
// persistence of what was actually delivered.
package notify

import (
	"fmt"

	"gardenwatch/internal/types"
)

// Notification tags. Browsers collapse notifications sharing a tag, so a
// re-sent frost alert replaces the previous one instead of stacking.
const (
	TagFrost    = "frost-alert"
	TagWatering = "watering-alert"
)

// Notification types as persisted in the inbox.
const (
	TypeFrost    = "frost"
	TypeWatering = "watering"
)

// TagTest marks the on-demand delivery check triggered from the settings page.
const TagTest = "test-notification"

// PWA assets referenced by every payload.
const (
	iconPath  = "/garden-icon.png"
	badgePath = "/garden-badge.png"
)

// Payload is the JSON message body pushed to the browser. The field names
// mirror the Notification API options the service worker passes through.
type Payload struct {
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	Icon               string            `json:"icon"`
	Badge              string            `json:"badge"`
	Tag                string            `json:"tag"`
	RequireInteraction bool              `json:"requireInteraction"`
	Data               map[string]string `json:"data,omitempty"`

	// Kind is the inbox type for the persisted record; not part of the wire
	// payload.
	Kind string `json:"-"`
}

// BuildPayloads derives the push payloads for a bundle: a frost alert when
// frost is expected, a watering recommendation when there is one. An empty
// slice means the bucket has nothing worth waking a phone for.
func BuildPayloads(b *types.AlertBundle) []Payload {
	var payloads []Payload

	if b.Frost.IsFrost {
		payloads = append(payloads, Payload{
			Title:              fmt.Sprintf("Frost warning in %s!", b.City),
			Body:               fmt.Sprintf("Around %s the temperature drops to %d°C. Protect your plants!", b.Frost.Time, b.Frost.Temp),
			Icon:               iconPath,
			Badge:              badgePath,
			Tag:                TagFrost,
			RequireInteraction: true,
			Data:               map[string]string{"city": b.City},
			Kind:               TypeFrost,
		})
	}

	if b.Watering != nil {
		payloads = append(payloads, Payload{
			Title:              "Watering recommendation",
			Body:               b.Watering.Recommendation,
			Icon:               iconPath,
			Badge:              badgePath,
			Tag:                TagWatering,
			RequireInteraction: false,
			Data:               map[string]string{"city": b.City},
			Kind:               TypeWatering,
		})
	}

	return payloads
}

// TestPayload builds the notification sent by the delivery check endpoint.
func TestPayload() Payload {
	return Payload{
		Title: "GardenWatch test",
		Body:  "Push notifications are working.",
		Icon:  iconPath,
		Badge: badgePath,
		Tag:   TagTest,
	}
}
