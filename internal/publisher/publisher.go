// Package publisher defines the completion-notification contract.
// Downstream consumers (dashboards, alerting) subscribe to run
// completions rather than polling the API.
package publisher

import "context"

// Publisher sends a payload to a named topic and returns the broker
// message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
	Close() error
}
