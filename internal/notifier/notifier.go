// Package notifier delivers messages to a user's registered email address.
// Sends return an explicit error so callers can isolate per-message failures
// instead of relying on panics or logging side channels.
package notifier

import "context"

type Message struct {
	To      string
	Subject string
	Body    string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
