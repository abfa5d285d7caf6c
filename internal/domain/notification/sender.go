package notification

import "context"

// Sender delivers a notification over its channel. Implementations live
// in the delivery infrastructure; a failing send marks the notification
// failed without aborting the pipeline stage.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// NopSender discards notifications, for tests and disabled channels.
type NopSender struct{}

func (NopSender) Send(context.Context, *Notification) error { return nil }
