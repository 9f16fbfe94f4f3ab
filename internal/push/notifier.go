package push

import (
	"context"
	"errors"
)

// ErrNotifierDisabled is returned by DisabledNotifier for every send.
var ErrNotifierDisabled = errors.New("push notifications are not configured")

// ErrEmptyAddress is returned when a send is attempted without a device token.
var ErrEmptyAddress = errors.New("push address is empty")

// Message is the payload delivered to one device.
type Message struct {
	Title     string
	Body      string
	ClickLink string
	Data      map[string]string
}

// Notifier delivers a message to a single push address. Calls are independent:
// a failure for one address says nothing about any other.
type Notifier interface {
	Send(ctx context.Context, pushAddress string, msg Message) error
}

// DisabledNotifier stands in when no push provider is configured. Every send
// fails, so alerts end up NotificationFailed instead of claiming delivery.
type DisabledNotifier struct{}

func (DisabledNotifier) Send(ctx context.Context, pushAddress string, msg Message) error {
	return ErrNotifierDisabled
}
