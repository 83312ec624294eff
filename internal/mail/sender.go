// Package mail sends outbound email through an SMTP relay.
package mail

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by senders that have no relay to talk to.
var ErrNotConfigured = errors.New("mail transport not configured")

// Message represents an email to be sent.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string // plain text
}

// Sender abstracts email sending for DI and testing.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Unconfigured is the Sender used when no SMTP host is set.
type Unconfigured struct{}

// Send always fails with ErrNotConfigured.
func (Unconfigured) Send(context.Context, Message) error {
	return ErrNotConfigured
}
