// Package email provides pluggable email delivery for owner notifications.
//
// Two backends satisfy the Sender interface: the Resend HTTP API and AWS
// SES. Which one is active is a deployment choice; having neither
// configured simply disables the email channel.
package email

import (
	"context"
)

// Sender delivers one plain-text email to one or more recipients.
type Sender interface {
	Send(ctx context.Context, to []string, subject, text string) error
}
