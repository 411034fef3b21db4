// Package notify delivers transactional notifications for delegation
// lifecycle events. Delivery is best effort: the compliance core treats a
// failed send as non-fatal because the underlying state change has already
// committed.
package notify

import "context"

// Sender delivers a plain-text notification.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
