package notifications

import (
	"context"
	"time"
)

// Repository is the store contract for recipient inboxes. MarkRead and
// Delete are scoped to the recipient so one actor cannot touch another's
// inbox.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error)
	Delete(ctx context.Context, id, recipientID string) (bool, error)
}
