package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	notifications "sourcehub/internal/notifications/domain"
)

// Repository is an in-memory inbox store for demo/testing.
type Repository struct {
	mu   sync.RWMutex
	data map[string]*notifications.Notification
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]*notifications.Notification)}
}

// Create stores a notification.
func (r *Repository) Create(ctx context.Context, n *notifications.Notification) error {
	_ = ctx
	if n == nil {
		return notifications.ErrInvalidNotification
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.data[n.ID] = &cp
	return nil
}

// ListForRecipient returns the recipient's notifications, newest first.
func (r *Repository) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]notifications.Notification, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]notifications.Notification, 0)
	for _, n := range r.data {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		result = append(result, *n)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkRead flags the recipient's notification as read.
func (r *Repository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	_ = ctx
	_ = at
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.data[id]
	if !ok || n.RecipientID != recipientID {
		return false, nil
	}
	n.Read = true
	return true, nil
}

// Delete removes the recipient's notification.
func (r *Repository) Delete(ctx context.Context, id, recipientID string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.data[id]
	if !ok || n.RecipientID != recipientID {
		return false, nil
	}
	delete(r.data, id)
	return true, nil
}
