package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	notifications "sourcehub/internal/notifications/domain"
)

// Repository persists recipient inboxes.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a notification.
func (r *Repository) Create(ctx context.Context, n *notifications.Notification) error {
	if r == nil || r.db == nil {
		return errors.New("notification repo: nil db")
	}
	if n == nil {
		return notifications.ErrInvalidNotification
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO notifications (id, recipient_id, type, title, message, related_id, read, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.RelatedID, n.Read, n.CreatedAt)
	return err
}

// ListForRecipient returns the recipient's notifications, newest first.
func (r *Repository) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]notifications.Notification, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("notification repo: nil db")
	}
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT id, recipient_id, type, title, message, related_id, read, created_at
FROM notifications
WHERE recipient_id = $1`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += `
ORDER BY created_at DESC
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notifications.Notification
	for rows.Next() {
		var n notifications.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &n.RelatedID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.CreatedAt = n.CreatedAt.UTC()
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkRead flags the recipient's notification as read.
func (r *Repository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("notification repo: nil db")
	}
	_ = at
	res, err := r.db.ExecContext(ctx, `
UPDATE notifications
SET read = TRUE
WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Delete removes the recipient's notification.
func (r *Repository) Delete(ctx context.Context, id, recipientID string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("notification repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
DELETE FROM notifications
WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
