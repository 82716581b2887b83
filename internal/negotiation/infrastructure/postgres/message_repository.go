package postgres

import (
	"context"
	"database/sql"
	"errors"

	negotiation "sourcehub/internal/negotiation/domain"
)

// MessageRepository persists the append-only session message log.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository constructs a repository.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append adds a message to its session's log.
func (r *MessageRepository) Append(ctx context.Context, m *negotiation.Message) error {
	if r == nil || r.db == nil {
		return errors.New("message repo: nil db")
	}
	if m == nil {
		return negotiation.ErrInvalidSession
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO negotiation_messages (id, session_id, author_id, kind, body, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.SessionID, m.AuthorID, m.Kind, m.Body, m.CreatedAt)
	return err
}

// ListBySession returns the session's messages in chronological order.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]negotiation.Message, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("message repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, author_id, kind, body, created_at
FROM negotiation_messages
WHERE session_id = $1
ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []negotiation.Message
	for rows.Next() {
		var m negotiation.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.AuthorID, &m.Kind, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
