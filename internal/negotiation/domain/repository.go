package negotiation

import (
	"context"
	"time"
)

// SessionRepository is the store contract for negotiation sessions. Guarded
// mutations are conditional writes; a false result means the guard no longer
// held when the write was attempted.
type SessionRepository interface {
	// CreateIfAbsent inserts the session only when its id is free; a second
	// creation of the same pairing is a no-op.
	CreateIfAbsent(ctx context.Context, s *Session) (bool, error)
	// GetByID returns the session or nil when absent.
	GetByID(ctx context.Context, id string) (*Session, error)
	// ListForParty returns sessions where the actor is buyer or supplier.
	ListForParty(ctx context.Context, actorID string) ([]Session, error)

	// UpdateTerms replaces the proposed terms, bumps the terms version and
	// resets both agreement flags; applies only while no trade exists and
	// the version is unchanged since the caller read it.
	UpdateTerms(ctx context.Context, id string, quantity int64, unitPrice float64, productName string, observedVersion int, at time.Time) (bool, error)
	// SetAgreed sets one party's flag; applies only while no trade exists
	// and the terms version still matches the one the party observed.
	SetAgreed(ctx context.Context, id string, party Party, observedVersion int, at time.Time) (bool, error)
	// MarkTradeCreated freezes the session and records the derived trade
	// id. Idempotent.
	MarkTradeCreated(ctx context.Context, id, tradeID string, at time.Time) error
}

// MessageRepository appends to and reads a session's ordered message log.
type MessageRepository interface {
	Append(ctx context.Context, m *Message) error
	ListBySession(ctx context.Context, sessionID string) ([]Message, error)
}
