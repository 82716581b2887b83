package negotiation

import "time"

// Message kinds.
const (
	MessageKindChat   = "chat"
	MessageKindSystem = "system"
)

// Message is one entry in a session's ordered, append-only message log.
// System messages record lifecycle milestones (terms proposed, party
// agreed, trade created) alongside party chat.
type Message struct {
	ID        string
	SessionID string
	AuthorID  string // empty for system messages
	Kind      string
	Body      string
	CreatedAt time.Time
}
