package events

import "time"

// SessionOpened is emitted when an introduction is accepted and a session
// is created.
type SessionOpened struct {
	EventID          string    `json:"event_id"`
	SessionID        string    `json:"session_id"`
	BuyerID          string    `json:"buyer_id"`
	SupplierID       string    `json:"supplier_id"`
	RequirementID    string    `json:"requirement_id"`
	RequirementTitle string    `json:"requirement_title"`
	OpenedBy         string    `json:"opened_by"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// TermsProposed is emitted when either party proposes new deal terms.
// Both agreement flags are reset as part of the same mutation.
type TermsProposed struct {
	EventID      string    `json:"event_id"`
	SessionID    string    `json:"session_id"`
	ProposedBy   string    `json:"proposed_by"`
	Counterparty string    `json:"counterparty"`
	ProductName  string    `json:"product_name"`
	Quantity     int64     `json:"quantity"`
	UnitPrice    float64   `json:"unit_price"`
	TermsVersion int       `json:"terms_version"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// PartyAgreed is emitted when one party agrees to the current terms.
type PartyAgreed struct {
	EventID      string    `json:"event_id"`
	SessionID    string    `json:"session_id"`
	AgreedBy     string    `json:"agreed_by"`
	Counterparty string    `json:"counterparty"`
	TermsVersion int       `json:"terms_version"`
	Mutual       bool      `json:"mutual"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// MessagePosted is emitted when a party posts a chat message.
type MessagePosted struct {
	EventID      string    `json:"event_id"`
	SessionID    string    `json:"session_id"`
	AuthorID     string    `json:"author_id"`
	Counterparty string    `json:"counterparty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
