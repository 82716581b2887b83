package negotiation

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Party identifies which side of a session an actor is on.
type Party string

const (
	PartyBuyer    Party = "buyer"
	PartySupplier Party = "supplier"
)

// Session is the bilateral negotiation record between one buyer and one
// supplier for one requirement, prior to a trade existing.
type Session struct {
	ID               string
	BuyerID          string
	SupplierID       string
	RequirementID    string
	RequirementTitle string

	ProposedQuantity    int64
	ProposedUnitPrice   float64
	ProposedProductName string
	// TermsVersion increments on every proposal; agreements are evaluated
	// against the version the agreeing party observed.
	TermsVersion int

	BuyerAgreed    bool
	SupplierAgreed bool

	TradeCreated bool
	TradeID      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeriveSessionID maps a requirement-introduction pairing to its session
// identity so re-accepting the same introduction converges on one session.
func DeriveSessionID(requirementID, buyerID, supplierID string) string {
	sum := sha1.Sum([]byte("session|" + requirementID + "|" + buyerID + "|" + supplierID))
	return "session-" + hex.EncodeToString(sum[:8])
}

// NewSession builds a fresh session with no proposed terms.
func NewSession(requirementID, requirementTitle, buyerID, supplierID string, now time.Time) (*Session, error) {
	if requirementID == "" || buyerID == "" || supplierID == "" {
		return nil, ErrInvalidSession
	}
	if buyerID == supplierID {
		return nil, ErrInvalidSession
	}
	return &Session{
		ID:               DeriveSessionID(requirementID, buyerID, supplierID),
		BuyerID:          buyerID,
		SupplierID:       supplierID,
		RequirementID:    requirementID,
		RequirementTitle: requirementTitle,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}, nil
}

// PartyOf returns the actor's side, if the actor belongs to the session.
func (s *Session) PartyOf(actorID string) (Party, bool) {
	if s == nil || actorID == "" {
		return "", false
	}
	switch actorID {
	case s.BuyerID:
		return PartyBuyer, true
	case s.SupplierID:
		return PartySupplier, true
	default:
		return "", false
	}
}

// Counterparty returns the other side's actor id.
func (s *Session) Counterparty(actorID string) string {
	if s == nil {
		return ""
	}
	if actorID == s.BuyerID {
		return s.SupplierID
	}
	if actorID == s.SupplierID {
		return s.BuyerID
	}
	return ""
}

// HasTerms reports whether any terms have been proposed yet.
func (s *Session) HasTerms() bool {
	return s != nil && s.TermsVersion > 0
}

// MutuallyAgreed reports whether both parties agreed to the current terms.
func (s *Session) MutuallyAgreed() bool {
	return s != nil && s.BuyerAgreed && s.SupplierAgreed
}

// AgreedBy reports whether the given party already agreed.
func (s *Session) AgreedBy(party Party) bool {
	if s == nil {
		return false
	}
	switch party {
	case PartyBuyer:
		return s.BuyerAgreed
	case PartySupplier:
		return s.SupplierAgreed
	default:
		return false
	}
}
