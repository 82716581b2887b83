package trade

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Status is the lifecycle status of a trade.
type Status string

const (
	StatusOngoing                  Status = "ongoing"
	StatusAwaitingAdminConfirmation Status = "awaiting_admin_confirmation"
	StatusRejected                 Status = "rejected"
	StatusDispatched               Status = "dispatched"
	StatusFinished                 Status = "finished"
)

// Invoice and shipping document statuses.
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusSubmitted = "submitted"
	InvoiceStatusApproved  = "approved"

	ShippingDocsPending   = "pending"
	ShippingDocsSubmitted = "submitted"
)

// EntryPath records how a trade entered the ledger.
type EntryPath string

const (
	EntryMutualAgreement EntryPath = "mutual"
	EntrySignedAgreement EntryPath = "signed"
)

// Trade is the durable record of a confirmed deal and its fulfillment state.
type Trade struct {
	ID                     string
	SessionID              string
	BuyerID                string
	SupplierID             string
	RequirementID          string
	RequirementTitle       string
	ProductName            string
	Quantity               int64
	UnitPrice              float64
	Value                  float64
	Status                 Status
	EntryPath              EntryPath
	InvoiceStatus          string
	ShippingDocsStatus     string
	TrackingID             string
	Carrier                string
	ProcessedForCommission bool
	InitiatedAt            time.Time
	SignedAt               time.Time
	UpdatedAt              time.Time
}

// DeriveTradeID maps a session identity to its trade identity.
// The derivation is a pure function so racing creators always target the
// same record.
func DeriveTradeID(sessionID string) string {
	sum := sha1.Sum([]byte("trade|" + sessionID))
	return "trade-" + hex.EncodeToString(sum[:8])
}

// NewTrade builds a trade entering via mutual agreement.
func NewTrade(sessionID, buyerID, supplierID, requirementID, requirementTitle, productName string, quantity int64, unitPrice float64, now time.Time) (*Trade, error) {
	if err := validateParties(sessionID, buyerID, supplierID); err != nil {
		return nil, err
	}
	if quantity <= 0 || unitPrice <= 0 {
		return nil, ErrInvalidTerms
	}
	return &Trade{
		ID:                 DeriveTradeID(sessionID),
		SessionID:          sessionID,
		BuyerID:            buyerID,
		SupplierID:         supplierID,
		RequirementID:      requirementID,
		RequirementTitle:   requirementTitle,
		ProductName:        productName,
		Quantity:           quantity,
		UnitPrice:          unitPrice,
		Value:              float64(quantity) * unitPrice,
		Status:             StatusOngoing,
		EntryPath:          EntryMutualAgreement,
		InvoiceStatus:      InvoiceStatusPending,
		ShippingDocsStatus: ShippingDocsPending,
		InitiatedAt:        now.UTC(),
		UpdatedAt:          now.UTC(),
	}, nil
}

// NewSignedTrade builds a trade entering via the countersigned-agreement
// path; it awaits administrative confirmation before fulfillment starts.
func NewSignedTrade(sessionID, buyerID, supplierID, requirementID, requirementTitle, productName string, quantity int64, unitPrice float64, now time.Time) (*Trade, error) {
	t, err := NewTrade(sessionID, buyerID, supplierID, requirementID, requirementTitle, productName, quantity, unitPrice, now)
	if err != nil {
		return nil, err
	}
	t.Status = StatusAwaitingAdminConfirmation
	t.EntryPath = EntrySignedAgreement
	t.SignedAt = now.UTC()
	return t, nil
}

func validateParties(sessionID, buyerID, supplierID string) error {
	if sessionID == "" || buyerID == "" || supplierID == "" {
		return ErrInvalidTerms
	}
	return nil
}

// transitions lists the allowed forward edges of the status machine.
// Delivery confirmation writes finished directly; no delivered status is
// ever persisted.
var transitions = map[Status][]Status{
	StatusAwaitingAdminConfirmation: {StatusOngoing, StatusRejected},
	StatusOngoing:                   {StatusDispatched},
	StatusDispatched:                {StatusFinished},
}

// CanTransition reports whether from -> to is an allowed transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status Status) bool {
	return len(transitions[status]) == 0
}

// Commission returns the read-time commission amount at the given rate.
// The amount is never stored so rate changes need no backfill.
func (t *Trade) Commission(rate float64) float64 {
	if t == nil || rate <= 0 {
		return 0
	}
	return t.Value * rate
}

// PartyOf returns which side of the trade the actor is on.
func (t *Trade) PartyOf(actorID string) (string, bool) {
	if t == nil || actorID == "" {
		return "", false
	}
	switch actorID {
	case t.BuyerID:
		return "buyer", true
	case t.SupplierID:
		return "supplier", true
	default:
		return "", false
	}
}
