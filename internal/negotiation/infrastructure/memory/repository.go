package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	negotiation "sourcehub/internal/negotiation/domain"
)

// SessionRepository is an in-memory session store for demo/testing. The
// mutex makes each guarded mutation atomic, mirroring the conditional
// UPDATEs of the postgres implementation.
type SessionRepository struct {
	mu   sync.RWMutex
	data map[string]*negotiation.Session
}

// NewSessionRepository constructs a repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{data: make(map[string]*negotiation.Session)}
}

// CreateIfAbsent inserts the session unless its id is taken.
func (r *SessionRepository) CreateIfAbsent(ctx context.Context, s *negotiation.Session) (bool, error) {
	_ = ctx
	if s == nil {
		return false, negotiation.ErrInvalidSession
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[s.ID]; ok {
		return false, nil
	}
	cp := *s
	r.data[s.ID] = &cp
	return true, nil
}

// GetByID returns a copy of the session, or nil when absent.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*negotiation.Session, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// ListForParty returns sessions where the actor is buyer or supplier,
// newest first.
func (r *SessionRepository) ListForParty(ctx context.Context, actorID string) ([]negotiation.Session, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]negotiation.Session, 0)
	for _, s := range r.data {
		if s.BuyerID == actorID || s.SupplierID == actorID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateTerms replaces the terms, bumps the version and clears both
// agreement flags, provided no trade exists and the version is unchanged.
func (r *SessionRepository) UpdateTerms(ctx context.Context, id string, quantity int64, unitPrice float64, productName string, observedVersion int, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok || s.TradeCreated || s.TermsVersion != observedVersion {
		return false, nil
	}
	s.ProposedQuantity = quantity
	s.ProposedUnitPrice = unitPrice
	s.ProposedProductName = productName
	s.TermsVersion++
	s.BuyerAgreed = false
	s.SupplierAgreed = false
	s.UpdatedAt = at
	return true, nil
}

// SetAgreed sets one party's agreement flag, provided no trade exists and
// the observed terms version is still current.
func (r *SessionRepository) SetAgreed(ctx context.Context, id string, party negotiation.Party, observedVersion int, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok || s.TradeCreated || s.TermsVersion != observedVersion {
		return false, nil
	}
	switch party {
	case negotiation.PartyBuyer:
		s.BuyerAgreed = true
	case negotiation.PartySupplier:
		s.SupplierAgreed = true
	default:
		return false, nil
	}
	s.UpdatedAt = at
	return true, nil
}

// MarkTradeCreated freezes the session and records the trade id.
func (r *SessionRepository) MarkTradeCreated(ctx context.Context, id, tradeID string, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return negotiation.ErrNotFound
	}
	if s.TradeCreated {
		return nil
	}
	s.TradeCreated = true
	s.TradeID = tradeID
	s.UpdatedAt = at
	return nil
}

// MessageRepository is an in-memory append-only message log.
type MessageRepository struct {
	mu   sync.RWMutex
	data map[string][]negotiation.Message
}

// NewMessageRepository constructs a repository.
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{data: make(map[string][]negotiation.Message)}
}

// Append adds a message to its session's log.
func (r *MessageRepository) Append(ctx context.Context, m *negotiation.Message) error {
	_ = ctx
	if m == nil {
		return negotiation.ErrInvalidSession
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[m.SessionID] = append(r.data[m.SessionID], *m)
	return nil
}

// ListBySession returns the session's messages in append order.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]negotiation.Message, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.data[sessionID]
	out := make([]negotiation.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
