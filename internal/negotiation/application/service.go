package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sourcehub/internal/auth"
	"sourcehub/internal/eventing"
	negotiationevents "sourcehub/internal/negotiation/application/events"
	negotiation "sourcehub/internal/negotiation/domain"
	"sourcehub/internal/observability/metrics"
)

// MaterializeRequest is the terms snapshot handed to the trade ledger once
// both parties agree.
type MaterializeRequest struct {
	SessionID        string
	BuyerID          string
	SupplierID       string
	RequirementID    string
	RequirementTitle string
	ProductName      string
	Quantity         int64
	UnitPrice        float64
}

// MaterializedTrade is what the ledger reports back after creation.
type MaterializedTrade struct {
	ID    string
	Value float64
}

// Materializer turns an agreed session into a trade. Implementations must
// be idempotent per session.
type Materializer interface {
	Materialize(ctx context.Context, req MaterializeRequest) (MaterializedTrade, error)
}

// ProposeTermsRequest carries one party's proposed deal terms.
type ProposeTermsRequest struct {
	SessionID   string
	ProductName string
	Quantity    int64
	UnitPrice   float64
}

// Service drives negotiation sessions: opening, chat, proposals, agreement
// and the handoff to the trade ledger.
type Service struct {
	sessions     negotiation.SessionRepository
	messages     negotiation.MessageRepository
	materializer Materializer
	publisher    *eventing.Publisher
}

// NewService constructs the negotiation service.
func NewService(sessions negotiation.SessionRepository, messages negotiation.MessageRepository, materializer Materializer, publisher *eventing.Publisher) (*Service, error) {
	if sessions == nil || messages == nil {
		return nil, errors.New("negotiation: nil repository")
	}
	if materializer == nil {
		return nil, errors.New("negotiation: nil materializer")
	}
	if publisher == nil {
		return nil, errors.New("negotiation: nil publisher")
	}
	return &Service{sessions: sessions, messages: messages, materializer: materializer, publisher: publisher}, nil
}

// Open creates the session for a requirement pairing, or returns the
// existing one. The session id is derived from the pairing, so accepting
// the same introduction twice converges on a single session.
func (s *Service) Open(ctx context.Context, requirementID, requirementTitle, buyerID, supplierID string) (*negotiation.Session, error) {
	if actorID := auth.ActorIDFromContext(ctx); actorID != "" && actorID != buyerID && actorID != supplierID {
		return nil, negotiation.ErrUnauthorizedActor
	}

	now := time.Now().UTC()
	candidate, err := negotiation.NewSession(requirementID, requirementTitle, buyerID, supplierID, now)
	if err != nil {
		return nil, err
	}

	created, err := s.sessions.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.sessions.GetByID(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, negotiation.ErrNotFound
		}
		return existing, nil
	}

	s.appendSystemMessage(ctx, candidate.ID, fmt.Sprintf("Negotiation opened for %q.", requirementTitle), now)
	metrics.IncNegotiationEvent("session_opened")

	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := s.publisher.Publish(ctx, negotiationevents.SessionOpened{
		EventID:          eventID,
		SessionID:        candidate.ID,
		BuyerID:          buyerID,
		SupplierID:       supplierID,
		RequirementID:    requirementID,
		RequirementTitle: requirementTitle,
		OpenedBy:         auth.ActorIDFromContext(ctx),
		OccurredAt:       now,
	}); err != nil {
		return nil, err
	}
	return candidate, nil
}

// ProposeTerms replaces the session's terms with a new version and resets
// both agreement flags in the same write, so nobody stays agreed to terms
// they never saw.
func (s *Service) ProposeTerms(ctx context.Context, req ProposeTermsRequest) (*negotiation.Session, error) {
	req.ProductName = strings.TrimSpace(req.ProductName)
	if req.ProductName == "" || req.Quantity <= 0 || req.UnitPrice <= 0 {
		return nil, negotiation.ErrInvalidTerms
	}

	current, actorID, err := s.loadAsParty(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if current.TradeCreated {
		return nil, negotiation.ErrInvalidState
	}

	now := time.Now().UTC()
	changed, err := s.sessions.UpdateTerms(ctx, req.SessionID, req.Quantity, req.UnitPrice, req.ProductName, current.TermsVersion, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		fresh, loadErr := s.sessions.GetByID(ctx, req.SessionID)
		if loadErr != nil {
			return nil, loadErr
		}
		if fresh != nil && fresh.TradeCreated {
			return nil, negotiation.ErrInvalidState
		}
		return nil, negotiation.ErrStaleTerms
	}

	s.appendSystemMessage(ctx, req.SessionID,
		fmt.Sprintf("New terms proposed: %d x %s at %.2f.", req.Quantity, req.ProductName, req.UnitPrice), now)
	metrics.IncNegotiationEvent("terms_proposed")

	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := s.publisher.Publish(ctx, negotiationevents.TermsProposed{
		EventID:      eventID,
		SessionID:    req.SessionID,
		ProposedBy:   actorID,
		Counterparty: current.Counterparty(actorID),
		ProductName:  req.ProductName,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		TermsVersion: current.TermsVersion + 1,
		OccurredAt:   now,
	}); err != nil {
		return nil, err
	}
	return s.sessions.GetByID(ctx, req.SessionID)
}

// Agree records one party's agreement to the terms version they observed.
// A zero observedVersion means "the current terms"; a non-zero version that
// no longer matches is rejected with ErrStaleTerms, so an agree referencing
// superseded terms can never flip a flag. When both flags are set the trade
// is materialized and the session freezes. Agreeing on a frozen session is
// a no-op that returns it.
func (s *Service) Agree(ctx context.Context, sessionID string, observedVersion int) (*negotiation.Session, error) {
	current, actorID, err := s.loadAsParty(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.TradeCreated {
		return current, nil
	}
	if !current.HasTerms() {
		return nil, negotiation.ErrInvalidState
	}
	if observedVersion == 0 {
		observedVersion = current.TermsVersion
	}
	if observedVersion != current.TermsVersion {
		return nil, negotiation.ErrStaleTerms
	}

	party, _ := current.PartyOf(actorID)
	now := time.Now().UTC()
	if !current.AgreedBy(party) {
		changed, err := s.sessions.SetAgreed(ctx, sessionID, party, observedVersion, now)
		if err != nil {
			return nil, err
		}
		if !changed {
			fresh, loadErr := s.sessions.GetByID(ctx, sessionID)
			if loadErr != nil {
				return nil, loadErr
			}
			if fresh != nil && fresh.TradeCreated {
				return fresh, nil
			}
			return nil, negotiation.ErrStaleTerms
		}
	}

	fresh, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, negotiation.ErrNotFound
	}

	metrics.IncNegotiationEvent("party_agreed")
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := s.publisher.Publish(ctx, negotiationevents.PartyAgreed{
		EventID:      eventID,
		SessionID:    sessionID,
		AgreedBy:     actorID,
		Counterparty: fresh.Counterparty(actorID),
		TermsVersion: fresh.TermsVersion,
		Mutual:       fresh.MutuallyAgreed(),
		OccurredAt:   now,
	}); err != nil {
		return nil, err
	}

	if !fresh.MutuallyAgreed() || fresh.TradeCreated {
		return fresh, nil
	}
	return s.materialize(ctx, fresh, now)
}

func (s *Service) materialize(ctx context.Context, sess *negotiation.Session, now time.Time) (*negotiation.Session, error) {
	created, err := s.materializer.Materialize(ctx, MaterializeRequest{
		SessionID:        sess.ID,
		BuyerID:          sess.BuyerID,
		SupplierID:       sess.SupplierID,
		RequirementID:    sess.RequirementID,
		RequirementTitle: sess.RequirementTitle,
		ProductName:      sess.ProposedProductName,
		Quantity:         sess.ProposedQuantity,
		UnitPrice:        sess.ProposedUnitPrice,
	})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.MarkTradeCreated(ctx, sess.ID, created.ID, now); err != nil {
		return nil, err
	}
	s.appendSystemMessage(ctx, sess.ID,
		fmt.Sprintf("Both parties agreed. Trade %s created at value %.2f.", created.ID, created.Value), now)
	metrics.IncNegotiationEvent("mutual_agreement")

	fresh, err := s.sessions.GetByID(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, negotiation.ErrNotFound
	}
	return fresh, nil
}

// PostMessage appends a chat message from one of the session's parties.
func (s *Service) PostMessage(ctx context.Context, sessionID, body string) (*negotiation.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, negotiation.ErrInvalidState
	}

	current, actorID, err := s.loadAsParty(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &negotiation.Message{
		ID:        eventing.NewEventID(),
		SessionID: sessionID,
		AuthorID:  actorID,
		Kind:      negotiation.MessageKindChat,
		Body:      body,
		CreatedAt: now,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}

	metrics.IncNegotiationEvent("message_posted")
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := s.publisher.Publish(ctx, negotiationevents.MessagePosted{
		EventID:      eventID,
		SessionID:    sessionID,
		AuthorID:     actorID,
		Counterparty: current.Counterparty(actorID),
		OccurredAt:   now,
	}); err != nil {
		return nil, err
	}
	return msg, nil
}

// Get returns a session visible to the caller: its parties or an admin.
func (s *Service) Get(ctx context.Context, sessionID string) (*negotiation.Session, error) {
	current, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, negotiation.ErrNotFound
	}
	if auth.RoleFromContext(ctx) == auth.RoleAdmin {
		return current, nil
	}
	if actorID := auth.ActorIDFromContext(ctx); actorID != "" {
		if _, ok := current.PartyOf(actorID); !ok {
			return nil, negotiation.ErrUnauthorizedActor
		}
	}
	return current, nil
}

// ListForParty returns the caller's sessions.
func (s *Service) ListForParty(ctx context.Context, actorID string) ([]negotiation.Session, error) {
	if actorID == "" {
		actorID = auth.ActorIDFromContext(ctx)
	}
	if actorID == "" {
		return nil, negotiation.ErrUnauthorizedActor
	}
	return s.sessions.ListForParty(ctx, actorID)
}

// Messages returns the session's ordered message log.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]negotiation.Message, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.messages.ListBySession(ctx, sessionID)
}

// loadAsParty loads the session and resolves the caller as one of its
// parties.
func (s *Service) loadAsParty(ctx context.Context, sessionID string) (*negotiation.Session, string, error) {
	current, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if current == nil {
		return nil, "", negotiation.ErrNotFound
	}
	actorID := auth.ActorIDFromContext(ctx)
	if _, ok := current.PartyOf(actorID); !ok {
		return nil, "", negotiation.ErrUnauthorizedActor
	}
	return current, actorID, nil
}

// appendSystemMessage writes a lifecycle milestone into the message log.
// Log failures are not fatal to the triggering operation.
func (s *Service) appendSystemMessage(ctx context.Context, sessionID, body string, now time.Time) {
	_ = s.messages.Append(ctx, &negotiation.Message{
		ID:        eventing.NewEventID(),
		SessionID: sessionID,
		Kind:      negotiation.MessageKindSystem,
		Body:      body,
		CreatedAt: now,
	})
}
