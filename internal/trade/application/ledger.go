package application

import (
	"context"
	"errors"
	"time"

	"sourcehub/internal/auth"
	"sourcehub/internal/eventing"
	"sourcehub/internal/observability/metrics"
	tradeevents "sourcehub/internal/trade/application/events"
	trade "sourcehub/internal/trade/domain"
)

// MaterializeRequest carries the session terms a trade is created from.
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

// SessionRecord is the stored negotiation state a signed entry is built
// from. Parties and terms always come from here, never from the caller.
type SessionRecord struct {
	ID               string
	BuyerID          string
	SupplierID       string
	RequirementID    string
	RequirementTitle string
	ProductName      string
	Quantity         int64
	UnitPrice        float64
	HasTerms         bool
}

// SessionReader resolves stored sessions for the signed entry path. A nil
// record means the session does not exist.
type SessionReader interface {
	SessionByID(ctx context.Context, sessionID string) (*SessionRecord, error)
}

// Ledger is the authoritative trade store front: it owns idempotent
// creation and the administrative confirmation path.
type Ledger struct {
	repo      trade.Repository
	sessions  SessionReader
	publisher *eventing.Publisher
}

// NewLedger constructs a ledger.
func NewLedger(repo trade.Repository, sessions SessionReader, publisher *eventing.Publisher) (*Ledger, error) {
	if repo == nil {
		return nil, errors.New("ledger: nil repo")
	}
	if sessions == nil {
		return nil, errors.New("ledger: nil session reader")
	}
	if publisher == nil {
		return nil, errors.New("ledger: nil publisher")
	}
	return &Ledger{repo: repo, sessions: sessions, publisher: publisher}, nil
}

// Materialize creates the trade for a session, or returns the existing one.
// The trade id is a pure function of the session id and the insert is
// create-if-absent, so any number of concurrent callers converge on a
// single trade; losers of the race observe the winner's snapshot. Safe to
// retry on store errors.
func (l *Ledger) Materialize(ctx context.Context, req MaterializeRequest) (*trade.Trade, error) {
	start := time.Now()
	outcome := metrics.MaterializeCreated
	defer func() {
		metrics.ObserveMaterialize(outcome, time.Since(start))
	}()

	now := time.Now().UTC()
	candidate, err := trade.NewTrade(req.SessionID, req.BuyerID, req.SupplierID, req.RequirementID, req.RequirementTitle, req.ProductName, req.Quantity, req.UnitPrice, now)
	if err != nil {
		outcome = metrics.ResultError
		return nil, err
	}

	createErr := l.repo.CreateIfAbsent(ctx, candidate)
	if createErr != nil {
		if !errors.Is(createErr, trade.ErrAlreadyExists) {
			outcome = metrics.ResultError
			return nil, createErr
		}
		// Another caller won the race; their snapshot is authoritative.
		outcome = metrics.MaterializeAlreadyExists
		existing, err := l.repo.GetByID(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, trade.ErrNotFound
		}
		return existing, nil
	}

	metrics.IncTradeTransition(string(trade.StatusOngoing))
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := l.publisher.Publish(ctx, tradeevents.TradeMaterialized{
		EventID:          eventID,
		TradeID:          candidate.ID,
		SessionID:        candidate.SessionID,
		BuyerID:          candidate.BuyerID,
		SupplierID:       candidate.SupplierID,
		RequirementTitle: candidate.RequirementTitle,
		Value:            candidate.Value,
		EntryPath:        string(candidate.EntryPath),
		OccurredAt:       now,
	}); err != nil {
		return nil, err
	}
	return candidate, nil
}

// SignAgreement creates the trade via the countersigned-agreement entry.
// The session record is authoritative for parties and terms, so a signer
// cannot assert a price or counterparty the stored session never carried.
// It shares the ledger's idempotent-creation guarantee: re-signing an
// already materialized session returns the existing trade.
func (l *Ledger) SignAgreement(ctx context.Context, sessionID string) (*trade.Trade, error) {
	rec, err := l.sessions.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, trade.ErrNotFound
	}
	actorID := auth.ActorIDFromContext(ctx)
	if actorID != rec.BuyerID && actorID != rec.SupplierID {
		return nil, trade.ErrUnauthorizedActor
	}
	if !rec.HasTerms {
		return nil, trade.ErrPreconditionFailed
	}

	now := time.Now().UTC()
	candidate, err := trade.NewSignedTrade(rec.ID, rec.BuyerID, rec.SupplierID, rec.RequirementID, rec.RequirementTitle, rec.ProductName, rec.Quantity, rec.UnitPrice, now)
	if err != nil {
		return nil, err
	}

	if createErr := l.repo.CreateIfAbsent(ctx, candidate); createErr != nil {
		if !errors.Is(createErr, trade.ErrAlreadyExists) {
			return nil, createErr
		}
		existing, err := l.repo.GetByID(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, trade.ErrNotFound
		}
		return existing, nil
	}

	metrics.IncTradeTransition(string(trade.StatusAwaitingAdminConfirmation))
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := l.publisher.Publish(ctx, tradeevents.AgreementSigned{
		EventID:    eventID,
		TradeID:    candidate.ID,
		SessionID:  candidate.SessionID,
		SignedBy:   actorID,
		BuyerID:    candidate.BuyerID,
		SupplierID: candidate.SupplierID,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}
	return candidate, nil
}

// Confirm moves a signed trade into fulfillment. Admin only.
func (l *Ledger) Confirm(ctx context.Context, tradeID string) (*trade.Trade, error) {
	if auth.RoleFromContext(ctx) != auth.RoleAdmin {
		return nil, trade.ErrUnauthorizedActor
	}
	now := time.Now().UTC()
	changed, err := l.repo.UpdateStatus(ctx, tradeID, trade.StatusAwaitingAdminConfirmation, trade.StatusOngoing, now)
	if err != nil {
		return nil, err
	}
	current, getErr := l.repo.GetByID(ctx, tradeID)
	if getErr != nil {
		return nil, getErr
	}
	if current == nil {
		return nil, trade.ErrNotFound
	}
	if !changed {
		metrics.IncTradeRejection("invalid_transition")
		return nil, trade.ErrInvalidTransition
	}

	metrics.IncTradeTransition(string(trade.StatusOngoing))
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := l.publisher.Publish(ctx, tradeevents.TradeConfirmed{
		EventID:    eventID,
		TradeID:    tradeID,
		AdminID:    auth.ActorIDFromContext(ctx),
		BuyerID:    current.BuyerID,
		SupplierID: current.SupplierID,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}
	return current, nil
}

// Reject declines a signed trade. Admin only.
func (l *Ledger) Reject(ctx context.Context, tradeID, reason string) (*trade.Trade, error) {
	if auth.RoleFromContext(ctx) != auth.RoleAdmin {
		return nil, trade.ErrUnauthorizedActor
	}
	now := time.Now().UTC()
	changed, err := l.repo.UpdateStatus(ctx, tradeID, trade.StatusAwaitingAdminConfirmation, trade.StatusRejected, now)
	if err != nil {
		return nil, err
	}
	current, getErr := l.repo.GetByID(ctx, tradeID)
	if getErr != nil {
		return nil, getErr
	}
	if current == nil {
		return nil, trade.ErrNotFound
	}
	if !changed {
		metrics.IncTradeRejection("invalid_transition")
		return nil, trade.ErrInvalidTransition
	}

	metrics.IncTradeTransition(string(trade.StatusRejected))
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := l.publisher.Publish(ctx, tradeevents.TradeRejectedByAdmin{
		EventID:    eventID,
		TradeID:    tradeID,
		AdminID:    auth.ActorIDFromContext(ctx),
		Reason:     reason,
		BuyerID:    current.BuyerID,
		SupplierID: current.SupplierID,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}
	return current, nil
}

// Get returns a trade visible to the caller: its parties or an admin.
func (l *Ledger) Get(ctx context.Context, tradeID string) (*trade.Trade, error) {
	current, err := l.repo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, trade.ErrNotFound
	}
	if auth.RoleFromContext(ctx) == auth.RoleAdmin {
		return current, nil
	}
	if actorID := auth.ActorIDFromContext(ctx); actorID != "" {
		if _, ok := current.PartyOf(actorID); !ok {
			return nil, trade.ErrUnauthorizedActor
		}
	}
	return current, nil
}

// ListForParty returns the caller's trades.
func (l *Ledger) ListForParty(ctx context.Context, actorID string) ([]trade.Trade, error) {
	if actorID == "" {
		actorID = auth.ActorIDFromContext(ctx)
	}
	if actorID == "" {
		return nil, trade.ErrUnauthorizedActor
	}
	return l.repo.ListForParty(ctx, actorID)
}
