package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"sourcehub/internal/auth"
	"sourcehub/internal/eventing"
	"sourcehub/internal/observability/metrics"
	tradeevents "sourcehub/internal/trade/application/events"
	trade "sourcehub/internal/trade/domain"
)

// DocumentService drives the fulfillment paperwork on an ongoing trade:
// invoice submission and approval, shipping documents, tracking, delivery.
// Every mutation is a conditional store update; a zero-row update is
// diagnosed against the current row so callers get a precise error.
type DocumentService struct {
	repo      trade.Repository
	publisher *eventing.Publisher
}

// NewDocumentService constructs the workflow service.
func NewDocumentService(repo trade.Repository, publisher *eventing.Publisher) (*DocumentService, error) {
	if repo == nil {
		return nil, errors.New("documents: nil repo")
	}
	if publisher == nil {
		return nil, errors.New("documents: nil publisher")
	}
	return &DocumentService{repo: repo, publisher: publisher}, nil
}

func (s *DocumentService) load(ctx context.Context, tradeID string) (*trade.Trade, error) {
	current, err := s.repo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, trade.ErrNotFound
	}
	return current, nil
}

func (s *DocumentService) requireParty(ctx context.Context, t *trade.Trade, want auth.Role) error {
	if auth.RoleFromContext(ctx) != want {
		return trade.ErrUnauthorizedActor
	}
	actorID := auth.ActorIDFromContext(ctx)
	if actorID == "" {
		return trade.ErrUnauthorizedActor
	}
	switch want {
	case auth.RoleBuyer:
		if actorID != t.BuyerID {
			return trade.ErrUnauthorizedActor
		}
	case auth.RoleSupplier:
		if actorID != t.SupplierID {
			return trade.ErrUnauthorizedActor
		}
	default:
		return trade.ErrUnauthorizedActor
	}
	return nil
}

// SubmitInvoice records the supplier's invoice on an ongoing trade.
func (s *DocumentService) SubmitInvoice(ctx context.Context, tradeID string) (*trade.Trade, error) {
	current, err := s.load(ctx, tradeID)
	if err != nil {
		metrics.IncDocumentAction("invoice_submit", metrics.ResultError)
		return nil, err
	}
	if err := s.requireParty(ctx, current, auth.RoleSupplier); err != nil {
		metrics.IncDocumentAction("invoice_submit", metrics.ResultError)
		return nil, err
	}

	now := time.Now().UTC()
	changed, err := s.repo.UpdateInvoiceStatus(ctx, tradeID, trade.InvoiceStatusPending, trade.InvoiceStatusSubmitted, now)
	if err != nil {
		metrics.IncDocumentAction("invoice_submit", metrics.ResultError)
		return nil, err
	}
	if !changed {
		metrics.IncDocumentAction("invoice_submit", metrics.ResultError)
		return nil, s.diagnoseInvoice(ctx, tradeID, trade.InvoiceStatusPending)
	}

	metrics.IncDocumentAction("invoice_submit", metrics.ResultSuccess)
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := s.publisher.Publish(ctx, tradeevents.InvoiceSubmitted{
		EventID:    eventID,
		TradeID:    tradeID,
		BuyerID:    current.BuyerID,
		SupplierID: current.SupplierID,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}
	return s.load(ctx, tradeID)
}

// ApproveInvoice records the buyer's approval of a submitted invoice.
// Approval opens the shipping-documents gate.
func (s *DocumentService) ApproveInvoice(ctx context.Context, tradeID string) (*trade.Trade, error) {
	current, err := s.load(ctx, tradeID)
	if err != nil {
		metrics.IncDocumentAction("invoice_approve", metrics.ResultError)
		return nil, err
	}
	if err := s.requireParty(ctx, current, auth.RoleBuyer); err != nil {
		metrics.IncDocumentAction("invoice_approve", metrics.ResultError)
		return nil, err
	}

	now := time.Now().UTC()
	changed, err := s.repo.UpdateInvoiceStatus(ctx, tradeID, trade.InvoiceStatusSubmitted, trade.InvoiceStatusApproved, now)
	if err != nil {
		metrics.IncDocumentAction("invoice_approve", metrics.ResultError)
		return nil, err
	}
	if !changed {
		metrics.IncDocumentAction("invoice_approve", metrics.ResultError)
		return nil, s.diagnoseInvoice(ctx, tradeID, trade.InvoiceStatusSubmitted)
	}

	metrics.IncDocumentAction("invoice_approve", metrics.ResultSuccess)
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := s.publisher.Publish(ctx, tradeevents.InvoiceApproved{
		EventID:    eventID,
		TradeID:    tradeID,
		BuyerID:    current.BuyerID,
		SupplierID: current.SupplierID,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}
	return s.load(ctx, tradeID)
}

// SubmitShippingDocs records the supplier's shipping documents. The
// store-level guard requires the invoice to be approved first; submitting
// before approval fails the precondition.
func (s *DocumentService) SubmitShippingDocs(ctx context.Context, tradeID string) (*trade.Trade, error) {
	current, err := s.load(ctx, tradeID)
	if err != nil {
		metrics.IncDocumentAction("shipping_docs", metrics.ResultError)
		return nil, err
	}
	if err := s.requireParty(ctx, current, auth.RoleSupplier); err != nil {
		metrics.IncDocumentAction("shipping_docs", metrics.ResultError)
		return nil, err
	}

	now := time.Now().UTC()
	changed, err := s.repo.SubmitShippingDocs(ctx, tradeID, now)
	if err != nil {
		metrics.IncDocumentAction("shipping_docs", metrics.ResultError)
		return nil, err
	}
	if !changed {
		metrics.IncDocumentAction("shipping_docs", metrics.ResultError)
		fresh, loadErr := s.load(ctx, tradeID)
		if loadErr != nil {
			return nil, loadErr
		}
		if fresh.Status != trade.StatusOngoing {
			return nil, trade.ErrInvalidTransition
		}
		return nil, trade.ErrPreconditionFailed
	}

	metrics.IncDocumentAction("shipping_docs", metrics.ResultSuccess)
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := s.publisher.Publish(ctx, tradeevents.ShippingDocsSubmitted{
		EventID:    eventID,
		TradeID:    tradeID,
		BuyerID:    current.BuyerID,
		SupplierID: current.SupplierID,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}
	return s.load(ctx, tradeID)
}

// RecordTracking stores tracking info and moves the trade to dispatched.
// Requires the full paper trail: invoice approved, shipping docs submitted.
func (s *DocumentService) RecordTracking(ctx context.Context, tradeID, trackingID, carrier string) (*trade.Trade, error) {
	trackingID = strings.TrimSpace(trackingID)
	carrier = strings.TrimSpace(carrier)
	if trackingID == "" || carrier == "" {
		metrics.IncDocumentAction("tracking", metrics.ResultError)
		return nil, trade.ErrPreconditionFailed
	}

	current, err := s.load(ctx, tradeID)
	if err != nil {
		metrics.IncDocumentAction("tracking", metrics.ResultError)
		return nil, err
	}
	if err := s.requireParty(ctx, current, auth.RoleSupplier); err != nil {
		metrics.IncDocumentAction("tracking", metrics.ResultError)
		return nil, err
	}

	now := time.Now().UTC()
	changed, err := s.repo.RecordDispatch(ctx, tradeID, trackingID, carrier, now)
	if err != nil {
		metrics.IncDocumentAction("tracking", metrics.ResultError)
		return nil, err
	}
	if !changed {
		metrics.IncDocumentAction("tracking", metrics.ResultError)
		fresh, loadErr := s.load(ctx, tradeID)
		if loadErr != nil {
			return nil, loadErr
		}
		if fresh.Status != trade.StatusOngoing {
			return nil, trade.ErrInvalidTransition
		}
		return nil, trade.ErrPreconditionFailed
	}

	metrics.IncDocumentAction("tracking", metrics.ResultSuccess)
	metrics.IncTradeTransition(string(trade.StatusDispatched))
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := s.publisher.Publish(ctx, tradeevents.TradeDispatched{
		EventID:    eventID,
		TradeID:    tradeID,
		TrackingID: trackingID,
		Carrier:    carrier,
		BuyerID:    current.BuyerID,
		SupplierID: current.SupplierID,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}
	return s.load(ctx, tradeID)
}

// ConfirmDelivery lets the buyer close the loop: the trade finishes and
// becomes eligible for the commission sweep.
func (s *DocumentService) ConfirmDelivery(ctx context.Context, tradeID string) (*trade.Trade, error) {
	current, err := s.load(ctx, tradeID)
	if err != nil {
		metrics.IncDocumentAction("delivery", metrics.ResultError)
		return nil, err
	}
	if err := s.requireParty(ctx, current, auth.RoleBuyer); err != nil {
		metrics.IncDocumentAction("delivery", metrics.ResultError)
		return nil, err
	}

	now := time.Now().UTC()
	changed, err := s.repo.ConfirmDelivery(ctx, tradeID, now)
	if err != nil {
		metrics.IncDocumentAction("delivery", metrics.ResultError)
		return nil, err
	}
	if !changed {
		metrics.IncDocumentAction("delivery", metrics.ResultError)
		return nil, trade.ErrInvalidTransition
	}

	metrics.IncDocumentAction("delivery", metrics.ResultSuccess)
	metrics.IncTradeTransition(string(trade.StatusFinished))
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := s.publisher.Publish(ctx, tradeevents.DeliveryConfirmed{
		EventID:    eventID,
		TradeID:    tradeID,
		BuyerID:    current.BuyerID,
		SupplierID: current.SupplierID,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}
	return s.load(ctx, tradeID)
}

// diagnoseInvoice maps a zero-row invoice update to a workflow error.
func (s *DocumentService) diagnoseInvoice(ctx context.Context, tradeID, wantFrom string) error {
	fresh, err := s.load(ctx, tradeID)
	if err != nil {
		return err
	}
	if fresh.Status != trade.StatusOngoing {
		return trade.ErrInvalidTransition
	}
	if fresh.InvoiceStatus != wantFrom {
		return trade.ErrPreconditionFailed
	}
	return trade.ErrInvalidTransition
}
