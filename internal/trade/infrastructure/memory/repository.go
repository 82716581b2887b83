package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	trade "sourcehub/internal/trade/domain"
)

// Repository is an in-memory trade store for demo/testing. The mutex makes
// each guarded mutation atomic, mirroring the conditional UPDATEs of the
// postgres implementation.
type Repository struct {
	mu   sync.RWMutex
	data map[string]*trade.Trade
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]*trade.Trade)}
}

// CreateIfAbsent inserts the trade unless its id is taken.
func (r *Repository) CreateIfAbsent(ctx context.Context, t *trade.Trade) error {
	_ = ctx
	if t == nil {
		return trade.ErrNilTrade
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[t.ID]; ok {
		return trade.ErrAlreadyExists
	}
	cp := *t
	r.data[t.ID] = &cp
	return nil
}

// GetByID returns a copy of the trade, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*trade.Trade, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

// ListForParty returns trades where the actor is buyer or supplier, newest
// first.
func (r *Repository) ListForParty(ctx context.Context, actorID string) ([]trade.Trade, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]trade.Trade, 0)
	for _, t := range r.data {
		if t.BuyerID == actorID || t.SupplierID == actorID {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].InitiatedAt.After(result[j].InitiatedAt)
	})
	return result, nil
}

// UpdateStatus moves the trade from one status to another.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to trade.Status, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = at
	return true, nil
}

// UpdateInvoiceStatus advances the invoice state on an ongoing trade.
func (r *Repository) UpdateInvoiceStatus(ctx context.Context, id, from, to string, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok || t.Status != trade.StatusOngoing || t.InvoiceStatus != from {
		return false, nil
	}
	t.InvoiceStatus = to
	t.UpdatedAt = at
	return true, nil
}

// SubmitShippingDocs marks shipping docs submitted; requires an approved
// invoice on an ongoing trade.
func (r *Repository) SubmitShippingDocs(ctx context.Context, id string, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok || t.Status != trade.StatusOngoing {
		return false, nil
	}
	if t.InvoiceStatus != trade.InvoiceStatusApproved || t.ShippingDocsStatus != trade.ShippingDocsPending {
		return false, nil
	}
	t.ShippingDocsStatus = trade.ShippingDocsSubmitted
	t.UpdatedAt = at
	return true, nil
}

// RecordDispatch stores tracking info and moves the trade to dispatched;
// requires approved invoice and submitted shipping docs.
func (r *Repository) RecordDispatch(ctx context.Context, id, trackingID, carrier string, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok || t.Status != trade.StatusOngoing {
		return false, nil
	}
	if t.InvoiceStatus != trade.InvoiceStatusApproved || t.ShippingDocsStatus != trade.ShippingDocsSubmitted {
		return false, nil
	}
	t.Status = trade.StatusDispatched
	t.TrackingID = trackingID
	t.Carrier = carrier
	t.UpdatedAt = at
	return true, nil
}

// ConfirmDelivery finishes a dispatched trade. An ongoing trade with full
// shipping info also qualifies, covering dispatch and delivery racing.
func (r *Repository) ConfirmDelivery(ctx context.Context, id string, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return false, nil
	}
	eligible := t.Status == trade.StatusDispatched ||
		(t.Status == trade.StatusOngoing && t.TrackingID != "" && t.ShippingDocsStatus == trade.ShippingDocsSubmitted)
	if !eligible {
		return false, nil
	}
	t.Status = trade.StatusFinished
	t.UpdatedAt = at
	return true, nil
}

// MarkCommissionProcessed flags a finished trade as swept. Idempotent over
// already-processed rows.
func (r *Repository) MarkCommissionProcessed(ctx context.Context, id string, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok || t.Status != trade.StatusFinished || t.ProcessedForCommission {
		return false, nil
	}
	t.ProcessedForCommission = true
	t.UpdatedAt = at
	return true, nil
}

// ListUnprocessedFinished returns finished trades awaiting the commission
// sweep, oldest first.
func (r *Repository) ListUnprocessedFinished(ctx context.Context, limit int) ([]trade.Trade, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]trade.Trade, 0)
	for _, t := range r.data {
		if t.Status == trade.StatusFinished && !t.ProcessedForCommission {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
