package trade

import (
	"context"
	"time"
)

// Repository is the store contract for trades. Every guarded mutation is a
// conditional write: it applies only when the recorded state still satisfies
// the guard, and reports whether a row changed.
type Repository interface {
	// CreateIfAbsent inserts the trade only when no trade exists at its id.
	// Returns ErrAlreadyExists when the id is already taken.
	CreateIfAbsent(ctx context.Context, t *Trade) error
	// GetByID returns the trade or nil when absent.
	GetByID(ctx context.Context, id string) (*Trade, error)
	// ListForParty returns trades where the actor is buyer or supplier.
	ListForParty(ctx context.Context, actorID string) ([]Trade, error)

	// UpdateStatus transitions status from -> to when the current status
	// equals from.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) (bool, error)
	// UpdateInvoiceStatus moves the invoice along pending -> submitted ->
	// approved when the current invoice status equals from and the trade is
	// ongoing.
	UpdateInvoiceStatus(ctx context.Context, id, from, to string, at time.Time) (bool, error)
	// SubmitShippingDocs marks shipping docs submitted; applies only when
	// the invoice is approved and docs are still pending.
	SubmitShippingDocs(ctx context.Context, id string, at time.Time) (bool, error)
	// RecordDispatch stores tracking info and transitions to dispatched;
	// applies only when the invoice is approved and shipping docs are
	// submitted.
	RecordDispatch(ctx context.Context, id, trackingID, carrier string, at time.Time) (bool, error)
	// ConfirmDelivery transitions to finished from dispatched (or from
	// ongoing when shipping info is already recorded).
	ConfirmDelivery(ctx context.Context, id string, at time.Time) (bool, error)

	// MarkCommissionProcessed sets the commission flag on a finished trade.
	// Reports false without error when the flag was already set.
	MarkCommissionProcessed(ctx context.Context, id string, at time.Time) (bool, error)
	// ListUnprocessedFinished returns finished trades whose commission flag
	// is unset.
	ListUnprocessedFinished(ctx context.Context, limit int) ([]Trade, error)
}
