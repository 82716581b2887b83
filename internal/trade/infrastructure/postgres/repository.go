package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	trade "sourcehub/internal/trade/domain"
)

// Repository persists trades. Every guarded mutation is a single
// conditional UPDATE; the WHERE clause carries the state-machine guard so
// concurrent callers cannot both win.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const tradeColumns = `
	id, session_id, buyer_id, supplier_id, requirement_id, requirement_title,
	product_name, quantity, unit_price, value, status, entry_path,
	invoice_status, shipping_docs_status, tracking_id, carrier,
	processed_for_commission, initiated_at, signed_at, updated_at`

// CreateIfAbsent inserts the trade; a duplicate id is reported as
// trade.ErrAlreadyExists without touching the existing row.
func (r *Repository) CreateIfAbsent(ctx context.Context, t *trade.Trade) error {
	if r == nil || r.db == nil {
		return errors.New("trade repo: nil db")
	}
	if t == nil {
		return trade.ErrNilTrade
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO trades (
	id, session_id, buyer_id, supplier_id, requirement_id, requirement_title,
	product_name, quantity, unit_price, value, status, entry_path,
	invoice_status, shipping_docs_status, tracking_id, carrier,
	processed_for_commission, initiated_at, signed_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
)
ON CONFLICT (id) DO NOTHING`,
		t.ID, t.SessionID, t.BuyerID, t.SupplierID, t.RequirementID, t.RequirementTitle,
		t.ProductName, t.Quantity, t.UnitPrice, t.Value, t.Status, t.EntryPath,
		t.InvoiceStatus, t.ShippingDocsStatus, t.TrackingID, t.Carrier,
		t.ProcessedForCommission, t.InitiatedAt, nullTime(t.SignedAt), t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return trade.ErrAlreadyExists
	}
	return nil
}

// GetByID fetches a trade, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*trade.Trade, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("trade repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT`+tradeColumns+`
FROM trades
WHERE id = $1
LIMIT 1`, id)
	return scanTrade(row)
}

// ListForParty lists trades where the actor is buyer or supplier, newest
// first.
func (r *Repository) ListForParty(ctx context.Context, actorID string) ([]trade.Trade, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("trade repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT`+tradeColumns+`
FROM trades
WHERE buyer_id = $1 OR supplier_id = $1
ORDER BY initiated_at DESC`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// UpdateStatus moves the trade from one status to another.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to trade.Status, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("trade repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE trades
SET status = $1, updated_at = $2
WHERE id = $3 AND status = $4`, to, at, id, from)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// UpdateInvoiceStatus advances the invoice state on an ongoing trade.
func (r *Repository) UpdateInvoiceStatus(ctx context.Context, id, from, to string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("trade repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE trades
SET invoice_status = $1, updated_at = $2
WHERE id = $3 AND status = $4 AND invoice_status = $5`,
		to, at, id, trade.StatusOngoing, from)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// SubmitShippingDocs marks shipping docs submitted; requires an approved
// invoice on an ongoing trade.
func (r *Repository) SubmitShippingDocs(ctx context.Context, id string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("trade repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE trades
SET shipping_docs_status = $1, updated_at = $2
WHERE id = $3 AND status = $4 AND invoice_status = $5 AND shipping_docs_status = $6`,
		trade.ShippingDocsSubmitted, at, id, trade.StatusOngoing,
		trade.InvoiceStatusApproved, trade.ShippingDocsPending)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// RecordDispatch stores tracking info and moves the trade to dispatched;
// requires approved invoice and submitted shipping docs.
func (r *Repository) RecordDispatch(ctx context.Context, id, trackingID, carrier string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("trade repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE trades
SET status = $1, tracking_id = $2, carrier = $3, updated_at = $4
WHERE id = $5 AND status = $6 AND invoice_status = $7 AND shipping_docs_status = $8`,
		trade.StatusDispatched, trackingID, carrier, at, id, trade.StatusOngoing,
		trade.InvoiceStatusApproved, trade.ShippingDocsSubmitted)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// ConfirmDelivery finishes a dispatched trade. An ongoing trade with full
// shipping info also qualifies, covering dispatch and delivery racing.
func (r *Repository) ConfirmDelivery(ctx context.Context, id string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("trade repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE trades
SET status = $1, updated_at = $2
WHERE id = $3 AND (
	status = $4
	OR (status = $5 AND tracking_id <> '' AND shipping_docs_status = $6)
)`,
		trade.StatusFinished, at, id, trade.StatusDispatched,
		trade.StatusOngoing, trade.ShippingDocsSubmitted)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// MarkCommissionProcessed flags a finished trade as swept; a second sweep
// of the same row is a no-op.
func (r *Repository) MarkCommissionProcessed(ctx context.Context, id string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("trade repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE trades
SET processed_for_commission = TRUE, updated_at = $1
WHERE id = $2 AND status = $3 AND processed_for_commission = FALSE`,
		at, id, trade.StatusFinished)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// ListUnprocessedFinished returns finished trades awaiting the commission
// sweep, oldest first.
func (r *Repository) ListUnprocessedFinished(ctx context.Context, limit int) ([]trade.Trade, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("trade repo: nil db")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT`+tradeColumns+`
FROM trades
WHERE status = $1 AND processed_for_commission = FALSE
ORDER BY updated_at ASC
LIMIT $2`, trade.StatusFinished, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (*trade.Trade, error) {
	var t trade.Trade
	var signedAt sql.NullTime
	err := row.Scan(
		&t.ID,
		&t.SessionID,
		&t.BuyerID,
		&t.SupplierID,
		&t.RequirementID,
		&t.RequirementTitle,
		&t.ProductName,
		&t.Quantity,
		&t.UnitPrice,
		&t.Value,
		&t.Status,
		&t.EntryPath,
		&t.InvoiceStatus,
		&t.ShippingDocsStatus,
		&t.TrackingID,
		&t.Carrier,
		&t.ProcessedForCommission,
		&t.InitiatedAt,
		&signedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if signedAt.Valid {
		t.SignedAt = signedAt.Time.UTC()
	}
	t.InitiatedAt = t.InitiatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func collectTrades(rows *sql.Rows) ([]trade.Trade, error) {
	var result []trade.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		if t != nil {
			result = append(result, *t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func oneRow(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
