package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	negotiation "sourcehub/internal/negotiation/domain"
)

// SessionRepository persists negotiation sessions. Terms and agreement
// writes are conditional UPDATEs guarded by the terms version, so a stale
// write falls out as zero rows instead of clobbering newer state.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository constructs a repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, buyer_id, supplier_id, requirement_id, requirement_title,
	proposed_quantity, proposed_unit_price, proposed_product_name,
	terms_version, buyer_agreed, supplier_agreed, trade_created, trade_id,
	created_at, updated_at`

// CreateIfAbsent inserts the session unless its id is taken.
func (r *SessionRepository) CreateIfAbsent(ctx context.Context, s *negotiation.Session) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("session repo: nil db")
	}
	if s == nil {
		return false, negotiation.ErrInvalidSession
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO negotiation_sessions (
	id, buyer_id, supplier_id, requirement_id, requirement_title,
	proposed_quantity, proposed_unit_price, proposed_product_name,
	terms_version, buyer_agreed, supplier_agreed, trade_created, trade_id,
	created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)
ON CONFLICT (id) DO NOTHING`,
		s.ID, s.BuyerID, s.SupplierID, s.RequirementID, s.RequirementTitle,
		s.ProposedQuantity, s.ProposedUnitPrice, s.ProposedProductName,
		s.TermsVersion, s.BuyerAgreed, s.SupplierAgreed, s.TradeCreated, s.TradeID,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetByID fetches a session, or nil when absent.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*negotiation.Session, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT`+sessionColumns+`
FROM negotiation_sessions
WHERE id = $1
LIMIT 1`, id)
	return scanSession(row)
}

// ListForParty lists sessions where the actor is buyer or supplier, newest
// first.
func (r *SessionRepository) ListForParty(ctx context.Context, actorID string) ([]negotiation.Session, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("session repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT`+sessionColumns+`
FROM negotiation_sessions
WHERE buyer_id = $1 OR supplier_id = $1
ORDER BY created_at DESC`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []negotiation.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		if s != nil {
			result = append(result, *s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateTerms replaces the terms, bumps the version and clears both
// agreement flags in one statement.
func (r *SessionRepository) UpdateTerms(ctx context.Context, id string, quantity int64, unitPrice float64, productName string, observedVersion int, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("session repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE negotiation_sessions
SET proposed_quantity = $1, proposed_unit_price = $2, proposed_product_name = $3,
	terms_version = terms_version + 1, buyer_agreed = FALSE, supplier_agreed = FALSE,
	updated_at = $4
WHERE id = $5 AND trade_created = FALSE AND terms_version = $6`,
		quantity, unitPrice, productName, at, id, observedVersion)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// SetAgreed sets one party's agreement flag against the observed version.
func (r *SessionRepository) SetAgreed(ctx context.Context, id string, party negotiation.Party, observedVersion int, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("session repo: nil db")
	}
	column := ""
	switch party {
	case negotiation.PartyBuyer:
		column = "buyer_agreed"
	case negotiation.PartySupplier:
		column = "supplier_agreed"
	default:
		return false, negotiation.ErrInvalidSession
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE negotiation_sessions
SET `+column+` = TRUE, updated_at = $1
WHERE id = $2 AND trade_created = FALSE AND terms_version = $3`,
		at, id, observedVersion)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// MarkTradeCreated freezes the session and records the trade id.
// Idempotent: a frozen session is left untouched.
func (r *SessionRepository) MarkTradeCreated(ctx context.Context, id, tradeID string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("session repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE negotiation_sessions
SET trade_created = TRUE, trade_id = $1, updated_at = $2
WHERE id = $3 AND trade_created = FALSE`, tradeID, at, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*negotiation.Session, error) {
	var s negotiation.Session
	err := row.Scan(
		&s.ID,
		&s.BuyerID,
		&s.SupplierID,
		&s.RequirementID,
		&s.RequirementTitle,
		&s.ProposedQuantity,
		&s.ProposedUnitPrice,
		&s.ProposedProductName,
		&s.TermsVersion,
		&s.BuyerAgreed,
		&s.SupplierAgreed,
		&s.TradeCreated,
		&s.TradeID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func oneRow(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
