package events

import "time"

// TradeMaterialized is emitted once per trade, by the creation that won the
// create-if-absent race.
type TradeMaterialized struct {
	EventID          string    `json:"event_id"`
	TradeID          string    `json:"trade_id"`
	SessionID        string    `json:"session_id"`
	BuyerID          string    `json:"buyer_id"`
	SupplierID       string    `json:"supplier_id"`
	RequirementTitle string    `json:"requirement_title"`
	Value            float64   `json:"value"`
	EntryPath        string    `json:"entry_path"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// AgreementSigned is emitted when a trade enters via the countersigned
// agreement path.
type AgreementSigned struct {
	EventID    string    `json:"event_id"`
	TradeID    string    `json:"trade_id"`
	SessionID  string    `json:"session_id"`
	SignedBy   string    `json:"signed_by"`
	BuyerID    string    `json:"buyer_id"`
	SupplierID string    `json:"supplier_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TradeConfirmed is emitted when an admin confirms a signed trade.
type TradeConfirmed struct {
	EventID    string    `json:"event_id"`
	TradeID    string    `json:"trade_id"`
	AdminID    string    `json:"admin_id"`
	BuyerID    string    `json:"buyer_id"`
	SupplierID string    `json:"supplier_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TradeRejectedByAdmin is emitted when an admin rejects a signed trade.
type TradeRejectedByAdmin struct {
	EventID    string    `json:"event_id"`
	TradeID    string    `json:"trade_id"`
	AdminID    string    `json:"admin_id"`
	Reason     string    `json:"reason"`
	BuyerID    string    `json:"buyer_id"`
	SupplierID string    `json:"supplier_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// InvoiceSubmitted is emitted when the supplier submits the invoice.
type InvoiceSubmitted struct {
	EventID    string    `json:"event_id"`
	TradeID    string    `json:"trade_id"`
	BuyerID    string    `json:"buyer_id"`
	SupplierID string    `json:"supplier_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// InvoiceApproved is emitted when the buyer approves the invoice.
type InvoiceApproved struct {
	EventID    string    `json:"event_id"`
	TradeID    string    `json:"trade_id"`
	BuyerID    string    `json:"buyer_id"`
	SupplierID string    `json:"supplier_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ShippingDocsSubmitted is emitted when the supplier submits shipping
// documents after invoice approval.
type ShippingDocsSubmitted struct {
	EventID    string    `json:"event_id"`
	TradeID    string    `json:"trade_id"`
	BuyerID    string    `json:"buyer_id"`
	SupplierID string    `json:"supplier_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TradeDispatched is emitted when tracking info is recorded and the trade
// transitions to dispatched.
type TradeDispatched struct {
	EventID    string    `json:"event_id"`
	TradeID    string    `json:"trade_id"`
	TrackingID string    `json:"tracking_id"`
	Carrier    string    `json:"carrier"`
	BuyerID    string    `json:"buyer_id"`
	SupplierID string    `json:"supplier_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DeliveryConfirmed is emitted when the buyer confirms delivery and the
// trade finishes.
type DeliveryConfirmed struct {
	EventID    string    `json:"event_id"`
	TradeID    string    `json:"trade_id"`
	BuyerID    string    `json:"buyer_id"`
	SupplierID string    `json:"supplier_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CommissionProcessed is emitted when the sweep marks a finished trade as
// reconciled.
type CommissionProcessed struct {
	EventID    string    `json:"event_id"`
	TradeID    string    `json:"trade_id"`
	Value      float64   `json:"value"`
	OccurredAt time.Time `json:"occurred_at"`
}
