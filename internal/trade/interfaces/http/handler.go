package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sourcehub/internal/audit"
	"sourcehub/internal/auth"
	"sourcehub/internal/observability/metrics"
	tradeapp "sourcehub/internal/trade/application"
	trade "sourcehub/internal/trade/domain"
	"sourcehub/internal/trade/interfaces"
)

// Handler serves trade endpoints: the ledger, the document workflow and
// the PDF export.
type Handler struct {
	ledger      *tradeapp.Ledger
	documents   *tradeapp.DocumentService
	auditLogger audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(ledger *tradeapp.Ledger, documents *tradeapp.DocumentService, auditLogger audit.Logger) (*Handler, error) {
	if ledger == nil || documents == nil {
		return nil, errors.New("trade handler: nil service")
	}
	return &Handler{ledger: ledger, documents: documents, auditLogger: auditLogger}, nil
}

type tradeView struct {
	ID                     string    `json:"id"`
	SessionID              string    `json:"session_id"`
	BuyerID                string    `json:"buyer_id"`
	SupplierID             string    `json:"supplier_id"`
	RequirementID          string    `json:"requirement_id"`
	RequirementTitle       string    `json:"requirement_title"`
	ProductName            string    `json:"product_name"`
	Quantity               int64     `json:"quantity"`
	UnitPrice              float64   `json:"unit_price"`
	Value                  float64   `json:"value"`
	Status                 string    `json:"status"`
	EntryPath              string    `json:"entry_path"`
	InvoiceStatus          string    `json:"invoice_status"`
	ShippingDocsStatus     string    `json:"shipping_docs_status"`
	TrackingID             string    `json:"tracking_id,omitempty"`
	Carrier                string    `json:"carrier,omitempty"`
	ProcessedForCommission bool      `json:"processed_for_commission"`
	InitiatedAt            time.Time `json:"initiated_at"`
	SignedAt               time.Time `json:"signed_at,omitempty"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func toTradeView(t *trade.Trade) tradeView {
	return tradeView{
		ID:                     t.ID,
		SessionID:              t.SessionID,
		BuyerID:                t.BuyerID,
		SupplierID:             t.SupplierID,
		RequirementID:          t.RequirementID,
		RequirementTitle:       t.RequirementTitle,
		ProductName:            t.ProductName,
		Quantity:               t.Quantity,
		UnitPrice:              t.UnitPrice,
		Value:                  t.Value,
		Status:                 string(t.Status),
		EntryPath:              string(t.EntryPath),
		InvoiceStatus:          t.InvoiceStatus,
		ShippingDocsStatus:     t.ShippingDocsStatus,
		TrackingID:             t.TrackingID,
		Carrier:                t.Carrier,
		ProcessedForCommission: t.ProcessedForCommission,
		InitiatedAt:            t.InitiatedAt,
		SignedAt:               t.SignedAt,
		UpdatedAt:              t.UpdatedAt,
	}
}

// ServeHTTP routes trade requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/trades" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
		return
	}
	if r.URL.Path == "/api/v1/trades/sign" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSign(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/trades/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	tradeID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, tradeID)
	case len(parts) == 2 && parts[1] == "export.pdf" && r.Method == http.MethodGet:
		h.handleExport(w, r, tradeID)
	case len(parts) == 2 && parts[1] == "confirm" && r.Method == http.MethodPost:
		h.handleConfirm(w, r, tradeID)
	case len(parts) == 2 && parts[1] == "reject" && r.Method == http.MethodPost:
		h.handleReject(w, r, tradeID)
	case len(parts) == 2 && parts[1] == "invoice" && r.Method == http.MethodPost:
		h.handleDocument(w, r, tradeID, "trade.invoice.submit", h.documents.SubmitInvoice)
	case len(parts) == 3 && parts[1] == "invoice" && parts[2] == "approve" && r.Method == http.MethodPost:
		h.handleDocument(w, r, tradeID, "trade.invoice.approve", h.documents.ApproveInvoice)
	case len(parts) == 2 && parts[1] == "shipping-docs" && r.Method == http.MethodPost:
		h.handleDocument(w, r, tradeID, "trade.shipping_docs.submit", h.documents.SubmitShippingDocs)
	case len(parts) == 2 && parts[1] == "tracking" && r.Method == http.MethodPost:
		h.handleTracking(w, r, tradeID)
	case len(parts) == 2 && parts[1] == "delivery" && r.Method == http.MethodPost:
		h.handleDocument(w, r, tradeID, "trade.delivery.confirm", h.documents.ConfirmDelivery)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	trades, err := h.ledger.ListForParty(r.Context(), r.URL.Query().Get("actor_id"))
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]tradeView, 0, len(trades))
	for i := range trades {
		views = append(views, toTradeView(&trades[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	signed, err := h.ledger.SignAgreement(r.Context(), req.SessionID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toTradeView(signed))
	h.logAudit(r, "trade.sign", signed.ID, map[string]any{"session_id": req.SessionID})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, tradeID string) {
	current, err := h.ledger.Get(r.Context(), tradeID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toTradeView(current))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, tradeID string) {
	start := time.Now()
	current, err := h.ledger.Get(r.Context(), tradeID)
	if err != nil {
		metrics.ObserveTradeExport("pdf", metrics.ResultError, time.Since(start))
		respondError(w, err)
		return
	}
	data, err := interfaces.BuildTradePDF(current)
	if err != nil {
		metrics.ObserveTradeExport("pdf", metrics.ResultError, time.Since(start))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveTradeExport("pdf", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", tradeID))
	_, _ = w.Write(data)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request, tradeID string) {
	confirmed, err := h.ledger.Confirm(r.Context(), tradeID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toTradeView(confirmed))
	h.logAudit(r, "trade.confirm", tradeID, nil)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request, tradeID string) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	rejected, err := h.ledger.Reject(r.Context(), tradeID, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toTradeView(rejected))
	h.logAudit(r, "trade.reject", tradeID, map[string]any{"reason": req.Reason})
}

func (h *Handler) handleTracking(w http.ResponseWriter, r *http.Request, tradeID string) {
	var req struct {
		TrackingID string `json:"tracking_id"`
		Carrier    string `json:"carrier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	dispatched, err := h.documents.RecordTracking(r.Context(), tradeID, req.TrackingID, req.Carrier)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toTradeView(dispatched))
	h.logAudit(r, "trade.tracking.record", tradeID, map[string]any{
		"tracking_id": req.TrackingID,
		"carrier":     req.Carrier,
	})
}

func (h *Handler) handleDocument(w http.ResponseWriter, r *http.Request, tradeID, action string, op func(ctx context.Context, tradeID string) (*trade.Trade, error)) {
	updated, err := op(r.Context(), tradeID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toTradeView(updated))
	h.logAudit(r, action, tradeID, nil)
}

func (h *Handler) logAudit(r *http.Request, action, tradeID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	metadata, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.ActorIDFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "trade",
		ResourceID:   tradeID,
		Metadata:     metadata,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, trade.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, trade.ErrUnauthorizedActor):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, trade.ErrInvalidTransition):
		http.Error(w, "invalid transition", http.StatusConflict)
	case errors.Is(err, trade.ErrPreconditionFailed):
		http.Error(w, "precondition failed", http.StatusPreconditionFailed)
	case errors.Is(err, trade.ErrInvalidTerms):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
