package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"sourcehub/internal/audit"
	"sourcehub/internal/auth"
	commissionapp "sourcehub/internal/commission/application"
	"sourcehub/internal/commission/interfaces"
	"sourcehub/internal/observability/metrics"
	trade "sourcehub/internal/trade/domain"
)

// Handler serves the admin-only commission endpoints.
type Handler struct {
	processor   *commissionapp.Processor
	auditLogger audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(processor *commissionapp.Processor, auditLogger audit.Logger) (*Handler, error) {
	if processor == nil {
		return nil, errors.New("commission handler: nil processor")
	}
	return &Handler{processor: processor, auditLogger: auditLogger}, nil
}

// ServeHTTP routes commission requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/commission/unprocessed" && r.Method == http.MethodGet:
		h.handleUnprocessed(w, r)
	case r.URL.Path == "/api/v1/commission/run" && r.Method == http.MethodPost:
		h.handleRun(w, r)
	case r.URL.Path == "/api/v1/commission/processed" && r.Method == http.MethodPost:
		h.handleMarkProcessed(w, r)
	case r.URL.Path == "/api/v1/commission/report.xlsx" && r.Method == http.MethodGet:
		h.handleReport(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type unprocessedView struct {
	ID         string  `json:"id"`
	BuyerID    string  `json:"buyer_id"`
	SupplierID string  `json:"supplier_id"`
	Value      float64 `json:"value"`
	Commission float64 `json:"commission"`
}

func (h *Handler) handleUnprocessed(w http.ResponseWriter, r *http.Request) {
	backlog, err := h.processor.ListUnprocessed(r.Context())
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	rate := h.processor.Rate()
	views := make([]unprocessedView, 0, len(backlog))
	for i := range backlog {
		t := &backlog[i]
		views = append(views, unprocessedView{
			ID:         t.ID,
			BuyerID:    t.BuyerID,
			SupplierID: t.SupplierID,
			Value:      t.Value,
			Commission: t.Commission(rate),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.processor.Run(r.Context())
	if err != nil {
		http.Error(w, "sweep failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
	h.logAudit(r, "commission.run", "", map[string]any{
		"scanned":   result.Scanned,
		"processed": result.Processed,
	})
}

func (h *Handler) handleMarkProcessed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TradeID string `json:"trade_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TradeID == "" {
		http.Error(w, "trade_id required", http.StatusBadRequest)
		return
	}
	changed, err := h.processor.MarkProcessed(r.Context(), req.TradeID)
	if err != nil {
		switch {
		case errors.Is(err, trade.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, trade.ErrInvalidTransition):
			http.Error(w, "trade not finished", http.StatusConflict)
		default:
			http.Error(w, "mark failed", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"processed": changed})
	h.logAudit(r, "commission.mark_processed", req.TradeID, map[string]any{"changed": changed})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	backlog, err := h.processor.ListUnprocessed(r.Context())
	if err != nil {
		metrics.ObserveTradeExport("xlsx", metrics.ResultError, time.Since(start))
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	data, err := interfaces.BuildCommissionXLSX(backlog, h.processor.Rate(), time.Now().UTC())
	if err != nil {
		metrics.ObserveTradeExport("xlsx", metrics.ResultError, time.Since(start))
		http.Error(w, "report failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveTradeExport("xlsx", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=commission-report.xlsx")
	_, _ = w.Write(data)
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
