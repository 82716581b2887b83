package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"sourcehub/internal/audit"
	"sourcehub/internal/auth"
	negotiationapp "sourcehub/internal/negotiation/application"
	negotiation "sourcehub/internal/negotiation/domain"
)

// Handler serves negotiation session endpoints.
type Handler struct {
	service     *negotiationapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *negotiationapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("negotiation handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

type sessionView struct {
	ID                  string    `json:"id"`
	BuyerID             string    `json:"buyer_id"`
	SupplierID          string    `json:"supplier_id"`
	RequirementID       string    `json:"requirement_id"`
	RequirementTitle    string    `json:"requirement_title"`
	ProposedQuantity    int64     `json:"proposed_quantity"`
	ProposedUnitPrice   float64   `json:"proposed_unit_price"`
	ProposedProductName string    `json:"proposed_product_name"`
	TermsVersion        int       `json:"terms_version"`
	BuyerAgreed         bool      `json:"buyer_agreed"`
	SupplierAgreed      bool      `json:"supplier_agreed"`
	TradeCreated        bool      `json:"trade_created"`
	TradeID             string    `json:"trade_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type messageView struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	AuthorID  string    `json:"author_id,omitempty"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func toSessionView(s *negotiation.Session) sessionView {
	return sessionView{
		ID:                  s.ID,
		BuyerID:             s.BuyerID,
		SupplierID:          s.SupplierID,
		RequirementID:       s.RequirementID,
		RequirementTitle:    s.RequirementTitle,
		ProposedQuantity:    s.ProposedQuantity,
		ProposedUnitPrice:   s.ProposedUnitPrice,
		ProposedProductName: s.ProposedProductName,
		TermsVersion:        s.TermsVersion,
		BuyerAgreed:         s.BuyerAgreed,
		SupplierAgreed:      s.SupplierAgreed,
		TradeCreated:        s.TradeCreated,
		TradeID:             s.TradeID,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func toMessageView(m negotiation.Message) messageView {
	return messageView{
		ID:        m.ID,
		SessionID: m.SessionID,
		AuthorID:  m.AuthorID,
		Kind:      m.Kind,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}

// ServeHTTP routes negotiation requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/negotiations" {
		switch r.Method {
		case http.MethodPost:
			h.handleOpen(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/negotiations/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sessionID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "terms" && r.Method == http.MethodPost:
		h.handleTerms(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "agree" && r.Method == http.MethodPost:
		h.handleAgree(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodPost:
		h.handlePostMessage(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "messages" && r.Method == http.MethodGet:
		h.handleListMessages(w, r, sessionID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequirementID    string `json:"requirement_id"`
		RequirementTitle string `json:"requirement_title"`
		BuyerID          string `json:"buyer_id"`
		SupplierID       string `json:"supplier_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	sess, err := h.service.Open(r.Context(), req.RequirementID, req.RequirementTitle, req.BuyerID, req.SupplierID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toSessionView(sess))
	h.logAudit(r, "negotiation.open", sess.ID, map[string]any{"requirement_id": req.RequirementID})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListForParty(r.Context(), r.URL.Query().Get("actor_id"))
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, toSessionView(&sessions[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toSessionView(sess))
}

func (h *Handler) handleTerms(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		ProductName string  `json:"product_name"`
		Quantity    int64   `json:"quantity"`
		UnitPrice   float64 `json:"unit_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	sess, err := h.service.ProposeTerms(r.Context(), negotiationapp.ProposeTermsRequest{
		SessionID:   sessionID,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toSessionView(sess))
	h.logAudit(r, "negotiation.terms.propose", sessionID, map[string]any{
		"quantity":   req.Quantity,
		"unit_price": req.UnitPrice,
	})
}

func (h *Handler) handleAgree(w http.ResponseWriter, r *http.Request, sessionID string) {
	// The body is optional; a client that read the session should send the
	// terms version it saw so a concurrent reproposal rejects the agree.
	var req struct {
		TermsVersion int `json:"terms_version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	sess, err := h.service.Agree(r.Context(), sessionID, req.TermsVersion)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toSessionView(sess))
	h.logAudit(r, "negotiation.agree", sessionID, map[string]any{
		"terms_version": req.TermsVersion,
		"trade_created": sess.TradeCreated,
		"trade_id":      sess.TradeID,
	})
}

func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	msg, err := h.service.PostMessage(r.Context(), sessionID, req.Body)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toMessageView(*msg))
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request, sessionID string) {
	msgs, err := h.service.Messages(r.Context(), sessionID)
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, toMessageView(m))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func (h *Handler) logAudit(r *http.Request, action, sessionID string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	metadata, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.ActorIDFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "negotiation_session",
		ResourceID:   sessionID,
		Metadata:     metadata,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, negotiation.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, negotiation.ErrUnauthorizedActor):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, negotiation.ErrStaleTerms):
		http.Error(w, "stale terms version", http.StatusConflict)
	case errors.Is(err, negotiation.ErrInvalidState):
		http.Error(w, "invalid session state", http.StatusBadRequest)
	case errors.Is(err, negotiation.ErrInvalidTerms), errors.Is(err, negotiation.ErrInvalidSession):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
