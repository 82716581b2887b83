package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	notificationsapp "sourcehub/internal/notifications/application"
	notifications "sourcehub/internal/notifications/domain"
)

// Handler serves recipient inbox endpoints.
type Handler struct {
	service *notificationsapp.Service
}

// NewHandler constructs a Handler.
func NewHandler(service *notificationsapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("notifications handler: nil service")
	}
	return &Handler{service: service}, nil
}

type notificationView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	RelatedID string    `json:"related_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ServeHTTP routes notification requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/notifications" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/notifications/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "read" && r.Method == http.MethodPost:
		h.respondOp(w, h.service.MarkRead(r.Context(), id))
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.respondOp(w, h.service.Delete(r.Context(), id))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	list, err := h.service.List(r.Context(), unreadOnly, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]notificationView, 0, len(list))
	for _, n := range list {
		views = append(views, notificationView{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			RelatedID: n.RelatedID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func (h *Handler) respondOp(w http.ResponseWriter, err error) {
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notifications.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, notifications.ErrInvalidNotification):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
