package notifications

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Notification types.
const (
	TypeRequest = "request"
	TypeMessage = "message"
	TypeTrade   = "trade"
	TypeSystem  = "system"
)

var (
	// ErrInvalidNotification is returned when required fields are missing
	// or the type is unknown.
	ErrInvalidNotification = errors.New("notifications: invalid notification")
	// ErrNotFound is returned when a notification does not exist for the
	// recipient.
	ErrNotFound = errors.New("notifications: not found")
)

// Notification is one inbox entry for a recipient.
type Notification struct {
	ID          string
	RecipientID string
	Type        string
	Title       string
	Message     string
	RelatedID   string
	Read        bool
	CreatedAt   time.Time
}

// NewNotification validates and builds a notification.
func NewNotification(recipientID, notifType, title, message, relatedID string, now time.Time) (*Notification, error) {
	recipientID = strings.TrimSpace(recipientID)
	title = strings.TrimSpace(title)
	if recipientID == "" || title == "" {
		return nil, ErrInvalidNotification
	}
	switch notifType {
	case TypeRequest, TypeMessage, TypeTrade, TypeSystem:
	default:
		return nil, ErrInvalidNotification
	}
	return &Notification{
		ID:          NewID(),
		RecipientID: recipientID,
		Type:        notifType,
		Title:       title,
		Message:     message,
		RelatedID:   relatedID,
		CreatedAt:   now,
	}, nil
}

// NewID generates a random notification id.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "ntf-" + hex.EncodeToString(buf)
}
