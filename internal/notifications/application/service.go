package application

import (
	"context"
	"errors"
	"log"
	"time"

	"sourcehub/internal/auth"
	notifications "sourcehub/internal/notifications/domain"
	"sourcehub/internal/observability/metrics"
)

// Channel is an optional outbound delivery channel (webhook, etc.).
// Delivery over a channel is best effort; the inbox row is the record.
type Channel interface {
	Deliver(ctx context.Context, n *notifications.Notification) error
}

// Service is the notification sink: it writes inbox entries and fans them
// out to any configured channels.
type Service struct {
	repo     notifications.Repository
	channels []Channel
	logger   *log.Logger
}

// NewService constructs the sink.
func NewService(repo notifications.Repository, logger *log.Logger, channels ...Channel) (*Service, error) {
	if repo == nil {
		return nil, errors.New("notifications: nil repo")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, channels: channels, logger: logger}, nil
}

// Notify creates an inbox entry for the recipient. The returned error lets
// consumers retry; channel delivery failures are only logged.
func (s *Service) Notify(ctx context.Context, recipientID, notifType, title, message, relatedID string) error {
	n, err := notifications.NewNotification(recipientID, notifType, title, message, relatedID, time.Now().UTC())
	if err != nil {
		metrics.IncNotification(notifType, metrics.ResultError)
		return err
	}
	if err := s.repo.Create(ctx, n); err != nil {
		metrics.IncNotification(notifType, metrics.ResultError)
		return err
	}
	metrics.IncNotification(notifType, metrics.ResultSuccess)

	for _, ch := range s.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			s.logger.Printf("notifications: channel delivery failed for %s: %v", n.ID, err)
		}
	}
	return nil
}

// NotifyAll creates the same notification for several recipients.
func (s *Service) NotifyAll(ctx context.Context, recipientIDs []string, notifType, title, message, relatedID string) error {
	var firstErr error
	for _, recipientID := range recipientIDs {
		if err := s.Notify(ctx, recipientID, notifType, title, message, relatedID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// List returns the caller's notifications.
func (s *Service) List(ctx context.Context, unreadOnly bool, limit int) ([]notifications.Notification, error) {
	recipientID := auth.ActorIDFromContext(ctx)
	if recipientID == "" {
		return nil, notifications.ErrNotFound
	}
	return s.repo.ListForRecipient(ctx, recipientID, unreadOnly, limit)
}

// MarkRead flags one of the caller's notifications as read.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	recipientID := auth.ActorIDFromContext(ctx)
	changed, err := s.repo.MarkRead(ctx, id, recipientID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !changed {
		return notifications.ErrNotFound
	}
	return nil
}

// Delete removes one of the caller's notifications.
func (s *Service) Delete(ctx context.Context, id string) error {
	recipientID := auth.ActorIDFromContext(ctx)
	changed, err := s.repo.Delete(ctx, id, recipientID)
	if err != nil {
		return err
	}
	if !changed {
		return notifications.ErrNotFound
	}
	return nil
}
