package application

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"sourcehub/internal/auth"
	"sourcehub/internal/eventing"
	"sourcehub/internal/eventing/eventbus"
	notifications "sourcehub/internal/notifications/domain"
	"sourcehub/internal/notifications/infrastructure/memory"
	tradeevents "sourcehub/internal/trade/application/events"
)

type memProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newMemProcessedStore() *memProcessedStore {
	return &memProcessedStore{seen: make(map[string]struct{})}
}

func (s *memProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[eventID+"|"+consumerName]
	return ok, nil
}

func (s *memProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[eventID+"|"+consumerName] = struct{}{}
	return nil
}

func newSink(t *testing.T) (*Service, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	sink, err := NewService(repo, log.New(log.Writer(), "", 0))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return sink, repo
}

func publishWithEnvelope(t *testing.T, bus *eventbus.InMemoryBus, eventID string, event any) {
	t.Helper()
	env, err := eventing.BuildEnvelope(event, eventing.Meta{EventID: eventID})
	if err != nil {
		t.Fatalf("BuildEnvelope: %v", err)
	}
	ctx := eventing.WithEnvelope(context.Background(), env)
	if err := bus.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestRedeliveryDoesNotDuplicateInboxRows(t *testing.T) {
	sink, repo := newSink(t)
	bus := eventbus.NewInMemoryBus()
	store := newMemProcessedStore()
	NewConsumers(sink, "").Register(bus, store)

	event := tradeevents.TradeDispatched{
		EventID:    "evt-1",
		TradeID:    "trade-1",
		TrackingID: "TRK-1",
		Carrier:    "DHL",
		BuyerID:    "b1",
		SupplierID: "s1",
		OccurredAt: time.Now().UTC(),
	}
	publishWithEnvelope(t, bus, "evt-1", event)
	publishWithEnvelope(t, bus, "evt-1", event)

	inbox, err := repo.ListForRecipient(context.Background(), "b1", false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(inbox) != 1 {
		t.Fatalf("inbox rows after redelivery = %d, want 1", len(inbox))
	}
	if inbox[0].Type != notifications.TypeTrade || inbox[0].RelatedID != "trade-1" {
		t.Fatalf("unexpected notification: %+v", inbox[0])
	}
}

func TestTradeMaterializedNotifiesBothParties(t *testing.T) {
	sink, repo := newSink(t)
	bus := eventbus.NewInMemoryBus()
	NewConsumers(sink, "").Register(bus, newMemProcessedStore())

	publishWithEnvelope(t, bus, "evt-2", tradeevents.TradeMaterialized{
		EventID:          "evt-2",
		TradeID:          "trade-2",
		SessionID:        "sess-2",
		BuyerID:          "b1",
		SupplierID:       "s1",
		RequirementTitle: "1000 widgets",
		Value:            5500.00,
		EntryPath:        "mutual",
		OccurredAt:       time.Now().UTC(),
	})

	for _, recipient := range []string{"b1", "s1"} {
		inbox, err := repo.ListForRecipient(context.Background(), recipient, false, 0)
		if err != nil {
			t.Fatalf("list %s: %v", recipient, err)
		}
		if len(inbox) != 1 {
			t.Fatalf("%s inbox rows = %d, want 1", recipient, len(inbox))
		}
	}
}

func TestAdminNoticesRequireConfiguredRecipient(t *testing.T) {
	sink, repo := newSink(t)
	bus := eventbus.NewInMemoryBus()
	NewConsumers(sink, "ops").Register(bus, newMemProcessedStore())

	publishWithEnvelope(t, bus, "evt-3", tradeevents.CommissionProcessed{
		EventID:    "evt-3",
		TradeID:    "trade-3",
		Value:      5500.00,
		OccurredAt: time.Now().UTC(),
	})

	inbox, err := repo.ListForRecipient(context.Background(), "ops", false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(inbox) != 1 || inbox[0].Type != notifications.TypeSystem {
		t.Fatalf("admin inbox = %+v, want one system notice", inbox)
	}
}

func TestInboxScopedToRecipient(t *testing.T) {
	sink, _ := newSink(t)
	ctxB1 := auth.WithIdentity(context.Background(), "b1", auth.RoleBuyer)
	ctxB2 := auth.WithIdentity(context.Background(), "b2", auth.RoleBuyer)

	if err := sink.Notify(context.Background(), "b1", notifications.TypeSystem, "hello", "", ""); err != nil {
		t.Fatalf("notify: %v", err)
	}
	mine, err := sink.List(ctxB1, false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("own inbox rows = %d, want 1", len(mine))
	}

	// Another recipient can neither read nor delete the entry.
	if err := sink.MarkRead(ctxB2, mine[0].ID); err != notifications.ErrNotFound {
		t.Fatalf("foreign mark read: err = %v, want ErrNotFound", err)
	}
	if err := sink.Delete(ctxB2, mine[0].ID); err != notifications.ErrNotFound {
		t.Fatalf("foreign delete: err = %v, want ErrNotFound", err)
	}

	if err := sink.MarkRead(ctxB1, mine[0].ID); err != nil {
		t.Fatalf("own mark read: %v", err)
	}
	unread, err := sink.List(ctxB1, true, 0)
	if err != nil {
		t.Fatalf("unread list: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("unread rows after mark read = %d, want 0", len(unread))
	}
}

func TestNotifyRejectsUnknownType(t *testing.T) {
	sink, _ := newSink(t)
	if err := sink.Notify(context.Background(), "b1", "broadcast", "hi", "", ""); err != notifications.ErrInvalidNotification {
		t.Fatalf("err = %v, want ErrInvalidNotification", err)
	}
}
