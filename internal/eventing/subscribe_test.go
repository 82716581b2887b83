package eventing

import (
	"context"
	"sync"
	"testing"
)

type memProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newMemProcessedStore() *memProcessedStore {
	return &memProcessedStore{seen: make(map[string]struct{})}
}

func (s *memProcessedStore) HasProcessed(_ context.Context, eventID, consumerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[eventID+"|"+consumerName]
	return ok, nil
}

func (s *memProcessedStore) MarkProcessed(_ context.Context, eventID, consumerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[eventID+"|"+consumerName] = struct{}{}
	return nil
}

func TestWrapHandler_SkipsAlreadyProcessed(t *testing.T) {
	store := newMemProcessedStore()
	calls := 0
	handler := WrapHandler("consumer-a", func(ctx context.Context, event any) error {
		calls++
		return nil
	}, store)

	ctx := WithEnvelope(context.Background(), Envelope{EventID: "evt-1"})
	for i := 0; i < 3; i++ {
		if err := handler(ctx, struct{}{}); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected handler called once, got %d", calls)
	}
}

func TestWrapHandler_NoEnvelopeAlwaysRuns(t *testing.T) {
	store := newMemProcessedStore()
	calls := 0
	handler := WrapHandler("consumer-b", func(ctx context.Context, event any) error {
		calls++
		return nil
	}, store)

	for i := 0; i < 2; i++ {
		if err := handler(context.Background(), struct{}{}); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler called twice, got %d", calls)
	}
}

func TestBuildEnvelope_ExtractsTradeID(t *testing.T) {
	type sample struct {
		TradeID   string
		SessionID string
	}
	env, err := BuildEnvelope(sample{TradeID: "trade-1", SessionID: "session-1"}, Meta{})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.TradeID != "trade-1" {
		t.Fatalf("expected trade id extracted, got %q", env.TradeID)
	}
	if env.SessionID != "session-1" {
		t.Fatalf("expected session id extracted, got %q", env.SessionID)
	}
	if env.EventID == "" || env.CorrelationID == "" {
		t.Fatalf("expected generated event and correlation ids")
	}
}
