package negotiation

import (
	"testing"
	"time"
)

func TestDeriveSessionID_Deterministic(t *testing.T) {
	first := DeriveSessionID("req-1", "buyer-1", "supplier-1")
	second := DeriveSessionID("req-1", "buyer-1", "supplier-1")
	if first != second {
		t.Fatalf("expected stable derivation, got %q and %q", first, second)
	}
	if DeriveSessionID("req-1", "buyer-1", "supplier-2") == first {
		t.Fatalf("expected distinct pairings to derive distinct ids")
	}
}

func TestNewSession_Validation(t *testing.T) {
	now := time.Now().UTC()
	if _, err := NewSession("", "title", "buyer-1", "supplier-1", now); err == nil {
		t.Fatalf("expected error for empty requirement")
	}
	if _, err := NewSession("req-1", "title", "actor-1", "actor-1", now); err == nil {
		t.Fatalf("expected error for same party on both sides")
	}
	s, err := NewSession("req-1", "Bulk steel", "buyer-1", "supplier-1", now)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if s.HasTerms() {
		t.Fatalf("fresh session must have no terms")
	}
	if s.MutuallyAgreed() {
		t.Fatalf("fresh session must not be agreed")
	}
}

func TestSession_PartyResolution(t *testing.T) {
	s := &Session{BuyerID: "buyer-1", SupplierID: "supplier-1"}
	if party, ok := s.PartyOf("buyer-1"); !ok || party != PartyBuyer {
		t.Fatalf("expected buyer party")
	}
	if party, ok := s.PartyOf("supplier-1"); !ok || party != PartySupplier {
		t.Fatalf("expected supplier party")
	}
	if _, ok := s.PartyOf("stranger"); ok {
		t.Fatalf("stranger must not resolve to a party")
	}
	if s.Counterparty("buyer-1") != "supplier-1" || s.Counterparty("supplier-1") != "buyer-1" {
		t.Fatalf("counterparty resolution broken")
	}
}
