package trade

import (
	"testing"
	"time"
)

func TestDeriveTradeID_Deterministic(t *testing.T) {
	first := DeriveTradeID("session-abc")
	second := DeriveTradeID("session-abc")
	if first != second {
		t.Fatalf("expected stable derivation, got %q and %q", first, second)
	}
	other := DeriveTradeID("session-def")
	if other == first {
		t.Fatalf("expected distinct sessions to derive distinct ids")
	}
	if len(first) != len("trade-")+16 {
		t.Fatalf("unexpected id shape: %q", first)
	}
}

func TestNewTrade_SnapshotsValue(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	tr, err := NewTrade("session-1", "buyer-1", "supplier-1", "req-1", "Bulk steel", "Steel coils", 1000, 5.50, now)
	if err != nil {
		t.Fatalf("new trade: %v", err)
	}
	if tr.Value != 5500.00 {
		t.Fatalf("expected value 5500.00, got %v", tr.Value)
	}
	if tr.Status != StatusOngoing {
		t.Fatalf("expected ongoing, got %s", tr.Status)
	}
	if tr.EntryPath != EntryMutualAgreement {
		t.Fatalf("expected mutual entry path, got %s", tr.EntryPath)
	}
	if tr.InvoiceStatus != InvoiceStatusPending || tr.ShippingDocsStatus != ShippingDocsPending {
		t.Fatalf("expected pending document statuses")
	}
}

func TestNewTrade_RejectsNonPositiveTerms(t *testing.T) {
	now := time.Now().UTC()
	if _, err := NewTrade("session-1", "buyer-1", "supplier-1", "req-1", "t", "p", 0, 5, now); err == nil {
		t.Fatalf("expected error for zero quantity")
	}
	if _, err := NewTrade("session-1", "buyer-1", "supplier-1", "req-1", "t", "p", 10, 0, now); err == nil {
		t.Fatalf("expected error for zero price")
	}
}

func TestNewSignedTrade_AwaitsConfirmation(t *testing.T) {
	now := time.Now().UTC()
	tr, err := NewSignedTrade("session-2", "buyer-1", "supplier-1", "req-1", "t", "p", 10, 2, now)
	if err != nil {
		t.Fatalf("new signed trade: %v", err)
	}
	if tr.Status != StatusAwaitingAdminConfirmation {
		t.Fatalf("expected awaiting confirmation, got %s", tr.Status)
	}
	if tr.EntryPath != EntrySignedAgreement {
		t.Fatalf("expected signed entry path")
	}
	if tr.SignedAt.IsZero() {
		t.Fatalf("expected signed timestamp")
	}
	if tr.ID != DeriveTradeID("session-2") {
		t.Fatalf("both entry paths must derive the same id family")
	}
}

func TestCanTransition_Table(t *testing.T) {
	all := []Status{StatusOngoing, StatusAwaitingAdminConfirmation, StatusRejected, StatusDispatched, StatusFinished}
	allowed := map[[2]Status]bool{
		{StatusAwaitingAdminConfirmation, StatusOngoing}:  true,
		{StatusAwaitingAdminConfirmation, StatusRejected}: true,
		{StatusOngoing, StatusDispatched}:                 true,
		{StatusDispatched, StatusFinished}:                true,
	}
	for _, from := range all {
		for _, to := range all {
			got := CanTransition(from, to)
			want := allowed[[2]Status{from, to}]
			if got != want {
				t.Errorf("transition %s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StatusRejected) || !IsTerminal(StatusFinished) {
		t.Fatalf("rejected and finished must be terminal")
	}
	if IsTerminal(StatusOngoing) || IsTerminal(StatusDispatched) {
		t.Fatalf("ongoing and dispatched are not terminal")
	}
}

func TestCommission_ReadTimeComputation(t *testing.T) {
	tr := &Trade{Value: 5500}
	if got := tr.Commission(0.02); got != 110 {
		t.Fatalf("expected 110, got %v", got)
	}
	if got := tr.Commission(0); got != 0 {
		t.Fatalf("expected 0 for zero rate, got %v", got)
	}
}

func TestPartyOf(t *testing.T) {
	tr := &Trade{BuyerID: "buyer-1", SupplierID: "supplier-1"}
	if party, ok := tr.PartyOf("buyer-1"); !ok || party != "buyer" {
		t.Fatalf("expected buyer party")
	}
	if party, ok := tr.PartyOf("supplier-1"); !ok || party != "supplier" {
		t.Fatalf("expected supplier party")
	}
	if _, ok := tr.PartyOf("stranger"); ok {
		t.Fatalf("expected stranger to have no party")
	}
}
