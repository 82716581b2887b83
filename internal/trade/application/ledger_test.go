package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"sourcehub/internal/auth"
	"sourcehub/internal/eventing"
	trade "sourcehub/internal/trade/domain"
	"sourcehub/internal/trade/infrastructure/memory"
)

type recordingOutbox struct {
	mu    sync.Mutex
	types []string
}

func (o *recordingOutbox) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	o.types = append(o.types, env.EventType)
	return fmt.Sprintf("out-%d", len(o.types)), nil
}

func (o *recordingOutbox) count(eventType string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, t := range o.types {
		if t == eventType {
			n++
		}
	}
	return n
}

type sessionStore map[string]*SessionRecord

func (s sessionStore) SessionByID(ctx context.Context, sessionID string) (*SessionRecord, error) {
	_ = ctx
	return s[sessionID], nil
}

func newLedger(t *testing.T) (*Ledger, *memory.Repository, *recordingOutbox) {
	t.Helper()
	repo := memory.NewRepository()
	outbox := &recordingOutbox{}
	sessions := sessionStore{
		"sess-1":       sampleSession(),
		"sess-no-terms": {ID: "sess-no-terms", BuyerID: "b1", SupplierID: "s1", RequirementID: "req-2", RequirementTitle: "untermed"},
	}
	ledger, err := NewLedger(repo, sessions, eventing.NewPublisher(outbox, nil, nil))
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return ledger, repo, outbox
}

func sampleSession() *SessionRecord {
	return &SessionRecord{
		ID:               "sess-1",
		BuyerID:          "b1",
		SupplierID:       "s1",
		RequirementID:    "req-1",
		RequirementTitle: "1000 widgets",
		ProductName:      "widget",
		Quantity:         1000,
		UnitPrice:        5.50,
		HasTerms:         true,
	}
}

func sampleRequest() MaterializeRequest {
	return MaterializeRequest{
		SessionID:        "sess-1",
		BuyerID:          "b1",
		SupplierID:       "s1",
		RequirementID:    "req-1",
		RequirementTitle: "1000 widgets",
		ProductName:      "widget",
		Quantity:         1000,
		UnitPrice:        5.50,
	}
}

func asAdmin(id string) context.Context {
	return auth.WithIdentity(context.Background(), id, auth.RoleAdmin)
}

func TestMaterializeSnapshotsTerms(t *testing.T) {
	ledger, _, outbox := newLedger(t)

	created, err := ledger.Materialize(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if created.Status != trade.StatusOngoing {
		t.Fatalf("status = %s, want ongoing", created.Status)
	}
	if created.Value != 5500.00 {
		t.Fatalf("value = %v, want 5500.00", created.Value)
	}
	if created.EntryPath != trade.EntryMutualAgreement {
		t.Fatalf("entry path = %s, want mutual", created.EntryPath)
	}
	if got := outbox.count("events.TradeMaterialized"); got != 1 {
		t.Fatalf("TradeMaterialized events = %d, want 1", got)
	}
}

func TestMaterializeConcurrentCallersConverge(t *testing.T) {
	ledger, repo, outbox := newLedger(t)

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := ledger.Materialize(context.Background(), sampleRequest())
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = got.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got trade %s, caller 0 got %s", i, ids[i], ids[0])
		}
	}
	all, err := repo.ListForParty(context.Background(), "b1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("trades stored = %d, want 1", len(all))
	}
	if got := outbox.count("events.TradeMaterialized"); got != 1 {
		t.Fatalf("TradeMaterialized events = %d, want 1", got)
	}
}

func TestSignedEntryAwaitsAdmin(t *testing.T) {
	ledger, _, outbox := newLedger(t)

	signed, err := ledger.SignAgreement(auth.WithIdentity(context.Background(), "b1", auth.RoleBuyer), "sess-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.Status != trade.StatusAwaitingAdminConfirmation {
		t.Fatalf("status = %s, want awaiting_admin_confirmation", signed.Status)
	}
	if signed.EntryPath != trade.EntrySignedAgreement {
		t.Fatalf("entry path = %s, want signed", signed.EntryPath)
	}
	if got := outbox.count("events.AgreementSigned"); got != 1 {
		t.Fatalf("AgreementSigned events = %d, want 1", got)
	}

	// Re-signing returns the existing trade without a second event.
	again, err := ledger.SignAgreement(auth.WithIdentity(context.Background(), "b1", auth.RoleBuyer), "sess-1")
	if err != nil {
		t.Fatalf("re-sign: %v", err)
	}
	if again.ID != signed.ID {
		t.Fatalf("trade id changed on re-sign")
	}
	if got := outbox.count("events.AgreementSigned"); got != 1 {
		t.Fatalf("AgreementSigned events after re-sign = %d, want 1", got)
	}

	confirmed, err := ledger.Confirm(asAdmin("ops"), signed.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != trade.StatusOngoing {
		t.Fatalf("status after confirm = %s, want ongoing", confirmed.Status)
	}

	// A confirmed trade cannot be rejected anymore.
	if _, err := ledger.Reject(asAdmin("ops"), signed.ID, "late"); !errors.Is(err, trade.ErrInvalidTransition) {
		t.Fatalf("reject after confirm: err = %v, want ErrInvalidTransition", err)
	}
}

func TestSignRejectsNonParty(t *testing.T) {
	ledger, _, _ := newLedger(t)
	if _, err := ledger.SignAgreement(auth.WithIdentity(context.Background(), "mallory", auth.RoleBuyer), "sess-1"); !errors.Is(err, trade.ErrUnauthorizedActor) {
		t.Fatalf("err = %v, want ErrUnauthorizedActor", err)
	}
	if _, err := ledger.SignAgreement(auth.WithIdentity(context.Background(), "b1", auth.RoleBuyer), "no-such-session"); !errors.Is(err, trade.ErrNotFound) {
		t.Fatalf("unknown session: err = %v, want ErrNotFound", err)
	}
	if _, err := ledger.SignAgreement(auth.WithIdentity(context.Background(), "b1", auth.RoleBuyer), "sess-no-terms"); !errors.Is(err, trade.ErrPreconditionFailed) {
		t.Fatalf("termless session: err = %v, want ErrPreconditionFailed", err)
	}
}

func TestSignTakesTermsFromStoredSession(t *testing.T) {
	ledger, _, _ := newLedger(t)

	// Whatever the signer claims over the wire, the signed entry carries
	// the parties and terms the negotiation record holds.
	signed, err := ledger.SignAgreement(auth.WithIdentity(context.Background(), "s1", auth.RoleSupplier), "sess-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.UnitPrice != 5.50 || signed.Value != 5500.00 {
		t.Fatalf("signed terms = %v @ %v, want 5500.00 @ 5.50", signed.Value, signed.UnitPrice)
	}
	if signed.BuyerID != "b1" || signed.SupplierID != "s1" {
		t.Fatalf("signed parties = %s/%s, want b1/s1", signed.BuyerID, signed.SupplierID)
	}

	// Materializing the same session converges on the signed trade.
	existing, err := ledger.Materialize(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if existing.ID != signed.ID {
		t.Fatalf("materialize diverged: got %s, want %s", existing.ID, signed.ID)
	}
	if existing.Value != 5500.00 {
		t.Fatalf("value = %v, want 5500.00", existing.Value)
	}
	if existing.Status != trade.StatusAwaitingAdminConfirmation {
		t.Fatalf("status = %s, want awaiting_admin_confirmation", existing.Status)
	}
}

func TestConfirmRequiresAdmin(t *testing.T) {
	ledger, _, _ := newLedger(t)
	signed, err := ledger.SignAgreement(auth.WithIdentity(context.Background(), "b1", auth.RoleBuyer), "sess-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ledger.Confirm(auth.WithIdentity(context.Background(), "b1", auth.RoleBuyer), signed.ID); !errors.Is(err, trade.ErrUnauthorizedActor) {
		t.Fatalf("confirm as buyer: err = %v, want ErrUnauthorizedActor", err)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	ledger, _, _ := newLedger(t)
	signed, _ := ledger.SignAgreement(auth.WithIdentity(context.Background(), "s1", auth.RoleSupplier), "sess-1")

	rejected, err := ledger.Reject(asAdmin("ops"), signed.ID, "supplier not vetted")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != trade.StatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	if _, err := ledger.Confirm(asAdmin("ops"), signed.ID); !errors.Is(err, trade.ErrInvalidTransition) {
		t.Fatalf("confirm after reject: err = %v, want ErrInvalidTransition", err)
	}
}

func TestGetVisibility(t *testing.T) {
	ledger, _, _ := newLedger(t)
	created, _ := ledger.Materialize(context.Background(), sampleRequest())

	if _, err := ledger.Get(auth.WithIdentity(context.Background(), "b2", auth.RoleBuyer), created.ID); !errors.Is(err, trade.ErrUnauthorizedActor) {
		t.Fatalf("foreign get: err = %v, want ErrUnauthorizedActor", err)
	}
	if _, err := ledger.Get(asAdmin("ops"), created.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}
	if _, err := ledger.Get(asAdmin("ops"), "no-such-trade"); !errors.Is(err, trade.ErrNotFound) {
		t.Fatalf("missing get: err = %v, want ErrNotFound", err)
	}
}
