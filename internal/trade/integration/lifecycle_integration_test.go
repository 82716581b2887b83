package integration_test

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"sourcehub/internal/auth"
	commissionapp "sourcehub/internal/commission/application"
	"sourcehub/internal/eventing"
	"sourcehub/internal/eventing/eventbus"
	eventingrepo "sourcehub/internal/eventing/infrastructure/postgres"
	negotiationapp "sourcehub/internal/negotiation/application"
	negotiationevents "sourcehub/internal/negotiation/application/events"
	negotiationrepo "sourcehub/internal/negotiation/infrastructure/postgres"
	notificationsapp "sourcehub/internal/notifications/application"
	notificationsrepo "sourcehub/internal/notifications/infrastructure/postgres"
	tradeapp "sourcehub/internal/trade/application"
	tradeevents "sourcehub/internal/trade/application/events"
	traderepo "sourcehub/internal/trade/infrastructure/postgres"
	tradehttp "sourcehub/internal/trade/interfaces/http"

	trade "sourcehub/internal/trade/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestTradeLifecycle_NegotiateFulfillSweep(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	buyerID := "buyer-lc-1"
	supplierID := "supplier-lc-1"

	for _, table := range []string{
		"notifications", "processed_events", "dead_letter_events", "event_outbox",
		"negotiation_messages", "negotiation_sessions", "trades", "audit_logs",
	} {
		_, _ = db.ExecContext(ctx, "DELETE FROM "+table)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(negotiationevents.SessionOpened{})
	registry.Register(negotiationevents.TermsProposed{})
	registry.Register(negotiationevents.PartyAgreed{})
	registry.Register(negotiationevents.MessagePosted{})
	registry.Register(tradeevents.TradeMaterialized{})
	registry.Register(tradeevents.AgreementSigned{})
	registry.Register(tradeevents.TradeConfirmed{})
	registry.Register(tradeevents.TradeRejectedByAdmin{})
	registry.Register(tradeevents.InvoiceSubmitted{})
	registry.Register(tradeevents.InvoiceApproved{})
	registry.Register(tradeevents.ShippingDocsSubmitted{})
	registry.Register(tradeevents.TradeDispatched{})
	registry.Register(tradeevents.DeliveryConfirmed{})
	registry.Register(tradeevents.CommissionProcessed{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, baseBus)

	tradeRepo := traderepo.NewRepository(db)
	sessionRepo := negotiationrepo.NewSessionRepository(db)
	ledger, err := tradeapp.NewLedger(tradeRepo, sessionReader{sessions: sessionRepo}, publisher)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	documents, err := tradeapp.NewDocumentService(tradeRepo, publisher)
	if err != nil {
		t.Fatalf("documents: %v", err)
	}

	negotiationService, err := negotiationapp.NewService(
		sessionRepo,
		negotiationrepo.NewMessageRepository(db),
		ledgerAdapter{ledger: ledger},
		publisher,
	)
	if err != nil {
		t.Fatalf("negotiation service: %v", err)
	}

	notificationRepo := notificationsrepo.NewRepository(db)
	notificationService, err := notificationsapp.NewService(notificationRepo, logger)
	if err != nil {
		t.Fatalf("notification service: %v", err)
	}
	notificationsapp.NewConsumers(notificationService, "admin-lc-1").Register(baseBus, processedStore)

	buyerCtx := auth.WithIdentity(ctx, buyerID, auth.RoleBuyer)
	supplierCtx := auth.WithIdentity(ctx, supplierID, auth.RoleSupplier)

	sess, err := negotiationService.Open(buyerCtx, "req-lc-1", "1000 widgets", buyerID, supplierID)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	if _, err := negotiationService.ProposeTerms(supplierCtx, negotiationapp.ProposeTermsRequest{
		SessionID:   sess.ID,
		ProductName: "widget",
		Quantity:    1000,
		UnitPrice:   5.50,
	}); err != nil {
		t.Fatalf("propose terms: %v", err)
	}

	if _, err := negotiationService.Agree(buyerCtx, sess.ID, 0); err != nil {
		t.Fatalf("buyer agree: %v", err)
	}
	frozen, err := negotiationService.Agree(supplierCtx, sess.ID, 0)
	if err != nil {
		t.Fatalf("supplier agree: %v", err)
	}
	if !frozen.TradeCreated || frozen.TradeID == "" {
		t.Fatalf("session not frozen after mutual agreement: %+v", frozen)
	}

	// reopening converges on the frozen session
	again, err := negotiationService.Open(buyerCtx, "req-lc-1", "1000 widgets", buyerID, supplierID)
	if err != nil {
		t.Fatalf("reopen session: %v", err)
	}
	if again.ID != sess.ID || !again.TradeCreated {
		t.Fatalf("reopen did not converge: %+v", again)
	}

	created, err := ledger.Get(buyerCtx, frozen.TradeID)
	if err != nil {
		t.Fatalf("get trade: %v", err)
	}
	if created.Status != trade.StatusOngoing {
		t.Fatalf("expected ongoing trade, got %s", created.Status)
	}
	if created.Value != 5500.00 {
		t.Fatalf("trade value mismatch: %v", created.Value)
	}

	if _, err := documents.SubmitInvoice(supplierCtx, created.ID); err != nil {
		t.Fatalf("submit invoice: %v", err)
	}
	if _, err := documents.ApproveInvoice(buyerCtx, created.ID); err != nil {
		t.Fatalf("approve invoice: %v", err)
	}
	if _, err := documents.SubmitShippingDocs(supplierCtx, created.ID); err != nil {
		t.Fatalf("submit shipping docs: %v", err)
	}
	if _, err := documents.RecordTracking(supplierCtx, created.ID, "TRK-8842", "DHL"); err != nil {
		t.Fatalf("record tracking: %v", err)
	}
	finished, err := documents.ConfirmDelivery(buyerCtx, created.ID)
	if err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}
	if finished.Status != trade.StatusFinished {
		t.Fatalf("expected finished trade, got %s", finished.Status)
	}

	processor, err := commissionapp.NewProcessor(tradeRepo, publisher, commissionapp.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	result, err := processor.Run(ctx)
	if err != nil {
		t.Fatalf("commission run: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected 1 processed trade, got %d", result.Processed)
	}
	rerun, err := processor.Run(ctx)
	if err != nil {
		t.Fatalf("commission rerun: %v", err)
	}
	if rerun.Processed != 0 {
		t.Fatalf("rerun swept %d trades", rerun.Processed)
	}

	swept, err := ledger.Get(buyerCtx, created.ID)
	if err != nil {
		t.Fatalf("get swept trade: %v", err)
	}
	if !swept.ProcessedForCommission {
		t.Fatalf("trade not flagged after sweep")
	}

	// drain anything the inline dispatches left behind
	if err := dispatcher.Dispatch(ctx, 100); err != nil {
		t.Fatalf("drain outbox: %v", err)
	}

	inbox, err := notificationRepo.ListForRecipient(ctx, buyerID, false, 50)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(inbox) == 0 {
		t.Fatalf("expected buyer notifications after lifecycle")
	}

	tradeHandler, err := tradehttp.NewHandler(ledger, documents, nil)
	if err != nil {
		t.Fatalf("trade handler: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/api/v1/trades", tradeHandler)
	mux.Handle("/api/v1/trades/", tradeHandler)

	pdfReq := httptest.NewRequest(http.MethodGet, "/api/v1/trades/"+created.ID+"/export.pdf", nil)
	pdfReq = pdfReq.WithContext(auth.WithIdentity(pdfReq.Context(), buyerID, auth.RoleBuyer))
	pdfResp := httptest.NewRecorder()
	mux.ServeHTTP(pdfResp, pdfReq)
	if pdfResp.Code != http.StatusOK {
		t.Fatalf("pdf status %d", pdfResp.Code)
	}
	if pdfResp.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf content-type mismatch")
	}
	if len(pdfResp.Body.Bytes()) == 0 {
		t.Fatalf("pdf empty")
	}
}

func applyMigrations(db *sql.DB) error {
	root := projectRoot()
	files := []string{
		filepath.Join(root, "migrations", "001_negotiation.sql"),
		filepath.Join(root, "migrations", "002_trades.sql"),
		filepath.Join(root, "migrations", "003_notifications.sql"),
		filepath.Join(root, "migrations", "004_eventing.sql"),
		filepath.Join(root, "migrations", "005_audit.sql"),
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(content)); err != nil {
			return err
		}
	}
	return nil
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}

type ledgerAdapter struct {
	ledger *tradeapp.Ledger
}

func (a ledgerAdapter) Materialize(ctx context.Context, req negotiationapp.MaterializeRequest) (negotiationapp.MaterializedTrade, error) {
	created, err := a.ledger.Materialize(ctx, tradeapp.MaterializeRequest{
		SessionID:        req.SessionID,
		BuyerID:          req.BuyerID,
		SupplierID:       req.SupplierID,
		RequirementID:    req.RequirementID,
		RequirementTitle: req.RequirementTitle,
		ProductName:      req.ProductName,
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
	})
	if err != nil {
		return negotiationapp.MaterializedTrade{}, err
	}
	return negotiationapp.MaterializedTrade{ID: created.ID, Value: created.Value}, nil
}

type sessionReader struct {
	sessions *negotiationrepo.SessionRepository
}

func (r sessionReader) SessionByID(ctx context.Context, sessionID string) (*tradeapp.SessionRecord, error) {
	sess, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	return &tradeapp.SessionRecord{
		ID:               sess.ID,
		BuyerID:          sess.BuyerID,
		SupplierID:       sess.SupplierID,
		RequirementID:    sess.RequirementID,
		RequirementTitle: sess.RequirementTitle,
		ProductName:      sess.ProposedProductName,
		Quantity:         sess.ProposedQuantity,
		UnitPrice:        sess.ProposedUnitPrice,
		HasTerms:         sess.HasTerms(),
	}, nil
}
