package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sourcehub/internal/audit"
	"sourcehub/internal/auth"
	commissionapp "sourcehub/internal/commission/application"
	commissionhttp "sourcehub/internal/commission/interfaces/http"
	"sourcehub/internal/eventing"
	"sourcehub/internal/eventing/eventbus"
	eventingrepo "sourcehub/internal/eventing/infrastructure/postgres"
	negotiationapp "sourcehub/internal/negotiation/application"
	negotiationevents "sourcehub/internal/negotiation/application/events"
	negotiationrepo "sourcehub/internal/negotiation/infrastructure/postgres"
	negotiationhttp "sourcehub/internal/negotiation/interfaces/http"
	notificationsapp "sourcehub/internal/notifications/application"
	notificationsrepo "sourcehub/internal/notifications/infrastructure/postgres"
	notificationshttp "sourcehub/internal/notifications/interfaces/http"
	"sourcehub/internal/notifications/notify"
	"sourcehub/internal/observability/metrics"
	tradeapp "sourcehub/internal/trade/application"
	tradeevents "sourcehub/internal/trade/application/events"
	traderepo "sourcehub/internal/trade/infrastructure/postgres"
	tradehttp "sourcehub/internal/trade/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

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
		logger.Fatalf("trade ledger error: %v", err)
	}
	documents, err := tradeapp.NewDocumentService(tradeRepo, publisher)
	if err != nil {
		logger.Fatalf("document service error: %v", err)
	}
	tradeHandler, err := tradehttp.NewHandler(ledger, documents, auditRepo)
	if err != nil {
		logger.Fatalf("trade handler error: %v", err)
	}

	messageRepo := negotiationrepo.NewMessageRepository(db)
	negotiationService, err := negotiationapp.NewService(sessionRepo, messageRepo, ledgerMaterializer{ledger: ledger}, publisher)
	if err != nil {
		logger.Fatalf("negotiation service error: %v", err)
	}
	negotiationHandler, err := negotiationhttp.NewHandler(negotiationService, auditRepo)
	if err != nil {
		logger.Fatalf("negotiation handler error: %v", err)
	}

	commissionCfg, err := commissionapp.LoadConfig(cfg.CommissionConfigPath)
	if err != nil {
		logger.Fatalf("commission config error: %v", err)
	}
	processor, err := commissionapp.NewProcessor(tradeRepo, publisher, commissionCfg, logger)
	if err != nil {
		logger.Fatalf("commission processor error: %v", err)
	}
	commissionHandler, err := commissionhttp.NewHandler(processor, auditRepo)
	if err != nil {
		logger.Fatalf("commission handler error: %v", err)
	}

	notificationRepo := notificationsrepo.NewRepository(db)
	var channels []notificationsapp.Channel
	if cfg.NotifyWebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(cfg.NotifyWebhookURL))
	}
	notificationService, err := notificationsapp.NewService(notificationRepo, logger, channels...)
	if err != nil {
		logger.Fatalf("notification service error: %v", err)
	}
	notificationHandler, err := notificationshttp.NewHandler(notificationService)
	if err != nil {
		logger.Fatalf("notification handler error: %v", err)
	}
	consumers := notificationsapp.NewConsumers(notificationService, commissionCfg.AdminRecipientID)
	consumers.Register(baseBus, processedStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := commissionapp.NewScheduler(processor, commissionCfg.DailyAt, logger)
	go scheduler.Start(ctx)

	// Drains outbox rows left behind by failed inline dispatches.
	go func() {
		ticker := time.NewTicker(cfg.DispatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := dispatcher.Dispatch(ctx, cfg.DispatchBatch); err != nil {
					logger.Printf("outbox dispatch error: %v", err)
				}
			}
		}
	}()

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/negotiations", negotiationHandler)
	mux.Handle("/api/v1/negotiations/", negotiationHandler)
	mux.Handle("/api/v1/trades", tradeHandler)
	mux.Handle("/api/v1/trades/", tradeHandler)
	mux.Handle("/api/v1/notifications", notificationHandler)
	mux.Handle("/api/v1/notifications/", notificationHandler)
	mux.Handle("/api/v1/commission/", commissionHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
}

type config struct {
	DatabaseURL          string
	HTTPAddr             string
	JWTSecret            string
	NotifyWebhookURL     string
	CommissionConfigPath string
	DispatchInterval     time.Duration
	DispatchBatch        int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:            getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		NotifyWebhookURL:     getenvDefault("NOTIFY_WEBHOOK_URL", ""),
		CommissionConfigPath: getenvDefault("COMMISSION_CONFIG", ""),
		DispatchInterval:     getenvDuration("OUTBOX_DISPATCH_INTERVAL", 5*time.Second),
		DispatchBatch:        getenvIntDefault("OUTBOX_DISPATCH_BATCH", 100),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// ---- Adapters ----

// ledgerMaterializer bridges the negotiation service to the trade ledger.
type ledgerMaterializer struct {
	ledger *tradeapp.Ledger
}

func (m ledgerMaterializer) Materialize(ctx context.Context, req negotiationapp.MaterializeRequest) (negotiationapp.MaterializedTrade, error) {
	created, err := m.ledger.Materialize(ctx, tradeapp.MaterializeRequest{
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

// sessionReader lets the trade ledger verify signatures against the stored
// negotiation record instead of trusting caller-supplied terms.
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
