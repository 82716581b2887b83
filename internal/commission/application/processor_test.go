package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

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

func newProcessor(t *testing.T) (*Processor, *memory.Repository, *recordingOutbox) {
	t.Helper()
	repo := memory.NewRepository()
	outbox := &recordingOutbox{}
	proc, err := NewProcessor(repo, eventing.NewPublisher(outbox, nil, nil), DefaultConfig(), log.New(log.Writer(), "", 0))
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return proc, repo, outbox
}

func storeTrade(t *testing.T, repo *memory.Repository, sessionID string, status trade.Status) *trade.Trade {
	t.Helper()
	tr, err := trade.NewTrade(sessionID, "b1", "s1", "req-1", "1000 widgets", "widget", 1000, 5.50, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewTrade: %v", err)
	}
	tr.Status = status
	if err := repo.CreateIfAbsent(context.Background(), tr); err != nil {
		t.Fatalf("create: %v", err)
	}
	return tr
}

func TestRunSweepsBacklogOnce(t *testing.T) {
	proc, repo, outbox := newProcessor(t)
	first := storeTrade(t, repo, "sess-1", trade.StatusFinished)
	storeTrade(t, repo, "sess-2", trade.StatusFinished)
	storeTrade(t, repo, "sess-3", trade.StatusOngoing)

	result, err := proc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Scanned != 2 || result.Processed != 2 {
		t.Fatalf("first run = %+v, want scanned=2 processed=2", result)
	}
	if got := outbox.count("events.CommissionProcessed"); got != 2 {
		t.Fatalf("CommissionProcessed events = %d, want 2", got)
	}

	// The sweep sets the flag and nothing else.
	swept, err := repo.GetByID(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if swept.Status != trade.StatusFinished {
		t.Fatalf("status changed by sweep: %s", swept.Status)
	}
	if !swept.ProcessedForCommission {
		t.Fatalf("commission flag not set")
	}

	// Re-running finds nothing and emits nothing.
	again, err := proc.Run(context.Background())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if again.Scanned != 0 || again.Processed != 0 {
		t.Fatalf("second run = %+v, want empty", again)
	}
	if got := outbox.count("events.CommissionProcessed"); got != 2 {
		t.Fatalf("CommissionProcessed events after rerun = %d, want 2", got)
	}
}

func TestMarkProcessedIdempotent(t *testing.T) {
	proc, repo, _ := newProcessor(t)
	tr := storeTrade(t, repo, "sess-1", trade.StatusFinished)

	changed, err := proc.MarkProcessed(context.Background(), tr.ID)
	if err != nil || !changed {
		t.Fatalf("first mark: changed=%v err=%v", changed, err)
	}
	changed, err = proc.MarkProcessed(context.Background(), tr.ID)
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if changed {
		t.Fatalf("second mark reported a change")
	}
}

func TestMarkProcessedRequiresFinishedTrade(t *testing.T) {
	proc, repo, _ := newProcessor(t)
	tr := storeTrade(t, repo, "sess-1", trade.StatusOngoing)

	if _, err := proc.MarkProcessed(context.Background(), tr.ID); !errors.Is(err, trade.ErrInvalidTransition) {
		t.Fatalf("mark ongoing: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := proc.MarkProcessed(context.Background(), "no-such-trade"); !errors.Is(err, trade.ErrNotFound) {
		t.Fatalf("mark missing: err = %v, want ErrNotFound", err)
	}
}

func TestConfigValidation(t *testing.T) {
	for _, cfg := range []Config{
		{Rate: 0, BatchSize: 10, DailyAt: "02:00"},
		{Rate: 1.5, BatchSize: 10, DailyAt: "02:00"},
		{Rate: 0.05, BatchSize: 0, DailyAt: "02:00"},
		{Rate: 0.05, BatchSize: 10, DailyAt: "2am"},
	} {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("config %+v validated, want error", cfg)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestNextRun(t *testing.T) {
	now := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)
	next := nextRun(now, "02:00")
	want := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}

	// Already past today's slot: roll to tomorrow.
	now = time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	next = nextRun(now, "02:00")
	want = time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}
