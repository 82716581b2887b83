package application

import (
	"context"
	"errors"
	"log"
	"time"

	"sourcehub/internal/eventing"
	"sourcehub/internal/observability/metrics"
	tradeevents "sourcehub/internal/trade/application/events"
	trade "sourcehub/internal/trade/domain"
)

// Processor sweeps finished trades: it marks each one commission-processed
// exactly once and emits an event per processed trade. The flag is the only
// thing it writes; trade status is never touched.
type Processor struct {
	repo      trade.Repository
	publisher *eventing.Publisher
	cfg       Config
	logger    *log.Logger
}

// RunResult summarizes one sweep.
type RunResult struct {
	Scanned   int `json:"scanned"`
	Processed int `json:"processed"`
}

// NewProcessor constructs a processor.
func NewProcessor(repo trade.Repository, publisher *eventing.Publisher, cfg Config, logger *log.Logger) (*Processor, error) {
	if repo == nil {
		return nil, errors.New("commission: nil repo")
	}
	if publisher == nil {
		return nil, errors.New("commission: nil publisher")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{repo: repo, publisher: publisher, cfg: cfg, logger: logger}, nil
}

// Rate returns the configured commission rate.
func (p *Processor) Rate() float64 {
	return p.cfg.Rate
}

// ListUnprocessed returns finished trades the sweep has not picked up yet.
func (p *Processor) ListUnprocessed(ctx context.Context) ([]trade.Trade, error) {
	return p.repo.ListUnprocessedFinished(ctx, p.cfg.BatchSize)
}

// MarkProcessed flags one finished trade. Idempotent: flagging an
// already-processed trade reports false without error.
func (p *Processor) MarkProcessed(ctx context.Context, tradeID string) (bool, error) {
	now := time.Now().UTC()
	changed, err := p.repo.MarkCommissionProcessed(ctx, tradeID, now)
	if err != nil {
		return false, err
	}
	if !changed {
		current, getErr := p.repo.GetByID(ctx, tradeID)
		if getErr != nil {
			return false, getErr
		}
		if current == nil {
			return false, trade.ErrNotFound
		}
		if current.Status != trade.StatusFinished {
			return false, trade.ErrInvalidTransition
		}
		// Already swept.
		return false, nil
	}

	current, err := p.repo.GetByID(ctx, tradeID)
	if err != nil {
		return true, err
	}
	var value float64
	if current != nil {
		value = current.Value
	}
	eventID := eventing.NewEventID()
	ctx = eventing.WithEventID(ctx, eventID)
	if err := p.publisher.Publish(ctx, tradeevents.CommissionProcessed{
		EventID:    eventID,
		TradeID:    tradeID,
		Value:      value,
		OccurredAt: now,
	}); err != nil {
		return true, err
	}
	return true, nil
}

// Run executes one sweep over the unprocessed backlog.
func (p *Processor) Run(ctx context.Context) (RunResult, error) {
	start := time.Now()
	result := RunResult{}

	backlog, err := p.ListUnprocessed(ctx)
	if err != nil {
		metrics.ObserveCommissionRun(metrics.ResultError, time.Since(start))
		return result, err
	}
	result.Scanned = len(backlog)

	for i := range backlog {
		changed, err := p.MarkProcessed(ctx, backlog[i].ID)
		if err != nil {
			metrics.ObserveCommissionRun(metrics.ResultError, time.Since(start))
			return result, err
		}
		if changed {
			result.Processed++
		}
	}

	metrics.ObserveCommissionRun(metrics.ResultSuccess, time.Since(start))
	metrics.AddCommissionProcessed(result.Processed)
	if result.Scanned > 0 {
		p.logger.Printf("commission: sweep scanned=%d processed=%d", result.Scanned, result.Processed)
	}
	return result, nil
}
