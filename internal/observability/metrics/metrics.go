package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "sourcehub_"

	resultSuccess = "success"
	resultError   = "error"

	materializeOutcomeCreated = "created"
	materializeOutcomeExists  = "already_exists"
)

var (
	registerOnce sync.Once

	materializeTotal   *prometheus.CounterVec
	materializeLatency *prometheus.HistogramVec

	negotiationEventsTotal *prometheus.CounterVec

	tradeTransitionsTotal *prometheus.CounterVec
	tradeRejectionsTotal  *prometheus.CounterVec

	documentActionsTotal *prometheus.CounterVec

	notificationsTotal *prometheus.CounterVec

	commissionRunTotal   *prometheus.CounterVec
	commissionRunLatency *prometheus.HistogramVec
	commissionProcessed  prometheus.Counter

	tradeExportTotal   *prometheus.CounterVec
	tradeExportLatency *prometheus.HistogramVec

	eventDispatchTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		materializeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "trade_materialize_total",
				Help: "Total trade materialization attempts by outcome",
			},
			[]string{"outcome"},
		)
		materializeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "trade_materialize_latency_seconds",
				Help:    "Trade materialization latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		negotiationEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "negotiation_events_total",
				Help: "Total negotiation session events by type",
			},
			[]string{"event"},
		)

		tradeTransitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "trade_transitions_total",
				Help: "Total trade status transitions by target status",
			},
			[]string{"to"},
		)
		tradeRejectionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "trade_transition_rejections_total",
				Help: "Total rejected trade transitions by reason",
			},
			[]string{"reason"},
		)

		documentActionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "document_actions_total",
				Help: "Total document workflow actions by action and result",
			},
			[]string{"action", "result"},
		)

		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notifications created by type and result",
			},
			[]string{"type", "result"},
		)

		commissionRunTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commission_run_total",
				Help: "Total commission sweep runs by result",
			},
			[]string{"result"},
		)
		commissionRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "commission_run_latency_seconds",
				Help:    "Commission sweep latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		commissionProcessed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commission_trades_processed_total",
				Help: "Total trades marked commission-processed",
			},
		)

		tradeExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "trade_export_total",
				Help: "Total trade/commission export operations by format and result",
			},
			[]string{"format", "result"},
		)
		tradeExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "trade_export_latency_seconds",
				Help:    "Trade/commission export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		eventDispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_dispatch_total",
				Help: "Total outbox event dispatch attempts by event type and result",
			},
			[]string{"event_type", "result"},
		)

		prometheus.MustRegister(
			materializeTotal,
			materializeLatency,
			negotiationEventsTotal,
			tradeTransitionsTotal,
			tradeRejectionsTotal,
			documentActionsTotal,
			notificationsTotal,
			commissionRunTotal,
			commissionRunLatency,
			commissionProcessed,
			tradeExportTotal,
			tradeExportLatency,
			eventDispatchTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveMaterialize records a materialization attempt.
func ObserveMaterialize(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = materializeOutcomeCreated
	}
	if materializeTotal != nil {
		materializeTotal.WithLabelValues(outcome).Inc()
	}
	if materializeLatency != nil {
		materializeLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// IncNegotiationEvent increments negotiation session event counters.
func IncNegotiationEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if negotiationEventsTotal != nil {
		negotiationEventsTotal.WithLabelValues(event).Inc()
	}
}

// IncTradeTransition increments transition counter by target status.
func IncTradeTransition(to string) {
	if to == "" {
		to = "unknown"
	}
	if tradeTransitionsTotal != nil {
		tradeTransitionsTotal.WithLabelValues(to).Inc()
	}
}

// IncTradeRejection increments rejected-transition counter by reason.
func IncTradeRejection(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if tradeRejectionsTotal != nil {
		tradeRejectionsTotal.WithLabelValues(reason).Inc()
	}
}

// IncDocumentAction increments document workflow counters.
func IncDocumentAction(action, result string) {
	if action == "" {
		action = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if documentActionsTotal != nil {
		documentActionsTotal.WithLabelValues(action, result).Inc()
	}
}

// IncNotification increments notification counters.
func IncNotification(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObserveCommissionRun records a commission sweep run.
func ObserveCommissionRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if commissionRunTotal != nil {
		commissionRunTotal.WithLabelValues(result).Inc()
	}
	if commissionRunLatency != nil {
		commissionRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddCommissionProcessed increments the processed-trade counter by count.
func AddCommissionProcessed(count int) {
	if count <= 0 {
		return
	}
	if commissionProcessed != nil {
		commissionProcessed.Add(float64(count))
	}
}

// ObserveTradeExport records export latency and result.
func ObserveTradeExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if tradeExportTotal != nil {
		tradeExportTotal.WithLabelValues(format, result).Inc()
	}
	if tradeExportLatency != nil {
		tradeExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncEventDispatch counts an outbox dispatch attempt for one event.
func IncEventDispatch(eventType, result string) {
	if eventType == "" {
		eventType = "unknown"
	}
	if result == "" {
		result = DispatchDelivered
	}
	if eventDispatchTotal != nil {
		eventDispatchTotal.WithLabelValues(eventType, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	MaterializeCreated       = materializeOutcomeCreated
	MaterializeAlreadyExists = materializeOutcomeExists

	DispatchDelivered    = "delivered"
	DispatchDecodeError  = "decode_error"
	DispatchPublishError = "publish_error"
)
