package application

import (
	"context"
	"fmt"

	"sourcehub/internal/eventing"
	"sourcehub/internal/eventing/eventbus"
	negotiationevents "sourcehub/internal/negotiation/application/events"
	notifications "sourcehub/internal/notifications/domain"
	tradeevents "sourcehub/internal/trade/application/events"
)

const consumerName = "notifications"

// Consumers subscribes the sink to the lifecycle events it cares about.
// Handlers return errors so unprocessed events stay retryable; the
// processed-event store keeps redelivery from producing duplicate inbox
// rows.
type Consumers struct {
	sink *Service
	// AdminRecipientID receives operator-facing notices (signed trades
	// awaiting confirmation, commission sweeps). Empty disables them.
	AdminRecipientID string
}

// NewConsumers constructs the consumer set.
func NewConsumers(sink *Service, adminRecipientID string) *Consumers {
	return &Consumers{sink: sink, AdminRecipientID: adminRecipientID}
}

// Register subscribes all handlers on the bus.
func (c *Consumers) Register(bus eventbus.EventBus, store eventing.ProcessedStore) {
	if c == nil || c.sink == nil || bus == nil {
		return
	}
	subscribe := func(eventType string, handler eventbus.EventHandler) {
		eventing.Subscribe(bus, eventType, consumerName, handler, store)
	}

	subscribe(eventbus.EventTypeOf[negotiationevents.SessionOpened](), c.onSessionOpened)
	subscribe(eventbus.EventTypeOf[negotiationevents.TermsProposed](), c.onTermsProposed)
	subscribe(eventbus.EventTypeOf[negotiationevents.PartyAgreed](), c.onPartyAgreed)
	subscribe(eventbus.EventTypeOf[negotiationevents.MessagePosted](), c.onMessagePosted)

	subscribe(eventbus.EventTypeOf[tradeevents.TradeMaterialized](), c.onTradeMaterialized)
	subscribe(eventbus.EventTypeOf[tradeevents.AgreementSigned](), c.onAgreementSigned)
	subscribe(eventbus.EventTypeOf[tradeevents.TradeConfirmed](), c.onTradeConfirmed)
	subscribe(eventbus.EventTypeOf[tradeevents.TradeRejectedByAdmin](), c.onTradeRejected)
	subscribe(eventbus.EventTypeOf[tradeevents.InvoiceSubmitted](), c.onInvoiceSubmitted)
	subscribe(eventbus.EventTypeOf[tradeevents.InvoiceApproved](), c.onInvoiceApproved)
	subscribe(eventbus.EventTypeOf[tradeevents.ShippingDocsSubmitted](), c.onShippingDocsSubmitted)
	subscribe(eventbus.EventTypeOf[tradeevents.TradeDispatched](), c.onTradeDispatched)
	subscribe(eventbus.EventTypeOf[tradeevents.DeliveryConfirmed](), c.onDeliveryConfirmed)
	subscribe(eventbus.EventTypeOf[tradeevents.CommissionProcessed](), c.onCommissionProcessed)
}

func (c *Consumers) onSessionOpened(ctx context.Context, event any) error {
	e, ok := event.(negotiationevents.SessionOpened)
	if !ok {
		return nil
	}
	title := fmt.Sprintf("Negotiation opened: %s", e.RequirementTitle)
	return c.sink.NotifyAll(ctx, []string{e.BuyerID, e.SupplierID},
		notifications.TypeRequest, title, "A negotiation session has been opened.", e.SessionID)
}

func (c *Consumers) onTermsProposed(ctx context.Context, event any) error {
	e, ok := event.(negotiationevents.TermsProposed)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("%d x %s at %.2f (terms v%d)", e.Quantity, e.ProductName, e.UnitPrice, e.TermsVersion)
	return c.sink.Notify(ctx, e.Counterparty, notifications.TypeRequest,
		"New terms proposed", body, e.SessionID)
}

func (c *Consumers) onPartyAgreed(ctx context.Context, event any) error {
	e, ok := event.(negotiationevents.PartyAgreed)
	if !ok {
		return nil
	}
	title := "Counterparty agreed to terms"
	if e.Mutual {
		title = "Both parties agreed to terms"
	}
	return c.sink.Notify(ctx, e.Counterparty, notifications.TypeRequest,
		title, "", e.SessionID)
}

func (c *Consumers) onMessagePosted(ctx context.Context, event any) error {
	e, ok := event.(negotiationevents.MessagePosted)
	if !ok {
		return nil
	}
	return c.sink.Notify(ctx, e.Counterparty, notifications.TypeMessage,
		"New message in negotiation", "", e.SessionID)
}

func (c *Consumers) onTradeMaterialized(ctx context.Context, event any) error {
	e, ok := event.(tradeevents.TradeMaterialized)
	if !ok {
		return nil
	}
	title := fmt.Sprintf("Trade created: %s", e.RequirementTitle)
	body := fmt.Sprintf("Trade value %.2f.", e.Value)
	return c.sink.NotifyAll(ctx, []string{e.BuyerID, e.SupplierID},
		notifications.TypeTrade, title, body, e.TradeID)
}

func (c *Consumers) onAgreementSigned(ctx context.Context, event any) error {
	e, ok := event.(tradeevents.AgreementSigned)
	if !ok {
		return nil
	}
	counterparty := e.SupplierID
	if e.SignedBy == e.SupplierID {
		counterparty = e.BuyerID
	}
	if err := c.sink.Notify(ctx, counterparty, notifications.TypeTrade,
		"Agreement signed", "The signed agreement awaits admin confirmation.", e.TradeID); err != nil {
		return err
	}
	if c.AdminRecipientID == "" {
		return nil
	}
	return c.sink.Notify(ctx, c.AdminRecipientID, notifications.TypeSystem,
		"Signed trade awaiting confirmation", "", e.TradeID)
}

func (c *Consumers) onTradeConfirmed(ctx context.Context, event any) error {
	e, ok := event.(tradeevents.TradeConfirmed)
	if !ok {
		return nil
	}
	return c.sink.NotifyAll(ctx, []string{e.BuyerID, e.SupplierID},
		notifications.TypeTrade, "Trade confirmed", "An admin confirmed the trade; fulfillment may begin.", e.TradeID)
}

func (c *Consumers) onTradeRejected(ctx context.Context, event any) error {
	e, ok := event.(tradeevents.TradeRejectedByAdmin)
	if !ok {
		return nil
	}
	body := "An admin rejected the trade."
	if e.Reason != "" {
		body = fmt.Sprintf("An admin rejected the trade: %s", e.Reason)
	}
	return c.sink.NotifyAll(ctx, []string{e.BuyerID, e.SupplierID},
		notifications.TypeTrade, "Trade rejected", body, e.TradeID)
}

func (c *Consumers) onInvoiceSubmitted(ctx context.Context, event any) error {
	e, ok := event.(tradeevents.InvoiceSubmitted)
	if !ok {
		return nil
	}
	return c.sink.Notify(ctx, e.BuyerID, notifications.TypeTrade,
		"Invoice submitted", "The supplier submitted an invoice for your approval.", e.TradeID)
}

func (c *Consumers) onInvoiceApproved(ctx context.Context, event any) error {
	e, ok := event.(tradeevents.InvoiceApproved)
	if !ok {
		return nil
	}
	return c.sink.Notify(ctx, e.SupplierID, notifications.TypeTrade,
		"Invoice approved", "You may now submit shipping documents.", e.TradeID)
}

func (c *Consumers) onShippingDocsSubmitted(ctx context.Context, event any) error {
	e, ok := event.(tradeevents.ShippingDocsSubmitted)
	if !ok {
		return nil
	}
	return c.sink.Notify(ctx, e.BuyerID, notifications.TypeTrade,
		"Shipping documents submitted", "", e.TradeID)
}

func (c *Consumers) onTradeDispatched(ctx context.Context, event any) error {
	e, ok := event.(tradeevents.TradeDispatched)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("Tracking %s via %s.", e.TrackingID, e.Carrier)
	return c.sink.Notify(ctx, e.BuyerID, notifications.TypeTrade,
		"Order dispatched", body, e.TradeID)
}

func (c *Consumers) onDeliveryConfirmed(ctx context.Context, event any) error {
	e, ok := event.(tradeevents.DeliveryConfirmed)
	if !ok {
		return nil
	}
	return c.sink.Notify(ctx, e.SupplierID, notifications.TypeTrade,
		"Delivery confirmed", "The buyer confirmed delivery; the trade is finished.", e.TradeID)
}

func (c *Consumers) onCommissionProcessed(ctx context.Context, event any) error {
	e, ok := event.(tradeevents.CommissionProcessed)
	if !ok {
		return nil
	}
	if c.AdminRecipientID == "" {
		return nil
	}
	body := fmt.Sprintf("Trade value %.2f swept for commission.", e.Value)
	return c.sink.Notify(ctx, c.AdminRecipientID, notifications.TypeSystem,
		"Commission processed", body, e.TradeID)
}
