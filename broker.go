// Copyright (c) 2025 Neomantra Corp

package hydra

import "fmt"

// Broker owns the order-lifecycle state machine for the assets registered
// with it.  Matching is cash-free: orders fill at the asset's phase price
// regardless of the originating portfolio's balance (margin is unmodeled, so
// cash may go negative).
//
// Open orders are kept in FIFO submission order; across brokers the engine
// matches in broker-id lexicographic order, so a full match cycle is
// deterministic.
type Broker struct {
	brokerID string
	h        *Hydra

	open []*Order // OPEN orders awaiting a match cycle, FIFO
}

func newBroker(brokerID string, h *Hydra) *Broker {
	return &Broker{brokerID: brokerID, h: h}
}

func (b *Broker) BrokerID() string { return b.brokerID }

// OpenOrders returns the orders currently eligible for matching, in FIFO
// order.  The slice is a copy; the orders are live.
func (b *Broker) OpenOrders() []*Order {
	return append([]*Order(nil), b.open...)
}

// CancelOrder cancels an OPEN order by id.
func (b *Broker) CancelOrder(orderID int64) error {
	for i, order := range b.open {
		if order.orderID != orderID {
			continue
		}
		order.state = OrderState_Cancelled
		b.open = append(b.open[:i], b.open[i+1:]...)
		b.h.notifyOrderEvent(order, EventType_OrderCancelled)
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnknownOrder, orderID)
}

// submit accepts a validated order.  EAGER orders are matched immediately at
// the current phase price; LAZY orders (and eager orders whose asset cannot
// be priced yet) wait in the open queue.
func (b *Broker) submit(order *Order) error {
	order.state = OrderState_Open
	order.openedTick = b.h.cursor
	if order.exec == OrderExecutionType_Eager {
		matched, err := b.tryMatch(order, b.h.phase)
		if err != nil {
			return err
		}
		if matched {
			return nil
		}
	}
	b.open = append(b.open, order)
	return nil
}

// processOpenOrders runs one match cycle: expire orders whose TTL elapsed,
// then attempt to fill the rest in FIFO order at the given phase price.
func (b *Broker) processOpenOrders(phase enginePhase) error {
	var remaining []*Order
	for _, order := range b.open {
		if order.state != OrderState_Open {
			continue
		}
		// Lazy orders wait out the tick they were submitted on.
		if order.exec == OrderExecutionType_Lazy && order.openedTick == b.h.cursor {
			remaining = append(remaining, order)
			continue
		}
		if order.ttl != UnboundedTTL && int64(b.h.cursor-order.openedTick) > order.ttl {
			b.expire(order)
			continue
		}
		matched, err := b.tryMatch(order, phase)
		if err != nil {
			return err
		}
		if !matched {
			remaining = append(remaining, order)
		}
	}
	b.open = remaining
	return nil
}

// expireAll expires every open order; called when the clock is exhausted.
func (b *Broker) expireAll() {
	for _, order := range b.open {
		if order.state == OrderState_Open {
			b.expire(order)
		}
	}
	b.open = nil
}

func (b *Broker) expire(order *Order) {
	order.state = OrderState_Expired
	b.h.notifyOrderEvent(order, EventType_OrderExpired)
	b.h.logger.Info().
		Int64("OrderID", order.orderID).
		Str("AssetID", order.assetID).
		Msg("order expired")
}

func (b *Broker) tryMatch(order *Order, phase enginePhase) (bool, error) {
	route, ok := b.h.routes[order.assetID]
	if !ok {
		return false, unknownIDError(ErrUnknownAsset, order.assetID)
	}
	price, ok := route.asset.phasePrice(phase)
	if !ok {
		return false, nil
	}
	return true, b.fill(order, price)
}

// fill transitions the order to FILLED and applies the resulting trade to the
// originating portfolio and its ancestors before returning, so no later order
// ever observes a half-applied fill.
func (b *Broker) fill(order *Order, price float64) error {
	portfolio, ok := b.h.portfolios[order.portfolioID]
	if !ok {
		return unknownIDError(ErrUnknownPortfolio, order.portfolioID)
	}

	now, _ := b.h.CurrentTime()
	order.state = OrderState_Filled
	order.fillPrice = price
	order.fillTime = now

	trade := &Trade{
		tradeID:     b.h.nextTradeID(),
		strategyID:  order.strategyID,
		assetID:     order.assetID,
		portfolioID: order.portfolioID,
		units:       order.units,
		fillPrice:   price,
		fillTime:    now,
		exchangeID:  order.exchangeID,
		brokerID:    order.brokerID,
	}
	order.tradeID = trade.tradeID

	portfolio.applyFill(trade)
	b.h.appendTradeHistory(trade)
	b.h.notifyOrderEvent(order, EventType_OrderFilled)

	b.h.logger.Info().
		Int64("OrderID", order.orderID).
		Str("AssetID", order.assetID).
		Str("PortfolioID", order.portfolioID).
		Float64("Units", order.units).
		Float64("FillPrice", price).
		Msg("order filled")
	return nil
}
