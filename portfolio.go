// Copyright (c) 2025 Neomantra Corp

package hydra

import (
	"fmt"
	"math"
	"sort"
)

// MasterPortfolioID is the id of the implicit root of the portfolio tree.
const MasterPortfolioID = "master"

// Allocation is one (asset, target) entry for OrderTargetAllocations.
// Allocations are an ordered slice rather than a map so that the orders they
// generate are deterministic under replay.
type Allocation struct {
	AssetID string
	Target  float64
}

// Portfolio is a node in the accounting tree.  Each node holds its own
// uninvested cash and a positions map; interior nodes additionally mirror the
// union of their descendants' positions at size-weighted average cost, which
// the engine maintains incrementally on every fill.
//
// Reported cash and NLV are aggregates over the node's subtree.
type Portfolio struct {
	portfolioID string
	h           *Hydra
	parent      *Portfolio
	children    []*Portfolio

	cash      float64 // own cash at this node
	epochCash float64 // own cash captured at build, restored on reset

	positions map[string]*Position

	valueTracer ValueTracer
	eventTracer *EventTracer
}

func newPortfolio(portfolioID string, cash float64, parent *Portfolio, h *Hydra) *Portfolio {
	return &Portfolio{
		portfolioID: portfolioID,
		h:           h,
		parent:      parent,
		cash:        cash,
		epochCash:   cash,
		positions:   make(map[string]*Position),
	}
}

func (p *Portfolio) PortfolioID() string { return p.portfolioID }
func (p *Portfolio) Parent() *Portfolio  { return p.parent }

// Children returns the direct children in creation order.
func (p *Portfolio) Children() []*Portfolio {
	return append([]*Portfolio(nil), p.children...)
}

// CreateSubPortfolio creates a child funded by debiting this node's own cash.
// The child id must be unique across the whole engine, and the tree is frozen
// once the engine is built.
func (p *Portfolio) CreateSubPortfolio(childID string, cash float64) (*Portfolio, error) {
	if p.h.built {
		return nil, ErrAlreadyBuilt
	}
	if _, exists := p.h.portfolios[childID]; exists {
		return nil, duplicateIDError("portfolio", childID)
	}
	child := newPortfolio(childID, cash, p, p.h)
	p.cash -= cash
	p.children = append(p.children, child)
	p.h.portfolios[childID] = child
	p.h.logger.Info().
		Str("PortfolioID", childID).
		Str("ParentID", p.portfolioID).
		Float64("Cash", cash).
		Msg("created sub-portfolio")
	return child, nil
}

// FindPortfolio searches this node's subtree for the given id and returns the
// shared node (never a copy).
func (p *Portfolio) FindPortfolio(portfolioID string) (*Portfolio, bool) {
	if p.portfolioID == portfolioID {
		return p, true
	}
	for _, child := range p.children {
		if found, ok := child.FindPortfolio(portfolioID); ok {
			return found, true
		}
	}
	return nil, false
}

// GetPosition returns this node's position on the asset, if any.
func (p *Portfolio) GetPosition(assetID string) (*Position, bool) {
	pos, ok := p.positions[assetID]
	return pos, ok
}

// NumPositions returns the number of open positions at this node.
func (p *Portfolio) NumPositions() int {
	return len(p.positions)
}

// GetCash returns the subtree's aggregate cash.
func (p *Portfolio) GetCash() float64 {
	cash := p.cash
	for _, child := range p.children {
		cash += child.GetCash()
	}
	return cash
}

// GetNLV returns the subtree's net liquidation value: aggregate cash plus
// every position marked at the last known CLOSE.
func (p *Portfolio) GetNLV() float64 {
	nlv := p.GetCash()
	for _, assetID := range p.sortedPositionIDs() {
		pos := p.positions[assetID]
		if mark, ok := p.h.markPrice(assetID); ok {
			nlv += pos.units * mark
		}
	}
	return nlv
}

// GetUnrealizedPL returns the subtree's unrealized P/L at current marks.
func (p *Portfolio) GetUnrealizedPL() float64 {
	pl := 0.0
	for _, assetID := range p.sortedPositionIDs() {
		pos := p.positions[assetID]
		if mark, ok := p.h.markPrice(assetID); ok {
			pl += pos.units * (mark - pos.averagePrice)
		}
	}
	return pl
}

///////////////////////////////////////////////////////////////////////////////

// PlaceMarketOrder submits a market order for the given signed units.  EAGER
// orders match immediately at the current phase price; LAZY orders match on
// the next tick's forward pass.  A failed submission leaves no trace in the
// history or tracer logs.
func (p *Portfolio) PlaceMarketOrder(assetID string, units float64, strategyID string, exec OrderExecutionType, ttl int64) (*Order, error) {
	if !p.h.built {
		return nil, ErrNotBuilt
	}
	if p.h.phase == phaseIdle {
		return nil, ErrWrongPhase
	}
	if units == 0 {
		return nil, ErrZeroUnitOrder
	}
	route, ok := p.h.routes[assetID]
	if !ok {
		return nil, unknownIDError(ErrUnknownAsset, assetID)
	}
	if !route.asset.active() {
		return nil, ErrAssetInactive
	}

	order := &Order{
		orderID:     p.h.nextOrderID(),
		assetID:     assetID,
		units:       units,
		orderType:   OrderType_Market,
		exec:        exec,
		portfolioID: p.portfolioID,
		strategyID:  strategyID,
		exchangeID:  route.exchange.exchangeID,
		brokerID:    route.broker.brokerID,
		state:       OrderState_Pending,
		ttl:         ttl,
	}
	p.h.appendOrderHistory(order)
	p.h.notifyOrderEvent(order, EventType_OrderPlaced)
	if err := route.broker.submit(order); err != nil {
		p.h.dropLastOrderHistory()
		return nil, err
	}
	return order, nil
}

// ClosePosition closes this node's position on the asset by submitting an
// opposing EAGER market order sized to its current units.  Closing an asset
// with no position is a no-op.
func (p *Portfolio) ClosePosition(assetID, strategyID string) error {
	pos, ok := p.positions[assetID]
	if !ok {
		return nil
	}
	_, err := p.PlaceMarketOrder(assetID, -pos.units, strategyID, OrderExecutionType_Eager, UnboundedTTL)
	return err
}

// CloseAllPositions closes every position at this node, in asset-id order.
func (p *Portfolio) CloseAllPositions(strategyID string) error {
	for _, assetID := range p.sortedPositionIDs() {
		if err := p.ClosePosition(assetID, strategyID); err != nil {
			return err
		}
	}
	return nil
}

// OrderTargetSize computes the post-trade units implied by the target and
// submits an order for the difference, unless the difference is within
// epsilon of scale: |target| for UNITS targets, the portfolio NLV for PCT
// targets, and 1 for DOLLARS targets.
func (p *Portfolio) OrderTargetSize(assetID string, target float64, strategyID string, epsilon float64, targetType OrderTargetType, exec OrderExecutionType, ttl int64) error {
	route, ok := p.h.routes[assetID]
	if !ok {
		return unknownIDError(ErrUnknownAsset, assetID)
	}
	price, priced := route.asset.phasePrice(p.h.phase)
	if !priced {
		return ErrAssetInactive
	}

	current := 0.0
	if pos, ok := p.positions[assetID]; ok {
		current = pos.units
	}

	var diffUnits float64
	switch targetType {
	case OrderTargetType_Units:
		if target == 0 {
			diffUnits = -current
		} else {
			if math.Abs(target-current)/math.Abs(target) <= epsilon {
				return nil
			}
			diffUnits = target - current
		}
	case OrderTargetType_Dollars:
		diffDollars := target - current*price
		if math.Abs(diffDollars) <= epsilon {
			return nil
		}
		diffUnits = diffDollars / price
	case OrderTargetType_Pct:
		nlv := p.GetNLV()
		diffDollars := target*nlv - current*price
		if nlv != 0 && math.Abs(diffDollars)/math.Abs(nlv) <= epsilon {
			return nil
		}
		diffUnits = diffDollars / price
	}
	if diffUnits == 0 {
		return nil
	}
	_, err := p.PlaceMarketOrder(assetID, diffUnits, strategyID, exec, ttl)
	return err
}

// OrderTargetAllocations applies OrderTargetSize for each allocation in
// order, then closes every position at this node that the allocations do not
// mention.  All resulting orders share the current tick.
func (p *Portfolio) OrderTargetAllocations(allocations []Allocation, strategyID string, epsilon float64, targetType OrderTargetType) error {
	wanted := make(map[string]bool, len(allocations))
	for _, alloc := range allocations {
		wanted[alloc.AssetID] = true
		err := p.OrderTargetSize(alloc.AssetID, alloc.Target, strategyID, epsilon, targetType, OrderExecutionType_Eager, UnboundedTTL)
		if err != nil {
			return err
		}
	}
	for _, assetID := range p.sortedPositionIDs() {
		if wanted[assetID] {
			continue
		}
		if err := p.ClosePosition(assetID, strategyID); err != nil {
			return err
		}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// AddTracer attaches a tracer.  The VALUE tracer is always present; adding it
// again is a no-op.
func (p *Portfolio) AddTracer(tracerType PortfolioTracerType) error {
	switch tracerType {
	case PortfolioTracerType_Value:
		return nil
	case PortfolioTracerType_Event:
		if p.eventTracer == nil {
			p.eventTracer = &EventTracer{}
		}
		return nil
	default:
		return fmt.Errorf("unknown tracer type %s", tracerType)
	}
}

// GetValueTracer returns the portfolio's value tracer.
func (p *Portfolio) GetValueTracer() *ValueTracer {
	return &p.valueTracer
}

// GetEventTracer returns the portfolio's event tracer, if attached.
func (p *Portfolio) GetEventTracer() (*EventTracer, bool) {
	return p.eventTracer, p.eventTracer != nil
}

// GetNLVHistory returns the per-tick NLV series recorded by the value tracer.
func (p *Portfolio) GetNLVHistory() []float64 {
	return p.valueTracer.GetNLVHistory()
}

// GetCashHistory returns the per-tick cash series recorded by the value tracer.
func (p *Portfolio) GetCashHistory() []float64 {
	return p.valueTracer.GetCashHistory()
}

///////////////////////////////////////////////////////////////////////////////

// applyFill debits this node's cash and folds the trade into the position
// maps of this node and every ancestor, so the upward mirrors never lag a
// fill.
func (p *Portfolio) applyFill(trade *Trade) {
	p.cash -= trade.units * trade.fillPrice
	for node := p; node != nil; node = node.parent {
		node.applyTradeToPosition(trade)
	}
}

func (p *Portfolio) applyTradeToPosition(trade *Trade) {
	pos, ok := p.positions[trade.assetID]
	if !ok {
		pos = newPosition(trade.assetID, p.portfolioID, trade.fillTime)
		p.positions[trade.assetID] = pos
		if p.eventTracer != nil {
			p.eventTracer.append(Event{
				Time:    trade.fillTime,
				Type:    EventType_PositionOpened,
				AssetID: trade.assetID,
				Units:   trade.units,
				Price:   trade.fillPrice,
			})
		}
	}
	if pos.applyFill(trade) {
		pos.close(trade.fillTime)
		delete(p.positions, trade.assetID)
		p.h.appendPositionHistory(pos)
		if p.eventTracer != nil {
			p.eventTracer.append(Event{
				Time:    trade.fillTime,
				Type:    EventType_PositionClosed,
				AssetID: trade.assetID,
				Price:   trade.fillPrice,
			})
		}
	}
}

// evaluate re-computes the subtree aggregates bottom-up and, when record is
// set, appends one sample to each node's value tracer.  Iteration orders are
// fixed (children in creation order, positions in asset-id order) so repeated
// runs produce bit-identical histories.
func (p *Portfolio) evaluate(ts int64, record bool) (aggCash, nlv float64) {
	aggCash = p.cash
	for _, child := range p.children {
		childCash, _ := child.evaluate(ts, record)
		aggCash += childCash
	}

	posValue := 0.0
	for _, assetID := range p.sortedPositionIDs() {
		pos := p.positions[assetID]
		if pos.units == 0 {
			panic(fmt.Errorf("%w: zero-unit position %q at %q", ErrInternalInvariant, assetID, p.portfolioID))
		}
		if mark, ok := p.h.markPrice(assetID); ok {
			pos.mark(mark)
			posValue += pos.units * mark
		}
	}
	nlv = aggCash + posValue
	if record {
		p.valueTracer.append(ts, aggCash, nlv)
	}
	return aggCash, nlv
}

// resetState flushes positions and restores own cash to its build-time value.
func (p *Portfolio) resetState(clearHistory bool) {
	p.cash = p.epochCash
	p.positions = make(map[string]*Position)
	if clearHistory {
		p.valueTracer.clear()
		if p.eventTracer != nil {
			p.eventTracer.clear()
		}
	}
	for _, child := range p.children {
		child.resetState(clearHistory)
	}
}

func (p *Portfolio) sortedPositionIDs() []string {
	ids := make([]string, 0, len(p.positions))
	for id := range p.positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
