// Copyright (c) 2025 Neomantra Corp

package hydra

import "math"

// Trade is an atomic fill event.  The same Trade object is shared between the
// originating portfolio's Position and every ancestor mirror.
type Trade struct {
	tradeID     int64
	strategyID  string
	assetID     string
	portfolioID string
	units       float64
	fillPrice   float64
	fillTime    int64
	exchangeID  string
	brokerID    string
}

func (t *Trade) TradeID() int64      { return t.tradeID }
func (t *Trade) StrategyID() string  { return t.strategyID }
func (t *Trade) AssetID() string     { return t.assetID }
func (t *Trade) PortfolioID() string { return t.portfolioID }
func (t *Trade) Units() float64      { return t.units }
func (t *Trade) FillPrice() float64  { return t.fillPrice }
func (t *Trade) FillTime() int64     { return t.fillTime }
func (t *Trade) ExchangeID() string  { return t.exchangeID }
func (t *Trade) BrokerID() string    { return t.brokerID }

// TradeRecord is the flattened history form of a Trade.
type TradeRecord struct {
	TradeID     int64   `json:"trade_id"`
	StrategyID  string  `json:"strategy_id"`
	AssetID     string  `json:"asset_id"`
	PortfolioID string  `json:"portfolio_id"`
	Units       float64 `json:"units"`
	FillPrice   float64 `json:"fill_price"`
	FillTime    int64   `json:"fill_time"`
	ExchangeID  string  `json:"exchange_id"`
	BrokerID    string  `json:"broker_id"`
}

// Record returns the trade's history record.
func (t *Trade) Record() TradeRecord {
	return TradeRecord{
		TradeID:     t.tradeID,
		StrategyID:  t.strategyID,
		AssetID:     t.assetID,
		PortfolioID: t.portfolioID,
		Units:       t.units,
		FillPrice:   t.fillPrice,
		FillTime:    t.fillTime,
		ExchangeID:  t.exchangeID,
		BrokerID:    t.brokerID,
	}
}

///////////////////////////////////////////////////////////////////////////////

// Position is a signed holding of one asset inside one Portfolio.  A Position
// exists only while its units are non-zero; reaching exactly zero closes it
// and removes it from the portfolio's positions map.
//
// Ancestor portfolios hold mirror Positions whose units are the sum of their
// descendants' units and whose average price is the size-weighted mean.  The
// mirrors are maintained incrementally by applying every fill at each level.
type Position struct {
	assetID      string
	portfolioID  string
	units        float64
	averagePrice float64
	realizedPL   float64
	unrealizedPL float64
	isOpen       bool
	trades       []*Trade
	openedTime   int64
	closedTime   int64 // valid only once closed
}

func newPosition(assetID, portfolioID string, openedTime int64) *Position {
	return &Position{
		assetID:     assetID,
		portfolioID: portfolioID,
		isOpen:      true,
		openedTime:  openedTime,
	}
}

func (p *Position) AssetID() string       { return p.assetID }
func (p *Position) PortfolioID() string   { return p.portfolioID }
func (p *Position) Units() float64        { return p.units }
func (p *Position) AveragePrice() float64 { return p.averagePrice }
func (p *Position) RealizedPL() float64   { return p.realizedPL }
func (p *Position) IsOpen() bool          { return p.isOpen }
func (p *Position) OpenedTime() int64     { return p.openedTime }
func (p *Position) ClosedTime() int64     { return p.closedTime }
func (p *Position) NumTrades() int        { return len(p.trades) }

// GetTrade returns the i-th trade applied to this position.
func (p *Position) GetTrade(i int) (*Trade, bool) {
	if i < 0 || i >= len(p.trades) {
		return nil, false
	}
	return p.trades[i], true
}

// GetUnrealizedPL returns units * (mark - average price) as of the last
// valuation pass.
func (p *Position) GetUnrealizedPL() float64 {
	return p.unrealizedPL
}

// applyFill folds a trade into the position using size-weighted average cost.
// Fills in the direction of the position move the average; opposing fills
// realize P/L against it and, past zero, restart the average at the fill
// price.  Returns true when the position's units reach exactly zero.
func (p *Position) applyFill(trade *Trade) bool {
	u0, a0 := p.units, p.averagePrice
	u1, a1 := trade.units, trade.fillPrice
	p.trades = append(p.trades, trade)

	if u0 == 0 || math.Signbit(u0) == math.Signbit(u1) {
		p.units = u0 + u1
		p.averagePrice = (u0*a0 + u1*a1) / p.units
		return false
	}

	closed := math.Min(math.Abs(u0), math.Abs(u1))
	sign := 1.0
	if u0 < 0 {
		sign = -1.0
	}
	p.realizedPL += closed * (a1 - a0) * sign
	p.units = u0 + u1
	switch {
	case p.units == 0:
		p.averagePrice = 0
		return true
	case math.Signbit(p.units) != math.Signbit(u0):
		// Flipped past zero: the surviving units were bought at the fill.
		p.averagePrice = a1
	}
	return false
}

func (p *Position) close(closedTime int64) {
	p.isOpen = false
	p.closedTime = closedTime
}

// mark updates the cached unrealized P/L against a mark price.
func (p *Position) mark(price float64) {
	p.unrealizedPL = p.units * (price - p.averagePrice)
}

// PositionRecord is the flattened history form of a Position.
type PositionRecord struct {
	AssetID      string  `json:"asset_id"`
	PortfolioID  string  `json:"portfolio_id"`
	Units        float64 `json:"units"`
	AveragePrice float64 `json:"average_price"`
	RealizedPL   float64 `json:"realized_pl"`
	OpenedTime   int64   `json:"opened_time"`
	ClosedTime   int64   `json:"closed_time"`
	NumTrades    int     `json:"num_trades"`
}

// Record returns the position's history record at its current state.
func (p *Position) Record() PositionRecord {
	return PositionRecord{
		AssetID:      p.assetID,
		PortfolioID:  p.portfolioID,
		Units:        p.units,
		AveragePrice: p.averagePrice,
		RealizedPL:   p.realizedPL,
		OpenedTime:   p.openedTime,
		ClosedTime:   p.closedTime,
		NumTrades:    len(p.trades),
	}
}
