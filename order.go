// Copyright (c) 2025 Neomantra Corp

package hydra

// Order is a transient request to trade an asset.  Orders are created by
// Portfolio operations, routed to the broker the asset was registered with,
// and move through the lifecycle PENDING -> OPEN -> FILLED | CANCELLED |
// EXPIRED.  Terminal orders survive only in the order history.
type Order struct {
	orderID     int64
	assetID     string
	units       float64
	orderType   OrderType
	exec        OrderExecutionType
	portfolioID string
	strategyID  string
	exchangeID  string
	brokerID    string

	state      OrderState
	ttl        int64 // ticks since OPEN; UnboundedTTL disables expiry
	openedTick int   // global tick index at which the order became OPEN

	fillPrice float64
	fillTime  int64
	tradeID   int64
}

func (o *Order) OrderID() int64                { return o.orderID }
func (o *Order) AssetID() string               { return o.assetID }
func (o *Order) Units() float64                { return o.units }
func (o *Order) OrderType() OrderType          { return o.orderType }
func (o *Order) Execution() OrderExecutionType { return o.exec }
func (o *Order) PortfolioID() string           { return o.portfolioID }
func (o *Order) StrategyID() string            { return o.strategyID }
func (o *Order) ExchangeID() string            { return o.exchangeID }
func (o *Order) BrokerID() string              { return o.brokerID }
func (o *Order) State() OrderState             { return o.state }
func (o *Order) FillPrice() float64            { return o.fillPrice }
func (o *Order) FillTime() int64               { return o.fillTime }
func (o *Order) TradeID() int64                { return o.tradeID }

// OrderRecord is the flattened history form of an Order.
type OrderRecord struct {
	FillTime     int64   `json:"fill_time"`
	AssetID      string  `json:"asset_id"`
	PortfolioID  string  `json:"portfolio_id"`
	Units        float64 `json:"units"`
	StrategyID   string  `json:"strategy_id"`
	OrderType    string  `json:"order_type"`
	OrderState   string  `json:"order_state"`
	AveragePrice float64 `json:"average_price"`
	OrderID      int64   `json:"order_id"`
	TradeID      int64   `json:"trade_id"`
	ExchangeID   string  `json:"exchange_id"`
	BrokerID     string  `json:"broker_id"`
}

// Record returns the order's history record at its current state.
func (o *Order) Record() OrderRecord {
	return OrderRecord{
		FillTime:     o.fillTime,
		AssetID:      o.assetID,
		PortfolioID:  o.portfolioID,
		Units:        o.units,
		StrategyID:   o.strategyID,
		OrderType:    o.orderType.String(),
		OrderState:   o.state.String(),
		AveragePrice: o.fillPrice,
		OrderID:      o.orderID,
		TradeID:      o.tradeID,
		ExchangeID:   o.exchangeID,
		BrokerID:     o.brokerID,
	}
}
