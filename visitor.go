// Copyright (c) 2025 Neomantra Corp

package hydra

// ValueRecord is one portfolio valuation sample, as streamed by VisitHistory.
type ValueRecord struct {
	PortfolioID string  `json:"portfolio_id"`
	Time        int64   `json:"time"`
	Cash        float64 `json:"cash"`
	NLV         float64 `json:"nlv"`
}

// Visitor receives the engine's history record streams from
// Hydra.VisitHistory.
type Visitor interface {
	OnOrder(record OrderRecord) error
	OnTrade(record TradeRecord) error
	OnPosition(record PositionRecord) error
	OnValue(record ValueRecord) error

	OnStreamEnd() error
}
