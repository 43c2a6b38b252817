// Copyright (c) 2025 Neomantra Corp

package main

import (
	"github.com/NimbleMarkets/hydra-go"
	"gonum.org/v1/gonum/stat"
)

// SmaCrossStrategy holds an equal-weight basket of the assets whose fast
// moving average is above their slow moving average, rebalanced on every
// close.
type SmaCrossStrategy struct {
	engine     *hydra.Hydra
	exchangeID string
	fast, slow int
	maxHold    int

	exchange  *hydra.Exchange
	portfolio *hydra.Portfolio
	closes    map[string][]float64 // rolling CLOSE window per asset
}

func NewSmaCrossStrategy(engine *hydra.Hydra, exchangeID string, fast, slow, maxHold int) *SmaCrossStrategy {
	return &SmaCrossStrategy{
		engine:     engine,
		exchangeID: exchangeID,
		fast:       fast,
		slow:       slow,
		maxHold:    maxHold,
		closes:     make(map[string][]float64),
	}
}

func (s *SmaCrossStrategy) Build() error {
	exchange, err := s.engine.GetExchange(s.exchangeID)
	if err != nil {
		return err
	}
	s.exchange = exchange
	s.portfolio = s.engine.GetMasterPortfolio()
	return nil
}

func (s *SmaCrossStrategy) OnOpen() error {
	return nil
}

func (s *SmaCrossStrategy) OnClose() error {
	values, err := s.exchange.GetExchangeFeature(hydra.ColumnClose, hydra.ExchangeQueryType_All, 0)
	if err != nil {
		return err
	}

	var longs []string
	for _, av := range values {
		window := append(s.closes[av.AssetID], av.Value)
		if len(window) > s.slow {
			window = window[len(window)-s.slow:]
		}
		s.closes[av.AssetID] = window
		if len(window) < s.slow {
			continue
		}
		fastMA := stat.Mean(window[len(window)-s.fast:], nil)
		slowMA := stat.Mean(window, nil)
		if fastMA > slowMA {
			longs = append(longs, av.AssetID)
		}
	}
	if len(longs) > s.maxHold {
		longs = longs[:s.maxHold]
	}

	allocations := make([]hydra.Allocation, 0, len(longs))
	for _, assetID := range longs {
		allocations = append(allocations, hydra.Allocation{
			AssetID: assetID,
			Target:  1.0 / float64(len(longs)),
		})
	}
	return s.portfolio.OrderTargetAllocations(allocations, "sma-cross", 0.001, hydra.OrderTargetType_Pct)
}
