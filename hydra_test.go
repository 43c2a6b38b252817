// Copyright (c) 2025 Neomantra Corp

package hydra_test

import (
	"fmt"
	"math"

	"github.com/NimbleMarkets/hydra-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/stat"
)

// meanReversionStrategy buys 100 units of asset_id2 when its CLOSE is at or
// below 97 and closes the position when the CLOSE is at or above 101.5.
type meanReversionStrategy struct {
	h         *hydra.Hydra
	exchange  *hydra.Exchange
	portfolio *hydra.Portfolio

	portfolioID string
}

func (s *meanReversionStrategy) Build() error {
	exchange, err := s.h.GetExchange(testExchangeID)
	if err != nil {
		return err
	}
	portfolio, err := s.h.GetPortfolio(s.portfolioID)
	if err != nil {
		return err
	}
	s.exchange, s.portfolio = exchange, portfolio
	return nil
}

func (s *meanReversionStrategy) OnOpen() error { return nil }

func (s *meanReversionStrategy) OnClose() error {
	closePx, present, err := s.exchange.GetAssetFeature(test2AssetID, "CLOSE", 0)
	if err != nil || !present {
		return err
	}
	_, held := s.portfolio.GetPosition(test2AssetID)
	switch {
	case held && closePx >= 101.5:
		return s.portfolio.ClosePosition(test2AssetID, "mean_reversion")
	case !held && closePx <= 97:
		_, err := s.portfolio.PlaceMarketOrder(test2AssetID, 100, "mean_reversion", hydra.OrderExecutionType_Eager, hydra.UnboundedTTL)
		return err
	}
	return nil
}

var _ = Describe("Hydra", func() {
	Context("construction", func() {
		It("should error when built twice or run unbuilt", func() {
			h, err := createSimpleHydra(0, 0)
			Expect(err).To(BeNil())

			Expect(h.Run()).To(MatchError(hydra.ErrNotBuilt))
			Expect(h.Build()).To(BeNil())
			Expect(h.Build()).To(MatchError(hydra.ErrAlreadyBuilt))
		})

		It("should validate strategy registration", func() {
			h, err := createSimpleHydra(0, 0)
			Expect(err).To(BeNil())

			err = h.RegisterStrategy(nil, "s1")
			Expect(err).To(MatchError(hydra.ErrMissingCallback))

			err = h.RegisterStrategy(&hydra.StrategyFuncs{
				BuildFunc:  func() error { return nil },
				OnOpenFunc: func() error { return nil },
			}, "s1")
			Expect(err).To(MatchError(hydra.ErrMissingCallback))

			full := &hydra.StrategyFuncs{
				BuildFunc:   func() error { return nil },
				OnOpenFunc:  func() error { return nil },
				OnCloseFunc: func() error { return nil },
			}
			Expect(h.RegisterStrategy(full, "s1")).To(BeNil())
			Expect(h.RegisterStrategy(full, "s1")).To(MatchError(hydra.ErrDuplicateID))
		})

		It("should look up components by id", func() {
			h, err := createSimpleHydra(0, 0)
			Expect(err).To(BeNil())

			_, err = h.GetExchange("nope")
			Expect(err).To(MatchError(hydra.ErrUnknownExchange))
			_, err = h.GetBroker("nope")
			Expect(err).To(MatchError(hydra.ErrUnknownBroker))
			_, err = h.GetPortfolio("nope")
			Expect(err).To(MatchError(hydra.ErrUnknownPortfolio))

			Expect(h.GetCandles()).To(Equal(0))
			Expect(h.Build()).To(BeNil())
			Expect(h.GetCandles()).To(Equal(10))
		})
	})

	Context("an empty run", func() {
		It("should record one flat sample per merged tick", func() {
			h, err := createSimpleHydra(0, 0)
			Expect(err).To(BeNil())
			Expect(h.Build()).To(BeNil())
			Expect(h.Run()).To(BeNil())

			master := h.GetMasterPortfolio()
			Expect(master.GetNLVHistory()).To(Equal([]float64{0, 0, 0, 0, 0, 0}))
			Expect(master.GetCashHistory()).To(Equal([]float64{0, 0, 0, 0, 0, 0}))
		})
	})

	Context("strategy callbacks", func() {
		It("should invoke on_open once per tick", func() {
			h, err := createSimpleHydra(0, 0)
			Expect(err).To(BeNil())

			opens, closes, builds := 0, 0, 0
			err = h.RegisterStrategy(&hydra.StrategyFuncs{
				BuildFunc:   func() error { builds++; return nil },
				OnOpenFunc:  func() error { opens++; return nil },
				OnCloseFunc: func() error { closes++; return nil },
			}, "counter")
			Expect(err).To(BeNil())

			Expect(h.Build()).To(BeNil())
			Expect(h.Run()).To(BeNil())

			Expect(builds).To(Equal(1))
			Expect(opens).To(Equal(6))
			Expect(closes).To(Equal(6))
		})
	})

	Context("a mean-reversion strategy", func() {
		It("should reproduce the reference cash and NLV histories", func() {
			h, err := createSimpleHydra(0, 100000)
			Expect(err).To(BeNil())
			_, err = h.NewPortfolio("test_portfolio1", 100000)
			Expect(err).To(BeNil())

			strategy := &meanReversionStrategy{h: h, portfolioID: "test_portfolio1"}
			Expect(h.RegisterStrategy(strategy, "mean_reversion")).To(BeNil())

			Expect(h.Build()).To(BeNil())
			Expect(h.Run()).To(BeNil())

			wantCash := []float64{100000, 100000, 90300, 100450, 100450, 90850}
			wantNLV := []float64{100000, 100000, 100000, 100450, 100450, 100450}

			master := h.GetMasterPortfolio()
			portfolio1, err := h.GetPortfolio("test_portfolio1")
			Expect(err).To(BeNil())

			Expect(master.GetCashHistory()).To(Equal(wantCash))
			Expect(master.GetNLVHistory()).To(Equal(wantNLV))
			Expect(portfolio1.GetCashHistory()).To(Equal(wantCash))
			Expect(portfolio1.GetNLVHistory()).To(Equal(wantNLV))

			// order ids are strictly increasing in the history
			records := h.GetOrderHistory()
			Expect(len(records)).To(Equal(3))
			for i := 1; i < len(records); i++ {
				Expect(records[i].OrderID).To(BeNumerically(">", records[i-1].OrderID))
			}
		})
	})

	Context("goto_datetime", func() {
		It("should fast-forward without strategies and keep valuations consistent", func() {
			h, err := createSimpleHydra(0, 100000)
			Expect(err).To(BeNil())
			portfolio1, err := h.NewPortfolio("test_portfolio1", 100000)
			Expect(err).To(BeNil())
			Expect(h.Build()).To(BeNil())

			Expect(h.GotoDatetimeString("2000-06-07")).To(BeNil())

			ok, err := h.ForwardPass()
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())

			order, err := portfolio1.PlaceMarketOrder(test2AssetID, 100, "goto", hydra.OrderExecutionType_Eager, hydra.UnboundedTTL)
			Expect(err).To(BeNil())
			Expect(order.FillPrice()).To(Equal(98.0))

			Expect(h.OnOpen()).To(BeNil())

			exchange, err := h.GetExchange(testExchangeID)
			Expect(err).To(BeNil())
			closePx2, present, err := exchange.GetAssetFeature(test2AssetID, "CLOSE", 0)
			Expect(err).To(BeNil())
			Expect(present).To(BeTrue())
			Expect(closePx2).To(Equal(97.0))
			closePx1, present, err := exchange.GetAssetFeature(test1AssetID, "CLOSE", 0)
			Expect(err).To(BeNil())
			Expect(present).To(BeTrue())
			Expect(closePx1).To(Equal(103.0))

			h.BackwardPass()
			Expect(h.Run()).To(BeNil())

			master := h.GetMasterPortfolio()
			pos, ok := master.GetPosition(test2AssetID)
			Expect(ok).To(BeTrue())
			Expect(pos.GetUnrealizedPL()).To(Equal(-200.0))

			nlvHistory := master.GetNLVHistory()
			Expect(nlvHistory).To(HaveLen(6))
			Expect(nlvHistory[:2]).To(Equal([]float64{100000, 100000}))
			Expect(nlvHistory[2:]).To(Equal([]float64{99900, 100350, 100350, 99800}))
		})
	})

	Context("target allocations", func() {
		It("should hold the tree's NLV equations through a sign flip", func() {
			h, err := createSimpleHydra(0, 200000)
			Expect(err).To(BeNil())
			portfolio1, err := h.NewPortfolio("p1", 100000)
			Expect(err).To(BeNil())
			portfolio2, err := h.NewPortfolio("p2", 100000)
			Expect(err).To(BeNil())

			tick := 0
			err = h.RegisterStrategy(&hydra.StrategyFuncs{
				BuildFunc:  func() error { return nil },
				OnOpenFunc: func() error { return nil },
				OnCloseFunc: func() error {
					tick++
					switch tick {
					case 2:
						return portfolio1.OrderTargetAllocations([]hydra.Allocation{
							{AssetID: test1AssetID, Target: 100},
							{AssetID: test2AssetID, Target: -100},
						}, "flip", 0, hydra.OrderTargetType_Units)
					case 3:
						return portfolio1.OrderTargetAllocations([]hydra.Allocation{
							{AssetID: test1AssetID, Target: -100},
							{AssetID: test2AssetID, Target: 100},
						}, "flip", 0, hydra.OrderTargetType_Units)
					}
					return nil
				},
			}, "flip")
			Expect(err).To(BeNil())

			Expect(h.Build()).To(BeNil())
			Expect(h.Run()).To(BeNil())

			// fills at the 2000-06-07 CLOSE prices, flipping both signs
			pos1, ok := portfolio1.GetPosition(test1AssetID)
			Expect(ok).To(BeTrue())
			Expect(pos1.Units()).To(Equal(-100.0))
			Expect(pos1.AveragePrice()).To(Equal(103.0))
			pos2, ok := portfolio1.GetPosition(test2AssetID)
			Expect(ok).To(BeTrue())
			Expect(pos2.Units()).To(Equal(100.0))
			Expect(pos2.AveragePrice()).To(Equal(97.0))

			master := h.GetMasterPortfolio()
			masterNLV := master.GetNLVHistory()
			p1NLV := portfolio1.GetNLVHistory()
			p2NLV := portfolio2.GetNLVHistory()
			masterCash := master.GetCashHistory()
			p1Cash := portfolio1.GetCashHistory()
			p2Cash := portfolio2.GetCashHistory()
			for i := range masterNLV {
				Expect(masterNLV[i]).To(BeNumerically("~", p1NLV[i]+p2NLV[i], 1e-9))
				Expect(masterCash[i]).To(BeNumerically("~", p1Cash[i]+p2Cash[i], 1e-9))
			}
		})
	})

	Context("reset and replay", func() {
		It("should reproduce identical histories after reset", func() {
			h, err := createSimpleHydra(0, 100000)
			Expect(err).To(BeNil())
			_, err = h.NewPortfolio("test_portfolio1", 100000)
			Expect(err).To(BeNil())

			strategy := &meanReversionStrategy{h: h, portfolioID: "test_portfolio1"}
			Expect(h.RegisterStrategy(strategy, "mean_reversion")).To(BeNil())
			Expect(h.Build()).To(BeNil())
			Expect(h.Run()).To(BeNil())

			master := h.GetMasterPortfolio()
			firstNLV := append([]float64(nil), master.GetNLVHistory()...)
			firstCash := append([]float64(nil), master.GetCashHistory()...)
			firstOrders := h.GetOrderHistory()

			Expect(h.Reset(true, false)).To(BeNil())
			Expect(master.GetNLVHistory()).To(BeEmpty())
			Expect(master.NumPositions()).To(Equal(0))
			Expect(h.GetOrderHistory()).To(BeEmpty())

			Expect(h.Run()).To(BeNil())
			Expect(master.GetNLVHistory()).To(Equal(firstNLV))
			Expect(master.GetCashHistory()).To(Equal(firstCash))
			Expect(h.GetOrderHistory()).To(Equal(firstOrders))
		})

		It("should replay a moving-average backtest deterministically", func() {
			const (
				numAssets = 60
				numTicks  = 120
				slow      = 20
				fast      = 5
			)

			h := hydra.NewHydra(0, 1000000)
			_, err := h.NewBroker(testBrokerID)
			Expect(err).To(BeNil())
			exchange, err := h.NewExchange(testExchangeID)
			Expect(err).To(BeNil())

			baseEpoch := epochOf("2000-01-03")
			day := int64(24 * 60 * 60 * 1e9)
			for a := 0; a < numAssets; a++ {
				values := make([]float64, 0, 2*numTicks)
				timestamps := make([]int64, 0, numTicks)
				for i := 0; i < numTicks; i++ {
					open := 100.0 + 10.0*math.Sin(float64(i)/7.0+float64(a)) + 0.1*float64(a)
					closePx := open + 2.0*math.Sin(float64(i)/3.0+float64(a)*2.0)
					values = append(values, open, closePx)
					timestamps = append(timestamps, baseEpoch+int64(i)*day)
				}
				asset := hydra.NewAsset(fmt.Sprintf("asset_%03d", a), testExchangeID, testBrokerID, 0)
				Expect(asset.LoadHeaders([]string{"OPEN", "CLOSE"})).To(BeNil())
				Expect(asset.LoadData(values, timestamps, numTicks, 2, false)).To(BeNil())
				Expect(exchange.RegisterAsset(asset)).To(BeNil())
			}

			closes := make(map[string][]float64)
			master := h.GetMasterPortfolio()
			err = h.RegisterStrategy(&hydra.StrategyFuncs{
				BuildFunc:  func() error { return nil },
				OnOpenFunc: func() error { return nil },
				OnCloseFunc: func() error {
					values, err := exchange.GetExchangeFeature("CLOSE", hydra.ExchangeQueryType_All, 0)
					if err != nil {
						return err
					}
					var longs []string
					for _, av := range values {
						window := append(closes[av.AssetID], av.Value)
						if len(window) > slow {
							window = window[len(window)-slow:]
						}
						closes[av.AssetID] = window
						if len(window) < slow {
							continue
						}
						if stat.Mean(window[len(window)-fast:], nil) > stat.Mean(window, nil) {
							longs = append(longs, av.AssetID)
						}
					}
					allocations := make([]hydra.Allocation, 0, len(longs))
					for _, assetID := range longs {
						allocations = append(allocations, hydra.Allocation{AssetID: assetID, Target: 1.0 / float64(len(longs))})
					}
					return master.OrderTargetAllocations(allocations, "sma", 0.001, hydra.OrderTargetType_Pct)
				},
			}, "sma")
			Expect(err).To(BeNil())

			Expect(h.Build()).To(BeNil())
			Expect(h.Run()).To(BeNil())

			firstNLV := append([]float64(nil), master.GetNLVHistory()...)
			Expect(firstNLV).To(HaveLen(numTicks))
			finalNLV := firstNLV[numTicks-1]

			clear(closes)
			Expect(h.Replay()).To(BeNil())

			replayNLV := master.GetNLVHistory()
			Expect(replayNLV[numTicks-1]).To(Equal(finalNLV))
			Expect(replayNLV).To(Equal(firstNLV))
		})
	})
})
