// Copyright (c) 2025 Neomantra Corp

package hydra

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
)

// assetRoute resolves an asset id to the exchange that prices it and the
// broker that matches it, established at registration.
type assetRoute struct {
	asset    *Asset
	exchange *Exchange
	broker   *Broker
}

// Hydra is the top-level scheduler.  It owns the exchanges, brokers, the
// portfolio tree, the registered strategies, and the global clock merged over
// every exchange's datetime index.
//
// The event loop is single-threaded and strictly cooperative.  One tick runs
//
//	ForwardPass -> strategies.OnOpen -> OnOpen -> strategies.OnClose -> BackwardPass
//
// and strategy callbacks are the only suspension points; whenever one runs,
// positions and cash reflect every fill applied so far on the tick.
type Hydra struct {
	logger zerolog.Logger

	startingCash float64

	exchanges   map[string]*Exchange
	exchangeIDs []string // registration order
	brokers     map[string]*Broker
	brokerIDs   []string // lexicographic, the cross-broker match order

	master     *Portfolio
	portfolios map[string]*Portfolio

	strategies []strategyHandle

	routes  map[string]assetRoute
	index   []int64 // merged clock
	cursor  int
	phase   enginePhase
	built   bool
	candles int

	historyEnabled bool
	orderCounter   int64
	tradeCounter   int64

	orderHistory    []*Order
	tradeHistory    []*Trade
	positionHistory []PositionRecord
}

// NewHydra creates an engine with the given logging level (0 silent, 1 major
// events, 2 per-tick) and the master portfolio's starting cash.
func NewHydra(loggingLevel int, startingCash float64) *Hydra {
	h := &Hydra{
		startingCash:   startingCash,
		exchanges:      make(map[string]*Exchange),
		brokers:        make(map[string]*Broker),
		portfolios:     make(map[string]*Portfolio),
		routes:         make(map[string]assetRoute),
		cursor:         preStartRow,
		historyEnabled: true,
	}
	switch {
	case loggingLevel <= 0:
		h.logger = zerolog.Nop()
	case loggingLevel == 1:
		h.logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	default:
		h.logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	}
	h.master = newPortfolio(MasterPortfolioID, startingCash, nil, h)
	h.portfolios[MasterPortfolioID] = h.master
	return h
}

// SetLogger replaces the engine's logger.
func (h *Hydra) SetLogger(logger zerolog.Logger) {
	h.logger = logger
}

func (h *Hydra) IsBuilt() bool { return h.built }

// SetHistoryEnabled toggles recording of the order/trade/position history
// streams.  Value tracers are unaffected.
func (h *Hydra) SetHistoryEnabled(enabled bool) {
	h.historyEnabled = enabled
}

///////////////////////////////////////////////////////////////////////////////
// Registration

// NewExchange creates and registers an exchange.
func (h *Hydra) NewExchange(exchangeID string) (*Exchange, error) {
	if h.built {
		return nil, ErrAlreadyBuilt
	}
	if _, ok := h.exchanges[exchangeID]; ok {
		return nil, duplicateIDError("exchange", exchangeID)
	}
	exchange := NewExchange(exchangeID)
	h.exchanges[exchangeID] = exchange
	h.exchangeIDs = append(h.exchangeIDs, exchangeID)
	return exchange, nil
}

// NewBroker creates and registers a broker.
func (h *Hydra) NewBroker(brokerID string) (*Broker, error) {
	if h.built {
		return nil, ErrAlreadyBuilt
	}
	if _, ok := h.brokers[brokerID]; ok {
		return nil, duplicateIDError("broker", brokerID)
	}
	broker := newBroker(brokerID, h)
	h.brokers[brokerID] = broker
	h.brokerIDs = append(h.brokerIDs, brokerID)
	return broker, nil
}

// NewPortfolio creates a sub-portfolio of the master, funded from the
// master's cash.
func (h *Hydra) NewPortfolio(portfolioID string, cash float64) (*Portfolio, error) {
	return h.master.CreateSubPortfolio(portfolioID, cash)
}

// GetExchange returns the registered exchange with the given id.
func (h *Hydra) GetExchange(exchangeID string) (*Exchange, error) {
	exchange, ok := h.exchanges[exchangeID]
	if !ok {
		return nil, unknownIDError(ErrUnknownExchange, exchangeID)
	}
	return exchange, nil
}

// GetBroker returns the registered broker with the given id.
func (h *Hydra) GetBroker(brokerID string) (*Broker, error) {
	broker, ok := h.brokers[brokerID]
	if !ok {
		return nil, unknownIDError(ErrUnknownBroker, brokerID)
	}
	return broker, nil
}

// GetPortfolio returns the portfolio with the given id from anywhere in the
// tree.
func (h *Hydra) GetPortfolio(portfolioID string) (*Portfolio, error) {
	portfolio, ok := h.portfolios[portfolioID]
	if !ok {
		return nil, unknownIDError(ErrUnknownPortfolio, portfolioID)
	}
	return portfolio, nil
}

// GetMasterPortfolio returns the root of the portfolio tree.
func (h *Hydra) GetMasterPortfolio() *Portfolio {
	return h.master
}

// PortfolioIDs returns every portfolio id, sorted.
func (h *Hydra) PortfolioIDs() []string {
	ids := make([]string, 0, len(h.portfolios))
	for id := range h.portfolios {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RegisterStrategy registers a strategy under an engine-unique id.  The
// strategy's Build is invoked during Hydra.Build, in registration order.
func (h *Hydra) RegisterStrategy(strategy Strategy, strategyID string) error {
	if h.built {
		return ErrAlreadyBuilt
	}
	if strategy == nil {
		return ErrMissingCallback
	}
	if funcs, ok := strategy.(*StrategyFuncs); ok {
		if funcs.BuildFunc == nil || funcs.OnOpenFunc == nil || funcs.OnCloseFunc == nil {
			return ErrMissingCallback
		}
	}
	for _, handle := range h.strategies {
		if handle.strategyID == strategyID {
			return duplicateIDError("strategy", strategyID)
		}
	}
	h.strategies = append(h.strategies, strategyHandle{strategyID: strategyID, strategy: strategy})
	return nil
}

// Build freezes registration, computes the merged clock and the asset routing
// table, snapshots per-portfolio cash for Reset, and invokes every strategy's
// Build callback.  Building twice is an error.
func (h *Hydra) Build() error {
	if h.built {
		return ErrAlreadyBuilt
	}

	indexes := make([][]int64, 0, len(h.exchangeIDs))
	for _, exchangeID := range h.exchangeIDs {
		exchange := h.exchanges[exchangeID]
		if !exchange.IsBuilt() {
			if err := exchange.Build(); err != nil {
				return err
			}
		}
		indexes = append(indexes, exchange.index)
	}
	h.index = mergeTimestamps(indexes...)

	h.routes = make(map[string]assetRoute)
	h.candles = 0
	for _, exchangeID := range h.exchangeIDs {
		exchange := h.exchanges[exchangeID]
		for _, assetID := range exchange.assetIDs {
			asset := exchange.assets[assetID]
			if _, dup := h.routes[assetID]; dup {
				return duplicateIDError("asset", assetID)
			}
			broker, ok := h.brokers[asset.brokerID]
			if !ok {
				return unknownIDError(ErrUnknownBroker, asset.brokerID)
			}
			h.routes[assetID] = assetRoute{asset: asset, exchange: exchange, broker: broker}
			h.candles += asset.rows
		}
	}

	sort.Strings(h.brokerIDs)

	for _, portfolio := range h.portfolios {
		portfolio.epochCash = portfolio.cash
	}

	h.built = true
	for _, handle := range h.strategies {
		if err := handle.strategy.Build(); err != nil {
			return fmt.Errorf("strategy %q build: %w", handle.strategyID, err)
		}
	}

	h.logger.Info().
		Int("Exchanges", len(h.exchanges)).
		Int("Brokers", len(h.brokers)).
		Int("Assets", len(h.routes)).
		Int("Ticks", len(h.index)).
		Int("Candles", h.candles).
		Msg("hydra built")
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Clock

// CurrentTime returns the current tick's timestamp, or false before the first
// forward pass.
func (h *Hydra) CurrentTime() (int64, bool) {
	if h.cursor == preStartRow || h.cursor >= len(h.index) {
		return 0, false
	}
	return h.index[h.cursor], true
}

// GetDatetimeIndexView returns the merged clock without copying.  Callers
// must not mutate it.
func (h *Hydra) GetDatetimeIndexView() []int64 {
	return h.index
}

// GetCandles returns the total number of rows loaded across all assets.
func (h *Hydra) GetCandles() int {
	return h.candles
}

// markPrice is the last known CLOSE for the asset, used for valuation.
func (h *Hydra) markPrice(assetID string) (float64, bool) {
	route, ok := h.routes[assetID]
	if !ok {
		return 0, false
	}
	return route.asset.markPrice()
}

func (h *Hydra) nextOrderID() int64 {
	h.orderCounter++
	return h.orderCounter
}

func (h *Hydra) nextTradeID() int64 {
	h.tradeCounter++
	return h.tradeCounter
}

///////////////////////////////////////////////////////////////////////////////
// Event loop

// ForwardPass advances the clock to the next merged tick, syncs every
// exchange and asset cursor, and runs a match cycle for waiting orders at the
// OPEN price.  It returns false when the clock is exhausted, expiring any
// orders still open.
func (h *Hydra) ForwardPass() (bool, error) {
	if !h.built {
		return false, ErrNotBuilt
	}
	if h.cursor+1 >= len(h.index) {
		for _, brokerID := range h.brokerIDs {
			h.brokers[brokerID].expireAll()
		}
		return false, nil
	}
	h.cursor++
	ts := h.index[h.cursor]
	h.phase = phaseOpen
	for _, exchangeID := range h.exchangeIDs {
		h.exchanges[exchangeID].advanceTo(ts)
	}
	for _, brokerID := range h.brokerIDs {
		if err := h.brokers[brokerID].processOpenOrders(phaseOpen); err != nil {
			return false, err
		}
	}
	h.logger.Debug().Int64("Tick", ts).Int("TickIndex", h.cursor).Msg("forward pass")
	return true, nil
}

// OnOpen runs the EAGER match cycle for orders submitted on the current tick
// that are still open (e.g. eager orders whose asset had no price at
// submission).
func (h *Hydra) OnOpen() error {
	for _, brokerID := range h.brokerIDs {
		if err := h.brokers[brokerID].processOpenOrders(phaseOpen); err != nil {
			return err
		}
	}
	return nil
}

// BackwardPass re-evaluates the portfolio tree bottom-up, appends one sample
// to every value tracer, and ends the tick.  It returns true while ticks
// remain on the clock.
func (h *Hydra) BackwardPass() bool {
	ts, ok := h.CurrentTime()
	if !ok {
		return false
	}
	h.master.evaluate(ts, true)
	h.phase = phaseIdle
	return h.cursor+1 < len(h.index)
}

// step processes one full tick.  The returned bool is false when the clock
// was already exhausted and nothing ran.
func (h *Hydra) step(withStrategies bool) (bool, error) {
	ok, err := h.ForwardPass()
	if err != nil || !ok {
		return false, err
	}
	if withStrategies {
		for _, handle := range h.strategies {
			if err := handle.strategy.OnOpen(); err != nil {
				return false, fmt.Errorf("strategy %q on_open: %w", handle.strategyID, err)
			}
		}
	}
	if err := h.OnOpen(); err != nil {
		return false, err
	}
	h.phase = phaseClose
	if withStrategies {
		for _, handle := range h.strategies {
			if err := handle.strategy.OnClose(); err != nil {
				return false, fmt.Errorf("strategy %q on_close: %w", handle.strategyID, err)
			}
		}
	}
	h.BackwardPass()
	return true, nil
}

// Run drives the event loop until the merged clock is exhausted.
func (h *Hydra) Run() error {
	return h.RunUntil(0, 0)
}

// RunUntil drives the event loop until the clock is exhausted, the current
// tick reaches toEpoch (when toEpoch > 0), or steps ticks have been processed
// (when steps > 0) -- whichever comes first.
func (h *Hydra) RunUntil(toEpoch int64, steps int) error {
	if !h.built {
		return ErrNotBuilt
	}
	count := 0
	for {
		processed, err := h.step(true)
		if err != nil {
			return err
		}
		if !processed {
			return nil
		}
		count++
		if ts, ok := h.CurrentTime(); ok && toEpoch > 0 && ts >= toEpoch {
			return nil
		}
		if steps > 0 && count >= steps {
			return nil
		}
	}
}

// GotoDatetime fast-forwards the engine, processing every tick before epoch
// without invoking user strategies.  Order, trade and position histories are
// recorded as normal unless suppressed with SetHistoryEnabled; portfolio
// tracers always record.
func (h *Hydra) GotoDatetime(epoch int64) error {
	if !h.built {
		return ErrNotBuilt
	}
	for h.cursor+1 < len(h.index) && h.index[h.cursor+1] < epoch {
		if _, err := h.step(false); err != nil {
			return err
		}
	}
	return nil
}

// GotoDatetimeString is GotoDatetime with an ISO 8601 datetime or date string.
func (h *Hydra) GotoDatetimeString(str string) error {
	epoch, err := ParseDatetime(str)
	if err != nil {
		return err
	}
	return h.GotoDatetime(epoch)
}

// Reset rewinds the clock to the beginning and flushes open positions and
// orders; assets and tree structure remain.  Histories and tracer logs are
// cleared when clearHistory is set, and registered strategies are dropped
// when clearStrategies is set.
func (h *Hydra) Reset(clearHistory, clearStrategies bool) error {
	if !h.built {
		return ErrNotBuilt
	}
	h.cursor = preStartRow
	h.phase = phaseIdle
	for _, exchangeID := range h.exchangeIDs {
		h.exchanges[exchangeID].rewind()
	}
	for _, brokerID := range h.brokerIDs {
		h.brokers[brokerID].open = nil
	}
	h.master.resetState(clearHistory)
	h.orderCounter, h.tradeCounter = 0, 0
	if clearHistory {
		h.orderHistory = nil
		h.tradeHistory = nil
		h.positionHistory = nil
	}
	if clearStrategies {
		h.strategies = nil
	}
	h.logger.Info().Bool("ClearHistory", clearHistory).Bool("ClearStrategies", clearStrategies).Msg("hydra reset")
	return nil
}

// Replay resets the engine (clearing histories, keeping strategies) and runs
// again.  A replay is deterministic: every portfolio's NLV history is
// identical between two successive replays.
func (h *Hydra) Replay() error {
	if err := h.Reset(true, false); err != nil {
		return err
	}
	return h.Run()
}

///////////////////////////////////////////////////////////////////////////////
// History

func (h *Hydra) appendOrderHistory(order *Order) {
	if h.historyEnabled {
		h.orderHistory = append(h.orderHistory, order)
	}
}

func (h *Hydra) dropLastOrderHistory() {
	if n := len(h.orderHistory); h.historyEnabled && n > 0 {
		h.orderHistory = h.orderHistory[:n-1]
	}
}

func (h *Hydra) appendTradeHistory(trade *Trade) {
	if h.historyEnabled {
		h.tradeHistory = append(h.tradeHistory, trade)
	}
}

func (h *Hydra) appendPositionHistory(pos *Position) {
	if h.historyEnabled {
		h.positionHistory = append(h.positionHistory, pos.Record())
	}
}

func (h *Hydra) notifyOrderEvent(order *Order, eventType EventType) {
	portfolio, ok := h.portfolios[order.portfolioID]
	if !ok || portfolio.eventTracer == nil {
		return
	}
	ts, _ := h.CurrentTime()
	portfolio.eventTracer.append(Event{
		Time:    ts,
		Type:    eventType,
		AssetID: order.assetID,
		OrderID: order.orderID,
		Units:   order.units,
		Price:   order.fillPrice,
	})
}

// GetOrderHistory returns the order record stream, strictly increasing in
// order id.
func (h *Hydra) GetOrderHistory() []OrderRecord {
	records := make([]OrderRecord, 0, len(h.orderHistory))
	for _, order := range h.orderHistory {
		records = append(records, order.Record())
	}
	return records
}

// GetTradeHistory returns the trade record stream in fill order.
func (h *Hydra) GetTradeHistory() []TradeRecord {
	records := make([]TradeRecord, 0, len(h.tradeHistory))
	for _, trade := range h.tradeHistory {
		records = append(records, trade.Record())
	}
	return records
}

// GetPositionHistory returns a record for every position closed so far.
func (h *Hydra) GetPositionHistory() []PositionRecord {
	return append([]PositionRecord(nil), h.positionHistory...)
}

// VisitHistory streams every history record through the visitor: orders,
// trades, closed positions, then each portfolio's value series in portfolio-id
// order, then OnStreamEnd.
func (h *Hydra) VisitHistory(visitor Visitor) error {
	for _, order := range h.orderHistory {
		if err := visitor.OnOrder(order.Record()); err != nil {
			return err
		}
	}
	for _, trade := range h.tradeHistory {
		if err := visitor.OnTrade(trade.Record()); err != nil {
			return err
		}
	}
	for _, record := range h.positionHistory {
		if err := visitor.OnPosition(record); err != nil {
			return err
		}
	}
	for _, portfolioID := range h.PortfolioIDs() {
		portfolio := h.portfolios[portfolioID]
		tracer := portfolio.GetValueTracer()
		times, cash, nlv := tracer.GetTimeHistory(), tracer.GetCashHistory(), tracer.GetNLVHistory()
		for i := range times {
			record := ValueRecord{
				PortfolioID: portfolioID,
				Time:        times[i],
				Cash:        cash[i],
				NLV:         nlv[i],
			}
			if err := visitor.OnValue(record); err != nil {
				return err
			}
		}
	}
	return visitor.OnStreamEnd()
}
