// Copyright (c) 2025 Neomantra Corp

package hydra

import (
	"container/heap"
	"sort"
)

// AssetValue is one entry of an exchange-wide feature query.
type AssetValue struct {
	AssetID string
	Value   float64
}

// Exchange owns a set of Assets sharing a price discovery venue.  After Build
// it exposes the merged datetime index of its assets and, per tick, advances
// the cursor of every asset whose next timestamp equals the current tick.
//
// Assets are retained by reference: registering an asset never clones it, so
// a handle obtained elsewhere is the same object the Exchange advances.
type Exchange struct {
	exchangeID string

	assets   map[string]*Asset
	assetIDs []string // registration order, the iteration order for queries

	index  []int64 // merged datetime index, built once
	cursor int     // preStartRow until the first forward pass
	built  bool

	queue tickQueue // next pending timestamp per asset
}

// NewExchange creates an empty Exchange.
func NewExchange(exchangeID string) *Exchange {
	return &Exchange{
		exchangeID: exchangeID,
		assets:     make(map[string]*Asset),
		cursor:     preStartRow,
	}
}

func (e *Exchange) ExchangeID() string { return e.exchangeID }
func (e *Exchange) IsBuilt() bool      { return e.built }

// RegisterAsset adds an asset to the exchange.  Registration closes at Build;
// duplicate ids and duplicate identities are rejected.
func (e *Exchange) RegisterAsset(asset *Asset) error {
	if e.built {
		return ErrAlreadyBuilt
	}
	if asset.values == nil {
		return ErrNoData
	}
	if _, ok := e.assets[asset.assetID]; ok {
		return duplicateIDError("asset", asset.assetID)
	}
	for _, existing := range e.assets {
		if existing == asset {
			return duplicateIDError("asset identity", asset.assetID)
		}
	}
	e.assets[asset.assetID] = asset
	e.assetIDs = append(e.assetIDs, asset.assetID)
	return nil
}

// Build computes the merged datetime index and freezes registration.  Calling
// Build twice is an error.
func (e *Exchange) Build() error {
	if e.built {
		return ErrAlreadyBuilt
	}
	indexes := make([][]int64, 0, len(e.assetIDs))
	for _, id := range e.assetIDs {
		indexes = append(indexes, e.assets[id].index)
	}
	e.index = mergeTimestamps(indexes...)
	e.built = true
	e.resetQueue()
	return nil
}

// GetDatetimeIndexView returns the merged datetime index without copying.
// Callers must not mutate it.
func (e *Exchange) GetDatetimeIndexView() []int64 {
	return e.index
}

// GetAsset returns the registered asset with the given id.
func (e *Exchange) GetAsset(assetID string) (*Asset, error) {
	asset, ok := e.assets[assetID]
	if !ok {
		return nil, unknownIDError(ErrUnknownAsset, assetID)
	}
	return asset, nil
}

// GetAssetFeature reads a feature from the named asset at its current cursor
// plus rowOffset.  The boolean is false when the asset is not active at the
// current tick ("missing"), which is not an error.
func (e *Exchange) GetAssetFeature(assetID, column string, rowOffset int) (float64, bool, error) {
	asset, ok := e.assets[assetID]
	if !ok {
		return 0, false, unknownIDError(ErrUnknownAsset, assetID)
	}
	if !asset.active() {
		return 0, false, nil
	}
	value, err := asset.Get(column, rowOffset)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// GetExchangeFeature returns the named column for active assets, filtered by
// the query type.  ALL returns every active asset in registration order;
// NSMALLEST and NLARGEST return the n assets ranked by value, ties broken by
// asset-id lexicographic order.
func (e *Exchange) GetExchangeFeature(column string, queryType ExchangeQueryType, n int) ([]AssetValue, error) {
	known := false
	values := make([]AssetValue, 0, len(e.assetIDs))
	for _, id := range e.assetIDs {
		asset := e.assets[id]
		col, ok := asset.columns[column]
		if !ok {
			continue
		}
		known = true
		if !asset.active() {
			continue
		}
		values = append(values, AssetValue{AssetID: id, Value: asset.at(asset.current, col)})
	}
	if !known {
		return nil, unknownColumnError("*", column)
	}
	switch queryType {
	case ExchangeQueryType_All:
		return values, nil
	case ExchangeQueryType_NSmallest:
		sort.SliceStable(values, func(i, j int) bool {
			if values[i].Value != values[j].Value {
				return values[i].Value < values[j].Value
			}
			return values[i].AssetID < values[j].AssetID
		})
	case ExchangeQueryType_NLargest:
		sort.SliceStable(values, func(i, j int) bool {
			if values[i].Value != values[j].Value {
				return values[i].Value > values[j].Value
			}
			return values[i].AssetID < values[j].AssetID
		})
	}
	if n < len(values) {
		values = values[:n]
	}
	return values, nil
}

// currentTick returns the exchange's current tick timestamp, or false before
// the first forward pass.
func (e *Exchange) currentTick() (int64, bool) {
	if e.cursor == preStartRow || e.cursor >= len(e.index) {
		return 0, false
	}
	return e.index[e.cursor], true
}

// advanceTo moves the exchange cursor forward so its current tick equals ts,
// syncing the cursor of every asset that ticks along the way.  Exchanges
// whose index does not contain ts simply stay behind.
func (e *Exchange) advanceTo(ts int64) {
	for e.cursor+1 < len(e.index) && e.index[e.cursor+1] <= ts {
		e.cursor++
		tick := e.index[e.cursor]
		for len(e.queue) > 0 && e.queue[0].ts == tick {
			asset := e.queue[0].asset
			asset.advance()
			if next, ok := asset.nextTimestamp(); ok {
				e.queue[0].ts = next
				heap.Fix(&e.queue, 0)
			} else {
				heap.Pop(&e.queue)
			}
		}
	}
}

// rewind parks the exchange and all its assets back before the first tick.
func (e *Exchange) rewind() {
	e.cursor = preStartRow
	for _, id := range e.assetIDs {
		e.assets[id].rewind()
	}
	e.resetQueue()
}

func (e *Exchange) resetQueue() {
	e.queue = e.queue[:0]
	for _, id := range e.assetIDs {
		asset := e.assets[id]
		if next, ok := asset.nextTimestamp(); ok {
			e.queue = append(e.queue, assetTick{ts: next, asset: asset})
		}
	}
	heap.Init(&e.queue)
}

///////////////////////////////////////////////////////////////////////////////

// tickQueue is a min-heap of the next pending timestamp per asset, so a
// forward pass touches only the assets that tick at t.
type assetTick struct {
	ts    int64
	asset *Asset
}

type tickQueue []assetTick

func (q tickQueue) Len() int { return len(q) }

func (q tickQueue) Less(i, j int) bool {
	if q[i].ts != q[j].ts {
		return q[i].ts < q[j].ts
	}
	return q[i].asset.assetID < q[j].asset.assetID
}

func (q tickQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *tickQueue) Push(x any) { *q = append(*q, x.(assetTick)) }

func (q *tickQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
