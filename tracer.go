// Copyright (c) 2025 Neomantra Corp

package hydra

// ValueTracer records one (cash, nlv) sample per tick during the backward
// pass.  Every Portfolio carries one; histories are aligned 1:1 with the
// ticks processed since the last reset that cleared history.
type ValueTracer struct {
	times []int64
	cash  []float64
	nlv   []float64
}

// GetNLVHistory returns the recorded net liquidation values, one per tick.
func (t *ValueTracer) GetNLVHistory() []float64 {
	return t.nlv
}

// GetCashHistory returns the recorded cash values, one per tick.
func (t *ValueTracer) GetCashHistory() []float64 {
	return t.cash
}

// GetTimeHistory returns the tick timestamps of the recorded samples.
func (t *ValueTracer) GetTimeHistory() []int64 {
	return t.times
}

func (t *ValueTracer) append(ts int64, cash, nlv float64) {
	t.times = append(t.times, ts)
	t.cash = append(t.cash, cash)
	t.nlv = append(t.nlv, nlv)
}

func (t *ValueTracer) clear() {
	t.times = t.times[:0]
	t.cash = t.cash[:0]
	t.nlv = t.nlv[:0]
}

///////////////////////////////////////////////////////////////////////////////

// EventType tags an EventTracer entry.
type EventType uint8

const (
	EventType_OrderPlaced    EventType = 0
	EventType_OrderFilled    EventType = 1
	EventType_OrderCancelled EventType = 2
	EventType_OrderExpired   EventType = 3
	EventType_PositionOpened EventType = 4
	EventType_PositionClosed EventType = 5
)

func (e EventType) String() string {
	switch e {
	case EventType_OrderPlaced:
		return "ORDER_PLACED"
	case EventType_OrderFilled:
		return "ORDER_FILLED"
	case EventType_OrderCancelled:
		return "ORDER_CANCELLED"
	case EventType_OrderExpired:
		return "ORDER_EXPIRED"
	case EventType_PositionOpened:
		return "POSITION_OPENED"
	case EventType_PositionClosed:
		return "POSITION_CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Event is one state-changing entry in an EventTracer log.
type Event struct {
	Time    int64     `json:"time"`
	Type    EventType `json:"type"`
	AssetID string    `json:"asset_id"`
	OrderID int64     `json:"order_id"`
	Units   float64   `json:"units"`
	Price   float64   `json:"price"`
}

// EventTracer records an ordered log of state-changing events on a Portfolio.
// Unlike the ValueTracer it must be attached explicitly with AddTracer.
type EventTracer struct {
	events []Event
}

// GetEvents returns the recorded events in order.
func (t *EventTracer) GetEvents() []Event {
	return t.events
}

func (t *EventTracer) append(ev Event) {
	t.events = append(t.events, ev)
}

func (t *EventTracer) clear() {
	t.events = t.events[:0]
}
