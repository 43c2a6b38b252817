// Copyright (c) 2025 Neomantra Corp

package hydra

// NullVisitor is a Visitor that does nothing.  Embed it to implement only the
// callbacks you care about.
type NullVisitor struct{}

func (NullVisitor) OnOrder(record OrderRecord) error       { return nil }
func (NullVisitor) OnTrade(record TradeRecord) error       { return nil }
func (NullVisitor) OnPosition(record PositionRecord) error { return nil }
func (NullVisitor) OnValue(record ValueRecord) error       { return nil }
func (NullVisitor) OnStreamEnd() error                     { return nil }
