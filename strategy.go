// Copyright (c) 2025 Neomantra Corp

package hydra

// Strategy is the capability set the engine exposes to user code.  Build is
// invoked once during Hydra.Build; OnOpen and OnClose are invoked once per
// tick, in registration order, at the fixed suspension points of the event
// loop.  Inside those callbacks a strategy may call any public Exchange,
// Broker, or Portfolio operation; outside them it must not touch the engine.
type Strategy interface {
	Build() error
	OnOpen() error
	OnClose() error
}

// strategyHandle pairs a registered strategy with its engine-unique id.
type strategyHandle struct {
	strategyID string
	strategy   Strategy
}

// StrategyFuncs adapts three closures into a Strategy.  Nil callbacks are
// rejected at registration, not silently skipped.
type StrategyFuncs struct {
	BuildFunc   func() error
	OnOpenFunc  func() error
	OnCloseFunc func() error
}

func (s *StrategyFuncs) Build() error {
	return s.BuildFunc()
}

func (s *StrategyFuncs) OnOpen() error {
	return s.OnOpenFunc()
}

func (s *StrategyFuncs) OnClose() error {
	return s.OnCloseFunc()
}
