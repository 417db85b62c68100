package config

import "fmt"

// Validate enforces the finite, recognized option set's invariants.
func (c *Config) Validate() error {
	if c.Trading.MinTradeSize <= 0 {
		return fmt.Errorf("trading.min_trade_size must be positive")
	}
	if c.Trading.MaxTradeSize <= c.Trading.MinTradeSize {
		return fmt.Errorf("trading.max_trade_size must exceed trading.min_trade_size")
	}
	if c.Trading.MinProfitPct < 0 {
		return fmt.Errorf("trading.min_profit_pct must be non-negative")
	}
	if c.Trading.MinProfitUSD < 0 {
		return fmt.Errorf("trading.min_profit_usd must be non-negative")
	}
	if c.Trading.MaxPriceImpactPct <= 0 {
		return fmt.Errorf("trading.max_price_impact_pct must be positive")
	}
	if c.Trading.MaxSlippageBps < 0 || c.Trading.MaxSlippageBps > 10000 {
		return fmt.Errorf("trading.max_slippage_bps must be in [0, 10000]")
	}
	if c.Trading.IterationIntervalMs <= 0 {
		return fmt.Errorf("trading.iteration_interval_ms must be positive")
	}
	if c.Trading.RotationIntervalMs <= 0 {
		return fmt.Errorf("trading.rotation_interval_ms must be positive")
	}

	switch c.Sizer.Strategy {
	case SizeStrategyStepped, SizeStrategyOptimal:
	default:
		return fmt.Errorf("sizer.size_strategy must be %q or %q", SizeStrategyStepped, SizeStrategyOptimal)
	}
	if c.Sizer.SizeTests < 2 {
		return fmt.Errorf("sizer.size_tests must be at least 2")
	}
	if c.Sizer.Strategy == SizeStrategyOptimal && len(c.Sizer.PreferredPercentages) < c.Sizer.SizeTests-2 {
		return fmt.Errorf("sizer.preferred_percentages needs at least size_tests-2 entries for the optimal strategy")
	}
	for _, p := range c.Sizer.PreferredPercentages {
		if p <= 0 || p >= 100 {
			return fmt.Errorf("sizer.preferred_percentages entries must be in (0,100), got %d", p)
		}
	}
	if c.Sizer.ProbeDelayMs < 0 {
		return fmt.Errorf("sizer.probe_delay_ms must be non-negative")
	}

	if c.MEV.MaxSubmitJitterMs < 0 {
		return fmt.Errorf("mev.max_submit_jitter_ms must be non-negative")
	}
	if c.MEV.BundleTimeoutMs <= 0 {
		return fmt.Errorf("mev.bundle_timeout_ms must be positive")
	}

	if c.Quote.MinIntervalMs < 0 {
		return fmt.Errorf("quote.min_interval_ms must be non-negative")
	}
	if c.Quote.MaxPerMinute <= 0 {
		return fmt.Errorf("quote.max_per_minute must be positive")
	}
	if c.Quote.CircuitThreshold == 0 {
		return fmt.Errorf("quote.circuit_threshold must be positive")
	}
	if c.Quote.CircuitTimeoutMs <= 0 {
		return fmt.Errorf("quote.circuit_timeout_ms must be positive")
	}

	if c.Price.RefreshIntervalMs <= 0 {
		return fmt.Errorf("price.refresh_interval_ms must be positive")
	}
	if c.Price.PlausibleMin <= 0 || c.Price.PlausibleMax <= c.Price.PlausibleMin {
		return fmt.Errorf("price.plausible_min/max must form a positive, non-empty band")
	}

	if c.Token.Anchor.Address == "" {
		return fmt.Errorf("token.anchor.address must be set")
	}
	if c.Token.Anchor.Decimals < 0 || c.Token.Anchor.Decimals > 18 {
		return fmt.Errorf("token.anchor.decimals must be in [0, 18]")
	}
	if len(c.Token.Intermediates) == 0 {
		return fmt.Errorf("token.intermediates must name at least one asset")
	}
	for _, a := range c.Token.Intermediates {
		if a.Address == "" {
			return fmt.Errorf("token.intermediates entries must have an address")
		}
		if a.Decimals < 0 || a.Decimals > 18 {
			return fmt.Errorf("token.intermediates entry %q: decimals must be in [0, 18]", a.Symbol)
		}
	}

	return nil
}
