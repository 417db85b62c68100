// Package config loads and validates the engine's typed configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every recognized option from the core's finite option set.
// It is immutable for the lifetime of a run; changing it requires a restart.
type Config struct {
	Trading TradingConfig `mapstructure:"trading"`
	Sizer   SizerConfig   `mapstructure:"sizer"`
	MEV     MEVConfig     `mapstructure:"mev"`
	Quote   QuoteConfig   `mapstructure:"quote"`
	Price   PriceConfig   `mapstructure:"price"`
	Control ControlConfig `mapstructure:"control"`
	Cache   CacheConfig   `mapstructure:"cache"`
	App     AppConfig     `mapstructure:"app"`
	Token   TokenConfig   `mapstructure:"token"`
}

// AppConfig contains process-level settings.
type AppConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"` // "json" or "console"
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// TradingConfig governs whether/how large the engine trades.
type TradingConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MaxTradeSize  float64 `mapstructure:"max_trade_size"`  // anchor native units
	MinTradeSize  float64 `mapstructure:"min_trade_size"`  // anchor native units
	MinProfitPct  float64 `mapstructure:"min_profit_pct"`
	MinProfitUSD  float64 `mapstructure:"min_profit_usd"`
	MaxPriceImpactPct float64 `mapstructure:"max_price_impact_pct"`
	MaxSlippageBps    int    `mapstructure:"max_slippage_bps"`
	IterationIntervalMs int  `mapstructure:"iteration_interval_ms"`
	RotationIntervalMs  int  `mapstructure:"rotation_interval_ms"`
}

// SizeStrategy selects how candidate probe sizes are generated.
type SizeStrategy string

const (
	SizeStrategyStepped SizeStrategy = "stepped"
	SizeStrategyOptimal SizeStrategy = "optimal"
)

// SizerConfig governs the dynamic sizer's probe generation.
type SizerConfig struct {
	Strategy             SizeStrategy `mapstructure:"size_strategy"`
	SizeTests            int          `mapstructure:"size_tests"`
	PreferredPercentages []int        `mapstructure:"preferred_percentages"`
	ProbeDelayMs         int          `mapstructure:"probe_delay_ms"`
}

// MEVConfig governs the MEV-protected execution transport.
type MEVConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	UseBundles        bool `mapstructure:"use_bundles"`
	RandomizeGas      bool `mapstructure:"randomize_gas"`
	BasePriority      uint64 `mapstructure:"base_priority"`
	MaxSubmitJitterMs int  `mapstructure:"max_submit_jitter_ms"`
	BundleTimeoutMs   int  `mapstructure:"bundle_timeout_ms"`
	PrivatePoolEnabled bool `mapstructure:"private_pool_enabled"`
	BundleEndpoints   []string `mapstructure:"bundle_endpoints"`
	StandardRPCURL    string   `mapstructure:"standard_rpc_url"`
}

// QuoteConfig governs the quote-client's rate limiting and circuit breaker.
type QuoteConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	MinIntervalMs     int    `mapstructure:"min_interval_ms"`
	MaxPerMinute      int    `mapstructure:"max_per_minute"`
	CircuitThreshold  uint32 `mapstructure:"circuit_threshold"`
	CircuitTimeoutMs  int    `mapstructure:"circuit_timeout_ms"`
	QueueTimeoutMs    int    `mapstructure:"queue_timeout_ms"`
	AttemptTimeoutMs  int    `mapstructure:"attempt_timeout_ms"`
}

// PriceConfig governs the anchor-asset price oracle.
type PriceConfig struct {
	RefreshIntervalMs int      `mapstructure:"refresh_interval_ms"`
	PlausibleMin      float64  `mapstructure:"plausible_min"`
	PlausibleMax      float64  `mapstructure:"plausible_max"`
	Sources           []string `mapstructure:"sources"` // source names, resolved by the caller
}

// ControlConfig governs the optional NATS control-plane transport.
type ControlConfig struct {
	NatsURL string `mapstructure:"nats_url"` // empty disables NATS, falls back to in-process channel
}

// CacheConfig governs the short-TTL quote de-duplication cache.
type CacheConfig struct {
	RedisAddr string `mapstructure:"redis_addr"` // empty disables the cache
	TTLMs     int    `mapstructure:"ttl_ms"`
}

// AssetConfig names one asset in the configured token universe.
type AssetConfig struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Decimals int    `mapstructure:"decimals"`
}

// TokenConfig names the fixed token universe and the endpoints the chainio
// adapters use to read balances and build transactions. SignerKeyHex is read
// like any other option; the shipped config file leaves it empty and it is
// normally supplied through the ARB_TOKEN_SIGNER_KEY_HEX environment variable.
type TokenConfig struct {
	Anchor           AssetConfig   `mapstructure:"anchor"`
	Intermediates    []AssetConfig `mapstructure:"intermediates"`
	OwnerAddress     string        `mapstructure:"owner_address"`
	RPCURL           string        `mapstructure:"rpc_url"`
	ExchangeBuildURL string        `mapstructure:"exchange_build_url"`
	SignerKeyHex     string        `mapstructure:"signer_key_hex"`
}

// Load reads configuration from an optional file, environment variables
// (prefixed ARB_), and the defaults below, then validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")
	v.SetDefault("app.prometheus_port", 9100)

	v.SetDefault("trading.enabled", false)
	v.SetDefault("trading.max_trade_size", 0.1)
	v.SetDefault("trading.min_trade_size", 0.005)
	v.SetDefault("trading.min_profit_pct", 0.3)
	v.SetDefault("trading.min_profit_usd", 0.50)
	v.SetDefault("trading.max_price_impact_pct", 2.0)
	v.SetDefault("trading.max_slippage_bps", 100)
	v.SetDefault("trading.iteration_interval_ms", 8000)
	v.SetDefault("trading.rotation_interval_ms", 120000)

	v.SetDefault("sizer.size_strategy", "optimal")
	v.SetDefault("sizer.size_tests", 5)
	v.SetDefault("sizer.preferred_percentages", []int{10, 25, 50, 75, 90})
	v.SetDefault("sizer.probe_delay_ms", 500)

	v.SetDefault("mev.enabled", false)
	v.SetDefault("mev.use_bundles", false)
	v.SetDefault("mev.randomize_gas", false)
	v.SetDefault("mev.base_priority", 10000)
	v.SetDefault("mev.max_submit_jitter_ms", 2000)
	v.SetDefault("mev.bundle_timeout_ms", 30000)
	v.SetDefault("mev.private_pool_enabled", false)

	v.SetDefault("quote.min_interval_ms", 2000)
	v.SetDefault("quote.max_per_minute", 30)
	v.SetDefault("quote.circuit_threshold", 5)
	v.SetDefault("quote.circuit_timeout_ms", 60000)
	v.SetDefault("quote.queue_timeout_ms", 30000)
	v.SetDefault("quote.attempt_timeout_ms", 20000)

	v.SetDefault("price.refresh_interval_ms", 30000)
	v.SetDefault("price.plausible_min", 1.0)
	v.SetDefault("price.plausible_max", 10000.0)

	v.SetDefault("cache.ttl_ms", 400)
}

// IterationInterval returns the configured iteration period as a Duration.
func (c *TradingConfig) IterationInterval() time.Duration {
	return time.Duration(c.IterationIntervalMs) * time.Millisecond
}

// RotationInterval returns the configured rotation period as a Duration.
func (c *TradingConfig) RotationInterval() time.Duration {
	return time.Duration(c.RotationIntervalMs) * time.Millisecond
}

// RefreshInterval returns the configured price-refresh period as a Duration.
func (c *PriceConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMs) * time.Millisecond
}
