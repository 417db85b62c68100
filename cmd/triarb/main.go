// Command triarb runs the triangular-arbitrage search loop as a standalone
// process: it loads configuration, wires every core component, and drives
// the loop until an OS signal requests shutdown.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/triarb/internal/chainio"
	"github.com/ajitpratap0/triarb/internal/clockwork"
	"github.com/ajitpratap0/triarb/internal/config"
	"github.com/ajitpratap0/triarb/internal/control"
	"github.com/ajitpratap0/triarb/internal/domain"
	"github.com/ajitpratap0/triarb/internal/mev"
	"github.com/ajitpratap0/triarb/internal/metrics"
	"github.com/ajitpratap0/triarb/internal/priceoracle"
	"github.com/ajitpratap0/triarb/internal/quoteclient"
	"github.com/ajitpratap0/triarb/internal/searchloop"
	"github.com/ajitpratap0/triarb/internal/sizer"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (defaults to ./configs/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	logger := config.Component("main")

	clock := clockwork.NewRealClock()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	anchor := assetFromConfig(cfg.Token.Anchor)
	intermediates := make([]domain.Asset, len(cfg.Token.Intermediates))
	for i, a := range cfg.Token.Intermediates {
		intermediates[i] = assetFromConfig(a)
	}

	tokenDir := chainio.NewStaticTokenDirectory(anchor, intermediates, cfg.Token.RPCURL, cfg.Token.OwnerAddress)
	exchange := chainio.NewHTTPExchangeAPI(cfg.Token.ExchangeBuildURL)

	signer, err := chainio.NewEd25519SignerFromHex(cfg.Token.SignerKeyHex)
	if err != nil {
		logger.Fatal().Err(err).Msg("build signer")
	}

	var redisClient *redis.Client
	if cfg.Cache.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
	}
	quoteCache := quoteclient.NewCache(redisClient, time.Duration(cfg.Cache.TTLMs)*time.Millisecond)

	quoteClient := quoteclient.New(quoteclient.Config{
		BaseURL:          cfg.Quote.BaseURL,
		MinInterval:      time.Duration(cfg.Quote.MinIntervalMs) * time.Millisecond,
		MaxPerMinute:     cfg.Quote.MaxPerMinute,
		CircuitThreshold: cfg.Quote.CircuitThreshold,
		CircuitTimeout:   time.Duration(cfg.Quote.CircuitTimeoutMs) * time.Millisecond,
		AttemptTimeout:   time.Duration(cfg.Quote.AttemptTimeoutMs) * time.Millisecond,
		QueueTimeout:     time.Duration(cfg.Quote.QueueTimeoutMs) * time.Millisecond,
	}, quoteCache, clock, log.Logger)

	sources := buildPriceSources(cfg.Price.Sources)
	oracle, err := priceoracle.New(sources, cfg.Price.RefreshInterval(), cfg.Price.PlausibleMin, cfg.Price.PlausibleMax, clock, log.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build price oracle")
	}
	if err := oracle.ForceRefresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial price refresh failed, starting with stale price")
	}
	oracle.Start(ctx)
	defer oracle.Stop()

	transport := mev.New(mev.Config{
		Enabled:            cfg.MEV.Enabled,
		UseBundles:         cfg.MEV.UseBundles,
		RandomizeGas:       cfg.MEV.RandomizeGas,
		BasePriority:       cfg.MEV.BasePriority,
		MaxSubmitJitterMs:  cfg.MEV.MaxSubmitJitterMs,
		BundleTimeout:      time.Duration(cfg.MEV.BundleTimeoutMs) * time.Millisecond,
		PrivatePoolEnabled: cfg.MEV.PrivatePoolEnabled,
		BundleEndpoints:    cfg.MEV.BundleEndpoints,
		StandardRPCURL:     cfg.MEV.StandardRPCURL,
	}, clock, log.Logger, time.Now().UnixNano())

	sz := sizer.New(quoteClient.Quote, clock, sizer.NewStore())

	signals := control.NewSignals()
	bridge, err := control.Connect(cfg.Control.NatsURL, signals, log.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect control plane")
	}
	defer bridge.Close()

	loop, err := searchloop.New(ctx, cfg, clock, log.Logger, sz, oracle, transport, signer, tokenDir, exchange, signals)
	if err != nil {
		logger.Fatal().Err(err).Msg("build search loop")
	}
	loop.SetMemoryReclaimer(func() {
		now := clock.NowWall()
		sz.CleanupOld(now)
		transport.CleanupOld(now)
	})

	metricsServer := metrics.NewServer(cfg.App.PrometheusPort, log.Logger)
	if err := metricsServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start metrics server")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("anchor", anchor.Symbol).
		Int("intermediates", len(intermediates)).
		Bool("trading_enabled", cfg.Trading.Enabled).
		Msg("starting search loop")

	loop.Run(ctx)

	logger.Info().Msg("search loop stopped, shutting down")
}

func assetFromConfig(a config.AssetConfig) domain.Asset {
	return domain.Asset{Address: a.Address, Symbol: a.Symbol, Decimals: a.Decimals}
}

// buildPriceSources wires the configured source names to concrete
// HTTPSource instances querying public aggregator-price endpoints.
func buildPriceSources(names []string) []priceoracle.Source {
	catalog := map[string]func() priceoracle.Source{
		"coingecko": func() priceoracle.Source {
			return priceoracle.NewHTTPSource(
				"coingecko",
				"https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd",
				"", "",
				priceoracle.ParseSimplePriceField("solana", "usd"),
			)
		},
		"coinbase": func() priceoracle.Source {
			return priceoracle.NewHTTPSource(
				"coinbase",
				"https://api.coinbase.com/v2/prices/SOL-USD/spot",
				"", "",
				priceoracle.ParseJSONPathFloat("data", "amount"),
			)
		},
		"binance": func() priceoracle.Source {
			return priceoracle.NewHTTPSource(
				"binance",
				"https://api.binance.com/api/v3/ticker/price?symbol=SOLUSDT",
				"", "",
				priceoracle.ParseJSONPathFloat("price"),
			)
		},
	}

	var sources []priceoracle.Source
	for _, name := range names {
		if build, ok := catalog[name]; ok {
			sources = append(sources, build())
		}
	}
	if len(sources) == 0 {
		sources = append(sources, catalog["coingecko"](), catalog["coinbase"]())
	}
	return sources
}
