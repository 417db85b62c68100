package priceoracle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/triarb/internal/clockwork"
	"github.com/ajitpratap0/triarb/internal/domain"
	"github.com/ajitpratap0/triarb/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	maxHistory     = 100
	trendWindow    = 10
	trendThreshold = 0.02 // ±2%
)

// Trend labels reported by Trend().
const (
	TrendRising  = "RISING"
	TrendFalling = "FALLING"
	TrendStable  = "STABLE"
)

// Oracle maintains the current USD price for the anchor asset, polling N
// redundant sources in parallel and averaging the successes.
type Oracle struct {
	sources         []Source
	refreshInterval time.Duration
	plausibleMin    float64
	plausibleMax    float64
	clock           clockwork.Clock
	log             zerolog.Logger

	mu         sync.RWMutex
	current    float64
	lastUpdate time.Time
	history    []domain.PriceSample

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds an Oracle. sources with HasCredential() == false are dropped
// immediately: they can never contribute a sample.
func New(sources []Source, refreshInterval time.Duration, plausibleMin, plausibleMax float64, clock clockwork.Clock, log zerolog.Logger) (*Oracle, error) {
	usable := make([]Source, 0, len(sources))
	for _, s := range sources {
		if !s.HasCredential() {
			log.Warn().Str("source", s.Name()).Msg("price source skipped, credential absent")
			continue
		}
		usable = append(usable, s)
	}
	if len(usable) < 2 {
		return nil, fmt.Errorf("price oracle needs at least 2 usable sources, got %d", len(usable))
	}

	return &Oracle{
		sources:         usable,
		refreshInterval: refreshInterval,
		plausibleMin:    plausibleMin,
		plausibleMax:    plausibleMax,
		clock:           clock,
		log:             log.With().Str("component", "price_oracle").Logger(),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}, nil
}

// Start runs the background refresh loop until ctx is cancelled or Stop is
// called. It performs an initial synchronous refresh before returning.
func (o *Oracle) Start(ctx context.Context) {
	_ = o.ForceRefresh(ctx)

	go func() {
		defer close(o.doneCh)
		ticker := o.clock.NewTicker(o.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-o.stopCh:
				return
			case <-ticker.Chan():
				if err := o.ForceRefresh(ctx); err != nil {
					o.log.Warn().Err(err).Msg("price refresh failed")
				}
			}
		}
	}()
}

// Stop signals the background loop to exit and waits for it to do so.
func (o *Oracle) Stop() {
	close(o.stopCh)
	<-o.doneCh
}

// ForceRefresh polls every source in parallel and, if at least one
// succeeded, updates the current price to the arithmetic mean of the
// successes (rounded to two decimals), provided it falls within the
// plausibility band. Otherwise the previous price is retained.
func (o *Oracle) ForceRefresh(ctx context.Context) error {
	type result struct {
		source string
		price  float64
		err    error
	}
	results := make([]result, len(o.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range o.sources {
		i, src := i, src
		g.Go(func() error {
			price, err := src.FetchPriceUSD(gctx)
			results[i] = result{source: src.Name(), price: price, err: err}
			return nil
		})
	}
	// errgroup.Wait's error is always nil here since each goroutine reports
	// its own failure into results rather than propagating it.
	_ = g.Wait()

	var sum float64
	contributing := make(map[string]struct{})
	for _, r := range results {
		if r.err != nil {
			o.log.Debug().Str("source", r.source).Err(r.err).Msg("price source failed")
			continue
		}
		sum += r.price
		contributing[r.source] = struct{}{}
	}

	metrics.PriceSourcesHealthy.Set(float64(len(contributing)))

	if len(contributing) == 0 {
		return fmt.Errorf("all %d price sources failed", len(o.sources))
	}

	mean := sum / float64(len(contributing))
	mean = math.Round(mean*100) / 100

	if mean < o.plausibleMin || mean > o.plausibleMax {
		metrics.PriceRejections.Inc()
		o.log.Warn().Float64("price", mean).Msg("price rejected by plausibility band, retaining previous")
		return fmt.Errorf("price %.2f outside plausibility band [%.2f, %.2f]", mean, o.plausibleMin, o.plausibleMax)
	}

	now := o.clock.NowWall()
	sample := domain.PriceSample{
		Timestamp:           now,
		PriceUSD:            mean,
		ContributingSources: contributing,
	}

	o.mu.Lock()
	o.current = mean
	o.lastUpdate = now
	o.history = append(o.history, sample)
	if len(o.history) > maxHistory {
		o.history = o.history[len(o.history)-maxHistory:]
	}
	o.mu.Unlock()

	metrics.AnchorPriceUSD.Set(mean)
	metrics.PriceVolatility.Set(o.Volatility())

	return nil
}

// Current returns the last accepted price.
func (o *Oracle) Current() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// IsFresh reports whether the last update is within 2x the refresh interval.
func (o *Oracle) IsFresh() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastUpdate.IsZero() {
		return false
	}
	return o.clock.NowWall().Sub(o.lastUpdate) < 2*o.refreshInterval
}

// Volatility is the coefficient of variation (stddev / mean) of the last 10
// samples, or 0 with fewer than 2 samples.
func (o *Oracle) Volatility() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	samples := lastN(o.history, trendWindow)
	if len(samples) < 2 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += s.PriceUSD
	}
	mean := sum / float64(len(samples))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, s := range samples {
		d := s.PriceUSD - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	stddev := math.Sqrt(variance)

	return stddev / mean
}

// Trend compares the first and last sample of the recent window: a change
// beyond ±2% is RISING or FALLING, otherwise STABLE.
func (o *Oracle) Trend() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	samples := lastN(o.history, trendWindow)
	if len(samples) < 2 {
		return TrendStable
	}

	first := samples[0].PriceUSD
	last := samples[len(samples)-1].PriceUSD
	if first == 0 {
		return TrendStable
	}

	change := (last - first) / first
	switch {
	case change >= trendThreshold:
		return TrendRising
	case change <= -trendThreshold:
		return TrendFalling
	default:
		return TrendStable
	}
}

func lastN(samples []domain.PriceSample, n int) []domain.PriceSample {
	if len(samples) <= n {
		return samples
	}
	return samples[len(samples)-n:]
}
