// Package quoteclient implements the rate-limited, retrying, circuit-broken
// single-leg quote fetch against the DEX aggregator's quote API.
package quoteclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/triarb/internal/clockwork"
	"github.com/ajitpratap0/triarb/internal/domain"
	"github.com/ajitpratap0/triarb/internal/metrics"
)

// attemptTimeout bounds a single HTTP attempt, independent of the retry
// ladder's inter-attempt sleeps.
const attemptTimeout = 20 * time.Second

// Client fetches single-leg swap quotes from the aggregator, layering a
// short-TTL cache, a rate limiter, a circuit breaker, and a classified retry
// ladder over a plain HTTP GET.
type Client struct {
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	log        zerolog.Logger

	cache   *Cache
	limiter *limiter
	breaker *gobreaker.CircuitBreaker
}

// Config bundles the tunables the caller's config.QuoteConfig supplies.
type Config struct {
	BaseURL          string
	MinInterval      time.Duration
	MaxPerMinute     int
	CircuitThreshold uint32
	CircuitTimeout   time.Duration
	// AttemptTimeout bounds a single HTTP attempt; zero uses attemptTimeout.
	AttemptTimeout time.Duration
	// QueueTimeout bounds how long a call may wait for a rate-limit slot;
	// zero uses queueTimeout.
	QueueTimeout time.Duration
}

// New builds a Client. cache may be nil to disable de-duplication.
func New(cfg Config, cache *Cache, clock clockwork.Clock, log zerolog.Logger) *Client {
	attempt := cfg.AttemptTimeout
	if attempt <= 0 {
		attempt = attemptTimeout
	}
	queue := cfg.QueueTimeout
	if queue <= 0 {
		queue = queueTimeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: attempt},
		clock:      clock,
		log:        log.With().Str("component", "quote_client").Logger(),
		cache:      cache,
		limiter:    newLimiter(cfg.MinInterval, cfg.MaxPerMinute, queue, clock),
		breaker:    newBreaker(cfg.CircuitThreshold, cfg.CircuitTimeout),
	}
}

// quoteResponse is the subset of the aggregator's JSON response this client
// consumes; RoutePlan is kept as raw JSON and forwarded verbatim as the
// opaque route descriptor.
type quoteResponse struct {
	InAmount      string          `json:"inAmount"`
	OutAmount     string          `json:"outAmount"`
	PriceImpactPct string         `json:"priceImpactPct"`
	RoutePlan     json.RawMessage `json:"routePlan"`
}

// Quote fetches a single-leg swap quote in→out for inAmount raw units of in,
// with the given slippage tolerance in basis points.
func (c *Client) Quote(ctx context.Context, in, out domain.Asset, inAmount *big.Int, slippageBps int) (*domain.Quote, error) {
	amountStr := inAmount.String()

	if q, ok := c.cache.Get(ctx, in, out, amountStr, slippageBps); ok {
		metrics.QuoteRequests.WithLabelValues("cache_hit").Inc()
		return q, nil
	}

	var result *domain.Quote
	_, err := c.breaker.Execute(func() (interface{}, error) {
		if err := c.limiter.wait(ctx); err != nil {
			return nil, err
		}

		retryErr := WithRetry(ctx, c.clock, c.log, func(ctx context.Context) error {
			q, err := c.fetchOnce(ctx, in, out, amountStr, slippageBps)
			if err != nil {
				return err
			}
			result = q
			return nil
		})
		return nil, retryErr
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.QuoteRequests.WithLabelValues(metrics.QuoteErrorCircuitOpen).Inc()
			return nil, &Error{Kind: KindCircuitOpen, Err: errCircuitOpen}
		}
		if qcErr, ok := err.(*Error); ok {
			metrics.QuoteRequests.WithLabelValues(metrics.NormalizeQuoteError(qcErr)).Inc()
			return nil, qcErr
		}
		metrics.QuoteRequests.WithLabelValues(metrics.NormalizeQuoteError(err)).Inc()
		return nil, err
	}

	if !result.Valid() {
		err := &Error{Kind: KindQuoteInvalid, Err: fmt.Errorf("quote returned zero out_amount")}
		metrics.QuoteRequests.WithLabelValues(metrics.QuoteErrorInvalid).Inc()
		return nil, err
	}

	metrics.QuoteRequests.WithLabelValues("ok").Inc()
	c.cache.Set(ctx, in, out, amountStr, slippageBps, result)
	return result, nil
}

func (c *Client) fetchOnce(ctx context.Context, in, out domain.Asset, amountStr string, slippageBps int) (*domain.Quote, error) {
	start := c.clock.NowMonotonic()

	q := url.Values{}
	q.Set("inputMint", in.Address)
	q.Set("outputMint", out.Address)
	q.Set("amount", amountStr)
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("onlyDirectRoutes", "false")

	reqURL := c.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindFatal, Err: fmt.Errorf("build quote request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Err: fmt.Errorf("quote request failed: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Err: fmt.Errorf("read quote response: %w", err)}
	}

	latencyMs := float64(c.clock.NowMonotonic().Sub(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		kind := classifyHTTPStatus(resp.StatusCode)
		metrics.QuoteLatency.Observe(latencyMs)
		return nil, &Error{Kind: kind, StatusCode: resp.StatusCode, Err: fmt.Errorf("quote API returned status %d: %s", resp.StatusCode, string(body))}
	}

	var decoded quoteResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &Error{Kind: KindQuoteInvalid, Err: fmt.Errorf("decode quote response: %w", err)}
	}

	inRaw, ok := new(big.Int).SetString(decoded.InAmount, 10)
	if !ok {
		return nil, &Error{Kind: KindQuoteInvalid, Err: fmt.Errorf("inAmount %q is not a valid integer", decoded.InAmount)}
	}
	outRaw, ok := new(big.Int).SetString(decoded.OutAmount, 10)
	if !ok {
		return nil, &Error{Kind: KindQuoteInvalid, Err: fmt.Errorf("outAmount %q is not a valid integer", decoded.OutAmount)}
	}

	impact, err := strconv.ParseFloat(decoded.PriceImpactPct, 64)
	if err != nil {
		impact = 0
	}

	metrics.QuoteLatency.Observe(latencyMs)

	return &domain.Quote{
		InAsset:         in,
		OutAsset:        out,
		InAmount:        inRaw,
		OutAmount:       outRaw,
		PriceImpactFrac: impact,
		RouteDescriptor: []byte(decoded.RoutePlan),
	}, nil
}
