package mev

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/triarb/internal/clockwork"
	"github.com/ajitpratap0/triarb/internal/domain"
	"github.com/ajitpratap0/triarb/internal/metrics"
	"github.com/ajitpratap0/triarb/internal/quoteclient"
)

const (
	monitorDelay       = 5 * time.Second
	standardRPCRetries = 3
)

// Config bundles the MEV transport's tunables, sourced from config.MEVConfig.
type Config struct {
	Enabled            bool
	UseBundles         bool
	RandomizeGas       bool
	MaxSubmitJitterMs  int
	BundleTimeout      time.Duration
	PrivatePoolEnabled bool
	BundleEndpoints    []string
	StandardRPCURL     string
	BasePriority       uint64
}

// Transport executes a signed transaction under MEV protection: it derives
// protection parameters, submits bundle-first with private-pool and
// standard-RPC fallback, and never returns an error across its boundary.
type Transport struct {
	cfg   Config
	clock clockwork.Clock
	log   zerolog.Logger

	httpClient *http.Client

	mu           sync.Mutex
	rng          *rand.Rand
	nextEndpoint int
	observations []domain.MEVObservation
}

// New builds a Transport. seed is the PRNG seed for priority/jitter
// randomization; callers should pass a process-derived seed (or a fixed one
// in tests) since math/rand must not be seeded from disallowed time calls
// inside this module's request path.
func New(cfg Config, clock clockwork.Clock, log zerolog.Logger, seed int64) *Transport {
	return &Transport{
		cfg:        cfg,
		clock:      clock,
		log:        log.With().Str("component", "mev_transport").Logger(),
		httpClient: &http.Client{},
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Execute submits signedTx, deriving protection parameters from size and
// expectedProfitPct, and returns an ExecutionResult. It always returns a
// non-nil result; the boolean success field carries failure, never an error.
func (t *Transport) Execute(ctx context.Context, route string, signedTx []byte, sizeFraction, expectedProfitPct, expectedProfitUSD float64) *domain.ExecutionResult {
	t.mu.Lock()
	params := deriveParams(t.cfg.BasePriority, t.cfg.RandomizeGas, t.cfg.MaxSubmitJitterMs, t.cfg.UseBundles, expectedProfitUSD, sizeFraction, expectedProfitPct, t.rng)
	t.mu.Unlock()

	metrics.MEVProtectionLevel.WithLabelValues(route).Set(protectionScore(params.ProtectionLevel))

	if params.SendDelay > 0 {
		t.clock.Sleep(params.SendDelay)
	}

	if t.cfg.UseBundles {
		if result := t.submitBundle(ctx, signedTx, params); result.Success {
			return result
		}
		if t.cfg.PrivatePoolEnabled && params.ProtectionLevel == domain.ProtectionHigh {
			if result := t.submitPrivatePool(ctx, signedTx, params); result.Success {
				return result
			}
		}
	}

	return t.submitStandardRPC(ctx, signedTx, params)
}

type bundleRPCRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Method  string     `json:"method"`
	Params  [][]string `json:"params"`
}

type bundleRPCResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (t *Transport) submitBundle(ctx context.Context, signedTx []byte, params domain.ProtectionParams) *domain.ExecutionResult {
	if len(t.cfg.BundleEndpoints) == 0 {
		return &domain.ExecutionResult{Success: false, ErrorKind: "no_bundle_endpoints", Method: domain.MethodBundle}
	}

	t.mu.Lock()
	endpoint := t.cfg.BundleEndpoints[t.nextEndpoint%len(t.cfg.BundleEndpoints)]
	t.nextEndpoint++
	t.mu.Unlock()

	body, err := json.Marshal(bundleRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  [][]string{{base64.StdEncoding.EncodeToString(signedTx)}},
	})
	if err != nil {
		return &domain.ExecutionResult{Success: false, ErrorKind: "encode_failed", Method: domain.MethodBundle}
	}

	timeout := t.cfg.BundleTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &domain.ExecutionResult{Success: false, ErrorKind: "build_request_failed", Method: domain.MethodBundle}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.log.Warn().Err(err).Str("endpoint", endpoint).Msg("bundle submission failed")
		return &domain.ExecutionResult{Success: false, ErrorKind: "transient", Method: domain.MethodBundle}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		return &domain.ExecutionResult{Success: false, ErrorKind: "transient", Method: domain.MethodBundle}
	}

	var decoded bundleRPCResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil || decoded.Result == "" {
		return &domain.ExecutionResult{Success: false, ErrorKind: "quote_invalid", Method: domain.MethodBundle}
	}

	return &domain.ExecutionResult{Success: true, TxID: decoded.Result, Method: domain.MethodBundle}
}

// submitPrivatePool is a stub: no private-pool endpoint is configured by
// this engine, so the path always reports not-implemented, matching the
// transport's documented "may be a stub" fallback behavior.
func (t *Transport) submitPrivatePool(ctx context.Context, signedTx []byte, params domain.ProtectionParams) *domain.ExecutionResult {
	return &domain.ExecutionResult{Success: false, ErrorKind: "not_implemented", Method: domain.MethodPrivatePool}
}

func (t *Transport) submitStandardRPC(ctx context.Context, signedTx []byte, params domain.ProtectionParams) *domain.ExecutionResult {
	if t.cfg.StandardRPCURL == "" {
		return &domain.ExecutionResult{Success: false, ErrorKind: "no_rpc_url", Method: domain.MethodStandardRPC}
	}

	var txid string
	err := quoteclient.WithRetry(ctx, t.clock, t.log, func(ctx context.Context) error {
		id, err := t.sendRawTransaction(ctx, signedTx)
		if err != nil {
			return &quoteclient.Error{Kind: quoteclient.KindTransient, Err: err}
		}
		txid = id
		return nil
	})
	if err != nil {
		return &domain.ExecutionResult{Success: false, ErrorKind: "transient", Method: domain.MethodStandardRPC}
	}
	return &domain.ExecutionResult{Success: true, TxID: txid, Method: domain.MethodStandardRPC}
}

type sendRawTxRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type sendRawTxResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (t *Transport) sendRawTransaction(ctx context.Context, signedTx []byte) (string, error) {
	body, err := json.Marshal(sendRawTxRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendRawTransaction",
		Params: []interface{}{
			base64.StdEncoding.EncodeToString(signedTx),
			map[string]interface{}{"skipPreflight": false, "maxRetries": standardRPCRetries},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode sendRawTransaction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.StandardRPCURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build sendRawTransaction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sendRawTransaction request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read sendRawTransaction response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sendRawTransaction returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded sendRawTxResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode sendRawTransaction response: %w", err)
	}
	if decoded.Error != nil {
		return "", errors.New(decoded.Error.Message)
	}
	if decoded.Result == "" {
		return "", errors.New("sendRawTransaction returned empty result")
	}
	return decoded.Result, nil
}

// MonitorMEV launches a best-effort, diagnostic-only observation of a
// completed execution. It runs detached from the caller, guarded by ctx,
// and never influences control flow; its result is only ever appended to
// the transport's own observation log.
func (t *Transport) MonitorMEV(ctx context.Context, txid string, expectedProfit float64, size *domain.RawAmount) {
	go func() {
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-t.clock.After(monitorDelay):
		}

		obs := domain.MEVObservation{
			TxID:           txid,
			ExpectedProfit: expectedProfit,
			Size:           size,
			ObservedAt:     t.clock.NowWall(),
		}

		t.mu.Lock()
		t.observations = append(t.observations, obs)
		t.mu.Unlock()

		t.log.Debug().Str("txid", txid).Msg("recorded MEV observation")
	}()
}

// Observations returns a snapshot of recorded MEVObservations.
func (t *Transport) Observations() []domain.MEVObservation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.MEVObservation, len(t.observations))
	copy(out, t.observations)
	return out
}

// observationMaxAge bounds how long a diagnostic MEVObservation is kept
// before CleanupOld prunes it; observations are informational only, never
// consulted for control flow, so there is no correctness reason to keep
// them longer than the sizer's own 24h performance-entry window.
const observationMaxAge = 24 * time.Hour

// CleanupOld prunes MEVObservations older than 24h, called periodically by
// the search loop's bookkeeping stage alongside the sizer's CleanupOld.
func (t *Transport) CleanupOld(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.observations[:0]
	pruned := 0
	for _, obs := range t.observations {
		if now.Sub(obs.ObservedAt) < observationMaxAge {
			kept = append(kept, obs)
		} else {
			pruned++
		}
	}
	t.observations = kept
	return pruned
}

func protectionScore(level domain.ProtectionLevel) float64 {
	switch level {
	case domain.ProtectionHigh:
		return 2
	case domain.ProtectionMedium:
		return 1
	default:
		return 0
	}
}
