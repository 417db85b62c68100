// Package searchloop implements the periodic, cancellable control loop
// that drives quote discovery, sizing, single-flight execution, and
// bookkeeping for the triangular-arbitrage engine.
package searchloop

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/triarb/internal/clockwork"
	"github.com/ajitpratap0/triarb/internal/config"
	"github.com/ajitpratap0/triarb/internal/control"
	"github.com/ajitpratap0/triarb/internal/domain"
	"github.com/ajitpratap0/triarb/internal/mev"
	"github.com/ajitpratap0/triarb/internal/metrics"
	"github.com/ajitpratap0/triarb/internal/ports"
	"github.com/ajitpratap0/triarb/internal/priceoracle"
	"github.com/ajitpratap0/triarb/internal/sizer"
)

const (
	// interLegSettle is the fixed pause between an executed leg1 and leg2
	// submission, giving the first leg time to settle on-chain.
	interLegSettle = 3 * time.Second
	// shutdownGrace bounds how long Run waits for an in-flight execution
	// to release the single-flight guard after cancellation.
	shutdownGrace = 15 * time.Second
	// balanceClampFraction is the ceiling a startup anchor balance imposes
	// on the configured max trade size.
	balanceClampFraction = 0.9
	// memReclaimEvery and cleanupEvery are the iteration cadences for the
	// two periodic bookkeeping tasks.
	memReclaimEvery = 50
	cleanupEvery    = 100
	// maxRecentIterations bounds the in-memory iteration log, mirroring
	// the FIFO-capped sample history used elsewhere in the engine.
	maxRecentIterations = 200
)

// Loop is the single owner of the engine's control state: the intermediate
// rotation ring, the iteration counter, and the single-flight execution
// guard. Exactly one tick runs at a time and at most one execution is ever
// in flight.
type Loop struct {
	cfg       *config.Config
	clock     clockwork.Clock
	log       zerolog.Logger
	sizer     *sizer.Sizer
	oracle    *priceoracle.Oracle
	transport *mev.Transport
	signer    ports.Signer
	tokenDir  ports.TokenDirectory
	exchange  ports.ExchangeAPI
	signals   *control.Signals

	anchor        domain.Asset
	intermediates []domain.Asset
	ringIndex     int

	maxTradeSize   float64
	minTradeSize   float64
	tradingEnabled bool

	sem       *semaphore.Weighted
	iteration uint64

	mu     sync.Mutex
	recent []domain.IterationRecord

	onMemoryReclaim func()
}

// New builds a Loop, consulting the token directory once at startup to
// clamp MaxTradeSize and to force TradingEnabled false when the anchor
// balance is zero.
func New(
	ctx context.Context,
	cfg *config.Config,
	clock clockwork.Clock,
	log zerolog.Logger,
	sz *sizer.Sizer,
	oracle *priceoracle.Oracle,
	transport *mev.Transport,
	signer ports.Signer,
	tokenDir ports.TokenDirectory,
	exchange ports.ExchangeAPI,
	signals *control.Signals,
) (*Loop, error) {
	anchor := tokenDir.Anchor()
	intermediates := tokenDir.Intermediates()
	if len(intermediates) == 0 {
		return nil, fmt.Errorf("token directory returned no intermediate assets")
	}

	maxTradeSize := cfg.Trading.MaxTradeSize
	tradingEnabled := cfg.Trading.Enabled

	balanceRaw, err := tokenDir.Balance(ctx, anchor)
	if err != nil {
		return nil, fmt.Errorf("read anchor balance: %w", err)
	}
	balanceNative, _ := domain.ToDecimal(balanceRaw, anchor.Decimals).Float64()

	switch {
	case balanceNative == 0:
		tradingEnabled = false
	case maxTradeSize > balanceClampFraction*balanceNative:
		maxTradeSize = math.Floor(balanceClampFraction * balanceNative)
	}

	return &Loop{
		cfg:            cfg,
		clock:          clock,
		log:            log.With().Str("component", "search_loop").Logger(),
		sizer:          sz,
		oracle:         oracle,
		transport:      transport,
		signer:         signer,
		tokenDir:       tokenDir,
		exchange:       exchange,
		signals:        signals,
		anchor:         anchor,
		intermediates:  intermediates,
		maxTradeSize:   maxTradeSize,
		minTradeSize:   cfg.Trading.MinTradeSize,
		tradingEnabled: tradingEnabled,
		sem:            semaphore.NewWeighted(1),
	}, nil
}

// SetMemoryReclaimer installs the optional external memory-reclaim hook
// invoked every 50 iterations. The engine carries no memory monitor of its
// own; this is purely a collaborator seam.
func (l *Loop) SetMemoryReclaimer(fn func()) {
	l.onMemoryReclaim = fn
}

// RequestRotation submits a one-shot manual-rotation signal, consumed at
// the top of the next tick.
func (l *Loop) RequestRotation() {
	select {
	case l.signals.Rotate <- struct{}{}:
	default:
	}
}

// RequestForce submits a one-shot forced-execution signal: the next tick's
// profit-floor recheck is bypassed for an otherwise-eligible candidate.
func (l *Loop) RequestForce() {
	select {
	case l.signals.Force <- struct{}{}:
	default:
	}
}

// RequestRevert submits a one-shot revert signal: the next tick's
// candidate, if any, is skipped rather than executed.
func (l *Loop) RequestRevert() {
	select {
	case l.signals.Revert <- struct{}{}:
	default:
	}
}

// Run drives the search loop until ctx is cancelled. It owns two periodic
// tasks (the iteration tick and the intermediate rotation) sharing one
// select loop.
func (l *Loop) Run(ctx context.Context) {
	iterTicker := l.clock.NewTicker(l.cfg.Trading.IterationInterval())
	rotTicker := l.clock.NewTicker(l.cfg.Trading.RotationInterval())
	defer iterTicker.Stop()
	defer rotTicker.Stop()

	l.log.Info().
		Str("anchor", l.anchor.Symbol).
		Float64("max_trade_size", l.maxTradeSize).
		Bool("trading_enabled", l.tradingEnabled).
		Msg("search loop started")

	for {
		select {
		case <-ctx.Done():
			l.awaitInFlight()
			l.log.Info().Msg("search loop stopped")
			return
		case <-rotTicker.Chan():
			l.RequestRotation()
		case <-iterTicker.Chan():
			l.tick(ctx)
		}
	}
}

// awaitInFlight waits up to shutdownGrace for any in-flight execution to
// release the single-flight guard before the process exits.
func (l *Loop) awaitInFlight() {
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		l.log.Warn().Msg("shutdown grace period elapsed with an execution still in flight")
		return
	}
	l.sem.Release(1)
}

// tick runs exactly one Idle->Scanning->(NoOp|Executing)->Bookkeeping pass.
// Any panic inside is recovered and logged at the tick boundary; the loop
// never aborts on an in-flight error.
func (l *Loop) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("recovered from panic in search-loop tick")
		}
	}()

	rotate, force, revert := l.signals.Drain()
	if rotate {
		l.rotate()
	}

	l.iteration++
	record := domain.IterationRecord{
		ID:        uuid.NewString(),
		Index:     l.iteration,
		StartedAt: l.clock.NowWall(),
		RouteFrom: l.anchor,
		RouteTo:   l.currentIntermediate(),
	}

	anchorUSD := l.oracle.Current()

	candidate := l.sizer.FindOptimal(ctx, sizer.Params{
		Anchor:            l.anchor,
		Intermediate:      record.RouteTo,
		AnchorUSD:         anchorUSD,
		MinSize:           l.minTradeSize,
		MaxSize:           l.maxTradeSize,
		Strategy:          sizer.Strategy(l.cfg.Sizer.Strategy),
		SizeTests:         l.cfg.Sizer.SizeTests,
		PreferredPercents: l.cfg.Sizer.PreferredPercentages,
		MinProfitPct:      l.cfg.Trading.MinProfitPct,
		MinProfitUSD:      l.cfg.Trading.MinProfitUSD,
		MaxPriceImpactPct: l.cfg.Trading.MaxPriceImpactPct,
		MaxSlippageBps:    l.cfg.Trading.MaxSlippageBps,
		ProbeDelay:        time.Duration(l.cfg.Sizer.ProbeDelayMs) * time.Millisecond,
	})

	if candidate == nil {
		record.Outcome = domain.NoProfitable{}
		l.finishIteration(record)
		return
	}
	record.PickedSize = candidate.SizeRaw

	if !force && candidate.ProfitUSD < l.cfg.Trading.MinProfitUSD {
		record.Outcome = domain.Skipped{Reason: domain.SkipBelowUSDFloor}
		l.finishIteration(record)
		return
	}

	if revert {
		record.Outcome = domain.Skipped{Reason: domain.SkipReverted}
		l.finishIteration(record)
		return
	}

	if !l.sem.TryAcquire(1) {
		record.Outcome = domain.Skipped{Reason: domain.SkipBusyExecuting}
		l.finishIteration(record)
		return
	}
	metrics.SetSwapInFlight(true)
	defer func() {
		metrics.SetSwapInFlight(false)
		l.sem.Release(1)
	}()

	record.Outcome = l.executeCandidate(ctx, record.RouteTo, candidate)
	l.finishIteration(record)
}

// rotate advances the intermediate ring by one position; a ring of size 1
// is a no-op.
func (l *Loop) rotate() {
	if len(l.intermediates) <= 1 {
		return
	}
	l.ringIndex = (l.ringIndex + 1) % len(l.intermediates)
	metrics.RotationsTotal.Inc()
	l.log.Info().Str("category", "rotation").Str("intermediate", l.currentIntermediate().Symbol).Msg("rotated intermediate asset")
}

func (l *Loop) currentIntermediate() domain.Asset {
	return l.intermediates[l.ringIndex]
}

// executeCandidate carries out (or simulates) the two-leg execution for a
// winning candidate, returning the iteration's Outcome. It never panics
// into tick: the mev.Transport boundary already returns typed results.
func (l *Loop) executeCandidate(ctx context.Context, intermediate domain.Asset, candidate *domain.Candidate) domain.Outcome {
	if !l.tradingEnabled {
		return l.simulate(candidate, intermediate)
	}

	sizeFraction := 0.0
	if l.maxTradeSize > 0 {
		sizeFraction = candidate.SizeNative / l.maxTradeSize
	}

	balanceBefore, balErr := l.tokenDir.Balance(ctx, l.anchor)
	if balErr != nil {
		l.log.Warn().Err(balErr).Msg("pre-execution anchor balance read failed, realized profit will fall back to the pre-trade estimate")
	}

	leg1, ok := l.submitLeg(ctx, "leg1_"+intermediate.Symbol, candidate.Leg1.RouteDescriptor, sizeFraction, candidate.ProfitPct, candidate.ProfitUSD)
	if !ok {
		l.recordLoss(intermediate, candidate)
		return domain.Failed{Kind: domain.FailureLeg1, Message: leg1.ErrorKind}
	}

	l.clock.Sleep(interLegSettle)

	leg2, ok := l.submitLeg(ctx, "leg2_"+intermediate.Symbol, candidate.Leg2.RouteDescriptor, sizeFraction, candidate.ProfitPct, candidate.ProfitUSD)
	if !ok {
		l.recordLoss(intermediate, candidate)
		return domain.Failed{Kind: domain.FailureLeg2, Message: leg2.ErrorKind}
	}

	if !l.oracle.IsFresh() {
		_ = l.oracle.ForceRefresh(ctx)
	}
	freshUSD := l.oracle.Current()

	realizedPct, realizedUSD := l.realizedProfit(ctx, candidate, balanceBefore, balErr, freshUSD)

	l.sizer.UpdateActual(l.anchor, intermediate, candidate.SizeRaw, realizedPct, true, l.clock.NowWall())
	l.transport.MonitorMEV(ctx, leg2.TxID, realizedUSD, candidate.SizeRaw)
	metrics.RecordExecutedProfit(realizedUSD)

	return domain.Executed{
		ProfitPct: realizedPct,
		ProfitUSD: realizedUSD,
		TxID:      leg1.TxID,
		Leg2TxID:  leg2.TxID,
		Legs:      [2]*domain.Quote{candidate.Leg1, candidate.Leg2},
	}
}

// realizedProfit recomputes profit_pct/profit_usd from the actual anchor
// balance delta across the round trip, per spec's requirement to derive
// realized profit from leg2's actual out-amount rather than the pre-trade
// estimate. balanceBefore/preErr are the pre-leg1 reading taken by the
// caller; a post-leg2 reading is taken here. Either reading can fail (a
// transient RPC error reading balance is not itself an execution failure),
// in which case the pre-trade estimate is used as a documented fallback.
func (l *Loop) realizedProfit(ctx context.Context, candidate *domain.Candidate, balanceBefore *big.Int, preErr error, freshUSD float64) (float64, float64) {
	estimatePct := candidate.ProfitPct
	estimateUSD := estimatePct / 100 * candidate.SizeNative * freshUSD
	if preErr != nil {
		return estimatePct, estimateUSD
	}

	balanceAfter, err := l.tokenDir.Balance(ctx, l.anchor)
	if err != nil {
		l.log.Warn().Err(err).Msg("post-execution anchor balance read failed, realized profit will fall back to the pre-trade estimate")
		return estimatePct, estimateUSD
	}

	sizeDec := domain.ToDecimal(candidate.SizeRaw, l.anchor.Decimals)
	if sizeDec.IsZero() {
		return estimatePct, estimateUSD
	}

	realizedRaw := new(big.Int).Sub(balanceAfter, balanceBefore)
	realizedDec := domain.ToDecimal(realizedRaw, l.anchor.Decimals)

	realizedPct, _ := realizedDec.Div(sizeDec).Mul(decimal.NewFromInt(100)).Float64()
	realizedUSD := realizedPct / 100 * candidate.SizeNative * freshUSD
	return realizedPct, realizedUSD
}

// simulate synthesizes an ExecutionResult when trading is disabled: probes
// and logging still proceed, but nothing is submitted.
func (l *Loop) simulate(candidate *domain.Candidate, intermediate domain.Asset) domain.Outcome {
	txid := "simulation_" + uuid.NewString()

	l.sizer.UpdateActual(l.anchor, intermediate, candidate.SizeRaw, candidate.ProfitPct, true, l.clock.NowWall())
	metrics.RecordExecutedProfit(candidate.ProfitUSD)

	return domain.Executed{
		ProfitPct: candidate.ProfitPct,
		ProfitUSD: candidate.ProfitUSD,
		TxID:      txid,
		Leg2TxID:  txid,
		Legs:      [2]*domain.Quote{candidate.Leg1, candidate.Leg2},
	}
}

// submitLeg turns a route descriptor into a signed transaction and submits
// it through the MEV transport, returning the result and whether it
// succeeded.
func (l *Loop) submitLeg(ctx context.Context, route string, routeDescriptor []byte, sizeFraction, profitPct, profitUSD float64) (*domain.ExecutionResult, bool) {
	unsignedTx, err := l.exchange.BuildTransaction(ctx, routeDescriptor)
	if err != nil {
		return &domain.ExecutionResult{Success: false, ErrorKind: "build_transaction_failed"}, false
	}

	signedTx, err := l.signer.Sign(ctx, unsignedTx)
	if err != nil {
		return &domain.ExecutionResult{Success: false, ErrorKind: "sign_failed"}, false
	}

	result := l.transport.Execute(ctx, route, signedTx, sizeFraction, profitPct, profitUSD)
	return result, result.Success
}

// recordLoss feeds a negative sample into the sizer's learning store after
// a leg failure, so the sizer learns to avoid this size/route again.
func (l *Loop) recordLoss(intermediate domain.Asset, candidate *domain.Candidate) {
	l.sizer.UpdateActual(l.anchor, intermediate, candidate.SizeRaw, -100, false, l.clock.NowWall())
}

// finishIteration runs the Bookkeeping stage: record, log, emit metrics,
// and fire the two periodic maintenance tasks on their iteration cadence.
func (l *Loop) finishIteration(record domain.IterationRecord) {
	l.recordIteration(record)
	l.logOutcome(record)
	metrics.RecordIterationOutcome(outcomeLabel(record.Outcome))

	if l.onMemoryReclaim != nil && l.iteration%memReclaimEvery == 0 {
		l.onMemoryReclaim()
	}

	if l.iteration%cleanupEvery == 0 {
		now := l.clock.NowWall()
		sizerPruned := l.sizer.CleanupOld(now)
		mevPruned := l.transport.CleanupOld(now)
		l.log.Debug().Int("sizer_entries_pruned", sizerPruned).Int("mev_observations_pruned", mevPruned).Msg("periodic cleanup")
	}
}

func (l *Loop) recordIteration(record domain.IterationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recent = append(l.recent, record)
	if len(l.recent) > maxRecentIterations {
		l.recent = l.recent[len(l.recent)-maxRecentIterations:]
	}
}

// RecentIterations returns a snapshot of the bounded iteration history.
func (l *Loop) RecentIterations() []domain.IterationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.IterationRecord, len(l.recent))
	copy(out, l.recent)
	return out
}

func (l *Loop) logOutcome(record domain.IterationRecord) {
	route := routeLabel(record)

	switch o := record.Outcome.(type) {
	case domain.Executed:
		l.log.Info().Str("category", "trade").Str("iteration_id", record.ID).Uint64("iteration", record.Index).
			Str("route", route).Float64("profit_pct", o.ProfitPct).Float64("profit_usd", o.ProfitUSD).
			Str("txid", o.TxID).Str("leg2_txid", o.Leg2TxID).
			Msg("executed arbitrage round-trip")
	case domain.Failed:
		l.log.Warn().Str("category", "trade").Str("iteration_id", record.ID).Uint64("iteration", record.Index).
			Str("route", route).Str("kind", string(o.Kind)).Str("message", o.Message).
			Msg("execution failed")
	case domain.Skipped:
		l.log.Warn().Str("category", "arbitrage").Str("iteration_id", record.ID).Uint64("iteration", record.Index).
			Str("route", route).Str("reason", string(o.Reason)).
			Msg("iteration skipped")
	default:
		l.log.Info().Str("category", "arbitrage").Str("iteration_id", record.ID).Uint64("iteration", record.Index).
			Str("route", route).Msg("no profitable candidate found")
	}
}

func outcomeLabel(o domain.Outcome) string {
	switch o.(type) {
	case domain.Executed:
		return "executed"
	case domain.Failed:
		return "failed"
	case domain.Skipped:
		return "skipped"
	default:
		return "no_profitable"
	}
}

func routeLabel(r domain.IterationRecord) string {
	return fmt.Sprintf("%s->%s->%s", r.RouteFrom.Symbol, r.RouteTo.Symbol, r.RouteFrom.Symbol)
}
