package dex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// Engine runs the paper-trading momentum loop: scan, exit, enter, snapshot.
// It never mutates state outside the methods the actor calls.
type Engine struct {
	logger  *zap.Logger
	scanner Scanner
	chart   ChartAnalyzer
	pricer  SolPricer
}

// NewEngine wires the engine to its providers. chart may be nil.
func NewEngine(logger *zap.Logger, scanner Scanner, chart ChartAnalyzer, pricer SolPricer) *Engine {
	return &Engine{
		logger:  logger.Named("dex"),
		scanner: scanner,
		chart:   chart,
		pricer:  pricer,
	}
}

// Run executes one DEX pass and returns the trades closed this pass.
/// Ordering: scan, exits, entries, cooldown hygiene, snapshot.
func (e *Engine) Run(ctx context.Context, st *types.AgentState, now time.Time) []types.DexTradeRecord {
	cfg := st.Config.Dex
	solUsd := e.pricer.SolPriceUSD(ctx)

	e.maybeScan(ctx, st, cfg, now)
	closed := e.runExits(st, cfg, solUsd, now)
	e.runEntries(ctx, st, cfg, solUsd, now)

	PruneCooldowns(st, now)
	e.snapshot(st, cfg, solUsd, now)
	return closed
}

// LiquidateAll closes every open position at the latest known price. Used by
// the crisis monitor and the manual kill path.
func (e *Engine) LiquidateAll(ctx context.Context, st *types.AgentState, now time.Time) []types.DexTradeRecord {
	solUsd := e.pricer.SolPriceUSD(ctx)
	prices := priceIndex(st.DexSignals)
	liquidity := liquidityIndex(st.DexSignals)

	var closed []types.DexTradeRecord
	for _, addr := range sortedPositionKeys(st.DexPositions) {
		pos := st.DexPositions[addr]
		price, ok := prices[addr]
		if !ok || price <= 0 {
			price = pos.EntryPrice
		}
		closed = append(closed, e.closePosition(st, pos, price, liquidity[addr], solUsd, types.ExitManual, now))
	}
	return closed
}

func (e *Engine) maybeScan(ctx context.Context, st *types.AgentState, cfg types.DexConfig, now time.Time) {
	interval := time.Duration(cfg.ScanIntervalMs) * time.Millisecond
	if now.Sub(st.LastDexScan) < interval {
		return
	}
	signals, err := e.scanner.FindMomentumTokens(ctx, cfg)
	if err != nil {
		e.logger.Warn("momentum scan failed", zap.Error(err))
		st.AppendLog("warn", "dex", fmt.Sprintf("scan failed: %v", err))
		return
	}
	st.DexSignals = signals
	st.LastDexScan = now
}

// runExits evaluates the exit ladder for every open position. Rule order:
// missed scans, momentum decay, liquidity-gated take profit, trailing stop,
// fixed stop loss. First match wins.
func (e *Engine) runExits(st *types.AgentState, cfg types.DexConfig, solUsd float64, now time.Time) []types.DexTradeRecord {
	sigIdx := make(map[string]types.DexSignal, len(st.DexSignals))
	for _, sig := range st.DexSignals {
		sigIdx[sig.TokenAddress] = sig
	}

	var closed []types.DexTradeRecord
	for _, addr := range sortedPositionKeys(st.DexPositions) {
		pos := st.DexPositions[addr]
		sig, scanned := sigIdx[addr]

		currentPrice := pos.EntryPrice
		if pos.LastPrice > 0 {
			currentPrice = pos.LastPrice
		}
		liquidity := pos.EntryLiquidity
		if scanned && sig.PriceUsd > 0 {
			currentPrice = sig.PriceUsd
			liquidity = sig.Liquidity
			pos.LastPrice = currentPrice
		}

		if currentPrice > pos.PeakPrice {
			pos.PeakPrice = currentPrice
		}
		plPct := (currentPrice - pos.EntryPrice) / pos.EntryPrice * 100

		// Rule 1: dropped out of the scan. A profitable position is left to
		// its trailing stop; otherwise count misses and exit after the grace
		// period. Without a live price the remaining rules cannot fire.
		if !scanned {
			if plPct > 0 {
				st.DexPositions[addr] = pos
				continue
			}
			pos.MissedScans++
			if pos.MissedScans >= cfg.LostMomentumMaxMisses {
				closed = append(closed, e.closePosition(st, pos, currentPrice, liquidity, solUsd, types.ExitLostMomentum, now))
				continue
			}
			st.DexPositions[addr] = pos
			continue
		}
		pos.MissedScans = 0

		// Rule 2: momentum decay while underwater.
		if sig.MomentumScore < cfg.MomentumDecayRatio*pos.EntryMomentumScore {
			if plPct < 0 {
				closed = append(closed, e.closePosition(st, pos, currentPrice, liquidity, solUsd, types.ExitLostMomentum, now))
				continue
			}
			st.AppendLog("info", "dex", fmt.Sprintf("%s momentum decayed but position in profit, holding", pos.Symbol))
		}

		// Rule 3: liquidity safety gate.
		positionValueUSD := pos.TokenAmount * currentPrice
		canSafelyExit := liquidity >= cfg.SafeExitLiquidityMult*positionValueUSD

		// Rule 4: take profit, delayed by thin liquidity.
		if plPct >= cfg.TakeProfitPct {
			if canSafelyExit {
				closed = append(closed, e.closePosition(st, pos, currentPrice, liquidity, solUsd, types.ExitTakeProfit, now))
				continue
			}
			st.AppendLog("warn", "dex", fmt.Sprintf("take_profit_delayed_low_liquidity %s liq=%.0f need=%.0f",
				pos.Symbol, liquidity, cfg.SafeExitLiquidityMult*positionValueUSD))
		}

		// Rule 5: trailing stop.
		trailingActivated := false
		if cfg.TrailingStopEnabled {
			activation, distance := cfg.TrailingStopActivationPct, cfg.TrailingStopDistancePct
			switch pos.Tier {
			case types.TierLottery, types.TierMicrospray, types.TierBreakout:
				activation, distance = cfg.LotteryTrailingActivation, cfg.LotteryTrailingDistance
			}
			peakGainPct := (pos.PeakPrice - pos.EntryPrice) / pos.EntryPrice * 100
			if peakGainPct >= activation {
				trailingActivated = true
				if currentPrice <= pos.PeakPrice*(1-distance/100) {
					if !canSafelyExit {
						st.AppendLog("warn", "dex", fmt.Sprintf("trailing stop on %s through thin liquidity", pos.Symbol))
					}
					closed = append(closed, e.closePosition(st, pos, currentPrice, liquidity, solUsd, types.ExitTrailingStop, now))
					continue
				}
			}
		}

		// Rule 6: fixed stop loss, only while trailing is dormant.
		if !trailingActivated && plPct <= -cfg.StopLossPct {
			if !canSafelyExit {
				st.AppendLog("warn", "dex", fmt.Sprintf("stop loss on %s through thin liquidity", pos.Symbol))
			}
			closed = append(closed, e.closePosition(st, pos, currentPrice, liquidity, solUsd, types.ExitStopLoss, now))
			continue
		}

		st.DexPositions[addr] = pos
	}
	return closed
}

// closePosition executes a paper sell: sell-side slippage, gas, ledger row,
// streak/drawdown update, cooldown and breaker book-keeping.
func (e *Engine) closePosition(st *types.AgentState, pos types.DexPosition, currentPrice, liquidity, solUsd float64, reason types.ExitReason, now time.Time) types.DexTradeRecord {
	cfg := st.Config.Dex

	positionUSD := pos.TokenAmount * currentPrice
	exitPrice := SellPrice(cfg.Slippage, currentPrice, positionUSD, liquidity)
	proceedsSol := pos.TokenAmount * exitPrice / solUsd
	pnlSol := proceedsSol - pos.EntryStakeSol
	pnlPct := (exitPrice - pos.EntryPrice) / pos.EntryPrice * 100

	st.DexPaperBalanceSol += proceedsSol - cfg.GasFeeSol
	st.DexGasSpentSol += cfg.GasFeeSol
	st.DexRealizedPnLSol += pnlSol

	trade := types.DexTradeRecord{
		Symbol:        pos.Symbol,
		TokenAddress:  pos.TokenAddress,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     exitPrice,
		EntryStakeSol: pos.EntryStakeSol,
		EntryTime:     pos.EntryTime,
		ExitTime:      now,
		PnLPct:        pnlPct,
		PnLSol:        pnlSol,
		ExitReason:    reason,
	}
	st.DexTradeHistory = append(st.DexTradeHistory, trade)
	delete(st.DexPositions, pos.TokenAddress)
	UpdateStreakAndDrawdown(st, trade)

	if reason == types.ExitStopLoss || reason == types.ExitTrailingStop {
		st.DexStopLossCooldowns[pos.TokenAddress] = types.StopLossCooldown{
			ExitPrice:      exitPrice,
			ExitTime:       now,
			FallbackExpiry: now.Add(time.Duration(cfg.StopLossCooldownHours * float64(time.Hour))),
		}
	}
	if reason == types.ExitStopLoss {
		if recordStopLoss(st, pos.Symbol, cfg, now) {
			st.AppendLog("warn", "dex", fmt.Sprintf("circuit breaker tripped after %d stop losses", cfg.CircuitBreakerLosses))
		}
	}

	e.logger.Info("paper sell",
		zap.String("symbol", pos.Symbol),
		zap.String("reason", string(reason)),
		zap.Float64("pnlPct", pnlPct),
		zap.Float64("pnlSol", pnlSol))
	st.AppendLog("info", "dex", fmt.Sprintf("paper_sell %s %s pnl %.1f%% (%.4f SOL)", pos.Symbol, reason, pnlPct, pnlSol))
	return trade
}

// runEntries walks scan candidates best-momentum-first through the entry
// preconditions and opens positions for survivors.
func (e *Engine) runEntries(ctx context.Context, st *types.AgentState, cfg types.DexConfig, solUsd float64, now time.Time) {
	if len(st.DexSignals) == 0 {
		return
	}

	switch evalBreaker(st, st.DexSignals, cfg, now) {
	case breakerClearedEarly:
		st.AppendLog("info", "dex", "circuit breaker cleared early")
	case breakerExpired:
		st.AppendLog("info", "dex", "circuit breaker expired")
	case breakerActive:
		st.AppendLog("info", "dex", "circuit breaker active, skipping entries")
		return
	}
	if st.DexDrawdownPaused {
		st.AppendLog("info", "dex", "drawdown halt active, skipping entries")
		return
	}

	candidates := make([]types.DexSignal, len(st.DexSignals))
	copy(candidates, st.DexSignals)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MomentumScore > candidates[j].MomentumScore
	})

	for _, sig := range candidates {
		if len(st.DexPositions) >= cfg.MaxPositions {
			return
		}
		if _, held := st.DexPositions[sig.TokenAddress]; held {
			continue
		}
		if sig.MomentumScore < cfg.MinMomentumScore {
			continue
		}
		if cd, ok := st.DexStopLossCooldowns[sig.TokenAddress]; ok {
			if !ReentryAllowed(cd, sig.PriceUsd, sig.MomentumScore, cfg, now) {
				continue
			}
			delete(st.DexStopLossCooldowns, sig.TokenAddress)
			st.AppendLog("info", "dex", fmt.Sprintf("cooldown cleared for %s, re-entry allowed", sig.Symbol))
		}
		if !e.tierSlotFree(st, cfg, sig.Tier) {
			continue
		}
		if cfg.ChartAnalysisEnabled && e.chart != nil {
			analysis, err := e.chart.AnalyzeChart(ctx, sig.TokenAddress, sig.AgeHours)
			if err != nil {
				st.AppendLog("warn", "dex", fmt.Sprintf("chart analysis failed for %s: %v", sig.Symbol, err))
			} else if analysis == nil {
				st.AppendLog("info", "dex", fmt.Sprintf("no chart data for %s, proceeding", sig.Symbol))
			} else if analysis.EntryScore < cfg.ChartMinEntryScore {
				continue
			}
		}

		e.openPosition(st, cfg, sig, solUsd, now)
	}
}

func (e *Engine) tierSlotFree(st *types.AgentState, cfg types.DexConfig, tier types.Tier) bool {
	count := 0
	for _, pos := range st.DexPositions {
		if pos.Tier == tier {
			count++
		}
	}
	switch tier {
	case types.TierMicrospray:
		return count < cfg.MaxMicrospray
	case types.TierBreakout:
		return count < cfg.MaxBreakout
	case types.TierLottery:
		return count < cfg.MaxLottery
	default:
		return true
	}
}

// stakeFor sizes a position by tier.
func stakeFor(st *types.AgentState, cfg types.DexConfig, tier types.Tier) float64 {
	switch tier {
	case types.TierMicrospray:
		return cfg.MicrosprayPosSol
	case types.TierBreakout:
		return cfg.BreakoutPosSol
	case types.TierLottery:
		return cfg.LotteryPositionSol
	case types.TierEarly:
		return math.Min(st.DexPaperBalanceSol*cfg.PctOfBalance*cfg.EarlyMultiplier, cfg.MaxPositionSol)
	default:
		return math.Min(st.DexPaperBalanceSol*cfg.PctOfBalance, cfg.MaxPositionSol)
	}
}

// openPosition executes a paper buy: concentration cap, minimum viable size,
// buy-side slippage, gas.
func (e *Engine) openPosition(st *types.AgentState, cfg types.DexConfig, sig types.DexSignal, solUsd float64, now time.Time) {
	stake := stakeFor(st, cfg, sig.Tier)
	if stake <= 0 || stake+cfg.GasFeeSol > st.DexPaperBalanceSol {
		return
	}

	totalValue := PortfolioValueSol(st, solUsd)
	maxStake := totalValue * cfg.MaxSinglePosPct / 100
	if stake > maxStake {
		st.AppendLog("info", "dex", fmt.Sprintf("paper_buy_reduced %s %.4f -> %.4f SOL (%.0f%% cap)",
			sig.Symbol, stake, maxStake, cfg.MaxSinglePosPct))
		stake = maxStake
	}
	if stake < cfg.MinViableSol {
		st.AppendLog("info", "dex", fmt.Sprintf("skipping %s: %.4f SOL below minimum viable", sig.Symbol, stake))
		return
	}

	positionUSD := stake * solUsd
	entryPrice := BuyPrice(cfg.Slippage, sig.PriceUsd, positionUSD, sig.Liquidity)
	tokenAmount := positionUSD / entryPrice

	st.DexPaperBalanceSol -= stake + cfg.GasFeeSol
	st.DexGasSpentSol += cfg.GasFeeSol
	st.DexPositions[sig.TokenAddress] = types.DexPosition{
		TokenAddress:       sig.TokenAddress,
		Symbol:             sig.Symbol,
		EntryPrice:         entryPrice,
		EntryStakeSol:      stake,
		EntryTime:          now,
		TokenAmount:        tokenAmount,
		PeakPrice:          entryPrice,
		EntryMomentumScore: sig.MomentumScore,
		EntryLiquidity:     sig.Liquidity,
		Tier:               sig.Tier,
	}

	e.logger.Info("paper buy",
		zap.String("symbol", sig.Symbol),
		zap.String("tier", string(sig.Tier)),
		zap.Float64("stakeSol", stake),
		zap.Float64("momentum", sig.MomentumScore))
	st.AppendLog("info", "dex", fmt.Sprintf("paper_buy %s tier=%s %.4f SOL @ %.8f", sig.Symbol, sig.Tier, stake, entryPrice))
}

// PortfolioValueSol marks every open position to the latest scan price and
// adds the paper balance.
func PortfolioValueSol(st *types.AgentState, solUsd float64) float64 {
	prices := priceIndex(st.DexSignals)
	total := st.DexPaperBalanceSol
	for addr, pos := range st.DexPositions {
		price, ok := prices[addr]
		if !ok || price <= 0 {
			price = pos.EntryPrice
		}
		total += pos.TokenAmount * price / solUsd
	}
	return total
}

func (e *Engine) snapshot(st *types.AgentState, cfg types.DexConfig, solUsd float64, now time.Time) {
	total := PortfolioValueSol(st, solUsd)
	updateDrawdownPause(st, total, cfg, now)

	st.DexPortfolioHistory = append(st.DexPortfolioHistory, types.PortfolioSnapshot{
		Timestamp:     now,
		BalanceSol:    st.DexPaperBalanceSol,
		PositionsSol:  total - st.DexPaperBalanceSol,
		TotalSol:      total,
		OpenPositions: len(st.DexPositions),
	})
	if limit := cfg.MaxPortfolioHistory; limit > 0 && len(st.DexPortfolioHistory) > limit {
		st.DexPortfolioHistory = st.DexPortfolioHistory[len(st.DexPortfolioHistory)-limit:]
	}
}

func sortedPositionKeys(positions map[string]types.DexPosition) []string {
	keys := make([]string, 0, len(positions))
	for addr := range positions {
		keys = append(keys, addr)
	}
	sort.Strings(keys)
	return keys
}

func liquidityIndex(signals []types.DexSignal) map[string]float64 {
	idx := make(map[string]float64, len(signals))
	for _, sig := range signals {
		idx[sig.TokenAddress] = sig.Liquidity
	}
	return idx
}
