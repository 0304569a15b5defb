package dex

import (
	"time"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// ReentryAllowed checks a stop-loss cooldown against the three clear paths:
// price recovery past the recovery threshold, strong momentum with minimum
// elapsed time, or the fallback wall clock.
func ReentryAllowed(cd types.StopLossCooldown, currentPrice, momentumScore float64, cfg types.DexConfig, now time.Time) bool {
	if currentPrice >= cd.ExitPrice*(1+cfg.ReentryRecoveryPct) {
		return true
	}
	minElapsed := time.Duration(cfg.ReentryMinElapsedMin * float64(time.Minute))
	if momentumScore >= cfg.ReentryMinMomentum && now.Sub(cd.ExitTime) >= minElapsed {
		return true
	}
	return now.After(cd.FallbackExpiry)
}

// PruneCooldowns drops cooldown entries older than 24h. Runs once per tick.
func PruneCooldowns(st *types.AgentState, now time.Time) {
	for addr, cd := range st.DexStopLossCooldowns {
		if now.Sub(cd.ExitTime) > 24*time.Hour {
			delete(st.DexStopLossCooldowns, addr)
		}
	}
}

// recordStopLoss appends a breaker event and trips the breaker when the
// rolling window fills.
func recordStopLoss(st *types.AgentState, symbol string, cfg types.DexConfig, now time.Time) bool {
	window := time.Duration(cfg.CircuitBreakerWindowHours * float64(time.Hour))

	kept := st.DexRecentStopLosses[:0]
	for _, ev := range st.DexRecentStopLosses {
		if now.Sub(ev.Timestamp) <= window {
			kept = append(kept, ev)
		}
	}
	st.DexRecentStopLosses = append(kept, types.StopLossEvent{Timestamp: now, Symbol: symbol})

	if len(st.DexRecentStopLosses) >= cfg.CircuitBreakerLosses && st.DexCircuitBreakerUntil == nil {
		until := now.Add(time.Duration(cfg.CircuitBreakerPauseHours * float64(time.Hour)))
		st.DexCircuitBreakerUntil = &until
		return true
	}
	return false
}

// breakerState is the outcome of a breaker evaluation.
type breakerState int

const (
	breakerInactive breakerState = iota
	breakerActive
	breakerClearedEarly
	breakerExpired
)

// evalBreaker checks the circuit breaker. Early clears require the minimum
// cooldown to have elapsed plus either a recovered open position or a fresh
// strong-momentum signal that isn't already held.
func evalBreaker(st *types.AgentState, signals []types.DexSignal, cfg types.DexConfig, now time.Time) breakerState {
	if st.DexCircuitBreakerUntil == nil {
		return breakerInactive
	}
	if now.After(*st.DexCircuitBreakerUntil) {
		st.DexCircuitBreakerUntil = nil
		return breakerExpired
	}

	pause := time.Duration(cfg.CircuitBreakerPauseHours * float64(time.Hour))
	trippedAt := st.DexCircuitBreakerUntil.Add(-pause)
	minCooldown := time.Duration(cfg.BreakerMinCooldownMinutes * float64(time.Minute))
	if now.Sub(trippedAt) < minCooldown {
		return breakerActive
	}

	prices := priceIndex(signals)
	for addr, pos := range st.DexPositions {
		if price, ok := prices[addr]; ok && price > pos.EntryPrice {
			st.DexCircuitBreakerUntil = nil
			return breakerClearedEarly
		}
	}
	for _, sig := range signals {
		if sig.MomentumScore >= cfg.ReentryMinMomentum {
			if _, held := st.DexPositions[sig.TokenAddress]; !held {
				st.DexCircuitBreakerUntil = nil
				return breakerClearedEarly
			}
		}
	}
	return breakerActive
}

// updateDrawdownPause tracks the portfolio peak and toggles the drawdown
// halt. New highs clear the pause.
func updateDrawdownPause(st *types.AgentState, totalValue float64, cfg types.DexConfig, now time.Time) {
	if totalValue >= st.DexPeakValue {
		st.DexPeakValue = totalValue
		st.DexDrawdownPaused = false
		return
	}
	if st.DexPeakValue <= 0 {
		return
	}
	drawdown := (st.DexPeakValue - totalValue) / st.DexPeakValue * 100
	if drawdown >= cfg.MaxDrawdownPct {
		st.DexDrawdownPaused = true
	}
}

// UpdateStreakAndDrawdown folds one closed trade into the loss-streak and
// balance-drawdown counters. Deterministic: replaying the trade history
// reproduces the same maxima.
func UpdateStreakAndDrawdown(st *types.AgentState, trade types.DexTradeRecord) {
	if trade.PnLSol < 0 {
		st.DexCurrentLossStreak++
		if st.DexCurrentLossStreak > st.DexMaxConsecutiveLosses {
			st.DexMaxConsecutiveLosses = st.DexCurrentLossStreak
		}
	} else {
		st.DexCurrentLossStreak = 0
	}

	balance := st.DexPaperBalanceSol
	if balance >= st.DexPeakBalance {
		st.DexPeakBalance = balance
		if st.DexDrawdownStartTime != nil {
			duration := trade.ExitTime.Sub(*st.DexDrawdownStartTime).Milliseconds()
			if duration > st.DexMaxDrawdownDurMs {
				st.DexMaxDrawdownDurMs = duration
			}
			st.DexDrawdownStartTime = nil
		}
		return
	}

	if st.DexDrawdownStartTime == nil {
		start := trade.ExitTime
		st.DexDrawdownStartTime = &start
	}
	if st.DexPeakBalance > 0 {
		drawdown := (st.DexPeakBalance - balance) / st.DexPeakBalance * 100
		if drawdown > st.DexMaxDrawdownPct {
			st.DexMaxDrawdownPct = drawdown
		}
	}
}

func priceIndex(signals []types.DexSignal) map[string]float64 {
	idx := make(map[string]float64, len(signals))
	for _, sig := range signals {
		idx[sig.TokenAddress] = sig.PriceUsd
	}
	return idx
}
