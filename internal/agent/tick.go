package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/internal/crisis"
	"github.com/tradewind-labs/tradewind/internal/dex"
	"github.com/tradewind-labs/tradewind/internal/signals"
	"github.com/tradewind-labs/tradewind/internal/trader"
	"github.com/tradewind-labs/tradewind/pkg/types"
)

// emit forwards an event to the WebSocket feed when one is attached.
func (a *Agent) emit(event string, data interface{}) {
	if a.events != nil {
		a.events(event, data)
	}
}

// tick is the serialized unit of work. Any panic is caught at the top; the
// next alarm is always rescheduled while the agent stays enabled.
func (a *Agent) tick(ctx context.Context) {
	st := a.state
	if !st.Enabled {
		a.stopTimer()
		if err := a.store.DeleteAlarm(); err != nil {
			a.logger.Warn("failed to clear alarm", zap.Error(err))
		}
		return
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("tick panicked", zap.Any("panic", r))
			st.AppendLog("error", "agent", fmt.Sprintf("tick panicked: %v", r))
			a.metrics.TickErrors.Inc()
		}
		a.persist()
		a.reschedule(time.Now())
		a.metrics.TicksTotal.Inc()
		a.metrics.TickDuration.Observe(time.Since(start).Seconds())
		a.observeState()
	}()

	now := start
	clock, clockErr := a.broker.GetClock(ctx)
	if clockErr != nil {
		a.logger.Warn("clock fetch failed, treating market as closed", zap.Error(clockErr))
	}

	// Crisis check runs first; at level 3 all trading is skipped this tick.
	crisisCfg := st.Config.Crisis
	if crisisCfg.Enabled {
		if now.Sub(st.LastCrisisCheck) >= time.Duration(crisisCfg.CheckIntervalMs)*time.Millisecond {
			if transition := a.crisis.Check(ctx, st, now); transition != nil {
				a.emit("crisis_alert", transition)
				if transition.Upward() {
					a.notifier.NotifyCrisis(ctx, transition.To,
						fmt.Sprintf("Crisis level %s -> %s (score %d): %v",
							transition.From, transition.To, transition.Score, transition.Triggered))
					a.metrics.NotificationsSent.Inc()
				}
			}
		}
		if st.Crisis.Level >= types.CrisisHighAlert && !st.Crisis.ManualOverride {
			a.executeCrisisActions(ctx, now)
			if st.Crisis.Level == types.CrisisFullCrisis {
				return
			}
		}
	}

	if now.Sub(st.LastDataGather) >= time.Duration(st.Config.DataPollIntervalMs)*time.Millisecond {
		fresh := a.gatherer.Gather(ctx, st.Config)
		st.SignalCache = signals.MergeCache(st.SignalCache, fresh, st.Config.Signals, now)
		st.LastDataGather = now
		st.AppendLog("info", "agent", fmt.Sprintf("gathered %d signals, cache %d", len(fresh), len(st.SignalCache)))
	}

	if now.Sub(st.LastResearch) >= time.Duration(st.Config.ResearchIntervalMs)*time.Millisecond {
		a.trader.ResearchTopSignals(ctx, st, now)
	}

	if trader.InPremarketWindow(now) && st.PremarketPlan == nil {
		a.trader.BuildPremarketPlan(st, now)
	}

	crisisMult := crisis.PositionMultiplier(st.Crisis.Level)
	stopLossPct := crisis.EffectiveStopLossPct(st.Crisis.Level, st.Config)

	if st.Config.Trading.CryptoEnabled {
		a.runCryptoTrading(ctx, st, crisisMult, stopLossPct, now)
	}

	if st.Config.Dex.Enabled {
		closed := a.dex.Run(ctx, st, now)
		for _, trade := range closed {
			a.metrics.DexTrades.WithLabelValues(string(trade.ExitReason)).Inc()
			a.emit("dex_update", trade)
			a.notifier.NotifyTrade(ctx, trade.Symbol,
				fmt.Sprintf("DEX %s %s: %.1f%% (%.4f SOL)", trade.ExitReason, trade.Symbol, trade.PnLPct, trade.PnLSol))
		}
	}

	if clockErr == nil && clock.IsOpen {
		a.runMarketHours(ctx, st, clock, crisisMult, stopLossPct, now)
	}
}

// runCryptoTrading handles crypto exits then entries; it runs around the
// clock.
func (a *Agent) runCryptoTrading(ctx context.Context, st *types.AgentState, crisisMult, stopLossPct float64, now time.Time) {
	positions, err := a.broker.GetPositions(ctx)
	if err != nil {
		a.logger.Warn("positions fetch failed", zap.Error(err))
		return
	}
	var cryptoPositions []broker.Position
	for _, pos := range positions {
		if pos.IsCrypto() {
			cryptoPositions = append(cryptoPositions, pos)
		}
	}

	a.reportTrades(ctx, a.trader.RunExits(ctx, st, cryptoPositions, stopLossPct, now))

	account, err := a.broker.GetAccount(ctx)
	if err != nil {
		a.logger.Warn("account fetch failed", zap.Error(err))
		return
	}
	a.reportTrades(ctx, a.trader.RunEntries(ctx, st, account, positions, crisisMult, false, true, now))
}

// reportTrades pushes executed trades to metrics, notifications, and the
// event feed.
func (a *Agent) reportTrades(ctx context.Context, results []trader.TradeResult) {
	for _, res := range results {
		a.metrics.OrdersSubmitted.WithLabelValues(res.Side).Inc()
		a.emit("trade_update", res)
		a.notifier.NotifyTrade(ctx, res.Symbol,
			fmt.Sprintf("%s %s $%.2f: %s", res.Side, res.Symbol, res.Amount, res.Reason))
	}
}

// runMarketHours is the equities flow: pre-market plan execution, exits,
// entries, analyst, position research, options, breaking news.
func (a *Agent) runMarketHours(ctx context.Context, st *types.AgentState, clock broker.Clock, crisisMult, stopLossPct float64, now time.Time) {
	positions, err := a.broker.GetPositions(ctx)
	if err != nil {
		a.logger.Warn("positions fetch failed", zap.Error(err))
		return
	}
	account, err := a.broker.GetAccount(ctx)
	if err != nil {
		a.logger.Warn("account fetch failed", zap.Error(err))
		return
	}

	if trader.InOpeningWindow(now) && st.PremarketPlan != nil && !st.PremarketPlan.Executed {
		a.reportTrades(ctx, a.trader.ExecutePremarketPlan(ctx, st, account, crisisMult, now))
	}

	var equityPositions []broker.Position
	for _, pos := range positions {
		if !pos.IsCrypto() && !pos.IsOption() {
			equityPositions = append(equityPositions, pos)
		}
	}
	a.reportTrades(ctx, a.trader.RunExits(ctx, st, equityPositions, stopLossPct, now))

	if now.Sub(st.LastAnalyst) >= time.Duration(st.Config.AnalystIntervalMs)*time.Millisecond {
		a.trader.AnalystPass(ctx, st, positions, now)
	}

	a.reportTrades(ctx, a.trader.RunEntries(ctx, st, account, positions, crisisMult, true, false, now))

	if now.Sub(st.LastPosResearch) >= time.Duration(st.Config.PositionResearchIntervalMs)*time.Millisecond {
		a.trader.ResearchPositions(ctx, st, positions, now)
	}

	if st.Config.Options.Enabled {
		a.trader.EvaluateOptionExits(ctx, st, positions, now)
	}
	if st.Config.Twitter.Enabled {
		a.trader.CheckBreakingNews(ctx, st, positions, now)
	}
}

// executeCrisisActions applies level 2 and 3 effects: close weak holdings at
// level 2, liquidate everything at level 3.
func (a *Agent) executeCrisisActions(ctx context.Context, now time.Time) {
	st := a.state
	level := st.Crisis.Level

	positions, err := a.broker.GetPositions(ctx)
	if err != nil {
		a.logger.Warn("positions fetch failed during crisis", zap.Error(err))
		positions = nil
	}

	switch level {
	case types.CrisisFullCrisis:
		for _, pos := range positions {
			if a.trader.Sell(ctx, st, pos, "crisis level 3 liquidation", now) {
				st.Crisis.PositionsClosedInCrisis = append(st.Crisis.PositionsClosedInCrisis, pos.Symbol)
			}
		}
		for _, trade := range a.dex.LiquidateAll(ctx, st, now) {
			st.Crisis.PositionsClosedInCrisis = append(st.Crisis.PositionsClosedInCrisis, trade.Symbol)
			a.metrics.DexTrades.WithLabelValues(string(trade.ExitReason)).Inc()
		}
		st.AppendLog("warn", "crisis", "level 3: all positions liquidated, trading suspended this tick")

	case types.CrisisHighAlert:
		minProfit := st.Config.Crisis.Level2MinProfitToHold
		for _, pos := range positions {
			if pos.IsOption() {
				continue
			}
			if plPct := pos.UnrealizedPLPC.InexactFloat64() * 100; plPct < minProfit {
				if a.trader.Sell(ctx, st, pos, fmt.Sprintf("crisis level 2: below %.1f%% profit floor", minProfit), now) {
					st.Crisis.PositionsClosedInCrisis = append(st.Crisis.PositionsClosedInCrisis, pos.Symbol)
				}
			}
		}
	}
}

// observeState refreshes gauges after a tick.
func (a *Agent) observeState() {
	st := a.state
	a.metrics.DexPaperBalance.Set(st.DexPaperBalanceSol)
	a.metrics.DexOpenPositions.Set(float64(len(st.DexPositions)))
	a.metrics.CrisisLevel.Set(float64(st.Crisis.Level))
	a.metrics.SignalCacheSize.Set(float64(len(st.SignalCache)))

	// The cost ledger lives in durable state, so counters get the delta
	// since the previous observation.
	if d := st.CostTracker.TotalCostUSD - a.lastCostUSD; d > 0 {
		a.metrics.LLMCostUSD.Add(d)
		a.lastCostUSD = st.CostTracker.TotalCostUSD
	}
	if d := st.CostTracker.PromptTokens - a.lastPromptTokens; d > 0 {
		a.metrics.LLMTokens.WithLabelValues("prompt").Add(float64(d))
		a.lastPromptTokens = st.CostTracker.PromptTokens
	}
	if d := st.CostTracker.CompletionTokens - a.lastCompletionTokens; d > 0 {
		a.metrics.LLMTokens.WithLabelValues("completion").Add(float64(d))
		a.lastCompletionTokens = st.CostTracker.CompletionTokens
	}

	if st.DexPeakValue > 0 {
		total := dex.PortfolioValueSol(st, st.Config.Dex.SolPriceFallbackUsd)
		drawdown := (st.DexPeakValue - total) / st.DexPeakValue * 100
		if drawdown < 0 {
			drawdown = 0
		}
		a.metrics.DexDrawdownPct.Set(drawdown)
	}
}
