package trader

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/internal/llm"
	"github.com/tradewind-labs/tradewind/pkg/types"
	"github.com/tradewind-labs/tradewind/pkg/utils"
)

// Trader runs the equity/crypto flow: exits first, then researched entries.
type Trader struct {
	logger     *zap.Logger
	broker     broker.Broker
	researcher *llm.Researcher
	news       NewsChecker
}

// NewTrader wires the trader. news may be nil.
func NewTrader(logger *zap.Logger, brk broker.Broker, researcher *llm.Researcher, news NewsChecker) *Trader {
	return &Trader{
		logger:     logger.Named("trader"),
		broker:     brk,
		researcher: researcher,
		news:       news,
	}
}

// TradeResult describes one executed or refused action, for notifications.
type TradeResult struct {
	Symbol string
	Side   string
	Reason string
	Amount float64
}

// RunExits evaluates take-profit, stop-loss, then staleness for every
// non-option position. Exits always run before entries. stopLossPct is
// passed in because crisis levels tighten it.
func (t *Trader) RunExits(ctx context.Context, st *types.AgentState, positions []broker.Position, stopLossPct float64, now time.Time) []TradeResult {
	cfg := st.Config.Trading
	var results []TradeResult

	for _, pos := range positions {
		if pos.IsOption() {
			continue
		}
		plPct := positionPlPct(pos)

		switch {
		case plPct >= cfg.TakeProfitPct:
			if res, ok := t.sell(ctx, st, pos, fmt.Sprintf("take profit at %.1f%%", plPct), now); ok {
				results = append(results, res)
			}
		case plPct <= -stopLossPct:
			if res, ok := t.sell(ctx, st, pos, fmt.Sprintf("stop loss at %.1f%%", plPct), now); ok {
				results = append(results, res)
			}
		default:
			entry, tracked := st.PositionEntries[pos.Symbol]
			if !tracked {
				continue
			}
			staleness := ScoreStaleness(entry, plPct, currentSocialVolume(st, pos.Symbol), cfg, now)
			st.StalenessAnalysis[pos.Symbol] = staleness
			if staleness.IsStale {
				reason := fmt.Sprintf("stale (score %.0f): %s", staleness.Score, strings.Join(staleness.Reasons, "; "))
				if res, ok := t.sell(ctx, st, pos, reason, now); ok {
					results = append(results, res)
				}
			}
		}
	}
	return results
}

// RunEntries researches the strongest unheld signals and buys the top
// candidates by confidence. The asset-class switches let the caller run
// crypto around the clock and equities only during market hours.
func (t *Trader) RunEntries(ctx context.Context, st *types.AgentState, account broker.Account, positions []broker.Position, crisisMult float64, allowEquity, allowCrypto bool, now time.Time) []TradeResult {
	cfg := st.Config.Trading
	if crisisMult <= 0 {
		st.AppendLog("info", "trader", "entries skipped: CRISIS_MODE_BLOCKING")
		return nil
	}

	held := make(map[string]bool, len(positions))
	for _, pos := range positions {
		held[pos.Symbol] = true
	}

	type candidate struct {
		symbol     string
		confidence float64
		isCrypto   bool
		research   types.ResearchResult
	}
	var candidates []candidate
	considered := make(map[string]bool)
	for _, sig := range st.SignalCache {
		if held[sig.Symbol] || considered[sig.Symbol] || sig.RawSentiment < cfg.MinSentimentScore {
			continue
		}
		if sig.IsCrypto && !allowCrypto {
			continue
		}
		if !sig.IsCrypto && (!allowEquity || !cfg.StocksEnabled) {
			continue
		}
		research, ok := st.SignalResearch[sig.Symbol]
		if !ok || research.Verdict != types.VerdictBuy {
			continue
		}

		confidence := research.Confidence
		if conf, ok := st.TwitterConfirmations[sig.Symbol]; ok {
			if conf.Confirmed {
				confidence = math.Min(1, confidence*1.15)
			} else if conf.Contradict {
				confidence *= 0.85
			}
		}
		considered[sig.Symbol] = true
		candidates = append(candidates, candidate{symbol: sig.Symbol, confidence: confidence, isCrypto: sig.IsCrypto, research: research})
	}

	// Highest confidence first, top 3 drive buys.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].confidence > candidates[j].confidence
	})
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	var results []TradeResult
	for _, cand := range candidates {
		if cand.confidence < cfg.MinAnalystConfidence {
			continue
		}
		if res, ok := t.Buy(ctx, st, account, cand.symbol, cand.confidence, crisisMult, cand.isCrypto, cand.research.Reasoning, now); ok {
			results = append(results, res)
			held[cand.symbol] = true
		}

		optCfg := st.Config.Options
		if optCfg.Enabled && !cand.isCrypto &&
			cand.confidence >= optCfg.MinConfidence &&
			cand.research.EntryQuality == "excellent" {
			if res, ok := t.buyOption(ctx, st, account, cand.symbol, now); ok {
				results = append(results, res)
			}
		}
	}
	return results
}

// Buy submits a notional market order sized by confidence and the crisis
// multiplier. Invariant violations refuse the order with a logged reason.
func (t *Trader) Buy(ctx context.Context, st *types.AgentState, account broker.Account, symbol string, confidence, crisisMult float64, isCrypto bool, reason string, now time.Time) (TradeResult, bool) {
	cfg := st.Config.Trading
	cash := account.Cash.InexactFloat64()

	if symbol == "" {
		st.AppendLog("warn", "trader", "buy_blocked_invariant: empty symbol")
		return TradeResult{}, false
	}
	if cash <= 0 {
		st.AppendLog("warn", "trader", fmt.Sprintf("buy_blocked_no_cash %s", symbol))
		return TradeResult{}, false
	}
	if confidence <= 0 || confidence > 1 || math.IsNaN(confidence) {
		st.AppendLog("warn", "trader", fmt.Sprintf("buy_blocked_invariant %s: confidence %v", symbol, confidence))
		return TradeResult{}, false
	}

	sizePct := math.Min(20, cfg.PositionSizePctOfCash) / 100
	size := math.Min(cash*sizePct*confidence*crisisMult, cfg.MaxPositionValue*crisisMult)
	if !utils.IsFinite(size) || size <= 0 || size > cfg.MaxPositionValue*1.01 {
		st.AppendLog("warn", "trader", fmt.Sprintf("buy_blocked_invariant %s: size %v", symbol, size))
		return TradeResult{}, false
	}

	if !isCrypto {
		asset, err := t.broker.GetAsset(ctx, symbol)
		if err != nil {
			st.AppendLog("warn", "trader", fmt.Sprintf("buy_blocked_asset_lookup %s: %v", symbol, err))
			return TradeResult{}, false
		}
		if !exchangeAllowed(asset.Exchange, cfg.AllowedExchanges) {
			st.AppendLog("warn", "trader", fmt.Sprintf("buy_blocked_exchange %s on %s", symbol, asset.Exchange))
			return TradeResult{}, false
		}
	}

	tif := "day"
	if isCrypto {
		tif = "gtc"
	}
	notional := decimal.NewFromFloat(size).Round(2)
	if _, err := t.broker.CreateOrder(ctx, broker.OrderRequest{
		Symbol:      symbol,
		Notional:    &notional,
		Side:        "buy",
		Type:        "market",
		TimeInForce: tif,
	}); err != nil {
		st.AppendLog("error", "trader", fmt.Sprintf("buy order failed %s: %v", symbol, err))
		return TradeResult{}, false
	}

	sentiment, volume, sources := signalSummary(st, symbol)
	st.PositionEntries[symbol] = types.PositionEntry{
		Symbol:            symbol,
		EntryTime:         now,
		EntrySentiment:    sentiment,
		EntrySocialVolume: volume,
		EntrySources:      sources,
		EntryReason:       reason,
		PeakSentiment:     sentiment,
	}

	t.logger.Info("buy submitted",
		zap.String("symbol", symbol),
		zap.Float64("notional", size),
		zap.Float64("confidence", confidence))
	st.AppendLog("info", "trader", fmt.Sprintf("buy %s $%.2f confidence %.2f", symbol, size, confidence))
	return TradeResult{Symbol: symbol, Side: "buy", Reason: reason, Amount: size}, true
}

// sell closes one position, guarding the pattern-day-trader rule for
// same-day equity round trips.
func (t *Trader) sell(ctx context.Context, st *types.AgentState, pos broker.Position, reason string, now time.Time) (TradeResult, bool) {
	entry, tracked := st.PositionEntries[pos.Symbol]
	if !pos.IsCrypto() && tracked && sameDay(entry.EntryTime, now) {
		account, err := t.broker.GetAccount(ctx)
		if err != nil {
			st.AppendLog("warn", "trader", fmt.Sprintf("sell deferred %s: account fetch failed: %v", pos.Symbol, err))
			return TradeResult{}, false
		}
		if account.Equity.LessThan(decimal.NewFromInt(25_000)) {
			if account.DaytradeCount >= 3 {
				st.AppendLog("warn", "trader", fmt.Sprintf("sell_blocked_pdt %s: %d day trades on sub-25k account", pos.Symbol, account.DaytradeCount))
				return TradeResult{}, false
			}
			if account.DaytradeCount == 2 {
				st.AppendLog("warn", "trader", fmt.Sprintf("pdt warning %s: next day trade is the last before restriction", pos.Symbol))
			}
		}
	}

	if err := t.broker.ClosePosition(ctx, pos.Symbol); err != nil {
		st.AppendLog("error", "trader", fmt.Sprintf("sell failed %s: %v", pos.Symbol, err))
		return TradeResult{}, false
	}

	delete(st.PositionEntries, pos.Symbol)
	delete(st.SocialHistory, pos.Symbol)
	delete(st.StalenessAnalysis, pos.Symbol)

	t.logger.Info("position closed", zap.String("symbol", pos.Symbol), zap.String("reason", reason))
	st.AppendLog("info", "trader", fmt.Sprintf("sell %s: %s", pos.Symbol, reason))
	return TradeResult{Symbol: pos.Symbol, Side: "sell", Reason: reason, Amount: pos.MarketValue.InexactFloat64()}, true
}

// Sell is the exported close path used by the analyst and crisis flows.
func (t *Trader) Sell(ctx context.Context, st *types.AgentState, pos broker.Position, reason string, now time.Time) bool {
	_, ok := t.sell(ctx, st, pos, reason, now)
	return ok
}

func positionPlPct(pos broker.Position) float64 {
	return pos.UnrealizedPLPC.InexactFloat64() * 100
}

func exchangeAllowed(exchange string, allowed []string) bool {
	for _, e := range allowed {
		if strings.EqualFold(e, exchange) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func currentSocialVolume(st *types.AgentState, symbol string) int {
	total := 0
	for _, sig := range st.SignalCache {
		if sig.Symbol == symbol {
			total += sig.Volume
		}
	}
	return total
}

func signalSummary(st *types.AgentState, symbol string) (sentiment float64, volume int, sources []string) {
	seen := make(map[string]bool)
	for _, sig := range st.SignalCache {
		if sig.Symbol != symbol {
			continue
		}
		sentiment += sig.Sentiment
		volume += sig.Volume
		if !seen[string(sig.Source)] {
			seen[string(sig.Source)] = true
			sources = append(sources, string(sig.Source))
		}
	}
	return sentiment, volume, sources
}
