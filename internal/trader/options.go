package trader

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/pkg/types"
)

// buyOption pursues one bullish contract on the underlying: the expiration
// closest to the DTE midpoint, a call near the delta target, a limit order
// at mid.
func (t *Trader) buyOption(ctx context.Context, st *types.AgentState, account broker.Account, symbol string, now time.Time) (TradeResult, bool) {
	cfg := st.Config.Options

	chain, err := t.broker.GetOptionChain(ctx, symbol)
	if err != nil {
		st.AppendLog("warn", "options", fmt.Sprintf("chain fetch failed %s: %v", symbol, err))
		return TradeResult{}, false
	}

	targetDTE := float64(cfg.MinDTE+cfg.MaxDTE) / 2
	targetDelta := (cfg.MinDelta + cfg.MaxDelta) / 2

	var best *broker.OptionContract
	var bestScore float64
	for i, contract := range chain {
		if !contract.Call {
			continue
		}
		dte := contract.Expiration.Sub(now).Hours() / 24
		if dte < float64(cfg.MinDTE) || dte > float64(cfg.MaxDTE) {
			continue
		}
		if contract.Delta < cfg.MinDelta || contract.Delta > cfg.MaxDelta {
			continue
		}
		if contract.SpreadPct() > cfg.MaxSpreadPct {
			continue
		}
		if contract.Mid() <= 0 {
			continue
		}
		// Closeness to the DTE midpoint and the delta target, equally
		// weighted after normalization.
		score := math.Abs(dte-targetDTE)/math.Max(targetDTE, 1) +
			math.Abs(contract.Delta-targetDelta)/math.Max(targetDelta, 0.01)
		if best == nil || score < bestScore {
			best = &chain[i]
			bestScore = score
		}
	}
	if best == nil {
		st.AppendLog("info", "options", fmt.Sprintf("no suitable contract for %s", symbol))
		return TradeResult{}, false
	}

	mid := best.Mid()
	budget := account.Equity.InexactFloat64() * cfg.MaxPctPerTrade / 100
	contracts := int(budget / (mid * 100))
	if contracts < 1 {
		st.AppendLog("info", "options", fmt.Sprintf("cannot afford %s at %.2f", best.Symbol, mid))
		return TradeResult{}, false
	}

	qty := decimal.NewFromInt(int64(contracts))
	limit := decimal.NewFromFloat(mid).Round(2)
	if _, err := t.broker.CreateOrder(ctx, broker.OrderRequest{
		Symbol:      best.Symbol,
		Qty:         &qty,
		Side:        "buy",
		Type:        "limit",
		LimitPrice:  &limit,
		TimeInForce: "day",
	}); err != nil {
		st.AppendLog("error", "options", fmt.Sprintf("option order failed %s: %v", best.Symbol, err))
		return TradeResult{}, false
	}

	t.logger.Info("option order placed",
		zap.String("contract", best.Symbol),
		zap.Int("contracts", contracts),
		zap.Float64("limit", mid))
	st.AppendLog("info", "options", fmt.Sprintf("buy %dx %s @ %.2f", contracts, best.Symbol, mid))
	return TradeResult{Symbol: best.Symbol, Side: "buy", Reason: "options entry", Amount: float64(contracts) * mid * 100}, true
}

// EvaluateOptionExits applies the option stop-loss and take-profit bands.
func (t *Trader) EvaluateOptionExits(ctx context.Context, st *types.AgentState, positions []broker.Position, now time.Time) {
	cfg := st.Config.Options
	for _, pos := range positions {
		if !pos.IsOption() {
			continue
		}
		plPct := positionPlPct(pos)
		switch {
		case plPct <= -cfg.StopLossPct:
			t.Sell(ctx, st, pos, fmt.Sprintf("option stop loss at %.1f%%", plPct), now)
		case plPct >= cfg.TakeProfitPct:
			t.Sell(ctx, st, pos, fmt.Sprintf("option take profit at %.1f%%", plPct), now)
		}
	}
}
