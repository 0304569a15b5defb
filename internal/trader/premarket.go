package trader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/pkg/types"
)

// InPremarketWindow reports whether now falls in the weekday 09:25-09:29
// local planning window.
func InPremarketWindow(now time.Time) bool {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= 9*60+25 && minutes < 9*60+30
}

// InOpeningWindow reports whether now falls in the 09:30-09:32 execution
// window following the open.
func InOpeningWindow(now time.Time) bool {
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= 9*60+30 && minutes < 9*60+33
}

// BuildPremarketPlan snapshots the strongest researched BUY candidates into
// a plan executed at the open.
func (t *Trader) BuildPremarketPlan(st *types.AgentState, now time.Time) {
	cfg := st.Config.Trading

	var buys []types.PremarketBuy
	for symbol, research := range st.SignalResearch {
		if research.Verdict != types.VerdictBuy || research.Confidence < cfg.MinAnalystConfidence {
			continue
		}
		if _, held := st.PositionEntries[symbol]; held {
			continue
		}
		buys = append(buys, types.PremarketBuy{
			Symbol:     symbol,
			Confidence: research.Confidence,
			Reason:     research.Reasoning,
		})
	}
	sort.Slice(buys, func(i, j int) bool { return buys[i].Confidence > buys[j].Confidence })
	if len(buys) > 3 {
		buys = buys[:3]
	}

	st.PremarketPlan = &types.PremarketPlan{
		CreatedAt: now,
		Buys:      buys,
		Notes:     fmt.Sprintf("%d candidates from overnight research", len(buys)),
	}
	st.AppendLog("info", "premarket", fmt.Sprintf("plan built with %d buys", len(buys)))
}

// ExecutePremarketPlan executes a pending plan inside the opening window.
// Plans older than the current session are discarded.
func (t *Trader) ExecutePremarketPlan(ctx context.Context, st *types.AgentState, account broker.Account, crisisMult float64, now time.Time) []TradeResult {
	plan := st.PremarketPlan
	if plan == nil || plan.Executed {
		return nil
	}
	if now.Sub(plan.CreatedAt) > 2*time.Hour {
		st.PremarketPlan = nil
		return nil
	}

	var results []TradeResult
	for _, buy := range plan.Buys {
		if res, ok := t.Buy(ctx, st, account, buy.Symbol, buy.Confidence, crisisMult, false, "premarket: "+buy.Reason, now); ok {
			results = append(results, res)
		}
	}
	plan.Executed = true
	st.AppendLog("info", "premarket", fmt.Sprintf("plan executed: %d orders", len(results)))
	return results
}
