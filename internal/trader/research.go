package trader

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/internal/llm"
	"github.com/tradewind-labs/tradewind/pkg/types"
)

// ResearchTopSignals runs the research model over the strongest unresearched
// signals, at most five per pass.
func (t *Trader) ResearchTopSignals(ctx context.Context, st *types.AgentState, now time.Time) {
	type scored struct {
		symbol   string
		strength float64
	}
	bySymbol := make(map[string]*scored)
	for _, sig := range st.SignalCache {
		s, ok := bySymbol[sig.Symbol]
		if !ok {
			s = &scored{symbol: sig.Symbol}
			bySymbol[sig.Symbol] = s
		}
		s.strength += math.Abs(sig.Sentiment)
	}

	ranked := make([]*scored, 0, len(bySymbol))
	for _, s := range bySymbol {
		// Recent research is still fresh; skip.
		if r, ok := st.SignalResearch[s.symbol]; ok && now.Sub(r.Timestamp) < 30*time.Minute {
			continue
		}
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].strength > ranked[j].strength })
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	for _, s := range ranked {
		brief := t.buildBrief(ctx, st, s.symbol)
		result, err := t.researcher.ResearchSignal(ctx, brief, &st.CostTracker)
		if err != nil {
			t.logger.Warn("signal research failed", zap.String("symbol", s.symbol), zap.Error(err))
			continue
		}
		st.SignalResearch[s.symbol] = *result
		st.AppendLog("info", "research", fmt.Sprintf("%s: %s %.2f", s.symbol, result.Verdict, result.Confidence))
	}
	st.LastResearch = now
}

// ResearchPositions refreshes the research verdict for each held symbol.
func (t *Trader) ResearchPositions(ctx context.Context, st *types.AgentState, positions []broker.Position, now time.Time) {
	for _, pos := range positions {
		if pos.IsOption() {
			continue
		}
		if r, ok := st.PositionResearch[pos.Symbol]; ok && now.Sub(r.Timestamp) < 30*time.Minute {
			continue
		}
		brief := t.buildBrief(ctx, st, pos.Symbol)
		brief.Price = pos.CurrentPrice.InexactFloat64()
		result, err := t.researcher.ResearchSignal(ctx, brief, &st.CostTracker)
		if err != nil {
			t.logger.Warn("position research failed", zap.String("symbol", pos.Symbol), zap.Error(err))
			continue
		}
		st.PositionResearch[pos.Symbol] = *result
	}
	st.LastPosResearch = now
}

// AnalystPass reviews the top candidates plus holdings with the analyst
// model. SELL calls are executed only after the minimum hold; BUY calls flow
// into the research cache for the entry pass.
func (t *Trader) AnalystPass(ctx context.Context, st *types.AgentState, positions []broker.Position, now time.Time) {
	cfg := st.Config.Trading

	var candidates []llm.SignalBrief
	seen := make(map[string]bool)
	for _, sig := range st.SignalCache {
		if seen[sig.Symbol] {
			continue
		}
		seen[sig.Symbol] = true
		candidates = append(candidates, llm.SignalBrief{
			Symbol:       sig.Symbol,
			Sentiment:    sig.Sentiment,
			SocialVolume: currentSocialVolume(st, sig.Symbol),
			IsCrypto:     sig.IsCrypto,
		})
		if len(candidates) >= 10 {
			break
		}
	}

	posBriefs := make([]llm.PositionBrief, 0, len(positions))
	posBySymbol := make(map[string]broker.Position, len(positions))
	for _, pos := range positions {
		if pos.IsOption() {
			continue
		}
		posBySymbol[pos.Symbol] = pos
		holdHours := 0.0
		if entry, ok := st.PositionEntries[pos.Symbol]; ok {
			holdHours = now.Sub(entry.EntryTime).Hours()
		}
		posBriefs = append(posBriefs, llm.PositionBrief{
			Symbol:       pos.Symbol,
			PlPct:        positionPlPct(pos),
			HoldHours:    holdHours,
			MarketValue:  pos.MarketValue.InexactFloat64(),
			CurrentPrice: pos.CurrentPrice.InexactFloat64(),
		})
	}

	calls, err := t.researcher.AnalystReview(ctx, candidates, posBriefs, &st.CostTracker)
	if err != nil {
		t.logger.Warn("analyst pass failed", zap.Error(err))
		st.LastAnalyst = now
		return
	}

	for _, call := range calls {
		switch call.Action {
		case types.VerdictSell:
			pos, held := posBySymbol[call.Symbol]
			if !held {
				continue
			}
			// Min-hold applies to SELL recommendations only.
			if entry, ok := st.PositionEntries[call.Symbol]; ok {
				if now.Sub(entry.EntryTime) < time.Duration(cfg.LLMMinHoldMinutes*float64(time.Minute)) {
					st.AppendLog("info", "analyst", fmt.Sprintf("sell %s deferred: under minimum hold", call.Symbol))
					continue
				}
			}
			t.Sell(ctx, st, pos, "analyst: "+call.Reasoning, now)
		case types.VerdictBuy:
			st.SignalResearch[call.Symbol] = types.ResearchResult{
				Symbol:     call.Symbol,
				Verdict:    types.VerdictBuy,
				Confidence: call.Confidence,
				Reasoning:  call.Reasoning,
				Timestamp:  now,
			}
		}
	}
	st.LastAnalyst = now
}

func (t *Trader) buildBrief(ctx context.Context, st *types.AgentState, symbol string) llm.SignalBrief {
	sentiment, volume, sources := signalSummary(st, symbol)
	brief := llm.SignalBrief{
		Symbol:       symbol,
		Sentiment:    sentiment,
		SocialVolume: volume,
		Sources:      sources,
	}
	for _, sig := range st.SignalCache {
		if sig.Symbol == symbol && sig.IsCrypto {
			brief.IsCrypto = true
			break
		}
	}

	var snap broker.Snapshot
	var err error
	if brief.IsCrypto {
		snap, err = t.broker.GetCryptoSnapshot(ctx, symbol)
	} else {
		snap, err = t.broker.GetSnapshot(ctx, symbol)
	}
	if err == nil {
		brief.Price = snap.Price
		brief.DayChangePct = snap.DayChangePct
	}
	return brief
}
