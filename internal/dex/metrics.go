package dex

import (
	"math"

	"github.com/tradewind-labs/tradewind/pkg/types"
	"github.com/tradewind-labs/tradewind/pkg/utils"
)

// TradingMetrics is derived on read from the trade history; no running sums
// are trusted.
type TradingMetrics struct {
	Trades               int     `json:"trades"`
	Wins                 int     `json:"wins"`
	Losses               int     `json:"losses"`
	WinRate              float64 `json:"winRate"`
	AvgWinPct            float64 `json:"avgWinPct"`
	AvgLossPct           float64 `json:"avgLossPct"`
	Expectancy           float64 `json:"expectancy"`
	ProfitFactor         float64 `json:"profitFactor"`
	Sharpe               float64 `json:"sharpe"`
	RealizedPnLSol       float64 `json:"realizedPnlSol"`
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses"`
	MaxDrawdownPct       float64 `json:"maxDrawdownPct"`
	MaxDrawdownDurMs     int64   `json:"maxDrawdownDurationMs"`
	CurrentLossStreak    int     `json:"currentLossStreak"`
}

// CalculateTradingMetrics computes win rate, expectancy, profit factor, and
// Sharpe from the trade history plus the state's streak counters. Pure:
// depends only on its inputs.
func CalculateTradingMetrics(history []types.DexTradeRecord, st *types.AgentState) TradingMetrics {
	m := TradingMetrics{
		Trades:               len(history),
		MaxConsecutiveLosses: st.DexMaxConsecutiveLosses,
		MaxDrawdownPct:       st.DexMaxDrawdownPct,
		MaxDrawdownDurMs:     st.DexMaxDrawdownDurMs,
		CurrentLossStreak:    st.DexCurrentLossStreak,
	}
	if len(history) == 0 {
		return m
	}

	var winPctSum, lossPctSum, winSol, lossSol float64
	returns := make([]float64, 0, len(history))
	for _, trade := range history {
		m.RealizedPnLSol += trade.PnLSol
		returns = append(returns, trade.PnLPct)
		if trade.PnLSol >= 0 {
			m.Wins++
			winPctSum += trade.PnLPct
			winSol += trade.PnLSol
		} else {
			m.Losses++
			lossPctSum += trade.PnLPct
			lossSol += trade.PnLSol
		}
	}

	m.WinRate = float64(m.Wins) / float64(len(history))
	if m.Wins > 0 {
		m.AvgWinPct = winPctSum / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLossPct = lossPctSum / float64(m.Losses)
	}
	m.Expectancy = m.WinRate*m.AvgWinPct - (1-m.WinRate)*math.Abs(m.AvgLossPct)
	if lossSol != 0 {
		m.ProfitFactor = winSol / math.Abs(lossSol)
	} else if winSol > 0 {
		// No losses yet; report a large finite factor so JSON stays valid.
		m.ProfitFactor = 999
	}

	if stdev := utils.StdDev(returns); stdev > 0 {
		m.Sharpe = utils.Mean(returns) / stdev
	}
	return m
}
