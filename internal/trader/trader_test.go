package trader

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/pkg/types"
)

func newTestTrader(mock *broker.Mock) *Trader {
	return NewTrader(zap.NewNop(), mock, nil, nil)
}

func testAccount(cash float64) broker.Account {
	return broker.Account{
		Cash:   decimal.NewFromFloat(cash),
		Equity: decimal.NewFromFloat(cash),
	}
}

func equityPosition(symbol string, plpc float64) broker.Position {
	return broker.Position{
		Symbol:         symbol,
		Qty:            decimal.NewFromInt(10),
		MarketValue:    decimal.NewFromInt(1000),
		UnrealizedPLPC: decimal.NewFromFloat(plpc),
		AssetClass:     "us_equity",
	}
}

func hasLog(st *types.AgentState, substr string) bool {
	for _, entry := range st.Logs {
		if strings.Contains(entry.Message, substr) {
			return true
		}
	}
	return false
}

func nasdaqAssets(symbols ...string) map[string]broker.Asset {
	assets := make(map[string]broker.Asset, len(symbols))
	for _, s := range symbols {
		assets[s] = broker.Asset{Symbol: s, Exchange: "NASDAQ", Tradable: true}
	}
	return assets
}

func TestBuySizesByConfidenceAndCap(t *testing.T) {
	mock := &broker.Mock{Assets: nasdaqAssets("AAPL")}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())

	// 10% of $10k cash at confidence 0.8 is $800.
	res, ok := trd.Buy(context.Background(), st, testAccount(10_000), "AAPL", 0.8, 1.0, false, "strong signal", time.Now())
	require.True(t, ok)
	assert.InDelta(t, 800, res.Amount, 0.01)
	require.Len(t, mock.Orders, 1)
	assert.Equal(t, "buy", mock.Orders[0].Side)
	assert.Equal(t, "day", mock.Orders[0].TimeInForce)
	assert.Contains(t, st.PositionEntries, "AAPL")

	// A huge account pins at the $2000 position cap.
	res, ok = trd.Buy(context.Background(), st, testAccount(1_000_000), "AAPL", 1.0, 1.0, false, "strong signal", time.Now())
	require.True(t, ok)
	assert.InDelta(t, 2000, res.Amount, 0.01)
}

func TestBuyCrisisMultiplierHalvesSize(t *testing.T) {
	mock := &broker.Mock{Assets: nasdaqAssets("AAPL")}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())

	res, ok := trd.Buy(context.Background(), st, testAccount(10_000), "AAPL", 0.8, 0.5, false, "elevated", time.Now())
	require.True(t, ok)
	assert.InDelta(t, 400, res.Amount, 0.01)
}

func TestBuyRefusals(t *testing.T) {
	mock := &broker.Mock{Assets: nasdaqAssets("AAPL")}
	trd := newTestTrader(mock)
	ctx := context.Background()
	now := time.Now()

	t.Run("no cash", func(t *testing.T) {
		st := types.NewAgentState(types.DefaultConfig())
		_, ok := trd.Buy(ctx, st, testAccount(0), "AAPL", 0.8, 1.0, false, "", now)
		assert.False(t, ok)
		assert.True(t, hasLog(st, "buy_blocked_no_cash"))
	})

	t.Run("bad confidence", func(t *testing.T) {
		st := types.NewAgentState(types.DefaultConfig())
		_, ok := trd.Buy(ctx, st, testAccount(10_000), "AAPL", 1.5, 1.0, false, "", now)
		assert.False(t, ok)
		assert.True(t, hasLog(st, "buy_blocked_invariant"))
	})

	t.Run("unknown asset", func(t *testing.T) {
		st := types.NewAgentState(types.DefaultConfig())
		_, ok := trd.Buy(ctx, st, testAccount(10_000), "ZZZQ", 0.8, 1.0, false, "", now)
		assert.False(t, ok)
		assert.True(t, hasLog(st, "buy_blocked_asset_lookup"))
	})

	t.Run("off-exchange", func(t *testing.T) {
		mock.Assets["PINK"] = broker.Asset{Symbol: "PINK", Exchange: "OTC", Tradable: true}
		st := types.NewAgentState(types.DefaultConfig())
		_, ok := trd.Buy(ctx, st, testAccount(10_000), "PINK", 0.8, 1.0, false, "", now)
		assert.False(t, ok)
		assert.True(t, hasLog(st, "buy_blocked_exchange"))
	})
}

func TestCryptoBuyUsesGTCAndSkipsAssetCheck(t *testing.T) {
	mock := &broker.Mock{} // no assets configured at all
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())

	_, ok := trd.Buy(context.Background(), st, testAccount(10_000), "BTC/USD", 0.7, 1.0, true, "momentum", time.Now())
	require.True(t, ok)
	require.Len(t, mock.Orders, 1)
	assert.Equal(t, "gtc", mock.Orders[0].TimeInForce)
}

func TestRunExitsTakeProfitAndStopLoss(t *testing.T) {
	mock := &broker.Mock{}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())
	now := time.Now()

	positions := []broker.Position{
		equityPosition("WIN", 0.20),   // +20% >= 15% take profit
		equityPosition("LOSE", -0.10), // -10% <= -8% stop loss
		equityPosition("HOLD", 0.02),
	}

	results := trd.RunExits(context.Background(), st, positions, st.Config.Trading.StopLossPct, now)
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []string{"WIN", "LOSE"}, mock.Closed)
}

func TestRunExitsTightenedStopLoss(t *testing.T) {
	mock := &broker.Mock{}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())

	// -6% survives the normal 8% stop but dies under the 5% crisis stop.
	positions := []broker.Position{equityPosition("TLT", -0.06)}

	results := trd.RunExits(context.Background(), st, positions, st.Config.Trading.StopLossPct, time.Now())
	assert.Empty(t, results)

	results = trd.RunExits(context.Background(), st, positions, st.Config.Crisis.Level1StopLossPct, time.Now())
	require.Len(t, results, 1)
	assert.Equal(t, "sell", results[0].Side)
}

func TestSellBlockedByPDT(t *testing.T) {
	mock := &broker.Mock{Account_: broker.Account{
		Cash:          decimal.NewFromInt(10_000),
		Equity:        decimal.NewFromInt(10_000), // under the 25k floor
		DaytradeCount: 3,
	}}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	// Entered earlier today: selling now would be a day trade.
	st.PositionEntries["AAPL"] = types.PositionEntry{Symbol: "AAPL", EntryTime: now.Add(-2 * time.Hour)}

	ok := trd.Sell(context.Background(), st, equityPosition("AAPL", 0.20), "take profit", now)
	assert.False(t, ok)
	assert.True(t, hasLog(st, "sell_blocked_pdt"))
	assert.Empty(t, mock.Closed)
	assert.Contains(t, st.PositionEntries, "AAPL", "entry record survives a refused sell")
}

func TestSellAllowedOnLargeAccount(t *testing.T) {
	mock := &broker.Mock{Account_: broker.Account{
		Cash:          decimal.NewFromInt(50_000),
		Equity:        decimal.NewFromInt(50_000),
		DaytradeCount: 9,
	}}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	st.PositionEntries["AAPL"] = types.PositionEntry{Symbol: "AAPL", EntryTime: now.Add(-time.Hour)}

	ok := trd.Sell(context.Background(), st, equityPosition("AAPL", 0.20), "take profit", now)
	assert.True(t, ok)
	assert.Equal(t, []string{"AAPL"}, mock.Closed)
	assert.NotContains(t, st.PositionEntries, "AAPL")
}

func TestSellHeldOvernightSkipsPDTCheck(t *testing.T) {
	mock := &broker.Mock{Account_: broker.Account{
		Cash:          decimal.NewFromInt(10_000),
		Equity:        decimal.NewFromInt(10_000),
		DaytradeCount: 3,
	}}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	st.PositionEntries["AAPL"] = types.PositionEntry{Symbol: "AAPL", EntryTime: now.Add(-48 * time.Hour)}

	ok := trd.Sell(context.Background(), st, equityPosition("AAPL", 0.20), "take profit", now)
	assert.True(t, ok)
}

func TestRunEntriesBlockedByCrisis(t *testing.T) {
	trd := newTestTrader(&broker.Mock{})
	st := types.NewAgentState(types.DefaultConfig())

	results := trd.RunEntries(context.Background(), st, testAccount(10_000), nil, 0, true, true, time.Now())
	assert.Nil(t, results)
	assert.True(t, hasLog(st, "CRISIS_MODE_BLOCKING"))
}

func TestRunEntriesBuysTopConfidenceCandidates(t *testing.T) {
	mock := &broker.Mock{Assets: nasdaqAssets("AAA", "BBB", "CCC", "DDD")}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())
	now := time.Now()

	for _, sym := range []string{"AAA", "BBB", "CCC", "DDD"} {
		st.SignalCache = append(st.SignalCache, types.Signal{Symbol: sym, RawSentiment: 0.8})
	}
	st.SignalResearch["AAA"] = types.ResearchResult{Verdict: types.VerdictBuy, Confidence: 0.90, Timestamp: now}
	st.SignalResearch["BBB"] = types.ResearchResult{Verdict: types.VerdictBuy, Confidence: 0.85, Timestamp: now}
	st.SignalResearch["CCC"] = types.ResearchResult{Verdict: types.VerdictBuy, Confidence: 0.80, Timestamp: now}
	st.SignalResearch["DDD"] = types.ResearchResult{Verdict: types.VerdictBuy, Confidence: 0.75, Timestamp: now}

	results := trd.RunEntries(context.Background(), st, testAccount(10_000), nil, 1.0, true, false, now)
	require.Len(t, results, 3, "only the top three by confidence execute")
	bought := []string{results[0].Symbol, results[1].Symbol, results[2].Symbol}
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, bought)
}

func TestRunEntriesSkipsHeldAndNonBuyVerdicts(t *testing.T) {
	mock := &broker.Mock{Assets: nasdaqAssets("AAA", "BBB", "CCC")}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())
	now := time.Now()

	st.SignalCache = []types.Signal{
		{Symbol: "AAA", RawSentiment: 0.8}, // held
		{Symbol: "BBB", RawSentiment: 0.8}, // HOLD verdict
		{Symbol: "CCC", RawSentiment: 0.8}, // buys
	}
	st.SignalResearch["AAA"] = types.ResearchResult{Verdict: types.VerdictBuy, Confidence: 0.9, Timestamp: now}
	st.SignalResearch["BBB"] = types.ResearchResult{Verdict: types.VerdictHold, Confidence: 0.9, Timestamp: now}
	st.SignalResearch["CCC"] = types.ResearchResult{Verdict: types.VerdictBuy, Confidence: 0.9, Timestamp: now}

	held := []broker.Position{equityPosition("AAA", 0.01)}
	results := trd.RunEntries(context.Background(), st, testAccount(10_000), held, 1.0, true, false, now)
	require.Len(t, results, 1)
	assert.Equal(t, "CCC", results[0].Symbol)
}

func TestRunEntriesTwitterConfirmationBoost(t *testing.T) {
	mock := &broker.Mock{Assets: nasdaqAssets("AAA", "BBB")}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())
	now := time.Now()

	st.SignalCache = []types.Signal{
		{Symbol: "AAA", RawSentiment: 0.8},
		{Symbol: "BBB", RawSentiment: 0.8},
	}
	// BBB starts lower but a confirmation lifts it past AAA, which is
	// contradicted.
	st.SignalResearch["AAA"] = types.ResearchResult{Verdict: types.VerdictBuy, Confidence: 0.80, Timestamp: now}
	st.SignalResearch["BBB"] = types.ResearchResult{Verdict: types.VerdictBuy, Confidence: 0.78, Timestamp: now}
	st.TwitterConfirmations["AAA"] = types.TwitterConfirmation{Symbol: "AAA", Contradict: true}
	st.TwitterConfirmations["BBB"] = types.TwitterConfirmation{Symbol: "BBB", Confirmed: true}

	results := trd.RunEntries(context.Background(), st, testAccount(10_000), nil, 1.0, true, false, now)
	require.NotEmpty(t, results)
	assert.Equal(t, "BBB", results[0].Symbol)
}

func TestRunEntriesCryptoGatedByAssetClass(t *testing.T) {
	mock := &broker.Mock{Assets: nasdaqAssets("AAA")}
	trd := newTestTrader(mock)
	st := types.NewAgentState(types.DefaultConfig())
	now := time.Now()

	st.SignalCache = []types.Signal{
		{Symbol: "BTC/USD", RawSentiment: 0.9, IsCrypto: true},
		{Symbol: "AAA", RawSentiment: 0.9},
	}
	st.SignalResearch["BTC/USD"] = types.ResearchResult{Verdict: types.VerdictBuy, Confidence: 0.9, Timestamp: now}
	st.SignalResearch["AAA"] = types.ResearchResult{Verdict: types.VerdictBuy, Confidence: 0.9, Timestamp: now}

	// Crypto-only pass buys only the crypto candidate.
	results := trd.RunEntries(context.Background(), st, testAccount(10_000), nil, 1.0, false, true, now)
	require.Len(t, results, 1)
	assert.Equal(t, "BTC/USD", results[0].Symbol)

	// Equity-only pass buys only the equity.
	results = trd.RunEntries(context.Background(), st, testAccount(10_000), nil, 1.0, true, false, now)
	require.Len(t, results, 1)
	assert.Equal(t, "AAA", results[0].Symbol)
}
