package types_test

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

func TestSanitizeLeavesValidConfigAlone(t *testing.T) {
	cfg := types.DefaultConfig()
	fixed := cfg.Sanitize()
	assert.Empty(t, fixed)
}

func TestSanitizeResetsBrokenFields(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.TickIntervalMs = 0
	cfg.Trading.StopLossPct = -3
	cfg.Trading.AllowedExchanges = nil
	cfg.Dex.Slippage = "aggressive"
	cfg.LLM.Temperature = 5
	cfg.Signals.SourceWeights = nil

	fixed := cfg.Sanitize()
	def := types.DefaultConfig()

	assert.Equal(t, def.TickIntervalMs, cfg.TickIntervalMs)
	assert.Equal(t, def.Trading.StopLossPct, cfg.Trading.StopLossPct)
	assert.Equal(t, def.Trading.AllowedExchanges, cfg.Trading.AllowedExchanges)
	assert.Equal(t, def.Dex.Slippage, cfg.Dex.Slippage)
	assert.Equal(t, def.LLM.Temperature, cfg.LLM.Temperature)
	assert.ElementsMatch(t, []string{
		"tickIntervalMs", "trading.stopLossPct", "allowedExchanges",
		"slippageModel", "llm.temperature", "sourceWeights",
	}, fixed)
}

func TestConfigPartialMergePreservesUnsetFields(t *testing.T) {
	cfg := types.DefaultConfig()
	patch := []byte(`{"trading":{"takeProfitPct":25},"dex":{"maxPositions":4}}`)

	require.NoError(t, json.Unmarshal(patch, &cfg))

	assert.Equal(t, 25.0, cfg.Trading.TakeProfitPct)
	assert.Equal(t, 4, cfg.Dex.MaxPositions)
	// Untouched siblings keep their previous values.
	assert.Equal(t, 8.0, cfg.Trading.StopLossPct)
	assert.Equal(t, 1.0, cfg.Dex.StartingBalanceSol)
}

func TestMigrateAllocatesNilMaps(t *testing.T) {
	var st types.AgentState
	st.Config = types.DefaultConfig()

	fixedConfig, patched := st.Migrate()
	assert.Empty(t, fixedConfig)
	assert.Empty(t, patched)
	assert.NotNil(t, st.PositionEntries)
	assert.NotNil(t, st.SignalResearch)
	assert.NotNil(t, st.PositionResearch)
	assert.NotNil(t, st.StalenessAnalysis)
	assert.NotNil(t, st.TwitterConfirmations)
	assert.NotNil(t, st.DexPositions)
	assert.NotNil(t, st.DexStopLossCooldowns)
	assert.NotNil(t, st.SocialHistory)
}

func TestMigrateRepairsBalances(t *testing.T) {
	var st types.AgentState
	st.Config = types.DefaultConfig()
	st.DexPaperBalanceSol = math.NaN()

	st.Migrate()
	assert.Equal(t, st.Config.Dex.StartingBalanceSol, st.DexPaperBalanceSol)
	assert.Equal(t, st.DexPaperBalanceSol, st.DexPeakBalance)
	assert.Equal(t, st.DexPaperBalanceSol, st.DexPeakValue)
}

func TestMigratePatchesLegacyPositions(t *testing.T) {
	st := types.NewAgentState(types.DefaultConfig())
	st.DexPositions["mint1"] = types.DexPosition{
		TokenAddress: "mint1",
		Symbol:       "LEGACY",
		EntryPrice:   0.002,
		// No TokenAmount, no EntryStakeSol: written by an older version.
	}
	st.DexPositions["mint2"] = types.DexPosition{
		TokenAddress:  "mint2",
		Symbol:        "FINE",
		EntryPrice:    0.01,
		EntryStakeSol: 0.05,
		TokenAmount:   1000,
		PeakPrice:     0.012,
	}

	_, patched := st.Migrate()
	require.Equal(t, []string{"mint1"}, patched)

	got := st.DexPositions["mint1"]
	assert.Equal(t, st.Config.Dex.MaxPositionSol, got.EntryStakeSol)
	expectedTokens := got.EntryStakeSol * st.Config.Dex.SolPriceFallbackUsd / got.EntryPrice
	assert.InDelta(t, expectedTokens, got.TokenAmount, 1e-9)
	assert.Equal(t, got.EntryPrice, got.PeakPrice)

	// The healthy position is untouched.
	assert.Equal(t, 1000.0, st.DexPositions["mint2"].TokenAmount)
}

func TestAppendLogCapsRingBuffer(t *testing.T) {
	st := types.NewAgentState(types.DefaultConfig())
	for i := 0; i < types.MaxLogEntries+50; i++ {
		st.AppendLog("info", "test", fmt.Sprintf("entry %d", i))
	}
	require.Len(t, st.Logs, types.MaxLogEntries)
	assert.Equal(t, "entry 50", st.Logs[0].Message)
	assert.Equal(t, fmt.Sprintf("entry %d", types.MaxLogEntries+49), st.Logs[len(st.Logs)-1].Message)
}

func TestStateJSONRoundtrip(t *testing.T) {
	st := types.NewAgentState(types.DefaultConfig())
	st.Enabled = true
	st.LastDataGather = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	st.SignalCache = []types.Signal{{Symbol: "AAPL", Sentiment: 0.4}}

	data, err := json.Marshal(st)
	require.NoError(t, err)

	var loaded types.AgentState
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.True(t, loaded.Enabled)
	assert.True(t, loaded.LastDataGather.Equal(st.LastDataGather))
	require.Len(t, loaded.SignalCache, 1)
	assert.Equal(t, "AAPL", loaded.SignalCache[0].Symbol)
}
