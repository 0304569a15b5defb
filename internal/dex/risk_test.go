package dex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

func testDexConfig() types.DexConfig {
	return types.DefaultConfig().Dex
}

func TestReentryAllowed(t *testing.T) {
	cfg := testDexConfig() // recovery 15%, momentum >= 70 after 5 min, fallback 4h
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cd := types.StopLossCooldown{
		ExitPrice:      0.50,
		ExitTime:       base,
		FallbackExpiry: base.Add(4 * time.Hour),
	}

	cases := []struct {
		name     string
		price    float64
		momentum float64
		at       time.Time
		want     bool
	}{
		{"blocked: mild bounce, weak momentum", 0.55, 62, base.Add(10 * time.Minute), false},
		{"allowed: price recovered past threshold", 0.58, 0, base.Add(time.Minute), true},
		{"allowed: strong momentum after min elapsed", 0.52, 72, base.Add(6 * time.Minute), true},
		{"blocked: strong momentum too soon", 0.52, 72, base.Add(2 * time.Minute), false},
		{"allowed: fallback expiry passed", 0.30, 0, base.Add(4*time.Hour + time.Minute), true},
		{"blocked: nothing qualifies", 0.40, 50, base.Add(time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReentryAllowed(cd, tc.price, tc.momentum, cfg, tc.at))
		})
	}
}

func TestPruneCooldowns(t *testing.T) {
	now := time.Now()
	st := types.NewAgentState(types.DefaultConfig())
	st.DexStopLossCooldowns["old"] = types.StopLossCooldown{ExitTime: now.Add(-25 * time.Hour)}
	st.DexStopLossCooldowns["recent"] = types.StopLossCooldown{ExitTime: now.Add(-2 * time.Hour)}

	PruneCooldowns(st, now)

	assert.NotContains(t, st.DexStopLossCooldowns, "old")
	assert.Contains(t, st.DexStopLossCooldowns, "recent")
}

func TestCircuitBreakerTripsOnThirdLoss(t *testing.T) {
	cfg := testDexConfig()
	now := time.Now()
	st := types.NewAgentState(types.DefaultConfig())

	assert.False(t, recordStopLoss(st, "AAA", cfg, now))
	assert.False(t, recordStopLoss(st, "BBB", cfg, now.Add(time.Minute)))
	assert.True(t, recordStopLoss(st, "CCC", cfg, now.Add(2*time.Minute)))
	require.NotNil(t, st.DexCircuitBreakerUntil)
}

func TestCircuitBreakerWindowExpiry(t *testing.T) {
	cfg := testDexConfig()
	now := time.Now()
	st := types.NewAgentState(types.DefaultConfig())

	// Two losses just outside the 24h window do not count.
	recordStopLoss(st, "AAA", cfg, now.Add(-25*time.Hour))
	recordStopLoss(st, "BBB", cfg, now.Add(-25*time.Hour))
	assert.False(t, recordStopLoss(st, "CCC", cfg, now))
	assert.Nil(t, st.DexCircuitBreakerUntil)
}

func TestBreakerEarlyClearRequiresMinCooldown(t *testing.T) {
	cfg := testDexConfig() // pause 1h, min cooldown 30m
	now := time.Now()
	st := types.NewAgentState(types.DefaultConfig())
	until := now.Add(50 * time.Minute) // tripped 10 minutes ago
	st.DexCircuitBreakerUntil = &until

	strong := []types.DexSignal{{TokenAddress: "tok1", MomentumScore: 75}}

	// 10 minutes in: still active even with a strong signal.
	assert.Equal(t, breakerActive, evalBreaker(st, strong, cfg, now))
	require.NotNil(t, st.DexCircuitBreakerUntil)

	// 35 minutes in: the strong unheld signal clears it early.
	later := now.Add(25 * time.Minute)
	assert.Equal(t, breakerClearedEarly, evalBreaker(st, strong, cfg, later))
	assert.Nil(t, st.DexCircuitBreakerUntil)
}

func TestBreakerEarlyClearOnRecoveredPosition(t *testing.T) {
	cfg := testDexConfig()
	now := time.Now()
	st := types.NewAgentState(types.DefaultConfig())
	until := now.Add(20 * time.Minute) // tripped 40 minutes ago, past min cooldown
	st.DexCircuitBreakerUntil = &until
	st.DexPositions["tok1"] = types.DexPosition{TokenAddress: "tok1", EntryPrice: 1.0}

	recovered := []types.DexSignal{{TokenAddress: "tok1", PriceUsd: 1.2, MomentumScore: 10}}
	assert.Equal(t, breakerClearedEarly, evalBreaker(st, recovered, cfg, now))
}

func TestBreakerExpiresUnconditionally(t *testing.T) {
	cfg := testDexConfig()
	now := time.Now()
	st := types.NewAgentState(types.DefaultConfig())
	until := now.Add(-time.Minute)
	st.DexCircuitBreakerUntil = &until

	assert.Equal(t, breakerExpired, evalBreaker(st, nil, cfg, now))
	assert.Nil(t, st.DexCircuitBreakerUntil)
}

func TestDrawdownPauseAndRecovery(t *testing.T) {
	cfg := testDexConfig() // halt at 35%
	now := time.Now()
	st := types.NewAgentState(types.DefaultConfig())
	st.DexPeakValue = 1.0

	updateDrawdownPause(st, 0.70, cfg, now)
	assert.False(t, st.DexDrawdownPaused, "30% drawdown stays active")

	updateDrawdownPause(st, 0.60, cfg, now)
	assert.True(t, st.DexDrawdownPaused, "40% drawdown halts entries")

	// A new high clears the pause.
	updateDrawdownPause(st, 1.05, cfg, now)
	assert.False(t, st.DexDrawdownPaused)
	assert.Equal(t, 1.05, st.DexPeakValue)
}

func TestUpdateStreakAndDrawdownReplay(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	trades := []types.DexTradeRecord{
		{PnLSol: -0.05, ExitTime: base},
		{PnLSol: -0.03, ExitTime: base.Add(time.Hour)},
		{PnLSol: 0.20, ExitTime: base.Add(2 * time.Hour)},
		{PnLSol: -0.02, ExitTime: base.Add(3 * time.Hour)},
	}
	balances := []float64{0.95, 0.92, 1.12, 1.10}

	run := func() *types.AgentState {
		st := types.NewAgentState(types.DefaultConfig())
		for i, trade := range trades {
			st.DexPaperBalanceSol = balances[i]
			UpdateStreakAndDrawdown(st, trade)
		}
		return st
	}

	a, b := run(), run()
	assert.Equal(t, 2, a.DexMaxConsecutiveLosses)
	assert.Equal(t, 1, a.DexCurrentLossStreak)
	assert.InDelta(t, 8.0, a.DexMaxDrawdownPct, 1e-9) // 1.00 -> 0.92
	assert.Equal(t, a.DexMaxConsecutiveLosses, b.DexMaxConsecutiveLosses)
	assert.Equal(t, a.DexMaxDrawdownPct, b.DexMaxDrawdownPct)
	assert.Equal(t, a.DexMaxDrawdownDurMs, b.DexMaxDrawdownDurMs)
}
