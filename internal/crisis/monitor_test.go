package crisis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

func fp(v float64) *float64 { return &v }

type stubFetcher struct {
	indicators types.CrisisIndicators
}

func (f *stubFetcher) Fetch(context.Context) types.CrisisIndicators {
	return f.indicators
}

func TestScoreNormalConditions(t *testing.T) {
	cfg := types.DefaultConfig().Crisis
	ind := types.CrisisIndicators{
		VIX:          fp(15),
		HYSpread:     fp(350),
		BTCWeeklyPct: fp(2),
	}
	score, triggered := Score(ind, cfg)
	assert.Equal(t, 0, score)
	assert.Empty(t, triggered)
}

func TestScoreMissingIndicatorsContributeNothing(t *testing.T) {
	cfg := types.DefaultConfig().Crisis
	score, triggered := Score(types.CrisisIndicators{}, cfg)
	assert.Equal(t, 0, score)
	assert.Empty(t, triggered)
}

// VIX at 46 scores 3 on its own; with a 650bp high-yield spread and BTC down
// 22% on the week the total reaches 7, which is full crisis.
func TestScoreFullCrisisScenario(t *testing.T) {
	cfg := types.DefaultConfig().Crisis
	ind := types.CrisisIndicators{
		VIX:          fp(46),
		HYSpread:     fp(650),
		BTCWeeklyPct: fp(-22),
	}
	score, triggered := Score(ind, cfg)
	assert.Equal(t, 7, score)
	assert.Contains(t, triggered, "vix(+3)")
	assert.Contains(t, triggered, "hy_spread(+2)")
	assert.Contains(t, triggered, "btc_weekly(+2)")
	assert.Equal(t, types.CrisisFullCrisis, LevelForScore(score))
}

func TestScoreWarningTiers(t *testing.T) {
	cfg := types.DefaultConfig().Crisis
	ind := types.CrisisIndicators{
		VIX:             fp(28),   // warning: 1
		YieldCurve2s10s: fp(-0.2), // warning: 1
		TEDSpread:       fp(1.2),  // critical: 2
	}
	score, triggered := Score(ind, cfg)
	assert.Equal(t, 4, score)
	assert.Len(t, triggered, 3)
	assert.Equal(t, types.CrisisHighAlert, LevelForScore(score))
}

func TestLevelForScore(t *testing.T) {
	assert.Equal(t, types.CrisisNormal, LevelForScore(0))
	assert.Equal(t, types.CrisisNormal, LevelForScore(1))
	assert.Equal(t, types.CrisisElevated, LevelForScore(2))
	assert.Equal(t, types.CrisisElevated, LevelForScore(3))
	assert.Equal(t, types.CrisisHighAlert, LevelForScore(4))
	assert.Equal(t, types.CrisisHighAlert, LevelForScore(5))
	assert.Equal(t, types.CrisisFullCrisis, LevelForScore(6))
	assert.Equal(t, types.CrisisFullCrisis, LevelForScore(10))
}

func TestPositionMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, PositionMultiplier(types.CrisisNormal))
	assert.Equal(t, 0.5, PositionMultiplier(types.CrisisElevated))
	assert.Equal(t, 0.0, PositionMultiplier(types.CrisisHighAlert))
	assert.Equal(t, 0.0, PositionMultiplier(types.CrisisFullCrisis))
}

func TestEffectiveStopLossPct(t *testing.T) {
	cfg := types.DefaultConfig()
	normal := EffectiveStopLossPct(types.CrisisNormal, cfg)
	tightened := EffectiveStopLossPct(types.CrisisElevated, cfg)
	assert.Equal(t, cfg.Trading.StopLossPct, normal)
	assert.Equal(t, cfg.Crisis.Level1StopLossPct, tightened)
	assert.Less(t, tightened, normal)
}

func TestCheckTransitionsLevel(t *testing.T) {
	fetcher := &stubFetcher{indicators: types.CrisisIndicators{
		VIX:          fp(46),
		HYSpread:     fp(650),
		BTCWeeklyPct: fp(-22),
	}}
	monitor := NewMonitor(zap.NewNop(), fetcher)
	st := types.NewAgentState(types.DefaultConfig())
	now := time.Now()

	transition := monitor.Check(context.Background(), st, now)
	require.NotNil(t, transition)
	assert.Equal(t, types.CrisisNormal, transition.From)
	assert.Equal(t, types.CrisisFullCrisis, transition.To)
	assert.True(t, transition.Upward())
	assert.Equal(t, types.CrisisFullCrisis, st.Crisis.Level)
	assert.Equal(t, now, st.LastCrisisCheck)

	// Same indicators again: no transition.
	assert.Nil(t, monitor.Check(context.Background(), st, now.Add(time.Minute)))
}

func TestCheckManualOverrideSuspends(t *testing.T) {
	fetcher := &stubFetcher{indicators: types.CrisisIndicators{VIX: fp(46)}}
	monitor := NewMonitor(zap.NewNop(), fetcher)
	st := types.NewAgentState(types.DefaultConfig())
	st.Crisis.ManualOverride = true
	st.Crisis.Level = types.CrisisNormal

	assert.Nil(t, monitor.Check(context.Background(), st, time.Now()))
	assert.Equal(t, types.CrisisNormal, st.Crisis.Level)
}

func TestCheckDeescalates(t *testing.T) {
	fetcher := &stubFetcher{indicators: types.CrisisIndicators{VIX: fp(12)}}
	monitor := NewMonitor(zap.NewNop(), fetcher)
	st := types.NewAgentState(types.DefaultConfig())
	st.Crisis.Level = types.CrisisElevated

	transition := monitor.Check(context.Background(), st, time.Now())
	require.NotNil(t, transition)
	assert.Equal(t, types.CrisisNormal, transition.To)
	assert.False(t, transition.Upward())
}
