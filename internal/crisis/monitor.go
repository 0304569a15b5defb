package crisis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// IndicatorFetcher is the source of macro readings.
type IndicatorFetcher interface {
	Fetch(ctx context.Context) types.CrisisIndicators
}

// Monitor owns crisis evaluation and level transitions.
type Monitor struct {
	logger  *zap.Logger
	fetcher IndicatorFetcher
}

// NewMonitor wires the monitor to its indicator source.
func NewMonitor(logger *zap.Logger, fetcher IndicatorFetcher) *Monitor {
	return &Monitor{
		logger:  logger.Named("crisis"),
		fetcher: fetcher,
	}
}

// Transition reports one level change, for notifications.
type Transition struct {
	From      types.CrisisLevel
	To        types.CrisisLevel
	Score     int
	Triggered []string
}

// Upward reports whether the level rose.
func (t Transition) Upward() bool { return t.To > t.From }

// Check fetches indicators, scores them, and applies any level transition.
// Manual override suspends evaluation entirely. Returns a non-nil Transition
// when the level changed.
func (m *Monitor) Check(ctx context.Context, st *types.AgentState, now time.Time) *Transition {
	if st.Crisis.ManualOverride {
		return nil
	}

	indicators := m.fetcher.Fetch(ctx)
	st.Crisis.Indicators = indicators
	st.LastCrisisCheck = now

	score, triggered := Score(indicators, st.Config.Crisis)
	level := LevelForScore(score)
	st.Crisis.TriggeredIndicators = triggered

	if level == st.Crisis.Level {
		return nil
	}

	transition := &Transition{From: st.Crisis.Level, To: level, Score: score, Triggered: triggered}
	st.Crisis.Level = level
	st.Crisis.LastLevelChange = now

	m.logger.Warn("crisis level changed",
		zap.String("from", transition.From.String()),
		zap.String("to", level.String()),
		zap.Int("score", score),
		zap.Strings("triggered", triggered))
	st.AppendLog("warn", "crisis", fmt.Sprintf("level %s -> %s (score %d: %v)",
		transition.From, level, score, triggered))
	return transition
}

// Score sums indicator points: 1 at warning, 2 at critical, with VIX worth
// 3 at critical. Nil indicators contribute nothing.
func Score(ind types.CrisisIndicators, cfg types.CrisisConfig) (int, []string) {
	score := 0
	var triggered []string

	add := func(name string, points int) {
		score += points
		triggered = append(triggered, fmt.Sprintf("%s(+%d)", name, points))
	}

	if ind.VIX != nil {
		switch {
		case *ind.VIX >= cfg.VIXCritical:
			add("vix", 3)
		case *ind.VIX >= cfg.VIXWarning:
			add("vix", 1)
		}
	}
	if ind.HYSpread != nil {
		switch {
		case *ind.HYSpread >= cfg.HYSpreadCritical:
			add("hy_spread", 2)
		case *ind.HYSpread >= cfg.HYSpreadWarning:
			add("hy_spread", 1)
		}
	}
	if ind.YieldCurve2s10s != nil {
		switch {
		case *ind.YieldCurve2s10s <= cfg.YieldCurveCritical:
			add("yield_curve", 2)
		case *ind.YieldCurve2s10s <= cfg.YieldCurveWarning:
			add("yield_curve", 1)
		}
	}
	if ind.TEDSpread != nil {
		switch {
		case *ind.TEDSpread >= cfg.TEDCritical:
			add("ted", 2)
		case *ind.TEDSpread >= cfg.TEDWarning:
			add("ted", 1)
		}
	}
	if ind.BTCWeeklyPct != nil {
		switch {
		case *ind.BTCWeeklyPct <= cfg.BTCWeeklyCriticalPct:
			add("btc_weekly", 2)
		case *ind.BTCWeeklyPct <= cfg.BTCWeeklyWarningPct:
			add("btc_weekly", 1)
		}
	}
	if ind.USDTPeg != nil {
		switch {
		case *ind.USDTPeg <= cfg.USDTPegCritical:
			add("usdt_peg", 2)
		case *ind.USDTPeg <= cfg.USDTPegWarning:
			add("usdt_peg", 1)
		}
	}
	if ind.DXY != nil {
		switch {
		case *ind.DXY >= cfg.DXYCritical:
			add("dxy", 2)
		case *ind.DXY >= cfg.DXYWarning:
			add("dxy", 1)
		}
	}
	if ind.USDJPY != nil {
		switch {
		case *ind.USDJPY >= cfg.USDJPYCritical:
			add("usdjpy", 2)
		case *ind.USDJPY >= cfg.USDJPYWarning:
			add("usdjpy", 1)
		}
	}
	if ind.KREWeeklyPct != nil {
		switch {
		case *ind.KREWeeklyPct <= cfg.KREWeeklyCriticalPct:
			add("kre_weekly", 2)
		case *ind.KREWeeklyPct <= cfg.KREWeeklyWarningPct:
			add("kre_weekly", 1)
		}
	}
	if ind.GoldSilverRatio != nil {
		switch {
		case *ind.GoldSilverRatio >= cfg.GoldSilverCritical:
			add("gold_silver", 2)
		case *ind.GoldSilverRatio >= cfg.GoldSilverWarning:
			add("gold_silver", 1)
		}
	}
	if ind.FedChangePct != nil {
		switch {
		case *ind.FedChangePct >= cfg.FedChangeCriticalPct:
			add("fed_balance", 2)
		case *ind.FedChangePct >= cfg.FedChangeWarningPct:
			add("fed_balance", 1)
		}
	}
	// StocksAbove200MA has no source; permanently skipped.

	return score, triggered
}

// LevelForScore maps the summed score to a crisis level.
func LevelForScore(score int) types.CrisisLevel {
	switch {
	case score >= 6:
		return types.CrisisFullCrisis
	case score >= 4:
		return types.CrisisHighAlert
	case score >= 2:
		return types.CrisisElevated
	default:
		return types.CrisisNormal
	}
}

// PositionMultiplier is the entry sizing multiplier for a level. Levels 2
// and 3 block new entries outright.
func PositionMultiplier(level types.CrisisLevel) float64 {
	switch level {
	case types.CrisisNormal:
		return 1.0
	case types.CrisisElevated:
		return 0.5
	default:
		return 0
	}
}

// EffectiveStopLossPct tightens the equity stop at level 1 and above.
func EffectiveStopLossPct(level types.CrisisLevel, cfg types.Config) float64 {
	if level >= types.CrisisElevated {
		return cfg.Crisis.Level1StopLossPct
	}
	return cfg.Trading.StopLossPct
}
