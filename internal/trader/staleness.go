// Package trader implements the LLM-gated equity and crypto trading flow.
package trader

import (
	"fmt"
	"math"
	"time"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// ScoreStaleness rates a held position 0-100 on time decay, price action,
// and social volume decay. Positions held less than the minimum hold return
// a zero score and are never stale.
func ScoreStaleness(entry types.PositionEntry, plPct float64, currentSocialVolume int, cfg types.TradingConfig, now time.Time) types.StalenessResult {
	result := types.StalenessResult{
		Symbol:    entry.Symbol,
		Timestamp: now,
	}

	holdHours := now.Sub(entry.EntryTime).Hours()
	if holdHours < cfg.StaleMinHoldHours {
		return result
	}
	holdDays := holdHours / 24

	// Time: ramps linearly from 0 at mid-hold to 40 at max-hold.
	if cfg.StaleMaxHoldDays > cfg.StaleMidHoldDays && holdDays > cfg.StaleMidHoldDays {
		frac := (holdDays - cfg.StaleMidHoldDays) / (cfg.StaleMaxHoldDays - cfg.StaleMidHoldDays)
		points := math.Min(1, frac) * 40
		result.Score += points
		result.Reasons = append(result.Reasons, fmt.Sprintf("held %.1f days", holdDays))
	}

	// Price: losing positions accumulate, flat ones past mid-hold nudge.
	if plPct < 0 {
		points := math.Min(30, math.Abs(plPct)*3)
		result.Score += points
		result.Reasons = append(result.Reasons, fmt.Sprintf("down %.1f%%", plPct))
	}
	if plPct < cfg.StaleMidMinGainPct && holdDays >= cfg.StaleMidHoldDays {
		result.Score += 15
		result.Reasons = append(result.Reasons, "flat past mid-hold")
	}

	// Social decay relative to entry volume.
	if entry.EntrySocialVolume > 0 {
		ratio := float64(currentSocialVolume) / float64(entry.EntrySocialVolume)
		if ratio <= cfg.StaleSocialVolumeDecay {
			result.Score += 30
			result.Reasons = append(result.Reasons, fmt.Sprintf("social volume collapsed to %.0f%%", ratio*100))
		} else if ratio <= 0.5 {
			result.Score += 15
			result.Reasons = append(result.Reasons, fmt.Sprintf("social volume halved to %.0f%%", ratio*100))
		}
	}

	result.Score = math.Min(100, result.Score)
	result.IsStale = result.Score >= 70 ||
		(holdDays >= cfg.StaleMaxHoldDays && plPct < cfg.StaleMinGainPct)
	return result
}
