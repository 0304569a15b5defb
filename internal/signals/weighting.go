// Package signals gathers social and market sentiment from multiple sources
// and normalizes it into weighted signals.
package signals

import (
	"math"
	"strings"
	"time"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// flairMultipliers down-weight hype flairs and up-weight due diligence.
var flairMultipliers = map[string]float64{
	"dd":         1.5,
	"discussion": 1.0,
	"news":       1.1,
	"yolo":       0.6,
	"meme":       0.4,
	"gain":       0.5,
	"loss":       0.5,
	"shitpost":   0.3,
}

// Freshness is an exponential time decay with the configured half-life,
// clamped to [0.2, 1.0].
func Freshness(age time.Duration, halfLifeMinutes float64) float64 {
	if halfLifeMinutes <= 0 {
		halfLifeMinutes = 120
	}
	ageMin := age.Minutes()
	if ageMin <= 0 {
		return 1.0
	}
	decay := math.Exp(-math.Ln2 * ageMin / halfLifeMinutes)
	return math.Max(0.2, math.Min(1.0, decay))
}

func upvoteMultiplier(upvotes int) float64 {
	switch {
	case upvotes >= 5000:
		return 1.5
	case upvotes >= 1000:
		return 1.3
	case upvotes >= 250:
		return 1.1
	case upvotes >= 50:
		return 1.0
	default:
		return 0.8
	}
}

func commentMultiplier(comments int) float64 {
	switch {
	case comments >= 1000:
		return 1.5
	case comments >= 250:
		return 1.3
	case comments >= 50:
		return 1.1
	case comments >= 10:
		return 1.0
	default:
		return 0.8
	}
}

// EngagementMultiplier averages the bucketed upvote and comment multipliers.
// Sources without engagement data (both zero) stay neutral.
func EngagementMultiplier(upvotes, comments int) float64 {
	if upvotes == 0 && comments == 0 {
		return 1.0
	}
	return (upvoteMultiplier(upvotes) + commentMultiplier(comments)) / 2
}

// FlairMultiplier looks up the flair table; unknown flairs are neutral.
func FlairMultiplier(flair string) float64 {
	if flair == "" {
		return 1.0
	}
	if m, ok := flairMultipliers[strings.ToLower(strings.TrimSpace(flair))]; ok {
		return m
	}
	return 1.0
}

// sourceWeight resolves the per-source constant; sourceDetail overrides the
// source (wallstreetbets carries its own, lower weight).
func sourceWeight(cfg types.SignalsConfig, source types.SignalSource, sourceDetail string) float64 {
	if strings.EqualFold(sourceDetail, "wallstreetbets") {
		if w, ok := cfg.SourceWeights["wsb"]; ok {
			return w
		}
	}
	if w, ok := cfg.SourceWeights[string(source)]; ok {
		return w
	}
	return 0.7
}

// Weigh fills in the derived Sentiment and Freshness fields of a signal:
//
//	sentiment = raw x source_weight x time_decay x engagement x flair
func Weigh(sig *types.Signal, cfg types.SignalsConfig, now time.Time) {
	sig.Freshness = Freshness(now.Sub(sig.Timestamp), cfg.DecayHalfLifeMinutes)
	sig.Sentiment = sig.RawSentiment *
		sourceWeight(cfg, sig.Source, sig.SourceDetail) *
		sig.Freshness *
		EngagementMultiplier(sig.Upvotes, sig.Comments) *
		FlairMultiplier(sig.Flair)
}
