package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

func TestFreshnessDecay(t *testing.T) {
	assert.Equal(t, 1.0, Freshness(0, 120))
	assert.Equal(t, 1.0, Freshness(-5*time.Minute, 120), "future timestamps clamp to fully fresh")

	// One half-life halves the weight.
	assert.InDelta(t, 0.5, Freshness(120*time.Minute, 120), 1e-9)
	assert.InDelta(t, 0.25, Freshness(240*time.Minute, 120), 1e-9)

	// Very old signals floor at 0.2 instead of vanishing.
	assert.Equal(t, 0.2, Freshness(48*time.Hour, 120))

	// Zero half-life falls back to the 120-minute default.
	assert.InDelta(t, 0.5, Freshness(120*time.Minute, 0), 1e-9)
}

func TestFlairMultiplier(t *testing.T) {
	assert.Equal(t, 1.5, FlairMultiplier("DD"))
	assert.Equal(t, 1.5, FlairMultiplier("  dd  "))
	assert.Equal(t, 0.6, FlairMultiplier("YOLO"))
	assert.Equal(t, 0.4, FlairMultiplier("Meme"))
	assert.Equal(t, 1.0, FlairMultiplier(""))
	assert.Equal(t, 1.0, FlairMultiplier("Technical Analysis"))
}

func TestEngagementMultiplier(t *testing.T) {
	// No engagement data stays neutral rather than penalized.
	assert.Equal(t, 1.0, EngagementMultiplier(0, 0))

	// Viral post: both buckets max out.
	assert.Equal(t, 1.5, EngagementMultiplier(10_000, 2_000))

	// Low engagement drags both buckets to the floor.
	assert.Equal(t, 0.8, EngagementMultiplier(3, 1))

	// Mixed: 1000 upvotes (1.3) with 5 comments (0.8).
	assert.InDelta(t, 1.05, EngagementMultiplier(1000, 5), 1e-9)
}

func TestWeighComposesFactors(t *testing.T) {
	cfg := types.DefaultConfig().Signals
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	sig := types.Signal{
		Symbol:       "GME",
		Source:       types.SourceReddit,
		SourceDetail: "wallstreetbets",
		RawSentiment: 0.8,
		Upvotes:      6000,
		Comments:     1500,
		Flair:        "DD",
		Timestamp:    now.Add(-120 * time.Minute),
	}
	Weigh(&sig, cfg, now)

	// 0.8 raw x 0.6 wsb weight x 0.5 freshness x 1.5 engagement x 1.5 dd flair
	assert.InDelta(t, 0.5, sig.Freshness, 1e-9)
	assert.InDelta(t, 0.8*0.6*0.5*1.5*1.5, sig.Sentiment, 1e-9)
}

func TestWeighUnknownSourceWeight(t *testing.T) {
	cfg := types.DefaultConfig().Signals
	now := time.Now()

	sig := types.Signal{
		Symbol:       "AAPL",
		Source:       types.SignalSource("telegram"),
		RawSentiment: 1.0,
		Timestamp:    now,
	}
	Weigh(&sig, cfg, now)
	assert.InDelta(t, 0.7, sig.Sentiment, 1e-9, "unknown sources get the conservative default weight")
}

func TestExtractTickers(t *testing.T) {
	text := "Loaded up on $GME and $AMC today. TSLA calls printing, " +
		"thinking about NVDA earnings. YOLO all in, this is the MOON. $GME again."

	got := ExtractTickers(text, nil)
	assert.Equal(t, []string{"GME", "AMC", "TSLA", "NVDA"}, got)
}

func TestExtractTickersBlacklists(t *testing.T) {
	// Slang matches the pattern but never makes it through.
	got := ExtractTickers("$YOLO $FOMO $HODL calls", nil)
	assert.Empty(t, got)

	// User blacklist is case-insensitive.
	got = ExtractTickers("$GME $AMC to the moon", []string{"gme"})
	assert.Equal(t, []string{"AMC"}, got)

	// Bare symbols without a trading keyword are ignored.
	got = ExtractTickers("HELLO WORLD nothing here", nil)
	assert.Empty(t, got)
}

func TestMergeCacheTTLAndCap(t *testing.T) {
	cfg := types.DefaultConfig().Signals
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	cache := []types.Signal{
		{Symbol: "OLD", Sentiment: 0.99, Timestamp: now.Add(-25 * time.Hour)},
		{Symbol: "KEEP", Sentiment: 0.30, Timestamp: now.Add(-2 * time.Hour)},
	}
	fresh := []types.Signal{
		{Symbol: "NEWHI", Sentiment: 0.90, Timestamp: now},
		{Symbol: "NEWNEG", Sentiment: -0.60, Timestamp: now},
	}

	merged := MergeCache(cache, fresh, cfg, now)
	assert.Len(t, merged, 3, "expired entry dropped")
	// Ordered by |sentiment|: 0.90, -0.60, 0.30.
	assert.Equal(t, "NEWHI", merged[0].Symbol)
	assert.Equal(t, "NEWNEG", merged[1].Symbol)
	assert.Equal(t, "KEEP", merged[2].Symbol)
}

func TestMergeCacheEnforcesMaxSize(t *testing.T) {
	cfg := types.DefaultConfig().Signals
	cfg.MaxCacheSize = 2
	now := time.Now()

	fresh := []types.Signal{
		{Symbol: "A", Sentiment: 0.1, Timestamp: now},
		{Symbol: "B", Sentiment: 0.9, Timestamp: now},
		{Symbol: "C", Sentiment: 0.5, Timestamp: now},
	}
	merged := MergeCache(nil, fresh, cfg, now)
	assert.Len(t, merged, 2)
	assert.Equal(t, "B", merged[0].Symbol)
	assert.Equal(t, "C", merged[1].Symbol)
}
