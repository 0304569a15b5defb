package signals

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// Gatherer fans out to every enabled source and merges results into the
// signal cache. Each source's failure is isolated: it is logged and
// contributes an empty result.
type Gatherer struct {
	logger     *zap.Logger
	stocktwits *StockTwitsGatherer
	reddit     *RedditGatherer
	crypto     *CryptoGatherer
}

// NewGatherer assembles the multi-source gatherer. Any source may be nil.
func NewGatherer(logger *zap.Logger, st *StockTwitsGatherer, rd *RedditGatherer, cr *CryptoGatherer) *Gatherer {
	return &Gatherer{
		logger:     logger.Named("gatherer"),
		stocktwits: st,
		reddit:     rd,
		crypto:     cr,
	}
}

// Gather polls all sources concurrently and returns the fresh signals.
func (g *Gatherer) Gather(ctx context.Context, cfg types.Config) []types.Signal {
	type sourceRun struct {
		name string
		run  func(context.Context) ([]types.Signal, error)
	}

	var runs []sourceRun
	if g.stocktwits != nil {
		runs = append(runs, sourceRun{"stocktwits", func(ctx context.Context) ([]types.Signal, error) {
			return g.stocktwits.Gather(ctx, cfg.Signals)
		}})
	}
	if g.reddit != nil {
		runs = append(runs, sourceRun{"reddit", func(ctx context.Context) ([]types.Signal, error) {
			return g.reddit.Gather(ctx, cfg.Signals)
		}})
	}
	if g.crypto != nil && cfg.Trading.CryptoEnabled {
		runs = append(runs, sourceRun{"crypto", func(ctx context.Context) ([]types.Signal, error) {
			return g.crypto.Gather(ctx, cfg.Trading.CryptoWatchlist, cfg.Signals)
		}})
	}

	results := make([][]types.Signal, len(runs))
	var wg sync.WaitGroup
	for i, src := range runs {
		i, src := i, src
		wg.Add(1)
		go func() {
			defer wg.Done()
			signals, err := src.run(ctx)
			if err != nil {
				g.logger.Warn("source gather failed", zap.String("source", src.name), zap.Error(err))
				return
			}
			results[i] = signals
		}()
	}
	wg.Wait()

	var merged []types.Signal
	for _, signals := range results {
		merged = append(merged, signals...)
	}
	return merged
}

// MergeCache folds fresh signals into the cache, drops entries older than the
// TTL, and keeps the maxSize signals with the largest |sentiment|.
func MergeCache(cache, fresh []types.Signal, cfg types.SignalsConfig, now time.Time) []types.Signal {
	ttl := time.Duration(cfg.SignalTTLHours * float64(time.Hour))
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	maxSize := cfg.MaxCacheSize
	if maxSize <= 0 {
		maxSize = 200
	}

	merged := make([]types.Signal, 0, len(cache)+len(fresh))
	for _, sig := range cache {
		if now.Sub(sig.Timestamp) < ttl {
			merged = append(merged, sig)
		}
	}
	merged = append(merged, fresh...)

	sort.SliceStable(merged, func(i, j int) bool {
		return abs(merged[i].Sentiment) > abs(merged[j].Sentiment)
	})
	if len(merged) > maxSize {
		merged = merged[:maxSize]
	}
	return merged
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
