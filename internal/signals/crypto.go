package signals

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// CryptoQuote is a price snapshot for one crypto pair.
type CryptoQuote struct {
	Symbol       string
	Price        float64
	DayChangePct float64
}

// CryptoQuoter fetches crypto snapshots, typically backed by the broker's
// market data API.
type CryptoQuoter interface {
	GetCryptoSnapshot(ctx context.Context, symbol string) (CryptoQuote, error)
}

// CryptoGatherer turns watchlist price momentum into signals: a pair moving
// hard in either direction over the day reads as sentiment in that direction.
type CryptoGatherer struct {
	logger *zap.Logger
	quoter CryptoQuoter
}

// NewCryptoGatherer wires the gatherer to a quoter.
func NewCryptoGatherer(logger *zap.Logger, quoter CryptoQuoter) *CryptoGatherer {
	return &CryptoGatherer{
		logger: logger.Named("crypto"),
		quoter: quoter,
	}
}

// Gather fetches watchlist snapshots concurrently. Pairs moving less than 2%
// on the day produce no signal. Day change saturates sentiment at +/-15%.
func (g *CryptoGatherer) Gather(ctx context.Context, watchlist []string, cfg types.SignalsConfig) ([]types.Signal, error) {
	now := time.Now()
	quotes := make([]*CryptoQuote, len(watchlist))

	eg, gctx := errgroup.WithContext(ctx)
	for i, sym := range watchlist {
		i, sym := i, sym
		eg.Go(func() error {
			quote, err := g.quoter.GetCryptoSnapshot(gctx, sym)
			if err != nil {
				g.logger.Debug("crypto snapshot failed", zap.String("symbol", sym), zap.Error(err))
				return nil
			}
			quotes[i] = &quote
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []types.Signal
	for _, quote := range quotes {
		if quote == nil || quote.Price <= 0 {
			continue
		}
		change := quote.DayChangePct
		if math.Abs(change) < 2 {
			continue
		}
		raw := math.Max(-1, math.Min(1, change/15))

		sig := types.Signal{
			Symbol:       quote.Symbol,
			Source:       types.SourceCrypto,
			SourceDetail: "momentum",
			RawSentiment: raw,
			Volume:       1,
			Timestamp:    now,
			IsCrypto:     true,
			Momentum:     change,
			Price:        quote.Price,
		}
		Weigh(&sig, cfg, now)
		out = append(out, sig)
	}

	g.logger.Debug("crypto gather complete", zap.Int("signals", len(out)))
	return out, nil
}
