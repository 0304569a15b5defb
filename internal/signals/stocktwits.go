package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

const (
	stocktwitsTrendingURL = "https://api.stocktwits.com/api/2/trending/symbols.json"
	stocktwitsStreamURL   = "https://api.stocktwits.com/api/2/streams/symbol/%s.json?limit=30"
)

// StockTwitsGatherer pulls trending symbols and scores their recent message
// streams. The endpoint sits behind a CDN that intermittently returns 403,
// so requests are rate-limited and retried with exponential backoff.
type StockTwitsGatherer struct {
	logger     *zap.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	maxSymbols int
}

// NewStockTwitsGatherer returns a gatherer capped at one request per second.
func NewStockTwitsGatherer(logger *zap.Logger, maxRetries int) *StockTwitsGatherer {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &StockTwitsGatherer{
		logger:     logger.Named("stocktwits"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 2),
		maxRetries: maxRetries,
		maxSymbols: 10,
	}
}

func (g *StockTwitsGatherer) get(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tradewind/1.0)")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("stocktwits returned status %d", resp.StatusCode)
			continue
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("stocktwits decode failed: %w", err)
			continue
		}
		return nil
	}
	return lastErr
}

type stocktwitsTrending struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		WatchlistCnt int    `json:"watchlist_count"`
	} `json:"symbols"`
}

type stocktwitsStream struct {
	Messages []struct {
		Entities struct {
			Sentiment *struct {
				Basic string `json:"basic"`
			} `json:"sentiment"`
		} `json:"entities"`
	} `json:"messages"`
}

// Gather returns one signal per trending symbol, scored from the bullish /
// bearish split of its recent messages.
func (g *StockTwitsGatherer) Gather(ctx context.Context, cfg types.SignalsConfig) ([]types.Signal, error) {
	var trending stocktwitsTrending
	if err := g.get(ctx, stocktwitsTrendingURL, &trending); err != nil {
		return nil, fmt.Errorf("stocktwits trending fetch failed: %w", err)
	}

	now := time.Now()
	var out []types.Signal
	for i, sym := range trending.Symbols {
		if i >= g.maxSymbols {
			break
		}

		var stream stocktwitsStream
		if err := g.get(ctx, fmt.Sprintf(stocktwitsStreamURL, sym.Symbol), &stream); err != nil {
			g.logger.Debug("stream fetch failed", zap.String("symbol", sym.Symbol), zap.Error(err))
			continue
		}

		bullish, bearish := 0, 0
		for _, msg := range stream.Messages {
			if msg.Entities.Sentiment == nil {
				continue
			}
			switch msg.Entities.Sentiment.Basic {
			case "Bullish":
				bullish++
			case "Bearish":
				bearish++
			}
		}
		tagged := bullish + bearish
		if tagged == 0 {
			continue
		}

		sig := types.Signal{
			Symbol:       sym.Symbol,
			Source:       types.SourceStockTwits,
			SourceDetail: "trending",
			RawSentiment: float64(bullish-bearish) / float64(tagged),
			Volume:       len(stream.Messages),
			Timestamp:    now,
		}
		Weigh(&sig, cfg, now)
		out = append(out, sig)
	}

	g.logger.Debug("stocktwits gather complete", zap.Int("signals", len(out)))
	return out, nil
}
