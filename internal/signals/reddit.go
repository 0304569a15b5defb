package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// RedditGatherer pulls top posts from the configured subreddits, extracts
// tickers from titles and bodies, and scores sentiment from simple keyword
// polarity plus post engagement.
type RedditGatherer struct {
	logger     *zap.Logger
	httpClient *http.Client
	validator  *TickerValidator
}

// NewRedditGatherer wires the gatherer to a ticker validator.
func NewRedditGatherer(logger *zap.Logger, validator *TickerValidator) *RedditGatherer {
	return &RedditGatherer{
		logger:     logger.Named("reddit"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		validator:  validator,
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Ups         int     `json:"ups"`
				NumComments int     `json:"num_comments"`
				Flair       string  `json:"link_flair_text"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

var bullishWords = []string{"moon", "calls", "buy", "long", "squeeze", "breakout", "undervalued", "rocket", "bullish"}
var bearishWords = []string{"puts", "sell", "short", "crash", "dump", "overvalued", "bagholding", "bearish", "drilling"}

func keywordSentiment(text string) float64 {
	lower := strings.ToLower(text)
	score := 0
	for _, w := range bullishWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range bearishWords {
		if strings.Contains(lower, w) {
			score--
		}
	}
	switch {
	case score >= 3:
		return 1.0
	case score <= -3:
		return -1.0
	default:
		return float64(score) / 3
	}
}

// Gather fetches top daily posts per subreddit and emits one signal per
// (post, ticker). Signals for the same symbol are merged by the aggregator.
func (g *RedditGatherer) Gather(ctx context.Context, cfg types.SignalsConfig) ([]types.Signal, error) {
	now := time.Now()
	var out []types.Signal

	for _, sub := range cfg.Subreddits {
		url := fmt.Sprintf("https://www.reddit.com/r/%s/top.json?t=day&limit=25", sub)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "tradewind research agent/1.0")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			g.logger.Warn("subreddit fetch failed", zap.String("subreddit", sub), zap.Error(err))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			g.logger.Warn("subreddit fetch returned error",
				zap.String("subreddit", sub), zap.Int("status", resp.StatusCode))
			continue
		}

		var listing redditListing
		err = json.NewDecoder(resp.Body).Decode(&listing)
		resp.Body.Close()
		if err != nil {
			g.logger.Warn("subreddit decode failed", zap.String("subreddit", sub), zap.Error(err))
			continue
		}

		for _, child := range listing.Data.Children {
			post := child.Data
			text := post.Title + " " + post.Selftext
			tickers := ExtractTickers(text, cfg.UserBlacklist)
			if len(tickers) == 0 {
				continue
			}
			raw := keywordSentiment(text)
			if raw == 0 {
				continue
			}

			posted := time.Unix(int64(post.CreatedUTC), 0)
			for _, sym := range tickers {
				if g.validator != nil && !g.validator.IsValid(ctx, sym) {
					continue
				}
				sig := types.Signal{
					Symbol:       sym,
					Source:       types.SourceReddit,
					SourceDetail: sub,
					RawSentiment: raw,
					Volume:       1,
					Timestamp:    posted,
					Upvotes:      post.Ups,
					Comments:     post.NumComments,
					Flair:        post.Flair,
					Subreddits:   []string{sub},
				}
				Weigh(&sig, cfg, now)
				out = append(out, sig)
			}
		}
	}

	g.logger.Debug("reddit gather complete", zap.Int("signals", len(out)))
	return out, nil
}
