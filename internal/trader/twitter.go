package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/pkg/types"
)

// NewsChecker looks for breaking news confirming or contradicting a thesis
// on one symbol.
type NewsChecker interface {
	CheckSymbol(ctx context.Context, symbol string) (types.TwitterConfirmation, error)
}

// TwitterNewsChecker queries the recent-search API and reads the bullish /
// bearish balance of fresh tweets.
type TwitterNewsChecker struct {
	logger     *zap.Logger
	httpClient *http.Client
	bearer     string
}

// NewTwitterNewsChecker requires an API v2 bearer token.
func NewTwitterNewsChecker(logger *zap.Logger, bearer string) *TwitterNewsChecker {
	return &TwitterNewsChecker{
		logger:     logger.Named("twitter"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		bearer:     bearer,
	}
}

// CheckSymbol searches recent tweets for the cashtag and scores polarity.
func (c *TwitterNewsChecker) CheckSymbol(ctx context.Context, symbol string) (types.TwitterConfirmation, error) {
	query := url.QueryEscape(fmt.Sprintf("$%s -is:retweet lang:en", symbol))
	reqURL := "https://api.twitter.com/2/tweets/search/recent?max_results=25&query=" + query

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.TwitterConfirmation{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.TwitterConfirmation{}, fmt.Errorf("twitter search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return types.TwitterConfirmation{}, fmt.Errorf("twitter rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return types.TwitterConfirmation{}, fmt.Errorf("twitter search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return types.TwitterConfirmation{}, fmt.Errorf("twitter decode failed: %w", err)
	}

	positive, negative := 0, 0
	for _, tweet := range parsed.Data {
		lower := strings.ToLower(tweet.Text)
		switch {
		case strings.Contains(lower, "beat") || strings.Contains(lower, "upgrade") ||
			strings.Contains(lower, "surge") || strings.Contains(lower, "bullish"):
			positive++
		case strings.Contains(lower, "miss") || strings.Contains(lower, "downgrade") ||
			strings.Contains(lower, "lawsuit") || strings.Contains(lower, "bearish") ||
			strings.Contains(lower, "investigation"):
			negative++
		}
	}

	conf := types.TwitterConfirmation{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Summary:   fmt.Sprintf("%d positive / %d negative of %d recent tweets", positive, negative, len(parsed.Data)),
	}
	if positive >= 3 && positive > negative*2 {
		conf.Confirmed = true
	} else if negative >= 3 && negative > positive*2 {
		conf.Contradict = true
	}
	return conf, nil
}

// CheckBreakingNews refreshes confirmations for held symbols within the
// rolling daily read budget. Budget exhaustion is a graceful no-op.
func (t *Trader) CheckBreakingNews(ctx context.Context, st *types.AgentState, positions []broker.Position, now time.Time) {
	if t.news == nil {
		return
	}
	cfg := st.Config.Twitter

	if now.Sub(st.TwitterDailyReset) >= 24*time.Hour {
		st.TwitterDailyReads = 0
		st.TwitterDailyReset = now
	}

	for _, pos := range positions {
		if pos.IsOption() || pos.IsCrypto() {
			continue
		}
		if conf, ok := st.TwitterConfirmations[pos.Symbol]; ok && now.Sub(conf.Timestamp) < time.Hour {
			continue
		}
		if st.TwitterDailyReads >= cfg.DailyReadLimit {
			st.AppendLog("info", "twitter", "daily read budget exhausted")
			return
		}
		st.TwitterDailyReads++

		conf, err := t.news.CheckSymbol(ctx, pos.Symbol)
		if err != nil {
			t.logger.Debug("news check failed", zap.String("symbol", pos.Symbol), zap.Error(err))
			continue
		}
		st.TwitterConfirmations[pos.Symbol] = conf
		if conf.Contradict {
			st.AppendLog("warn", "twitter", fmt.Sprintf("breaking news contradicts %s: %s", pos.Symbol, conf.Summary))
		}
	}
}
