package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/types"
	"github.com/tradewind-labs/tradewind/pkg/utils"
)

// GeckoChartAnalyzer fetches OHLCV candles from GeckoTerminal and derives a
// rule-based entry read: trend, volume profile, simple patterns, and an
// entry score in [0, 100].
type GeckoChartAnalyzer struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
}

// NewGeckoChartAnalyzer returns an analyzer against the public API.
func NewGeckoChartAnalyzer(logger *zap.Logger) *GeckoChartAnalyzer {
	return &GeckoChartAnalyzer{
		logger:     logger.Named("chart"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    "https://api.geckoterminal.com/api/v2",
	}
}

type candle struct {
	Open, High, Low, Close, Volume float64
}

// AnalyzeChart returns nil (no error) when the token has no chart data yet.
// Young tokens are read on 1-minute candles, older ones on 15-minute.
func (a *GeckoChartAnalyzer) AnalyzeChart(ctx context.Context, tokenAddress string, ageHours float64) (*types.ChartAnalysis, error) {
	timeframe := "minute"
	if ageHours > 12 {
		timeframe = "minute?aggregate=15"
	}
	url := fmt.Sprintf("%s/networks/solana/tokens/%s/pools", a.baseURL, tokenAddress)

	pool, err := a.topPool(ctx, url)
	if err != nil {
		return nil, err
	}
	if pool == "" {
		return nil, nil
	}

	candles, err := a.fetchOHLCV(ctx, pool, timeframe)
	if err != nil {
		return nil, err
	}
	if len(candles) < 5 {
		return nil, nil
	}

	analysis := analyzeCandles(candles)
	analysis.Timeframe = timeframe
	return analysis, nil
}

func (a *GeckoChartAnalyzer) topPool(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pool lookup failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pool lookup returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			Attributes struct {
				Address string `json:"address"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Data) == 0 {
		return "", nil
	}
	return parsed.Data[0].Attributes.Address, nil
}

func (a *GeckoChartAnalyzer) fetchOHLCV(ctx context.Context, pool, timeframe string) ([]candle, error) {
	url := fmt.Sprintf("%s/networks/solana/pools/%s/ohlcv/%s", a.baseURL, pool, timeframe)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ohlcv fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ohlcv fetch returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Data struct {
			Attributes struct {
				OHLCVList [][]float64 `json:"ohlcv_list"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	list := parsed.Data.Attributes.OHLCVList
	candles := make([]candle, 0, len(list))
	// API returns newest-first: [ts, o, h, l, c, v].
	for i := len(list) - 1; i >= 0; i-- {
		row := list[i]
		if len(row) < 6 {
			continue
		}
		candles = append(candles, candle{Open: row[1], High: row[2], Low: row[3], Close: row[4], Volume: row[5]})
	}
	return candles, nil
}

// analyzeCandles scores the chart. Rising closes and rising volume score
// high; blow-off tops and volume collapse score low.
func analyzeCandles(candles []candle) *types.ChartAnalysis {
	n := len(candles)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	recent := closes[n-1]
	mid := closes[n/2]
	first := closes[0]

	trend := "sideways"
	switch {
	case recent > mid && mid > first:
		trend = "uptrend"
	case recent < mid && mid < first:
		trend = "downtrend"
	}

	halfVol := utils.Mean(volumes[n/2:])
	earlyVol := utils.Mean(volumes[:n/2])
	volumeProfile := "flat"
	switch {
	case earlyVol > 0 && halfVol > earlyVol*1.5:
		volumeProfile = "increasing"
	case earlyVol > 0 && halfVol < earlyVol*0.5:
		volumeProfile = "decreasing"
	}

	score := 50.0
	var patterns []types.ChartPattern

	if trend == "uptrend" {
		score += 20
	} else if trend == "downtrend" {
		score -= 25
	}
	if volumeProfile == "increasing" {
		score += 15
	} else if volumeProfile == "decreasing" {
		score -= 15
	}

	// Blow-off: last close far above the recent mean on fading volume.
	meanClose := utils.Mean(closes)
	if meanClose > 0 && recent > meanClose*1.8 && volumeProfile != "increasing" {
		score -= 20
		patterns = append(patterns, types.ChartPattern{
			Pattern:     "blow_off_top",
			Signal:      "bearish",
			Description: "price extended far above mean without volume support",
		})
	}

	// Higher lows across thirds of the window.
	if n >= 9 {
		l1 := lowest(candles[:n/3])
		l2 := lowest(candles[n/3 : 2*n/3])
		l3 := lowest(candles[2*n/3:])
		if l1 < l2 && l2 < l3 {
			score += 10
			patterns = append(patterns, types.ChartPattern{
				Pattern:     "higher_lows",
				Signal:      "bullish",
				Description: "successive lows rising across the window",
			})
		}
	}

	score = utils.Clamp(score, 0, 100)
	recommendation := "avoid"
	switch {
	case score >= 70:
		recommendation = "strong_entry"
	case score >= 40:
		recommendation = "acceptable"
	}

	return &types.ChartAnalysis{
		Candles:        n,
		EntryScore:     score,
		Recommendation: recommendation,
		Indicators: types.ChartIndicators{
			Trend:         trend,
			VolumeProfile: volumeProfile,
		},
		Patterns: patterns,
	}
}

func lowest(candles []candle) float64 {
	low := candles[0].Low
	for _, c := range candles[1:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low
}
