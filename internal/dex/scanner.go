package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/types"
	"github.com/tradewind-labs/tradewind/pkg/utils"
)

// Scanner finds momentum token candidates.
type Scanner interface {
	FindMomentumTokens(ctx context.Context, cfg types.DexConfig) ([]types.DexSignal, error)
}

// ChartAnalyzer produces an OHLCV entry read for one token. A nil result
// with nil error means no chart data is available.
type ChartAnalyzer interface {
	AnalyzeChart(ctx context.Context, tokenAddress string, ageHours float64) (*types.ChartAnalysis, error)
}

// tierFilter is one row of the tier table.
type tierFilter struct {
	Tier         types.Tier
	MinAgeHours  float64
	MaxAgeHours  float64
	MinLiquidity float64
	// Breakout additionally requires a 5-minute pump.
	MinPump5mPct float64
	// Early additionally requires a legitimacy floor.
	MinLegitimacy float64
}

// tierFilters is ordered: the first matching row classifies the token.
var tierFilters = []tierFilter{
	{Tier: types.TierBreakout, MinAgeHours: 2, MaxAgeHours: 6, MinLiquidity: 15_000, MinPump5mPct: 50},
	{Tier: types.TierMicrospray, MinAgeHours: 0.5, MaxAgeHours: 2, MinLiquidity: 10_000},
	{Tier: types.TierLottery, MinAgeHours: 1, MaxAgeHours: 6, MinLiquidity: 15_000},
	{Tier: types.TierEarly, MinAgeHours: 6, MaxAgeHours: 72, MinLiquidity: 30_000, MinLegitimacy: 40},
	{Tier: types.TierEstablished, MinAgeHours: 72, MaxAgeHours: 336, MinLiquidity: 50_000},
}

// DexScreenerScanner pulls Solana pair data from the DexScreener search API
// and scores each pair for momentum and legitimacy.
type DexScreenerScanner struct {
	logger     *zap.Logger
	httpClient *http.Client
	searchURL  string
}

// NewDexScreenerScanner returns a scanner against the public API.
func NewDexScreenerScanner(logger *zap.Logger) *DexScreenerScanner {
	return &DexScreenerScanner{
		logger:     logger.Named("scanner"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		searchURL:  "https://api.dexscreener.com/latest/dex/search?q=SOL",
	}
}

type screenerPair struct {
	ChainID   string `json:"chainId"`
	DexID     string `json:"dexId"`
	URL       string `json:"url"`
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
		Name    string `json:"name"`
	} `json:"baseToken"`
	PriceUsd    string `json:"priceUsd"`
	PriceChange struct {
		M5  float64 `json:"m5"`
		H1  float64 `json:"h1"`
		H6  float64 `json:"h6"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	PairCreatedAt int64 `json:"pairCreatedAt"` // unix ms
}

type screenerResponse struct {
	Pairs []screenerPair `json:"pairs"`
}

// FindMomentumTokens fetches pairs, classifies each into a tier via the
// filter table, and returns candidates sorted by the API's own ordering.
func (s *DexScreenerScanner) FindMomentumTokens(ctx context.Context, cfg types.DexConfig) ([]types.DexSignal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexscreener returned status %d", resp.StatusCode)
	}

	var parsed screenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("dexscreener decode failed: %w", err)
	}

	now := time.Now()
	var out []types.DexSignal
	for _, pair := range parsed.Pairs {
		if pair.ChainID != "solana" || pair.BaseToken.Address == "" {
			continue
		}
		price, err := strconv.ParseFloat(pair.PriceUsd, 64)
		if err != nil || price <= 0 || pair.PairCreatedAt <= 0 {
			continue
		}

		ageHours := now.Sub(time.UnixMilli(pair.PairCreatedAt)).Hours()
		legitimacy := legitimacyScore(pair, ageHours)

		tier, ok := classify(pair, ageHours, legitimacy)
		if !ok {
			continue
		}

		out = append(out, types.DexSignal{
			TokenAddress:    pair.BaseToken.Address,
			Symbol:          pair.BaseToken.Symbol,
			Name:            pair.BaseToken.Name,
			URL:             pair.URL,
			PriceUsd:        price,
			PriceChange5m:   pair.PriceChange.M5,
			PriceChange6h:   pair.PriceChange.H6,
			PriceChange24h:  pair.PriceChange.H24,
			Volume24h:       pair.Volume.H24,
			Liquidity:       pair.Liquidity.USD,
			AgeHours:        ageHours,
			AgeDays:         ageHours / 24,
			MomentumScore:   momentumScore(pair),
			LegitimacyScore: legitimacy,
			Tier:            tier,
			DexID:           pair.DexID,
		})
	}

	s.logger.Debug("scan complete",
		zap.Int("pairs", len(parsed.Pairs)),
		zap.Int("candidates", len(out)))
	return out, nil
}

func classify(pair screenerPair, ageHours, legitimacy float64) (types.Tier, bool) {
	for _, f := range tierFilters {
		if ageHours < f.MinAgeHours || ageHours > f.MaxAgeHours {
			continue
		}
		if pair.Liquidity.USD < f.MinLiquidity {
			continue
		}
		if f.MinPump5mPct > 0 && pair.PriceChange.M5 < f.MinPump5mPct {
			continue
		}
		if f.MinLegitimacy > 0 && legitimacy < f.MinLegitimacy {
			continue
		}
		return f.Tier, true
	}
	return "", false
}

// momentumScore blends short-horizon price acceleration with turnover.
// Range [0, 100].
func momentumScore(pair screenerPair) float64 {
	priceComponent := pair.PriceChange.M5*0.5 + pair.PriceChange.H1*0.3 + pair.PriceChange.H6*0.2
	score := utils.Clamp(priceComponent, 0, 60)

	if pair.Liquidity.USD > 0 {
		turnover := pair.Volume.H24 / pair.Liquidity.USD
		score += utils.Clamp(turnover*10, 0, 40)
	}
	return utils.Clamp(score, 0, 100)
}

// legitimacyScore rewards real liquidity, sustained volume, and surviving
// past the first hours. Range [0, 100].
func legitimacyScore(pair screenerPair, ageHours float64) float64 {
	score := 0.0
	score += utils.Clamp(math.Log10(math.Max(pair.Liquidity.USD, 1))*10-30, 0, 35)
	score += utils.Clamp(math.Log10(math.Max(pair.Volume.H24, 1))*8-20, 0, 30)
	score += utils.Clamp(ageHours/72*25, 0, 25)
	if pair.PriceChange.H24 > -50 {
		score += 10
	}
	return utils.Clamp(score, 0, 100)
}
