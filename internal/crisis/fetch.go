// Package crisis monitors macro stress indicators and drives the 4-level
// crisis state machine.
package crisis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// Fetcher pulls the full indicator set. Every source failure yields nil for
// that indicator; fetching never fails as a whole.
type Fetcher struct {
	logger     *zap.Logger
	httpClient *http.Client
	fredAPIKey string
	yahooBase  string
	fredBase   string
}

// NewFetcher returns a fetcher against the public endpoints.
func NewFetcher(logger *zap.Logger, fredAPIKey string) *Fetcher {
	return &Fetcher{
		logger:     logger.Named("crisis.fetch"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		fredAPIKey: fredAPIKey,
		yahooBase:  "https://query1.finance.yahoo.com/v8/finance/chart",
		fredBase:   "https://api.stlouisfed.org/fred/series/observations",
	}
}

type yahooSeries struct {
	Latest float64
	First  float64
}

// WeeklyPct returns the change from the window's first close to the latest.
func (s yahooSeries) WeeklyPct() float64 {
	if s.First == 0 {
		return 0
	}
	return (s.Latest - s.First) / s.First * 100
}

func (f *Fetcher) yahoo(ctx context.Context, symbol, rang string) (*yahooSeries, error) {
	reqURL := fmt.Sprintf("%s/%s?range=%s&interval=1d", f.yahooBase, url.PathEscape(symbol), rang)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tradewind/1.0)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo %s returned status %d", symbol, resp.StatusCode)
	}

	var parsed struct {
		Chart struct {
			Result []struct {
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("yahoo %s decode failed: %w", symbol, err)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo %s returned no data", symbol)
	}

	var closes []float64
	for _, c := range parsed.Chart.Result[0].Indicators.Quote[0].Close {
		if c != nil && !math.IsNaN(*c) {
			closes = append(closes, *c)
		}
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("yahoo %s returned empty closes", symbol)
	}
	return &yahooSeries{Latest: closes[len(closes)-1], First: closes[0]}, nil
}

func (f *Fetcher) fred(ctx context.Context, series string, limit int) ([]float64, error) {
	if f.fredAPIKey == "" {
		return nil, fmt.Errorf("fred api key not configured")
	}
	reqURL := fmt.Sprintf("%s?series_id=%s&api_key=%s&file_type=json&sort_order=desc&limit=%d",
		f.fredBase, series, f.fredAPIKey, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fred fetch %s failed: %w", series, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fred %s returned status %d", series, resp.StatusCode)
	}

	var parsed struct {
		Observations []struct {
			Value string `json:"value"`
		} `json:"observations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("fred %s decode failed: %w", series, err)
	}

	var values []float64
	for _, obs := range parsed.Observations {
		if v, err := strconv.ParseFloat(obs.Value, 64); err == nil {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("fred %s returned no numeric observations", series)
	}
	return values, nil
}

// Fetch pulls every indicator concurrently. The HY spread is a synthetic
// proxy rebased from HYG vs TLT 5-day relative performance; it is a stand-in
// for a real OAS feed.
func (f *Fetcher) Fetch(ctx context.Context) types.CrisisIndicators {
	var ind types.CrisisIndicators
	eg, gctx := errgroup.WithContext(ctx)

	fetchYahoo := func(symbol, rang string, apply func(*yahooSeries)) {
		eg.Go(func() error {
			series, err := f.yahoo(gctx, symbol, rang)
			if err != nil {
				f.logger.Debug("indicator fetch failed", zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			apply(series)
			return nil
		})
	}

	fetchYahoo("^VIX", "1d", func(s *yahooSeries) { ind.VIX = &s.Latest })
	fetchYahoo("BTC-USD", "7d", func(s *yahooSeries) {
		ind.BTCPrice = &s.Latest
		pct := s.WeeklyPct()
		ind.BTCWeeklyPct = &pct
	})
	fetchYahoo("USDT-USD", "1d", func(s *yahooSeries) { ind.USDTPeg = &s.Latest })
	fetchYahoo("DX-Y.NYB", "1d", func(s *yahooSeries) { ind.DXY = &s.Latest })
	fetchYahoo("USDJPY=X", "1d", func(s *yahooSeries) { ind.USDJPY = &s.Latest })
	fetchYahoo("KRE", "7d", func(s *yahooSeries) {
		ind.KRE = &s.Latest
		pct := s.WeeklyPct()
		ind.KREWeeklyPct = &pct
	})

	var gold, silver, hyg, tlt *yahooSeries
	fetchYahoo("GC=F", "1d", func(s *yahooSeries) { gold = s })
	fetchYahoo("SI=F", "7d", func(s *yahooSeries) { silver = s })
	fetchYahoo("HYG", "5d", func(s *yahooSeries) { hyg = s })
	fetchYahoo("TLT", "5d", func(s *yahooSeries) { tlt = s })

	fetchFRED := func(series string, limit int, apply func([]float64)) {
		eg.Go(func() error {
			values, err := f.fred(gctx, series, limit)
			if err != nil {
				f.logger.Debug("indicator fetch failed", zap.String("series", series), zap.Error(err))
				return nil
			}
			apply(values)
			return nil
		})
	}

	fetchFRED("T10Y2Y", 1, func(v []float64) { ind.YieldCurve2s10s = &v[0] })
	fetchFRED("TEDRATE", 1, func(v []float64) { ind.TEDSpread = &v[0] })
	fetchFRED("WALCL", 5, func(v []float64) {
		ind.FedBalanceSheet = &v[0]
		if len(v) > 1 && v[len(v)-1] != 0 {
			pct := (v[0] - v[len(v)-1]) / v[len(v)-1] * 100
			ind.FedChangePct = &pct
		}
	})

	_ = eg.Wait()

	if gold != nil && silver != nil && silver.Latest > 0 {
		ratio := gold.Latest / silver.Latest
		ind.GoldSilverRatio = &ratio
		pct := silver.WeeklyPct()
		ind.SilverWeeklyPct = &pct
	}
	if hyg != nil && tlt != nil && hyg.First > 0 && tlt.First > 0 {
		// Credit stress proxy: widen when HYG lags TLT over 5 days, rebased
		// onto a spread-like scale in basis points.
		hygPerf := (hyg.Latest - hyg.First) / hyg.First * 100
		tltPerf := (tlt.Latest - tlt.First) / tlt.First * 100
		proxy := (tltPerf - hygPerf) * 100
		spread := math.Max(200, 300+proxy)
		ind.HYSpread = &spread
	}

	// No reliable free source; scoring tolerates the permanent nil.
	ind.StocksAbove200MA = nil

	ind.LastUpdated = time.Now()
	return ind
}
