package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SolPricer provides the SOL/USD conversion rate.
type SolPricer interface {
	SolPriceUSD(ctx context.Context) float64
}

// SolPriceCache fetches SOL/USD from CoinGecko with a TTL; on fetch failure
// it serves the stale cached price, or the configured fallback if nothing
// was ever fetched.
type SolPriceCache struct {
	logger     *zap.Logger
	httpClient *http.Client
	ttl        time.Duration
	fallback   float64

	mu      sync.Mutex
	price   float64
	fetched time.Time
}

// NewSolPriceCache returns an empty cache.
func NewSolPriceCache(logger *zap.Logger, ttlSeconds, fallbackUSD float64) *SolPriceCache {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	if fallbackUSD <= 0 {
		fallbackUSD = 200
	}
	return &SolPriceCache{
		logger:     logger.Named("solprice"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		ttl:        time.Duration(ttlSeconds * float64(time.Second)),
		fallback:   fallbackUSD,
	}
}

const solPriceURL = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"

// SolPriceUSD returns the cached price, refreshing past the TTL. Never
// returns zero.
func (c *SolPriceCache) SolPriceUSD(ctx context.Context) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.price > 0 && time.Since(c.fetched) < c.ttl {
		return c.price
	}

	price, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("sol price fetch failed", zap.Error(err))
		if c.price > 0 {
			return c.price
		}
		return c.fallback
	}

	c.price = price
	c.fetched = time.Now()
	return price
}

func (c *SolPriceCache) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, solPriceURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("sol price endpoint returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	if parsed.Solana.USD <= 0 {
		return 0, fmt.Errorf("sol price endpoint returned %v", parsed.Solana.USD)
	}
	return parsed.Solana.USD, nil
}

// StaticSolPrice is a fixed-rate pricer for tests.
type StaticSolPrice float64

// SolPriceUSD returns the fixed rate.
func (p StaticSolPrice) SolPriceUSD(context.Context) float64 { return float64(p) }
