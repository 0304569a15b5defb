package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// tickerBlacklist covers common English words and trading slang that match
// the 2-5 uppercase pattern but are never tickers.
var tickerBlacklist = map[string]bool{
	"A": true, "I": true, "AND": true, "ARE": true, "ALL": true, "ANY": true,
	"ATH": true, "ATL": true, "BE": true, "BIG": true, "BUY": true, "CALL": true,
	"CEO": true, "CFO": true, "DD": true, "DOWN": true, "EOD": true, "EPS": true,
	"ETF": true, "FOMO": true, "FOR": true, "FUD": true, "GAIN": true, "GO": true,
	"HODL": true, "HOLD": true, "HUGE": true, "IMO": true, "IPO": true, "IS": true,
	"IT": true, "ITM": true, "LOL": true, "LONG": true, "LOSS": true, "MOON": true,
	"NEW": true, "NOT": true, "NOW": true, "OTM": true, "PE": true, "PUT": true,
	"PUTS": true, "RED": true, "SEC": true, "SELL": true, "SHORT": true, "STOP": true,
	"THE": true, "TO": true, "TODAY": true, "USA": true, "USD": true, "WSB": true,
	"YOLO": true, "YOU": true,
}

var (
	cashtagPattern = regexp.MustCompile(`\$([A-Z]{2,5})\b`)
	// Bare symbol only counts when followed by a trading keyword.
	bareSymbolPattern = regexp.MustCompile(`\b([A-Z]{2,5})\s+(?:calls?|puts?|shares?|stock|earnings|moon(?:ing)?|squeeze|breakout|dip)`)
)

// ExtractTickers pulls candidate symbols from free text: $SYM cashtags plus
// bare symbols followed by trading keywords, filtered through the static and
// user blacklists.
func ExtractTickers(text string, userBlacklist []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(sym string) {
		sym = strings.ToUpper(sym)
		if len(sym) < 2 || len(sym) > 5 || tickerBlacklist[sym] || seen[sym] {
			return
		}
		for _, b := range userBlacklist {
			if strings.EqualFold(b, sym) {
				return
			}
		}
		seen[sym] = true
		out = append(out, sym)
	}

	for _, m := range cashtagPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range bareSymbolPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return out
}

// AssetLookup checks whether a symbol is tradable via the broker.
type AssetLookup interface {
	AssetExists(ctx context.Context, symbol string) (bool, error)
}

// TickerValidator resolves candidate symbols against the SEC company list
// (cached 24h) and falls back to broker asset lookup, cached per process.
type TickerValidator struct {
	logger     *zap.Logger
	httpClient *http.Client
	assets     AssetLookup

	mu          sync.RWMutex
	secTickers  map[string]bool
	secFetched  time.Time
	brokerCache map[string]bool
}

// NewTickerValidator returns a validator with empty caches.
func NewTickerValidator(logger *zap.Logger, assets AssetLookup) *TickerValidator {
	return &TickerValidator{
		logger:      logger.Named("tickers"),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		assets:      assets,
		brokerCache: make(map[string]bool),
	}
}

const secTickerURL = "https://www.sec.gov/files/company_tickers.json"

func (v *TickerValidator) refreshSEC(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, secTickerURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "tradewind research agent")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sec ticker fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sec ticker fetch returned status %d", resp.StatusCode)
	}

	var listing map[string]struct {
		Ticker string `json:"ticker"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("sec ticker decode failed: %w", err)
	}

	tickers := make(map[string]bool, len(listing))
	for _, entry := range listing {
		tickers[strings.ToUpper(entry.Ticker)] = true
	}

	v.mu.Lock()
	v.secTickers = tickers
	v.secFetched = time.Now()
	v.mu.Unlock()

	v.logger.Info("refreshed sec ticker list", zap.Int("count", len(tickers)))
	return nil
}

// IsValid reports whether the symbol is a known security. SEC misses fall
// through to the broker asset lookup; lookup failures count as invalid.
func (v *TickerValidator) IsValid(ctx context.Context, symbol string) bool {
	symbol = strings.ToUpper(symbol)

	v.mu.RLock()
	stale := time.Since(v.secFetched) > 24*time.Hour
	known := v.secTickers[symbol]
	cached, inCache := v.brokerCache[symbol]
	v.mu.RUnlock()

	if stale {
		if err := v.refreshSEC(ctx); err != nil {
			v.logger.Warn("sec refresh failed, using stale list", zap.Error(err))
		} else {
			v.mu.RLock()
			known = v.secTickers[symbol]
			v.mu.RUnlock()
		}
	}
	if known {
		return true
	}
	if inCache {
		return cached
	}
	if v.assets == nil {
		return false
	}

	exists, err := v.assets.AssetExists(ctx, symbol)
	if err != nil {
		v.logger.Debug("broker asset lookup failed", zap.String("symbol", symbol), zap.Error(err))
		return false
	}
	v.mu.Lock()
	v.brokerCache[symbol] = exists
	v.mu.Unlock()
	return exists
}
