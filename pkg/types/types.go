// Package types provides shared type definitions for the trading agent.
package types

import (
	"time"
)

// SignalSource identifies where a social/market signal came from.
type SignalSource string

const (
	SourceStockTwits SignalSource = "stocktwits"
	SourceReddit     SignalSource = "reddit"
	SourceFinTwit    SignalSource = "fintwit"
	SourceCrypto     SignalSource = "crypto"
)

// Signal is a single weighted sentiment observation. Immutable once inserted
// into the cache.
type Signal struct {
	Symbol       string       `json:"symbol"`
	Source       SignalSource `json:"source"`
	SourceDetail string       `json:"sourceDetail"`
	RawSentiment float64      `json:"rawSentiment"` // [-1, 1]
	Sentiment    float64      `json:"sentiment"`    // raw x weight x freshness x engagement x flair
	Volume       int          `json:"volume"`
	Freshness    float64      `json:"freshness"` // [0.2, 1.0]
	Timestamp    time.Time    `json:"timestamp"`

	Upvotes    int      `json:"upvotes,omitempty"`
	Comments   int      `json:"comments,omitempty"`
	Flair      string   `json:"flair,omitempty"`
	Subreddits []string `json:"subreddits,omitempty"`
	IsCrypto   bool     `json:"isCrypto,omitempty"`
	Momentum   float64  `json:"momentum,omitempty"`
	Price      float64  `json:"price,omitempty"`
}

// PositionEntry is the agent's book-keeping for an equity/crypto position.
// Created on buy, destroyed on sell or stale-exit.
type PositionEntry struct {
	Symbol            string    `json:"symbol"`
	EntryTime         time.Time `json:"entryTime"`
	EntryPrice        float64   `json:"entryPrice"`
	EntrySentiment    float64   `json:"entrySentiment"`
	EntrySocialVolume int       `json:"entrySocialVolume"`
	EntrySources      []string  `json:"entrySources"`
	EntryReason       string    `json:"entryReason"`
	PeakPrice         float64   `json:"peakPrice"`
	PeakSentiment     float64   `json:"peakSentiment"`
}

// Tier classifies a DEX momentum candidate by age/liquidity band.
type Tier string

const (
	TierMicrospray  Tier = "microspray"
	TierBreakout    Tier = "breakout"
	TierLottery     Tier = "lottery"
	TierEarly       Tier = "early"
	TierEstablished Tier = "established"
)

// DexPosition is an open paper position in the DEX momentum engine.
// Invariant: TokenAmount x EntryPrice ~= EntryStakeSol x solUsd at creation,
// and PeakPrice is monotonically non-decreasing.
type DexPosition struct {
	TokenAddress       string    `json:"tokenAddress"`
	Symbol             string    `json:"symbol"`
	EntryPrice         float64   `json:"entryPrice"` // post-slippage
	EntryStakeSol      float64   `json:"entryStakeSol"`
	EntryTime          time.Time `json:"entryTime"`
	TokenAmount        float64   `json:"tokenAmount"`
	PeakPrice          float64   `json:"peakPrice"`
	LastPrice          float64   `json:"lastPrice,omitempty"` // most recent scan mark

	EntryMomentumScore float64   `json:"entryMomentumScore"`
	EntryLiquidity     float64   `json:"entryLiquidity"`
	Tier               Tier      `json:"tier"`
	MissedScans        int       `json:"missedScans"`
}

// ExitReason is the closed set of reasons a DEX position is closed.
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "take_profit"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitLostMomentum ExitReason = "lost_momentum"
	ExitManual       ExitReason = "manual"
)

// DexTradeRecord is an immutable ledger row written when a position exits.
type DexTradeRecord struct {
	Symbol        string     `json:"symbol"`
	TokenAddress  string     `json:"tokenAddress"`
	EntryPrice    float64    `json:"entryPrice"`
	ExitPrice     float64    `json:"exitPrice"` // post-slippage
	EntryStakeSol float64    `json:"entryStakeSol"`
	EntryTime     time.Time  `json:"entryTime"`
	ExitTime      time.Time  `json:"exitTime"`
	PnLPct        float64    `json:"pnlPct"`
	PnLSol        float64    `json:"pnlSol"`
	ExitReason    ExitReason `json:"exitReason"`
}

// StopLossCooldown is the per-token lockout recorded after a stop-loss or
// trailing-stop exit. Cleared by price recovery, strong momentum with minimum
// elapsed time, or the fallback wall clock.
type StopLossCooldown struct {
	ExitPrice      float64   `json:"exitPrice"`
	ExitTime       time.Time `json:"exitTime"`
	FallbackExpiry time.Time `json:"fallbackExpiry"`
}

// StopLossEvent feeds the rolling circuit-breaker window.
type StopLossEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
}

// SlippageModel selects the paper-execution slippage parameters.
type SlippageModel string

const (
	SlippageNone         SlippageModel = "none"
	SlippageConservative SlippageModel = "conservative"
	SlippageRealistic    SlippageModel = "realistic"
)

// DexSignal is one momentum-scanner candidate.
type DexSignal struct {
	TokenAddress    string  `json:"tokenAddress"`
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	URL             string  `json:"url"`
	PriceUsd        float64 `json:"priceUsd"`
	PriceChange5m   float64 `json:"priceChange5m,omitempty"`
	PriceChange6h   float64 `json:"priceChange6h"`
	PriceChange24h  float64 `json:"priceChange24h"`
	Volume24h       float64 `json:"volume24h"`
	Liquidity       float64 `json:"liquidity"`
	AgeHours        float64 `json:"ageHours"`
	AgeDays         float64 `json:"ageDays"`
	MomentumScore   float64 `json:"momentumScore"`   // [0, 100]
	LegitimacyScore float64 `json:"legitimacyScore"` // [0, 100]
	Tier            Tier    `json:"tier"`
	DexID           string  `json:"dexId"`
}

// ChartPattern is a single detected chart pattern.
type ChartPattern struct {
	Pattern     string `json:"pattern"`
	Signal      string `json:"signal"`
	Description string `json:"description"`
}

// ChartIndicators summarizes the analyzer's indicator read.
type ChartIndicators struct {
	Trend         string `json:"trend"`
	VolumeProfile string `json:"volumeProfile"`
}

// ChartAnalysis is the OHLCV analyzer verdict for a candidate token.
type ChartAnalysis struct {
	Timeframe      string          `json:"timeframe"`
	Candles        int             `json:"candles"`
	EntryScore     float64         `json:"entryScore"` // [0, 100]
	Recommendation string          `json:"recommendation"`
	Indicators     ChartIndicators `json:"indicators"`
	Patterns       []ChartPattern  `json:"patterns"`
}

// PortfolioSnapshot is one point of the DEX equity curve.
type PortfolioSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	BalanceSol    float64   `json:"balanceSol"`
	PositionsSol  float64   `json:"positionsSol"`
	TotalSol      float64   `json:"totalSol"`
	OpenPositions int       `json:"openPositions"`
}

// CrisisLevel is the 0-3 macro stress severity.
type CrisisLevel int

const (
	CrisisNormal     CrisisLevel = 0
	CrisisElevated   CrisisLevel = 1
	CrisisHighAlert  CrisisLevel = 2
	CrisisFullCrisis CrisisLevel = 3
)

// String returns a human-readable level name.
func (l CrisisLevel) String() string {
	switch l {
	case CrisisNormal:
		return "NORMAL"
	case CrisisElevated:
		return "ELEVATED"
	case CrisisHighAlert:
		return "HIGH_ALERT"
	case CrisisFullCrisis:
		return "FULL_CRISIS"
	default:
		return "UNKNOWN"
	}
}

// CrisisIndicators holds the latest macro indicator readings. Nil means the
// source failed or is unavailable; scoring must tolerate nil anywhere.
type CrisisIndicators struct {
	VIX              *float64  `json:"vix"`
	HYSpread         *float64  `json:"hySpread"`
	YieldCurve2s10s  *float64  `json:"yc2y10y"`
	TEDSpread        *float64  `json:"ted"`
	BTCPrice         *float64  `json:"btcPrice"`
	BTCWeeklyPct     *float64  `json:"btcWeeklyPct"`
	USDTPeg          *float64  `json:"usdtPeg"`
	DXY              *float64  `json:"dxy"`
	USDJPY           *float64  `json:"usdjpy"`
	KRE              *float64  `json:"kre"`
	KREWeeklyPct     *float64  `json:"kreWeeklyPct"`
	GoldSilverRatio  *float64  `json:"goldSilverRatio"`
	SilverWeeklyPct  *float64  `json:"silverWeeklyPct"`
	StocksAbove200MA *float64  `json:"stocksAbove200ma"` // no reliable source yet; stays nil
	FedBalanceSheet  *float64  `json:"fedBalanceSheet"`
	FedChangePct     *float64  `json:"fedChangePct"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// CrisisState is the crisis monitor's durable state.
type CrisisState struct {
	Level                   CrisisLevel      `json:"level"`
	Indicators              CrisisIndicators `json:"indicators"`
	TriggeredIndicators     []string         `json:"triggeredIndicators"`
	PausedUntil             *time.Time       `json:"pausedUntil,omitempty"`
	LastLevelChange         time.Time        `json:"lastLevelChange"`
	PositionsClosedInCrisis []string         `json:"positionsClosedInCrisis"`
	ManualOverride          bool             `json:"manualOverride"`
}

// Verdict is an LLM recommendation for a symbol.
type Verdict string

const (
	VerdictBuy  Verdict = "BUY"
	VerdictSell Verdict = "SELL"
	VerdictHold Verdict = "HOLD"
)

// ResearchResult is a parsed LLM research verdict.
type ResearchResult struct {
	Symbol       string    `json:"symbol"`
	Verdict      Verdict   `json:"verdict"`
	Confidence   float64   `json:"confidence"` // (0, 1]
	EntryQuality string    `json:"entryQuality,omitempty"`
	Reasoning    string    `json:"reasoning"`
	Timestamp    time.Time `json:"timestamp"`
}

// StalenessResult is a cached staleness analysis for a held position.
type StalenessResult struct {
	Symbol    string    `json:"symbol"`
	Score     float64   `json:"score"` // [0, 100]
	IsStale   bool      `json:"isStale"`
	Reasons   []string  `json:"reasons"`
	Timestamp time.Time `json:"timestamp"`
}

// TwitterConfirmation records whether breaking-news checks confirmed or
// contradicted a signal.
type TwitterConfirmation struct {
	Symbol     string    `json:"symbol"`
	Confirmed  bool      `json:"confirmed"`
	Contradict bool      `json:"contradict"`
	Summary    string    `json:"summary"`
	Timestamp  time.Time `json:"timestamp"`
}

// PremarketBuy is one planned open-auction entry.
type PremarketBuy struct {
	Symbol     string  `json:"symbol"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

/// PremarketPlan is built in the 09:25-09:29 window and executed at the open.
type PremarketPlan struct {
	CreatedAt time.Time      `json:"createdAt"`
	Buys      []PremarketBuy `json:"buys"`
	Notes     string         `json:"notes,omitempty"`
	Executed  bool           `json:"executed"`
}

// SocialPoint is one sample of a symbol's social volume/sentiment history.
type SocialPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Volume    int       `json:"volume"`
	Sentiment float64   `json:"sentiment"`
}

// LogEntry is one row of the agent's ring-buffer log, the primary
// user-visible feedback surface.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}

// CostLedger tracks cumulative LLM spend.
type CostLedger struct {
	PromptTokens     int64   `json:"promptTokens"`
	CompletionTokens int64   `json:"completionTokens"`
	TotalCostUSD     float64 `json:"totalCostUsd"`
	Calls            int64   `json:"calls"`
}
