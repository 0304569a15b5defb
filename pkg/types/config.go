// Package types provides configuration types for the trading agent.
package types

import (
	"math"
	"time"
)

// Config holds every agent tunable. A blank config is valid: missing fields
// are merged over DefaultConfig on load and Sanitize repairs anything a
// partial update left invalid.
type Config struct {
	Enabled bool `json:"enabled"`

	// Tick cadence
	TickIntervalMs             int64 `json:"tickIntervalMs"`
	DataPollIntervalMs         int64 `json:"dataPollIntervalMs"`
	AnalystIntervalMs          int64 `json:"analystIntervalMs"`
	ResearchIntervalMs         int64 `json:"researchIntervalMs"`
	PositionResearchIntervalMs int64 `json:"positionResearchIntervalMs"`

	Signals SignalsConfig `json:"signals"`
	Trading TradingConfig `json:"trading"`
	Dex     DexConfig     `json:"dex"`
	Crisis  CrisisConfig  `json:"crisis"`
	LLM     LLMConfig     `json:"llm"`
	Options OptionsConfig `json:"options"`
	Twitter TwitterConfig `json:"twitter"`
	Alerts  AlertsConfig  `json:"alerts"`
}

// SignalsConfig tunes signal acquisition and weighting.
type SignalsConfig struct {
	DecayHalfLifeMinutes float64            `json:"decayHalfLifeMinutes"`
	SourceWeights        map[string]float64 `json:"sourceWeights"`
	Subreddits           []string           `json:"subreddits"`
	UserBlacklist        []string           `json:"userBlacklist"`
	MaxCacheSize         int                `json:"maxCacheSize"`
	SignalTTLHours       float64            `json:"signalTtlHours"`
	StockTwitsMaxRetries int                `json:"stocktwitsMaxRetries"`
}

// TradingConfig tunes the equity/crypto trader.
type TradingConfig struct {
	StocksEnabled         bool     `json:"stocksEnabled"`
	CryptoEnabled         bool     `json:"cryptoEnabled"`
	MinSentimentScore     float64  `json:"minSentimentScore"`
	MinAnalystConfidence  float64  `json:"minAnalystConfidence"`
	PositionSizePctOfCash float64  `json:"positionSizePctOfCash"`
	MaxPositionValue      float64  `json:"maxPositionValue"`
	TakeProfitPct         float64  `json:"takeProfitPct"`
	StopLossPct           float64  `json:"stopLossPct"`
	LLMMinHoldMinutes     float64  `json:"llmMinHoldMinutes"`
	AllowedExchanges      []string `json:"allowedExchanges"`
	CryptoWatchlist       []string `json:"cryptoWatchlist"`

	// Staleness model
	StaleMinHoldHours      float64 `json:"staleMinHoldHours"`
	StaleMidHoldDays       float64 `json:"staleMidHoldDays"`
	StaleMaxHoldDays       float64 `json:"staleMaxHoldDays"`
	StaleMinGainPct        float64 `json:"staleMinGainPct"`
	StaleMidMinGainPct     float64 `json:"staleMidMinGainPct"`
	StaleSocialVolumeDecay float64 `json:"staleSocialVolumeDecay"`
}

// DexConfig tunes the DEX momentum paper engine.
type DexConfig struct {
	Enabled             bool    `json:"enabled"`
	StartingBalanceSol  float64 `json:"startingBalanceSol"`
	ScanIntervalMs      int64   `json:"scanIntervalMs"`
	MinMomentumScore    float64 `json:"minMomentumScore"`
	MaxPositions        int     `json:"maxPositions"`
	MaxMicrospray       int     `json:"maxMicrospray"`
	MaxBreakout         int     `json:"maxBreakout"`
	MaxLottery          int     `json:"maxLottery"`
	PctOfBalance        float64 `json:"pctOfBalance"`
	MaxPositionSol      float64 `json:"maxPositionSol"`
	MicrosprayPosSol    float64 `json:"microsprayPositionSol"`
	BreakoutPosSol      float64 `json:"breakoutPositionSol"`
	LotteryPositionSol  float64 `json:"lotteryPositionSol"`
	EarlyMultiplier     float64 `json:"earlyMultiplier"`
	MinViableSol        float64 `json:"minViableSol"`
	MaxSinglePosPct     float64 `json:"maxSinglePositionPct"`
	GasFeeSol           float64 `json:"gasFeeSol"`
	Slippage            SlippageModel `json:"slippageModel"`

	TakeProfitPct             float64 `json:"takeProfitPct"`
	StopLossPct               float64 `json:"stopLossPct"`
	TrailingStopEnabled       bool    `json:"trailingStopEnabled"`
	TrailingStopActivationPct float64 `json:"trailingStopActivationPct"`
	TrailingStopDistancePct   float64 `json:"trailingStopDistancePct"`
	LotteryTrailingActivation float64 `json:"lotteryTrailingActivation"`
	LotteryTrailingDistance   float64 `json:"lotteryTrailingDistance"`

	LostMomentumMaxMisses int     `json:"lostMomentumMaxMisses"`
	MomentumDecayRatio    float64 `json:"momentumDecayRatio"`
	SafeExitLiquidityMult float64 `json:"safeExitLiquidityMult"`

	ChartAnalysisEnabled  bool    `json:"chartAnalysisEnabled"`
	ChartMinEntryScore    float64 `json:"dexChartMinEntryScore"`

	StopLossCooldownHours float64 `json:"stopLossCooldownHours"`
	ReentryRecoveryPct    float64 `json:"reentryRecoveryPct"`
	ReentryMinMomentum    float64 `json:"reentryMinMomentum"`
	ReentryMinElapsedMin  float64 `json:"reentryMinElapsedMinutes"`

	CircuitBreakerLosses      int     `json:"circuitBreakerLosses"`
	CircuitBreakerWindowHours float64 `json:"circuitBreakerWindowHours"`
	CircuitBreakerPauseHours  float64 `json:"circuitBreakerPauseHours"`
	BreakerMinCooldownMinutes float64 `json:"breakerMinCooldownMinutes"`

	MaxDrawdownPct float64 `json:"maxDrawdownPct"`

	SolPriceTTLSeconds  float64 `json:"solPriceTtlSeconds"`
	SolPriceFallbackUsd float64 `json:"solPriceFallbackUsd"`

	MaxPortfolioHistory int `json:"maxPortfolioHistory"`
}

// CrisisConfig tunes the crisis monitor thresholds, one warning/critical pair
// per indicator.
type CrisisConfig struct {
	Enabled         bool   `json:"enabled"`
	CheckIntervalMs int64  `json:"crisisCheckIntervalMs"`
	FredAPIKey      string `json:"fredApiKey,omitempty"`

	VIXWarning  float64 `json:"vixWarning"`
	VIXCritical float64 `json:"vixCritical"`

	HYSpreadWarning  float64 `json:"hySpreadWarning"`
	HYSpreadCritical float64 `json:"hySpreadCritical"`

	YieldCurveWarning  float64 `json:"yieldCurveWarning"`
	YieldCurveCritical float64 `json:"yieldCurveCritical"`

	TEDWarning  float64 `json:"tedWarning"`
	TEDCritical float64 `json:"tedCritical"`

	BTCWeeklyWarningPct  float64 `json:"btcWeeklyWarningPct"`
	BTCWeeklyCriticalPct float64 `json:"btcWeeklyCriticalPct"`

	USDTPegWarning  float64 `json:"usdtPegWarning"`
	USDTPegCritical float64 `json:"usdtPegCritical"`

	DXYWarning  float64 `json:"dxyWarning"`
	DXYCritical float64 `json:"dxyCritical"`

	USDJPYWarning  float64 `json:"usdjpyWarning"`
	USDJPYCritical float64 `json:"usdjpyCritical"`

	KREWeeklyWarningPct  float64 `json:"kreWeeklyWarningPct"`
	KREWeeklyCriticalPct float64 `json:"kreWeeklyCriticalPct"`

	GoldSilverWarning  float64 `json:"goldSilverWarning"`
	GoldSilverCritical float64 `json:"goldSilverCritical"`

	FedChangeWarningPct  float64 `json:"fedChangeWarningPct"`
	FedChangeCriticalPct float64 `json:"fedChangeCriticalPct"`

	Level1StopLossPct     float64 `json:"crisisLevel1StopLossPct"`
	Level2MinProfitToHold float64 `json:"crisisLevel2MinProfitToHold"`
}

// LLMConfig tunes the research and analyst models.
type LLMConfig struct {
	Endpoint      string  `json:"endpoint"`
	APIKey        string  `json:"apiKey,omitempty"`
	ResearchModel string  `json:"researchModel"`
	AnalystModel  string  `json:"analystModel"`
	MaxTokens     int     `json:"maxTokens"`
	Temperature   float64 `json:"temperature"`
	TimeoutSec    float64 `json:"timeoutSeconds"`
}

// OptionsConfig tunes the options sub-flow.
type OptionsConfig struct {
	Enabled        bool    `json:"enabled"`
	MinDTE         int     `json:"optionsMinDte"`
	MaxDTE         int     `json:"optionsMaxDte"`
	MinDelta       float64 `json:"optionsMinDelta"`
	MaxDelta       float64 `json:"optionsMaxDelta"`
	MaxPctPerTrade float64 `json:"optionsMaxPctPerTrade"`
	MinConfidence  float64 `json:"optionsMinConfidence"`
	MaxSpreadPct   float64 `json:"optionsMaxSpreadPct"`
	StopLossPct    float64 `json:"optionsStopLossPct"`
	TakeProfitPct  float64 `json:"optionsTakeProfitPct"`
}

// TwitterConfig tunes the breaking-news confirmation source.
type TwitterConfig struct {
	Enabled        bool `json:"enabled"`
	DailyReadLimit int  `json:"dailyReadLimit"`
}

// AlertsConfig tunes notification channels.
type AlertsConfig struct {
	DiscordWebhookURL     string  `json:"discordWebhookUrl,omitempty"`
	TelegramToken         string  `json:"telegramToken,omitempty"`
	TelegramChatID        int64   `json:"telegramChatId,omitempty"`
	TradeCooldownMinutes  float64 `json:"tradeCooldownMinutes"`
	CrisisCooldownMinutes float64 `json:"crisisCooldownMinutes"`
}

// DefaultConfig returns the full set of production defaults. Every tunable
// has a sane value so a blank config is valid.
func DefaultConfig() Config {
	return Config{
		Enabled: false,

		TickIntervalMs:             30_000,
		DataPollIntervalMs:         120_000,
		AnalystIntervalMs:          300_000,
		ResearchIntervalMs:         120_000,
		PositionResearchIntervalMs: 300_000,

		Signals: SignalsConfig{
			DecayHalfLifeMinutes: 120,
			SourceWeights: map[string]float64{
				"fintwit":    0.95,
				"stocktwits": 0.8,
				"reddit":     0.7,
				"wsb":        0.6,
				"crypto":     0.75,
			},
			Subreddits:           []string{"wallstreetbets", "stocks", "investing", "options"},
			UserBlacklist:        []string{},
			MaxCacheSize:         200,
			SignalTTLHours:       24,
			StockTwitsMaxRetries: 3,
		},

		Trading: TradingConfig{
			StocksEnabled:         true,
			CryptoEnabled:         true,
			MinSentimentScore:     0.3,
			MinAnalystConfidence:  0.65,
			PositionSizePctOfCash: 10,
			MaxPositionValue:      2000,
			TakeProfitPct:         15,
			StopLossPct:           8,
			LLMMinHoldMinutes:     30,
			AllowedExchanges:      []string{"NYSE", "NASDAQ", "ARCA", "AMEX", "BATS"},
			CryptoWatchlist:       []string{"BTC/USD", "ETH/USD", "SOL/USD", "DOGE/USD", "AVAX/USD", "LINK/USD"},

			StaleMinHoldHours:      24,
			StaleMidHoldDays:       3,
			StaleMaxHoldDays:       7,
			StaleMinGainPct:        5,
			StaleMidMinGainPct:     2,
			StaleSocialVolumeDecay: 0.3,
		},

		Dex: DexConfig{
			Enabled:            true,
			StartingBalanceSol: 1.0,
			ScanIntervalMs:     30_000,
			MinMomentumScore:   60,
			MaxPositions:       8,
			MaxMicrospray:      10,
			MaxBreakout:        5,
			MaxLottery:         5,
			PctOfBalance:       0.10,
			MaxPositionSol:     0.10,
			MicrosprayPosSol:   0.005,
			BreakoutPosSol:     0.015,
			LotteryPositionSol: 0.02,
			EarlyMultiplier:    0.5,
			MinViableSol:       0.01,
			MaxSinglePosPct:    40,
			GasFeeSol:          0.000105,
			Slippage:           SlippageRealistic,

			TakeProfitPct:             100,
			StopLossPct:               25,
			TrailingStopEnabled:       true,
			TrailingStopActivationPct: 50,
			TrailingStopDistancePct:   25,
			LotteryTrailingActivation: 100,
			LotteryTrailingDistance:   20,

			LostMomentumMaxMisses: 10,
			MomentumDecayRatio:    0.4,
			SafeExitLiquidityMult: 5,

			ChartAnalysisEnabled: true,
			ChartMinEntryScore:   40,

			StopLossCooldownHours: 4,
			ReentryRecoveryPct:    0.15,
			ReentryMinMomentum:    70,
			ReentryMinElapsedMin:  5,

			CircuitBreakerLosses:      3,
			CircuitBreakerWindowHours: 24,
			CircuitBreakerPauseHours:  1,
			BreakerMinCooldownMinutes: 30,

			MaxDrawdownPct: 35,

			SolPriceTTLSeconds:  300,
			SolPriceFallbackUsd: 200,

			MaxPortfolioHistory: 2880,
		},

		Crisis: CrisisConfig{
			Enabled:         true,
			CheckIntervalMs: 900_000,

			VIXWarning:  25,
			VIXCritical: 40,

			HYSpreadWarning:  450,
			HYSpreadCritical: 600,

			YieldCurveWarning:  0,
			YieldCurveCritical: -0.5,

			TEDWarning:  0.5,
			TEDCritical: 1.0,

			BTCWeeklyWarningPct:  -15,
			BTCWeeklyCriticalPct: -20,

			USDTPegWarning:  0.995,
			USDTPegCritical: 0.99,

			DXYWarning:  105,
			DXYCritical: 110,

			USDJPYWarning:  150,
			USDJPYCritical: 158,

			KREWeeklyWarningPct:  -10,
			KREWeeklyCriticalPct: -20,

			GoldSilverWarning:  90,
			GoldSilverCritical: 100,

			FedChangeWarningPct:  1.5,
			FedChangeCriticalPct: 3,

			Level1StopLossPct:     5,
			Level2MinProfitToHold: 2,
		},

		LLM: LLMConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			ResearchModel: "gpt-4o-mini",
			AnalystModel:  "gpt-4o",
			MaxTokens:     1200,
			Temperature:   0.2,
			TimeoutSec:    30,
		},

		Options: OptionsConfig{
			Enabled:        false,
			MinDTE:         14,
			MaxDTE:         45,
			MinDelta:       0.35,
			MaxDelta:       0.65,
			MaxPctPerTrade: 0.02,
			MinConfidence:  0.8,
			MaxSpreadPct:   10,
			StopLossPct:    40,
			TakeProfitPct:  80,
		},

		Twitter: TwitterConfig{
			Enabled:        false,
			DailyReadLimit: 200,
		},

		Alerts: AlertsConfig{
			TradeCooldownMinutes:  30,
			CrisisCooldownMinutes: 5,
		},
	}
}

// Sanitize repairs invalid numeric fields in place, substituting defaults for
// NaN, infinities, and non-positive values where a positive value is
// required. Returns the list of repaired field names.
func (c *Config) Sanitize() []string {
	def := DefaultConfig()
	var fixed []string

	fix := func(name string, v *float64, d float64) {
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
			*v = d
			fixed = append(fixed, name)
		}
	}
	fixInt64 := func(name string, v *int64, d int64) {
		if *v <= 0 {
			*v = d
			fixed = append(fixed, name)
		}
	}
	fixInt := func(name string, v *int, d int) {
		if *v <= 0 {
			*v = d
			fixed = append(fixed, name)
		}
	}

	fixInt64("tickIntervalMs", &c.TickIntervalMs, def.TickIntervalMs)
	fixInt64("dataPollIntervalMs", &c.DataPollIntervalMs, def.DataPollIntervalMs)
	fixInt64("analystIntervalMs", &c.AnalystIntervalMs, def.AnalystIntervalMs)
	fixInt64("researchIntervalMs", &c.ResearchIntervalMs, def.ResearchIntervalMs)
	fixInt64("positionResearchIntervalMs", &c.PositionResearchIntervalMs, def.PositionResearchIntervalMs)

	fix("decayHalfLifeMinutes", &c.Signals.DecayHalfLifeMinutes, def.Signals.DecayHalfLifeMinutes)
	fixInt("maxCacheSize", &c.Signals.MaxCacheSize, def.Signals.MaxCacheSize)
	fix("signalTtlHours", &c.Signals.SignalTTLHours, def.Signals.SignalTTLHours)
	if len(c.Signals.SourceWeights) == 0 {
		c.Signals.SourceWeights = def.Signals.SourceWeights
		fixed = append(fixed, "sourceWeights")
	}
	if len(c.Signals.Subreddits) == 0 {
		c.Signals.Subreddits = def.Signals.Subreddits
		fixed = append(fixed, "subreddits")
	}

	fix("minAnalystConfidence", &c.Trading.MinAnalystConfidence, def.Trading.MinAnalystConfidence)
	fix("positionSizePctOfCash", &c.Trading.PositionSizePctOfCash, def.Trading.PositionSizePctOfCash)
	fix("maxPositionValue", &c.Trading.MaxPositionValue, def.Trading.MaxPositionValue)
	fix("trading.takeProfitPct", &c.Trading.TakeProfitPct, def.Trading.TakeProfitPct)
	fix("trading.stopLossPct", &c.Trading.StopLossPct, def.Trading.StopLossPct)
	fix("llmMinHoldMinutes", &c.Trading.LLMMinHoldMinutes, def.Trading.LLMMinHoldMinutes)
	if len(c.Trading.AllowedExchanges) == 0 {
		c.Trading.AllowedExchanges = def.Trading.AllowedExchanges
		fixed = append(fixed, "allowedExchanges")
	}
	fix("staleMinHoldHours", &c.Trading.StaleMinHoldHours, def.Trading.StaleMinHoldHours)
	fix("staleMidHoldDays", &c.Trading.StaleMidHoldDays, def.Trading.StaleMidHoldDays)
	fix("staleMaxHoldDays", &c.Trading.StaleMaxHoldDays, def.Trading.StaleMaxHoldDays)
	fix("staleMinGainPct", &c.Trading.StaleMinGainPct, def.Trading.StaleMinGainPct)
	fix("staleMidMinGainPct", &c.Trading.StaleMidMinGainPct, def.Trading.StaleMidMinGainPct)
	fix("staleSocialVolumeDecay", &c.Trading.StaleSocialVolumeDecay, def.Trading.StaleSocialVolumeDecay)

	fix("startingBalanceSol", &c.Dex.StartingBalanceSol, def.Dex.StartingBalanceSol)
	fixInt64("scanIntervalMs", &c.Dex.ScanIntervalMs, def.Dex.ScanIntervalMs)
	fix("minMomentumScore", &c.Dex.MinMomentumScore, def.Dex.MinMomentumScore)
	fixInt("maxPositions", &c.Dex.MaxPositions, def.Dex.MaxPositions)
	fixInt("maxMicrospray", &c.Dex.MaxMicrospray, def.Dex.MaxMicrospray)
	fixInt("maxBreakout", &c.Dex.MaxBreakout, def.Dex.MaxBreakout)
	fixInt("maxLottery", &c.Dex.MaxLottery, def.Dex.MaxLottery)
	fix("pctOfBalance", &c.Dex.PctOfBalance, def.Dex.PctOfBalance)
	fix("maxPositionSol", &c.Dex.MaxPositionSol, def.Dex.MaxPositionSol)
	fix("microsprayPositionSol", &c.Dex.MicrosprayPosSol, def.Dex.MicrosprayPosSol)
	fix("breakoutPositionSol", &c.Dex.BreakoutPosSol, def.Dex.BreakoutPosSol)
	fix("lotteryPositionSol", &c.Dex.LotteryPositionSol, def.Dex.LotteryPositionSol)
	fix("earlyMultiplier", &c.Dex.EarlyMultiplier, def.Dex.EarlyMultiplier)
	fix("minViableSol", &c.Dex.MinViableSol, def.Dex.MinViableSol)
	fix("maxSinglePositionPct", &c.Dex.MaxSinglePosPct, def.Dex.MaxSinglePosPct)
	fix("dex.takeProfitPct", &c.Dex.TakeProfitPct, def.Dex.TakeProfitPct)
	fix("dex.stopLossPct", &c.Dex.StopLossPct, def.Dex.StopLossPct)
	fix("trailingStopActivationPct", &c.Dex.TrailingStopActivationPct, def.Dex.TrailingStopActivationPct)
	fix("trailingStopDistancePct", &c.Dex.TrailingStopDistancePct, def.Dex.TrailingStopDistancePct)
	fix("lotteryTrailingActivation", &c.Dex.LotteryTrailingActivation, def.Dex.LotteryTrailingActivation)
	fix("lotteryTrailingDistance", &c.Dex.LotteryTrailingDistance, def.Dex.LotteryTrailingDistance)
	fixInt("lostMomentumMaxMisses", &c.Dex.LostMomentumMaxMisses, def.Dex.LostMomentumMaxMisses)
	fix("momentumDecayRatio", &c.Dex.MomentumDecayRatio, def.Dex.MomentumDecayRatio)
	fix("safeExitLiquidityMult", &c.Dex.SafeExitLiquidityMult, def.Dex.SafeExitLiquidityMult)
	fix("dexChartMinEntryScore", &c.Dex.ChartMinEntryScore, def.Dex.ChartMinEntryScore)
	fix("stopLossCooldownHours", &c.Dex.StopLossCooldownHours, def.Dex.StopLossCooldownHours)
	fix("reentryRecoveryPct", &c.Dex.ReentryRecoveryPct, def.Dex.ReentryRecoveryPct)
	fix("reentryMinMomentum", &c.Dex.ReentryMinMomentum, def.Dex.ReentryMinMomentum)
	fix("reentryMinElapsedMinutes", &c.Dex.ReentryMinElapsedMin, def.Dex.ReentryMinElapsedMin)
	fixInt("circuitBreakerLosses", &c.Dex.CircuitBreakerLosses, def.Dex.CircuitBreakerLosses)
	fix("circuitBreakerWindowHours", &c.Dex.CircuitBreakerWindowHours, def.Dex.CircuitBreakerWindowHours)
	fix("circuitBreakerPauseHours", &c.Dex.CircuitBreakerPauseHours, def.Dex.CircuitBreakerPauseHours)
	fix("breakerMinCooldownMinutes", &c.Dex.BreakerMinCooldownMinutes, def.Dex.BreakerMinCooldownMinutes)
	fix("maxDrawdownPct", &c.Dex.MaxDrawdownPct, def.Dex.MaxDrawdownPct)
	fix("solPriceTtlSeconds", &c.Dex.SolPriceTTLSeconds, def.Dex.SolPriceTTLSeconds)
	fix("solPriceFallbackUsd", &c.Dex.SolPriceFallbackUsd, def.Dex.SolPriceFallbackUsd)
	fixInt("maxPortfolioHistory", &c.Dex.MaxPortfolioHistory, def.Dex.MaxPortfolioHistory)
	if c.Dex.GasFeeSol < 0 || math.IsNaN(c.Dex.GasFeeSol) {
		c.Dex.GasFeeSol = def.Dex.GasFeeSol
		fixed = append(fixed, "gasFeeSol")
	}
	switch c.Dex.Slippage {
	case SlippageNone, SlippageConservative, SlippageRealistic:
	default:
		c.Dex.Slippage = def.Dex.Slippage
		fixed = append(fixed, "slippageModel")
	}

	fixInt64("crisisCheckIntervalMs", &c.Crisis.CheckIntervalMs, def.Crisis.CheckIntervalMs)
	fix("vixWarning", &c.Crisis.VIXWarning, def.Crisis.VIXWarning)
	fix("vixCritical", &c.Crisis.VIXCritical, def.Crisis.VIXCritical)
	fix("hySpreadWarning", &c.Crisis.HYSpreadWarning, def.Crisis.HYSpreadWarning)
	fix("hySpreadCritical", &c.Crisis.HYSpreadCritical, def.Crisis.HYSpreadCritical)
	fix("crisisLevel1StopLossPct", &c.Crisis.Level1StopLossPct, def.Crisis.Level1StopLossPct)
	fix("crisisLevel2MinProfitToHold", &c.Crisis.Level2MinProfitToHold, def.Crisis.Level2MinProfitToHold)

	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = def.LLM.Endpoint
		fixed = append(fixed, "llm.endpoint")
	}
	if c.LLM.ResearchModel == "" {
		c.LLM.ResearchModel = def.LLM.ResearchModel
		fixed = append(fixed, "llm.researchModel")
	}
	if c.LLM.AnalystModel == "" {
		c.LLM.AnalystModel = def.LLM.AnalystModel
		fixed = append(fixed, "llm.analystModel")
	}
	fixInt("llm.maxTokens", &c.LLM.MaxTokens, def.LLM.MaxTokens)
	fix("llm.timeoutSeconds", &c.LLM.TimeoutSec, def.LLM.TimeoutSec)
	if math.IsNaN(c.LLM.Temperature) || c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		c.LLM.Temperature = def.LLM.Temperature
		fixed = append(fixed, "llm.temperature")
	}

	fixInt("optionsMinDte", &c.Options.MinDTE, def.Options.MinDTE)
	fixInt("optionsMaxDte", &c.Options.MaxDTE, def.Options.MaxDTE)
	fix("optionsMinDelta", &c.Options.MinDelta, def.Options.MinDelta)
	fix("optionsMaxDelta", &c.Options.MaxDelta, def.Options.MaxDelta)
	fix("optionsMaxPctPerTrade", &c.Options.MaxPctPerTrade, def.Options.MaxPctPerTrade)
	fix("optionsMinConfidence", &c.Options.MinConfidence, def.Options.MinConfidence)
	fix("optionsMaxSpreadPct", &c.Options.MaxSpreadPct, def.Options.MaxSpreadPct)
	fix("optionsStopLossPct", &c.Options.StopLossPct, def.Options.StopLossPct)
	fix("optionsTakeProfitPct", &c.Options.TakeProfitPct, def.Options.TakeProfitPct)

	fixInt("twitter.dailyReadLimit", &c.Twitter.DailyReadLimit, def.Twitter.DailyReadLimit)

	fix("tradeCooldownMinutes", &c.Alerts.TradeCooldownMinutes, def.Alerts.TradeCooldownMinutes)
	fix("crisisCooldownMinutes", &c.Alerts.CrisisCooldownMinutes, def.Alerts.CrisisCooldownMinutes)

	return fixed
}

// TickInterval returns the tick cadence as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}
