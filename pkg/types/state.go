package types

import (
	"math"
	"time"
)

// AgentState is the single durable root object owned by the agent actor.
// All mutation happens inside a tick; external callers observe it only
// through the admin surface.
type AgentState struct {
	Config  Config `json:"config"`
	Enabled bool   `json:"enabled"`

	// Signals
	SignalCache   []Signal                 `json:"signalCache"`
	SocialHistory map[string][]SocialPoint `json:"socialHistory"`

	// Equity/crypto trader
	PositionEntries      map[string]PositionEntry       `json:"positionEntries"`
	SignalResearch       map[string]ResearchResult      `json:"signalResearch"`
	PositionResearch     map[string]ResearchResult      `json:"positionResearch"`
	StalenessAnalysis    map[string]StalenessResult     `json:"stalenessAnalysis"`
	TwitterConfirmations map[string]TwitterConfirmation `json:"twitterConfirmations"`
	TwitterDailyReads    int                            `json:"twitterDailyReads"`
	TwitterDailyReset    time.Time                      `json:"twitterDailyReset"`
	PremarketPlan        *PremarketPlan                 `json:"premarketPlan,omitempty"`

	// DEX engine
	DexSignals          []DexSignal                 `json:"dexSignals"`
	DexPositions        map[string]DexPosition      `json:"dexPositions"`
	DexTradeHistory     []DexTradeRecord            `json:"dexTradeHistory"`
	DexRealizedPnLSol   float64                     `json:"dexRealizedPnlSol"`
	DexPaperBalanceSol  float64                     `json:"dexPaperBalanceSol"`
	DexPortfolioHistory []PortfolioSnapshot         `json:"dexPortfolioHistory"`
	DexGasSpentSol      float64                     `json:"dexGasSpentSol"`

	// Streak / drawdown
	DexMaxConsecutiveLosses int        `json:"dexMaxConsecutiveLosses"`
	DexCurrentLossStreak    int        `json:"dexCurrentLossStreak"`
	DexMaxDrawdownPct       float64    `json:"dexMaxDrawdownPct"`
	DexMaxDrawdownDurMs     int64      `json:"dexMaxDrawdownDurationMs"`
	DexDrawdownStartTime    *time.Time `json:"dexDrawdownStartTime,omitempty"`
	DexPeakBalance          float64    `json:"dexPeakBalance"`
	DexPeakValue            float64    `json:"dexPeakValue"`
	DexDrawdownPaused       bool       `json:"dexDrawdownPaused"`

	// Circuit breaker
	DexRecentStopLosses    []StopLossEvent `json:"dexRecentStopLosses"`
	DexCircuitBreakerUntil *time.Time      `json:"dexCircuitBreakerUntil,omitempty"`

	// Stop-loss cooldowns, keyed by token address
	DexStopLossCooldowns map[string]StopLossCooldown `json:"dexStopLossCooldowns"`

	Crisis CrisisState `json:"crisisState"`

	LastDataGather  time.Time `json:"lastDataGather"`
	LastAnalyst     time.Time `json:"lastAnalyst"`
	LastResearch    time.Time `json:"lastResearch"`
	LastPosResearch time.Time `json:"lastPosResearch"`
	LastDexScan     time.Time `json:"lastDexScan"`
	LastCrisisCheck time.Time `json:"lastCrisisCheck"`

	Logs        []LogEntry `json:"logs"`
	CostTracker CostLedger `json:"costTracker"`
}

// MaxLogEntries caps the state's log ring buffer.
const MaxLogEntries = 500

// NewAgentState returns a fresh state initialized from cfg.
func NewAgentState(cfg Config) *AgentState {
	return &AgentState{
		Config:               cfg,
		Enabled:              cfg.Enabled,
		SocialHistory:        make(map[string][]SocialPoint),
		PositionEntries:      make(map[string]PositionEntry),
		SignalResearch:       make(map[string]ResearchResult),
		PositionResearch:     make(map[string]ResearchResult),
		StalenessAnalysis:    make(map[string]StalenessResult),
		TwitterConfirmations: make(map[string]TwitterConfirmation),
		DexPositions:         make(map[string]DexPosition),
		DexStopLossCooldowns: make(map[string]StopLossCooldown),
		DexPaperBalanceSol:   cfg.Dex.StartingBalanceSol,
		DexPeakBalance:       cfg.Dex.StartingBalanceSol,
		DexPeakValue:         cfg.Dex.StartingBalanceSol,
	}
}

// Migrate repairs a state loaded from storage: nil maps are allocated,
// invalid config fields reset to defaults, an invalid paper balance is reset
// to the configured starting balance, and the peak balance is recomputed when
// missing. Legacy positions with a missing token amount or stake are patched
// from maxPositionSol; the returned list names every patched token so the
// caller can surface a warning rather than silently trust the lossy fill.
func (s *AgentState) Migrate() (fixedConfig []string, patchedPositions []string) {
	fixedConfig = s.Config.Sanitize()

	if s.SocialHistory == nil {
		s.SocialHistory = make(map[string][]SocialPoint)
	}
	if s.PositionEntries == nil {
		s.PositionEntries = make(map[string]PositionEntry)
	}
	if s.SignalResearch == nil {
		s.SignalResearch = make(map[string]ResearchResult)
	}
	if s.PositionResearch == nil {
		s.PositionResearch = make(map[string]ResearchResult)
	}
	if s.StalenessAnalysis == nil {
		s.StalenessAnalysis = make(map[string]StalenessResult)
	}
	if s.TwitterConfirmations == nil {
		s.TwitterConfirmations = make(map[string]TwitterConfirmation)
	}
	if s.DexPositions == nil {
		s.DexPositions = make(map[string]DexPosition)
	}
	if s.DexStopLossCooldowns == nil {
		s.DexStopLossCooldowns = make(map[string]StopLossCooldown)
	}

	if math.IsNaN(s.DexPaperBalanceSol) || math.IsInf(s.DexPaperBalanceSol, 0) || s.DexPaperBalanceSol < 0 {
		s.DexPaperBalanceSol = s.Config.Dex.StartingBalanceSol
	}
	if s.DexPeakBalance <= 0 || math.IsNaN(s.DexPeakBalance) {
		s.DexPeakBalance = s.DexPaperBalanceSol
	}
	if s.DexPeakValue <= 0 || math.IsNaN(s.DexPeakValue) {
		s.DexPeakValue = s.DexPaperBalanceSol
	}

	for addr, pos := range s.DexPositions {
		if pos.TokenAmount > 0 && pos.EntryStakeSol > 0 {
			continue
		}
		if pos.EntryStakeSol <= 0 {
			pos.EntryStakeSol = s.Config.Dex.MaxPositionSol
		}
		if pos.TokenAmount <= 0 && pos.EntryPrice > 0 {
			pos.TokenAmount = pos.EntryStakeSol * s.Config.Dex.SolPriceFallbackUsd / pos.EntryPrice
		}
		if pos.PeakPrice < pos.EntryPrice {
			pos.PeakPrice = pos.EntryPrice
		}
		s.DexPositions[addr] = pos
		patchedPositions = append(patchedPositions, addr)
	}

	if len(s.Logs) > MaxLogEntries {
		s.Logs = s.Logs[len(s.Logs)-MaxLogEntries:]
	}

	return fixedConfig, patchedPositions
}

// AppendLog pushes one entry onto the ring buffer, dropping the oldest rows
// past MaxLogEntries.
func (s *AgentState) AppendLog(level, component, message string) {
	s.Logs = append(s.Logs, LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Component: component,
		Message:   message,
	})
	if len(s.Logs) > MaxLogEntries {
		s.Logs = s.Logs[len(s.Logs)-MaxLogEntries:]
	}
}
