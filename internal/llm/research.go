package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// SignalBrief is the per-symbol context fed to the research model.
type SignalBrief struct {
	Symbol       string   `json:"symbol"`
	Sentiment    float64  `json:"sentiment"`
	SocialVolume int      `json:"socialVolume"`
	Sources      []string `json:"sources"`
	IsCrypto     bool     `json:"isCrypto"`
	Price        float64  `json:"price,omitempty"`
	DayChangePct float64  `json:"dayChangePct,omitempty"`
}

// PositionBrief is the per-position context fed to the analyst model.
type PositionBrief struct {
	Symbol       string  `json:"symbol"`
	PlPct        float64 `json:"plPct"`
	HoldHours    float64 `json:"holdHours"`
	MarketValue  float64 `json:"marketValue"`
	CurrentPrice float64 `json:"currentPrice"`
}

// AnalystCall is one recommendation from the analyst pass.
type AnalystCall struct {
	Symbol     string        `json:"symbol"`
	Action     types.Verdict `json:"action"`
	Confidence float64       `json:"confidence"`
	Reasoning  string        `json:"reasoning"`
}

// Researcher assembles prompts and parses model output. It is stateless;
// the cost ledger is supplied per call so the actor keeps ownership.
type Researcher struct {
	logger *zap.Logger
	client Completer
	cfg    types.LLMConfig
}

// NewResearcher wires a Researcher to a completion client.
func NewResearcher(logger *zap.Logger, client Completer, cfg types.LLMConfig) *Researcher {
	return &Researcher{
		logger: logger.Named("research"),
		client: client,
		cfg:    cfg,
	}
}

// SetConfig swaps model settings after a config update. Must be called from
// the same goroutine that issues completions.
func (r *Researcher) SetConfig(cfg types.LLMConfig) {
	r.cfg = cfg
}

const researchSystem = `You are a disciplined trading research assistant.
Given social signal data for one symbol, respond with a JSON object:
{"verdict":"BUY"|"SELL"|"HOLD","confidence":0.0-1.0,"entryQuality":"poor"|"fair"|"good"|"excellent","reasoning":"one short paragraph"}.
Be skeptical of pure hype. Confidence above 0.8 requires strong, multi-source conviction.`

// ResearchSignal asks the research model for a verdict on one symbol.
// Unparseable output returns ErrParse; callers treat that as no
// recommendation.
func (r *Researcher) ResearchSignal(ctx context.Context, brief SignalBrief, ledger *types.CostLedger) (*types.ResearchResult, error) {
	payload, err := json.Marshal(brief)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signal brief: %w", err)
	}

	content, usage, err := r.client.Complete(ctx, Request{
		Model: r.cfg.ResearchModel,
		Messages: []Message{
			{Role: "system", Content: researchSystem},
			{Role: "user", Content: string(payload)},
		},
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		JSONMode:    true,
	})
	Charge(ledger, r.cfg.ResearchModel, usage)
	if err != nil {
		return nil, fmt.Errorf("research completion for %s failed: %w", brief.Symbol, err)
	}

	var parsed struct {
		Verdict      string  `json:"verdict"`
		Confidence   float64 `json:"confidence"`
		EntryQuality string  `json:"entryQuality"`
		Reasoning    string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	verdict, ok := parseVerdict(parsed.Verdict)
	if !ok || !validConfidence(parsed.Confidence) {
		return nil, fmt.Errorf("%w: verdict=%q confidence=%v", ErrParse, parsed.Verdict, parsed.Confidence)
	}

	return &types.ResearchResult{
		Symbol:       brief.Symbol,
		Verdict:      verdict,
		Confidence:   parsed.Confidence,
		EntryQuality: strings.ToLower(parsed.EntryQuality),
		Reasoning:    parsed.Reasoning,
		Timestamp:    time.Now(),
	}, nil
}

const analystSystem = `You are a portfolio analyst reviewing social-signal trade candidates
and current holdings. Respond with a JSON object:
{"recommendations":[{"symbol":"...","action":"BUY"|"SELL"|"HOLD","confidence":0.0-1.0,"reasoning":"..."}]}.
Recommend SELL only when the thesis is broken; positions held under 30 minutes
should not be churned.`

// AnalystReview feeds the top candidates plus current holdings to the
// analyst model and returns its per-symbol calls.
func (r *Researcher) AnalystReview(ctx context.Context, candidates []SignalBrief, positions []PositionBrief, ledger *types.CostLedger) ([]AnalystCall, error) {
	payload, err := json.Marshal(map[string]any{
		"candidates": candidates,
		"positions":  positions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode analyst brief: %w", err)
	}

	content, usage, err := r.client.Complete(ctx, Request{
		Model: r.cfg.AnalystModel,
		Messages: []Message{
			{Role: "system", Content: analystSystem},
			{Role: "user", Content: string(payload)},
		},
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		JSONMode:    true,
	})
	Charge(ledger, r.cfg.AnalystModel, usage)
	if err != nil {
		return nil, fmt.Errorf("analyst completion failed: %w", err)
	}

	var parsed struct {
		Recommendations []struct {
			Symbol     string  `json:"symbol"`
			Action     string  `json:"action"`
			Confidence float64 `json:"confidence"`
			Reasoning  string  `json:"reasoning"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	calls := make([]AnalystCall, 0, len(parsed.Recommendations))
	for _, rec := range parsed.Recommendations {
		verdict, ok := parseVerdict(rec.Action)
		if !ok || rec.Symbol == "" || !validConfidence(rec.Confidence) {
			r.logger.Warn("dropping malformed analyst recommendation",
				zap.String("symbol", rec.Symbol),
				zap.String("action", rec.Action))
			continue
		}
		calls = append(calls, AnalystCall{
			Symbol:     strings.ToUpper(rec.Symbol),
			Action:     verdict,
			Confidence: rec.Confidence,
			Reasoning:  rec.Reasoning,
		})
	}
	return calls, nil
}

func parseVerdict(s string) (types.Verdict, bool) {
	switch types.Verdict(strings.ToUpper(strings.TrimSpace(s))) {
	case types.VerdictBuy:
		return types.VerdictBuy, true
	case types.VerdictSell:
		return types.VerdictSell, true
	case types.VerdictHold:
		return types.VerdictHold, true
	}
	return "", false
}

func validConfidence(c float64) bool {
	return !math.IsNaN(c) && c > 0 && c <= 1
}
