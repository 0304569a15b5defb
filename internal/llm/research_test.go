package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

type fakeCompleter struct {
	content string
	usage   Usage
	err     error

	lastReq Request
}

func (f *fakeCompleter) Complete(ctx context.Context, req Request) (string, Usage, error) {
	f.lastReq = req
	return f.content, f.usage, f.err
}

func testResearcher(fake *fakeCompleter) *Researcher {
	return NewResearcher(zap.NewNop(), fake, types.DefaultConfig().LLM)
}

func TestResearchSignalParsesVerdict(t *testing.T) {
	fake := &fakeCompleter{
		content: `{"verdict":"buy","confidence":0.82,"entryQuality":"Excellent","reasoning":"broad multi-source conviction"}`,
		usage:   Usage{PromptTokens: 500, CompletionTokens: 80},
	}
	r := testResearcher(fake)
	var ledger types.CostLedger

	res, err := r.ResearchSignal(context.Background(), SignalBrief{Symbol: "AAPL", Sentiment: 0.7}, &ledger)
	require.NoError(t, err)
	assert.Equal(t, types.VerdictBuy, res.Verdict)
	assert.Equal(t, 0.82, res.Confidence)
	assert.Equal(t, "excellent", res.EntryQuality)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.True(t, fake.lastReq.JSONMode)
	assert.Equal(t, int64(1), ledger.Calls)
}

func TestResearchSignalUnparseableOutput(t *testing.T) {
	cases := map[string]string{
		"prose":          `I would probably buy this one.`,
		"bad verdict":    `{"verdict":"MAYBE","confidence":0.8}`,
		"zero conf":      `{"verdict":"BUY","confidence":0}`,
		"over-unit conf": `{"verdict":"BUY","confidence":1.4}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			fake := &fakeCompleter{content: content, usage: Usage{PromptTokens: 100, CompletionTokens: 20}}
			r := testResearcher(fake)
			var ledger types.CostLedger

			res, err := r.ResearchSignal(context.Background(), SignalBrief{Symbol: "AAPL"}, &ledger)
			assert.Nil(t, res)
			require.ErrorIs(t, err, ErrParse)
			assert.Equal(t, int64(1), ledger.Calls, "usage is charged even when the output is garbage")
		})
	}
}

func TestAnalystReviewDropsMalformedCalls(t *testing.T) {
	fake := &fakeCompleter{
		content: `{"recommendations":[
			{"symbol":"aapl","action":"SELL","confidence":0.9,"reasoning":"thesis broken"},
			{"symbol":"","action":"BUY","confidence":0.8},
			{"symbol":"TSLA","action":"SHORT","confidence":0.8},
			{"symbol":"NVDA","action":"hold","confidence":0.6,"reasoning":"let it ride"}
		]}`,
	}
	r := testResearcher(fake)
	var ledger types.CostLedger

	calls, err := r.AnalystReview(context.Background(), nil, nil, &ledger)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "AAPL", calls[0].Symbol)
	assert.Equal(t, types.VerdictSell, calls[0].Action)
	assert.Equal(t, "NVDA", calls[1].Symbol)
	assert.Equal(t, types.VerdictHold, calls[1].Action)
}

func TestSetConfigSwitchesModel(t *testing.T) {
	fake := &fakeCompleter{content: `{"verdict":"HOLD","confidence":0.5}`}
	r := testResearcher(fake)
	var ledger types.CostLedger

	cfg := types.DefaultConfig().LLM
	cfg.ResearchModel = "gpt-4o"
	r.SetConfig(cfg)

	_, err := r.ResearchSignal(context.Background(), SignalBrief{Symbol: "AAPL"}, &ledger)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", fake.lastReq.Model)
}

func TestCostTable(t *testing.T) {
	usage := Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}

	assert.InDelta(t, 12.50, Cost("gpt-4o", usage), 1e-9)
	assert.InDelta(t, 0.75, Cost("gpt-4o-mini", usage), 1e-9)
	// Unknown models price as gpt-4o so spend is never silently zero.
	assert.InDelta(t, 12.50, Cost("gpt-5-preview", usage), 1e-9)
}

func TestChargeAccumulates(t *testing.T) {
	var ledger types.CostLedger
	Charge(&ledger, "gpt-4o-mini", Usage{PromptTokens: 2_000_000, CompletionTokens: 1_000_000})
	Charge(&ledger, "gpt-4o-mini", Usage{PromptTokens: 1_000_000})

	assert.Equal(t, int64(3_000_000), ledger.PromptTokens)
	assert.Equal(t, int64(1_000_000), ledger.CompletionTokens)
	assert.Equal(t, int64(2), ledger.Calls)
	assert.InDelta(t, 0.15*3+0.60, ledger.TotalCostUSD, 1e-9)
}
