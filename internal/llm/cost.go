package llm

import "github.com/tradewind-labs/tradewind/pkg/types"

// modelPrice is USD per one million tokens.
type modelPrice struct {
	Prompt     float64
	Completion float64
}

var priceTable = map[string]modelPrice{
	"gpt-4o":      {Prompt: 2.50, Completion: 10.00},
	"gpt-4o-mini": {Prompt: 0.15, Completion: 0.60},
}

// Cost returns the USD cost of one call. Unknown models are priced as
// gpt-4o so spend is over-estimated rather than ignored.
func Cost(model string, usage Usage) float64 {
	price, ok := priceTable[model]
	if !ok {
		price = priceTable["gpt-4o"]
	}
	return float64(usage.PromptTokens)*price.Prompt/1e6 +
		float64(usage.CompletionTokens)*price.Completion/1e6
}

// Charge records one call's usage on the ledger.
func Charge(ledger *types.CostLedger, model string, usage Usage) {
	ledger.PromptTokens += usage.PromptTokens
	ledger.CompletionTokens += usage.CompletionTokens
	ledger.TotalCostUSD += Cost(model, usage)
	ledger.Calls++
}
