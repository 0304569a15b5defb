package dex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

func TestSlippageModels(t *testing.T) {
	// $1000 into a $100k pool.
	assert.Equal(t, 0.0, Slippage(types.SlippageNone, 1000, 100_000))
	assert.InDelta(t, 0.005+0.01*2, Slippage(types.SlippageConservative, 1000, 100_000), 1e-9)
	assert.InDelta(t, 0.01+0.01*5, Slippage(types.SlippageRealistic, 1000, 100_000), 1e-9)
}

func TestSlippageCap(t *testing.T) {
	// A huge order into a thin pool pins at the cap.
	assert.Equal(t, 0.15, Slippage(types.SlippageRealistic, 50_000, 10_000))
	assert.Equal(t, 0.15, Slippage(types.SlippageConservative, 1_000_000, 1))
}

func TestSlippageMonotonicInSize(t *testing.T) {
	prev := 0.0
	for _, usd := range []float64{10, 100, 1000, 5000, 20_000} {
		slip := Slippage(types.SlippageRealistic, usd, 50_000)
		assert.GreaterOrEqual(t, slip, prev, "slippage must not shrink as size grows")
		assert.LessOrEqual(t, slip, 0.15)
		prev = slip
	}
}

func TestSlippageZeroLiquidity(t *testing.T) {
	// Zero liquidity must not divide by zero; it pins at the cap instead.
	assert.Equal(t, 0.15, Slippage(types.SlippageRealistic, 100, 0))
}

func TestBuySellPrices(t *testing.T) {
	buy := BuyPrice(types.SlippageRealistic, 1.0, 1000, 100_000)
	sell := SellPrice(types.SlippageRealistic, 1.0, 1000, 100_000)
	assert.Greater(t, buy, 1.0)
	assert.Less(t, sell, 1.0)
	assert.InDelta(t, buy-1.0, 1.0-sell, 1e-9, "buy and sell adjust symmetrically")
}

func TestUnknownModelFallsBackToRealistic(t *testing.T) {
	got := Slippage(types.SlippageModel("bogus"), 1000, 100_000)
	want := Slippage(types.SlippageRealistic, 1000, 100_000)
	assert.Equal(t, want, got)
}
