// Package dex implements the Solana DEX momentum paper-trading engine.
package dex

import (
	"math"

	"github.com/tradewind-labs/tradewind/pkg/types"
)

// maxSlippage caps the execution-price adjustment on either side.
const maxSlippage = 0.15

type slippageParams struct {
	Base       float64
	Multiplier float64
}

var slippageModels = map[types.SlippageModel]slippageParams{
	types.SlippageNone:         {Base: 0, Multiplier: 0},
	types.SlippageConservative: {Base: 0.005, Multiplier: 2},
	types.SlippageRealistic:    {Base: 0.01, Multiplier: 5},
}

// Slippage returns the fractional price impact for a position of the given
// USD size against the pool's liquidity:
//
//	slippage = base + (position_usd / liquidity_usd) x multiplier, capped at 15%
func Slippage(model types.SlippageModel, positionUSD, liquidityUSD float64) float64 {
	params, ok := slippageModels[model]
	if !ok {
		params = slippageModels[types.SlippageRealistic]
	}
	slip := params.Base + positionUSD/math.Max(liquidityUSD, 1)*params.Multiplier
	return math.Min(slip, maxSlippage)
}

// BuyPrice inflates the quoted price by the slippage for this trade size.
func BuyPrice(model types.SlippageModel, quoted, positionUSD, liquidityUSD float64) float64 {
	return quoted * (1 + Slippage(model, positionUSD, liquidityUSD))
}

// SellPrice deflates the quoted price by the slippage for this trade size.
func SellPrice(model types.SlippageModel, quoted, positionUSD, liquidityUSD float64) float64 {
	return quoted * (1 - Slippage(model, positionUSD, liquidityUSD))
}
