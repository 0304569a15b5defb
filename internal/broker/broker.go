// Package broker abstracts the brokerage used for equity and crypto orders.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Account is the trading account summary the agent relies on.
type Account struct {
	Cash          decimal.Decimal `json:"cash"`
	Equity        decimal.Decimal `json:"equity"`
	DaytradeCount int64           `json:"daytradeCount"`
}

// Position is one open brokerage position.
type Position struct {
	Symbol         string          `json:"symbol"`
	Qty            decimal.Decimal `json:"qty"`
	MarketValue    decimal.Decimal `json:"marketValue"`
	CurrentPrice   decimal.Decimal `json:"currentPrice"`
	UnrealizedPL   decimal.Decimal `json:"unrealizedPl"`
	UnrealizedPLPC decimal.Decimal `json:"unrealizedPlpc"`
	AvgEntryPrice  decimal.Decimal `json:"avgEntryPrice"`
	AssetClass     string          `json:"assetClass"`
}

// IsCrypto reports whether the position is a crypto pair.
func (p Position) IsCrypto() bool { return p.AssetClass == "crypto" }

// IsOption reports whether the position is an options contract.
func (p Position) IsOption() bool { return p.AssetClass == "us_option" }

// Clock is the market calendar state.
type Clock struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"isOpen"`
	NextOpen  time.Time `json:"nextOpen"`
	NextClose time.Time `json:"nextClose"`
}

// Asset describes a tradable instrument.
type Asset struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Class    string `json:"class"`
	Tradable bool   `json:"tradable"`
}

// Snapshot is a simplified price snapshot.
type Snapshot struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	PrevClose    float64 `json:"prevClose"`
	DayChangePct float64 `json:"dayChangePct"`
}

// OrderRequest describes one order. Exactly one of Notional or Qty is set.
type OrderRequest struct {
	Symbol      string
	Notional    *decimal.Decimal
	Qty         *decimal.Decimal
	Side        string // "buy" | "sell"
	Type        string // "market" | "limit"
	LimitPrice  *decimal.Decimal
	TimeInForce string // "day" | "gtc"
}

// Order is the broker's acknowledgement.
type Order struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Status string `json:"status"`
}

// OptionContract is one contract from a chain, parsed from its OCC symbol.
type OptionContract struct {
	Symbol     string    `json:"symbol"`
	Underlying string    `json:"underlying"`
	Expiration time.Time `json:"expiration"`
	Strike     float64   `json:"strike"`
	Call       bool      `json:"call"`
	Delta      float64   `json:"delta"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
}

// Mid returns the quote midpoint.
func (c OptionContract) Mid() float64 { return (c.Bid + c.Ask) / 2 }

// SpreadPct returns the bid/ask spread as a fraction of the mid, or 1 when
// the quote is unusable.
func (c OptionContract) SpreadPct() float64 {
	mid := c.Mid()
	if mid <= 0 {
		return 1
	}
	return (c.Ask - c.Bid) / mid
}

// Broker is the narrow surface the traders depend on.
type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetClock(ctx context.Context) (Clock, error)
	GetAsset(ctx context.Context, symbol string) (Asset, error)
	GetSnapshot(ctx context.Context, symbol string) (Snapshot, error)
	GetCryptoSnapshot(ctx context.Context, symbol string) (Snapshot, error)
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	ClosePosition(ctx context.Context, symbol string) error
	GetOptionChain(ctx context.Context, underlying string) ([]OptionContract, error)
}
