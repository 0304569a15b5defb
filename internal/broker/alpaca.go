package broker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/pkg/utils"
)

// AlpacaBroker adapts the Alpaca trading and market-data clients to the
// Broker interface.
type AlpacaBroker struct {
	logger      *zap.Logger
	tradeClient *alpaca.Client
	mdClient    *marketdata.Client
}

// AlpacaConfig selects the account and endpoint.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string // paper vs live endpoint
}

// NewAlpacaBroker constructs the adapter.
func NewAlpacaBroker(logger *zap.Logger, cfg AlpacaConfig) *AlpacaBroker {
	return &AlpacaBroker{
		logger: logger.Named("alpaca"),
		tradeClient: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		}),
		mdClient: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
		}),
	}
}

// GetAccount fetches the account summary.
func (b *AlpacaBroker) GetAccount(ctx context.Context) (Account, error) {
	acct, err := b.tradeClient.GetAccount()
	if err != nil {
		return Account{}, fmt.Errorf("failed to fetch account: %w", err)
	}
	return Account{
		Cash:          acct.Cash,
		Equity:        acct.Equity,
		DaytradeCount: acct.DaytradeCount,
	}, nil
}

// GetPositions fetches all open positions.
func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]Position, error) {
	raw, err := b.tradeClient.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}
	out := make([]Position, 0, len(raw))
	for _, p := range raw {
		out = append(out, Position{
			Symbol:         p.Symbol,
			Qty:            p.Qty,
			MarketValue:    deref(p.MarketValue),
			CurrentPrice:   deref(p.CurrentPrice),
			UnrealizedPL:   deref(p.UnrealizedPL),
			UnrealizedPLPC: deref(p.UnrealizedPLPC),
			AvgEntryPrice:  p.AvgEntryPrice,
			AssetClass:     string(p.AssetClass),
		})
	}
	return out, nil
}

// GetClock fetches the market calendar state.
func (b *AlpacaBroker) GetClock(ctx context.Context) (Clock, error) {
	c, err := b.tradeClient.GetClock()
	if err != nil {
		return Clock{}, fmt.Errorf("failed to fetch clock: %w", err)
	}
	return Clock{
		Timestamp: c.Timestamp,
		IsOpen:    c.IsOpen,
		NextOpen:  c.NextOpen,
		NextClose: c.NextClose,
	}, nil
}

// GetAsset looks up one instrument.
func (b *AlpacaBroker) GetAsset(ctx context.Context, symbol string) (Asset, error) {
	a, err := b.tradeClient.GetAsset(symbol)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to fetch asset %s: %w", symbol, err)
	}
	return Asset{
		Symbol:   a.Symbol,
		Exchange: a.Exchange,
		Class:    string(a.Class),
		Tradable: a.Tradable,
	}, nil
}

// GetSnapshot fetches an equity price snapshot.
func (b *AlpacaBroker) GetSnapshot(ctx context.Context, symbol string) (Snapshot, error) {
	snap, err := b.mdClient.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to fetch snapshot %s: %w", symbol, err)
	}
	if snap == nil || snap.LatestTrade == nil {
		return Snapshot{}, fmt.Errorf("no snapshot data for %s", symbol)
	}
	out := Snapshot{Symbol: symbol, Price: snap.LatestTrade.Price}
	if snap.PrevDailyBar != nil && snap.PrevDailyBar.Close > 0 {
		out.PrevClose = snap.PrevDailyBar.Close
		out.DayChangePct = utils.PctChange(out.PrevClose, out.Price)
	}
	return out, nil
}

// GetCryptoSnapshot fetches a crypto pair snapshot.
func (b *AlpacaBroker) GetCryptoSnapshot(ctx context.Context, symbol string) (Snapshot, error) {
	snaps, err := b.mdClient.GetCryptoSnapshot(symbol, marketdata.GetCryptoSnapshotRequest{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to fetch crypto snapshot %s: %w", symbol, err)
	}
	if snaps == nil || snaps.LatestTrade == nil {
		return Snapshot{}, fmt.Errorf("no crypto snapshot data for %s", symbol)
	}
	out := Snapshot{Symbol: symbol, Price: snaps.LatestTrade.Price}
	if snaps.PrevDailyBar != nil && snaps.PrevDailyBar.Close > 0 {
		out.PrevClose = snaps.PrevDailyBar.Close
		out.DayChangePct = utils.PctChange(out.PrevClose, out.Price)
	}
	return out, nil
}

// CreateOrder submits one order.
func (b *AlpacaBroker) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	placed, err := b.tradeClient.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Notional:      req.Notional,
		Qty:           req.Qty,
		Side:          alpaca.Side(req.Side),
		Type:          alpaca.OrderType(req.Type),
		LimitPrice:    req.LimitPrice,
		TimeInForce:   alpaca.TimeInForce(req.TimeInForce),
		ClientOrderID: utils.GenerateOrderID(),
	})
	if err != nil {
		return Order{}, fmt.Errorf("order %s %s rejected: %w", req.Side, req.Symbol, err)
	}
	b.logger.Info("order placed",
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side),
		zap.String("orderId", placed.ID))
	return Order{ID: placed.ID, Symbol: placed.Symbol, Status: string(placed.Status)}, nil
}

// ClosePosition closes one position at market.
func (b *AlpacaBroker) ClosePosition(ctx context.Context, symbol string) error {
	if _, err := b.tradeClient.ClosePosition(symbol, alpaca.ClosePositionRequest{}); err != nil {
		return fmt.Errorf("failed to close %s: %w", symbol, err)
	}
	return nil
}

// GetOptionChain fetches the chain for an underlying and parses each OCC
// symbol into a contract. Contracts with missing greeks or quotes are kept
// with zero values so callers can filter.
func (b *AlpacaBroker) GetOptionChain(ctx context.Context, underlying string) ([]OptionContract, error) {
	chain, err := b.mdClient.GetOptionChain(underlying, marketdata.GetOptionChainRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option chain %s: %w", underlying, err)
	}

	out := make([]OptionContract, 0, len(chain))
	for occ, snap := range chain {
		contract, err := parseOCC(occ)
		if err != nil {
			continue
		}
		if snap.Greeks != nil {
			contract.Delta = snap.Greeks.Delta
		}
		if snap.LatestQuote != nil {
			contract.Bid = snap.LatestQuote.BidPrice
			contract.Ask = snap.LatestQuote.AskPrice
		}
		out = append(out, contract)
	}
	return out, nil
}

// parseOCC decodes symbols like AAPL261218C00150000:
// underlying + YYMMDD + C/P + strike*1000 (8 digits).
func parseOCC(occ string) (OptionContract, error) {
	if len(occ) < 16 {
		return OptionContract{}, fmt.Errorf("occ symbol too short: %s", occ)
	}
	tail := occ[len(occ)-15:]
	underlying := strings.TrimSpace(occ[:len(occ)-15])

	expiration, err := time.Parse("060102", tail[:6])
	if err != nil {
		return OptionContract{}, fmt.Errorf("bad occ expiration in %s: %w", occ, err)
	}
	side := tail[6]
	if side != 'C' && side != 'P' {
		return OptionContract{}, fmt.Errorf("bad occ side in %s", occ)
	}
	strikeRaw, err := strconv.ParseInt(tail[7:], 10, 64)
	if err != nil {
		return OptionContract{}, fmt.Errorf("bad occ strike in %s: %w", occ, err)
	}

	return OptionContract{
		Symbol:     occ,
		Underlying: underlying,
		Expiration: expiration,
		Strike:     float64(strikeRaw) / 1000,
		Call:       side == 'C',
	}, nil
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
