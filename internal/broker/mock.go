package broker

import (
	"context"
	"fmt"
	"sync"
)

// Mock is an in-memory Broker for tests. Zero value is usable.
type Mock struct {
	mu sync.Mutex

	Account_   Account
	Positions_ []Position
	Clock_     Clock
	Assets     map[string]Asset
	Snapshots  map[string]Snapshot
	Chain      map[string][]OptionContract

	Orders []OrderRequest
	Closed []string

	FailOrders bool
}

var _ Broker = (*Mock)(nil)

// GetAccount returns the configured account.
func (m *Mock) GetAccount(ctx context.Context) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Account_, nil
}

// GetPositions returns the configured positions.
func (m *Mock) GetPositions(ctx context.Context) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Position, len(m.Positions_))
	copy(out, m.Positions_)
	return out, nil
}

// GetClock returns the configured clock.
func (m *Mock) GetClock(ctx context.Context) (Clock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Clock_, nil
}

// GetAsset looks up a configured asset.
func (m *Mock) GetAsset(ctx context.Context, symbol string) (Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.Assets[symbol]; ok {
		return a, nil
	}
	return Asset{}, fmt.Errorf("asset %s not found", symbol)
}

// GetSnapshot looks up a configured snapshot.
func (m *Mock) GetSnapshot(ctx context.Context, symbol string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Snapshots[symbol]; ok {
		return s, nil
	}
	return Snapshot{}, fmt.Errorf("no snapshot for %s", symbol)
}

// GetCryptoSnapshot looks up a configured snapshot.
func (m *Mock) GetCryptoSnapshot(ctx context.Context, symbol string) (Snapshot, error) {
	return m.GetSnapshot(ctx, symbol)
}

// CreateOrder records the order.
func (m *Mock) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOrders {
		return Order{}, fmt.Errorf("order rejected")
	}
	m.Orders = append(m.Orders, req)
	return Order{ID: fmt.Sprintf("mock-%d", len(m.Orders)), Symbol: req.Symbol, Status: "accepted"}, nil
}

// ClosePosition records the close and removes the position.
func (m *Mock) ClosePosition(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOrders {
		return fmt.Errorf("close rejected")
	}
	m.Closed = append(m.Closed, symbol)
	kept := m.Positions_[:0]
	for _, p := range m.Positions_ {
		if p.Symbol != symbol {
			kept = append(kept, p)
		}
	}
	m.Positions_ = kept
	return nil
}

// GetOptionChain returns the configured chain.
func (m *Mock) GetOptionChain(ctx context.Context, underlying string) ([]OptionContract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Chain[underlying], nil
}
