package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/internal/alerts"
	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/internal/crisis"
	"github.com/tradewind-labs/tradewind/internal/dex"
	"github.com/tradewind-labs/tradewind/internal/metrics"
	"github.com/tradewind-labs/tradewind/internal/signals"
	"github.com/tradewind-labs/tradewind/internal/store"
	"github.com/tradewind-labs/tradewind/internal/trader"
	"github.com/tradewind-labs/tradewind/pkg/types"
)

type emptyScanner struct{}

func (emptyScanner) FindMomentumTokens(ctx context.Context, cfg types.DexConfig) ([]types.DexSignal, error) {
	return nil, nil
}

type calmFetcher struct{}

func (calmFetcher) Fetch(ctx context.Context) types.CrisisIndicators {
	return types.CrisisIndicators{}
}

func newTestAgent(t *testing.T, st store.Store, mock *broker.Mock) *Agent {
	t.Helper()
	logger := zap.NewNop()
	ag, err := New(logger, Deps{
		Store:    st,
		Broker:   mock,
		Gatherer: signals.NewGatherer(logger, nil, nil, nil),
		Trader:   trader.NewTrader(logger, mock, nil, nil),
		Dex:      dex.NewEngine(logger, emptyScanner{}, nil, dex.StaticSolPrice(200)),
		Crisis:   crisis.NewMonitor(logger, calmFetcher{}),
		Notifier: alerts.NewNotifier(logger, types.DefaultConfig().Alerts),
		Metrics:  metrics.New(),
	})
	require.NoError(t, err)
	return ag
}

func runAgent(t *testing.T, ag *Agent) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ag.Run(ctx)
}

func TestDoPersistsAcrossRestart(t *testing.T) {
	mem := store.NewMemStore()
	mock := &broker.Mock{}

	ag := newTestAgent(t, mem, mock)
	runAgent(t, ag)
	ag.Do(func(st *types.AgentState) {
		st.Enabled = true
		st.DexPaperBalanceSol = 0.42
	})

	// A fresh agent on the same store sees the mutation.
	ag2 := newTestAgent(t, mem, mock)
	runAgent(t, ag2)
	var enabled bool
	var balance float64
	ag2.Inspect(func(st *types.AgentState) {
		enabled = st.Enabled
		balance = st.DexPaperBalanceSol
	})
	assert.True(t, enabled)
	assert.Equal(t, 0.42, balance)
}

func TestDoSchedulesAlarmWhenEnabled(t *testing.T) {
	mem := store.NewMemStore()
	ag := newTestAgent(t, mem, &broker.Mock{})
	runAgent(t, ag)

	_, err := mem.LoadAlarm()
	require.ErrorIs(t, err, store.ErrNotFound)

	ag.Do(func(st *types.AgentState) { st.Enabled = true })
	at, err := mem.LoadAlarm()
	require.NoError(t, err)
	assert.True(t, at.After(time.Now()), "alarm points into the future")

	ag.Do(func(st *types.AgentState) { st.Enabled = false })
	_, err = mem.LoadAlarm()
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTriggerTickWhileDisabledClearsAlarm(t *testing.T) {
	mem := store.NewMemStore()
	require.NoError(t, mem.SaveAlarm(time.Now().Add(time.Hour)))

	ag := newTestAgent(t, mem, &broker.Mock{})
	runAgent(t, ag)
	ag.TriggerTick(context.Background())

	_, err := mem.LoadAlarm()
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTriggerTickReschedules(t *testing.T) {
	mem := store.NewMemStore()
	ag := newTestAgent(t, mem, &broker.Mock{})
	runAgent(t, ag)
	ag.Do(func(st *types.AgentState) { st.Enabled = true })

	before := time.Now()
	ag.TriggerTick(context.Background())

	at, err := mem.LoadAlarm()
	require.NoError(t, err)
	defaultCfg := types.DefaultConfig()
	interval := defaultCfg.TickInterval()
	assert.True(t, at.After(before.Add(interval/2)), "next alarm is roughly one interval out")
}

func TestTickGathersSignalsAndSnapshots(t *testing.T) {
	mem := store.NewMemStore()
	ag := newTestAgent(t, mem, &broker.Mock{})
	runAgent(t, ag)
	ag.Do(func(st *types.AgentState) { st.Enabled = true })

	ag.TriggerTick(context.Background())

	ag.Inspect(func(st *types.AgentState) {
		assert.False(t, st.LastDataGather.IsZero(), "gather ran on the first tick")
		assert.False(t, st.LastCrisisCheck.IsZero(), "crisis check ran on the first tick")
		assert.Equal(t, types.CrisisNormal, st.Crisis.Level, "no indicators means no crisis")
	})
}

func TestStateJSONSnapshot(t *testing.T) {
	ag := newTestAgent(t, store.NewMemStore(), &broker.Mock{})
	runAgent(t, ag)

	data, err := ag.StateJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"config"`)
	assert.Contains(t, string(data), `"dexPaperBalanceSol"`)
}

func TestEventsCallbackReceivesTrades(t *testing.T) {
	logger := zap.NewNop()
	mock := &broker.Mock{}
	var events []string

	ag, err := New(logger, Deps{
		Store:    store.NewMemStore(),
		Broker:   mock,
		Gatherer: signals.NewGatherer(logger, nil, nil, nil),
		Trader:   trader.NewTrader(logger, mock, nil, nil),
		Dex:      dex.NewEngine(logger, emptyScanner{}, nil, dex.StaticSolPrice(200)),
		Crisis:   crisis.NewMonitor(logger, calmFetcher{}),
		Notifier: alerts.NewNotifier(logger, types.DefaultConfig().Alerts),
		Metrics:  metrics.New(),
		Events: func(event string, data interface{}) {
			events = append(events, event)
		},
	})
	require.NoError(t, err)
	runAgent(t, ag)

	ag.Do(func(st *types.AgentState) { st.Enabled = true })
	ag.TriggerTick(context.Background())

	// No trades this tick, so the feed stays quiet rather than noisy.
	assert.Empty(t, events)
}
