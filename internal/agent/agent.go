// Package agent hosts the single actor that owns all trading state and
// serializes every mutation through its tick loop.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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

// Agent is the single-actor core. One goroutine drains both the tick timer
// and the command channel, so all state access is serialized.
type Agent struct {
	logger   *zap.Logger
	store    store.Store
	broker   broker.Broker
	gatherer *signals.Gatherer
	trader   *trader.Trader
	dex      *dex.Engine
	crisis   *crisis.Monitor
	notifier *alerts.Notifier
	metrics  *metrics.Metrics
	events   func(event string, data interface{})

	state *types.AgentState

	commands chan func(*types.AgentState)
	timer    *time.Timer

	// Last-observed cost ledger values, for exporting counter deltas.
	lastCostUSD          float64
	lastPromptTokens     int64
	lastCompletionTokens int64
}

// Deps bundles the agent's collaborators.
type Deps struct {
	Store    store.Store
	Broker   broker.Broker
	Gatherer *signals.Gatherer
	Trader   *trader.Trader
	Dex      *dex.Engine
	Crisis   *crisis.Monitor
	Notifier *alerts.Notifier
	Metrics  *metrics.Metrics

	// Events receives tick events for the WebSocket feed. Optional.
	Events func(event string, data interface{})
}

// New loads (or initializes) durable state, migrates it, and returns an
// agent ready to Run.
func New(logger *zap.Logger, deps Deps) (*Agent, error) {
	a := &Agent{
		logger:   logger.Named("agent"),
		store:    deps.Store,
		broker:   deps.Broker,
		gatherer: deps.Gatherer,
		trader:   deps.Trader,
		dex:      deps.Dex,
		crisis:   deps.Crisis,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		events:   deps.Events,
		commands: make(chan func(*types.AgentState), 16),
	}

	st := types.NewAgentState(types.DefaultConfig())
	err := deps.Store.LoadState(st)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	fixedFields, patchedPositions := st.Migrate()
	for _, field := range fixedFields {
		a.logger.Warn("config field reset to default", zap.String("field", field))
	}
	for _, addr := range patchedPositions {
		a.logger.Warn("legacy dex position patched from max position size; values are approximate",
			zap.String("tokenAddress", addr))
		st.AppendLog("warn", "agent", fmt.Sprintf("legacy position %s patched on load", addr))
	}

	a.state = st
	return a, nil
}

// Run drives the actor until the context is cancelled. If the agent is
// enabled, a persisted alarm resumes on schedule, or immediately when it is
// already overdue.
func (a *Agent) Run(ctx context.Context) {
	a.timer = time.NewTimer(time.Hour)
	a.stopTimer()

	if a.state.Enabled {
		delay := time.Second
		if at, err := a.store.LoadAlarm(); err == nil {
			if until := time.Until(at); until > 0 {
				delay = until
			}
		}
		a.timer.Reset(delay)
		a.logger.Info("resuming", zap.Duration("firstTickIn", delay))
	}

	for {
		select {
		case <-ctx.Done():
			a.persist()
			return
		case <-a.timer.C:
			a.tick(ctx)
		case cmd := <-a.commands:
			cmd(a.state)
		}
	}
}

// Do runs fn inside the actor and waits for it. fn may mutate state; the
// agent persists afterwards.
func (a *Agent) Do(fn func(*types.AgentState)) {
	done := make(chan struct{})
	a.commands <- func(st *types.AgentState) {
		defer close(done)
		fn(st)
		a.persist()
		a.syncSchedule()
	}
	<-done
}

// Inspect runs fn inside the actor for reading. fn must not retain the
// pointer.
func (a *Agent) Inspect(fn func(*types.AgentState)) {
	done := make(chan struct{})
	a.commands <- func(st *types.AgentState) {
		defer close(done)
		fn(st)
	}
	<-done
}

// TriggerTick runs one tick synchronously inside the actor.
func (a *Agent) TriggerTick(ctx context.Context) {
	done := make(chan struct{})
	a.commands <- func(*types.AgentState) {
		defer close(done)
		a.tick(ctx)
	}
	<-done
}

// StateJSON marshals a snapshot of the full state.
func (a *Agent) StateJSON() ([]byte, error) {
	var data []byte
	var err error
	a.Inspect(func(st *types.AgentState) {
		data, err = json.Marshal(st)
	})
	return data, err
}

func (a *Agent) persist() {
	if err := a.store.SaveState(a.state); err != nil {
		a.logger.Error("state persist failed", zap.Error(err))
	}
}

// syncSchedule aligns the alarm with the enabled flag after a command.
func (a *Agent) syncSchedule() {
	if a.state.Enabled {
		a.reschedule(time.Now())
		return
	}
	a.stopTimer()
	if err := a.store.DeleteAlarm(); err != nil {
		a.logger.Warn("failed to clear alarm", zap.Error(err))
	}
}

func (a *Agent) reschedule(now time.Time) {
	interval := a.state.Config.TickInterval()
	a.stopTimer()
	a.timer.Reset(interval)
	if err := a.store.SaveAlarm(now.Add(interval)); err != nil {
		a.logger.Warn("failed to persist alarm", zap.Error(err))
	}
}

func (a *Agent) stopTimer() {
	if !a.timer.Stop() {
		select {
		case <-a.timer.C:
		default:
		}
	}
}
