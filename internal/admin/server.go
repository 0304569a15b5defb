// Package admin provides the HTTP control surface and WebSocket event feed.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/internal/agent"
	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/internal/crisis"
	"github.com/tradewind-labs/tradewind/internal/dex"
	"github.com/tradewind-labs/tradewind/internal/llm"
	"github.com/tradewind-labs/tradewind/internal/metrics"
	"github.com/tradewind-labs/tradewind/pkg/types"
)

// Config holds the admin server settings.
type Config struct {
	Host         string
	Port         int
	AuthToken    string
	KillSecret   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server exposes agent state and controls over HTTP.
type Server struct {
	logger     *zap.Logger
	config     Config
	agent      *agent.Agent
	broker     broker.Broker
	monitor    *crisis.Monitor
	researcher *llm.Researcher
	metrics    *metrics.Metrics
	hub        *Hub
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates the admin server and wires its routes.
func NewServer(logger *zap.Logger, config Config, ag *agent.Agent, brk broker.Broker, monitor *crisis.Monitor, researcher *llm.Researcher, m *metrics.Metrics) *Server {
	s := &Server{
		logger:     logger.Named("admin"),
		config:     config,
		agent:      ag,
		broker:     brk,
		monitor:    monitor,
		researcher: researcher,
		metrics:    m,
		hub:        NewHub(logger),
		router:     mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Hub returns the WebSocket hub, so the caller can publish agent events.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("POST")
	api.HandleFunc("/enable", s.handleEnable).Methods("POST")
	api.HandleFunc("/disable", s.handleDisable).Methods("POST")
	api.HandleFunc("/logs", s.handleLogs).Methods("GET")
	api.HandleFunc("/costs", s.handleCosts).Methods("GET")
	api.HandleFunc("/signals", s.handleSignals).Methods("GET")
	api.HandleFunc("/trigger", s.handleTrigger).Methods("POST")
	api.HandleFunc("/kill", s.handleKill).Methods("POST")
	api.HandleFunc("/dex/reset", s.handleDexReset).Methods("POST")
	api.HandleFunc("/dex/clear-cooldowns", s.handleDexClearCooldowns).Methods("POST")
	api.HandleFunc("/dex/clear-breaker", s.handleDexClearBreaker).Methods("POST")
	api.HandleFunc("/crisis/toggle", s.handleCrisisToggle).Methods("POST")
	api.HandleFunc("/crisis/check", s.handleCrisisCheck).Methods("POST")
	api.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Start runs the server until it fails or is stopped.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go s.hub.Run()

	s.logger.Info("starting admin server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorized checks the bearer token in constant time. An empty configured
// token disables auth (local development).
func (s *Server) authorized(r *http.Request) bool {
	if s.config.AuthToken == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		token = r.URL.Query().Get("token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AuthToken)) == 1
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// dexPositionView is a DEX position annotated with unrealized P&L against
// the most recent scan price, when one is available.
type dexPositionView struct {
	types.DexPosition
	CurrentPrice    float64 `json:"currentPrice,omitempty"`
	UnrealizedPLPct float64 `json:"unrealizedPlPct"`
	ValueSol        float64 `json:"valueSol"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var (
		enabled     bool
		config      types.Config
		crisisState types.CrisisState
		logs        []types.LogEntry
		research    map[string]types.ResearchResult
		posResearch map[string]types.ResearchResult
		signalCount int
		dexViews    []dexPositionView
		dexMetrics  dex.TradingMetrics
		dexBalance  float64
		history     []types.PortfolioSnapshot
		premarket   *types.PremarketPlan
		costs       types.CostLedger
	)

	s.agent.Inspect(func(st *types.AgentState) {
		enabled = st.Enabled
		config = st.Config
		crisisState = st.Crisis
		signalCount = len(st.SignalCache)
		dexBalance = st.DexPaperBalanceSol
		premarket = st.PremarketPlan
		costs = st.CostTracker

		logs = append(logs, tailLogs(st.Logs, 100)...)
		research = copyResearch(st.SignalResearch)
		posResearch = copyResearch(st.PositionResearch)

		prices := make(map[string]float64, len(st.DexSignals))
		for _, sig := range st.DexSignals {
			prices[sig.TokenAddress] = sig.PriceUsd
		}
		for _, pos := range st.DexPositions {
			view := dexPositionView{DexPosition: pos}
			if price, ok := prices[pos.TokenAddress]; ok && price > 0 && pos.EntryPrice > 0 {
				view.CurrentPrice = price
				view.UnrealizedPLPct = (price - pos.EntryPrice) / pos.EntryPrice * 100
				view.ValueSol = pos.EntryStakeSol * (1 + view.UnrealizedPLPct/100)
			} else {
				view.ValueSol = pos.EntryStakeSol
			}
			dexViews = append(dexViews, view)
		}
		dexMetrics = dex.CalculateTradingMetrics(st.DexTradeHistory, st)

		if n := len(st.DexPortfolioHistory); n > 288 {
			history = append(history, st.DexPortfolioHistory[n-288:]...)
		} else {
			history = append(history, st.DexPortfolioHistory...)
		}
	})

	status := map[string]interface{}{
		"enabled":          enabled,
		"config":           config,
		"crisis":           crisisState,
		"signalCount":      signalCount,
		"logs":             logs,
		"research":         research,
		"positionResearch": posResearch,
		"premarketPlan":    premarket,
		"costs":            costs,
		"dex": map[string]interface{}{
			"paperBalanceSol":  dexBalance,
			"positions":        dexViews,
			"metrics":          dexMetrics,
			"portfolioHistory": history,
		},
	}

	ctx := r.Context()
	if account, err := s.broker.GetAccount(ctx); err == nil {
		status["account"] = account
	} else {
		s.logger.Warn("account fetch failed", zap.Error(err))
	}
	if positions, err := s.broker.GetPositions(ctx); err == nil {
		status["positions"] = positions
	}
	if clock, err := s.broker.GetClock(ctx); err == nil {
		status["clock"] = clock
	}

	s.writeJSON(w, http.StatusOK, status)
}

// handleUpdateConfig applies a partial config update: fields present in the
// body overwrite, everything else is preserved, then the result is
// sanitized.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if !json.Valid(body) {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	var fixed []string
	var updated types.Config
	var applyErr error
	s.agent.Do(func(st *types.AgentState) {
		merged := st.Config
		if err := json.Unmarshal(body, &merged); err != nil {
			applyErr = err
			return
		}
		fixed = merged.Sanitize()
		st.Config = merged
		updated = merged
		s.researcher.SetConfig(merged.LLM)
		st.AppendLog("info", "admin", "config updated")
	})
	if applyErr != nil {
		http.Error(w, applyErr.Error(), http.StatusBadRequest)
		return
	}
	for _, field := range fixed {
		s.logger.Warn("config field rejected, reset to default", zap.String("field", field))
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"config":      updated,
		"fixedFields": fixed,
	})
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	s.agent.Do(func(st *types.AgentState) {
		st.Enabled = true
		st.AppendLog("info", "admin", "agent enabled")
	})
	s.hub.Broadcast(EventAgentStatus, map[string]bool{"enabled": true})
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.agent.Do(func(st *types.AgentState) {
		st.Enabled = false
		st.AppendLog("info", "admin", "agent disabled")
	})
	s.hub.Broadcast(EventAgentStatus, map[string]bool{"enabled": false})
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= types.MaxLogEntries {
			limit = n
		}
	}
	var logs []types.LogEntry
	s.agent.Inspect(func(st *types.AgentState) {
		logs = append(logs, tailLogs(st.Logs, limit)...)
	})
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs, "count": len(logs)})
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	var costs types.CostLedger
	s.agent.Inspect(func(st *types.AgentState) {
		costs = st.CostTracker
	})
	s.writeJSON(w, http.StatusOK, costs)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	var signals []types.Signal
	var dexSignals []types.DexSignal
	s.agent.Inspect(func(st *types.AgentState) {
		signals = append(signals, st.SignalCache...)
		dexSignals = append(dexSignals, st.DexSignals...)
	})
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"signals":    signals,
		"dexSignals": dexSignals,
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	s.agent.TriggerTick(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "tick completed"})
}

// handleKill is the emergency stop: disable, drop the schedule, and discard
// pending trade intent. It does not close positions; that is a deliberate
// human decision.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if s.config.KillSecret == "" ||
		subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.config.KillSecret)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	s.agent.Do(func(st *types.AgentState) {
		st.Enabled = false
		st.SignalCache = nil
		st.PremarketPlan = nil
		st.AppendLog("warn", "admin", "kill switch activated")
	})
	s.logger.Warn("kill switch activated")
	s.hub.Broadcast(EventAgentStatus, map[string]interface{}{"enabled": false, "killed": true})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "killed"})
}

// handleDexReset starts the paper portfolio over from the configured balance.
func (s *Server) handleDexReset(w http.ResponseWriter, r *http.Request) {
	s.agent.Do(func(st *types.AgentState) {
		st.DexPositions = make(map[string]types.DexPosition)
		st.DexTradeHistory = nil
		st.DexPortfolioHistory = nil
		st.DexSignals = nil
		st.DexRealizedPnLSol = 0
		st.DexGasSpentSol = 0
		st.DexPaperBalanceSol = st.Config.Dex.StartingBalanceSol
		st.DexPeakBalance = st.Config.Dex.StartingBalanceSol
		st.DexPeakValue = st.Config.Dex.StartingBalanceSol
		st.DexMaxConsecutiveLosses = 0
		st.DexCurrentLossStreak = 0
		st.DexMaxDrawdownPct = 0
		st.DexMaxDrawdownDurMs = 0
		st.DexDrawdownStartTime = nil
		st.DexDrawdownPaused = false
		st.DexRecentStopLosses = nil
		st.DexCircuitBreakerUntil = nil
		st.DexStopLossCooldowns = make(map[string]types.StopLossCooldown)
		st.AppendLog("info", "admin", "dex paper portfolio reset")
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleDexClearCooldowns(w http.ResponseWriter, r *http.Request) {
	var cleared int
	s.agent.Do(func(st *types.AgentState) {
		cleared = len(st.DexStopLossCooldowns)
		st.DexStopLossCooldowns = make(map[string]types.StopLossCooldown)
		st.AppendLog("info", "admin", fmt.Sprintf("cleared %d stop-loss cooldowns", cleared))
	})
	s.writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

func (s *Server) handleDexClearBreaker(w http.ResponseWriter, r *http.Request) {
	s.agent.Do(func(st *types.AgentState) {
		st.DexCircuitBreakerUntil = nil
		st.DexRecentStopLosses = nil
		st.AppendLog("info", "admin", "circuit breaker cleared")
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleCrisisToggle sets or clears the manual override, optionally pinning
// a level while overridden.
func (s *Server) handleCrisisToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ManualOverride *bool `json:"manualOverride"`
		Level          *int  `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Level != nil && (*req.Level < 0 || *req.Level > 3) {
		http.Error(w, "level must be 0-3", http.StatusBadRequest)
		return
	}

	var state types.CrisisState
	s.agent.Do(func(st *types.AgentState) {
		if req.ManualOverride != nil {
			st.Crisis.ManualOverride = *req.ManualOverride
		}
		if req.Level != nil {
			st.Crisis.Level = types.CrisisLevel(*req.Level)
			st.Crisis.LastLevelChange = time.Now()
		}
		st.AppendLog("info", "admin", fmt.Sprintf("crisis override=%v level=%s",
			st.Crisis.ManualOverride, st.Crisis.Level))
		state = st.Crisis
	})
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleCrisisCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var state types.CrisisState
	s.agent.Do(func(st *types.AgentState) {
		s.monitor.Check(ctx, st, time.Now())
		state = st.Crisis
	})
	s.writeJSON(w, http.StatusOK, state)
}

func tailLogs(logs []types.LogEntry, limit int) []types.LogEntry {
	if len(logs) > limit {
		return logs[len(logs)-limit:]
	}
	return logs
}

func copyResearch(src map[string]types.ResearchResult) map[string]types.ResearchResult {
	out := make(map[string]types.ResearchResult, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
