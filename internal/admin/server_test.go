package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradewind-labs/tradewind/internal/agent"
	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/internal/llm"
	"github.com/tradewind-labs/tradewind/internal/metrics"
	"github.com/tradewind-labs/tradewind/internal/store"
	"github.com/tradewind-labs/tradewind/pkg/types"
)

// newTestServer runs a real agent actor behind the admin routes so handlers
// exercise the same Do/Inspect paths as production.
func newTestServer(t *testing.T, cfg Config) (*Server, *agent.Agent) {
	t.Helper()
	logger := zap.NewNop()

	m := metrics.New()
	ag, err := agent.New(logger, agent.Deps{
		Store:   store.NewMemStore(),
		Broker:  &broker.Mock{},
		Metrics: m,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ag.Run(ctx)

	researcher := llm.NewResearcher(logger, nil, types.DefaultConfig().LLM)
	s := NewServer(logger, cfg, ag, &broker.Mock{}, nil, researcher, m)
	return s, ag
}

func TestHealthIsUnauthenticated(t *testing.T) {
	s, _ := newTestServer(t, Config{AuthToken: "secret-token"})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := newTestServer(t, Config{AuthToken: "secret-token"})

	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", "", http.StatusUnauthorized},
		{"bearer token", "Bearer secret-token", "", http.StatusOK},
		{"query token", "", "?token=secret-token", http.StatusOK},
		{"prefix of token", "Bearer secret", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/status"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestEmptyTokenDisablesAuth(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnableDisable(t *testing.T) {
	s, ag := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/enable", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var enabled bool
	ag.Inspect(func(st *types.AgentState) { enabled = st.Enabled })
	assert.True(t, enabled)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/disable", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	ag.Inspect(func(st *types.AgentState) { enabled = st.Enabled })
	assert.False(t, enabled)
}

func TestUpdateConfigPartialMerge(t *testing.T) {
	s, ag := newTestServer(t, Config{})

	body := strings.NewReader(`{"trading":{"takeProfitPct":25}}`)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/config", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg types.Config
	ag.Inspect(func(st *types.AgentState) { cfg = st.Config })
	assert.Equal(t, 25.0, cfg.Trading.TakeProfitPct)
	assert.Equal(t, 8.0, cfg.Trading.StopLossPct, "untouched fields survive the merge")
}

func TestUpdateConfigRejectsInvalidJSON(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/config", strings.NewReader("{nope")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateConfigSanitizesBadValues(t *testing.T) {
	s, ag := newTestServer(t, Config{})

	body := strings.NewReader(`{"trading":{"stopLossPct":-5}}`)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/config", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trading.stopLossPct")

	var cfg types.Config
	ag.Inspect(func(st *types.AgentState) { cfg = st.Config })
	assert.Equal(t, 8.0, cfg.Trading.StopLossPct)
}

func TestKillSwitchRequiresSecret(t *testing.T) {
	s, ag := newTestServer(t, Config{KillSecret: "break-glass"})

	ag.Do(func(st *types.AgentState) { st.Enabled = true })

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/kill", strings.NewReader(`{"secret":"wrong"}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/kill", strings.NewReader(`{"secret":"break-glass"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var enabled bool
	ag.Inspect(func(st *types.AgentState) { enabled = st.Enabled })
	assert.False(t, enabled)
}

func TestKillSwitchDisabledWhenUnconfigured(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/kill", strings.NewReader(`{"secret":""}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDexResetRestoresStartingBalance(t *testing.T) {
	s, ag := newTestServer(t, Config{})

	ag.Do(func(st *types.AgentState) {
		st.DexPaperBalanceSol = 0.2
		st.DexRealizedPnLSol = -0.8
		st.DexPositions["mint"] = types.DexPosition{TokenAddress: "mint"}
	})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/dex/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	ag.Inspect(func(st *types.AgentState) {
		assert.Equal(t, st.Config.Dex.StartingBalanceSol, st.DexPaperBalanceSol)
		assert.Zero(t, st.DexRealizedPnLSol)
		assert.Empty(t, st.DexPositions)
	})
}

func TestStatusReportsState(t *testing.T) {
	s, ag := newTestServer(t, Config{})

	ag.Do(func(st *types.AgentState) {
		st.Enabled = true
		st.SignalCache = []types.Signal{{Symbol: "AAPL", Sentiment: 0.4}}
	})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"enabled":true`)
	assert.Contains(t, body, `"signalCount":1`)
}
