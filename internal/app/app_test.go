package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weibaohui/negotiator/config"
	"github.com/weibaohui/negotiator/internal/pkg/llm"
	"github.com/weibaohui/negotiator/internal/pkg/metrics"
)

type cannedGenerator struct{}

func (cannedGenerator) Generate(ctx context.Context, req llm.Request) string {
	if strings.Contains(req.Prompt, "Buyer's message") {
		return "Deal at $700, you have yourself a camera."
	}
	if req.Role == "buyer" {
		return "How about $700?"
	}
	return "Mint condition camera, asking $900."
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Negotiation.TurnPause = 0
	cfg.Voice.Enabled = false

	a, err := NewWithGenerator(cfg, cannedGenerator{}, metrics.New())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func doRequest(t *testing.T, engine http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var payload map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	}
	return w.Code, payload
}

func TestEngineRunsNegotiationEndToEnd(t *testing.T) {
	a := newTestApp(t)
	engine := a.Engine()

	code, body := doRequest(t, engine, http.MethodPost, "/api/start_negotiation",
		`{"item":"Camera","seller_cost":400,"seller_target":900,"seller_min":650,"buyer_target":600,"buyer_max":750}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Mint condition camera, asking $900.", body["message"])

	code, body = doRequest(t, engine, http.MethodPost, "/api/auto_negotiate", `{"rounds":3}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	results, ok := body["results"].([]any)
	require.True(t, ok)
	assert.Len(t, results, 2)

	code, body = doRequest(t, engine, http.MethodGet, "/api/negotiation_status", "")
	require.Equal(t, http.StatusOK, code)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "concluded", summary["status"])
	assert.Equal(t, float64(700), summary["final_price"])
}

func TestEngineExposesMetricsAndHealth(t *testing.T) {
	a := newTestApp(t)
	engine := a.Engine()

	code, body := doRequest(t, engine, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	doRequest(t, engine, http.MethodPost, "/api/start_negotiation",
		`{"item":"Camera","seller_cost":400,"seller_target":900,"seller_min":650,"buyer_target":600,"buyer_max":750}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	raw, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "negotiator_negotiations_started_total 1")
	assert.Contains(t, string(raw), `negotiator_turns_total{role="seller"} 1`)
}

func TestUnknownAPIRouteReturnsJSON404(t *testing.T) {
	a := newTestApp(t)

	code, body := doRequest(t, a.Engine(), http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])
}

func TestCloseIsIdempotent(t *testing.T) {
	a := newTestApp(t)
	a.Engine()
	a.Close()
	assert.NotPanics(t, a.Close)
}
