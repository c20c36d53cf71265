package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/store/inmem"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("RATE_LIMIT_RPS", "1000")
	t.Setenv("RATE_LIMIT_BURST", "1000")
	return NewApp(MemoryStores(inmem.New(inmem.Config{}, nil)), zap.NewNop())
}

func do(t *testing.T, app *App, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	rec := do(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["store"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth_StoreDown(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "1000")
	st := inmem.New(inmem.Config{}, nil)
	stores := MemoryStores(st)
	stores.Pinger = failingPinger{}
	app := NewApp(stores, zap.NewNop())

	rec := do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	app := newTestApp(t)

	rec := do(t, app, http.MethodPost, "/v1/sessions", map[string]any{
		"session_id":  "user-42",
		"preferences": map[string]any{"framework": "vue"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, "user-42", created["session_id"])
	assert.Len(t, created["beliefs"], 7)

	rec = do(t, app, http.MethodPost, "/v1/sessions", map[string]any{"session_id": "user-42"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/sessions/user-42/evidence", map[string]any{
		"belief_key": "prefers_typescript",
		"type":       "code_written",
		"content":    map[string]any{"language": "javascript"},
		"confidence": 0.9,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[struct {
		Belief      domain.Belief         `json:"belief"`
		Preferences domain.UserPreference `json:"preferences"`
	}](t, rec)
	assert.Less(t, updated.Belief.Probability, 0.3)
	assert.Equal(t, "javascript", updated.Preferences.PreferredLanguage)
	assert.Equal(t, "vue", updated.Preferences.Framework)

	rec = do(t, app, http.MethodGet, "/v1/sessions/user-42/beliefs/prefers_typescript", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[domain.Belief](t, rec).Evidence, 1)

	rec = do(t, app, http.MethodGet, "/v1/sessions/user-42/evidence", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["count"])

	rec = do(t, app, http.MethodGet, "/v1/sessions/user-42/response-parameters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	params := decode[domain.ResponseParameters](t, rec)
	assert.Equal(t, domain.VerbosityBalanced, params.Style)

	rec = do(t, app, http.MethodGet, "/v1/sessions/user-42/preferences", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app, http.MethodDelete, "/v1/sessions/user-42", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/sessions/user-42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddEvidence_Errors(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/v1/sessions", map[string]any{"session_id": "s"}).Code)

	rec := do(t, app, http.MethodPost, "/v1/sessions/s/evidence", map[string]any{
		"belief_key": "likes_tabs", "type": "code_written",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/sessions/s/evidence", map[string]any{
		"belief_key": "prefers_react", "type": "telepathy",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/sessions/missing/evidence", map[string]any{
		"belief_key": "prefers_react", "type": "code_written",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/sessions/s/beliefs/likes_tabs", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEpisodesAndChunking(t *testing.T) {
	app := newTestApp(t)

	for i := 0; i < 6; i++ {
		rec := do(t, app, http.MethodPost, "/v1/agents/bot/episodes", map[string]any{
			"page_id":    "events",
			"event_type": "click",
			"context":    map[string]any{"button": "rsvp"},
			"outcome":    "success",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, app, http.MethodPost, "/v1/agents/bot/episodes", map[string]any{
		"event_type": "click", "outcome": "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/agents/bot/episodes?page_id=events&limit=4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recalled := decode[struct {
		Episodes []domain.Episode `json:"episodes"`
		Count    int              `json:"count"`
	}](t, rec)
	assert.Equal(t, 4, recalled.Count)
	assert.Equal(t, 1, recalled.Episodes[0].RetrievalCount)

	rec = do(t, app, http.MethodGet, "/v1/agents/bot/episodes?min_surprise=2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/agents/bot/semantic/click:events", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pattern := decode[domain.SemanticMemory](t, rec)
	assert.InDelta(t, 0.6, pattern.Confidence, 1e-9)

	rec = do(t, app, http.MethodGet, "/v1/agents/bot/semantic", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["count"])

	rec = do(t, app, http.MethodGet, "/v1/agents/bot/semantic/view:home", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRules(t *testing.T) {
	app := newTestApp(t)

	rec := do(t, app, http.MethodPut, "/v1/agents/bot/rules", map[string]any{
		"rule_name": "suggest_rsvp",
		"condition": map[string]any{"page": "events"},
		"action":    map[string]any{"highlight": "rsvp"},
		"priority":  2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rule := decode[domain.Rule](t, rec)
	assert.InDelta(t, 0.5, rule.SuccessRate, 1e-12)
	base := "/v1/rules/" + rule.ID.String()

	rec = do(t, app, http.MethodPost, base+"/simulate", map[string]any{"state": map[string]any{"page": "home"}})
	require.Equal(t, http.StatusOK, rec.Code)
	sim := decode[domain.SimulationResult](t, rec)
	assert.True(t, sim.Success)

	rec = do(t, app, http.MethodPost, base+"/outcome", map[string]any{"outcome": "success"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 0.55, decode[domain.Rule](t, rec).SuccessRate, 1e-9)

	rec = do(t, app, http.MethodPost, base+"/outcome", map[string]any{"outcome": "great"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/agents/bot/rules/best", map[string]any{"state": map[string]any{"page": "events"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["count"])

	rec = do(t, app, http.MethodPut, base+"/enabled", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[domain.Rule](t, rec).Enabled)

	rec = do(t, app, http.MethodPost, "/v1/agents/bot/rules/best", map[string]any{"state": map[string]any{"page": "events"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["count"])

	rec = do(t, app, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.Rule](t, rec)
	assert.Equal(t, 1, got.MentalSimulationCount)
	assert.Equal(t, 1, got.ApplicationCount)
}

func TestRules_MissingAndInvalid(t *testing.T) {
	app := newTestApp(t)

	rec := do(t, app, http.MethodPost, "/v1/rules/00000000-0000-0000-0000-000000000001/simulate", map[string]any{"state": map[string]any{}})
	require.Equal(t, http.StatusOK, rec.Code)
	sim := decode[domain.SimulationResult](t, rec)
	assert.False(t, sim.Success)
	assert.Equal(t, "Rule not found", sim.Reasoning)

	rec = do(t, app, http.MethodGet, "/v1/rules/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/rules/00000000-0000-0000-0000-000000000001/outcome", map[string]any{"outcome": "success"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, app, http.MethodPut, "/v1/agents/bot/rules", map[string]any{"condition": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoints(t *testing.T) {
	app := newTestApp(t)
	do(t, app, http.MethodGet, "/v1/sessions/nope", nil)

	rec := do(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, m["error_count"])

	rec = do(t, app, http.MethodGet, "/metrics/prometheus", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "mneme_http_requests_total"), body)
	assert.Contains(t, body, `route="/v1/sessions/{id}`)
	assert.Contains(t, body, "mneme_belief_sessions_active")
}

func TestStartStop(t *testing.T) {
	app := newTestApp(t)
	app.Start()
	app.Stop()
}
