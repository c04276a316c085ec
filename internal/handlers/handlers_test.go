package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droprelay/droprelay/internal/handlers"
	"github.com/droprelay/droprelay/internal/logging"
	"github.com/droprelay/droprelay/internal/middleware"
	"github.com/droprelay/droprelay/internal/models"
	"github.com/droprelay/droprelay/internal/repository"
	"github.com/droprelay/droprelay/internal/rules"
	"github.com/droprelay/droprelay/internal/server"
	"github.com/droprelay/droprelay/internal/service"
	"github.com/droprelay/droprelay/internal/watermark"
)

func newTestServer(t *testing.T) (http.Handler, *repository.InMemoryRepository) {
	t.Helper()

	repo := repository.NewInMemoryRepository()
	provider := rules.NewProvider(repo)
	tracker := watermark.NewTracker(repo)

	svc := service.NewService(repo, provider, tracker, nil)
	h := handlers.NewHandler(svc, logging.New(slog.LevelError, "text"))
	return server.NewRouter(h, middleware.NewAuthMiddleware("")), repo
}

func postRule(t *testing.T, router http.Handler, req models.CreateRuleRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/rules", bytes.NewReader(body)))
	return w
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestServer(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCreateRule(t *testing.T) {
	router, _ := newTestServer(t)

	w := postRule(t, router, models.CreateRuleRequest{
		Name:        "big drops",
		Destination: "loot-feed",
		Keywords:    []string{"Vorkath", "zulrah"},
		MinValue:    1_000_000,
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "big drops", created.Name)
	// Keywords are normalized to lowercase on the way in
	assert.Equal(t, []string{"vorkath", "zulrah"}, created.Keywords)
}

func TestCreateRule_Validation(t *testing.T) {
	router, _ := newTestServer(t)

	tests := []struct {
		name string
		req  models.CreateRuleRequest
	}{
		{"missing name", models.CreateRuleRequest{Destination: "d", Keywords: []string{"k"}}},
		{"missing destination", models.CreateRuleRequest{Name: "n", Keywords: []string{"k"}}},
		{"no keywords", models.CreateRuleRequest{Name: "n", Destination: "d"}},
		{"negative min value", models.CreateRuleRequest{Name: "n", Destination: "d", Keywords: []string{"k"}, MinValue: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postRule(t, router, tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateRule_DuplicateName(t *testing.T) {
	router, _ := newTestServer(t)

	first := postRule(t, router, models.CreateRuleRequest{
		Name: "dupe", Destination: "a", Keywords: []string{"x"},
	})
	require.Equal(t, http.StatusCreated, first.Code)

	second := postRule(t, router, models.CreateRuleRequest{
		Name: "DUPE", Destination: "b", Keywords: []string{"y"},
	})
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestCreateRule_OverlappingDestination(t *testing.T) {
	router, _ := newTestServer(t)

	first := postRule(t, router, models.CreateRuleRequest{
		Name: "one", Destination: "feed", Keywords: []string{"vorkath"},
	})
	require.Equal(t, http.StatusCreated, first.Code)

	second := postRule(t, router, models.CreateRuleRequest{
		Name: "two", Destination: "feed", Keywords: []string{"vorkath", "zulrah"},
	})
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestListRules(t *testing.T) {
	router, _ := newTestServer(t)

	require.Equal(t, http.StatusCreated, postRule(t, router, models.CreateRuleRequest{
		Name: "a", Destination: "d1", Keywords: []string{"x"},
	}).Code)
	require.Equal(t, http.StatusCreated, postRule(t, router, models.CreateRuleRequest{
		Name: "b", Destination: "d2", Keywords: []string{"y"},
	}).Code)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ListRulesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

func TestDeleteRule(t *testing.T) {
	router, _ := newTestServer(t)

	require.Equal(t, http.StatusCreated, postRule(t, router, models.CreateRuleRequest{
		Name: "gone", Destination: "d", Keywords: []string{"x"},
	}).Code)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/rules/gone", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/rules/gone", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReloadRules_ReportsWarnings(t *testing.T) {
	router, repo := newTestServer(t)

	// Bypass validation to plant a destination-less rule in the store
	require.NoError(t, repo.AddRule(context.Background(), &models.Rule{
		Name: "broken", Keywords: []string{"x"},
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/rules/reload", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Status   string   `json:"status"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "reloaded", resp.Status)
	assert.Len(t, resp.Warnings, 1)
}

func TestGetWatermark(t *testing.T) {
	router, repo := newTestServer(t)
	require.NoError(t, repo.SetWatermark(context.Background(), 42))

	// The tracker reads the store on Load, not per request; a fresh server
	// reports zero until the serve path loads it. Exercise the endpoint shape.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/watermark", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]uint64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "watermark")
}

func TestLookup_MissingParams(t *testing.T) {
	router, _ := newTestServer(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/lookup?query=zulrah", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuth_RejectsMissingToken(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	svc := service.NewService(repo, rules.NewProvider(repo), watermark.NewTracker(repo), nil)
	h := handlers.NewHandler(svc, logging.New(slog.LevelError, "text"))
	router := server.NewRouter(h, middleware.NewAuthMiddleware("test-secret"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Health stays open
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
