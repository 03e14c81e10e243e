package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsure-ai/inquest/pkg/config"
	"github.com/nsure-ai/inquest/pkg/engine"
	"github.com/nsure-ai/inquest/pkg/llm"
	"github.com/nsure-ai/inquest/pkg/tools"
	"github.com/nsure-ai/inquest/pkg/warehouse"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	yaml := "engine:\n  test_mode: true\n  llm:\n    provider: mock\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(yaml), 0o644))
	cfg, err := config.Initialize(dir)
	require.NoError(t, err)

	exec := warehouse.ExecutorFunc(func(context.Context, string, map[string]any) (*warehouse.QueryResult, error) {
		return &warehouse.QueryResult{Rows: []map[string]any{{"MODEL_SCORE": 0.3}}, RowCount: 1}, nil
	})
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(warehouse.NewTool(exec,
		cfg.Engine.Warehouse.TransactionsTable, cfg.Engine.Warehouse.ResultLimit)))

	service := engine.NewService(cfg, llm.NewScriptedClient(), registry, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = service.Shutdown(ctx)
	})
	return NewServer(service, cfg.Server.Port)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStartInvestigation(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/investigations",
		`{"entity_type":"ip","entity_id":"203.0.113.5","date_range_days":7}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["investigation_id"])
}

func TestStartRejectsBadRequests(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/investigations", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/investigations",
		`{"entity_type":"ip","date_range_days":7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "entity_id is required")

	rec = doJSON(t, h, http.MethodPost, "/api/v1/investigations",
		`{"entity_type":"ssn","entity_id":"1","date_range_days":7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unsupported entity type")

	rec = doJSON(t, h, http.MethodPost, "/api/v1/investigations",
		`{"entity_type":"ip","entity_id":"203.0.113.5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "date range is required")
}

func TestGetInvestigation(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/investigations",
		`{"entity_type":"email","entity_id":"fraud@example.com","date_range_days":30}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["investigation_id"]

	rec = doJSON(t, h, http.MethodGet, "/api/v1/investigations/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, id, st["investigation_id"])
	assert.Equal(t, "email", st["entity_type"])
	assert.Equal(t, "fraud@example.com", st["entity_id"])
}

func TestGetUnknownInvestigation(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/investigations/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelInvestigation(t *testing.T) {
	srv := testServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/investigations",
		`{"entity_type":"device_id","entity_id":"dev-1","date_range_days":7}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["investigation_id"]

	rec = doJSON(t, h, http.MethodPost, "/api/v1/investigations/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/investigations/ghost/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
