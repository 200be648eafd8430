package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fmcg/rfp-cli/internal/catalog"
	"github.com/meridian-fmcg/rfp-cli/internal/config"
	"github.com/meridian-fmcg/rfp-cli/internal/jobs"
	"github.com/meridian-fmcg/rfp-cli/internal/keypool"
	"github.com/meridian-fmcg/rfp-cli/internal/pipeline"
	"github.com/meridian-fmcg/rfp-cli/internal/reader"
	"github.com/meridian-fmcg/rfp-cli/internal/store"
	"github.com/meridian-fmcg/rfp-cli/pkg/genai"
)

// stageBackend answers each pipeline stage with canned output.
type stageBackend struct{}

func (stageBackend) Complete(_ context.Context, _ string, req genai.Request) (string, error) {
	switch {
	case strings.Contains(req.System, "Order Intake Agent"):
		return `{"client_name": "MegaMart", "line_items": [{"id": "1", "description": "50 cases Dove", "quantity": 50, "unit": "cases"}], "is_relevant": true}`, nil
	case strings.Contains(req.System, "Product Matching Agent"):
		return `{"matches": [{"line_item_id": "1", "matched_sku_code": "SKU001", "matched_sku_name": "Dove 340ml", "confidence": 0.9}]}`, nil
	case strings.Contains(req.System, "Pricing Agent"):
		return `[{"sku_code": "SKU001", "sku_name": "Dove 340ml", "qty": 50, "line_total_price": 15000}]`, nil
	case strings.Contains(req.System, "Sales Strategist"):
		return `{"win_probability_pct": 70}`, nil
	default:
		return "# Proposal\n\nbody", nil
	}
}

func newTestAPI(t *testing.T) *apiServer {
	t.Helper()

	cfg = &config.Config{Pipeline: config.PipelineConfig{BatchSize: 10}}

	pool, err := keypool.New([]string{"test-key-abcdefgh"})
	require.NoError(t, err)

	cat, err := catalog.NewStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	require.NoError(t, cat.Migrate(context.Background()))

	e := &env{
		Pool:    pool,
		Cache:   store.NewMemory(),
		Catalog: cat,
		Gen:     genai.New(stageBackend{}, pool, store.NewMemory(), "test-model", genai.WithBackoffs(0, 0)),
		Rules:   pipeline.DefaultRules(),
		Reader:  reader.New(""),
	}
	return &apiServer{env: e, tracker: jobs.NewTracker()}
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.routes(context.Background()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusUnknownJob(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.routes(context.Background()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProcessMissingFile(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.routes(context.Background()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/process", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessLifecycle(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.routes(context.Background()))
	defer srv.Close()

	// Upload an order document.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "order.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Need 50 cases of Dove shampoo for MegaMart"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/process", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	require.NotEmpty(t, accepted.JobID)

	// Wait for the background run to finish.
	require.Eventually(t, func() bool {
		job, ok := api.tracker.Get(accepted.JobID)
		return ok && job.Status == jobs.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	// Status endpoint omits the result payload.
	statusResp, err := http.Get(srv.URL + "/api/status/" + accepted.JobID)
	require.NoError(t, err)
	defer statusResp.Body.Close()
	statusBody, err := io.ReadAll(statusResp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, statusResp.StatusCode)
	assert.NotContains(t, string(statusBody), "rfp_id")

	// Result endpoint returns the full pipeline state.
	resultResp, err := http.Get(srv.URL + "/api/result/" + accepted.JobID)
	require.NoError(t, err)
	defer resultResp.Body.Close()
	resultBody, err := io.ReadAll(resultResp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resultResp.StatusCode)
	assert.Contains(t, string(resultBody), "MegaMart")
	assert.Contains(t, string(resultBody), "ORDER_")
}

func TestResultPendingJob(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.routes(context.Background()))
	defer srv.Close()

	id := api.tracker.Create()

	resp, err := http.Get(srv.URL + "/api/result/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestKeyStatsRedacted(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.routes(context.Background()))
	defer srv.Close()

	api.env.Pool.Next()

	resp, err := http.Get(srv.URL + "/api/keys")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(raw), "test-key-abcdefgh")
	assert.Contains(t, string(raw), "test...efgh")
}
