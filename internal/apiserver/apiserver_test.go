package apiserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/faktura-processor/internal/apiserver"
	"github.com/rezonia/faktura-processor/internal/pipeline"
)

func newTestServer() *apiserver.Server {
	cfg := &apiserver.Config{Address: ":0", Debug: true}
	return apiserver.NewServer(cfg, pipeline.NewPipeline())
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["time"])
}

func TestSubmitRun_EmptyPathsRejected(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader([]byte(`{"paths":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitRun_InvalidBodyRejected(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitRun_AcceptedAndPollable(t *testing.T) {
	srv := newTestServer()

	body, err := json.Marshal(map[string]any{"paths": []string{"/nonexistent/invoice.pdf"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var submitResp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitResp))
	id := submitResp["id"]
	require.NotEmpty(t, id)

	var statusResp map[string]interface{}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id, nil)
		w = httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statusResp))
		if statusResp["status"] == "done" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, "done", statusResp["status"])
	assert.NotNil(t, statusResp["report"])
}

func TestGetRun_UnknownIDReturnsNotFound(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/does-not-exist", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetQueue_UnknownIDReturnsNotFound(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/does-not-exist/queue", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetQueue_PendingRunReturnsEmptyQueue(t *testing.T) {
	srv := newTestServer()

	body, err := json.Marshal(map[string]any{"paths": []string{"/nonexistent/invoice.pdf"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var submitResp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitResp))
	id := submitResp["id"]

	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id+"/queue", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
