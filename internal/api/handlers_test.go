package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urbantwin/hybridsim/internal/hybrid"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

type stubMeso struct {
	block chan struct{}
}

func (s *stubMeso) RunBaseline(ctx context.Context) (*models.MesoResult, error) {
	if s.block != nil {
		<-s.block
	}
	return &models.MesoResult{LinkStats: []models.LinkStat{{LinkID: "l1", Delay: 5}}}, nil
}

func (s *stubMeso) RunWithCorrections(ctx context.Context, _ map[string]models.Correction) (*models.MesoResult, error) {
	return &models.MesoResult{LinkStats: []models.LinkStat{{LinkID: "l1"}}}, nil
}

type stubMicro struct{}

func (stubMicro) RunHotspots(ctx context.Context, hotspots []string) (map[string]models.MicroResult, map[string]error, error) {
	return map[string]models.MicroResult{}, nil, nil
}

func newTestRouter(t *testing.T, meso *stubMeso) (http.Handler, *hybrid.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	orc := hybrid.NewOrchestrator(meso, stubMicro{}, 1, dir, zap.NewNop())
	manager := hybrid.NewManager(orc, zap.NewNop())
	return NewRouter(manager, dir, zap.NewNop()), manager, dir
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadOSMStoresUnderFixedName(t *testing.T) {
	router, _, dir := newTestRouter(t, &stubMeso{})

	body, contentType := multipartBody(t, "heilbronn_extract.osm", "<osm/>")
	req := httptest.NewRequest(http.MethodPost, "/upload/osm", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	data, err := os.ReadFile(filepath.Join(dir, "network.osm"))
	require.NoError(t, err)
	assert.Equal(t, "<osm/>", string(data))
}

func TestUploadGTFSKeepsOriginalName(t *testing.T) {
	router, _, dir := newTestRouter(t, &stubMeso{})

	body, contentType := multipartBody(t, "feed.zip", "PK")
	req := httptest.NewRequest(http.MethodPost, "/upload/gtfs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := os.Stat(filepath.Join(dir, "feed.zip"))
	assert.NoError(t, err)
}

func TestUploadMissingFileField(t *testing.T) {
	router, _, _ := newTestRouter(t, &stubMeso{})

	req := httptest.NewRequest(http.MethodPost, "/upload/osm", bytes.NewBufferString("not multipart"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	dir := t.TempDir()
	handler := uploadHandler(dir, "network.osm", 64, zap.NewNop())

	body, contentType := multipartBody(t, "huge.osm", strings.Repeat("x", 4096))
	req := httptest.NewRequest(http.MethodPost, "/upload/osm", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	_, err := os.Stat(filepath.Join(dir, "network.osm"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunConflictsWhileActive(t *testing.T) {
	meso := &stubMeso{block: make(chan struct{})}
	router, manager, _ := newTestRouter(t, meso)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "started", started.Status)
	assert.NotEmpty(t, started.RunID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(meso.block)
	require.Eventually(t, func() bool {
		return manager.Status().State == models.RunStateComplete
	}, 5*time.Second, 10*time.Millisecond)
}

func TestResultsNotReadyThenServed(t *testing.T) {
	router, manager, _ := newTestRouter(t, &stubMeso{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/run", nil))
	require.Eventually(t, func() bool {
		return manager.Status().State == models.RunStateComplete
	}, 5*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []string{"l1"}, result.Hotspots)
}

func TestStatusEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t, &stubMeso{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.RunStateIdle, status.State)
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t, &stubMeso{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
