package control

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/logflow/internal/logging"
	"github.com/telhawk-systems/logflow/internal/model"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	fs := afero.NewMemMapFs()
	logger := logging.New(logging.ParseLevel("error"), "json")
	plane, err := New(fs, "/data", logger.Logger)
	require.NoError(t, err)
	require.NoError(t, plane.Start())
	t.Cleanup(func() { _ = plane.Stop(context.Background()) })

	return NewRouter(NewHandlers(plane))
}

func TestRouter_Healthz(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRouter_CreateAndListSources(t *testing.T) {
	router := testRouter(t)

	src := model.Source{
		ID: "src-1", Name: "app-logs", Port: 20001, Protocol: model.ProtocolUDP,
		SourceIPs: []string{"127.0.0.1"}, TargetType: model.TargetFolder,
		Folder: &model.FolderTarget{Path: "/data/out", BatchSize: 10, Compression: model.CompressionNone},
	}
	body, _ := json.Marshal(src)

	req := httptest.NewRequest(http.MethodPost, "/sources", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/sources", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got []model.Source
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "src-1", got[0].ID)
}

func TestRouter_CreateSource_MissingIDIsServerGenerated(t *testing.T) {
	router := testRouter(t)

	src := model.Source{
		Name: "app-logs", Port: 20002, Protocol: model.ProtocolUDP,
		SourceIPs: []string{"127.0.0.1"}, TargetType: model.TargetFolder,
		Folder: &model.FolderTarget{Path: "/data/out", BatchSize: 10, Compression: model.CompressionNone},
	}
	body, _ := json.Marshal(src)

	req := httptest.NewRequest(http.MethodPost, "/sources", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created model.Source
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
}

func TestRouter_CreateSource_InvalidBodyReturnsBadRequest(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/sources", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_DeleteSource_MissingIDReturnsBadRequest(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodDelete, "/sources", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_Metrics_ExposesPrometheusFormat(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
