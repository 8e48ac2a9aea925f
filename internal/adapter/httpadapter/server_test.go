package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/seisdb-acquire/internal/acquire"
	"github.com/couchcryptid/seisdb-acquire/internal/adapter/httpadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRun struct {
	err    error
	status acquire.Summary
}

func (m *mockRun) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockRun) Status() acquire.Summary { return m.status }

func newTestServer(readyErr error) *httpadapter.Server {
	return newRunServer(&mockRun{err: readyErr})
}

func newRunServer(run *mockRun) *httpadapter.Server {
	return httpadapter.NewServer(":0", run, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(t *testing.T, srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenRunActive(t *testing.T) {
	rec := get(t, newTestServer(nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503BeforeRunStarts(t *testing.T) {
	rec := get(t, newTestServer(errors.New("acquisition run has not started")), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "acquisition run has not started", body["error"])
}

func TestStatusReturnsRunSummary(t *testing.T) {
	run := &mockRun{status: acquire.Summary{Events: 3, FailedEvents: 1, Stations: 4, Attempted: 9, Archived: 6, NoData: 2, Failed: 1, StationXML: 4}}
	rec := get(t, newRunServer(run), "/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body["events"])
	assert.Equal(t, 1, body["failed_events"])
	assert.Equal(t, 6, body["archived"])
	assert.Equal(t, 2, body["no_data"])
	assert.Equal(t, 4, body["stationxml"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownMethodRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
