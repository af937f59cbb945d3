package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lucidreline/leveling/internal/config"
	"github.com/Lucidreline/leveling/internal/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))

	a, err := New(Options{Config: cfg, Store: store.NewMemoryStore()})
	require.NoError(t, err)
	return a
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestHandler_Healthz(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
}

func TestHandler_RequestIDEchoed(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc123", resp.Header.Get("X-Request-Id"))
}

func TestHandler_Readyz(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandler_TelemetryStats(t *testing.T) {
	a := newTestApp(t)

	// generate some events through the real services
	_, err := a.XP.AwardUser(context.Background(), "u1", 50)
	assert.Error(t, err) // no such user yet, still no panic

	ms := a.store.(*store.MemoryStore)
	ms.Seed("users", "u1", map[string]any{"level": 1, "xp": 0})
	_, err = a.XP.AwardUser(context.Background(), "u1", 50)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/telemetry/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.EqualValues(t, 50, stats["xp_awarded_total"])
}

func TestHandler_SnapshotEndpoint(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(a.cfg.DataDir, "documents.json"), []byte("{}"), 0o644))

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/ops/snapshot", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		OK      bool   `json:"ok"`
		Archive string `json:"archive"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.OK)
	_, err = os.Stat(body.Archive)
	assert.NoError(t, err)

	// GET is not allowed
	getResp, err := http.Get(srv.URL + "/api/ops/snapshot")
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
}
