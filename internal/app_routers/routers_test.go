package approuters

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"Flort/internal/configuration"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, mutate func(*configuration.Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := configuration.Default()
	cfg.Storage.LocationsPath = filepath.Join(t.TempDir(), "locations")
	if mutate != nil {
		mutate(&cfg)
	}
	container, err := configuration.BuildContainer(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })
	return NewRouter(container)
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEscalationFlowThroughRouter(t *testing.T) {
	r := newTestRouter(t, nil)

	w := serve(r, http.MethodPost, "/api/conversations/u1/b1/messages", `{"sender":"user","content":"hola"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, http.MethodPut, "/api/locations/u1-b1", `{"location":"live_chat"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/api/escalations", "")
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		ResponseBody struct {
			Count   int  `json:"count"`
			Visible bool `json:"visible"`
		}
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 1, env.ResponseBody.Count)
	assert.True(t, env.ResponseBody.Visible)

	w = serve(r, http.MethodGet, "/api/monitor/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"live_chat":1`)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)
	serve(r, http.MethodPut, "/api/locations/u1-b1", `{"location":"archived"}`)

	w := serve(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "flort_"))
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(t, func(c *configuration.Config) {
		c.Server.RateLimit = configuration.RateLimitConfig{RPS: 0.001, Burst: 2}
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/notifications", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/notifications", "").Code)

	w := serve(r, http.MethodGet, "/api/notifications", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"IsSuccess":false`)

	// outside the api group
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/notifications", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:4200", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)

	cfg := corsConfig([]string{"https://admin.flort.app"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.NoError(t, cfg.Validate())
}
