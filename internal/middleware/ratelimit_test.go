package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coredesk/coredesk-gateway/internal/counter"
	"github.com/coredesk/coredesk-gateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newRateLimitedRouter(t *testing.T, preset ratelimit.Preset, actorID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := ratelimit.NewRegistry(nil)
	require.NoError(t, err)

	store := counter.NewLocalStore()
	t.Cleanup(store.Close)

	limiter := ratelimit.NewLimiter(store, registry)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if actorID != "" {
			c.Set(CtxActorID, actorID)
		}
	})
	router.GET("/resource", RateLimit(limiter, preset), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	return router
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_AllowsThenDenies(t *testing.T) {
	router := newRateLimitedRouter(t, ratelimit.PresetSensitive, "user-42")

	for i := 0; i < 3; i++ {
		w := doGet(router, "/resource")
		assert.Equal(t, http.StatusOK, w.Code, "request %d is within the budget", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := doGet(router, "/resource")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.Contains(t, body.Error.Message, "Retry in")
}

func TestRateLimitMiddleware_RemainingHeaderCountsDown(t *testing.T) {
	router := newRateLimitedRouter(t, ratelimit.PresetSensitive, "user-42")

	for _, want := range []string{"2", "1", "0"} {
		w := doGet(router, "/resource")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitMiddleware_FallsBackToClientIP(t *testing.T) {
	router := newRateLimitedRouter(t, ratelimit.PresetSensitive, "")

	for i := 0; i < 3; i++ {
		w := doGet(router, "/resource")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doGet(router, "/resource")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "unauthenticated requests share the IP bucket")
}

func TestRateLimitMiddleware_UnknownPresetIs500(t *testing.T) {
	router := newRateLimitedRouter(t, ratelimit.Preset("no_such_preset"), "user-42")

	w := doGet(router, "/resource")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}
