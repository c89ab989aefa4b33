package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func serve(router http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := newTestRouter(CORSWithConfig(DefaultCORSConfig()))

	t.Run("rejects cross-origin request with empty whitelist default", func(t *testing.T) {
		w := serve(router, "GET", "/test", map[string]string{"Origin": "http://malicious.com"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight always answers 204", func(t *testing.T) {
		w := serve(router, "OPTIONS", "/test", map[string]string{"Origin": "http://some-origin.com"})

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSWithConfig(t *testing.T) {
	t.Run("allows listed origins", func(t *testing.T) {
		router := newTestRouter(CORSWithConfig(CORSConfig{
			AllowOrigins:     []string{"http://localhost:3000", "http://example.com"},
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
		}))

		for _, origin := range []string{"http://localhost:3000", "http://example.com"} {
			w := serve(router, "GET", "/test", map[string]string{"Origin": origin})
			assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		}
	})

	t.Run("rejects unlisted origin", func(t *testing.T) {
		router := newTestRouter(CORSWithConfig(CORSConfig{AllowOrigins: []string{"http://allowed.com"}}))

		w := serve(router, "GET", "/test", map[string]string{"Origin": "http://not-allowed.com"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard never allows credentials", func(t *testing.T) {
		router := newTestRouter(CORSWithConfig(CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true}))

		w := serve(router, "GET", "/test", map[string]string{"Origin": "http://anything.com"})

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight for allowed origin carries headers", func(t *testing.T) {
		router := newTestRouter(CORSWithConfig(CORSConfig{
			AllowOrigins: []string{"http://localhost:3000"},
			AllowMethods: []string{"GET", "POST"},
			MaxAge:       12 * time.Hour,
		}))

		w := serve(router, "OPTIONS", "/test", map[string]string{"Origin": "http://localhost:3000"})

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
	})
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("generates request ID", func(t *testing.T) {
		w := serve(router, "GET", "/test", nil)

		assert.Len(t, w.Header().Get(RequestIDHeader), 32)
		assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())
	})

	t.Run("uses provided request ID", func(t *testing.T) {
		w := serve(router, "GET", "/test", map[string]string{RequestIDHeader: "test-request-id"})

		assert.Equal(t, "test-request-id", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "test-request-id", w.Body.String())
	})

	t.Run("truncates oversized request ID", func(t *testing.T) {
		w := serve(router, "GET", "/test", map[string]string{RequestIDHeader: strings.Repeat("a", 500)})

		assert.Len(t, w.Body.String(), MaxRequestIDLength)
	})
}

func TestSecure(t *testing.T) {
	t.Run("default configuration", func(t *testing.T) {
		w := serve(newTestRouter(SecureWithConfig(DefaultSecurityConfig())), "GET", "/test", nil)

		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("HSTS enabled", func(t *testing.T) {
		w := serve(newTestRouter(SecureWithConfig(SecurityConfig{HSTSEnabled: true, HSTSMaxAge: 600})), "GET", "/test", nil)

		assert.Equal(t, "max-age=600; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
		assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	})
}

func TestTimeout(t *testing.T) {
	router := gin.New()
	router.Use(Timeout(30 * time.Second))
	router.GET("/test", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(30*time.Second), deadline, 5*time.Second)
		c.Status(http.StatusOK)
	})

	w := serve(router, "GET", "/test", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerateRequestID(t *testing.T) {
	id1 := generateRequestID()
	id2 := generateRequestID()

	assert.NotEqual(t, id1, id2)
	assert.Len(t, id1, 32)
}
