package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/certhub/backend/internal/interfaces/http/dto"
)

func TestRateLimiter(t *testing.T) {
	t.Run("blocks requests exceeding limit", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute)
		defer limiter.Stop()

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("client"), "request %d should be allowed", i+1)
		}
		assert.False(t, limiter.Allow("client"))
	})

	t.Run("separate limits per client", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		defer limiter.Stop()

		assert.True(t, limiter.Allow("clientA"))
		assert.False(t, limiter.Allow("clientA"))
		assert.True(t, limiter.Allow("clientB"))
	})

	t.Run("resets after window", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		defer limiter.Stop()
		now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		assert.True(t, limiter.Allow("client"))
		assert.False(t, limiter.Allow("client"))

		now = now.Add(time.Minute)
		assert.True(t, limiter.Allow("client"))
	})

	t.Run("remaining returns correct count", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute)
		defer limiter.Stop()

		assert.Equal(t, 5, limiter.Remaining("client"))
		limiter.Allow("client")
		limiter.Allow("client")
		assert.Equal(t, 3, limiter.Remaining("client"))
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		limiter := NewRateLimiter(100, time.Minute)
		defer limiter.Stop()
		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0

		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("concurrent-client") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 100, allowed)
	})
}

type failingLimiter struct{}

func (failingLimiter) Take(context.Context, string) (int, bool, error) {
	return 0, false, errors.New("redis: connection refused")
}

func (failingLimiter) Limit() int { return 10 }

func TestRateLimitMiddleware(t *testing.T) {
	request := func(router *gin.Engine) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/test", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}
	newRouter := func(l Limiter) *gin.Engine {
		router := gin.New()
		router.Use(RateLimit(l, nil))
		router.POST("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}

	t.Run("sets headers and rejects over limit", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute)
		defer limiter.Stop()
		router := newRouter(limiter)

		w := request(router)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

		assert.Equal(t, http.StatusOK, request(router).Code)

		w = request(router)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeRateLimited)
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		w := request(newRouter(failingLimiter{}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	})
}
