package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-intent-engine/internal/adapter/http/middleware"
	"payment-intent-engine/internal/adapter/storage/memory"
	redisStore "payment-intent-engine/internal/adapter/storage/redis"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/internal/core/ports/mocks"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func setupRateLimitRouter(store ports.RateLimitStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	r.GET("/test", func(c *gin.Context) {
		if op := c.GetHeader("X-Test-Operator"); op != "" {
			c.Set(middleware.CtxOperator, op)
		}
		c.Next()
	}, middleware.RateLimiter(store, "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func newRedisStore(t *testing.T) ports.RateLimitStore {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisStore.NewRateLimitStore(client)
}

func stores(t *testing.T) map[string]ports.RateLimitStore {
	return map[string]ports.RateLimitStore{
		"redis":  newRedisStore(t),
		"memory": memory.NewRateLimitStore(),
	}
}

func doGet(router *gin.Engine, operator string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/test", nil)
	if operator != "" {
		req.Header.Set("X-Test-Operator", operator)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			router := setupRateLimitRouter(store)
			for i := 0; i < 3; i++ {
				w := doGet(router, "")
				assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
				assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
				assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
				assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
			}
		})
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			router := setupRateLimitRouter(store)
			for i := 0; i < 3; i++ {
				assert.Equal(t, 200, doGet(router, "").Code)
			}

			w := doGet(router, "")
			assert.Equal(t, 429, w.Code)
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
			assert.Contains(t, w.Body.String(), "RATE_001")
		})
	}
}

func TestRateLimiter_KeysByOperator(t *testing.T) {
	router := setupRateLimitRouter(memory.NewRateLimitStore())

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, doGet(router, "alice").Code)
	}
	assert.Equal(t, 429, doGet(router, "alice").Code)
	assert.Equal(t, 200, doGet(router, "bob").Code)
	assert.Equal(t, 200, doGet(router, "").Code, "anonymous callers have their own counter")
}

func TestRateLimiter_DegradedModeAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRateLimitStore(ctrl)
	store.EXPECT().Allow(gomock.Any(), gomock.Any(), int64(3), time.Minute).Return(nil, errors.New("redis down")).Times(5)

	router := setupRateLimitRouter(store)
	for i := 0; i < 5; i++ {
		assert.Equal(t, 200, doGet(router, "").Code)
	}
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules()
	assert.Equal(t, int64(30), rules[middleware.GroupCreate].Limit)
	assert.Equal(t, int64(30), rules[middleware.GroupExecute].Limit)
	assert.Equal(t, int64(10), rules[middleware.GroupLogin].Limit)
	assert.Equal(t, int64(120), rules[middleware.GroupRead].Limit)
}
