package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-ledger/config"
	"marketplace-ledger/internal/adapter/http/middleware"
	redisStore "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func setupRateLimitRouter(store middleware.RateLimitStore, actor *domain.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}

	r.GET("/test", func(c *gin.Context) {
		if actor != nil {
			c.Set(middleware.CtxActor, *actor)
		}
		c.Next()
	}, middleware.RateLimiter(store, "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func newStore(t *testing.T) *redisStore.RateLimitStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisStore.NewRateLimitStore(client)
}

func get(router *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router := setupRateLimitRouter(newStore(t), nil)

	for i := 0; i < 3; i++ {
		w := get(router)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router := setupRateLimitRouter(newStore(t), nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(router).Code)
	}

	w := get(router)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiter_SeparateCountersPerActor(t *testing.T) {
	store := newStore(t)
	a := &domain.Actor{ID: uuid.New(), Role: domain.ActorRoleAdmin}
	b := &domain.Actor{ID: uuid.New(), Role: domain.ActorRoleAdmin}
	routerA := setupRateLimitRouter(store, a)
	routerB := setupRateLimitRouter(store, b)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(routerA).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(routerA).Code)
	assert.Equal(t, http.StatusOK, get(routerB).Code)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int64, time.Duration) (*redisStore.RateLimitResult, error) {
	return nil, errors.New("connection refused")
}

func TestRateLimiter_StoreFailureAllowsRequest(t *testing.T) {
	router := setupRateLimitRouter(failingStore{}, nil)

	w := get(router)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitRules_FromConfig(t *testing.T) {
	rules := middleware.RateLimitRules(config.RateLimitConfig{
		WithdrawalsPerMinute: 10,
		SettlementsPerMinute: 600,
		AdminPerMinute:       0,
		ReadsPerMinute:       120,
	})

	assert.Len(t, rules, 3)
	assert.Equal(t, middleware.RateLimitRule{Limit: 10, Window: time.Minute}, rules[middleware.GroupWithdrawals])
	assert.Equal(t, int64(600), rules[middleware.GroupSettlements].Limit)
	_, ok := rules[middleware.GroupAdmin]
	assert.False(t, ok)
}
