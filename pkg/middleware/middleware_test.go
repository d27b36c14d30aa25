package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/auth"
)

// memRedis implements the handful of commands the middleware uses.
// Anything else hits the nil embedded interface and panics.
type memRedis struct {
	redis.Cmdable
	mu     sync.Mutex
	vals   map[string]string
	counts map[string]int64
	ttls   map[string]time.Duration
}

func newMemRedis() *memRedis {
	return &memRedis{vals: map[string]string{}, counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (m *memRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.vals[key] = string(v)
	case string:
		m.vals[key] = v
	}
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return redis.NewIntResult(m.counts[key], nil)
}

func (m *memRedis) Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memRedis) TTL(ctx context.Context, key string) *redis.DurationCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vals[key]; !ok {
		return redis.NewDurationResult(-2, nil)
	}
	return redis.NewDurationResult(m.ttls[key], nil)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/p", AuthMiddleware("s3cret", "iss"), RoleMiddleware(auth.RoleOperator), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("subject"))
	})

	op, _, err := auth.GenerateAccessToken("ops", auth.RoleOperator, "s3cret", "iss", 5)
	require.NoError(t, err)
	viewer, _, err := auth.GenerateAccessToken("v", auth.RoleViewer, "s3cret", "iss", 5)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+op)
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/p?token="+op, nil))
	assert.Equal(t, http.StatusOK, w.Code, "query token")

	req = httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	req = httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/x", NewRateLimiter(newMemRedis(), 2, zap.NewNop()).Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	w = serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestAuthRateLimiterBlocks(t *testing.T) {
	rdb := newMemRedis()
	r := gin.New()
	r.POST("/auth/token", NewAuthRateLimiter(rdb, 1, time.Minute, 5*time.Minute).Middleware(), func(c *gin.Context) {
		c.Status(http.StatusUnauthorized)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodPost, "/auth/token", nil)).Code)
	w := serve(r, httptest.NewRequest(http.MethodPost, "/auth/token", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "300", w.Header().Get("Retry-After"))

	w = serve(r, httptest.NewRequest(http.MethodPost, "/auth/token", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "still blocked")
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	calls := 0
	r := gin.New()
	r.POST("/calls", IdempotencyMiddleware(newMemRedis()), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusAccepted, gin.H{"n": calls})
	})

	post := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader("{}"))
		if key != "" {
			req.Header.Set(idempotencyKeyHeader, key)
		}
		return serve(r, req)
	}

	first := post("k1")
	assert.Equal(t, http.StatusAccepted, first.Code)
	again := post("k1")
	assert.Equal(t, http.StatusAccepted, again.Code)
	assert.Equal(t, first.Body.String(), again.Body.String())
	assert.Equal(t, "true", again.Header().Get("X-Idempotency-Key-Used"))
	assert.Equal(t, 1, calls)

	post("")
	post("k2")
	assert.Equal(t, 3, calls)
}

func TestIdempotencySkipsFailures(t *testing.T) {
	calls := 0
	r := gin.New()
	r.POST("/calls", IdempotencyMiddleware(newMemRedis()), func(c *gin.Context) {
		calls++
		c.Status(http.StatusBadGateway)
	})
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/calls", nil)
		req.Header.Set(idempotencyKeyHeader, "same")
		serve(r, req)
	}
	assert.Equal(t, 2, calls)
}

func TestTraceMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TraceMiddleware(), AccessLog(zap.NewNop()))
	r.GET("/t", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("trace_id")) })

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set(traceIDHeader, "abc")
	w := serve(r, req)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "abc", w.Header().Get(traceIDHeader))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}
