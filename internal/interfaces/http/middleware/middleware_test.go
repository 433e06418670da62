package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/domain/user"
	"github.com/your-org/marketplace-api/internal/pkg/auth"
	"github.com/your-org/marketplace-api/internal/pkg/logger"
	"github.com/your-org/marketplace-api/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type lookup map[uint]*user.User

func (l lookup) GetActiveUser(_ context.Context, id uint) (*user.User, error) {
	u, ok := l[id]
	if !ok || !u.IsActive {
		return nil, errors.New("not found")
	}
	return u, nil
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testutil.Config()
	jwt := auth.NewJWTManager(cfg)
	users := lookup{
		1: {ID: 1, Email: "buyer@shop.test", Role: user.RoleBuyer, IsActive: true},
		2: {ID: 2, Email: "seller@shop.test", Role: user.RoleSeller, IsActive: true},
		3: {ID: 3, Email: "gone@shop.test", Role: user.RoleBuyer, IsActive: false},
		4: {ID: 4, Email: "admin@shop.test", Role: user.RoleAdmin, IsActive: true},
	}

	r := gin.New()
	authed := r.Group("/", AuthMiddleware(jwt, users))
	authed.GET("/me", func(c *gin.Context) {
		id, _ := GetUserIDFromContext(c)
		role, _ := GetUserRoleFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})
	authed.GET("/seller", RequireRoles(user.RoleSeller), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token := func(id uint, role user.Role) string {
		pair, err := jwt.GenerateTokenPair(id, users[id].Email, string(role))
		require.NoError(t, err)
		return pair.AccessToken
	}
	get := func(path, bearer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		return serve(r, req)
	}

	assert.Equal(t, http.StatusUnauthorized, get("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/me", "garbage").Code)

	w := get("/me", token(1, user.RoleBuyer))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"role":"buyer"}`, w.Body.String())

	// a stale role claim does not grant access; the stored role decides
	assert.Equal(t, http.StatusForbidden, get("/seller", token(1, user.RoleSeller)).Code)
	assert.Equal(t, http.StatusOK, get("/seller", token(2, user.RoleSeller)).Code)
	assert.Equal(t, http.StatusOK, get("/seller", token(4, user.RoleAdmin)).Code)

	assert.Equal(t, http.StatusUnauthorized, get("/me", token(3, user.RoleBuyer)).Code)

	refresh, err := jwt.GenerateTokenPair(1, "buyer@shop.test", "buyer")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get("/me", refresh.RefreshToken).Code)
}

func TestRequestIDAndLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(logger.Discard()), Recovery(logger.Discard()))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", serve(r, req).Header().Get(RequestIDHeader))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCORS(t *testing.T) {
	cfg := testutil.Config()
	cfg.Security.CORSAllowedOrigins = []string{"http://localhost:3000", "*.shop.test"}

	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.shop.test")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.shop.test", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.test")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimitAndSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(), BodyLimit(8))
	r.POST("/x", func(c *gin.Context) {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":"0123456789"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(time.Second))
	r.GET("/x", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func limitedRouter(rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testutil.Config()
	cfg.Security.RateLimitPerMinute = 3
	rl := NewRateLimiter(cfg, client, logger.Discard())
	fixed := time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	r := limitedRouter(rl)

	for i := 0; i < 3; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// next window
	fixed = fixed.Add(time.Minute)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func TestRateLimiter_FallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	cfg := testutil.Config()
	cfg.Security.RateLimitPerMinute = 60
	cfg.Security.RateLimitBurst = 2
	rl := NewRateLimiter(cfg, client, logger.Discard())
	fixed := time.Now()
	rl.now = func() time.Time { return fixed }
	r := limitedRouter(rl)

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}
