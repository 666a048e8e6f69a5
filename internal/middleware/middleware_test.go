package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/logging"
	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

const secret = "test-secret"

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newProtected() *echo.Echo {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret), RequireRole("CUSTOMER"))
	g.GET("/whoami", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get(UserIDKey), "role": c.Get(RoleKey)})
	})
	return e
}

func TestJWTAuth(t *testing.T) {
	e := newProtected()

	tok, err := utils.NewAccessToken(secret, 42, "CUSTOMER", 5)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":42,"role":"CUSTOMER"}`, rec.Body.String())
}

func TestJWTAuth_Rejects(t *testing.T) {
	e := newProtected()

	wrongSecret, err := utils.NewAccessToken("other", 42, "CUSTOMER", 5)
	require.NoError(t, err)
	expired, err := utils.NewAccessToken(secret, 42, "CUSTOMER", -5)
	require.NoError(t, err)
	owner, err := utils.NewAccessToken(secret, 42, "OWNER", 5)
	require.NoError(t, err)

	cases := map[string]struct {
		header string
		status int
	}{
		"no header":    {"", http.StatusUnauthorized},
		"not bearer":   {"Basic abc", http.StatusUnauthorized},
		"garbage":      {"Bearer abc.def.ghi", http.StatusUnauthorized},
		"wrong secret": {"Bearer " + wrongSecret.Token, http.StatusUnauthorized},
		"expired":      {"Bearer " + expired.Token, http.StatusUnauthorized},
		"wrong role":   {"Bearer " + owner.Token, http.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			assert.Equal(t, tc.status, serve(e, req).Code)
		})
	}
}

func TestSubjectID(t *testing.T) {
	id, ok := subjectID(float64(7))
	assert.True(t, ok)
	assert.Equal(t, uint64(7), id)

	id, ok = subjectID("12")
	assert.True(t, ok)
	assert.Equal(t, uint64(12), id)

	for _, v := range []interface{}{nil, float64(0), float64(-1), 1.5, "abc", "0"} {
		_, ok := subjectID(v)
		assert.False(t, ok, "%v", v)
	}
}

func TestRequestLogger(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger(logging.Discard()))
	e.GET("/ok", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(RequestIDKey).(string))
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream")
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := serve(e, req)
	assert.Equal(t, "req-1", rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestTokenBucketWithoutRedisPassesThrough(t *testing.T) {
	e := echo.New()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	e.POST("/v1/bookings", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		NewTokenBucket(cfg, nil, logging.Discard()))

	for i := 0; i < 3; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodPost, "/v1/bookings", nil))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	assert.Equal(t, "rl:ip:10.0.0.1:user:anon:route:POST /v1/bookings", buildRateKey(cfg, c))

	c.Set(UserIDKey, uint64(9))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:9", buildRateKey(cfg, c))
}

func TestParseDecision(t *testing.T) {
	d, ok := parseDecision([]any{int64(0), int64(0), int64(2500)})
	require.True(t, ok)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2500*time.Millisecond, d.RetryAfter)

	d, ok = parseDecision([]any{int64(1), int64(19), int64(0)})
	require.True(t, ok)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(19), d.Remaining)

	_, ok = parseDecision("OK")
	assert.False(t, ok)
}
