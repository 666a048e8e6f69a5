package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-seat-booking/internal/config"
)

// takeToken refills the bucket for the elapsed whole intervals, then takes
// one token if any is left.  Returns {allowed, remaining, retry_after_ms}.
var takeToken = redis.NewScript(`
local now, cap, refill, every, ttl =
	tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local st = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens, ts = tonumber(st[1]), tonumber(st[2])
if tokens == nil or ts == nil then
	tokens, ts = cap, now
end
if every > 0 and refill > 0 and now > ts then
	local n = math.floor((now - ts) / every)
	if n > 0 then
		tokens = math.min(cap, tokens + n * refill)
		ts = ts + n * every
	end
end
local wait = 0
local ok = 0
if tokens > 0 then
	ok, tokens = 1, tokens - 1
else
	wait = math.max(0, every - (now - ts))
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

// bucketDecision is the outcome of one takeToken call.
type bucketDecision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// NewTokenBucket limits how often a caller may try to hold seats.  Bucket
// state lives in Redis so the limit holds across instances.  A disabled
// limiter, a nil client and Redis errors all let the request through:
// losing the limiter must never block bookings.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *logrus.Entry) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL/time.Second),
			).Result()
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("rate limiter unavailable")
				return next(c)
			}
			d, ok := parseDecision(res)
			if !ok {
				log.WithField("key", key).Warnf("unexpected limiter reply %#v", res)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if d.Allowed {
				return next(c)
			}

			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.WithFields(logrus.Fields{"key": key, "retry_after": d.RetryAfter}).Info("booking attempt throttled")
			}
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       "too many booking attempts",
				"code":        "RATE_LIMITED",
				"retry_after": secs,
			})
		}
	}
}

func parseDecision(v any) (bucketDecision, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return bucketDecision{}, false
	}
	return bucketDecision{
		Allowed:    asInt64(arr[0]) == 1,
		Remaining:  asInt64(arr[1]),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, true
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

// buildRateKey names the bucket for the request.  Unknown strategies fall
// back to ip+user+route, the narrowest key.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := userID(c)

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", c.Request().Method+" "+c.Path())
	}
	return strings.Join(parts, ":")
}
