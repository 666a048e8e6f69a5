package config

// Redis backs the distributed rate limiter.  The client parameters are
// loaded from environment variables.  If the server cannot be reached at
// startup NewRedisClient returns nil and the limiter is disabled.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisOptions builds client options from the environment:
//
//	REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//	REDIS_ADDR – host:port shorthand, used when host/port are not both set
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number (default 0)
//	REDIS_TLS – enable TLS when "true" or "1"
func RedisOptions() *redis.Options {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	addr := os.Getenv("REDIS_ADDR")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	var tlsConf *tls.Config
	if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &redis.Options{
		Addr:      addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        dbNum,
		TLSConfig: tlsConf,
	}
}

// NewRedisClient connects using RedisOptions and pings the server with a
// short timeout.  It returns nil, after logging why, when Redis is
// unavailable.
func NewRedisClient(ctx context.Context, log *logrus.Entry) *redis.Client {
	opts := RedisOptions()
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", opts.Addr).Warn("redis unavailable; rate limiting disabled")
		_ = client.Close()
		return nil
	}
	return client
}
