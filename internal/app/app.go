// Package app wires configuration, storage, services and transport into a
// runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/database"
	"github.com/iliyamo/cinema-seat-booking/internal/handler"
	"github.com/iliyamo/cinema-seat-booking/internal/logging"
	"github.com/iliyamo/cinema-seat-booking/internal/metrics"
	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/router"
	"github.com/iliyamo/cinema-seat-booking/internal/service"
)

// App is the booking HTTP service plus, optionally, the booking.confirmed
// consumer.
type App struct {
	cfg      config.Config
	log      *logrus.Entry
	db       *sqlx.DB
	rdb      *redis.Client
	echo     *echo.Echo
	consumer *queue.Consumer
}

// New opens the database (migrating it first when MIGRATE_ON_START is
// set) and builds the App on top of it.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*App, error) {
	if err := cfg.RequireJWT(); err != nil {
		return nil, err
	}
	db, err := database.Open(database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	rl := config.LoadRateLimitConfig()
	var rdb *redis.Client
	if rl.Enabled {
		rdb = config.NewRedisClient(ctx, logging.Component(logger, "redis"))
	}
	return build(cfg, logger, db, rl, rdb), nil
}

// NewWithDB builds the App over an existing handle with rate limiting
// switched off.
func NewWithDB(cfg config.Config, logger *logrus.Logger, db *sqlx.DB) *App {
	return build(cfg, logger, db, config.RateLimitConfig{}, nil)
}

func build(cfg config.Config, logger *logrus.Logger, db *sqlx.DB, rl config.RateLimitConfig, rdb *redis.Client) *App {
	a := &App{
		cfg: cfg,
		log: logging.Component(logger, "app"),
		db:  db,
		rdb: rdb,
		consumer: queue.NewConsumer(cfg.AMQPURL, cfg.BookingLogDir,
			logging.Component(logger, "booking-consumer")),
	}
	a.echo = a.buildServer(logger, rl)
	return a
}

func (a *App) buildServer(logger *logrus.Logger, rl config.RateLimitConfig) *echo.Echo {
	m := metrics.New()
	clock := func() time.Time { return time.Now().UTC() }

	bookings := service.NewBookingService(a.db,
		service.WithClock(clock),
		service.WithIsolation(a.cfg.TxIsolation),
		service.WithRetry(uint64(max(a.cfg.TxAttempts, 1)), 20*time.Millisecond),
		service.WithPublisher(queue.NewPublisher(a.cfg.AMQPURL, logging.Component(logger, "publisher"))),
		service.WithMetrics(m),
		service.WithLogger(logging.Component(logger, "booking")),
	)
	queries := service.NewBookingQueryService(a.db, clock)
	seats := service.NewSeatService(a.db, clock)

	httpLog := logging.Component(logger, "http")
	return router.New(router.Deps{
		Bookings:  handler.NewBookingHandler(bookings, queries, httpLog),
		Seats:     handler.NewSeatHandler(seats, httpLog),
		Health:    handler.Health(a.db),
		Metrics:   m.Handler(),
		JWTSecret: a.cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(rl, a.rdb, logging.Component(logger, "ratelimit")),
	}, middleware.RequestLogger(httpLog))
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler { return a.echo }

// Run serves HTTP, and consumes booking.confirmed events when
// withConsumer is set, until ctx is cancelled.  In-flight requests get
// ShutdownTimeout to finish.
func (a *App) Run(ctx context.Context, withConsumer bool) error {
	g, ctx := errgroup.WithContext(ctx)

	addr := ":" + a.cfg.Port
	g.Go(func() error {
		a.log.WithFields(logrus.Fields{"addr": addr, "env": a.cfg.Env}).Info("server starting")
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if withConsumer {
		g.Go(func() error {
			return a.consumer.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		a.log.Info("shutting down")
		return a.echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
