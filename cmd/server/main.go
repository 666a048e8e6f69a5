package main // Entry point package

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/cinema-seat-booking/internal/app"
	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/database"
	"github.com/iliyamo/cinema-seat-booking/internal/logging"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cinema-booking",
		Short:         "Seat booking service for cinema sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newConsumeCommand())
	cmd.AddCommand(newTokenCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	var withConsumer bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the booking.confirmed consumer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Env, cfg.LogLevel)

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.WithError(err).Warn("close failed")
				}
			}()
			return a.Run(cmd.Context(), withConsumer)
		},
	}
	cmd.Flags().BoolVar(&withConsumer, "consumer", true, "Also consume booking.confirmed events in this process")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Env, cfg.LogLevel)

			db, err := database.Open(database.Options{
				User: cfg.DBUser,
				Pass: cfg.DBPass,
				Host: cfg.DBHost,
				Port: cfg.DBPort,
				Name: cfg.DBName,
			})
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}

func newConsumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Consume booking.confirmed events into the booking log",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnvFile()
			logger := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
			q := config.LoadQueueConfig()
			c := queue.NewConsumer(q.AMQPURL, q.BookingLogDir, logging.Component(logger, "booking-consumer"))
			return c.Run(cmd.Context())
		},
	}
}

func newTokenCommand() *cobra.Command {
	var (
		userID uint64
		role   string
		ttlMin int
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnvFile()
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("missing required env var: JWT_SECRET")
			}
			tok, err := utils.NewAccessToken(secret, userID, role, ttlMin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "User ID to put in the sub claim")
	cmd.Flags().StringVar(&role, "role", "CUSTOMER", "Role claim")
	cmd.Flags().IntVar(&ttlMin, "ttl", 60, "Lifetime in minutes")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
