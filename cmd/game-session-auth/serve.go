package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/wrale/game-session-auth/internal/deviceflow"
	"github.com/wrale/game-session-auth/internal/refreshlock"
)

const (
	shutdownTimeout = 10 * time.Second

	pollLockPrefix = "device-poll:"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("closing Redis connection", "error", err)
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connecting to Redis: %w", err)
	}

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	lockTTL := cfg.lockTTL()
	if lockTTL != cfg.RefreshLockTTL {
		logger.Warn("raising lock TTL to outlast a full token chain",
			"configured", cfg.RefreshLockTTL, "ttl", lockTTL)
	}
	srv := newServer(cfg, logger, svc,
		deviceflow.NewRedisStore(redisClient),
		refreshlock.New(redisClient, lockTTL),
		refreshlock.New(redisClient, lockTTL, refreshlock.WithPrefix(pollLockPrefix)),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "version", Version)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("starting server: %w", err)

	case sig := <-shutdown:
		logger.Info("starting shutdown", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutting down server", "error", err)
			if err := httpServer.Close(); err != nil {
				logger.Error("closing server", "error", err)
			}
		}
		return nil
	}
}
