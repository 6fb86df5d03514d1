// Command recruit-feed serves the paginated job and resume feeds of the
// recruiting API over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/recruit-client/internal/config"
	"github.com/Sternrassler/recruit-client/pkg/client"
	"github.com/Sternrassler/recruit-client/pkg/logging"
	"github.com/Sternrassler/recruit-client/pkg/recruit"
	"github.com/Sternrassler/recruit-client/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("recruit-feed failed")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Output:  os.Stderr,
		Service: "recruit-feed",
	})
	logger := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		redisClient *redis.Client
		store       session.Store = session.NewMemoryStore()
	)
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		store = session.NewRedisStore(redisClient, cfg.Session.TTL)
	}

	apiClient, err := client.New(client.Config{
		BaseURL:        cfg.API.BaseURL,
		UserAgent:      cfg.API.UserAgent,
		SessionID:      cfg.API.SessionID,
		Timeout:        cfg.API.Timeout,
		Redis:          redisClient,
		CacheRetention: cfg.API.CacheRetention,
		RateLimit:      cfg.API.RateLimit,
		Burst:          cfg.API.Burst,
		MaxRetries:     cfg.API.MaxRetries,
		InitialBackoff: cfg.API.InitialBackoff,
		MaxBackoff:     cfg.API.MaxBackoff,
	})
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}
	defer apiClient.Close()

	api := recruit.NewAPI(apiClient)
	srv := newServer(api, recruit.NewIdentityResolver(api, store), recruit.ListOptions{
		PageSize:     cfg.Feeds.PageSize,
		CountLimit:   cfg.Feeds.CountLimit,
		FetchTimeout: cfg.Feeds.FetchTimeout,
	}, redisClient)
	defer srv.close()

	srv.start(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("api", cfg.API.BaseURL).
			Msg("Starting recruit feed server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
