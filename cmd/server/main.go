// Command server runs the group chat API together with its background
// summarization workers and the ledger watchdog.
//
// @title       Group Chat Assistant API
// @version     1.0
// @description Multi-user group chat with an LM assistant: context selection, rolling summaries and per-user token quotas.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-groupchat-backend/internal/config"
	"github.com/tbourn/go-groupchat-backend/internal/events"
	httpapi "github.com/tbourn/go-groupchat-backend/internal/http"
	"github.com/tbourn/go-groupchat-backend/internal/llm"
	"github.com/tbourn/go-groupchat-backend/internal/observability"
	"github.com/tbourn/go-groupchat-backend/internal/repo"
	"github.com/tbourn/go-groupchat-backend/internal/services"
	"github.com/tbourn/go-groupchat-backend/internal/sysutil"
	"github.com/tbourn/go-groupchat-backend/internal/worker"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file, using environment")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger := sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(repo.Options{
		Driver:       cfg.DB.Driver,
		Path:         cfg.DB.Path,
		DSN:          cfg.DB.DSN,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		Tracing:      cfg.OTEL.Enabled,
	})
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info().Str("driver", cfg.DB.Driver).Msg("database ready")

	var provider llm.Provider = llm.Disabled{}
	if cfg.LLM.APIKey != "" {
		lc, err := llm.NewOpenAI(llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
		if err != nil {
			return err
		}
		provider = lc
		logger.Info().Str("model", cfg.LLM.Model).Msg("assistant enabled")
	} else {
		logger.Warn().Msg("LLM_API_KEY not set, assistant replies are disabled")
	}

	notifier := events.Multi{events.Log{Logger: logger.With().Str("component", "events").Logger()}}
	if cfg.RedisAddr != "" {
		pub, client, err := events.NewRedis(ctx, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, events are logged only")
		} else {
			defer client.Close()
			notifier = append(notifier, pub)
		}
	}

	st := services.NewStack(db, cfg, provider, notifier, logger)
	pool := worker.NewPool(st.Orchestrator, logger.With().Str("component", "worker").Logger(),
		cfg.Worker.Concurrency, cfg.Worker.PollInterval)
	st.Orchestrator.Dispatcher = pool
	watchdog := &worker.Watchdog{
		Ledger: st.Ledger,
		Jobs:   st.Orchestrator,
		Purge: func(ctx context.Context) (int64, error) {
			return repo.PurgeIdempotency(ctx, db, time.Now().UTC())
		},
		Interval: cfg.Worker.WatchdogInterval,
		Log:      logger.With().Str("component", "watchdog").Logger(),
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, st, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return watchdog.Run(gctx) })
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
