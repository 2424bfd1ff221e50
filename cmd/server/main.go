package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/podium-gg/podium/internal/adapters/http/api"
	"github.com/podium-gg/podium/internal/adapters/kafka"
	"github.com/podium-gg/podium/internal/adapters/redispub"
	"github.com/podium-gg/podium/internal/adapters/repository"
	"github.com/podium-gg/podium/internal/adapters/ws"
	"github.com/podium-gg/podium/internal/anticheat"
	app "github.com/podium-gg/podium/internal/app"
	"github.com/podium-gg/podium/internal/config"
	"github.com/podium-gg/podium/internal/core/notify"
	"github.com/podium-gg/podium/internal/scorelog"
	"github.com/podium-gg/podium/pkg/logger"
	"github.com/podium-gg/podium/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
		_ = logger.SetLevelString("info")
	}

	// Rank change sinks: in-process WebSocket hub, plus Redis pub/sub for
	// other instances when configured.
	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	sinks := []notify.Sink{hub}
	if cfg.Redis.Addr != "" {
		pub, err := redispub.New(ctx, redispub.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			os.Stderr.WriteString("failed to connect to redis: " + err.Error() + "\n")
			return
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	// Durable score journal when Postgres is configured.
	var journal scorelog.Log = scorelog.Nop{}
	if cfg.Postgres.DSN != "" {
		pg, err := scorelog.NewPostgres(ctx, scorelog.PostgresConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
		}, log.Named("scorelog"))
		if err != nil {
			os.Stderr.WriteString("failed to connect to postgres: " + err.Error() + "\n")
			return
		}
		journal = pg
	}

	updatePolicy := repository.BestWins
	if !cfg.BestScoreWins {
		updatePolicy = repository.LatestWins
	}
	failMode := anticheat.FailClosed
	if cfg.AntiCheatFailMode == "open" {
		failMode = anticheat.FailOpen
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithMaxBoards(cfg.MaxBoards),
		app.WithMaxScore(cfg.MaxScore),
		app.WithUpdatePolicy(updatePolicy),
		app.WithRateLimit(cfg.RateLimitPerHour, time.Hour),
		app.WithRetention(cfg.Retention()),
		app.WithLocation(cfg.Location()),
		app.WithWindows(cfg.WindowKinds()...),
		app.WithAntiCheat(
			anticheat.NewThresholdPolicy(anticheat.WithRejectAbove(cfg.AntiCheatRejectAbove)),
			cfg.AntiCheatTimeout(),
			failMode,
		),
		app.WithSinks(sinks...),
		app.WithScoreLog(journal),
		app.WithMaxPageLimit(cfg.MaxPageLimit),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Board lifecycle sweeps. The engine owns no timers; this loop does.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				svc.Sweep(ctx, now)
			}
		}
	}()

	// Kafka ingest when configured.
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafka.NewConsumer(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, svc)
		if err != nil {
			os.Stderr.WriteString("failed to create kafka consumer: " + err.Error() + "\n")
			return
		}
		if err := consumer.Start(ctx); err != nil {
			os.Stderr.WriteString("failed to start kafka consumer: " + err.Error() + "\n")
			return
		}
		defer func() {
			if err := consumer.Stop(); err != nil {
				log.Error(ctx, "stopping kafka consumer", logger.Error(err))
			}
		}()
	}

	r := chi.NewRouter()
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/ws", hub.ServeHTTP)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}
