// Command server runs the audit workflow engine: the document store with
// its sync layer, the workflow/finding/notification services, and the HTTP
// and websocket surfaces. Business logic lives in the internal packages;
// main only wires dependencies and owns the process lifecycle.
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
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	audithandler "auditflow/internal/audit/handler"
	auditmetrics "auditflow/internal/audit/metrics"
	auditservice "auditflow/internal/audit/service"
	"auditflow/internal/directory"
	dirhandler "auditflow/internal/directory/handler"
	"auditflow/internal/notification"
	notifhandler "auditflow/internal/notification/handler"
	"auditflow/internal/platform/config"
	"auditflow/internal/platform/httpserver"
	"auditflow/internal/platform/jwttoken"
	"auditflow/internal/platform/logger"
	"auditflow/internal/platform/middleware"
	platformredis "auditflow/internal/platform/redis"
	"auditflow/internal/push"
	"auditflow/internal/syncstore"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Authoritative document store: postgres when configured, in-process
	// otherwise (demo mode).
	var store syncstore.Store
	if cfg.PostgresURL != "" {
		pg, err := syncstore.OpenPostgres(cfg.PostgresURL)
		if err != nil {
			log.Error("postgres store unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
		log.Info("using postgres document store")
	} else {
		store = syncstore.NewMemoryStore()
		log.Info("using in-process document store")
	}

	mirror := syncstore.NewMirror(store)
	if err := mirror.Start(ctx); err != nil {
		log.Error("mirror start failed", "error", err)
		os.Exit(1)
	}
	defer mirror.Stop()
	readyCtx, cancelReady := context.WithTimeout(ctx, 30*time.Second)
	if err := mirror.WaitReady(readyCtx); err != nil {
		cancelReady()
		log.Error("mirror snapshot did not complete", "error", err)
		os.Exit(1)
	}
	cancelReady()

	// Non-authoritative fallback cache, mirrored from the change stream.
	var cache *syncstore.FallbackCache
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = syncstore.NewFallbackCache(redisClient.Client, log)
		if err := cache.Run(ctx, store); err != nil {
			log.Error("fallback cache start failed", "error", err)
			os.Exit(1)
		}
		log.Info("fallback cache enabled")
	}

	sync := syncstore.NewLayer(store, mirror, cache)

	dir := directory.NewService(sync)
	if cfg.DemoSeed {
		if err := directory.SeedDemo(ctx, dir); err != nil {
			log.Error("demo seed failed", "error", err)
			os.Exit(1)
		}
		log.Info("demo directory seeded")
	}

	// Notification pipeline: dispatcher → outbox → worker → store (+ Kafka).
	outbox := notification.NewOutbox(0, log)
	var sink notification.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := notification.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka sink unavailable", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("kafka notification sink enabled", "topic", cfg.Kafka.Topic)
	}
	worker := notification.NewWorker(outbox, sync, sink, log)
	dispatcher := notification.NewDispatcher(dir, outbox, log)

	engineMetrics := auditmetrics.New()
	workflow := auditservice.NewWorkflow(sync, dir, dispatcher, engineMetrics, log)
	findings := auditservice.NewFindings(sync, dir, dispatcher, engineMetrics, log)
	notifications := notification.NewService(sync)
	tokens := jwttoken.NewService(cfg.JWTSigningKey, "auditflow")

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","remote_store":"` + string(sync.Breaker().State()) + `"}`))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		dirhandler.NewAuth(dir, tokens, log).Register(r)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.TokenFromQuery)
		r.Use(middleware.RequireAuth(tokens, log))
		push.New(store, log).Register(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			audithandler.New(workflow, findings, log).Register(r)
			notifhandler.New(notifications, log).Register(r)
			dirhandler.New(dir, log).Register(r)
		})
	})

	sweeper := directory.NewPresenceSweeper(dir, sync, cfg.PresenceTTL, log)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.PresenceSweepSpec, sweeper.Run(ctx)); err != nil {
		log.Error("invalid presence sweep spec", "spec", cfg.PresenceSweepSpec, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		worker.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		log.Info("starting auditflow", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
