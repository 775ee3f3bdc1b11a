package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"provenance/internal/identitytoken"
	"provenance/internal/platform/config"
	"provenance/internal/platform/httpserver"
	"provenance/internal/platform/logger"
	redisplatform "provenance/internal/platform/redis"
	"provenance/internal/registry/handler"
	registrymetrics "provenance/internal/registry/metrics"
	"provenance/internal/registry/notify"
	"provenance/internal/registry/service"
	"provenance/internal/registry/store/memory"
	"provenance/internal/registry/store/postgres"
	"provenance/internal/registry/store/rediscache"
)

const notifyBuffer = 256

// main wires the registry's dependencies and owns the process lifecycle.
// Business rules live in the internal services; everything here is plumbing.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, db, err := buildStores(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize storage", "error", err.Error())
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		stores.Products = rediscache.NewProductCache(stores.Products, redisClient.Client, cfg.Redis.MetadataTTL, log)
		log.Info("product metadata cache enabled")
	}

	sink, closeSink, err := buildSink(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize notification sink", "error", err.Error())
		os.Exit(1)
	}
	defer closeSink()

	// Deliveries run off the request path; the publisher only enqueues.
	inbox := make(chan notify.Event, notifyBuffer)
	worker := notify.NewWorker(sink, inbox, log)
	publisher := notify.NewPublisher(notify.NewChannelSink(inbox))

	m := registrymetrics.New()
	registry := service.NewRegistryService(stores,
		service.WithLogger(log),
		service.WithNotifier(publisher),
		service.WithMetrics(m),
	)
	queries := service.NewQueryService(stores, service.WithLogger(log))

	tokens := identitytoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer)

	router := chi.NewRouter()
	handler.New(registry, queries, log, tokens).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		log.Info("starting provenance registry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("provenance registry stopped")
}

// buildStores selects the durable backend when a DSN is configured and falls
// back to the in-memory ledger otherwise.
func buildStores(ctx context.Context, cfg config.Server) (service.Stores, *sql.DB, error) {
	if cfg.PostgresDSN == "" {
		backend := memory.New()
		return service.Stores{
			Products: backend,
			Trails:   backend,
			Owners:   backend,
			Tx:       backend,
		}, nil, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return service.Stores{}, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return service.Stores{}, nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return service.Stores{}, nil, err
	}

	backend := postgres.New(db)
	return service.Stores{
		Products: backend,
		Trails:   backend,
		Owners:   backend,
		Tx:       postgres.NewTx(db),
	}, db, nil
}

// buildSink picks Kafka when brokers are configured, otherwise logs events.
func buildSink(ctx context.Context, cfg config.Server, log *slog.Logger) (notify.Sink, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return notify.NewLogSink(log), func() {}, nil
	}
	kafkaSink, err := notify.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	log.Info("kafka notification sink enabled", "topic", cfg.Kafka.Topic)
	return kafkaSink, kafkaSink.Close, nil
}
