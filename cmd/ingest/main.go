package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Guizzs26/sample-outreach/internal/broker"
	"github.com/Guizzs26/sample-outreach/internal/config"
	"github.com/Guizzs26/sample-outreach/internal/db"
	"github.com/Guizzs26/sample-outreach/internal/ingest"
	"github.com/Guizzs26/sample-outreach/internal/scheduler"
	"github.com/Guizzs26/sample-outreach/pkg/infra"
	_ "github.com/Guizzs26/sample-outreach/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg, "ingest.log")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("🔥 Crawl ingest initializing...", "queue", cfg.IngestQueue)

	postgres, err := db.NewPostgresRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("CRITICAL: Postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer postgres.Close()

	reconciler := scheduler.NewReconciler(postgres, postgres, logger)
	service := ingest.NewService(postgres, reconciler, cfg.SupportedRegion, logger)

	topology := broker.Topology{
		Exchange:         cfg.Exchange,
		Queue:            cfg.IngestQueue,
		RoutingKeyPrefix: cfg.IngestRoutingKey,
	}
	consumer := broker.NewRabbitMQConsumer(cfg.RabbitMQURL, topology, broker.AtLeastOnce, broker.ConsumerOptions{
		PrefetchCount:        cfg.PrefetchCount,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, service, logger)

	go startObservabilityServer(cfg.MetricsPort, logger)

	logger.Info("✅ Listening for crawl batches...")

	if err := consumer.Listen(ctx); err != nil {
		logger.Error("⚠️ Consumer terminated", "error", err)
		os.Exit(1)
	}

	logger.Info("✅ Shutdown complete")
}

func startObservabilityServer(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("INGEST ALIVE"))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("📊 Observability server online", "url", "http://localhost:"+port+"/metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Observability server failed", "error", err)
	}
}
