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
	"github.com/Guizzs26/sample-outreach/internal/dispatcher"
	"github.com/Guizzs26/sample-outreach/pkg/infra"
	_ "github.com/Guizzs26/sample-outreach/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg, "dispatcher.log")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("🔥 Chat dispatcher initializing...",
		"workers", cfg.WorkerCount,
		"accounts", len(cfg.AccountNames),
		"headless", cfg.Headless,
	)

	reporter := dispatcher.NewInnerAPIReporter(dispatcher.InnerAPIConfig{
		BaseURL:      cfg.InnerAPIBaseURL,
		Token:        cfg.InnerAPIToken,
		TokenHeader:  cfg.InnerAPITokenHeader,
		ProgressPath: cfg.InnerAPIProgressPath,
		CreatorPath:  cfg.InnerAPICreatorPath,
	}, logger)

	pool := dispatcher.NewWorkerPool(cfg.WorkerCount, cfg.AccountNames, func(accountName string) dispatcher.ChatSession {
		return dispatcher.NewBrowserSession(dispatcher.SessionConfig{
			AccountName: accountName,
			Headless:    cfg.Headless,
			HomePath:    cfg.HomePath,
			UserDataDir: cfg.UserDataDir,
		}, logger)
	}, reporter, logger)
	pool.Start(ctx)

	handler := dispatcher.NewDispatchHandler(pool, logger)

	topology := broker.Topology{
		Exchange:         cfg.Exchange,
		Queue:            cfg.Queue,
		RoutingKeyPrefix: cfg.RoutingKeyPrefix,
	}
	// At-most-once: a replayed chat conversation is worse than a lost one
	consumer := broker.NewRabbitMQConsumer(cfg.RabbitMQURL, topology, broker.AtMostOnce, broker.ConsumerOptions{
		PrefetchCount:        cfg.PrefetchCount,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, handler, logger)

	go startObservabilityServer(cfg.MetricsPort, logger)

	logger.Info("✅ Listening for dispatch tasks...", "queue", cfg.Queue)

	if err := consumer.Listen(ctx); err != nil {
		logger.Error("⚠️ Consumer terminated", "error", err)
	}

	logger.Info("🛑 Draining worker pool...")
	pool.Close()
	logger.Info("✅ Shutdown complete")
}

func startObservabilityServer(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("DISPATCHER ALIVE"))
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
