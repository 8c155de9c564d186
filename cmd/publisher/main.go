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
	"github.com/Guizzs26/sample-outreach/internal/publisher"
	"github.com/Guizzs26/sample-outreach/pkg/infra"
	_ "github.com/Guizzs26/sample-outreach/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg, "publisher.log")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postgres, err := db.NewPostgresRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Fatal error connecting to Postgres", "error", err)
		os.Exit(1)
	}
	defer postgres.Close()

	go startObservabilityServer(cfg.MetricsPort, logger)

	slog.Info("🚀 Schedule Publisher started",
		"pid", os.Getpid(),
		"region", cfg.SupportedRegion,
		"batch_size", cfg.BatchSize,
		"poll_interval", cfg.PollInterval,
	)

	runMainLoop(ctx, postgres, cfg)
}

func runMainLoop(ctx context.Context, repo *db.PostgresRepository, cfg *config.Config) {
	topology := broker.Topology{
		Exchange:         cfg.Exchange,
		Queue:            cfg.Queue,
		RoutingKeyPrefix: cfg.RoutingKeyPrefix,
	}
	backoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)

	var rabbitmq *broker.RabbitMQClient
	var pub *publisher.Publisher

	for {
		select {
		case <-ctx.Done():
			slog.Info("👋 Shutting down main loop...")
			if rabbitmq != nil {
				rabbitmq.Close()
			}
			slog.Info("✅ Shutdown complete")
			return
		default:
			if rabbitmq == nil || !rabbitmq.IsHealthy() {
				if rabbitmq != nil {
					rabbitmq.Close()
				}

				newRabbit, err := broker.NewRabbitMQClient(cfg.RabbitMQURL, topology, slog.Default())
				if err != nil {
					wait := backoff.Next()
					slog.Error("RabbitMQ link failure, retrying", "wait", wait, "error", err)

					select {
					case <-time.After(wait):
						continue
					case <-ctx.Done():
						return
					}
				}

				slog.Info("RabbitMQ link established 🚀")
				rabbitmq = newRabbit
				backoff.Reset()
				pub = publisher.NewPublisher(repo, repo, rabbitmq, publisher.Options{
					SupportedRegion: cfg.SupportedRegion,
					LinkTemplate:    cfg.LinkTemplate,
					BatchSize:       cfg.BatchSize,
				}, slog.Default())
			}

			processed, err := pub.ProcessDueOnce(ctx)
			if err != nil {
				wait := backoff.Next()
				slog.Error("Due-schedule cycle error", "retry_in", wait, "processed", processed, "error", err)

				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					return
				}
			}

			backoff.Reset()

			// A full batch means there is likely more backlog; poll again now
			if processed >= cfg.BatchSize {
				continue
			}

			select {
			case <-time.After(cfg.PollInterval):
				continue
			case <-ctx.Done():
				return
			}
		}
	}
}

func startObservabilityServer(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("PUBLISHER ALIVE"))
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
