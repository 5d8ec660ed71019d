// Command kafka-relay reads log events published by the kafka sink and posts
// each one to the Datadog intake.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/passwordkeyorg/smtp2datadog/internal/api"
	"github.com/passwordkeyorg/smtp2datadog/internal/config"
	"github.com/passwordkeyorg/smtp2datadog/internal/datadog"
	"github.com/passwordkeyorg/smtp2datadog/internal/kafka"
	"github.com/passwordkeyorg/smtp2datadog/internal/metrics"
)

var errNoBrokers = errors.New("KAFKA_BROKERS is required")

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath, *envFile)
	if err == nil && len(cfg.Sink.Kafka.Brokers) == 0 {
		err = errNoBrokers
	}
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("kafka-relay config invalid", "err", err)
		os.Exit(1)
	}

	level, _ := cfg.Logging.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	client, err := datadog.New(datadog.Config{
		APIKey:  cfg.Datadog.APIKey,
		Site:    cfg.Datadog.Site,
		URL:     cfg.Datadog.URL,
		Timeout: cfg.Datadog.Timeout,
	})
	if err != nil {
		logger.Error("datadog client init failed", "err", err)
		os.Exit(1)
	}

	mreg := metrics.New()
	if cfg.Metrics.Listen != "" {
		if err := metrics.RequireLocalhost(cfg.Metrics.Listen); err != nil {
			logger.Error("invalid METRICS_LISTEN", "addr", cfg.Metrics.Listen, "err", err)
			os.Exit(1)
		}
		h := api.New(api.Deps{
			Logger:         logger,
			Metrics:        &mreg.API,
			MetricsHandler: mreg.Handler(),
			Service:        cfg.Datadog.Service,
			Env:            cfg.Datadog.Env,
			Sink:           "kafka-relay",
		})
		go func() {
			if err := api.ListenAndServe(ctx, cfg.Metrics.Listen, h, logger); err != nil {
				logger.Error("admin server error", "err", err)
			}
		}()
	}

	k := cfg.Sink.Kafka
	relay := kafka.NewRelay(k.Brokers, k.Topic, k.Group, client, logger, &mreg.Relay)
	defer func() { _ = relay.Close() }()

	logger.Info("kafka-relay started", "brokers", k.Brokers, "topic", k.Topic, "group", k.Group, "intake", client.URL())
	if err := relay.Run(ctx); err != nil {
		logger.Error("kafka-relay stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown")
}
