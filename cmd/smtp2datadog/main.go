package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/passwordkeyorg/smtp2datadog/internal/api"
	"github.com/passwordkeyorg/smtp2datadog/internal/config"
	"github.com/passwordkeyorg/smtp2datadog/internal/datadog"
	"github.com/passwordkeyorg/smtp2datadog/internal/kafka"
	"github.com/passwordkeyorg/smtp2datadog/internal/logevent"
	"github.com/passwordkeyorg/smtp2datadog/internal/metrics"
	"github.com/passwordkeyorg/smtp2datadog/internal/smtp"
	"github.com/passwordkeyorg/smtp2datadog/internal/stdout"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *envFile, os.Stdout); err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("smtp2datadog stopped", "err", err)
		os.Exit(1)
	}
}

// run loads the configuration and serves until ctx is cancelled. Every
// configuration error is returned before the SMTP port is bound.
func run(ctx context.Context, configPath, envFile string, out io.Writer) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	level, _ := cfg.Logging.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))

	if cfg.Metrics.Listen != "" {
		if err := metrics.RequireLocalhost(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("invalid METRICS_LISTEN %q: %w", cfg.Metrics.Listen, err)
		}
	}

	sink, closeSink, err := newSink(cfg, out)
	if err != nil {
		return err
	}
	defer closeSink()

	mreg := metrics.New()
	started := time.Now()

	if cfg.Metrics.Listen != "" {
		h := api.New(api.Deps{
			Logger:         logger,
			Metrics:        &mreg.API,
			MetricsHandler: mreg.Handler(),
			Service:        cfg.Datadog.Service,
			Env:            cfg.Datadog.Env,
			Sink:           sink.Name(),
			SMTPAddr:       cfg.ListenAddr(),
			Started:        started,
		})
		go func() {
			if err := api.ListenAndServe(ctx, cfg.Metrics.Listen, h, logger); err != nil {
				logger.Error("admin server error", "err", err)
			}
		}()
	}

	logger.Info("starting smtp2datadog",
		"service", cfg.Datadog.Service,
		"env", cfg.Datadog.Env,
		"sink", sink.Name(),
		"smtp_addr", cfg.ListenAddr(),
	)

	err = smtp.Run(ctx, smtp.Config{
		ListenAddr:   cfg.ListenAddr(),
		Domain:       cfg.SMTP.Domain,
		MaxMsgBytes:  cfg.SMTP.MaxMsgBytes,
		MaxRcptCount: cfg.SMTP.MaxRcptCount,
		ReadTimeout:  cfg.SMTP.ReadTimeout,
		WriteTimeout: cfg.SMTP.WriteTimeout,
		MaxConns:     cfg.SMTP.MaxConns,
	}, smtp.Deps{Logger: logger, Sink: sink, Metrics: &mreg.SMTP})
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func newSink(cfg config.Config, out io.Writer) (smtp.Sink, func(), error) {
	meta := logevent.Meta{
		Service:  cfg.Datadog.Service,
		Env:      cfg.Datadog.Env,
		Hostname: cfg.Datadog.Hostname,
		Tags:     cfg.Datadog.Tags,
	}
	noop := func() {}

	switch cfg.Sink.Type {
	case config.SinkKafka:
		s := kafka.NewSink(cfg.Sink.Kafka.Brokers, cfg.Sink.Kafka.Topic, meta)
		return s, func() { _ = s.Close() }, nil
	case config.SinkStdout:
		return stdout.NewWithWriter(out, meta), noop, nil
	default:
		c, err := datadog.New(datadog.Config{
			APIKey:   cfg.Datadog.APIKey,
			Site:     cfg.Datadog.Site,
			URL:      cfg.Datadog.URL,
			Service:  meta.Service,
			Env:      meta.Env,
			Hostname: meta.Hostname,
			Tags:     meta.Tags,
			Timeout:  cfg.Datadog.Timeout,
		})
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	}
}
