// Package config loads process configuration from defaults, an optional YAML
// file, an optional .env file and the environment, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by Validate when DATADOG_API_KEY is unset.
var ErrMissingAPIKey = errors.New("DATADOG_API_KEY environment variable is required")

const (
	SinkDatadog = "datadog"
	SinkKafka   = "kafka"
	SinkStdout  = "stdout"
)

type Config struct {
	Datadog DatadogConfig `yaml:"datadog"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Sink    SinkConfig    `yaml:"sink"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type DatadogConfig struct {
	APIKey   string        `yaml:"api_key"`
	Site     string        `yaml:"site"`
	URL      string        `yaml:"url"`
	Service  string        `yaml:"service"`
	Env      string        `yaml:"env"`
	Hostname string        `yaml:"hostname"`
	Tags     []string      `yaml:"tags"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SMTPConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Domain       string        `yaml:"domain"`
	MaxMsgBytes  int64         `yaml:"max_msg_bytes"`
	MaxRcptCount int           `yaml:"max_rcpt_count"`
	MaxConns     int           `yaml:"max_conns"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type SinkConfig struct {
	Type  string      `yaml:"type"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`

	// Group is the consumer group of the relay command.
	Group string `yaml:"group"`
}

type MetricsConfig struct {
	// Listen is the admin address; empty disables the admin server.
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Datadog: DatadogConfig{
			Site:     "datadoghq.com",
			Service:  "smtp2datadog",
			Env:      "production",
			Hostname: "unknown",
			Timeout:  10 * time.Second,
		},
		SMTP: SMTPConfig{
			Host:         "localhost",
			Port:         1025,
			Domain:       "smtp2datadog",
			MaxMsgBytes:  20 * 1024 * 1024,
			MaxRcptCount: 50,
			MaxConns:     2000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Sink: SinkConfig{
			Type:  SinkDatadog,
			Kafka: KafkaConfig{Topic: "smtp2datadog.logs", Group: "smtp2datadog-relay"},
		},
		Metrics: MetricsConfig{Listen: "127.0.0.1:9090"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration. path names an optional YAML file; envFile
// names an optional dotenv file whose values never override the real
// environment. A missing envFile is not an error.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = SplitList(v)
		}
	}
	int64Val := func(key string, dst *int64) error {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	integer := func(key string, dst *int) error {
		n := int64(*dst)
		if err := int64Val(key, &n); err != nil {
			return err
		}
		*dst = int(n)
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	str("DATADOG_API_KEY", &c.Datadog.APIKey)
	str("DATADOG_SITE", &c.Datadog.Site)
	str("DATADOG_URL", &c.Datadog.URL)
	str("SERVICE_NAME", &c.Datadog.Service)
	str("DD_ENV", &c.Datadog.Env)
	str("DD_HOSTNAME", &c.Datadog.Hostname)
	list("DD_TAGS", &c.Datadog.Tags)

	str("SMTP_HOST", &c.SMTP.Host)
	str("SMTP_DOMAIN", &c.SMTP.Domain)

	str("SINK", &c.Sink.Type)
	list("KAFKA_BROKERS", &c.Sink.Kafka.Brokers)
	str("KAFKA_TOPIC", &c.Sink.Kafka.Topic)
	str("KAFKA_GROUP", &c.Sink.Kafka.Group)

	// An explicitly empty METRICS_LISTEN disables the admin server.
	if v, ok := lookup("METRICS_LISTEN"); ok {
		c.Metrics.Listen = v
	}
	str("LOG_LEVEL", &c.Logging.Level)
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Sink.Type = strings.ToLower(c.Sink.Type)

	for _, err := range []error{
		duration("DATADOG_TIMEOUT", &c.Datadog.Timeout),
		integer("SMTP_PORT", &c.SMTP.Port),
		int64Val("MAX_MSG_BYTES", &c.SMTP.MaxMsgBytes),
		integer("MAX_RCPT_COUNT", &c.SMTP.MaxRcptCount),
		integer("SMTP_MAX_CONNS", &c.SMTP.MaxConns),
		duration("SMTP_READ_TIMEOUT", &c.SMTP.ReadTimeout),
		duration("SMTP_WRITE_TIMEOUT", &c.SMTP.WriteTimeout),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate reports the first configuration error. A missing API key is
// always ErrMissingAPIKey, whichever sink is selected.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Datadog.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid SMTP_PORT %d", c.SMTP.Port)
	}
	if c.SMTP.MaxMsgBytes <= 0 {
		return fmt.Errorf("MAX_MSG_BYTES must be positive")
	}
	if c.SMTP.MaxRcptCount <= 0 {
		return fmt.Errorf("MAX_RCPT_COUNT must be positive")
	}
	switch c.Sink.Type {
	case SinkDatadog, SinkStdout:
	case SinkKafka:
		if len(c.Sink.Kafka.Brokers) == 0 {
			return fmt.Errorf("sink %q requires KAFKA_BROKERS", SinkKafka)
		}
		if c.Sink.Kafka.Topic == "" {
			return fmt.Errorf("sink %q requires KAFKA_TOPIC", SinkKafka)
		}
	default:
		return fmt.Errorf("unknown SINK %q", c.Sink.Type)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// ListenAddr is the SMTP listen address.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.SMTP.Host, strconv.Itoa(c.SMTP.Port))
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", l.Level)
	}
	return lvl, nil
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
