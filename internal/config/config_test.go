package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"DATADOG_API_KEY", "DATADOG_SITE", "DATADOG_URL", "SERVICE_NAME", "DD_ENV", "DD_HOSTNAME", "DD_TAGS",
	"DATADOG_TIMEOUT", "SMTP_HOST", "SMTP_PORT", "SMTP_DOMAIN", "MAX_MSG_BYTES", "MAX_RCPT_COUNT",
	"SMTP_MAX_CONNS", "SMTP_READ_TIMEOUT", "SMTP_WRITE_TIMEOUT", "METRICS_LISTEN", "SINK",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP", "LOG_LEVEL",
}

// clearEnv unsets every known key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATADOG_API_KEY", "secret")

	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Datadog.APIKey)
	assert.Equal(t, "datadoghq.com", cfg.Datadog.Site)
	assert.Equal(t, "smtp2datadog", cfg.Datadog.Service)
	assert.Equal(t, "production", cfg.Datadog.Env)
	assert.Equal(t, "unknown", cfg.Datadog.Hostname)
	assert.Equal(t, 10*time.Second, cfg.Datadog.Timeout)
	assert.Equal(t, "localhost:1025", cfg.ListenAddr())
	assert.Equal(t, int64(20*1024*1024), cfg.SMTP.MaxMsgBytes)
	assert.Equal(t, SinkDatadog, cfg.Sink.Type)
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.Listen)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load("", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	t.Setenv("DATADOG_API_KEY", "   ")
	_, err = Load("", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoad_MissingAPIKeyForEverySink(t *testing.T) {
	for _, sink := range []string{SinkDatadog, SinkStdout, SinkKafka} {
		cfg := Default()
		cfg.Sink.Type = sink
		cfg.Sink.Kafka.Brokers = []string{"localhost:9092"}
		assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey, sink)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
datadog:
  api_key: from-yaml
  site: datadoghq.eu
  tags: [team:mail]
  timeout: 3s
smtp:
  host: 0.0.0.0
  port: 2525
sink:
  type: stdout
logging:
  level: debug
`), 0o600))

	t.Setenv("SMTP_PORT", "2626")
	t.Setenv("DD_ENV", "staging")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "from-yaml", cfg.Datadog.APIKey)
	assert.Equal(t, "datadoghq.eu", cfg.Datadog.Site)
	assert.Equal(t, []string{"team:mail"}, cfg.Datadog.Tags)
	assert.Equal(t, 3*time.Second, cfg.Datadog.Timeout)
	assert.Equal(t, "staging", cfg.Datadog.Env)
	assert.Equal(t, "0.0.0.0:2626", cfg.ListenAddr())
	assert.Equal(t, SinkStdout, cfg.Sink.Type)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DATADOG_API_KEY=from-dotenv\nSERVICE_NAME=from-dotenv\n"), 0o600))
	t.Setenv("SERVICE_NAME", "from-env")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Datadog.APIKey)
	assert.Equal(t, "from-env", cfg.Datadog.Service)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATADOG_API_KEY", "k")

	_, err := Load("", filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATADOG_API_KEY", "k")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := cfg.applyEnv(mapLookup(map[string]string{
		"DATADOG_API_KEY":    "k",
		"DATADOG_URL":        "http://127.0.0.1:8126/logs",
		"DD_TAGS":            "team:mail, region:eu ,,",
		"MAX_MSG_BYTES":      "1024",
		"MAX_RCPT_COUNT":     "5",
		"SMTP_MAX_CONNS":     "7",
		"SMTP_READ_TIMEOUT":  "1m",
		"SMTP_WRITE_TIMEOUT": "2s",
		"SINK":               "KAFKA",
		"KAFKA_BROKERS":      "k1:9092,k2:9092",
		"KAFKA_GROUP":        "relay-a",
		"LOG_LEVEL":          "WARN",
		"METRICS_LISTEN":     "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8126/logs", cfg.Datadog.URL)
	assert.Equal(t, []string{"team:mail", "region:eu"}, cfg.Datadog.Tags)
	assert.Equal(t, int64(1024), cfg.SMTP.MaxMsgBytes)
	assert.Equal(t, 5, cfg.SMTP.MaxRcptCount)
	assert.Equal(t, 7, cfg.SMTP.MaxConns)
	assert.Equal(t, time.Minute, cfg.SMTP.ReadTimeout)
	assert.Equal(t, 2*time.Second, cfg.SMTP.WriteTimeout)
	assert.Equal(t, SinkKafka, cfg.Sink.Type)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Sink.Kafka.Brokers)
	assert.Equal(t, "relay-a", cfg.Sink.Kafka.Group)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "", cfg.Metrics.Listen)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_BadValues(t *testing.T) {
	t.Parallel()

	for key, val := range map[string]string{
		"SMTP_PORT":       "abc",
		"MAX_MSG_BYTES":   "lots",
		"DATADOG_TIMEOUT": "10",
	} {
		cfg := Default()
		err := cfg.applyEnv(mapLookup(map[string]string{key: val}))
		require.Error(t, err, key)
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := Default()
	base.Datadog.APIKey = "k"
	require.NoError(t, base.Validate())

	cases := map[string]func(*Config){
		"bad port":           func(c *Config) { c.SMTP.Port = 70000 },
		"unknown sink":       func(c *Config) { c.Sink.Type = "syslog" },
		"kafka no brokers":   func(c *Config) { c.Sink.Type = SinkKafka },
		"kafka no topic": func(c *Config) {
			c.Sink.Type = SinkKafka
			c.Sink.Kafka.Brokers = []string{"b:9092"}
			c.Sink.Kafka.Topic = ""
		},
		"bad level":          func(c *Config) { c.Logging.Level = "loud" },
		"zero message limit": func(c *Config) { c.SMTP.MaxMsgBytes = 0 },
		"zero rcpt limit":    func(c *Config) { c.SMTP.MaxRcptCount = 0 },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	lvl, err := LoggingConfig{Level: "debug"}.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", lvl.String())

	_, err = LoggingConfig{Level: "nope"}.SlogLevel()
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList(" , ,"))
	assert.Equal(t, []string{"a", "b"}, SplitList("a, b"))
}
