package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "RSV", cfg.Booking.ConfirmationPrefix)
	assert.Equal(t, 5, cfg.Booking.MaxCodeRetries)
	assert.Equal(t, 5*time.Second, cfg.Notifications.Timeout())
	assert.True(t, cfg.Notifications.Async)

	loc, err := cfg.Booking.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
  seed_file: seed.yaml
booking:
  confirmation_prefix: HTL
  timezone: Europe/Moscow
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "seed.yaml", cfg.Storage.SeedFile)
	assert.Equal(t, "HTL", cfg.Booking.ConfirmationPrefix)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	// untouched sections keep their defaults
	assert.Equal(t, 5, cfg.Booking.MaxCodeRetries)
	assert.Equal(t, "reservation_events", cfg.Kafka.ReservationsTopic)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: memory\n")
	t.Setenv("APP_STORAGE_DRIVER", "postgres")
	t.Setenv("APP_DB_PORT", "6543")
	t.Setenv("APP_KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("APP_TRACING_ENABLED", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Observability.TracingEnabled)
}

func TestLoadConfig_Errors(t *testing.T) {
	testCases := []struct {
		name        string
		body        string
		expectedErr string
	}{
		{name: "unknown storage", body: "storage:\n  driver: sqlite\n", expectedErr: "unknown storage driver"},
		{name: "unknown notifier", body: "notifications:\n  driver: sms\n", expectedErr: "unknown notifications driver"},
		{name: "bad timezone", body: "booking:\n  timezone: Mars/Olympus\n", expectedErr: "booking timezone"},
		{name: "no retries", body: "booking:\n  max_code_retries: 0\n", expectedErr: "max_code_retries"},
		{name: "malformed yaml", body: "http: [", expectedErr: "failed to parse config"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")

	t.Setenv("APP_DB_PORT", "not-a-port")
	_, err = LoadConfig("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "APP_DB_PORT")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
}
