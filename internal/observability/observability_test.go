package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/tourbooking/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("verbose"))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.ObservabilityConfig{ServiceName: "tourbooking", LogLevel: "info"}, &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("confirmation_code", "RSV202409200001").Msg("reservation created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reservation created", entry["message"])
	assert.Equal(t, "tourbooking", entry["service"])
	assert.Equal(t, "RSV202409200001", entry["confirmation_code"])
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordReservationCreated("ACCOMMODATION", 20*time.Millisecond)
	m.RecordReservationRejected("ACCOMMODATION", "NO_AVAILABILITY")
	m.RecordInventoryConflict()
	m.RecordConfirmationRetry()
	m.RecordCancellation()
	m.RecordNotification(nil)
	m.RecordNotification(errors.New("broker down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReservationsCreated.WithLabelValues("ACCOMMODATION")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReservationsRejected.WithLabelValues("ACCOMMODATION", "NO_AVAILABILITY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InventoryConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfirmationRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReservationsCancelled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsFailed))
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(config.ObservabilityConfig{})
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, ShutdownTracing(context.Background(), tp))
}
