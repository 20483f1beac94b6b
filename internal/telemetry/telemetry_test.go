package telemetry_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/telemetry"
)

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "WARN", "error", "bogus", ""} {
		logger, err := telemetry.NewLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordRequest("create_shipment", "UPS", "success", 0.2)
	m.RecordError("UPS", "HTTP_503")
	m.RecordResolution("Shipment", "UPS", "resolved")
	m.RecordPickupBatch("DHL", "booked")
	m.RecordState("create_shipment", "completed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("create_shipment", "UPS", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CarrierErrors.WithLabelValues("UPS", "HTTP_503")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PickupBatches.WithLabelValues("DHL", "booked")))

	count, err := testutil.GatherAndCount(reg, "fulfillment_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
