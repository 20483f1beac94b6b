package manual_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/manual"
)

func shipmentDoc(t *testing.T, fields shipper.Fields) *shipper.ShipmentDocument {
	t.Helper()
	base := shipper.Fields{
		"order_id":          "5005",
		"from_warehouse_id": "W1",
		"from_street":       "Stationsweg 1",
		"from_zip_code":     "3511AA",
		"from_locality":     "Utrecht",
		"from_country":      "NL",
		"to_street":         "Kerkstraat 12",
		"to_zip_code":       "1017GC",
		"to_locality":       "Amsterdam",
		"to_country":        "NL",
		"to_given_name":     "Piet",
		"fulfillmentlines":  []any{map[string]any{"line_id": "L1", "quantity": 1}},
	}
	for k, v := range fields {
		base[k] = v
	}
	doc, err := shipper.NewShipmentDocument(base)
	require.NoError(t, err)
	return doc
}

func TestManual_CreateShipment(t *testing.T) {
	adapter := manual.New("ORG").Bind(shipmentDoc(t, nil))

	result, err := adapter.CreateShipment(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "MANUAL", adapter.Carrier())
	assert.Equal(t, "MANUAL", result.ShippingProvider)
	assert.False(t, result.HasCallback)
	assert.False(t, result.RequestPickup)
	assert.Equal(t, "5005", result.OrderID)
	assert.Equal(t, "W1", result.WarehouseID)
	assert.Equal(t, "ORG", result.ProcessedBy)
	assert.Empty(t, result.LabelURL)
}

func TestManual_ProcessedByFromDocument(t *testing.T) {
	result, err := manual.New("ORG").Bind(shipmentDoc(t, shipper.Fields{"processed_by": "DEALER"})).CreateShipment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DEALER", result.ProcessedBy)
}

func TestManual_NoOps(t *testing.T) {
	s := manual.New("ORG")

	confs, err := s.Bind(&shipper.PickupDocument{Carrier: "MANUAL"}).PostPickups(context.Background(), []shipper.PickupBatch{{LocationID: "W1"}})
	require.NoError(t, err)
	assert.Empty(t, confs)

	err = s.Bind(&shipper.UpdateDocument{Carrier: "MANUAL"}).UpdateTrackAndTrace(context.Background(), []shipper.TrackingRecord{{TrackingNumber: "T"}})
	assert.NoError(t, err)
}

func TestManual_RejectsNonShipmentDocument(t *testing.T) {
	_, err := manual.New("ORG").Bind(&shipper.PickupDocument{Carrier: "MANUAL"}).CreateShipment(context.Background())
	assert.ErrorIs(t, err, shipper.ErrUnsupportedOperation)
}
