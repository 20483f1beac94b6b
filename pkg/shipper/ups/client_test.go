package ups_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/calendar"
	"github.com/tournevent/fulfillment/pkg/contact"
	"github.com/tournevent/fulfillment/pkg/pickup"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/mock"
	"github.com/tournevent/fulfillment/pkg/shipper/ups"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, time.October, 16, 10, 30, 0, 0, time.UTC) // Friday

type fixture struct {
	api    *ups.MockAPIClient
	data   *mock.WarehouseData
	labels *mock.LabelStore
	client *ups.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		api:    ups.NewMockAPIClient(),
		data:   mock.NewWarehouseData(),
		labels: mock.NewLabelStore(),
	}
	f.data.AddAccount(shipper.Account{Carrier: "UPS", CountryCode: "NL", AccountNumber: "A1B2C3"})
	f.data.AddWarehouse(shipper.Warehouse{
		LocationID:  "W1",
		CompanyName: "Dealer One",
		FirstName:   "Jan",
		LastName:    "Jansen",
		Address:     "Stationsweg 1",
		City:        "Utrecht",
		PostalCode:  "3511AA",
		CountryCode: "NL",
		Email:       "dealer@example.com",
		Phone:       "0612345678",
	}, true)

	clock := func() time.Time { return fixedNow }
	deps := ups.Deps{
		Warehouses: f.data,
		Labels:     f.labels,
		Contacts:   contact.NewNormalizer(contact.Phone{Number: "201234567", CountryCode: "31"}),
		Scheduler:  pickup.NewScheduler(calendar.New(), pickup.WithClock(clock), pickup.WithLocation(time.UTC)),
	}
	f.client = ups.NewWithAPIClient(ups.Config{ShipperName: "Parts Org", ProcessedBy: "ORG"}, f.api, deps, otelzap.New(zap.NewNop()), nil).
		WithClock(clock)
	return f
}

func shipmentFields() shipper.Fields {
	return shipper.Fields{
		"order_id":                "1001",
		"from_warehouse_id":       "W1",
		"pack_customer_reference": "REF-9",
		"from_street":             "Stationsweg 1",
		"from_zip_code":           "3511AA",
		"from_locality":           "Utrecht",
		"from_country":            "NL",
		"from_given_name":         "Jan",
		"to_street":               "Hauptstrasse",
		"to_house_number":         "5",
		"to_zip_code":             "10115",
		"to_locality":             "Berlin",
		"to_country":              "DE",
		"to_given_name":           "Erika",
		"to_phone_number":         "+49 30 123456",
		"fulfillmentlines":        []any{map[string]any{"line_id": "L1", "quantity": float64(1)}},
	}
}

func bindShipment(t *testing.T, c *ups.Client, f shipper.Fields) shipper.Adapter {
	t.Helper()
	doc, err := shipper.NewShipmentDocument(f)
	require.NoError(t, err)
	return c.Bind(doc)
}

func TestClient_CreateShipment_Success(t *testing.T) {
	f := newFixture(t)
	var captured *ups.ShipmentRequest
	f.api.OnCreateShipment = func(ctx context.Context, transID string, req *ups.ShipmentRequest) (*ups.ShipmentResponse, error) {
		captured = req
		resp := &ups.ShipmentResponse{}
		resp.ShipmentResponse.ShipmentResults.ShipmentIdentificationNumber = "1ZSHIP"
		resp.ShipmentResponse.ShipmentResults.PackageResults.TrackingNumber = "1Z999"
		return resp, nil
	}

	result, err := bindShipment(t, f.client, shipmentFields()).CreateShipment(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1001", result.OrderID)
	assert.Equal(t, "W1", result.WarehouseID)
	assert.Equal(t, "1ZSHIP", result.ProviderID)
	assert.Equal(t, "UPS", result.ShippingProvider)
	assert.Equal(t, "1Z999", result.TrackingNumber)
	assert.Equal(t, "https://www.ups.com/track?tracknum=1Z999", result.TrackingURL)
	assert.Equal(t, shipper.StatusBooked, result.Status)
	assert.True(t, result.RequestPickup)
	assert.Equal(t, "ORG", result.ProcessedBy)
	assert.False(t, result.HasCallback)
	assert.Equal(t, "https://labels.mock/1001/shipping_label_ups_1ZSHIP.pdf", result.LabelURL)

	label, ok := f.labels.Get("1001/shipping_label_ups_1ZSHIP.pdf")
	require.True(t, ok)
	assert.Equal(t, "application/pdf", label.ContentType)
	assert.Equal(t, "pdf-label", string(label.Data))

	require.NotNil(t, captured)
	s := captured.ShipmentRequest.Shipment
	assert.Equal(t, "A1B2C3", s.Shipper.ShipperNumber)
	assert.Equal(t, "REF-9 / W1", s.ReferenceNumber.Value)
	assert.Equal(t, "Hauptstrasse 5", s.ShipTo.Address.AddressLine)
	assert.Equal(t, "4930123456", s.ShipTo.Phone.Number)
	assert.Equal(t, "31201234567", s.ShipFrom.Phone.Number, "missing phone falls back to the organisation number")

	assert.Equal(t, []string{"W1-20261016103000", "W1-20261016103000"}, f.api.TransIDs())
}

func TestClient_CreateShipment_LabelRecoveryFallsBackToPNG(t *testing.T) {
	f := newFixture(t)
	f.api.OnCreateShipment = func(ctx context.Context, transID string, req *ups.ShipmentRequest) (*ups.ShipmentResponse, error) {
		resp := &ups.ShipmentResponse{}
		resp.ShipmentResponse.ShipmentResults.ShipmentIdentificationNumber = "1ZSHIP"
		resp.ShipmentResponse.ShipmentResults.PackageResults.TrackingNumber = "1Z999"
		resp.ShipmentResponse.ShipmentResults.PackageResults.ShippingLabel.GraphicImage = "cG5nLWxhYmVs" // png-label
		return resp, nil
	}
	f.api.OnRecoverLabel = func(ctx context.Context, transID string, req *ups.LabelRecoveryRequest) (*ups.LabelRecoveryResponse, error) {
		return nil, &ups.APIError{StatusCode: 400, Code: "120541", Message: "label not available"}
	}

	result, err := bindShipment(t, f.client, shipmentFields()).CreateShipment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://labels.mock/1001/shipping_label_ups_1ZSHIP.png", result.LabelURL)

	label, ok := f.labels.Get("1001/shipping_label_ups_1ZSHIP.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", label.ContentType)
	assert.Equal(t, "png-label", string(label.Data))
}

func TestClient_CreateShipment_LabelStoreFailureKeepsShipment(t *testing.T) {
	f := newFixture(t)
	f.labels.Err = errors.New("bucket unavailable")

	result, err := bindShipment(t, f.client, shipmentFields()).CreateShipment(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.LabelURL)
	assert.NotEmpty(t, result.TrackingNumber)
}

func TestClient_CreateShipment_DropOffAndProcessedBy(t *testing.T) {
	f := newFixture(t)
	fields := shipmentFields()
	fields["pack_drop_off"] = true
	fields["processed_by"] = "ALICE"

	result, err := bindShipment(t, f.client, fields).CreateShipment(context.Background())
	require.NoError(t, err)
	assert.False(t, result.RequestPickup)
	assert.Equal(t, "ALICE", result.ProcessedBy)
}

func TestClient_CreateShipment_NoAccount(t *testing.T) {
	f := newFixture(t)
	fields := shipmentFields()
	fields["from_country"] = "BE"

	_, err := bindShipment(t, f.client, fields).CreateShipment(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shipper.ErrCarrierRequestFailed)

	var shipperErr *shipper.ShipperError
	require.True(t, errors.As(err, &shipperErr))
	assert.Equal(t, "NO_ACCOUNT", shipperErr.Code)
	assert.Empty(t, f.api.TransIDs(), "no carrier call without an account")
}

func TestClient_CreateShipment_APIError(t *testing.T) {
	f := newFixture(t)
	f.api.SimulateErrors = true

	_, err := bindShipment(t, f.client, shipmentFields()).CreateShipment(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shipper.ErrCarrierRequestFailed)
	assert.True(t, shipper.IsRetryable(err))

	var shipperErr *shipper.ShipperError
	require.True(t, errors.As(err, &shipperErr))
	assert.Equal(t, "UPS", shipperErr.Carrier)
	assert.Equal(t, "MOCK_ERROR", shipperErr.Code)
}

func TestClient_CreateShipment_NotBoundToShipment(t *testing.T) {
	f := newFixture(t)
	adapter := f.client.Bind(&shipper.PickupDocument{Carrier: "UPS"})

	_, err := adapter.CreateShipment(context.Background())
	assert.ErrorIs(t, err, shipper.ErrUnsupportedOperation)
}

func TestClient_PostPickups(t *testing.T) {
	f := newFixture(t)
	f.data.AddWarehouse(shipper.Warehouse{LocationID: "W2", CompanyName: "Dealer Two", CountryCode: "NL"}, true)

	var (
		mu       sync.Mutex
		requests = map[string]*ups.PickupCreationRequest{}
	)
	f.api.OnCreatePickup = func(ctx context.Context, transID string, req *ups.PickupCreationRequest) (*ups.PickupCreationResponse, error) {
		mu.Lock()
		requests[transID] = req
		mu.Unlock()
		resp := &ups.PickupCreationResponse{}
		resp.PickupCreationResponse.PRN = "PRN-" + transID
		return resp, nil
	}

	batches := pickup.Consolidate([]shipper.PickupRequest{
		{WarehouseID: "W1", ShippingCountry: "DE", FulfillmentID: 1},
		{WarehouseID: "W2", ShippingCountry: "BE", FulfillmentID: 2},
		{WarehouseID: "W1", ShippingCountry: "DE", FulfillmentID: 3},
		{WarehouseID: "W1", ShippingCountry: "FR", FulfillmentID: 4},
	})

	confs, err := f.client.Bind(&shipper.PickupDocument{Carrier: "UPS"}).PostPickups(context.Background(), batches)
	require.NoError(t, err)
	require.Len(t, confs, 2)

	for _, c := range confs {
		require.NoError(t, c.Err)
		assert.Equal(t, "2026-10-19", c.PickupDate.Format(time.DateOnly))
		assert.Equal(t, "PRN-"+c.LocationID+"-20261016103000", c.Reference)
	}
	assert.Equal(t, 3, confs[0].Requests)
	assert.Equal(t, []shipper.CountryPickupCount{{Country: "DE", Count: 2}, {Country: "FR", Count: 1}}, confs[0].Countries)

	req := requests["W1-20261016103000"].PickupCreationRequest
	assert.Equal(t, "20261019", req.PickupDateInfo.PickupDate)
	assert.Equal(t, "0900", req.PickupDateInfo.ReadyTime)
	assert.Equal(t, "1700", req.PickupDateInfo.CloseTime)
	assert.Equal(t, "A1B2C3", req.Shipper.Account.AccountNumber)
	assert.Equal(t, "0031612345678", req.PickupAddress.Phone.Number)
	assert.Equal(t, []ups.PickupPiece{
		{ServiceCode: "11", Quantity: "2", DestinationCountryCode: "DE", ContainerCode: "01"},
		{ServiceCode: "11", Quantity: "1", DestinationCountryCode: "FR", ContainerCode: "01"},
	}, req.PickupPiece)

	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, f.data.Booked())
}

func TestClient_PostPickups_FailureIsolatedPerBatch(t *testing.T) {
	f := newFixture(t)

	batches := pickup.Consolidate([]shipper.PickupRequest{
		{WarehouseID: "W1", ShippingCountry: "DE", FulfillmentID: 1},
		{WarehouseID: "UNKNOWN", ShippingCountry: "DE", FulfillmentID: 2},
	})

	confs, err := f.client.Bind(&shipper.PickupDocument{Carrier: "UPS"}).PostPickups(context.Background(), batches)
	require.NoError(t, err)
	require.Len(t, confs, 2)

	assert.NoError(t, confs[0].Err)
	assert.NotEmpty(t, confs[0].Reference)
	assert.Error(t, confs[1].Err)
	assert.Equal(t, "UNKNOWN", confs[1].LocationID)
	assert.Equal(t, []int64{1}, f.data.Booked())
}

func TestClient_PostPickups_MarkFailureDoesNotFailBatch(t *testing.T) {
	f := newFixture(t)
	f.data.ErrMarkBooked = errors.New("db down")

	confs, err := f.client.Bind(&shipper.PickupDocument{Carrier: "UPS"}).PostPickups(context.Background(),
		pickup.Consolidate([]shipper.PickupRequest{{WarehouseID: "W1", ShippingCountry: "DE", FulfillmentID: 1}}))
	require.NoError(t, err)
	require.Len(t, confs, 1)
	assert.NoError(t, confs[0].Err)
}

func TestClient_UpdateTrackAndTrace(t *testing.T) {
	f := newFixture(t)
	f.api.OnGetTracking = func(ctx context.Context, transID, trackingNumber string) (*ups.TrackingResponse, error) {
		if trackingNumber == "BAD" {
			return nil, &ups.APIError{StatusCode: 404, Code: "151018", Message: "invalid tracking number"}
		}
		resp := &ups.TrackingResponse{}
		resp.TrackResponse.Shipment = []ups.TrackedShipment{{Package: []ups.TrackedPackage{{
			TrackingNumber: trackingNumber,
			Activity: []ups.Activity{{
				Date:   "20261015",
				Time:   "143000",
				Status: ups.ActivityStatus{Type: "D", Description: "Delivered"},
			}},
		}}}}
		return resp, nil
	}

	err := f.client.Bind(&shipper.UpdateDocument{Carrier: "UPS"}).UpdateTrackAndTrace(context.Background(), []shipper.TrackingRecord{
		{FulfillmentID: 1, TrackingNumber: "1Z1"},
		{FulfillmentID: 2, TrackingNumber: "BAD"},
		{FulfillmentID: 3, TrackingNumber: "1Z3"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD")
	assert.ErrorIs(t, err, shipper.ErrCarrierRequestFailed)

	updates := f.data.Updates()
	require.Len(t, updates, 2)
	for _, u := range updates {
		assert.Equal(t, shipper.StatusDelivered, u.Status)
		assert.Equal(t, "Delivered", u.Description)
		assert.Equal(t, time.Date(2026, time.October, 15, 14, 30, 0, 0, time.UTC), u.OccurredAt)
	}
}
