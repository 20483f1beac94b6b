package shipping_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/shipping"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/manual"
	shippermock "github.com/tournevent/fulfillment/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type fulfillmentMock struct{ mock.Mock }

func (m *fulfillmentMock) AddToFulfillment(ctx context.Context, result shipper.ShipmentResult) (int64, error) {
	args := m.Called(ctx, result)
	return args.Get(0).(int64), args.Error(1)
}

func (m *fulfillmentMock) AddToFulfilledLines(ctx context.Context, lines []shipper.FulfillmentLine, fulfillmentID int64) error {
	return m.Called(ctx, lines, fulfillmentID).Error(0)
}

func (m *fulfillmentMock) FulfillOnPlatform(ctx context.Context, orderID string, fulfillmentID int64) error {
	return m.Called(ctx, orderID, fulfillmentID).Error(0)
}

type eligibilityMock struct{ mock.Mock }

func (m *eligibilityMock) CanCreateShipment(ctx context.Context, platformOrderID, storeID, orderID string, lines []shipper.FulfillmentLine) (bool, error) {
	args := m.Called(ctx, platformOrderID, storeID, orderID, lines)
	return args.Bool(0), args.Error(1)
}

func (m *eligibilityMock) CanInvoiceAndNotify(ctx context.Context, orderID string, lines []shipper.FulfillmentLine) (bool, error) {
	args := m.Called(ctx, orderID, lines)
	return args.Bool(0), args.Error(1)
}

type notifierMock struct{ mock.Mock }

func (m *notifierMock) SendDealerNotification(ctx context.Context, kind shipping.NotificationKind, locationID, orderID string, fulfillmentID int64) error {
	return m.Called(ctx, kind, locationID, orderID, fulfillmentID).Error(0)
}

type invoicerMock struct{ mock.Mock }

func (m *invoicerMock) ConvertConceptToPaid(ctx context.Context, orderID string, fulfillmentID int64, platformOrderID, storeID string) error {
	return m.Called(ctx, orderID, fulfillmentID, platformOrderID, storeID).Error(0)
}

type fixture struct {
	ups         *shippermock.Client
	wuunder     *shippermock.Client
	data        *shippermock.WarehouseData
	fulfillment *fulfillmentMock
	eligibility *eligibilityMock
	notifier    *notifierMock
	invoicer    *invoicerMock
	metrics     *telemetry.Metrics
	orch        *shipping.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ups:         shippermock.New("UPS"),
		wuunder:     shippermock.New("WUUNDER"),
		data:        shippermock.NewWarehouseData(),
		fulfillment: &fulfillmentMock{},
		eligibility: &eligibilityMock{},
		notifier:    &notifierMock{},
		invoicer:    &invoicerMock{},
		metrics:     telemetry.NewMetrics(prometheus.NewRegistry()),
	}
	f.wuunder.HasCallback = true

	table, err := shipper.NewRoutingTable(
		shipper.Route{Carrier: "UPS", Priority: 1, Origins: []string{"NL", "US"}},
		shipper.Route{Carrier: "WUUNDER", Priority: 2, Origins: []string{"NL", "FR"}},
		shipper.Route{Carrier: "MANUAL", Priority: 0, AnyOrigin: true},
	)
	require.NoError(t, err)

	registry := shipper.NewRegistry()
	registry.Register(f.ups)
	registry.Register(f.wuunder)
	registry.Register(manual.New("ORG"))

	f.orch = shipping.New(shipping.Deps{
		Resolver:    shipper.NewResolver(table, registry),
		Warehouses:  f.data,
		Fulfillment: f.fulfillment,
		Eligibility: f.eligibility,
		Notifier:    f.notifier,
		Invoicer:    f.invoicer,
	}, otelzap.New(zap.NewNop()), f.metrics, nil)

	t.Cleanup(func() {
		f.fulfillment.AssertExpectations(t)
		f.eligibility.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
		f.invoicer.AssertExpectations(t)
	})
	return f
}

func shipmentFields(kv ...string) shipper.Fields {
	f := shipper.Fields{
		"order_id":          "1001",
		"bc_id":             "77",
		"bc_store_hash":     "store1",
		"from_warehouse_id": "W1",
		"from_street":       "Stationsweg 1",
		"from_zip_code":     "3511AA",
		"from_locality":     "Utrecht",
		"from_country":      "NL",
		"to_street":         "Hauptstrasse 5",
		"to_zip_code":       "10115",
		"to_locality":       "Berlin",
		"to_country":        "DE",
		"to_given_name":     "Erika",
		"fulfillmentlines":  []any{map[string]any{"line_id": "L1", "quantity": 2}},
	}
	for i := 0; i+1 < len(kv); i += 2 {
		f[kv[i]] = kv[i+1]
	}
	return f
}

var lines = []shipper.FulfillmentLine{{LineID: "L1", Quantity: 2}}

func (f *fixture) eligible() {
	f.eligibility.On("CanCreateShipment", mock.Anything, "77", "store1", "1001", lines).Return(true, nil).Once()
}

func (f *fixture) recorded(id int64) {
	f.fulfillment.On("AddToFulfillment", mock.Anything, mock.AnythingOfType("shipper.ShipmentResult")).Return(id, nil).Once()
	f.fulfillment.On("AddToFulfilledLines", mock.Anything, lines, id).Return(nil).Once()
}

func TestCreateShipment_InvoiceAndNotify(t *testing.T) {
	f := newFixture(t)
	f.eligible()
	f.recorded(42)
	f.fulfillment.On("FulfillOnPlatform", mock.Anything, "1001", int64(42)).Return(nil).Once()
	f.eligibility.On("CanInvoiceAndNotify", mock.Anything, "1001", lines).Return(true, nil).Once()
	f.notifier.On("SendDealerNotification", mock.Anything, shipping.NotifyLabel, "W1", "1001", int64(42)).Return(nil).Once()
	f.invoicer.On("ConvertConceptToPaid", mock.Anything, "1001", int64(42), "77", "store1").Return(nil).Once()

	outcome, err := f.orch.CreateShipment(context.Background(), shipmentFields())
	require.NoError(t, err)

	assert.Equal(t, "UPS", outcome.Result.ShippingProvider)
	assert.Equal(t, int64(42), outcome.FulfillmentID)
	assert.Equal(t, shipping.NotifyLabel, outcome.Notification)
	assert.True(t, outcome.Invoiced)
	assert.Len(t, f.ups.Created(), 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues(shipping.OpCreateShipment, "UPS", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.States.WithLabelValues(shipping.OpCreateShipment, string(shipping.StateCompleted))))
}

func TestCreateShipment_NotInvoiceable(t *testing.T) {
	f := newFixture(t)
	f.eligible()
	f.recorded(7)
	f.fulfillment.On("FulfillOnPlatform", mock.Anything, "1001", int64(7)).Return(nil).Once()
	f.eligibility.On("CanInvoiceAndNotify", mock.Anything, "1001", lines).Return(false, nil).Once()
	f.notifier.On("SendDealerNotification", mock.Anything, shipping.NotifyLabelWithoutPackingSlip, "W1", "1001", int64(7)).Return(nil).Once()

	outcome, err := f.orch.CreateShipment(context.Background(), shipmentFields())
	require.NoError(t, err)
	assert.Equal(t, shipping.NotifyLabelWithoutPackingSlip, outcome.Notification)
	assert.False(t, outcome.Invoiced)
	f.invoicer.AssertNotCalled(t, "ConvertConceptToPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateShipment_CallbackCarrierStopsAfterLines(t *testing.T) {
	f := newFixture(t)
	f.eligible()
	f.recorded(8)

	outcome, err := f.orch.CreateShipment(context.Background(), shipmentFields("preferred_shipper", "wuunder"))
	require.NoError(t, err)
	assert.Equal(t, "WUUNDER", outcome.Result.ShippingProvider)
	assert.True(t, outcome.Result.HasCallback)
	assert.Empty(t, outcome.Notification)
	f.fulfillment.AssertNotCalled(t, "FulfillOnPlatform", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateShipment_ManualStopsAfterLines(t *testing.T) {
	f := newFixture(t)
	f.eligible()
	f.recorded(9)

	outcome, err := f.orch.CreateShipment(context.Background(), shipmentFields("selected_shipper", "MANUAL"))
	require.NoError(t, err)
	assert.Equal(t, "MANUAL", outcome.Result.ShippingProvider)
	assert.False(t, outcome.Result.HasCallback)
}

func TestCreateShipment_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.CreateShipment(context.Background(), shipmentFields("to_country", "Germany"))
	assert.ErrorIs(t, err, shipper.ErrValidation)
	assert.Empty(t, f.ups.Created())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues(shipping.OpCreateShipment, "none", "error")))
}

func TestCreateShipment_NotEligible(t *testing.T) {
	f := newFixture(t)
	f.eligibility.On("CanCreateShipment", mock.Anything, "77", "store1", "1001", lines).Return(false, nil).Once()

	_, err := f.orch.CreateShipment(context.Background(), shipmentFields())
	assert.ErrorIs(t, err, shipper.ErrNotEligible)
	assert.Empty(t, f.ups.Created(), "no shipment is booked for an ineligible order")
}

func TestCreateShipment_ExplicitCarrierNotSupported(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.CreateShipment(context.Background(), shipmentFields("selected_shipper", "WUUNDER", "from_country", "US"))
	assert.ErrorIs(t, err, shipper.ErrCarrierNotSupportedForRoute)
	assert.Empty(t, f.ups.Created(), "explicit selection never falls back")
	f.eligibility.AssertNotCalled(t, "CanCreateShipment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateShipment_CarrierFailure(t *testing.T) {
	f := newFixture(t)
	f.eligible()
	f.ups.ErrCreate = shipper.NewShipperError("UPS", "HTTP_503", "unavailable").WithRetryable(true)

	outcome, err := f.orch.CreateShipment(context.Background(), shipmentFields())
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, shipper.ErrCarrierRequestFailed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CarrierErrors.WithLabelValues("UPS", "HTTP_503")))
}

func TestCreateShipment_PostProcessingFailure(t *testing.T) {
	f := newFixture(t)
	f.eligible()
	f.fulfillment.On("AddToFulfillment", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down")).Once()

	outcome, err := f.orch.CreateShipment(context.Background(), shipmentFields())
	require.Error(t, err)
	require.NotNil(t, outcome, "the created shipment is still reported")
	assert.NotEmpty(t, outcome.Result.TrackingNumber)

	var post *shipping.PostProcessingError
	require.ErrorAs(t, err, &post)
	assert.Equal(t, shipping.StepAddToFulfillment, post.Step)
	assert.Equal(t, "1001", post.OrderID)
	assert.ErrorIs(t, err, shipper.ErrPostProcessingFailed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues(shipping.OpCreateShipment, "UPS", "partial")))
}

func TestCreateShipment_NotifyAndInvoiceBothRun(t *testing.T) {
	f := newFixture(t)
	f.eligible()
	f.recorded(5)
	f.fulfillment.On("FulfillOnPlatform", mock.Anything, "1001", int64(5)).Return(nil).Once()
	f.eligibility.On("CanInvoiceAndNotify", mock.Anything, "1001", lines).Return(true, nil).Once()
	mailErr := errors.New("kafka unavailable")
	f.notifier.On("SendDealerNotification", mock.Anything, shipping.NotifyLabel, "W1", "1001", int64(5)).Return(mailErr).Once()
	f.invoicer.On("ConvertConceptToPaid", mock.Anything, "1001", int64(5), "77", "store1").Return(nil).Once()

	outcome, err := f.orch.CreateShipment(context.Background(), shipmentFields())
	require.Error(t, err)
	assert.ErrorIs(t, err, mailErr)
	assert.True(t, outcome.Invoiced, "invoicing runs even when the notification fails")
	assert.Empty(t, outcome.Notification)

	var post *shipping.PostProcessingError
	require.ErrorAs(t, err, &post)
	assert.Equal(t, shipping.StepNotifyAndInvoice, post.Step)
	assert.Equal(t, int64(5), post.FulfillmentID)
}

func TestRequestPickups(t *testing.T) {
	f := newFixture(t)
	f.data.AddPendingPickup("UPS", shipper.PickupRequest{WarehouseID: "L1", ShippingCountry: "DE", FulfillmentID: 1})
	f.data.AddPendingPickup("UPS", shipper.PickupRequest{WarehouseID: "L2", ShippingCountry: "NL", FulfillmentID: 2})
	f.data.AddPendingPickup("UPS", shipper.PickupRequest{WarehouseID: "L1", ShippingCountry: "FR", FulfillmentID: 3})
	f.data.AddPendingPickup("DHL", shipper.PickupRequest{WarehouseID: "L9", ShippingCountry: "NL", FulfillmentID: 4})

	confs, err := f.orch.RequestPickups(context.Background(), shipper.Fields{"shipper": "ups"})
	require.NoError(t, err)
	require.Len(t, confs, 2)

	batches := f.ups.PickupBatches()
	require.Len(t, batches, 2)
	assert.Equal(t, "L1", batches[0].LocationID)
	assert.Len(t, batches[0].Pickups, 2)
	assert.Equal(t, "L2", batches[1].LocationID)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PickupBatches.WithLabelValues("UPS", "booked")))
}

func TestRequestPickups_BatchFailure(t *testing.T) {
	f := newFixture(t)
	f.ups.ErrPickup = shipper.NewShipperError("UPS", "PICKUP_REJECTED", "no slot")
	f.data.AddPendingPickup("UPS", shipper.PickupRequest{WarehouseID: "L1", ShippingCountry: "DE", FulfillmentID: 1})

	confs, err := f.orch.RequestPickups(context.Background(), shipper.Fields{"shipper": "UPS"})
	require.NoError(t, err, "batch failures are reported per confirmation")
	require.Len(t, confs, 1)
	assert.Error(t, confs[0].Err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PickupBatches.WithLabelValues("UPS", "error")))
}

func TestRequestPickups_UnknownCarrier(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.RequestPickups(context.Background(), shipper.Fields{"shipper": "FEDEX"})
	assert.ErrorIs(t, err, shipper.ErrUnsupportedCarrier)

	_, err = f.orch.RequestPickups(context.Background(), shipper.Fields{})
	assert.ErrorIs(t, err, shipper.ErrValidation)
}

func TestRequestPickups_NothingPending(t *testing.T) {
	f := newFixture(t)

	confs, err := f.orch.RequestPickups(context.Background(), shipper.Fields{"shipper": "UPS"})
	require.NoError(t, err)
	assert.Empty(t, confs)
	assert.Empty(t, f.ups.PickupBatches())
}

func TestUpdateShipments(t *testing.T) {
	f := newFixture(t)
	f.data.AddPendingTracking("UPS", shipper.TrackingRecord{FulfillmentID: 1, TrackingNumber: "1Z1"})
	f.data.AddPendingTracking("UPS", shipper.TrackingRecord{FulfillmentID: 2, TrackingNumber: "1Z2"})

	require.NoError(t, f.orch.UpdateShipments(context.Background(), shipper.Fields{"shipper": "UPS"}))
	assert.Len(t, f.ups.Tracked(), 2)

	f.ups.ErrTrack = errors.New("tracking 1Z2: timeout")
	err := f.orch.UpdateShipments(context.Background(), shipper.Fields{"shipper": "UPS"})
	assert.ErrorContains(t, err, "timeout")
}

func TestRoutes(t *testing.T) {
	f := newFixture(t)

	routes := f.orch.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, "MANUAL", routes[0].Carrier)
}

type labelShipper struct {
	*shippermock.Client
	urls []string
	err  error
	refs []string
}

func (s *labelShipper) Labels(ctx context.Context, reference string) ([]string, error) {
	s.refs = append(s.refs, reference)
	return s.urls, s.err
}

func labelsOrchestrator(t *testing.T, registry *shipper.Registry) *shipping.Orchestrator {
	t.Helper()
	table, err := shipper.NewRoutingTable(shipper.Route{Carrier: "PACKLINK", Priority: 1, Origins: []string{"ES"}})
	require.NoError(t, err)
	return shipping.New(shipping.Deps{Resolver: shipper.NewResolver(table, registry)},
		otelzap.New(zap.NewNop()), telemetry.NewMetrics(prometheus.NewRegistry()), nil)
}

func TestPacklinkLabels(t *testing.T) {
	packlink := &labelShipper{Client: shippermock.New("PACKLINK"), urls: []string{"https://labels.mock/a.pdf", "https://labels.mock/b.pdf"}}
	registry := shipper.NewRegistry()
	registry.Register(packlink)
	orch := labelsOrchestrator(t, registry)

	urls, err := orch.PacklinkLabels(context.Background(), " ES2026PRO0001 ")
	require.NoError(t, err)
	assert.Equal(t, packlink.urls, urls)
	assert.Equal(t, []string{"ES2026PRO0001"}, packlink.refs)

	_, err = orch.PacklinkLabels(context.Background(), "")
	assert.ErrorIs(t, err, shipper.ErrValidation)
	assert.Len(t, packlink.refs, 1)
}

func TestPacklinkLabels_CarrierFailure(t *testing.T) {
	packlink := &labelShipper{Client: shippermock.New("PACKLINK"), err: shipper.NewShipperError("PACKLINK", "HTTP_404", "unknown reference")}
	registry := shipper.NewRegistry()
	registry.Register(packlink)

	_, err := labelsOrchestrator(t, registry).PacklinkLabels(context.Background(), "ES1")
	assert.ErrorIs(t, err, shipper.ErrCarrierRequestFailed)
}

func TestPacklinkLabels_NotAvailable(t *testing.T) {
	_, err := labelsOrchestrator(t, shipper.NewRegistry()).PacklinkLabels(context.Background(), "ES1")
	assert.ErrorIs(t, err, shipper.ErrUnsupportedCarrier, "packlink is disabled")

	registry := shipper.NewRegistry()
	registry.Register(shippermock.New("PACKLINK"))
	_, err = labelsOrchestrator(t, registry).PacklinkLabels(context.Background(), "ES1")
	assert.ErrorIs(t, err, shipper.ErrUnsupportedOperation)
}
