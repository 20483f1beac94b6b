// Package wuunder provides integration with the Wuunder booking API.
//
// Wuunder bookings complete asynchronously: the carrier, label and tracking
// number arrive later through a webhook, so CreateShipment only starts the
// booking.
package wuunder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tournevent/fulfillment/pkg/contact"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const carrierName = shipper.CarrierWuunder

// Config holds Wuunder configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	UseMock     bool
	WebhookURL  string
	RedirectURL string
	ProcessedBy string
}

// Deps are the collaborators the adapter reads from.
type Deps struct {
	Warehouses shipper.WarehouseData
	Contacts   *contact.Normalizer
}

// Client is the Wuunder shipper client.
type Client struct {
	config    Config
	apiClient APIClient
	deps      Deps
	logger    *otelzap.Logger
	tracer    trace.Tracer

	doc shipper.Document
}

// New creates a new Wuunder client.
func New(cfg Config, deps Deps, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: 30 * time.Second,
		})
	}

	return NewWithAPIClient(cfg, apiClient, deps, logger, tracer)
}

// NewWithAPIClient creates a new Wuunder client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, deps Deps, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(carrierName)
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		deps:      deps,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// Carrier returns the carrier name.
func (c *Client) Carrier() string {
	return carrierName
}

// Bind returns an adapter bound to doc.
func (c *Client) Bind(doc shipper.Document) shipper.Adapter {
	cp := *c
	cp.doc = doc
	return &cp
}

// CreateShipment starts a Wuunder booking for the bound shipment.
func (c *Client) CreateShipment(ctx context.Context) (shipper.ShipmentResult, error) {
	doc, ok := c.doc.(*shipper.ShipmentDocument)
	if !ok {
		return shipper.ShipmentResult{}, fmt.Errorf("%w: %s adapter is not bound to a shipment", shipper.ErrUnsupportedOperation, carrierName)
	}

	ctx, span := c.tracer.Start(ctx, "wuunder.CreateBooking", trace.WithAttributes(
		attribute.String("order_id", doc.OrderID),
	))
	defer span.End()

	c.logger.Ctx(ctx).Info("Creating Wuunder booking",
		zap.String("order_id", doc.OrderID),
		zap.String("warehouse_id", doc.WarehouseID),
	)

	quantity := 0
	for _, l := range doc.Lines {
		quantity += l.Quantity
	}

	req := &BookingRequest{
		Reference:   doc.OrderID,
		WebhookURL:  c.config.WebhookURL,
		RedirectURL: c.config.RedirectURL,
		Shipment: Shipment{
			Kind:        "package",
			Description: "Order " + doc.OrderID,
			Quantity:    quantity,
			DropOff:     doc.DropOff,
		},
		DeliveryAddress: c.party(doc.To),
		PickupAddress:   c.party(doc.From),
	}
	if doc.CustomerReference != "" {
		req.Reference = doc.CustomerReference + " / " + doc.OrderID
	}

	resp, err := c.apiClient.CreateBooking(ctx, req)
	if err != nil {
		c.logger.Ctx(ctx).Error("Wuunder API error", zap.Error(err))
		err = wrapError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return shipper.ShipmentResult{}, err
	}
	span.SetAttributes(attribute.String("booking_id", resp.ID))

	processedBy := doc.ProcessedBy
	if processedBy == "" {
		processedBy = c.config.ProcessedBy
	}

	return shipper.ShipmentResult{
		OrderID:          doc.OrderID,
		WarehouseID:      doc.WarehouseID,
		ShippingCountry:  doc.To.CountryCode,
		ProviderID:       resp.ID,
		ShippingCompany:  carrierName,
		ShippingProvider: carrierName,
		TrackingURL:      resp.URL,
		Status:           shipper.StatusPending,
		RequestPickup:    c.requestPickup(ctx, doc),
		ProcessedBy:      processedBy,
		HasCallback:      true,
	}, nil
}

// PostPickups is a no-op: Wuunder schedules its own pickups.
func (c *Client) PostPickups(ctx context.Context, batches []shipper.PickupBatch) ([]shipper.PickupConfirmation, error) {
	c.logger.Ctx(ctx).Debug("Wuunder pickups are carrier managed", zap.Int("batches", len(batches)))
	return nil, nil
}

// UpdateTrackAndTrace is a no-op: tracking arrives through the webhook.
func (c *Client) UpdateTrackAndTrace(ctx context.Context, records []shipper.TrackingRecord) error {
	return nil
}

func (c *Client) party(a shipper.Address) BookingParty {
	phone := c.deps.Contacts.Normalize(a.Phone, a.CountryCode)
	return BookingParty{
		Business:     a.Business,
		GivenName:    a.GivenName,
		FamilyName:   a.FamilyName,
		Street:       a.Street,
		HouseNumber:  a.HouseNumber,
		Addition:     a.Street2,
		ZipCode:      a.ZipCode,
		Locality:     a.Locality,
		CountryCode:  a.CountryCode,
		Email:        a.Email,
		PhoneNumber:  phone.E164(),
		ChamberOfCom: a.ChamberOfCommerce,
	}
}

func (c *Client) requestPickup(ctx context.Context, doc *shipper.ShipmentDocument) bool {
	if doc.DropOff || c.deps.Warehouses == nil {
		return false
	}
	required, err := c.deps.Warehouses.RequiresPickup(ctx, doc.WarehouseID)
	if err != nil {
		c.logger.Ctx(ctx).Warn("Failed to read pickup requirement", zap.String("warehouse_id", doc.WarehouseID), zap.Error(err))
		return false
	}
	return required
}

func wrapError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code == "" {
			code = "HTTP_" + strconv.Itoa(apiErr.StatusCode)
		}
		return shipper.NewShipperError(carrierName, code, apiErr.Message).
			WithStatusCode(apiErr.StatusCode).
			WithRetryable(apiErr.StatusCode == 429 || apiErr.StatusCode >= 500).
			WithCause(err)
	}
	return shipper.NewShipperError(carrierName, "TRANSPORT", "request failed").
		WithRetryable(true).
		WithCause(err)
}
