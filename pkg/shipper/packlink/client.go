// Package packlink provides integration with the Packlink PRO API.
package packlink

import (
	"context"
	"errors"
	"fmt"
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

const carrierName = shipper.CarrierPacklink

// Config holds Packlink configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	UseMock     bool
	Source      string // defaults to "fulfillment"
	ProcessedBy string
}

// Deps are the collaborators the adapter reads from.
type Deps struct {
	Warehouses shipper.WarehouseData
	Contacts   *contact.Normalizer
}

// Client is the Packlink shipper client.
type Client struct {
	config    Config
	apiClient APIClient
	deps      Deps
	logger    *otelzap.Logger
	tracer    trace.Tracer

	doc shipper.Document
}

// New creates a new Packlink client.
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

// NewWithAPIClient creates a new Packlink client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, deps Deps, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.Source == "" {
		cfg.Source = "fulfillment"
	}
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

// CreateShipment creates a draft Packlink shipment. The dealer completes it
// in Packlink PRO and the result arrives through the webhook.
func (c *Client) CreateShipment(ctx context.Context) (shipper.ShipmentResult, error) {
	doc, ok := c.doc.(*shipper.ShipmentDocument)
	if !ok {
		return shipper.ShipmentResult{}, fmt.Errorf("%w: %s adapter is not bound to a shipment", shipper.ErrUnsupportedOperation, carrierName)
	}

	ctx, span := c.tracer.Start(ctx, "packlink.CreateDraft", trace.WithAttributes(
		attribute.String("order_id", doc.OrderID),
	))
	defer span.End()

	c.logger.Ctx(ctx).Info("Creating Packlink draft shipment",
		zap.String("order_id", doc.OrderID),
		zap.String("warehouse_id", doc.WarehouseID),
	)

	packages := make([]Package, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		for i := 0; i < l.Quantity; i++ {
			packages = append(packages, Package{Weight: 1, Width: 20, Height: 20, Length: 20})
		}
	}

	resp, err := c.apiClient.CreateDraft(ctx, &DraftRequest{
		From:             c.party(doc.From),
		To:               c.party(doc.To),
		Packages:         packages,
		Content:          "Order " + doc.OrderID,
		ShipmentCustomID: doc.OrderID,
		Source:           c.config.Source,
	})
	if err != nil {
		c.logger.Ctx(ctx).Error("Packlink API error", zap.Error(err))
		err = wrapError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return shipper.ShipmentResult{}, err
	}

	processedBy := doc.ProcessedBy
	if processedBy == "" {
		processedBy = c.config.ProcessedBy
	}

	return shipper.ShipmentResult{
		OrderID:          doc.OrderID,
		WarehouseID:      doc.WarehouseID,
		ShippingCountry:  doc.To.CountryCode,
		ProviderID:       resp.Reference,
		ShippingCompany:  carrierName,
		ShippingProvider: carrierName,
		Status:           shipper.StatusPending,
		RequestPickup:    c.requestPickup(ctx, doc),
		ProcessedBy:      processedBy,
		HasCallback:      true,
	}, nil
}

// Labels returns the label URLs of a completed Packlink shipment.
func (c *Client) Labels(ctx context.Context, reference string) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "packlink.GetLabels", trace.WithAttributes(
		attribute.String("reference", reference),
	))
	defer span.End()

	urls, err := c.apiClient.GetLabels(ctx, reference)
	if err != nil {
		err = wrapError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return urls, nil
}

// PostPickups is a no-op: pickups are booked in Packlink PRO.
func (c *Client) PostPickups(ctx context.Context, batches []shipper.PickupBatch) ([]shipper.PickupConfirmation, error) {
	return nil, nil
}

// UpdateTrackAndTrace is a no-op: tracking arrives through the webhook.
func (c *Client) UpdateTrackAndTrace(ctx context.Context, records []shipper.TrackingRecord) error {
	return nil
}

func (c *Client) party(a shipper.Address) Party {
	phone := c.deps.Contacts.Normalize(a.Phone, a.CountryCode)
	street := a.Street
	if a.HouseNumber != "" {
		street += " " + a.HouseNumber
	}
	return Party{
		Name:     a.GivenName,
		Surname:  a.FamilyName,
		Company:  a.Business,
		Street1:  street,
		Street2:  a.Street2,
		ZipCode:  a.ZipCode,
		City:     a.Locality,
		Country:  a.CountryCode,
		Email:    a.Email,
		Phone:    phone.E164(),
		Province: a.ProvinceCode,
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
		return shipper.NewShipperError(carrierName, apiErr.Code, apiErr.Message).
			WithStatusCode(apiErr.StatusCode).
			WithRetryable(apiErr.StatusCode == 429 || apiErr.StatusCode >= 500).
			WithCause(err)
	}
	return shipper.NewShipperError(carrierName, "TRANSPORT", "request failed").
		WithRetryable(true).
		WithCause(err)
}
