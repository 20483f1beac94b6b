// Package dhl provides integration with the DHL Parcel API.
package dhl

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/fulfillment/pkg/contact"
	"github.com/tournevent/fulfillment/pkg/pickup"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const carrierName = shipper.CarrierDHL

// Config holds DHL configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	UseMock     bool
	Product     string // defaults to "DFY-B2C"
	VATNumber   string
	ProcessedBy string
}

// Deps are the collaborators the adapter reads from and writes to.
type Deps struct {
	Warehouses shipper.WarehouseData
	Labels     shipper.LabelStore
	Contacts   *contact.Normalizer
	Scheduler  *pickup.Scheduler
}

// Client is the DHL shipper client.
type Client struct {
	config    Config
	apiClient APIClient
	deps      Deps
	logger    *otelzap.Logger
	tracer    trace.Tracer

	doc shipper.Document
}

// New creates a new DHL client.
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

// NewWithAPIClient creates a new DHL client with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, deps Deps, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.Product == "" {
		cfg.Product = "DFY-B2C"
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

// CreateShipment books the bound shipment with DHL and stores its label.
func (c *Client) CreateShipment(ctx context.Context) (shipper.ShipmentResult, error) {
	doc, ok := c.doc.(*shipper.ShipmentDocument)
	if !ok {
		return shipper.ShipmentResult{}, fmt.Errorf("%w: %s adapter is not bound to a shipment", shipper.ErrUnsupportedOperation, carrierName)
	}

	ctx, span := c.tracer.Start(ctx, "dhl.CreateShipment", trace.WithAttributes(
		attribute.String("order_id", doc.OrderID),
	))
	defer span.End()

	c.logger.Ctx(ctx).Info("Creating DHL shipment",
		zap.String("order_id", doc.OrderID),
		zap.String("warehouse_id", doc.WarehouseID),
		zap.String("to_country", doc.To.CountryCode),
	)

	account, err := c.deps.Warehouses.AccountInfo(ctx, carrierName, doc.From.CountryCode)
	if err != nil || account == nil || account.AccountNumber == "" {
		e := shipper.NewShipperError(carrierName, "NO_ACCOUNT", "no DHL account for origin country "+doc.From.CountryCode)
		if err != nil {
			e = e.WithCause(err)
		}
		span.SetStatus(codes.Error, e.Error())
		return shipper.ShipmentResult{}, e
	}

	req := &ShipmentRequest{
		ShipmentID:     uuid.NewString(),
		AccountNumber:  account.AccountNumber,
		OrderReference: doc.CustomerReference + " / " + doc.WarehouseID,
		Product:        c.config.Product,
		Shipper:        c.party(doc.From),
		Receiver:       c.party(doc.To),
		Pieces:         []Piece{{ParcelType: "SMALL", Quantity: 1, Weight: 5}},
		LabelFormat:    "PDF",
	}
	req.Shipper.VATNumber = c.config.VATNumber

	resp, err := c.apiClient.CreateShipment(ctx, req)
	if err != nil {
		c.logger.Ctx(ctx).Error("DHL API error", zap.Error(err))
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
		ProviderID:       resp.ShipmentID,
		ShippingCompany:  carrierName,
		ShippingProvider: carrierName,
		LabelURL:         c.storeLabel(ctx, doc.OrderID, resp),
		TrackingNumber:   resp.TrackingNumber,
		TrackingURL:      "https://www.dhl.com/track?tracking-id=" + resp.TrackingNumber,
		Status:           shipper.StatusBooked,
		RequestPickup:    c.requestPickup(ctx, doc),
		ProcessedBy:      processedBy,
	}, nil
}

// PostPickups books one DHL pickup per batch.
func (c *Client) PostPickups(ctx context.Context, batches []shipper.PickupBatch) ([]shipper.PickupConfirmation, error) {
	if len(batches) == 0 {
		return nil, nil
	}
	s := &pickup.Submitter{
		Carrier:   carrierName,
		Scheduler: c.deps.Scheduler,
		Data:      c.deps.Warehouses,
		Logger:    c.logger,
	}
	return s.Submit(ctx, batches, c.bookPickup)
}

// UpdateTrackAndTrace refreshes the tracking state of every record.
func (c *Client) UpdateTrackAndTrace(ctx context.Context, records []shipper.TrackingRecord) error {
	return shipper.ForEachRecord(ctx, c.deps.Warehouses, records, c.track)
}

func (c *Client) bookPickup(ctx context.Context, b pickup.Booking) (string, error) {
	w := b.Warehouse
	account, err := c.deps.Warehouses.AccountInfo(ctx, carrierName, w.CountryCode)
	if err != nil || account == nil {
		return "", shipper.NewShipperError(carrierName, "NO_ACCOUNT", "no DHL account for "+w.CountryCode).WithCause(err)
	}

	phone := c.deps.Contacts.Normalize(w.Phone, w.CountryCode)
	pieces := make([]PickupPieces, 0, len(b.Countries))
	for _, cc := range b.Countries {
		pieces = append(pieces, PickupPieces{DestinationCountry: cc.Country, Quantity: cc.Count, ParcelType: "SMALL"})
	}

	req := &PickupRequest{
		AccountNumber: account.AccountNumber,
		PickupDate:    b.Date.Format(time.DateOnly),
		TimeSlot:      TimeSlot{From: "09:00", To: "17:00"},
		Address: Party{
			Name: Name{FirstName: w.FirstName, LastName: w.LastName, CompanyName: w.CompanyName},
			Address: Address{
				Street:      strings.TrimSpace(w.Address + " " + w.Address2),
				PostalCode:  w.PostalCode,
				City:        w.City,
				CountryCode: w.CountryCode,
				IsBusiness:  true,
			},
			Email: w.Email,
			Phone: phone.E164(),
		},
		Pieces:    pieces,
		Reference: w.LocationID,
	}

	resp, err := c.apiClient.CreatePickup(ctx, req)
	if err != nil {
		return "", wrapError(err)
	}
	return resp.ConfirmationNumber, nil
}

func (c *Client) track(ctx context.Context, rec shipper.TrackingRecord) (shipper.TrackingUpdate, error) {
	resp, err := c.apiClient.GetTracking(ctx, rec.TrackingNumber)
	if err != nil {
		return shipper.TrackingUpdate{}, wrapError(err)
	}
	if len(resp.Shipments) == 0 {
		return shipper.TrackingUpdate{}, shipper.NewShipperError(carrierName, "NOT_FOUND", "no tracking data for "+rec.TrackingNumber)
	}

	status := resp.Shipments[0].Status
	occurred, err := time.Parse(time.RFC3339, status.Timestamp)
	if err != nil {
		occurred = time.Now()
	}
	return shipper.TrackingUpdate{
		FulfillmentID:  rec.FulfillmentID,
		TrackingNumber: rec.TrackingNumber,
		Status:         mapStatus(status.StatusCode),
		Description:    status.Description,
		OccurredAt:     occurred,
	}, nil
}

func (c *Client) party(a shipper.Address) Party {
	phone := c.deps.Contacts.Normalize(a.Phone, a.CountryCode)
	return Party{
		Name: Name{FirstName: a.GivenName, LastName: a.FamilyName, CompanyName: a.Business},
		Address: Address{
			Street:      a.Street,
			Number:      a.HouseNumber,
			Addition:    a.Street2,
			PostalCode:  a.ZipCode,
			City:        a.Locality,
			CountryCode: a.CountryCode,
			IsBusiness:  a.Business != "",
		},
		Email: a.Email,
		Phone: phone.E164(),
	}
}

func (c *Client) storeLabel(ctx context.Context, orderID string, resp *ShipmentResponse) string {
	if c.deps.Labels == nil || resp.Label.Content == "" {
		return ""
	}
	logger := c.logger.Ctx(ctx)

	data, err := base64.StdEncoding.DecodeString(resp.Label.Content)
	if err != nil {
		logger.Error("DHL label is not valid base64", zap.String("order_id", orderID), zap.Error(err))
		return ""
	}

	ext, contentType := "pdf", "application/pdf"
	if strings.EqualFold(resp.Label.Format, "ZPL") {
		ext, contentType = "zpl", "application/zpl"
	}
	key := fmt.Sprintf("%s/shipping_label_dhl_%s.%s", orderID, resp.ShipmentID, ext)

	url, err := c.deps.Labels.PutLabel(ctx, key, contentType, data)
	if err != nil {
		logger.Error("Failed to store DHL label", zap.String("key", key), zap.Error(err))
		return ""
	}
	return url
}

func (c *Client) requestPickup(ctx context.Context, doc *shipper.ShipmentDocument) bool {
	if doc.DropOff {
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

func mapStatus(code string) shipper.ShipmentStatus {
	switch strings.ToLower(code) {
	case "pre-transit", "registered":
		return shipper.StatusBooked
	case "transit", "in-delivery":
		return shipper.StatusInTransit
	case "delivered":
		return shipper.StatusDelivered
	case "failure", "returned":
		return shipper.StatusException
	case "cancelled":
		return shipper.StatusCancelled
	default:
		return shipper.StatusPending
	}
}
