// Package ups provides integration with the UPS shipping, pickup and
// tracking APIs.
package ups

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

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

const carrierName = shipper.CarrierUPS

const (
	serviceStandard  = "11"
	containerPackage = "01"
	readyTime        = "0900"
	closeTime        = "1700"
	transIDLayout    = "20060102150405"
)

// Config holds UPS configuration.
type Config struct {
	AccessLicenseNumber string
	Username            string
	Password            string
	TransactionSrc      string
	BaseURL             string
	UseMock             bool // When true, uses mock API client

	ServiceCode       string // defaults to UPS Standard
	ShipperName       string // organisation name printed as shipper
	TaxID             string
	ProcessedBy       string // default processed_by of created shipments
	UndeliverableMail string
}

// Deps are the collaborators the adapter reads from and writes to.
type Deps struct {
	Warehouses shipper.WarehouseData
	Labels     shipper.LabelStore
	Contacts   *contact.Normalizer
	Scheduler  *pickup.Scheduler
}

// Client is the UPS shipper client. An unbound Client is registered as a
// shipper.Shipper; Bind returns a copy carrying the request document.
type Client struct {
	config    Config
	apiClient APIClient
	deps      Deps
	logger    *otelzap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	doc shipper.Document
}

// New creates a new UPS client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, deps Deps, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:             cfg.BaseURL,
			AccessLicenseNumber: cfg.AccessLicenseNumber,
			Username:            cfg.Username,
			Password:            cfg.Password,
			TransactionSrc:      cfg.TransactionSrc,
			Timeout:             30 * time.Second,
		})
	}

	return NewWithAPIClient(cfg, apiClient, deps, logger, tracer)
}

// NewWithAPIClient creates a new UPS client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, deps Deps, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.ServiceCode == "" {
		cfg.ServiceCode = serviceStandard
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
		now:       time.Now,
	}
}

// WithClock returns a copy of c using now as its time source.
func (c *Client) WithClock(now func() time.Time) *Client {
	cp := *c
	cp.now = now
	return &cp
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

// CreateShipment books the bound shipment with UPS and stores its label.
func (c *Client) CreateShipment(ctx context.Context) (shipper.ShipmentResult, error) {
	doc, ok := c.doc.(*shipper.ShipmentDocument)
	if !ok {
		return shipper.ShipmentResult{}, fmt.Errorf("%w: %s adapter is not bound to a shipment", shipper.ErrUnsupportedOperation, carrierName)
	}

	ctx, span := c.tracer.Start(ctx, "ups.CreateShipment", trace.WithAttributes(
		attribute.String("order_id", doc.OrderID),
		attribute.String("warehouse_id", doc.WarehouseID),
	))
	defer span.End()

	logger := c.logger.Ctx(ctx)
	logger.Info("Creating UPS shipment",
		zap.String("order_id", doc.OrderID),
		zap.String("warehouse_id", doc.WarehouseID),
		zap.String("from_country", doc.From.CountryCode),
		zap.String("to_country", doc.To.CountryCode),
	)

	account, err := c.account(ctx, doc.From.CountryCode)
	if err != nil {
		recordError(span, err)
		return shipper.ShipmentResult{}, err
	}

	transID := c.transID(doc.WarehouseID)
	resp, err := c.apiClient.CreateShipment(ctx, transID, c.shipmentRequest(doc, account))
	if err != nil {
		logger.Error("UPS API error", zap.String("trans_id", transID), zap.Error(err))
		err = wrapError(err)
		recordError(span, err)
		return shipper.ShipmentResult{}, err
	}

	results := resp.ShipmentResponse.ShipmentResults
	shipmentID := results.ShipmentIdentificationNumber
	trackingNumber := results.PackageResults.TrackingNumber

	return shipper.ShipmentResult{
		OrderID:          doc.OrderID,
		WarehouseID:      doc.WarehouseID,
		ShippingCountry:  doc.To.CountryCode,
		ProviderID:       shipmentID,
		ShippingCompany:  carrierName,
		ShippingProvider: carrierName,
		LabelURL:         c.storeLabel(ctx, transID, doc.OrderID, shipmentID, trackingNumber, results.PackageResults.ShippingLabel.GraphicImage),
		TrackingNumber:   trackingNumber,
		TrackingURL:      "https://www.ups.com/track?tracknum=" + trackingNumber,
		Status:           shipper.StatusBooked,
		RequestPickup:    c.requestPickup(ctx, doc),
		ProcessedBy:      c.processedBy(doc),
		HasCallback:      false,
	}, nil
}

// PostPickups books one UPS pickup per batch.
func (c *Client) PostPickups(ctx context.Context, batches []shipper.PickupBatch) ([]shipper.PickupConfirmation, error) {
	if len(batches) == 0 {
		return nil, nil
	}
	ctx, span := c.tracer.Start(ctx, "ups.PostPickups", trace.WithAttributes(attribute.Int("batches", len(batches))))
	defer span.End()

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
	ctx, span := c.tracer.Start(ctx, "ups.UpdateTrackAndTrace", trace.WithAttributes(attribute.Int("records", len(records))))
	defer span.End()

	err := shipper.ForEachRecord(ctx, c.deps.Warehouses, records, c.track)
	if err != nil {
		recordError(span, err)
	}
	return err
}

func (c *Client) bookPickup(ctx context.Context, b pickup.Booking) (string, error) {
	w := b.Warehouse
	account, err := c.account(ctx, w.CountryCode)
	if err != nil {
		return "", err
	}

	phone := c.deps.Contacts.Normalize(w.Phone, w.CountryCode)
	pieces := make([]PickupPiece, 0, len(b.Countries))
	for _, cc := range b.Countries {
		pieces = append(pieces, PickupPiece{
			ServiceCode:            c.config.ServiceCode,
			Quantity:               strconv.Itoa(cc.Count),
			DestinationCountryCode: cc.Country,
			ContainerCode:          containerPackage,
		})
	}

	addressLine := w.Address
	if w.Address2 != "" {
		addressLine += " " + w.Address2
	}

	req := &PickupCreationRequest{PickupCreationRequest: PickupCreation{
		RatePickupIndicator: "N",
		Shipper: PickupShipper{Account: PickupAccount{
			AccountNumber:      account.AccountNumber,
			AccountCountryCode: account.CountryCode,
		}},
		PickupDateInfo: PickupDateInfo{
			CloseTime:  closeTime,
			ReadyTime:  readyTime,
			PickupDate: b.Date.Format("20060102"),
		},
		PickupAddress: PickupAddress{
			CompanyName:          truncate(w.CompanyName, 27),
			ContactName:          truncate(w.FirstName+" "+w.LastName, 22),
			AddressLine:          truncate(addressLine, 73),
			City:                 w.City,
			PostalCode:           truncate(w.PostalCode, 8),
			CountryCode:          w.CountryCode,
			ResidentialIndicator: "N",
			Phone: Phone{
				Number:    "00" + phone.CountryCode + phone.Number,
				Extension: phone.Extension,
			},
		},
		AlternateAddressIndicator: "Y",
		PickupPiece:               pieces,
		OverweightIndicator:       "N",
		PaymentMethod:             "01",
		Notification: PickupNotification{
			ConfirmationEmailAddress:  w.Email,
			UndeliverableEmailAddress: c.config.UndeliverableMail,
		},
	}}

	resp, err := c.apiClient.CreatePickup(ctx, c.transID(w.LocationID), req)
	if err != nil {
		return "", wrapError(err)
	}
	return resp.PickupCreationResponse.PRN, nil
}

func (c *Client) track(ctx context.Context, rec shipper.TrackingRecord) (shipper.TrackingUpdate, error) {
	resp, err := c.apiClient.GetTracking(ctx, c.transID(strconv.FormatInt(rec.FulfillmentID, 10)), rec.TrackingNumber)
	if err != nil {
		return shipper.TrackingUpdate{}, wrapError(err)
	}

	activity, ok := resp.Latest()
	if !ok {
		return shipper.TrackingUpdate{}, shipper.NewShipperError(carrierName, "NO_ACTIVITY", "no tracking activity for "+rec.TrackingNumber)
	}

	occurred, err := time.Parse("20060102150405", activity.Date+activity.Time)
	if err != nil {
		occurred = c.now()
	}

	return shipper.TrackingUpdate{
		FulfillmentID:  rec.FulfillmentID,
		TrackingNumber: rec.TrackingNumber,
		Status:         mapActivityType(activity.Status.Type),
		Description:    activity.Status.Description,
		OccurredAt:     occurred,
	}, nil
}

func (c *Client) shipmentRequest(doc *shipper.ShipmentDocument, account *shipper.Account) *ShipmentRequest {
	fromPhone := c.deps.Contacts.Normalize(doc.From.Phone, doc.From.CountryCode)
	toPhone := c.deps.Contacts.Normalize(doc.To.Phone, doc.To.CountryCode)
	org := c.deps.Contacts.Fallback()
	reference := doc.CustomerReference + " / " + doc.WarehouseID

	fromLine := doc.From.Street
	if doc.From.Street2 != "" {
		fromLine += " " + doc.From.Street2
	}
	toLine := doc.To.Street
	if doc.To.HouseNumber != "" {
		toLine += " " + doc.To.HouseNumber
	}

	return &ShipmentRequest{ShipmentRequest: ShipmentRequestBody{
		Request: RequestOption{RequestOption: "validate"},
		Shipment: Shipment{
			Description: reference,
			Shipper: Party{
				Name:                    truncate(c.config.ShipperName, 35),
				AttentionName:           truncate(c.config.ProcessedBy, 35),
				CompanyDisplayableName:  truncate(c.config.ShipperName, 35),
				TaxIdentificationNumber: c.config.TaxID,
				Phone:                   Phone{Number: org.Number, Extension: org.Extension},
				ShipperNumber:           account.AccountNumber,
				Address:                 upsAddress(fromLine, doc.From),
			},
			ShipFrom: Party{
				Name:                    truncate(doc.From.FullName(), 35),
				AttentionName:           "Mr/Ms",
				TaxIdentificationNumber: doc.From.ChamberOfCommerce,
				Phone:                   Phone{Number: fromPhone.CountryCode + fromPhone.Number, Extension: fromPhone.Extension},
				Address:                 upsAddress(fromLine, doc.From),
			},
			ShipTo: Party{
				Name:          truncate(doc.To.FullName(), 35),
				AttentionName: "Mr/Mrs",
				Phone:         Phone{Number: toPhone.CountryCode + toPhone.Number, Extension: toPhone.Extension},
				Address:       upsAddress(toLine, doc.To),
			},
			PaymentInformation: PaymentInformation{ShipmentCharge: ShipmentCharge{
				Type:        "01",
				BillShipper: BillShipper{AccountNumber: account.AccountNumber},
			}},
			ReferenceNumber: CodeValue{Code: "ON", Value: reference},
			Service:         CodeDescription{Code: c.config.ServiceCode, Description: "Standard"},
			Package: Package{
				Description: "Customer Supplied",
				Packaging:   CodeDescription{Code: "02", Description: "Customer Supplied"},
				PackageWeight: PackageWeight{
					UnitOfMeasurement: CodeDescription{Code: "KGS", Description: "Kilo"},
					Weight:            "5",
				},
			},
		},
		LabelSpecification: LabelSpecification{LabelImageFormat: CodeDescription{Code: "PNG"}},
	}}
}

func upsAddress(line string, a shipper.Address) Address {
	return Address{
		AddressLine:       truncate(line, 35),
		City:              truncate(a.Locality, 30),
		PostalCode:        truncate(a.ZipCode, 9),
		CountryCode:       a.CountryCode,
		StateProvinceCode: a.ProvinceCode,
	}
}

// storeLabel recovers the PDF label, falling back to the PNG returned at
// creation, and uploads it. Failures are logged and yield an empty URL.
func (c *Client) storeLabel(ctx context.Context, transID, orderID, shipmentID, trackingNumber, pngLabel string) string {
	logger := c.logger.Ctx(ctx)

	image, ext, contentType := pngLabel, "png", "image/png"

	recovery := &LabelRecoveryRequest{}
	recovery.LabelRecoveryRequest.TrackingNumber = trackingNumber
	recovery.LabelRecoveryRequest.LabelSpecification.LabelImageFormat = CodeDescription{Code: "PDF"}
	if resp, err := c.apiClient.RecoverLabel(ctx, transID, recovery); err != nil {
		logger.Warn("UPS label recovery failed, using PNG label",
			zap.String("order_id", orderID),
			zap.String("tracking_number", trackingNumber),
			zap.Error(err),
		)
	} else {
		image, ext, contentType = resp.LabelRecoveryResponse.LabelResults.LabelImage.GraphicImage, "pdf", "application/pdf"
	}

	if c.deps.Labels == nil {
		return ""
	}

	data, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		logger.Error("UPS label is not valid base64", zap.String("order_id", orderID), zap.Error(err))
		return ""
	}

	key := fmt.Sprintf("%s/shipping_label_ups_%s.%s", orderID, shipmentID, ext)
	url, err := c.deps.Labels.PutLabel(ctx, key, contentType, data)
	if err != nil {
		logger.Error("Failed to store UPS label", zap.String("key", key), zap.Error(err))
		return ""
	}
	return url
}

func (c *Client) account(ctx context.Context, country string) (*shipper.Account, error) {
	account, err := c.deps.Warehouses.AccountInfo(ctx, carrierName, country)
	if err != nil || account == nil || account.AccountNumber == "" {
		e := shipper.NewShipperError(carrierName, "NO_ACCOUNT", "no UPS account for origin country "+country)
		if err != nil {
			e = e.WithCause(err)
		}
		return nil, e
	}
	return account, nil
}

func (c *Client) requestPickup(ctx context.Context, doc *shipper.ShipmentDocument) bool {
	if doc.DropOff {
		return false
	}
	required, err := c.deps.Warehouses.RequiresPickup(ctx, doc.WarehouseID)
	if err != nil {
		c.logger.Ctx(ctx).Warn("Failed to read pickup requirement",
			zap.String("warehouse_id", doc.WarehouseID),
			zap.Error(err),
		)
		return false
	}
	return required
}

func (c *Client) processedBy(doc *shipper.ShipmentDocument) string {
	if doc.ProcessedBy != "" {
		return doc.ProcessedBy
	}
	return c.config.ProcessedBy
}

func (c *Client) transID(location string) string {
	return location + "-" + c.now().Format(transIDLayout)
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

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func mapActivityType(t string) shipper.ShipmentStatus {
	switch t {
	case "M":
		return shipper.StatusBooked
	case "P", "I":
		return shipper.StatusInTransit
	case "D":
		return shipper.StatusDelivered
	case "X":
		return shipper.StatusException
	default:
		return shipper.StatusPending
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
