// Package manual provides the carrier used when a dealer ships an order
// outside any integrated carrier. It makes no external calls.
package manual

import (
	"context"
	"fmt"

	"github.com/tournevent/fulfillment/pkg/shipper"
)

const carrierName = shipper.CarrierManual

// Client is the manual shipper.
type Client struct {
	processedBy string
	doc         shipper.Document
}

// New creates a manual shipper. processedBy is used when a document does
// not name who processed it.
func New(processedBy string) *Client {
	return &Client{processedBy: processedBy}
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
	return &Client{processedBy: c.processedBy, doc: doc}
}

// CreateShipment records a manual shipment.
func (c *Client) CreateShipment(ctx context.Context) (shipper.ShipmentResult, error) {
	doc, ok := c.doc.(*shipper.ShipmentDocument)
	if !ok {
		return shipper.ShipmentResult{}, fmt.Errorf("%w: %s adapter is not bound to a shipment", shipper.ErrUnsupportedOperation, carrierName)
	}
	if err := ctx.Err(); err != nil {
		return shipper.ShipmentResult{}, err
	}

	processedBy := doc.ProcessedBy
	if processedBy == "" {
		processedBy = c.processedBy
	}
	return shipper.ShipmentResult{
		OrderID:          doc.OrderID,
		WarehouseID:      doc.WarehouseID,
		ShippingCountry:  doc.To.CountryCode,
		ShippingCompany:  carrierName,
		ShippingProvider: carrierName,
		Status:           shipper.StatusBooked,
		ProcessedBy:      processedBy,
	}, nil
}

// PostPickups is a no-op.
func (c *Client) PostPickups(ctx context.Context, batches []shipper.PickupBatch) ([]shipper.PickupConfirmation, error) {
	return nil, nil
}

// UpdateTrackAndTrace is a no-op.
func (c *Client) UpdateTrackAndTrace(ctx context.Context, records []shipper.TrackingRecord) error {
	return nil
}

var (
	_ shipper.Shipper = (*Client)(nil)
	_ shipper.Adapter = (*Client)(nil)
)
