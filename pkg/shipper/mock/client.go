// Package mock provides in-memory shipper, warehouse data and label store
// implementations for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Client is a mock shipper. It records the documents it was bound to and
// the calls made on its adapters.
type Client struct {
	name string

	// HasCallback is copied into created shipment results.
	HasCallback bool

	// Err* make the matching operation fail when set.
	ErrCreate error
	ErrPickup error
	ErrTrack  error

	mu        sync.Mutex
	bound     []shipper.Document
	created   []shipper.ShipmentResult
	batches   []shipper.PickupBatch
	tracked   []shipper.TrackingRecord
	sequence  int
	createdAt func() time.Time
}

// New creates a new mock shipper.
func New(name string) *Client {
	return &Client{name: name, createdAt: time.Now}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// Bind records doc and returns an adapter bound to it.
func (c *Client) Bind(doc shipper.Document) shipper.Adapter {
	c.mu.Lock()
	c.bound = append(c.bound, doc)
	c.mu.Unlock()
	return &adapter{client: c, doc: doc}
}

// Bound returns the documents the shipper was bound to.
func (c *Client) Bound() []shipper.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]shipper.Document(nil), c.bound...)
}

// Created returns the shipment results produced so far.
func (c *Client) Created() []shipper.ShipmentResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]shipper.ShipmentResult(nil), c.created...)
}

// PickupBatches returns every batch submitted for pickup.
func (c *Client) PickupBatches() []shipper.PickupBatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]shipper.PickupBatch(nil), c.batches...)
}

// Tracked returns every record passed to UpdateTrackAndTrace.
func (c *Client) Tracked() []shipper.TrackingRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]shipper.TrackingRecord(nil), c.tracked...)
}

type adapter struct {
	client *Client
	doc    shipper.Document
}

func (a *adapter) Carrier() string {
	return a.client.name
}

func (a *adapter) CreateShipment(ctx context.Context) (shipper.ShipmentResult, error) {
	doc, ok := a.doc.(*shipper.ShipmentDocument)
	if !ok {
		return shipper.ShipmentResult{}, fmt.Errorf("%w: mock adapter is not bound to a shipment", shipper.ErrUnsupportedOperation)
	}
	c := a.client
	if c.ErrCreate != nil {
		return shipper.ShipmentResult{}, c.ErrCreate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequence++
	tracking := fmt.Sprintf("%s%010d", c.name, c.sequence)

	result := shipper.ShipmentResult{
		OrderID:          doc.OrderID,
		WarehouseID:      doc.WarehouseID,
		ShippingCountry:  doc.To.CountryCode,
		ProviderID:       fmt.Sprintf("%s-%d", c.name, c.createdAt().UnixNano()),
		ShippingCompany:  c.name,
		ShippingProvider: c.name,
		LabelURL:         fmt.Sprintf("https://labels.%s.mock/%s.pdf", c.name, doc.OrderID),
		TrackingNumber:   tracking,
		TrackingURL:      fmt.Sprintf("https://track.%s.mock/%s", c.name, tracking),
		Status:           shipper.StatusBooked,
		RequestPickup:    !doc.DropOff,
		ProcessedBy:      doc.ProcessedBy,
		HasCallback:      c.HasCallback,
	}
	c.created = append(c.created, result)
	return result, nil
}

func (a *adapter) PostPickups(ctx context.Context, batches []shipper.PickupBatch) ([]shipper.PickupConfirmation, error) {
	c := a.client
	c.mu.Lock()
	c.batches = append(c.batches, batches...)
	c.mu.Unlock()

	out := make([]shipper.PickupConfirmation, len(batches))
	for i, b := range batches {
		out[i] = shipper.PickupConfirmation{
			LocationID: b.LocationID,
			Carrier:    c.name,
			Requests:   len(b.Pickups),
			Err:        c.ErrPickup,
		}
		if c.ErrPickup == nil {
			out[i].Reference = fmt.Sprintf("%s-pickup-%s", c.name, b.LocationID)
		}
	}
	return out, nil
}

func (a *adapter) UpdateTrackAndTrace(ctx context.Context, records []shipper.TrackingRecord) error {
	c := a.client
	c.mu.Lock()
	c.tracked = append(c.tracked, records...)
	c.mu.Unlock()
	return c.ErrTrack
}

var _ shipper.Shipper = (*Client)(nil)
