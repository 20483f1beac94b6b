// Package shipper provides an abstraction layer for shipping carriers.
package shipper

import (
	"context"
)

// Shipper is a carrier backend registered with the Registry.
// A Shipper is long-lived; Bind produces a per-request Adapter.
type Shipper interface {
	// Name returns the carrier identifier (e.g., "UPS", "DHL", "MANUAL").
	Name() string

	// Bind returns an Adapter carrying doc. The document is attached at
	// construction and never mutated afterwards.
	Bind(doc Document) Adapter
}

// Adapter executes carrier operations for a single bound document.
type Adapter interface {
	// Carrier returns the carrier identifier the adapter is bound to.
	Carrier() string

	// CreateShipment books the bound shipment document with the carrier.
	CreateShipment(ctx context.Context) (ShipmentResult, error)

	// PostPickups submits one pickup per batch. Every batch gets a
	// confirmation; a failed batch carries its error in Err.
	PostPickups(ctx context.Context, batches []PickupBatch) ([]PickupConfirmation, error)

	// UpdateTrackAndTrace synchronizes tracking state for each record.
	// Failures are isolated per record and returned joined.
	UpdateTrackAndTrace(ctx context.Context, records []TrackingRecord) error
}

// WarehouseData is the warehouse and account data collaborator.
type WarehouseData interface {
	WarehouseInfo(ctx context.Context, locationID string) (*Warehouse, error)
	AccountInfo(ctx context.Context, carrier, countryCode string) (*Account, error)
	PendingPickups(ctx context.Context, carrier string) ([]PickupRequest, error)
	PendingTrackingUpdates(ctx context.Context, carrier string) ([]TrackingRecord, error)
	MarkPickupBooked(ctx context.Context, fulfillmentID int64) error
	RequiresPickup(ctx context.Context, locationID string) (bool, error)
	SaveTrackingUpdate(ctx context.Context, update TrackingUpdate) error
}

// LabelStore persists shipping labels and returns their public URL.
type LabelStore interface {
	PutLabel(ctx context.Context, key, contentType string, data []byte) (string, error)
}
