package shipper

import (
	"time"
)

// RequestType tags the kind of operation a document is built for.
type RequestType string

const (
	RequestShipment RequestType = "Shipment"
	RequestPickup   RequestType = "Pickup"
	RequestUpdate   RequestType = "Update"
)

// PreferenceKind tells how a carrier preference on a shipment was expressed.
type PreferenceKind int

const (
	// PreferenceNone means no carrier was named; routing decides.
	PreferenceNone PreferenceKind = iota
	// PreferenceSoft is a suggestion that routing may override.
	PreferenceSoft
	// PreferenceExplicit is a user selection that must be honored or rejected.
	PreferenceExplicit
)

// String returns the preference name.
func (p PreferenceKind) String() string {
	switch p {
	case PreferenceSoft:
		return "soft"
	case PreferenceExplicit:
		return "explicit"
	default:
		return "none"
	}
}

// Carrier identifiers known to the service.
const (
	CarrierUPS      = "UPS"
	CarrierDHL      = "DHL"
	CarrierWuunder  = "WUUNDER"
	CarrierPacklink = "PACKLINK"
	CarrierManual   = "MANUAL"
)

// ShipmentStatus represents the normalized status of a shipment.
type ShipmentStatus string

const (
	StatusPending   ShipmentStatus = "pending"
	StatusBooked    ShipmentStatus = "booked"
	StatusInTransit ShipmentStatus = "in_transit"
	StatusDelivered ShipmentStatus = "delivered"
	StatusCancelled ShipmentStatus = "cancelled"
	StatusException ShipmentStatus = "exception"
)

// Address represents a shipping address.
type Address struct {
	Business     string
	GivenName    string
	FamilyName   string
	Street       string
	Street2      string
	HouseNumber  string
	ZipCode      string
	Locality     string
	ProvinceCode string
	CountryCode  string // ISO 3166-1 alpha-2, upper case
	Phone        string
	Email        string
	// ChamberOfCommerce is the sender's registration number, used for customs.
	ChamberOfCommerce string
}

// FullName joins business, given and family name.
func (a Address) FullName() string {
	name := a.GivenName
	if a.FamilyName != "" {
		if name != "" {
			name += " "
		}
		name += a.FamilyName
	}
	if a.Business != "" {
		if name != "" {
			return a.Business + " " + name
		}
		return a.Business
	}
	return name
}

// FulfillmentLine is one order line shipped in a fulfillment.
type FulfillmentLine struct {
	LineID   string
	Quantity int
}

// Warehouse describes a pickup location.
type Warehouse struct {
	LocationID  string
	CompanyName string
	FirstName   string
	LastName    string
	Address     string
	Address2    string
	City        string
	PostalCode  string
	CountryCode string
	Email       string
	Phone       string
}

// Account holds the carrier account used for a given origin country.
type Account struct {
	Carrier       string
	CountryCode   string
	AccountNumber string
}

// ShipmentResult is the carrier-agnostic outcome of a shipment creation.
// It is produced once by an Adapter and never modified afterwards.
type ShipmentResult struct {
	OrderID          string
	WarehouseID      string
	ShippingCountry  string // destination, ISO 3166-1 alpha-2
	ProviderID       string
	ShippingCompany  string
	ShippingProvider string
	LabelURL         string
	TrackingNumber   string
	TrackingURL      string
	Status           ShipmentStatus
	RequestPickup    bool
	ProcessedBy      string
	HasCallback      bool
}

// PickupRequest is a single pending pickup, one per fulfillment.
type PickupRequest struct {
	WarehouseID     string
	ShippingCountry string
	FulfillmentID   int64
	OrderID         string
}

// PickupBatch is the set of pending pickups for one origin location.
type PickupBatch struct {
	LocationID string
	Pickups    []PickupRequest
}

// CountryPickupCount is the number of packages going to one destination country.
type CountryPickupCount struct {
	Country string
	Count   int
}

// PickupConfirmation is the per-location result of a pickup submission.
type PickupConfirmation struct {
	LocationID string
	Carrier    string
	PickupDate time.Time
	Reference  string
	Countries  []CountryPickupCount
	Requests   int
	Err        error
}

// TrackingRecord is a shipment whose tracking state should be refreshed.
type TrackingRecord struct {
	FulfillmentID  int64
	TrackingNumber string
	Status         ShipmentStatus
}

// TrackingUpdate is the latest carrier state for a tracking record.
type TrackingUpdate struct {
	FulfillmentID  int64
	TrackingNumber string
	Status         ShipmentStatus
	Description    string
	OccurredAt     time.Time
}
