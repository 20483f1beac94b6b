package store

import (
	"time"

	"github.com/tournevent/fulfillment/pkg/shipper"
)

// WarehouseDTO is a dealer warehouse and pickup location.
type WarehouseDTO struct {
	LocationID     string `gorm:"primaryKey"`
	CompanyName    string
	FirstName      string
	LastName       string
	Address        string
	Address2       string
	City           string
	PostalCode     string
	CountryCode    string `gorm:"size:2"`
	Email          string
	Phone          string
	RequiresPickup bool
}

// TableName overrides the GORM table name.
func (WarehouseDTO) TableName() string {
	return "warehouses"
}

func (w WarehouseDTO) toDomain() *shipper.Warehouse {
	return &shipper.Warehouse{
		LocationID:  w.LocationID,
		CompanyName: w.CompanyName,
		FirstName:   w.FirstName,
		LastName:    w.LastName,
		Address:     w.Address,
		Address2:    w.Address2,
		City:        w.City,
		PostalCode:  w.PostalCode,
		CountryCode: w.CountryCode,
		Email:       w.Email,
		Phone:       w.Phone,
	}
}

// AccountDTO is a carrier account for one origin country.
type AccountDTO struct {
	Carrier       string `gorm:"primaryKey"`
	CountryCode   string `gorm:"primaryKey;size:2"`
	AccountNumber string
}

// TableName overrides the GORM table name.
func (AccountDTO) TableName() string {
	return "carrier_accounts"
}

// FulfillmentDTO is a shipment booked for (part of) an order.
type FulfillmentDTO struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	OrderID          string `gorm:"index"`
	WarehouseID      string `gorm:"index"`
	ShippingCountry  string `gorm:"size:2"`
	ProviderID       string
	ShippingCompany  string
	ShippingProvider string `gorm:"index"`
	LabelURL         string
	TrackingNumber   string
	TrackingURL      string
	Status           string
	RequestPickup    bool
	PickupBooked     bool
	ProcessedBy      string
	HasCallback      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName overrides the GORM table name.
func (FulfillmentDTO) TableName() string {
	return "fulfillments"
}

func fulfillmentFromResult(r shipper.ShipmentResult) FulfillmentDTO {
	return FulfillmentDTO{
		OrderID:          r.OrderID,
		WarehouseID:      r.WarehouseID,
		ShippingCountry:  r.ShippingCountry,
		ProviderID:       r.ProviderID,
		ShippingCompany:  r.ShippingCompany,
		ShippingProvider: r.ShippingProvider,
		LabelURL:         r.LabelURL,
		TrackingNumber:   r.TrackingNumber,
		TrackingURL:      r.TrackingURL,
		Status:           string(r.Status),
		RequestPickup:    r.RequestPickup,
		ProcessedBy:      r.ProcessedBy,
		HasCallback:      r.HasCallback,
	}
}

// FulfilledLineDTO is an order line shipped in a fulfillment.
type FulfilledLineDTO struct {
	ID            int64 `gorm:"primaryKey;autoIncrement"`
	FulfillmentID int64 `gorm:"index"`
	LineID        string
	Quantity      int
}

// TableName overrides the GORM table name.
func (FulfilledLineDTO) TableName() string {
	return "fulfilled_lines"
}

// TrackingEventDTO is a tracking state reported by a carrier.
type TrackingEventDTO struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	FulfillmentID  int64 `gorm:"index"`
	TrackingNumber string
	Status         string
	Description    string
	OccurredAt     time.Time
	CreatedAt      time.Time
}

// TableName overrides the GORM table name.
func (TrackingEventDTO) TableName() string {
	return "tracking_events"
}

// Models lists every table managed by the store.
func Models() []any {
	return []any{&WarehouseDTO{}, &AccountDTO{}, &FulfillmentDTO{}, &FulfilledLineDTO{}, &TrackingEventDTO{}}
}
