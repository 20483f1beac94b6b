package dhl

import (
	"context"
	"fmt"
)

// APIClient defines the DHL Parcel operations the adapter needs.
type APIClient interface {
	// CreateShipment books a shipment and returns its label: POST /shipments
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)

	// CreatePickup books a pickup: POST /pickups
	CreatePickup(ctx context.Context, req *PickupRequest) (*PickupResponse, error)

	// GetTracking returns the status of a shipment: GET /track/shipments
	GetTracking(ctx context.Context, trackingNumber string) (*TrackingResponse, error)
}

// ============================================================================
// API Request/Response Types
// ============================================================================

// ShipmentRequest is the body of POST /shipments.
type ShipmentRequest struct {
	ShipmentID     string  `json:"shipmentId"`
	AccountNumber  string  `json:"accountId"`
	OrderReference string  `json:"orderReference"`
	Product        string  `json:"product"`
	Shipper        Party   `json:"shipper"`
	Receiver       Party   `json:"receiver"`
	Pieces         []Piece `json:"pieces"`
	LabelFormat    string  `json:"labelFormat"`
}

// Party is a shipper or receiver.
type Party struct {
	Name      Name    `json:"name"`
	Address   Address `json:"address"`
	Email     string  `json:"email,omitempty"`
	Phone     string  `json:"phoneNumber,omitempty"`
	VATNumber string  `json:"vatNumber,omitempty"`
}

// Name splits person and company names.
type Name struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
}

// Address is a DHL address.
type Address struct {
	Street      string `json:"street"`
	Number      string `json:"number,omitempty"`
	Addition    string `json:"addition,omitempty"`
	PostalCode  string `json:"postalCode"`
	City        string `json:"city"`
	CountryCode string `json:"countryCode"`
	IsBusiness  bool   `json:"isBusiness"`
}

// Piece is one parcel of a shipment.
type Piece struct {
	ParcelType string  `json:"parcelType"`
	Quantity   int     `json:"quantity"`
	Weight     float64 `json:"weight"` // kg
}

// ShipmentResponse is the response of POST /shipments.
type ShipmentResponse struct {
	ShipmentID     string `json:"shipmentId"`
	TrackingNumber string `json:"trackerCode"`
	Label          Label  `json:"label"`
}

// Label is a base64 encoded label document.
type Label struct {
	Format  string `json:"format"` // "PDF", "ZPL"
	Content string `json:"content"`
}

// PickupRequest is the body of POST /pickups.
type PickupRequest struct {
	AccountNumber string         `json:"accountId"`
	PickupDate    string         `json:"pickupDate"` // YYYY-MM-DD
	TimeSlot      TimeSlot       `json:"timeSlot"`
	Address       Party          `json:"shipper"`
	Pieces        []PickupPieces `json:"pieces"`
	Reference     string         `json:"reference,omitempty"`
}

// TimeSlot is the pickup window in HH:MM.
type TimeSlot struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PickupPieces is the parcel count for one destination country.
type PickupPieces struct {
	DestinationCountry string `json:"destinationCountry"`
	Quantity           int    `json:"quantity"`
	ParcelType         string `json:"parcelType"`
}

// PickupResponse is the response of POST /pickups.
type PickupResponse struct {
	ConfirmationNumber string `json:"confirmationNumber"`
}

// TrackingResponse is the response of GET /track/shipments.
type TrackingResponse struct {
	Shipments []TrackedShipment `json:"shipments"`
}

// TrackedShipment is the latest status of one shipment.
type TrackedShipment struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Status is a tracking status.
type Status struct {
	Timestamp   string `json:"timestamp"` // RFC 3339
	StatusCode  string `json:"statusCode"`
	Description string `json:"description"`
}

// APIError represents an error from the DHL API.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"title"`
	Message    string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}
