package wuunder

import (
	"context"
	"fmt"
)

// APIClient defines the Wuunder booking operations the adapter needs.
type APIClient interface {
	// CreateBooking starts a booking; Wuunder completes it through a webhook.
	// POST /bookings
	CreateBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error)
}

// BookingRequest is the body of POST /bookings.
type BookingRequest struct {
	Reference        string       `json:"reference"`
	PreferredService string       `json:"preferred_service_level,omitempty"`
	WebhookURL       string       `json:"webhook_url,omitempty"`
	RedirectURL      string       `json:"redirect_url,omitempty"`
	Shipment         Shipment     `json:"shipment"`
	DeliveryAddress  BookingParty `json:"delivery_address"`
	PickupAddress    BookingParty `json:"pickup_address"`
}

// Shipment describes the parcel being booked.
type Shipment struct {
	Kind        string `json:"kind"` // "package"
	Description string `json:"description"`
	Quantity    int    `json:"value_quantity"`
	DropOff     bool   `json:"drop_off"`
}

// BookingParty is a Wuunder address with contact.
type BookingParty struct {
	Business     string `json:"business,omitempty"`
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`
	Street       string `json:"street_name"`
	HouseNumber  string `json:"house_number,omitempty"`
	Addition     string `json:"address2,omitempty"`
	ZipCode      string `json:"zip_code"`
	Locality     string `json:"locality"`
	CountryCode  string `json:"country"`
	Email        string `json:"email_address,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	ChamberOfCom string `json:"chamber_of_commerce_number,omitempty"`
}

// BookingResponse is the response of POST /bookings.
type BookingResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// APIError represents an error from the Wuunder API.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}
