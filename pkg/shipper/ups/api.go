package ups

import (
	"context"
	"fmt"
)

// APIClient defines the UPS REST operations the adapter needs.
// Every call carries a transaction id used by UPS for request correlation.
type APIClient interface {
	// CreateShipment books a shipment: POST /shipments
	CreateShipment(ctx context.Context, transID string, req *ShipmentRequest) (*ShipmentResponse, error)

	// RecoverLabel fetches a label in another format: POST /shipments/labels
	RecoverLabel(ctx context.Context, transID string, req *LabelRecoveryRequest) (*LabelRecoveryResponse, error)

	// CreatePickup requests a pickup: POST /pickups
	CreatePickup(ctx context.Context, transID string, req *PickupCreationRequest) (*PickupCreationResponse, error)

	// GetTracking returns the tracking details of a package: GET /track/{tracking_number}
	GetTracking(ctx context.Context, transID, trackingNumber string) (*TrackingResponse, error)
}

// ============================================================================
// Shipping
// ============================================================================

// ShipmentRequest is the envelope of POST /shipments.
type ShipmentRequest struct {
	ShipmentRequest ShipmentRequestBody `json:"ShipmentRequest"`
}

// ShipmentRequestBody holds the request options, shipment and label spec.
type ShipmentRequestBody struct {
	Request            RequestOption      `json:"Request"`
	Shipment           Shipment           `json:"Shipment"`
	LabelSpecification LabelSpecification `json:"LabelSpecification"`
}

// RequestOption selects the address validation level.
type RequestOption struct {
	RequestOption        string               `json:"RequestOption"`
	TransactionReference TransactionReference `json:"TransactionReference"`
}

// TransactionReference echoes a caller context in the response.
type TransactionReference struct {
	CustomerContext string `json:"CustomerContext"`
}

// Shipment describes parties, billing, service and package.
type Shipment struct {
	Description        string             `json:"Description"`
	Shipper            Party              `json:"Shipper"`
	ShipFrom           Party              `json:"ShipFrom"`
	ShipTo             Party              `json:"ShipTo"`
	PaymentInformation PaymentInformation `json:"PaymentInformation"`
	ReferenceNumber    CodeValue          `json:"ReferenceNumber"`
	Service            CodeDescription    `json:"Service"`
	Package            Package            `json:"Package"`
}

// Party is a shipper, ship-from or ship-to party.
type Party struct {
	Name                    string  `json:"Name"`
	AttentionName           string  `json:"AttentionName"`
	CompanyDisplayableName  string  `json:"CompanyDisplayableName,omitempty"`
	TaxIdentificationNumber string  `json:"TaxIdentificationNumber,omitempty"`
	Phone                   Phone   `json:"Phone"`
	ShipperNumber           string  `json:"ShipperNumber,omitempty"`
	Address                 Address `json:"Address"`
}

// Phone is a UPS phone block.
type Phone struct {
	Number    string `json:"Number"`
	Extension string `json:"Extension,omitempty"`
}

// Address is a UPS address block.
type Address struct {
	AddressLine       string `json:"AddressLine"`
	City              string `json:"City"`
	PostalCode        string `json:"PostalCode"`
	CountryCode       string `json:"CountryCode"`
	StateProvinceCode string `json:"StateProvinceCode,omitempty"`
}

// PaymentInformation bills the shipment to an account.
type PaymentInformation struct {
	ShipmentCharge ShipmentCharge `json:"ShipmentCharge"`
}

// ShipmentCharge is a single charge line. Type "01" is transportation.
type ShipmentCharge struct {
	Type        string      `json:"Type"`
	BillShipper BillShipper `json:"BillShipper"`
}

// BillShipper names the billed account.
type BillShipper struct {
	AccountNumber string `json:"AccountNumber"`
}

// CodeValue is a coded reference value.
type CodeValue struct {
	Code  string `json:"Code"`
	Value string `json:"Value"`
}

// CodeDescription is a coded enumeration value.
type CodeDescription struct {
	Code        string `json:"Code"`
	Description string `json:"Description,omitempty"`
}

// Package describes the single parcel of a shipment.
type Package struct {
	Description   string          `json:"Description"`
	Packaging     CodeDescription `json:"Packaging"`
	PackageWeight PackageWeight   `json:"PackageWeight"`
}

// PackageWeight is a weight with unit.
type PackageWeight struct {
	UnitOfMeasurement CodeDescription `json:"UnitOfMeasurement"`
	Weight            string          `json:"Weight"`
}

// LabelSpecification selects the label image format.
type LabelSpecification struct {
	LabelImageFormat CodeDescription `json:"LabelImageFormat"`
}

// ShipmentResponse is the envelope of the POST /shipments response.
type ShipmentResponse struct {
	ShipmentResponse struct {
		ShipmentResults ShipmentResults `json:"ShipmentResults"`
	} `json:"ShipmentResponse"`
}

// ShipmentResults carries the identification and package results.
type ShipmentResults struct {
	ShipmentIdentificationNumber string         `json:"ShipmentIdentificationNumber"`
	PackageResults               PackageResults `json:"PackageResults"`
}

// PackageResults holds the tracking number and the base64 label image.
type PackageResults struct {
	TrackingNumber string        `json:"TrackingNumber"`
	ShippingLabel  ShippingLabel `json:"ShippingLabel"`
}

// ShippingLabel is a base64 encoded label image.
type ShippingLabel struct {
	ImageFormat  CodeDescription `json:"ImageFormat"`
	GraphicImage string          `json:"GraphicImage"`
}

// LabelRecoveryRequest is the envelope of POST /shipments/labels.
type LabelRecoveryRequest struct {
	LabelRecoveryRequest struct {
		LabelSpecification LabelSpecification `json:"LabelSpecification"`
		TrackingNumber     string             `json:"TrackingNumber"`
	} `json:"LabelRecoveryRequest"`
}

// LabelRecoveryResponse is the envelope of the label recovery response.
type LabelRecoveryResponse struct {
	LabelRecoveryResponse struct {
		LabelResults struct {
			TrackingNumber string `json:"TrackingNumber"`
			LabelImage     struct {
				LabelImageFormat CodeDescription `json:"LabelImageFormat"`
				GraphicImage     string          `json:"GraphicImage"`
			} `json:"LabelImage"`
		} `json:"LabelResults"`
	} `json:"LabelRecoveryResponse"`
}

// ============================================================================
// Pickups
// ============================================================================

// PickupCreationRequest is the envelope of POST /pickups.
type PickupCreationRequest struct {
	PickupCreationRequest PickupCreation `json:"PickupCreationRequest"`
}

// PickupCreation describes one pickup at one address.
type PickupCreation struct {
	RatePickupIndicator       string             `json:"RatePickupIndicator"`
	Shipper                   PickupShipper      `json:"Shipper"`
	PickupDateInfo            PickupDateInfo     `json:"PickupDateInfo"`
	PickupAddress             PickupAddress      `json:"PickupAddress"`
	AlternateAddressIndicator string             `json:"AlternateAddressIndicator"`
	PickupPiece               []PickupPiece      `json:"PickupPiece"`
	OverweightIndicator       string             `json:"OverweightIndicator"`
	PaymentMethod             string             `json:"PaymentMethod"`
	Notification              PickupNotification `json:"Notification"`
}

// PickupShipper names the billed account.
type PickupShipper struct {
	Account PickupAccount `json:"Account"`
}

// PickupAccount is an account number and its country.
type PickupAccount struct {
	AccountNumber      string `json:"AccountNumber"`
	AccountCountryCode string `json:"AccountCountryCode"`
}

// PickupDateInfo is the pickup window. Times are HHMM, date is YYYYMMDD.
type PickupDateInfo struct {
	CloseTime  string `json:"CloseTime"`
	ReadyTime  string `json:"ReadyTime"`
	PickupDate string `json:"PickupDate"`
}

// PickupAddress is the address the driver visits.
type PickupAddress struct {
	CompanyName          string `json:"CompanyName"`
	ContactName          string `json:"ContactName"`
	AddressLine          string `json:"AddressLine"`
	City                 string `json:"City"`
	PostalCode           string `json:"PostalCode"`
	CountryCode          string `json:"CountryCode"`
	ResidentialIndicator string `json:"ResidentialIndicator"`
	Phone                Phone  `json:"Phone"`
}

// PickupPiece is the package count for one destination country.
type PickupPiece struct {
	ServiceCode            string `json:"ServiceCode"`
	Quantity               string `json:"Quantity"`
	DestinationCountryCode string `json:"DestinationCountryCode"`
	ContainerCode          string `json:"ContainerCode"`
}

// PickupNotification lists the confirmation addresses.
type PickupNotification struct {
	ConfirmationEmailAddress  string `json:"ConfirmationEmailAddress,omitempty"`
	UndeliverableEmailAddress string `json:"UndeliverableEmailAddress,omitempty"`
}

// PickupCreationResponse is the envelope of the POST /pickups response.
type PickupCreationResponse struct {
	PickupCreationResponse struct {
		PRN string `json:"PRN"`
	} `json:"PickupCreationResponse"`
}

// ============================================================================
// Tracking
// ============================================================================

// TrackingResponse is the tracking details of one package.
type TrackingResponse struct {
	TrackResponse struct {
		Shipment []TrackedShipment `json:"shipment"`
	} `json:"trackResponse"`
}

// TrackedShipment groups the packages of one shipment.
type TrackedShipment struct {
	Package []TrackedPackage `json:"package"`
}

// TrackedPackage is a package with its activity, most recent first.
type TrackedPackage struct {
	TrackingNumber string     `json:"trackingNumber"`
	Activity       []Activity `json:"activity"`
}

// Activity is a single scan event.
type Activity struct {
	Date   string         `json:"date"` // YYYYMMDD
	Time   string         `json:"time"` // HHMMSS
	Status ActivityStatus `json:"status"`
}

// ActivityStatus is the coded status of an activity. Type is one of
// M (manifest), P (pickup), I (in transit), D (delivered), X (exception).
type ActivityStatus struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Latest returns the most recent activity of the first package.
func (r *TrackingResponse) Latest() (Activity, bool) {
	for _, s := range r.TrackResponse.Shipment {
		for _, p := range s.Package {
			if len(p.Activity) > 0 {
				return p.Activity[0], true
			}
		}
	}
	return Activity{}, false
}

// APIError represents an error from the UPS API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
	}
	return e.Code + ": " + e.Message
}
