package packlink

import (
	"context"
	"fmt"
)

// APIClient defines the Packlink PRO operations the adapter needs.
type APIClient interface {
	// CreateDraft creates a draft shipment: POST /v1/shipments
	CreateDraft(ctx context.Context, req *DraftRequest) (*DraftResponse, error)

	// GetLabels returns the label URLs of a shipment: GET /v1/shipments/{reference}/labels
	GetLabels(ctx context.Context, reference string) ([]string, error)
}

// DraftRequest is the body of POST /v1/shipments.
type DraftRequest struct {
	From             Party     `json:"from"`
	To               Party     `json:"to"`
	Packages         []Package `json:"packages"`
	Content          string    `json:"content"`
	ContentValue     float64   `json:"contentvalue"`
	ShipmentCustomID string    `json:"shipment_custom_reference"`
	Source           string    `json:"source"`
}

// Party is a Packlink sender or recipient.
type Party struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Company  string `json:"company,omitempty"`
	Street1  string `json:"street1"`
	Street2  string `json:"street2,omitempty"`
	ZipCode  string `json:"zip_code"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Province string `json:"state,omitempty"`
}

// Package is one parcel in cm and kg.
type Package struct {
	Weight float64 `json:"weight"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Length int     `json:"length"`
}

// DraftResponse is the response of POST /v1/shipments.
type DraftResponse struct {
	Reference string `json:"reference"`
}

// APIError represents an error from the Packlink API.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}
