package dhl

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateShipment func(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)
	OnCreatePickup   func(ctx context.Context, req *PickupRequest) (*PickupResponse, error)
	OnGetTracking    func(ctx context.Context, trackingNumber string) (*TrackingResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return &APIError{StatusCode: 503, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	return nil
}

// CreateShipment creates a mock shipment with a PDF label.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	return &ShipmentResponse{
		ShipmentID:     req.ShipmentID,
		TrackingNumber: "JVGL" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16]),
		Label: Label{
			Format:  "PDF",
			Content: base64.StdEncoding.EncodeToString([]byte("dhl-label")),
		},
	}, nil
}

// CreatePickup returns a mock confirmation number.
func (m *MockAPIClient) CreatePickup(ctx context.Context, req *PickupRequest) (*PickupResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreatePickup != nil {
		return m.OnCreatePickup(ctx, req)
	}

	return &PickupResponse{
		ConfirmationNumber: fmt.Sprintf("DHLP-%d", time.Now().UnixNano()%1000000000),
	}, nil
}

// GetTracking returns a mock in-transit status.
func (m *MockAPIClient) GetTracking(ctx context.Context, trackingNumber string) (*TrackingResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, trackingNumber)
	}

	return &TrackingResponse{
		Shipments: []TrackedShipment{{
			ID: trackingNumber,
			Status: Status{
				Timestamp:   time.Now().UTC().Format(time.RFC3339),
				StatusCode:  "transit",
				Description: "The shipment is on its way",
			},
		}},
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
