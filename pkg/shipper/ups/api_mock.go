package ups

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateShipment func(ctx context.Context, transID string, req *ShipmentRequest) (*ShipmentResponse, error)
	OnRecoverLabel   func(ctx context.Context, transID string, req *LabelRecoveryRequest) (*LabelRecoveryResponse, error)
	OnCreatePickup   func(ctx context.Context, transID string, req *PickupCreationRequest) (*PickupCreationResponse, error)
	OnGetTracking    func(ctx context.Context, transID, trackingNumber string) (*TrackingResponse, error)

	mu       sync.Mutex
	transIDs []string
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// TransIDs returns the transaction ids seen so far.
func (m *MockAPIClient) TransIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.transIDs...)
}

func (m *MockAPIClient) before(transID string) error {
	m.mu.Lock()
	m.transIDs = append(m.transIDs, transID)
	m.mu.Unlock()

	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return &APIError{StatusCode: 500, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	return nil
}

// CreateShipment creates a mock shipment with a PNG label.
func (m *MockAPIClient) CreateShipment(ctx context.Context, transID string, req *ShipmentRequest) (*ShipmentResponse, error) {
	if err := m.before(transID); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, transID, req)
	}

	id := strings.ToUpper(uuid.New().String()[:8])
	resp := &ShipmentResponse{}
	resp.ShipmentResponse.ShipmentResults = ShipmentResults{
		ShipmentIdentificationNumber: "1Z" + id,
		PackageResults: PackageResults{
			TrackingNumber: fmt.Sprintf("1Z%s%08d", id, time.Now().UnixNano()%100000000),
			ShippingLabel: ShippingLabel{
				ImageFormat:  CodeDescription{Code: "PNG"},
				GraphicImage: base64.StdEncoding.EncodeToString([]byte("png-label")),
			},
		},
	}
	return resp, nil
}

// RecoverLabel returns a mock label in the requested format.
func (m *MockAPIClient) RecoverLabel(ctx context.Context, transID string, req *LabelRecoveryRequest) (*LabelRecoveryResponse, error) {
	if err := m.before(transID); err != nil {
		return nil, err
	}
	if m.OnRecoverLabel != nil {
		return m.OnRecoverLabel(ctx, transID, req)
	}

	format := req.LabelRecoveryRequest.LabelSpecification.LabelImageFormat.Code
	resp := &LabelRecoveryResponse{}
	results := &resp.LabelRecoveryResponse.LabelResults
	results.TrackingNumber = req.LabelRecoveryRequest.TrackingNumber
	results.LabelImage.LabelImageFormat = CodeDescription{Code: format}
	results.LabelImage.GraphicImage = base64.StdEncoding.EncodeToString([]byte(strings.ToLower(format) + "-label"))
	return resp, nil
}

// CreatePickup returns a mock pickup reference number.
func (m *MockAPIClient) CreatePickup(ctx context.Context, transID string, req *PickupCreationRequest) (*PickupCreationResponse, error) {
	if err := m.before(transID); err != nil {
		return nil, err
	}
	if m.OnCreatePickup != nil {
		return m.OnCreatePickup(ctx, transID, req)
	}

	resp := &PickupCreationResponse{}
	resp.PickupCreationResponse.PRN = "PRN" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return resp, nil
}

// GetTracking returns a mock in-transit activity.
func (m *MockAPIClient) GetTracking(ctx context.Context, transID, trackingNumber string) (*TrackingResponse, error) {
	if err := m.before(transID); err != nil {
		return nil, err
	}
	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, transID, trackingNumber)
	}

	now := time.Now()
	resp := &TrackingResponse{}
	resp.TrackResponse.Shipment = []TrackedShipment{{
		Package: []TrackedPackage{{
			TrackingNumber: trackingNumber,
			Activity: []Activity{{
				Date:   now.Format("20060102"),
				Time:   now.Format("150405"),
				Status: ActivityStatus{Type: "I", Code: "DP", Description: "Departed from Facility"},
			}},
		}},
	}}
	return resp, nil
}

var _ APIClient = (*MockAPIClient)(nil)
