package wuunder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateBooking func(ctx context.Context, req *BookingRequest) (*BookingResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// CreateBooking returns a mock booking.
func (m *MockAPIClient) CreateBooking(ctx context.Context, req *BookingRequest) (*BookingResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	if m.OnCreateBooking != nil {
		return m.OnCreateBooking(ctx, req)
	}

	id := uuid.NewString()
	return &BookingResponse{
		ID:  id,
		URL: "https://app.wuunder.co/bookings/" + id,
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
