package packlink

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateDraft func(ctx context.Context, req *DraftRequest) (*DraftResponse, error)
	OnGetLabels   func(ctx context.Context, reference string) ([]string, error)
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
		return &APIError{StatusCode: 500, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	return nil
}

// CreateDraft returns a mock draft reference.
func (m *MockAPIClient) CreateDraft(ctx context.Context, req *DraftRequest) (*DraftResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateDraft != nil {
		return m.OnCreateDraft(ctx, req)
	}
	ref := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return &DraftResponse{Reference: "NL" + time.Now().UTC().Format("2006") + "PRO" + ref}, nil
}

// GetLabels returns a single mock label URL.
func (m *MockAPIClient) GetLabels(ctx context.Context, reference string) ([]string, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetLabels != nil {
		return m.OnGetLabels(ctx, reference)
	}
	return []string{"https://labels.packlink.mock/" + reference + ".pdf"}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
