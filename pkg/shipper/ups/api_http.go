package ups

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	license    string
	username   string
	password   string
	source     string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL             string
	AccessLicenseNumber string
	Username            string
	Password            string
	TransactionSrc      string
	Timeout             time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL:  cfg.BaseURL,
		license:  cfg.AccessLicenseNumber,
		username: cfg.Username,
		password: cfg.Password,
		source:   cfg.TransactionSrc,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateShipment books a shipment via the UPS API.
func (c *HTTPAPIClient) CreateShipment(ctx context.Context, transID string, req *ShipmentRequest) (*ShipmentResponse, error) {
	var result ShipmentResponse
	if err := c.call(ctx, http.MethodPost, "/shipments", transID, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RecoverLabel re-fetches a label in the requested format.
func (c *HTTPAPIClient) RecoverLabel(ctx context.Context, transID string, req *LabelRecoveryRequest) (*LabelRecoveryResponse, error) {
	var result LabelRecoveryResponse
	if err := c.call(ctx, http.MethodPost, "/shipments/labels", transID, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreatePickup requests a pickup via the UPS API.
func (c *HTTPAPIClient) CreatePickup(ctx context.Context, transID string, req *PickupCreationRequest) (*PickupCreationResponse, error) {
	var result PickupCreationResponse
	if err := c.call(ctx, http.MethodPost, "/pickups", transID, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTracking retrieves tracking details for one package.
func (c *HTTPAPIClient) GetTracking(ctx context.Context, transID, trackingNumber string) (*TrackingResponse, error) {
	var result TrackingResponse
	path := "/track/" + url.PathEscape(trackingNumber)
	if err := c.call(ctx, http.MethodGet, path, transID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPAPIClient) call(ctx context.Context, method, path, transID string, body, out interface{}) error {
	resp, err := c.doRequest(ctx, method, path, transID, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// doRequest performs an HTTP request with the UPS credential headers.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path, transID string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("AccessLicenseNumber", c.license)
	req.Header.Set("Username", c.username)
	req.Header.Set("Password", c.password)
	req.Header.Set("transId", transID)
	req.Header.Set("transactionSrc", c.source)

	return c.httpClient.Do(req)
}

// parseError extracts error information from an HTTP response. UPS reports
// errors in the body as response.errors and mirrors the first one in the
// APIErrorCode / APIErrorMsg headers.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Response struct {
			Errors []APIError `json:"errors"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Response.Errors) > 0 {
		apiErr := envelope.Response.Errors[0]
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	if code := resp.Header.Get("APIErrorCode"); code != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       code,
			Message:    resp.Header.Get("APIErrorMsg"),
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    string(body),
	}
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
