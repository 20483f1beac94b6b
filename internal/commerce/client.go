// Package commerce talks to the e-commerce backend: order eligibility checks
// and marking orders fulfilled on the sales platform.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tournevent/fulfillment/internal/shipping"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Config holds configuration for the commerce client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the HTTP implementation of shipping.Eligibility and of the
// platform half of shipping.Fulfillment.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a commerce client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Error is returned for non-2xx responses.
type Error struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("commerce backend: %d %s", e.StatusCode, e.Message)
}

type line struct {
	LineID   string `json:"line_id"`
	Quantity int    `json:"quantity"`
}

type eligibilityRequest struct {
	PlatformOrderID string `json:"platform_order_id,omitempty"`
	StoreID         string `json:"store_id,omitempty"`
	Lines           []line `json:"lines"`
}

type eligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

func toLines(lines []shipper.FulfillmentLine) []line {
	out := make([]line, len(lines))
	for i, l := range lines {
		out[i] = line{LineID: l.LineID, Quantity: l.Quantity}
	}
	return out
}

// CanCreateShipment asks whether the lines of the order may still be shipped.
func (c *Client) CanCreateShipment(ctx context.Context, platformOrderID, storeID, orderID string, lines []shipper.FulfillmentLine) (bool, error) {
	var resp eligibilityResponse
	err := c.doRequest(ctx, http.MethodPost, "/v1/orders/"+url.PathEscape(orderID)+"/eligibility/shipment",
		eligibilityRequest{PlatformOrderID: platformOrderID, StoreID: storeID, Lines: toLines(lines)}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Eligible, nil
}

// CanInvoiceAndNotify asks whether the order is ready to be invoiced.
func (c *Client) CanInvoiceAndNotify(ctx context.Context, orderID string, lines []shipper.FulfillmentLine) (bool, error) {
	var resp eligibilityResponse
	err := c.doRequest(ctx, http.MethodPost, "/v1/orders/"+url.PathEscape(orderID)+"/eligibility/invoice",
		eligibilityRequest{Lines: toLines(lines)}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Eligible, nil
}

// FulfillOnPlatform marks the fulfillment as shipped on the sales platform.
func (c *Client) FulfillOnPlatform(ctx context.Context, orderID string, fulfillmentID int64) error {
	path := fmt.Sprintf("/v1/orders/%s/fulfillments/%d/fulfill", url.PathEscape(orderID), fulfillmentID)
	return c.doRequest(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		apiErr := &Error{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(data)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var _ shipping.Eligibility = (*Client)(nil)
