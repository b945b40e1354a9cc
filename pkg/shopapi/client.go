// Package shopapi is the HTTP client for the repair shop backend: catalogs,
// slot availability, customer lookups and booking creation.
package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/models"
)

// maxErrorBody caps how much of an error response is read
const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from the shop backend
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("shop api %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("shop api %d: %s", e.StatusCode, e.Message)
}

// Config holds configuration for the shop API client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the shop backend over HTTP/JSON
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new shop API client
func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// ============================================================================
// CATALOGS
// ============================================================================

// ListCommonIssues returns the issue catalog for an asset kind, narrowed to a part category when given
func (c *Client) ListCommonIssues(ctx context.Context, kind models.AssetKind, partCategoryID *int) ([]models.CommonIssue, error) {
	params := url.Values{}
	params.Set("assetType", string(kind))
	if partCategoryID != nil {
		params.Set("partCategoryId", strconv.Itoa(*partCategoryID))
	}

	var issues []models.CommonIssue
	if err := c.do(ctx, http.MethodGet, "/common-issues", params, "", nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// ListPartCategories returns the part categories
func (c *Client) ListPartCategories(ctx context.Context) ([]models.PartCategory, error) {
	var categories []models.PartCategory
	if err := c.do(ctx, http.MethodGet, "/part-categories", nil, "", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// ListVehicleTypes returns the vehicle types
func (c *Client) ListVehicleTypes(ctx context.Context) ([]models.VehicleType, error) {
	var types []models.VehicleType
	if err := c.do(ctx, http.MethodGet, "/vehicle-types", nil, "", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// ListVehicleBrands returns the vehicle brands
func (c *Client) ListVehicleBrands(ctx context.Context) ([]models.VehicleBrand, error) {
	var brands []models.VehicleBrand
	if err := c.do(ctx, http.MethodGet, "/vehicle-brands", nil, "", nil, &brands); err != nil {
		return nil, err
	}
	return brands, nil
}

// ============================================================================
// AVAILABILITY
// ============================================================================

// ListAvailableSlots returns the open start times of one day
func (c *Client) ListAvailableSlots(ctx context.Context, query models.SlotQuery) ([]time.Time, error) {
	params := url.Values{}
	params.Set("date", query.Date)
	params.Set("assetType", string(query.AssetKind))
	if query.DurationMinutes != nil {
		params.Set("durationMinutes", strconv.Itoa(*query.DurationMinutes))
	}

	var day models.DaySlots
	if err := c.do(ctx, http.MethodGet, "/bookings/availability", params, "", nil, &day); err != nil {
		return nil, err
	}
	return day.Slots, nil
}

// ============================================================================
// BOOKINGS & CUSTOMERS
// ============================================================================

// CreateBooking submits the booking as the given user. It is never retried here.
func (c *Client) CreateBooking(ctx context.Context, accessToken string, payload *models.CreateBookingPayload) (*models.BookingSubmission, error) {
	var submission models.BookingSubmission
	if err := c.do(ctx, http.MethodPost, "/bookings", nil, accessToken, payload, &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}

// SearchCustomers looks customers up by name, email or phone
func (c *Client) SearchCustomers(ctx context.Context, accessToken, query string) ([]models.Customer, error) {
	params := url.Values{}
	params.Set("search", query)

	var customers []models.Customer
	if err := c.do(ctx, http.MethodGet, "/customers", params, accessToken, nil, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// ListCustomerVehicles returns the vehicles on file for a customer
func (c *Client) ListCustomerVehicles(ctx context.Context, accessToken string, customerID int) ([]models.CustomerVehicle, error) {
	path := fmt.Sprintf("/customers/%d/vehicles", customerID)

	var vehicles []models.CustomerVehicle
	if err := c.do(ctx, http.MethodGet, path, nil, accessToken, nil, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// do sends one request and decodes a JSON answer into out
func (c *Client) do(ctx context.Context, method, path string, params url.Values, accessToken string, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// decodeAPIError reads {message, code} or {error} bodies. message may be a list of strings.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
		Code    string          `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = messageText(body.Message)
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}
