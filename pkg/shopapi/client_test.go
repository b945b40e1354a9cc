package shopapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupShopAPITest(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL + "/", Timeout: 2 * time.Second})
}

func TestNewClient(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://shop.local/api/"})
	assert.Equal(t, "http://shop.local/api", client.baseURL)
	assert.Equal(t, 10*time.Second, client.client.Timeout)
}

func TestListCommonIssues(t *testing.T) {
	client := setupShopAPITest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/common-issues", r.URL.Path)
		assert.Equal(t, "PART", r.URL.Query().Get("assetType"))
		assert.Equal(t, "3", r.URL.Query().Get("partCategoryId"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":10,"name":"Rebobinado","durationMinutes":90,"assetType":"PART","partCategoryId":3}]`))
	})

	category := 3
	issues, err := client.ListCommonIssues(context.Background(), models.AssetKindPart, &category)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, 10, issues[0].ID)
	assert.Equal(t, 90, *issues[0].DurationMinutes)
}

func TestListAvailableSlots(t *testing.T) {
	client := setupShopAPITest(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/bookings/availability", r.URL.Path)
		assert.Equal(t, "2026-10-20", q.Get("date"))
		assert.Equal(t, "VEHICLE", q.Get("assetType"))
		assert.Equal(t, "45", q.Get("durationMinutes"))
		w.Write([]byte(`{"date":"2026-10-20","slots":["2026-10-20T12:00:00Z","2026-10-20T13:00:00Z"]}`))
	})

	duration := 45
	slots, err := client.ListAvailableSlots(context.Background(), models.SlotQuery{
		Date:            "2026-10-20",
		AssetKind:       models.AssetKindVehicle,
		DurationMinutes: &duration,
	})
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestCreateBooking(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client := setupShopAPITest(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var payload models.CreateBookingPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, models.AssetKindVehicle, payload.AssetType)

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":99,"status":"PENDING","scheduledAt":"2026-10-20T12:00:00Z"}`))
		})

		submission, err := client.CreateBooking(context.Background(), "token-1", &models.CreateBookingPayload{
			AssetType:      models.AssetKindVehicle,
			CommonIssueIDs: []int{},
			TimeType:       models.TimeTypeSpecific,
		})
		require.NoError(t, err)
		assert.Equal(t, 99, submission.ID)
	})

	t.Run("Conflict surfaces as APIError", func(t *testing.T) {
		client := setupShopAPITest(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":["slot taken","try another"],"code":"SLOT_TAKEN"}`))
		})

		_, err := client.CreateBooking(context.Background(), "token-1", &models.CreateBookingPayload{})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		assert.Equal(t, "SLOT_TAKEN", apiErr.Code)
		assert.Equal(t, "slot taken; try another", apiErr.Message)
	})
}

func TestCustomerDirectory(t *testing.T) {
	client := setupShopAPITest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer admin", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/customers":
			assert.Equal(t, "ana", r.URL.Query().Get("search"))
			w.Write([]byte(`[{"id":42,"name":"Ana","email":"ana@example.com"}]`))
		case "/customers/42/vehicles":
			w.Write([]byte(`[{"id":7,"customerId":42,"model":"Gol"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	customers, err := client.SearchCustomers(context.Background(), "admin", "ana")
	require.NoError(t, err)
	assert.Equal(t, 42, customers[0].ID)

	vehicles, err := client.ListCustomerVehicles(context.Background(), "admin", 42)
	require.NoError(t, err)
	assert.Equal(t, 7, vehicles[0].ID)
}

func TestDecodeAPIError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"String message", `{"message":"bad date"}`, "bad date"},
		{"Error field", `{"error":"unauthorized"}`, "unauthorized"},
		{"Plain text", "gateway timeout", "gateway timeout"},
		{"Empty body", "", "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupShopAPITest(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(tt.body))
			})
			_, err := client.ListVehicleTypes(context.Background())
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.expected, apiErr.Message)
		})
	}
}
