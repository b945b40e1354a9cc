package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/middleware"
	"github.com/Alan934/taller-charli-sub000/internal/models"
	"github.com/Alan934/taller-charli-sub000/internal/services"
	"github.com/Alan934/taller-charli-sub000/pkg/jwt"
	"github.com/Alan934/taller-charli-sub000/pkg/shopapi"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeShop serves the shop backend endpoints the wizard calls
type fakeShop struct {
	mu           sync.Mutex
	bookingCode  int
	bookingBody  string
	bookings     []models.CreateBookingPayload
	slotRequests int
	slotFailures map[string]int // date -> status; "*" fails every date
}

func (f *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/common-issues":
		w.Write([]byte(`[{"id":1,"name":"Cambio de aceite","durationMinutes":30,"assetType":"VEHICLE"},{"id":2,"name":"Frenos","durationMinutes":60,"assetType":"VEHICLE"}]`))
	case "/part-categories":
		w.Write([]byte(`[{"id":3,"name":"Motor"}]`))
	case "/vehicle-types":
		w.Write([]byte(`[{"id":1,"name":"Auto"}]`))
	case "/vehicle-brands":
		w.Write([]byte(`[{"id":5,"name":"Ford"}]`))
	case "/bookings/availability":
		f.slotRequests++
		date := r.URL.Query().Get("date")
		if status, ok := f.slotFailures[date]; ok {
			w.WriteHeader(status)
			return
		}
		if status, ok := f.slotFailures["*"]; ok {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(`{"date":"` + date + `","slots":["` + date + `T12:00:00Z"]}`))
	case "/bookings":
		var payload models.CreateBookingPayload
		json.NewDecoder(r.Body).Decode(&payload)
		f.bookings = append(f.bookings, payload)
		if f.bookingCode != 0 {
			w.WriteHeader(f.bookingCode)
			w.Write([]byte(f.bookingBody))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":501,"status":"PENDING","scheduledAt":"2026-10-20T13:00:00Z"}`))
	case "/customers":
		w.Write([]byte(`[{"id":42,"name":"Ana","email":"ana@example.com"}]`))
	case "/customers/42/vehicles":
		w.Write([]byte(`[{"id":7,"customerId":42,"model":"Gol"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type memoryDraftStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memoryDraftStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryDraftStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryDraftStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type wizardTest struct {
	router  *gin.Engine
	shop    *fakeShop
	storage *memoryDraftStorage
	jwt     *jwt.Service
	session string
}

func setupWizardHandlerTest(t *testing.T) *wizardTest {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	shop := &fakeShop{}
	server := httptest.NewServer(shop)
	t.Cleanup(server.Close)
	client := shopapi.NewClient(shopapi.Config{BaseURL: server.URL, Timeout: 2 * time.Second})

	storage := &memoryDraftStorage{values: map[string]string{}}
	manager := services.NewSessionManager(services.SessionDeps{
		Catalog:      client,
		Slots:        client,
		Customers:    client,
		Submitter:    services.NewSubmissionService(client, client, services.SubmissionConfig{MultiVehiclePolicy: services.MultiVehicleFirst}, logger),
		Storage:      storage,
		Zone:         time.UTC,
		Persistence:  services.DraftPersistenceConfig{Namespace: "test.draft"},
		Availability: services.AvailabilityConfig{InvalidateOnDurationChange: true},
		Logger:       logger,
	}, time.Hour, logger)

	jwtService := jwt.NewService("handler-test-secret-0123456789", "taller-test", time.Hour)

	router := gin.New()
	wizard := router.Group("/api/v1/wizard")
	wizard.Use(middleware.AuthMiddleware(jwtService, logger), middleware.WizardSession(manager, false))
	NewWizardHandler(time.UTC, 3, logger).RegisterRoutes(wizard)

	return &wizardTest{router: router, shop: shop, storage: storage, jwt: jwtService}
}

func (w *wizardTest) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := w.jwt.GenerateAccessToken(userID, userID+"@example.com", role)
	require.NoError(t, err)
	return token
}

// do sends a request on the test's wizard session, creating it on first use
func (w *wizardTest) do(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api/v1/wizard"+path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if w.session != "" {
		req.Header.Set(middleware.WizardSessionHeader, w.session)
	}
	rec := httptest.NewRecorder()
	w.router.ServeHTTP(rec, req)
	w.session = rec.Header().Get(middleware.WizardSessionHeader)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) services.SessionState {
	t.Helper()
	var state services.SessionState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state
}

func TestWizardHandler_ClientBooking(t *testing.T) {
	wt := setupWizardHandlerTest(t)
	token := wt.token(t, "7", "CLIENT")

	rec := wt.do(t, token, http.MethodGet, "/draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeState(t, rec)
	assert.Equal(t, models.DefaultBookingDraft(), state.Draft)
	assert.Equal(t, "7", state.UserID)

	rec = wt.do(t, token, http.MethodPut, "/draft/vehicle", gin.H{
		"vehicle": gin.H{"typeId": 1, "brandId": 5, "model": "Focus"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = wt.do(t, token, http.MethodGet, "/catalog/issues", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = wt.do(t, token, http.MethodPost, "/draft/issues/2/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeState(t, rec)
	require.NotNil(t, state.Draft.DurationMinutes)
	assert.Equal(t, 60, *state.Draft.DurationMinutes)

	rec = wt.do(t, token, http.MethodPut, "/draft/scheduled-at", gin.H{"scheduledAt": "2026-10-20T13:00:00Z"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-10-20", *decodeState(t, rec).Draft.SelectedDate)

	rec = wt.do(t, token, http.MethodPost, "/submit", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 501, resp.Submission.ID)
	assert.Equal(t, models.SubmissionStatusSubmitted, resp.State.SubmissionStatus)
	assert.Equal(t, models.DefaultBookingDraft(), resp.State.Draft)

	require.Len(t, wt.shop.bookings, 1)
	assert.Equal(t, []int{2}, wt.shop.bookings[0].CommonIssueIDs)
	assert.Equal(t, "Focus", wt.shop.bookings[0].Vehicle.Model)

	rec = wt.do(t, token, http.MethodPost, "/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), services.CodeAlreadySubmitted)
}

func TestWizardHandler_Validation(t *testing.T) {
	wt := setupWizardHandlerTest(t)
	token := wt.token(t, "7", "CLIENT")

	t.Run("Incomplete draft is rejected locally", func(t *testing.T) {
		wt.do(t, token, http.MethodPut, "/draft/part", gin.H{"part": gin.H{"categoryId": 3, "description": ""}})
		wt.do(t, token, http.MethodPut, "/draft/scheduled-at", gin.H{"scheduledAt": "2026-10-20T13:00:00Z"})

		rec := wt.do(t, token, http.MethodPost, "/submit", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), services.CodeMissingPartDescription)
		assert.Empty(t, wt.shop.bookings)
	})

	t.Run("Bad input", func(t *testing.T) {
		tests := []struct {
			name   string
			method string
			path   string
			body   interface{}
		}{
			{"Unknown asset kind", http.MethodPut, "/draft/asset-kind", gin.H{"assetKind": "BOAT"}},
			{"Unknown time type", http.MethodPut, "/draft/time-type", gin.H{"timeType": "NIGHT"}},
			{"Bad date", http.MethodPut, "/draft/selected-date", gin.H{"date": "20/10/2026"}},
			{"Negative duration", http.MethodPut, "/draft/duration", gin.H{"durationMinutes": -5}},
			{"Non numeric issue", http.MethodPost, "/draft/issues/abc/toggle", nil},
			{"Malformed json", http.MethodPut, "/draft/notes", "{"},
			{"Too many days", http.MethodGet, "/availability?days=100", nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := wt.do(t, token, tt.method, tt.path, tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
			})
		}
	})

	t.Run("Admin routes", func(t *testing.T) {
		rec := wt.do(t, token, http.MethodPut, "/draft/customer", gin.H{"customerId": 42})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = wt.do(t, token, http.MethodGet, "/customers?q=ana", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestWizardHandler_AdminBooking(t *testing.T) {
	wt := setupWizardHandlerTest(t)
	token := wt.token(t, "1", "ADMIN")

	rec := wt.do(t, token, http.MethodGet, "/customers?q=ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ana@example.com")

	rec = wt.do(t, token, http.MethodGet, "/customers/42/vehicles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Gol")

	wt.do(t, token, http.MethodPut, "/draft/customer", gin.H{"customerId": 42})
	wt.do(t, token, http.MethodPut, "/draft/scheduled-at", gin.H{"scheduledAt": "2026-10-20T13:00:00Z"})

	t.Run("Shop rejection keeps the draft", func(t *testing.T) {
		wt.shop.bookingCode = http.StatusConflict
		wt.shop.bookingBody = `{"message":"slot taken","code":"SLOT_TAKEN"}`

		rec := wt.do(t, token, http.MethodPost, "/submit", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "SLOT_TAKEN")

		state := decodeState(t, wt.do(t, token, http.MethodGet, "/draft", nil))
		assert.Equal(t, 42, *state.Draft.CustomerID)
		assert.Equal(t, models.SubmissionStatusFailed, state.LastOutcome)
	})

	t.Run("Shop outage maps to bad gateway", func(t *testing.T) {
		wt.shop.bookingCode = http.StatusInternalServerError
		wt.shop.bookingBody = `{"message":"boom"}`

		rec := wt.do(t, token, http.MethodPost, "/submit", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("Recovered vehicle is sent", func(t *testing.T) {
		wt.shop.bookingCode = 0
		rec := wt.do(t, token, http.MethodPost, "/submit", nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		last := wt.shop.bookings[len(wt.shop.bookings)-1]
		require.NotNil(t, last.VehicleID)
		assert.Equal(t, 7, *last.VehicleID)
	})
}

func TestWizardHandler_Availability(t *testing.T) {
	wt := setupWizardHandlerTest(t)
	token := wt.token(t, "7", "CLIENT")

	rec := wt.do(t, token, http.MethodGet, "/availability?start=2026-10-20", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2026-10-20", "2026-10-21", "2026-10-22"}, resp.Window)
	assert.Equal(t, 1, resp.Counts["2026-10-21"])
	assert.Empty(t, resp.Warning)
	assert.Equal(t, 3, wt.shop.slotRequests)

	rec = wt.do(t, token, http.MethodGet, "/availability?start=2026-10-21&days=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, wt.shop.slotRequests)

	rec = wt.do(t, token, http.MethodPut, "/draft/asset-kind", gin.H{"assetKind": "PART"})
	require.Equal(t, http.StatusOK, rec.Code)
	wt.do(t, token, http.MethodGet, "/availability?start=2026-10-21&days=2", nil)
	assert.Equal(t, 5, wt.shop.slotRequests)
}

func TestWizardHandler_AvailabilityFailures(t *testing.T) {
	t.Run("Some days fail", func(t *testing.T) {
		wt := setupWizardHandlerTest(t)
		token := wt.token(t, "7", "CLIENT")
		wt.shop.slotFailures = map[string]int{"2026-10-21": http.StatusServiceUnavailable}

		rec := wt.do(t, token, http.MethodGet, "/availability?start=2026-10-20", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp AvailabilityResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Warning)
		assert.Equal(t, []string{"2026-10-21"}, resp.Missing)
		assert.Equal(t, 1, resp.Counts["2026-10-20"])

		wt.shop.mu.Lock()
		wt.shop.slotFailures = nil
		wt.shop.mu.Unlock()

		rec = wt.do(t, token, http.MethodGet, "/availability?start=2026-10-20", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp = AvailabilityResponse{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Warning)
		assert.Empty(t, resp.Missing)
		assert.Equal(t, 4, wt.shop.slotRequests)
	})

	t.Run("Every day fails", func(t *testing.T) {
		wt := setupWizardHandlerTest(t)
		token := wt.token(t, "7", "CLIENT")
		wt.shop.slotFailures = map[string]int{"*": http.StatusServiceUnavailable}

		rec := wt.do(t, token, http.MethodGet, "/availability?start=2026-10-20", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "upstream_error")
		assert.NotContains(t, rec.Body.String(), "warning")
	})

	t.Run("Single day window that fails", func(t *testing.T) {
		wt := setupWizardHandlerTest(t)
		token := wt.token(t, "7", "CLIENT")
		wt.shop.slotFailures = map[string]int{"*": http.StatusInternalServerError}

		rec := wt.do(t, token, http.MethodGet, "/availability?start=2026-10-20&days=1", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestWizardHandler_DraftFollowsUser(t *testing.T) {
	wt := setupWizardHandlerTest(t)
	token := wt.token(t, "7", "CLIENT")

	wt.do(t, token, http.MethodPut, "/draft/notes", gin.H{"notes": "ruido al frenar"})
	_, stored := wt.storage.values["test.draft.7"]
	assert.True(t, stored)

	// a fresh session for the same user finds the draft again
	wt.session = ""
	state := decodeState(t, wt.do(t, token, http.MethodGet, "/draft", nil))
	require.NotNil(t, state.Draft.Notes)
	assert.Equal(t, "ruido al frenar", *state.Draft.Notes)

	rec := wt.do(t, token, http.MethodPost, "/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, stored = wt.storage.values["test.draft.7"]
	assert.False(t, stored)
}
