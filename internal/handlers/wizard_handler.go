package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/middleware"
	"github.com/Alan934/taller-charli-sub000/internal/models"
	"github.com/Alan934/taller-charli-sub000/internal/services"
	"github.com/Alan934/taller-charli-sub000/pkg/shopapi"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxAvailabilityDays bounds the ?days= query parameter
const maxAvailabilityDays = 62

// WizardHandler exposes the booking wizard of the caller's wizard session
type WizardHandler struct {
	zone       *time.Location
	windowDays int
	logger     *logrus.Logger
}

// NewWizardHandler creates a new WizardHandler
func NewWizardHandler(zone *time.Location, windowDays int, logger *logrus.Logger) *WizardHandler {
	if zone == nil {
		zone = time.UTC
	}
	if windowDays <= 0 {
		windowDays = 14
	}
	return &WizardHandler{
		zone:       zone,
		windowDays: windowDays,
		logger:     logger,
	}
}

// RegisterRoutes mounts the wizard endpoints. The group must already run AuthMiddleware
// and the WizardSession middleware.
func (h *WizardHandler) RegisterRoutes(wizard *gin.RouterGroup) {
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	wizard.GET("/draft", h.GetDraft)
	wizard.DELETE("/draft", h.ResetDraft)
	wizard.PUT("/draft/asset-kind", h.SetAssetKind)
	wizard.PUT("/draft/vehicle", h.SetVehicle)
	wizard.PUT("/draft/part", h.SetPart)
	wizard.PUT("/draft/existing-vehicle", h.SetExistingVehicle)
	wizard.PUT("/draft/customer", adminOnly, h.SetCustomer)
	wizard.PUT("/draft/new-customer", adminOnly, h.SetNewCustomer)
	wizard.POST("/draft/issues/:id/toggle", h.ToggleIssue)
	wizard.PUT("/draft/free-text-issues", h.SetFreeTextIssues)
	wizard.PUT("/draft/notes", h.SetNotes)
	wizard.PUT("/draft/media-url", h.SetMediaURL)
	wizard.PUT("/draft/time-type", h.SetTimeType)
	wizard.PUT("/draft/scheduled-at", h.SetScheduledAt)
	wizard.PUT("/draft/selected-date", h.SetSelectedDate)
	wizard.PUT("/draft/duration", h.SetDuration)

	wizard.GET("/availability", h.GetAvailability)

	catalog := wizard.Group("/catalog")
	{
		catalog.GET("/issues", h.ListIssues)
		catalog.GET("/part-categories", h.ListPartCategories)
		catalog.GET("/vehicle-types", h.ListVehicleTypes)
		catalog.GET("/vehicle-brands", h.ListVehicleBrands)
	}

	customers := wizard.Group("/customers", adminOnly)
	{
		customers.GET("", h.SearchCustomers)
		customers.GET("/:id/vehicles", h.ListCustomerVehicles)
	}

	wizard.POST("/submit", h.Submit)
	wizard.POST("/logout", h.Logout)
}

// ============================================================================
// REQUEST BODIES
// ============================================================================

type assetKindRequest struct {
	AssetKind models.AssetKind `json:"assetKind"`
}

type vehicleRequest struct {
	Vehicle *models.VehicleDraft `json:"vehicle"`
}

type partRequest struct {
	Part *models.PartDraft `json:"part"`
}

type existingVehicleRequest struct {
	VehicleID *int `json:"vehicleId"`
}

type customerRequest struct {
	CustomerID *int `json:"customerId"`
}

type newCustomerRequest struct {
	NewCustomer *models.NewCustomerDraft `json:"newCustomer"`
}

type freeTextIssuesRequest struct {
	Issues []string `json:"issues"`
}

type notesRequest struct {
	Notes *string `json:"notes"`
}

type mediaURLRequest struct {
	MediaURL *string `json:"mediaUrl"`
}

type timeTypeRequest struct {
	TimeType models.TimeType `json:"timeType"`
}

type scheduledAtRequest struct {
	ScheduledAt *time.Time `json:"scheduledAt"`
}

type selectedDateRequest struct {
	Date string `json:"date"`
}

type durationRequest struct {
	DurationMinutes *int `json:"durationMinutes"`
}

// AvailabilityResponse is the availability snapshot plus a warning when some days
// could not be fetched
type AvailabilityResponse struct {
	services.AvailabilitySnapshot
	Warning string `json:"warning,omitempty"`
}

// SubmitResponse is returned by a successful submission
type SubmitResponse struct {
	Submission *models.BookingSubmission `json:"submission"`
	State      services.SessionState     `json:"state"`
}

// ============================================================================
// DRAFT
// ============================================================================

// GetDraft returns the wizard state
// @Summary Get booking draft
// @Tags Booking Wizard
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param X-Wizard-Session header string false "Wizard session id"
// @Success 200 {object} services.SessionState
// @Router /wizard/draft [get]
func (h *WizardHandler) GetDraft(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.State())
}

// ResetDraft discards the draft, its persisted copy and the last submission
// DELETE /api/v1/wizard/draft
func (h *WizardHandler) ResetDraft(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Reset())
}

// SetAssetKind switches between vehicle and part bookings
// PUT /api/v1/wizard/draft/asset-kind
func (h *WizardHandler) SetAssetKind(c *gin.Context) {
	var req assetKindRequest
	if !h.bind(c, &req) {
		return
	}
	if !req.AssetKind.IsValid() {
		badRequest(c, "assetKind must be VEHICLE or PART")
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetAssetKind(req.AssetKind)
	})
}

// SetVehicle sets or clears the new-vehicle description
// PUT /api/v1/wizard/draft/vehicle
func (h *WizardHandler) SetVehicle(c *gin.Context) {
	var req vehicleRequest
	if !h.bind(c, &req) {
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetVehicle(req.Vehicle)
	})
}

// SetPart sets or clears the part description
// PUT /api/v1/wizard/draft/part
func (h *WizardHandler) SetPart(c *gin.Context) {
	var req partRequest
	if !h.bind(c, &req) {
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetPart(req.Part)
	})
}

// SetExistingVehicle picks a vehicle already on file
// PUT /api/v1/wizard/draft/existing-vehicle
func (h *WizardHandler) SetExistingVehicle(c *gin.Context) {
	var req existingVehicleRequest
	if !h.bind(c, &req) {
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetExistingVehicleID(req.VehicleID)
	})
}

// SetCustomer picks the registered customer the admin books for
// PUT /api/v1/wizard/draft/customer
func (h *WizardHandler) SetCustomer(c *gin.Context) {
	var req customerRequest
	if !h.bind(c, &req) {
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetCustomerID(req.CustomerID)
	})
}

// SetNewCustomer describes a customer to register together with the booking
// PUT /api/v1/wizard/draft/new-customer
func (h *WizardHandler) SetNewCustomer(c *gin.Context) {
	var req newCustomerRequest
	if !h.bind(c, &req) {
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetNewCustomerDraft(req.NewCustomer)
	})
}

// ToggleIssue adds or removes a catalog issue
// POST /api/v1/wizard/draft/issues/:id/toggle
func (h *WizardHandler) ToggleIssue(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "invalid issue id")
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.ToggleCommonIssue(id)
	})
}

// SetFreeTextIssues replaces the free-text issue list
// PUT /api/v1/wizard/draft/free-text-issues
func (h *WizardHandler) SetFreeTextIssues(c *gin.Context) {
	var req freeTextIssuesRequest
	if !h.bind(c, &req) {
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetFreeTextIssues(req.Issues)
	})
}

// SetNotes sets or clears the notes
// PUT /api/v1/wizard/draft/notes
func (h *WizardHandler) SetNotes(c *gin.Context) {
	var req notesRequest
	if !h.bind(c, &req) {
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetNotes(req.Notes)
	})
}

// SetMediaURL sets or clears the attachment url
// PUT /api/v1/wizard/draft/media-url
func (h *WizardHandler) SetMediaURL(c *gin.Context) {
	var req mediaURLRequest
	if !h.bind(c, &req) {
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetMediaURL(req.MediaURL)
	})
}

// SetTimeType picks a specific time or a half-day block
// PUT /api/v1/wizard/draft/time-type
func (h *WizardHandler) SetTimeType(c *gin.Context) {
	var req timeTypeRequest
	if !h.bind(c, &req) {
		return
	}
	if !req.TimeType.IsValid() {
		badRequest(c, "timeType must be SPECIFIC, MORNING or AFTERNOON")
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetTimeType(req.TimeType)
	})
}

// SetScheduledAt sets or clears the desired start instant (RFC 3339)
// PUT /api/v1/wizard/draft/scheduled-at
func (h *WizardHandler) SetScheduledAt(c *gin.Context) {
	var req scheduledAtRequest
	if !h.bind(c, &req) {
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetScheduledAt(req.ScheduledAt)
	})
}

// SetSelectedDate picks a calendar day, "" clears it
// PUT /api/v1/wizard/draft/selected-date
func (h *WizardHandler) SetSelectedDate(c *gin.Context) {
	var req selectedDateRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Date != "" {
		if _, err := time.ParseInLocation(models.DateLayout, req.Date, h.zone); err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetSelectedDate(req.Date)
	})
}

// SetDuration pins the duration estimate, null returns to the derived one
// PUT /api/v1/wizard/draft/duration
func (h *WizardHandler) SetDuration(c *gin.Context) {
	var req durationRequest
	if !h.bind(c, &req) {
		return
	}
	if req.DurationMinutes != nil && *req.DurationMinutes <= 0 {
		badRequest(c, "durationMinutes must be positive")
		return
	}
	h.mutate(c, func(store *services.DraftStore) models.BookingDraft {
		return store.SetDurationOverride(req.DurationMinutes)
	})
}

// ============================================================================
// AVAILABILITY
// ============================================================================

// GetAvailability returns open-slot counts per day
// @Summary Get availability window
// @Tags Booking Wizard
// @Produce json
// @Param start query string false "First day (YYYY-MM-DD), defaults to today in the shop's zone"
// @Param days query int false "Number of days"
// @Success 200 {object} AvailabilityResponse
// @Failure 409 {object} map[string]interface{} "Session changed during the request"
// @Failure 502 {object} map[string]interface{} "No day of the window could be loaded"
// @Router /wizard/availability [get]
func (h *WizardHandler) GetAvailability(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	start := time.Now().In(h.zone)
	if raw := c.Query("start"); raw != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, raw, h.zone)
		if err != nil {
			badRequest(c, "start must be YYYY-MM-DD")
			return
		}
		start = parsed
	}

	days := h.windowDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxAvailabilityDays {
			badRequest(c, "days must be between 1 and 62")
			return
		}
		days = parsed
	}

	snapshot, err := session.Availability(c.Request.Context(), start, days)
	if errors.Is(err, services.ErrSessionEnded) {
		h.respondError(c, err)
		return
	}
	if err != nil && len(snapshot.Missing) == len(snapshot.Window) {
		h.respondError(c, err)
		return
	}
	resp := AvailabilityResponse{AvailabilitySnapshot: snapshot}
	if err != nil {
		resp.Warning = "some days could not be loaded, retry to fill them in"
	}
	c.JSON(http.StatusOK, resp)
}

// ============================================================================
// CATALOGS & CUSTOMERS
// ============================================================================

// ListIssues returns the issue catalog for the draft's asset kind
// GET /api/v1/wizard/catalog/issues
func (h *WizardHandler) ListIssues(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	items, err := session.Issues(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ListPartCategories returns the part categories
// GET /api/v1/wizard/catalog/part-categories
func (h *WizardHandler) ListPartCategories(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	items, err := session.PartCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ListVehicleTypes returns the vehicle types
// GET /api/v1/wizard/catalog/vehicle-types
func (h *WizardHandler) ListVehicleTypes(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	items, err := session.VehicleTypes(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ListVehicleBrands returns the vehicle brands
// GET /api/v1/wizard/catalog/vehicle-brands
func (h *WizardHandler) ListVehicleBrands(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	items, err := session.VehicleBrands(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// SearchCustomers looks customers up for an admin booking
// GET /api/v1/wizard/customers?q=
func (h *WizardHandler) SearchCustomers(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		badRequest(c, "q is required")
		return
	}
	customers, err := session.SearchCustomers(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

// ListCustomerVehicles returns a customer's vehicles on file
// GET /api/v1/wizard/customers/:id/vehicles
func (h *WizardHandler) ListCustomerVehicles(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "invalid customer id")
		return
	}
	vehicles, err := session.CustomerVehicles(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

// ============================================================================
// SUBMISSION & LOGOUT
// ============================================================================

// Submit validates the draft and creates the booking
// @Summary Submit booking
// @Tags Booking Wizard
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 201 {object} SubmitResponse
// @Failure 422 {object} map[string]interface{} "Draft incomplete"
// @Failure 502 {object} map[string]interface{} "Shop backend unavailable"
// @Router /wizard/submit [post]
func (h *WizardHandler) Submit(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	submission, err := session.Submit(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"wizard_session": session.ID(),
		"booking_id":     submission.ID,
	}).Info("Booking submitted")

	c.JSON(http.StatusCreated, SubmitResponse{
		Submission: submission,
		State:      session.State(),
	})
}

// Logout forgets the user on this wizard session and deletes their persisted draft
// POST /api/v1/wizard/logout
func (h *WizardHandler) Logout(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Logout(c.Request.Context()))
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *WizardHandler) session(c *gin.Context) (*services.WizardSession, bool) {
	session, ok := middleware.GetWizardSession(c)
	if !ok {
		h.logger.WithField("path", c.FullPath()).Error("Wizard route mounted without the wizard session middleware")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "wizard session not available",
			"code":    "MISSING_WIZARD_SESSION",
		})
		return nil, false
	}
	return session, true
}

func (h *WizardHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return false
	}
	return true
}

func (h *WizardHandler) mutate(c *gin.Context, fn func(store *services.DraftStore) models.BookingDraft) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Mutate(fn)
	c.JSON(http.StatusOK, session.State())
}

// respondError maps service and upstream errors onto HTTP responses
func (h *WizardHandler) respondError(c *gin.Context, err error) {
	if vErr, ok := services.AsValidationError(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"message": vErr.Message,
			"code":    vErr.Code,
			"field":   vErr.Field,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": err.Error(), "code": "NOT_AUTHENTICATED"})
		return
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": err.Error(), "code": "INSUFFICIENT_PERMISSIONS"})
		return
	case errors.Is(err, services.ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": "session_changed", "message": err.Error(), "code": "SESSION_CHANGED"})
		return
	}

	var apiErr *shopapi.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadGateway
		// the shop's own rejections (slot taken, bad customer) go back unchanged
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = apiErr.StatusCode
		}
		code := apiErr.Code
		if code == "" {
			code = "SHOP_API_ERROR"
		}
		h.logger.WithError(err).WithField("upstream_status", apiErr.StatusCode).Warn("Shop API rejected the request")
		c.JSON(status, gin.H{"error": "upstream_error", "message": apiErr.Message, "code": code})
		return
	}

	h.logger.WithError(err).Error("Shop API unavailable")
	c.JSON(http.StatusBadGateway, gin.H{
		"error":   "upstream_unavailable",
		"message": "The shop backend could not be reached, please retry",
		"code":    "SHOP_API_UNAVAILABLE",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "bad_request",
		"message": message,
		"code":    "INVALID_REQUEST",
	})
}
