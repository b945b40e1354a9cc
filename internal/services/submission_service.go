package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/models"
	"github.com/Alan934/taller-charli-sub000/pkg/validator"
	"github.com/sirupsen/logrus"
)

// MultiVehiclePolicy decides what vehicle recovery does when a customer has several vehicles
type MultiVehiclePolicy string

const (
	// MultiVehicleFirst adopts the first vehicle the directory lists
	MultiVehicleFirst MultiVehiclePolicy = "first"
	// MultiVehicleRequireSelection rejects the submission until one is picked
	MultiVehicleRequireSelection MultiVehiclePolicy = "require_selection"
)

// IsValid reports whether p is a known policy
func (p MultiVehiclePolicy) IsValid() bool {
	return p == MultiVehicleFirst || p == MultiVehicleRequireSelection
}

// SubmissionConfig configures SubmissionService
type SubmissionConfig struct {
	MultiVehiclePolicy MultiVehiclePolicy
	// LookupTimeout bounds the vehicle recovery lookup
	LookupTimeout time.Duration
}

// SubmissionService validates a draft, turns it into the wire payload and creates the booking
type SubmissionService struct {
	bookings  BookingClient
	customers CustomerDirectory
	contacts  *validator.ContactValidator
	config    SubmissionConfig
	logger    *logrus.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(bookings BookingClient, customers CustomerDirectory, config SubmissionConfig, logger *logrus.Logger) *SubmissionService {
	if !config.MultiVehiclePolicy.IsValid() {
		config.MultiVehiclePolicy = MultiVehicleFirst
	}
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = 5 * time.Second
	}
	return &SubmissionService{
		bookings:  bookings,
		customers: customers,
		contacts:  validator.NewContactValidator(),
		config:    config,
		logger:    logger,
	}
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate runs every completeness check in order and returns the first failure
func (s *SubmissionService) Validate(draft models.BookingDraft, identity *Identity) error {
	if err := s.validateParties(draft, identity); err != nil {
		return err
	}
	return s.validateAsset(draft)
}

func (s *SubmissionService) validateParties(draft models.BookingDraft, identity *Identity) error {
	if identity == nil || identity.UserID == "" || identity.AccessToken == "" {
		return newValidationError(CodeMissingCredentials, "", "sign in again to confirm the booking")
	}
	if draft.ScheduledAt == nil {
		return newValidationError(CodeMissingSchedule, "scheduledAt", "pick a date and time")
	}
	if identity.IsAdmin() {
		hasNewCustomer := draft.NewCustomerDraft != nil && strings.TrimSpace(draft.NewCustomerDraft.Email) != ""
		if draft.CustomerID == nil && !hasNewCustomer {
			return newValidationError(CodeNoCustomerSelected, "customerId", "select a customer or enter the new customer's email")
		}
	}
	return nil
}

func (s *SubmissionService) validateAsset(draft models.BookingDraft) error {
	switch draft.AssetKind {
	case models.AssetKindVehicle:
		if draft.ExistingVehicleID != nil {
			return nil
		}
		v := draft.VehicleDraft
		if v == nil {
			return newValidationError(CodeMissingVehicle, "vehicleDraft", "describe the vehicle or pick one on file")
		}
		if v.TypeID == nil {
			return newValidationError(CodeMissingVehicleType, "vehicleDraft.typeId", "select the vehicle type")
		}
		if strings.TrimSpace(v.Model) == "" {
			return newValidationError(CodeMissingVehicleModel, "vehicleDraft.model", "enter the vehicle model")
		}
		if v.BrandID == nil && models.IsBlank(v.BrandOther) {
			return newValidationError(CodeMissingVehicleBrand, "vehicleDraft.brandId", "select a brand or type it in")
		}
	case models.AssetKindPart:
		p := draft.PartDraft
		if p == nil {
			return newValidationError(CodeMissingPart, "partDraft", "describe the part")
		}
		if p.CategoryID == nil {
			return newValidationError(CodeMissingPartCategory, "partDraft.categoryId", "select the part category")
		}
		if strings.TrimSpace(p.Description) == "" {
			return newValidationError(CodeMissingPartDescription, "partDraft.description", "describe the part")
		}
	}
	return nil
}

// ============================================================================
// VEHICLE RECOVERY
// ============================================================================

// RecoverVehicle fills existingVehicleId on a working copy when an admin picked a
// customer but no vehicle. Lookup failures are logged and ignored.
func (s *SubmissionService) RecoverVehicle(ctx context.Context, draft *models.BookingDraft, identity *Identity) error {
	if !identity.IsAdmin() || draft.AssetKind != models.AssetKindVehicle ||
		draft.CustomerID == nil || draft.VehicleDraft != nil || draft.ExistingVehicleID != nil {
		return nil
	}

	logger := s.logger.WithField("customer_id", *draft.CustomerID)

	ctx, cancel := context.WithTimeout(ctx, s.config.LookupTimeout)
	defer cancel()
	vehicles, err := s.customers.ListCustomerVehicles(ctx, identity.AccessToken, *draft.CustomerID)
	if err != nil {
		logger.WithError(err).Warn("Vehicle recovery lookup failed")
		return nil
	}

	switch {
	case len(vehicles) == 0:
		return nil
	case len(vehicles) > 1 && s.config.MultiVehiclePolicy == MultiVehicleRequireSelection:
		return newValidationError(CodeVehicleSelectionRequired, "existingVehicleId",
			fmt.Sprintf("the customer has %d vehicles on file, pick one", len(vehicles)))
	}

	id := vehicles[0].ID
	draft.ExistingVehicleID = &id
	logger.WithFields(logrus.Fields{
		"vehicle_id": id,
		"on_file":    len(vehicles),
	}).Info("Recovered vehicle for submission")
	return nil
}

// ============================================================================
// PAYLOAD
// ============================================================================

// Prepare validates the draft, recovering the vehicle when possible, and builds the payload.
// The draft passed in is not modified.
func (s *SubmissionService) Prepare(ctx context.Context, draft models.BookingDraft, identity *Identity) (*models.CreateBookingPayload, error) {
	working := draft.Clone()

	if err := s.validateParties(working, identity); err != nil {
		return nil, err
	}
	if err := s.RecoverVehicle(ctx, &working, identity); err != nil {
		return nil, err
	}
	if err := s.validateAsset(working); err != nil {
		return nil, err
	}
	return s.BuildPayload(working, identity), nil
}

// BuildPayload normalizes a validated draft into the booking-creation body
func (s *SubmissionService) BuildPayload(draft models.BookingDraft, identity *Identity) *models.CreateBookingPayload {
	payload := &models.CreateBookingPayload{
		AssetType:       draft.AssetKind,
		CommonIssueIDs:  append([]int{}, draft.SelectedCommonIssueIDs...),
		FreeTextIssues:  s.normalizeIssues(draft.FreeTextIssues),
		Notes:           trimmedOrNil(draft.Notes),
		MediaURL:        trimmedOrNil(draft.MediaURL),
		DurationMinutes: copyInt(draft.DurationMinutes),
		TimeType:        draft.TimeType,
	}
	if draft.ScheduledAt != nil {
		payload.ScheduledAt = draft.ScheduledAt.UTC()
	}

	if identity.IsAdmin() {
		if draft.CustomerID != nil {
			payload.CustomerID = copyInt(draft.CustomerID)
		} else if nc := draft.NewCustomerDraft; nc != nil {
			payload.NewCustomer = &models.NewCustomerPayload{
				Email:    s.contacts.NormalizeEmail(nc.Email),
				Name:     strings.TrimSpace(nc.Name),
				Password: nc.Password,
			}
			if phone := s.contacts.SanitizePhone(nc.Phone); phone != "" {
				payload.NewCustomer.Phone = &phone
			}
		}
	}

	switch draft.AssetKind {
	case models.AssetKindVehicle:
		if draft.ExistingVehicleID != nil {
			payload.VehicleID = copyInt(draft.ExistingVehicleID)
		} else if draft.VehicleDraft != nil {
			vehicle := draft.VehicleDraft.Clone()
			vehicle.Model = strings.TrimSpace(vehicle.Model)
			vehicle.BrandOther = trimmedOrNil(vehicle.BrandOther)
			if vehicle.BrandID != nil {
				vehicle.BrandOther = nil
			}
			payload.Vehicle = vehicle
		}
	case models.AssetKindPart:
		if draft.PartDraft != nil {
			part := draft.PartDraft.Clone()
			part.Description = strings.TrimSpace(part.Description)
			payload.Part = part
		}
	}

	return payload
}

// Create sends the payload. Errors come back unchanged and are never retried.
func (s *SubmissionService) Create(ctx context.Context, identity *Identity, payload *models.CreateBookingPayload) (*models.BookingSubmission, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"user_id":    identity.UserID,
		"asset_type": payload.AssetType,
		"time_type":  payload.TimeType,
	})

	submission, err := s.bookings.CreateBooking(ctx, identity.AccessToken, payload)
	if err != nil {
		logger.WithError(err).Error("Booking creation failed")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"booking_id":   submission.ID,
		"booking_code": submission.Code,
	}).Info("Booking created")
	return submission, nil
}

func (s *SubmissionService) normalizeIssues(issues []string) []string {
	var out []string
	for _, issue := range issues {
		if trimmed := strings.TrimSpace(issue); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func trimmedOrNil(v *string) *string {
	if models.IsBlank(v) {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}
