package services

import (
	"errors"
	"fmt"
)

// Validation codes returned by the submission validator
const (
	CodeMissingCredentials       = "missing_credentials"
	CodeMissingSchedule          = "missing_schedule"
	CodeNoCustomerSelected       = "no_customer_selected"
	CodeMissingVehicle           = "missing_vehicle"
	CodeMissingVehicleType       = "missing_vehicle_type"
	CodeMissingVehicleModel      = "missing_vehicle_model"
	CodeMissingVehicleBrand      = "missing_vehicle_brand"
	CodeVehicleSelectionRequired = "vehicle_selection_required"
	CodeMissingPart              = "missing_part"
	CodeMissingPartCategory      = "missing_part_category"
	CodeMissingPartDescription   = "missing_part_description"
	CodeAlreadySubmitted         = "already_submitted"
	CodeSubmissionInProgress     = "submission_in_progress"
)

// ValidationError is a locally detected problem with the draft. Nothing was sent to the shop.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newValidationError(code, field, message string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: message}
}

// AsValidationError unwraps err into a *ValidationError
func AsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}

// ErrSessionEnded is returned when the session's identity or draft generation changed
// while a network call was in flight; its result was discarded.
var ErrSessionEnded = errors.New("wizard session changed while the request was in flight")

// ErrUnauthenticated is returned by operations that need a signed-in user
var ErrUnauthenticated = errors.New("no authenticated user on this wizard session")

// ErrForbidden is returned when a client persona calls an admin-only operation
var ErrForbidden = errors.New("operation requires the admin role")
