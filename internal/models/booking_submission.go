package models

import "time"

// ============================================================================
// SUBMISSION LIFECYCLE
// ============================================================================

// SubmissionStatus tracks a wizard session's submission attempt
type SubmissionStatus string

const (
	SubmissionStatusEditing    SubmissionStatus = "EDITING"
	SubmissionStatusValidating SubmissionStatus = "VALIDATING"
	SubmissionStatusSubmitting SubmissionStatus = "SUBMITTING"
	SubmissionStatusSubmitted  SubmissionStatus = "SUBMITTED"
	SubmissionStatusRejected   SubmissionStatus = "REJECTED"
	SubmissionStatusFailed     SubmissionStatus = "FAILED"
)

// ============================================================================
// WIRE PAYLOAD
// ============================================================================

// NewCustomerPayload is the normalized new-customer block sent by admins
type NewCustomerPayload struct {
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Phone    *string `json:"phone,omitempty"`
	Password string  `json:"password,omitempty"`
}

// CreateBookingPayload is the body of the booking-creation call
type CreateBookingPayload struct {
	CustomerID      *int                `json:"customerId,omitempty"`
	NewCustomer     *NewCustomerPayload `json:"newCustomer,omitempty"`
	AssetType       AssetKind           `json:"assetType"`
	VehicleID       *int                `json:"vehicleId,omitempty"`
	Vehicle         *VehicleDraft       `json:"vehicle,omitempty"`
	Part            *PartDraft          `json:"part,omitempty"`
	CommonIssueIDs  []int               `json:"commonIssueIds"`
	FreeTextIssues  []string            `json:"freeTextIssues,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	MediaURL        *string             `json:"mediaUrl,omitempty"`
	ScheduledAt     time.Time           `json:"scheduledAt"`
	DurationMinutes *int                `json:"durationMinutes,omitempty"`
	TimeType        TimeType            `json:"timeType"`
}

// BookingSubmission is the shop's confirmation of a created booking. Never mutated.
type BookingSubmission struct {
	ID              int        `json:"id"`
	Code            string     `json:"code,omitempty"`
	Status          string     `json:"status"`
	ScheduledAt     time.Time  `json:"scheduledAt"`
	TimeType        TimeType   `json:"timeType,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}
