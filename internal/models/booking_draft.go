package models

import (
	"sort"
	"strings"
	"time"
)

// ============================================================================
// ENUMS
// ============================================================================

// AssetKind is what the customer brings to the shop
type AssetKind string

const (
	AssetKindVehicle AssetKind = "VEHICLE"
	AssetKindPart    AssetKind = "PART"
)

// IsValid reports whether k is a known asset kind
func (k AssetKind) IsValid() bool {
	return k == AssetKindVehicle || k == AssetKindPart
}

// TimeType tells the shop how to interpret the scheduled instant
type TimeType string

const (
	TimeTypeSpecific  TimeType = "SPECIFIC"
	TimeTypeMorning   TimeType = "MORNING"
	TimeTypeAfternoon TimeType = "AFTERNOON"
)

// IsValid reports whether t is a known time type
func (t TimeType) IsValid() bool {
	switch t {
	case TimeTypeSpecific, TimeTypeMorning, TimeTypeAfternoon:
		return true
	}
	return false
}

// Role is the persona of the authenticated user
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

// DateLayout is the calendar-day key used by availability and selectedDate
const DateLayout = "2006-01-02"

// ============================================================================
// DRAFT SUB-STRUCTURES
// ============================================================================

// NewCustomerDraft is filled by an admin booking on behalf of an unregistered client
type NewCustomerDraft struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// VehicleDraft describes a vehicle not yet registered with the shop
type VehicleDraft struct {
	TypeID     *int    `json:"typeId,omitempty"`
	BrandID    *int    `json:"brandId,omitempty"`
	BrandOther *string `json:"brandOther,omitempty"`
	Model      string  `json:"model"`
	Year       *int    `json:"year,omitempty"`
}

// PartDraft describes a detached part brought in for repair
type PartDraft struct {
	CategoryID  *int   `json:"categoryId,omitempty"`
	Description string `json:"description"`
}

// ============================================================================
// ISSUE ID SET
// ============================================================================

// IssueIDSet is a set of common issue ids kept sorted so it serializes as a stable list
type IssueIDSet []int

// NewIssueIDSet builds a deduplicated, sorted set
func NewIssueIDSet(ids ...int) IssueIDSet {
	seen := make(map[int]struct{}, len(ids))
	set := make(IssueIDSet, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	sort.Ints(set)
	return set
}

// Contains reports membership
func (s IssueIDSet) Contains(id int) bool {
	i := sort.SearchInts(s, id)
	return i < len(s) && s[i] == id
}

// Toggle returns a new set with id added when absent and removed when present
func (s IssueIDSet) Toggle(id int) IssueIDSet {
	out := make(IssueIDSet, 0, len(s)+1)
	if s.Contains(id) {
		for _, v := range s {
			if v != id {
				out = append(out, v)
			}
		}
		return out
	}
	out = append(out, s...)
	out = append(out, id)
	sort.Ints(out)
	return out
}

// ============================================================================
// BOOKING DRAFT
// ============================================================================

// BookingDraft is the booking under construction in the wizard.
// The JSON shape is also the persisted shape.
type BookingDraft struct {
	AssetKind              AssetKind         `json:"assetKind"`
	CustomerID             *int              `json:"customerId,omitempty"`
	NewCustomerDraft       *NewCustomerDraft `json:"newCustomerDraft,omitempty"`
	VehicleDraft           *VehicleDraft     `json:"vehicleDraft,omitempty"`
	PartDraft              *PartDraft        `json:"partDraft,omitempty"`
	ExistingVehicleID      *int              `json:"existingVehicleId,omitempty"`
	SelectedCommonIssueIDs IssueIDSet        `json:"selectedCommonIssueIds"`
	FreeTextIssues         []string          `json:"freeTextIssues"`
	Notes                  *string           `json:"notes,omitempty"`
	MediaURL               *string           `json:"mediaUrl,omitempty"`
	SelectedDate           *string           `json:"selectedDate,omitempty"`
	ScheduledAt            *time.Time        `json:"scheduledAt,omitempty"`
	DurationMinutes        *int              `json:"durationMinutes,omitempty"`
	DurationOverridden     bool              `json:"durationOverridden,omitempty"`
	TimeType               TimeType          `json:"timeType"`
}

// DefaultBookingDraft returns the draft every session starts from
func DefaultBookingDraft() BookingDraft {
	return BookingDraft{
		AssetKind:              AssetKindVehicle,
		SelectedCommonIssueIDs: IssueIDSet{},
		FreeTextIssues:         []string{},
		TimeType:               TimeTypeSpecific,
	}
}

// Clone returns a deep copy so callers never share pointers with the store
func (d BookingDraft) Clone() BookingDraft {
	out := d
	out.CustomerID = cloneInt(d.CustomerID)
	out.ExistingVehicleID = cloneInt(d.ExistingVehicleID)
	out.DurationMinutes = cloneInt(d.DurationMinutes)
	out.Notes = cloneString(d.Notes)
	out.MediaURL = cloneString(d.MediaURL)
	out.SelectedDate = cloneString(d.SelectedDate)
	if d.ScheduledAt != nil {
		at := *d.ScheduledAt
		out.ScheduledAt = &at
	}
	if d.NewCustomerDraft != nil {
		nc := *d.NewCustomerDraft
		out.NewCustomerDraft = &nc
	}
	if d.VehicleDraft != nil {
		out.VehicleDraft = d.VehicleDraft.Clone()
	}
	if d.PartDraft != nil {
		out.PartDraft = d.PartDraft.Clone()
	}
	out.SelectedCommonIssueIDs = append(IssueIDSet{}, d.SelectedCommonIssueIDs...)
	out.FreeTextIssues = append([]string{}, d.FreeTextIssues...)
	return out
}

// Clone returns a deep copy
func (v *VehicleDraft) Clone() *VehicleDraft {
	if v == nil {
		return nil
	}
	out := *v
	out.TypeID = cloneInt(v.TypeID)
	out.BrandID = cloneInt(v.BrandID)
	out.BrandOther = cloneString(v.BrandOther)
	out.Year = cloneInt(v.Year)
	return &out
}

// Clone returns a deep copy
func (p *PartDraft) Clone() *PartDraft {
	if p == nil {
		return nil
	}
	out := *p
	out.CategoryID = cloneInt(p.CategoryID)
	return &out
}

// Normalize repairs a draft that did not come through the store mutators
// (hydrated from storage): unknown enums fall back to defaults and the
// exclusivity rules are re-applied, keeping the field the asset kind implies.
func (d *BookingDraft) Normalize() {
	if !d.AssetKind.IsValid() {
		d.AssetKind = AssetKindVehicle
	}
	if !d.TimeType.IsValid() {
		d.TimeType = TimeTypeSpecific
	}

	switch d.AssetKind {
	case AssetKindVehicle:
		d.PartDraft = nil
	case AssetKindPart:
		d.VehicleDraft = nil
		d.ExistingVehicleID = nil
	}
	if d.ExistingVehicleID != nil {
		d.VehicleDraft = nil
	}
	if d.CustomerID != nil {
		d.NewCustomerDraft = nil
	}

	d.SelectedCommonIssueIDs = NewIssueIDSet(d.SelectedCommonIssueIDs...)
	if d.FreeTextIssues == nil {
		d.FreeTextIssues = []string{}
	}
	if d.ScheduledAt != nil {
		at := d.ScheduledAt.UTC()
		d.ScheduledAt = &at
	}
	if d.SelectedDate != nil {
		if _, err := time.Parse(DateLayout, *d.SelectedDate); err != nil {
			d.SelectedDate = nil
		}
	}
	if d.DurationMinutes != nil && *d.DurationMinutes <= 0 {
		d.DurationMinutes = nil
	}
	if d.DurationMinutes == nil {
		d.DurationOverridden = false
	}
}

// IsBlank reports whether s is nil or only whitespace
func IsBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
