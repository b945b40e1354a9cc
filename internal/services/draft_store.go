package services

import (
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/models"
)

// DraftHooks are side effects fired synchronously by DraftStore mutators
type DraftHooks struct {
	// OnChange receives every draft produced by a user-facing mutator
	OnChange func(draft models.BookingDraft)
	// OnAssetKindChange fires after the asset kind actually changed
	OnAssetKindChange func(kind models.AssetKind)
	// OnIssueScopeChange fires when the part category changed within a part booking
	OnIssueScopeChange func()
	// OnDurationChange fires when durationMinutes changed
	OnDurationChange func(duration *int)
	// OnReset fires after Reset restored the defaults
	OnReset func()
}

// DraftStore holds the authoritative booking under construction for one wizard session.
// It is not safe for concurrent use; WizardSession serializes access.
type DraftStore struct {
	draft        models.BookingDraft
	issueCatalog []models.CommonIssue
	zone         *time.Location
	hooks        DraftHooks
}

// NewDraftStore creates a store at the default draft.
// zone is the shop's time zone used to derive selectedDate from scheduledAt.
func NewDraftStore(zone *time.Location, hooks DraftHooks) *DraftStore {
	if zone == nil {
		zone = time.UTC
	}
	return &DraftStore{
		draft: models.DefaultBookingDraft(),
		zone:  zone,
		hooks: hooks,
	}
}

// Snapshot returns a copy of the current draft
func (s *DraftStore) Snapshot() models.BookingDraft {
	return s.draft.Clone()
}

// IssueCatalog returns the issue catalog used for duration derivation
func (s *DraftStore) IssueCatalog() []models.CommonIssue {
	return append([]models.CommonIssue(nil), s.issueCatalog...)
}

// ============================================================================
// MUTATORS
// ============================================================================

// SetAssetKind switches between vehicle and part bookings. Switching drops the
// opposite-kind draft, the issue selection, the existing vehicle and the issue catalog.
func (s *DraftStore) SetAssetKind(kind models.AssetKind) models.BookingDraft {
	if !kind.IsValid() || kind == s.draft.AssetKind {
		return s.Snapshot()
	}

	prev := s.draft.Clone()
	s.switchKind(kind)
	return s.commit(prev)
}

// SetVehicle stores a new-vehicle description. A non-nil draft clears the part draft
// and the existing vehicle; the issue selection is always cleared.
func (s *DraftStore) SetVehicle(vehicle *models.VehicleDraft) models.BookingDraft {
	prev := s.draft.Clone()
	if vehicle != nil {
		if s.draft.AssetKind != models.AssetKindVehicle {
			s.switchKind(models.AssetKindVehicle)
		}
		s.draft.PartDraft = nil
		s.draft.ExistingVehicleID = nil
	}
	s.draft.VehicleDraft = vehicle.Clone()
	s.clearIssues()
	return s.commit(prev)
}

// SetPart stores a part description. A non-nil draft clears the vehicle draft.
// A different part category drops the issue catalog, which is scoped by category.
func (s *DraftStore) SetPart(part *models.PartDraft) models.BookingDraft {
	prev := s.draft.Clone()
	if s.draft.AssetKind == models.AssetKindPart && !equalIntPtr(partCategoryID(s.draft.PartDraft), partCategoryID(part)) {
		s.issueCatalog = nil
		if s.hooks.OnIssueScopeChange != nil {
			s.hooks.OnIssueScopeChange()
		}
	}
	if part != nil {
		if s.draft.AssetKind != models.AssetKindPart {
			s.switchKind(models.AssetKindPart)
		}
		s.draft.VehicleDraft = nil
		s.draft.ExistingVehicleID = nil
	}
	s.draft.PartDraft = part.Clone()
	s.clearIssues()
	return s.commit(prev)
}

// SetExistingVehicleID picks a vehicle already on file
func (s *DraftStore) SetExistingVehicleID(id *int) models.BookingDraft {
	prev := s.draft.Clone()
	if id != nil {
		if s.draft.AssetKind != models.AssetKindVehicle {
			s.switchKind(models.AssetKindVehicle)
		}
		s.draft.VehicleDraft = nil
	}
	s.draft.ExistingVehicleID = copyInt(id)
	return s.commit(prev)
}

// SetCustomerID selects a registered customer (admin flow). Clearing it or moving to a
// different customer drops the existing vehicle.
func (s *DraftStore) SetCustomerID(id *int) models.BookingDraft {
	prev := s.draft.Clone()
	if id == nil || (s.draft.CustomerID != nil && *s.draft.CustomerID != *id) {
		s.draft.ExistingVehicleID = nil
	}
	if id != nil {
		s.draft.NewCustomerDraft = nil
	}
	s.draft.CustomerID = copyInt(id)
	return s.commit(prev)
}

// SetNewCustomerDraft switches the admin flow to an unregistered customer
func (s *DraftStore) SetNewCustomerDraft(customer *models.NewCustomerDraft) models.BookingDraft {
	prev := s.draft.Clone()
	if customer != nil {
		c := *customer
		s.draft.NewCustomerDraft = &c
		s.draft.CustomerID = nil
		s.draft.ExistingVehicleID = nil
	} else {
		s.draft.NewCustomerDraft = nil
	}
	return s.commit(prev)
}

// ToggleCommonIssue adds or removes one issue and re-derives the duration
func (s *DraftStore) ToggleCommonIssue(id int) models.BookingDraft {
	prev := s.draft.Clone()
	s.draft.SelectedCommonIssueIDs = s.draft.SelectedCommonIssueIDs.Toggle(id)
	s.draft.DurationOverridden = false
	s.draft.DurationMinutes = DeriveDuration(s.issueCatalog, s.draft.SelectedCommonIssueIDs)
	return s.commit(prev)
}

// SetFreeTextIssues replaces the free-text issue list, keeping order
func (s *DraftStore) SetFreeTextIssues(issues []string) models.BookingDraft {
	prev := s.draft.Clone()
	s.draft.FreeTextIssues = append([]string{}, issues...)
	return s.commit(prev)
}

// SetNotes sets or clears the notes
func (s *DraftStore) SetNotes(notes *string) models.BookingDraft {
	prev := s.draft.Clone()
	s.draft.Notes = copyString(notes)
	return s.commit(prev)
}

// SetMediaURL sets or clears the media link
func (s *DraftStore) SetMediaURL(url *string) models.BookingDraft {
	prev := s.draft.Clone()
	s.draft.MediaURL = copyString(url)
	return s.commit(prev)
}

// SetTimeType sets how the scheduled instant is interpreted
func (s *DraftStore) SetTimeType(timeType models.TimeType) models.BookingDraft {
	if !timeType.IsValid() {
		return s.Snapshot()
	}
	prev := s.draft.Clone()
	s.draft.TimeType = timeType
	return s.commit(prev)
}

// SetScheduledAt sets the chosen start instant, or clears it with nil.
// A non-nil instant also moves selectedDate to its calendar day in the shop zone;
// clearing keeps the selected day.
func (s *DraftStore) SetScheduledAt(at *time.Time) models.BookingDraft {
	prev := s.draft.Clone()
	if at == nil {
		s.draft.ScheduledAt = nil
		return s.commit(prev)
	}

	utc := at.UTC()
	day := utc.In(s.zone).Format(models.DateLayout)
	s.draft.ScheduledAt = &utc
	s.draft.SelectedDate = &day
	return s.commit(prev)
}

// SetSelectedDate picks a calendar day (YYYY-MM-DD) or clears it with "".
// A scheduled instant on another day is dropped.
func (s *DraftStore) SetSelectedDate(date string) models.BookingDraft {
	prev := s.draft.Clone()
	if date == "" {
		s.draft.SelectedDate = nil
		s.draft.ScheduledAt = nil
		return s.commit(prev)
	}

	if _, err := time.ParseInLocation(models.DateLayout, date, s.zone); err != nil {
		return s.Snapshot()
	}
	s.draft.SelectedDate = &date
	if s.draft.ScheduledAt != nil && s.draft.ScheduledAt.In(s.zone).Format(models.DateLayout) != date {
		s.draft.ScheduledAt = nil
	}
	return s.commit(prev)
}

// SetDurationOverride pins an explicit duration until the issue selection changes
func (s *DraftStore) SetDurationOverride(minutes *int) models.BookingDraft {
	prev := s.draft.Clone()
	if minutes != nil && *minutes <= 0 {
		minutes = nil
	}
	s.draft.DurationMinutes = copyInt(minutes)
	s.draft.DurationOverridden = minutes != nil
	return s.commit(prev)
}

// SetIssueCatalog installs a freshly loaded issue catalog and re-derives the duration
// unless it was pinned by SetDurationOverride. The pin is part of the draft, so it
// also holds after hydration.
func (s *DraftStore) SetIssueCatalog(catalog []models.CommonIssue) models.BookingDraft {
	s.issueCatalog = append([]models.CommonIssue(nil), catalog...)
	if s.draft.DurationOverridden {
		return s.Snapshot()
	}

	derived := DeriveDuration(s.issueCatalog, s.draft.SelectedCommonIssueIDs)
	if equalIntPtr(derived, s.draft.DurationMinutes) {
		return s.Snapshot()
	}
	prev := s.draft.Clone()
	s.draft.DurationMinutes = derived
	return s.commit(prev)
}

// ClearIssueCatalog forgets the issue catalog without touching the draft
func (s *DraftStore) ClearIssueCatalog() {
	s.issueCatalog = nil
}

// Reset restores the default draft
func (s *DraftStore) Reset() models.BookingDraft {
	s.draft = models.DefaultBookingDraft()
	if s.hooks.OnReset != nil {
		s.hooks.OnReset()
	}
	return s.Snapshot()
}

// Replace installs a draft without firing any hook. Used for hydration and for the
// silent clear after a successful submission.
func (s *DraftStore) Replace(draft models.BookingDraft) models.BookingDraft {
	draft = draft.Clone()
	draft.Normalize()
	s.draft = draft
	return s.Snapshot()
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *DraftStore) switchKind(kind models.AssetKind) {
	s.draft.AssetKind = kind
	switch kind {
	case models.AssetKindVehicle:
		s.draft.PartDraft = nil
	case models.AssetKindPart:
		s.draft.VehicleDraft = nil
	}
	s.draft.ExistingVehicleID = nil
	s.issueCatalog = nil
	s.clearIssues()
}

func (s *DraftStore) clearIssues() {
	s.draft.SelectedCommonIssueIDs = models.IssueIDSet{}
	s.draft.DurationOverridden = false
	s.draft.DurationMinutes = DeriveDuration(s.issueCatalog, s.draft.SelectedCommonIssueIDs)
}

func (s *DraftStore) commit(prev models.BookingDraft) models.BookingDraft {
	if prev.AssetKind != s.draft.AssetKind && s.hooks.OnAssetKindChange != nil {
		s.hooks.OnAssetKindChange(s.draft.AssetKind)
	}
	if !equalIntPtr(prev.DurationMinutes, s.draft.DurationMinutes) && s.hooks.OnDurationChange != nil {
		s.hooks.OnDurationChange(copyInt(s.draft.DurationMinutes))
	}
	snapshot := s.Snapshot()
	if s.hooks.OnChange != nil {
		s.hooks.OnChange(snapshot.Clone())
	}
	return snapshot
}

func partCategoryID(part *models.PartDraft) *int {
	if part == nil {
		return nil
	}
	return part.CategoryID
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
