package services

import (
	"context"
	"sync"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

// SessionDeps are the collaborators shared by every wizard session
type SessionDeps struct {
	Catalog      CatalogClient
	Slots        SlotClient
	Customers    CustomerDirectory
	Submitter    *SubmissionService
	Storage      DraftStorage
	Codec        DraftCodec
	Zone         *time.Location
	Persistence  DraftPersistenceConfig
	Availability AvailabilityConfig
	Logger       *logrus.Logger
}

// SessionState is what the wizard UI renders
type SessionState struct {
	SessionID        string                    `json:"sessionId"`
	UserID           string                    `json:"userId,omitempty"`
	Role             models.Role               `json:"role,omitempty"`
	Draft            models.BookingDraft       `json:"draft"`
	SubmissionStatus models.SubmissionStatus   `json:"submissionStatus"`
	LastOutcome      models.SubmissionStatus   `json:"lastOutcome,omitempty"`
	Submission       *models.BookingSubmission `json:"submission,omitempty"`
	Loading          LoadingFlags              `json:"loading"`
	Persistence      PersistenceState          `json:"persistence"`
}

// WizardSession owns the draft store, persistence, availability cache and catalogs of
// one browser session. Operations are serialized by mu; network calls run unlocked and
// their results are applied only if the session generation did not move meanwhile.
type WizardSession struct {
	mu           sync.Mutex
	id           string
	deps         SessionDeps
	logger       *logrus.Entry
	identity     *Identity
	store        *DraftStore
	persistence  *DraftPersistence
	availability *AvailabilityCache
	reference    *ReferenceDataService
	status       models.SubmissionStatus
	lastOutcome  models.SubmissionStatus
	submission   *models.BookingSubmission
	generation   uint64
	lastSeen     time.Time
}

// NewWizardSession creates a session with a default draft and no user
func NewWizardSession(id string, deps SessionDeps) *WizardSession {
	if deps.Zone == nil {
		deps.Zone = time.UTC
	}
	deps.Availability.Zone = deps.Zone

	s := &WizardSession{
		id:           id,
		deps:         deps,
		logger:       deps.Logger.WithField("wizard_session", id),
		persistence:  NewDraftPersistence(deps.Storage, deps.Codec, deps.Persistence, deps.Logger),
		availability: NewAvailabilityCache(deps.Slots, deps.Availability, deps.Logger),
		reference:    NewReferenceDataService(deps.Catalog, deps.Logger),
		status:       models.SubmissionStatusEditing,
		lastSeen:     time.Now(),
	}
	s.store = NewDraftStore(deps.Zone, DraftHooks{
		OnChange: func(draft models.BookingDraft) {
			s.persistence.Save(context.Background(), draft)
		},
		OnAssetKindChange: func(models.AssetKind) {
			s.reference.ClearIssues()
			s.availability.Clear()
		},
		OnIssueScopeChange: func() {
			s.reference.ClearIssues()
		},
		OnDurationChange: func(duration *int) {
			s.availability.DurationChanged(duration)
		},
		OnReset: func() {
			s.availability.Clear()
			s.persistence.Clear(context.Background())
		},
	})
	return s
}

// ID returns the session id
func (s *WizardSession) ID() string { return s.id }

// LastSeen returns when the session was last used
func (s *WizardSession) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// State returns a snapshot for rendering
func (s *WizardSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	return s.stateLocked()
}

func (s *WizardSession) stateLocked() SessionState {
	state := SessionState{
		SessionID:        s.id,
		Draft:            s.store.Snapshot(),
		SubmissionStatus: s.status,
		LastOutcome:      s.lastOutcome,
		Submission:       s.submission,
		Loading:          s.reference.Loading(),
		Persistence:      s.persistence.State(),
	}
	if s.identity != nil {
		state.UserID = s.identity.UserID
		state.Role = s.identity.Role
	}
	return state
}

// ============================================================================
// IDENTITY
// ============================================================================

// Authenticate observes the current identity. A different user than before discards
// the in-memory draft and hydrates the new user's persisted one; the same user only
// refreshes the token.
func (s *WizardSession) Authenticate(ctx context.Context, identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	if s.identity != nil && s.identity.UserID == identity.UserID {
		s.identity = &identity
		s.persistence.UpdateToken(identity.AccessToken != "")
		return
	}

	previous := ""
	if s.identity != nil {
		previous = s.identity.UserID
	}
	s.logger.WithFields(logrus.Fields{
		"previous_user": previous,
		"user_id":       identity.UserID,
		"role":          identity.Role,
	}).Info("Wizard session identity changed")

	s.generation++
	s.identity = &identity
	s.resetSubmissionLocked()
	s.availability.Clear()
	s.reference.ClearIssues()
	s.store.Replace(models.DefaultBookingDraft())
	s.store.ClearIssueCatalog()

	draft, _ := s.persistence.SwitchUser(ctx, identity.UserID, identity.AccessToken != "")
	s.store.Replace(draft)
}

// Logout deletes the persisted draft and returns the session to its initial state
func (s *WizardSession) Logout(ctx context.Context) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	s.generation++
	s.persistence.Logout(ctx)
	s.identity = nil
	s.resetSubmissionLocked()
	s.availability.Clear()
	s.reference.ClearIssues()
	s.store.Replace(models.DefaultBookingDraft())
	s.store.ClearIssueCatalog()

	s.logger.Info("Wizard session logged out")
	return s.stateLocked()
}

// Identity returns a copy of the current identity, nil when signed out
func (s *WizardSession) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// ============================================================================
// DRAFT MUTATIONS
// ============================================================================

// Mutate applies fn to the draft store under the session lock
func (s *WizardSession) Mutate(fn func(store *DraftStore) models.BookingDraft) models.BookingDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	return fn(s.store)
}

// Reset discards the draft, the availability cache, the persisted entry and any
// previous submission.
func (s *WizardSession) Reset() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	s.generation++
	s.resetSubmissionLocked()
	s.store.Reset()
	return s.stateLocked()
}

func (s *WizardSession) resetSubmissionLocked() {
	s.status = models.SubmissionStatusEditing
	s.lastOutcome = ""
	s.submission = nil
}

// ============================================================================
// REFERENCE DATA
// ============================================================================

// Issues loads the issue catalog for the draft's current asset kind (and part category)
// and feeds it to duration derivation.
func (s *WizardSession) Issues(ctx context.Context) ([]models.CommonIssue, error) {
	s.mu.Lock()
	s.lastSeen = time.Now()
	draft := s.store.Snapshot()
	generation := s.generation
	s.mu.Unlock()

	var category *int
	if draft.AssetKind == models.AssetKindPart {
		category = partCategoryID(draft.PartDraft)
	}

	items, err := s.reference.Issues(ctx, draft.AssetKind, category)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation || s.store.draft.AssetKind != draft.AssetKind ||
		(draft.AssetKind == models.AssetKindPart && !equalIntPtr(partCategoryID(s.store.draft.PartDraft), category)) {
		return nil, ErrSessionEnded
	}
	s.store.SetIssueCatalog(items)
	return items, nil
}

// PartCategories returns the part category catalog
func (s *WizardSession) PartCategories(ctx context.Context) ([]models.PartCategory, error) {
	s.touch()
	return s.reference.PartCategories(ctx)
}

// VehicleTypes returns the vehicle type catalog
func (s *WizardSession) VehicleTypes(ctx context.Context) ([]models.VehicleType, error) {
	s.touch()
	return s.reference.VehicleTypes(ctx)
}

// VehicleBrands returns the vehicle brand catalog
func (s *WizardSession) VehicleBrands(ctx context.Context) ([]models.VehicleBrand, error) {
	s.touch()
	return s.reference.VehicleBrands(ctx)
}

// SearchCustomers looks up registered customers (admin only)
func (s *WizardSession) SearchCustomers(ctx context.Context, query string) ([]models.Customer, error) {
	identity, err := s.admin()
	if err != nil {
		return nil, err
	}
	return s.deps.Customers.SearchCustomers(ctx, identity.AccessToken, query)
}

// CustomerVehicles lists a customer's vehicles on file (admin only)
func (s *WizardSession) CustomerVehicles(ctx context.Context, customerID int) ([]models.CustomerVehicle, error) {
	identity, err := s.admin()
	if err != nil {
		return nil, err
	}
	return s.deps.Customers.ListCustomerVehicles(ctx, identity.AccessToken, customerID)
}

// ============================================================================
// AVAILABILITY
// ============================================================================

// Availability refreshes the slot counts for a window using the draft's asset kind and
// duration estimate.
func (s *WizardSession) Availability(ctx context.Context, start time.Time, days int) (AvailabilitySnapshot, error) {
	s.mu.Lock()
	s.lastSeen = time.Now()
	kind := s.store.draft.AssetKind
	duration := copyInt(s.store.draft.DurationMinutes)
	s.mu.Unlock()

	return s.availability.Refresh(ctx, start, days, kind, duration)
}

// ============================================================================
// SUBMISSION
// ============================================================================

// Submit validates and sends the draft. On success the persisted entry is deleted and
// the draft silently returns to defaults; catalogs are kept. On failure nothing changes.
func (s *WizardSession) Submit(ctx context.Context) (*models.BookingSubmission, error) {
	s.mu.Lock()
	s.lastSeen = time.Now()
	switch s.status {
	case models.SubmissionStatusSubmitted:
		s.mu.Unlock()
		return nil, newValidationError(CodeAlreadySubmitted, "", "this booking was already submitted, start a new one")
	case models.SubmissionStatusValidating, models.SubmissionStatusSubmitting:
		s.mu.Unlock()
		return nil, newValidationError(CodeSubmissionInProgress, "", "the booking is being submitted")
	}
	var identity *Identity
	if s.identity != nil {
		id := *s.identity
		identity = &id
	}
	draft := s.store.Snapshot()
	generation := s.generation
	s.status = models.SubmissionStatusValidating
	s.mu.Unlock()

	payload, err := s.deps.Submitter.Prepare(ctx, draft, identity)
	if err != nil {
		s.mu.Lock()
		if s.generation == generation {
			s.status = models.SubmissionStatusEditing
			s.lastOutcome = models.SubmissionStatusRejected
		}
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return nil, ErrSessionEnded
	}
	s.status = models.SubmissionStatusSubmitting
	s.mu.Unlock()

	submission, err := s.deps.Submitter.Create(ctx, identity, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		if err == nil {
			s.logger.WithField("booking_id", submission.ID).Warn("Booking created after the wizard session moved on")
		}
		return submission, err
	}
	if err != nil {
		s.status = models.SubmissionStatusEditing
		s.lastOutcome = models.SubmissionStatusFailed
		return nil, err
	}

	s.submission = submission
	s.status = models.SubmissionStatusSubmitted
	s.lastOutcome = models.SubmissionStatusSubmitted
	s.persistence.Clear(ctx)
	s.store.Replace(models.DefaultBookingDraft())
	if draft.AssetKind != models.AssetKindVehicle {
		s.reference.ClearIssues()
		s.store.ClearIssueCatalog()
	}
	s.availability.Clear()
	return submission, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *WizardSession) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *WizardSession) admin() (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	if s.identity == nil {
		return nil, ErrUnauthenticated
	}
	if !s.identity.IsAdmin() {
		return nil, ErrForbidden
	}
	id := *s.identity
	return &id, nil
}
