package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

// PersistenceState is the state of the per-session persistence wrapper
type PersistenceState string

const (
	PersistenceNoUser    PersistenceState = "NO_USER"
	PersistenceHydrating PersistenceState = "HYDRATING"
	PersistenceReady     PersistenceState = "READY"
)

// DefaultDraftNamespace prefixes every persisted draft key
const DefaultDraftNamespace = "taller.bookingDraft"

// DraftPersistenceConfig configures DraftPersistence
type DraftPersistenceConfig struct {
	Namespace string
	// Timeout bounds every storage call
	Timeout time.Duration
}

// DraftPersistence mirrors one session's draft into durable per-user storage.
// Storage failures never reach the caller; they are logged and the in-memory draft stays authoritative.
type DraftPersistence struct {
	mu       sync.Mutex
	storage  DraftStorage
	codec    DraftCodec
	config   DraftPersistenceConfig
	logger   *logrus.Logger
	state    PersistenceState
	userID   string
	hasToken bool
}

// NewDraftPersistence creates a persistence wrapper in the NoUser state
func NewDraftPersistence(storage DraftStorage, codec DraftCodec, config DraftPersistenceConfig, logger *logrus.Logger) *DraftPersistence {
	if config.Namespace == "" {
		config.Namespace = DefaultDraftNamespace
	}
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}
	if codec == nil {
		codec = PlainCodec()
	}
	return &DraftPersistence{
		storage: storage,
		codec:   codec,
		config:  config,
		logger:  logger,
		state:   PersistenceNoUser,
	}
}

// DraftKey returns the storage key for a user
func DraftKey(namespace, userID string) string {
	return fmt.Sprintf("%s.%s", namespace, userID)
}

// State returns the current persistence state
func (p *DraftPersistence) State() PersistenceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// UserID returns the user whose key is mirrored, empty in NoUser
func (p *DraftPersistence) UserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userID
}

// SwitchUser moves the wrapper to a new identity and returns the draft to install.
// The previous user's entry is deleted when the user differs. An empty userID logs out.
// switched is false when userID is already the current user; nothing is loaded then.
func (p *DraftPersistence) SwitchUser(ctx context.Context, userID string, hasToken bool) (draft models.BookingDraft, switched bool) {
	p.mu.Lock()
	previous := p.userID
	if previous == userID {
		p.hasToken = hasToken
		p.mu.Unlock()
		return models.DefaultBookingDraft(), false
	}
	p.state = PersistenceHydrating
	p.userID = userID
	p.hasToken = hasToken
	p.mu.Unlock()

	if previous != "" {
		p.delete(ctx, previous)
	}

	if userID == "" {
		p.mu.Lock()
		p.state = PersistenceNoUser
		p.mu.Unlock()
		return models.DefaultBookingDraft(), true
	}

	draft = p.load(ctx, userID)

	p.mu.Lock()
	if p.userID == userID {
		p.state = PersistenceReady
	}
	p.mu.Unlock()
	return draft, true
}

// UpdateToken records whether the current user still has an access token
func (p *DraftPersistence) UpdateToken(hasToken bool) {
	p.mu.Lock()
	p.hasToken = hasToken
	p.mu.Unlock()
}

// Save writes the full draft for the current user. Writes outside the Ready state
// or without a token are skipped.
func (p *DraftPersistence) Save(ctx context.Context, draft models.BookingDraft) {
	p.mu.Lock()
	userID, ready := p.userID, p.state == PersistenceReady && p.userID != "" && p.hasToken
	p.mu.Unlock()
	if !ready {
		return
	}

	raw, err := json.Marshal(draft)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to serialize booking draft")
		return
	}
	sealed, err := p.codec.Seal(raw)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to seal booking draft")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	if err := p.storage.Set(ctx, DraftKey(p.config.Namespace, userID), sealed); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
		}).Warn("Failed to persist booking draft")
	}
}

// Clear deletes the current user's entry and keeps the state
func (p *DraftPersistence) Clear(ctx context.Context) {
	p.mu.Lock()
	userID := p.userID
	p.mu.Unlock()
	if userID == "" {
		return
	}
	p.delete(ctx, userID)
}

// Logout deletes the current user's entry and returns to NoUser
func (p *DraftPersistence) Logout(ctx context.Context) {
	p.mu.Lock()
	userID := p.userID
	p.userID = ""
	p.hasToken = false
	p.state = PersistenceNoUser
	p.mu.Unlock()
	if userID != "" {
		p.delete(ctx, userID)
	}
}

func (p *DraftPersistence) load(ctx context.Context, userID string) models.BookingDraft {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	logger := p.logger.WithField("user_id", userID)
	stored, found, err := p.storage.Get(ctx, DraftKey(p.config.Namespace, userID))
	if err != nil {
		logger.WithError(err).Warn("Failed to load persisted booking draft, starting from defaults")
		return models.DefaultBookingDraft()
	}
	if !found {
		return models.DefaultBookingDraft()
	}

	raw, err := p.codec.Open(stored)
	if err != nil {
		logger.WithError(err).Warn("Failed to open persisted booking draft, starting from defaults")
		return models.DefaultBookingDraft()
	}

	// Unmarshal over the defaults so missing fields keep their default value
	draft := models.DefaultBookingDraft()
	if err := json.Unmarshal(raw, &draft); err != nil {
		logger.WithError(err).Warn("Persisted booking draft is malformed, starting from defaults")
		return models.DefaultBookingDraft()
	}
	draft.Normalize()

	logger.Debug("Hydrated booking draft")
	return draft
}

func (p *DraftPersistence) delete(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	if err := p.storage.Delete(ctx, DraftKey(p.config.Namespace, userID)); err != nil {
		p.logger.WithError(err).WithField("user_id", userID).Warn("Failed to delete persisted booking draft")
	}
}
