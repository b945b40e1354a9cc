package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// AvailabilityConfig configures an AvailabilityCache
type AvailabilityConfig struct {
	// Zone is the shop's time zone; dates are calendar days in this zone
	Zone *time.Location
	// MaxParallel caps concurrent slot queries, 0 means one per missing date
	MaxParallel int
	// InvalidateOnDurationChange drops cached counts when the duration estimate changes
	InvalidateOnDurationChange bool
}

// AvailabilitySnapshot is an immutable view of the cache for one window
type AvailabilitySnapshot struct {
	// Counts holds every cached date, not only the window
	Counts map[string]int `json:"counts"`
	// Window lists the requested dates in order
	Window []string `json:"window"`
	// Missing lists window dates still unknown after the refresh
	Missing []string `json:"missing,omitempty"`
}

// AvailabilityCache caches open-slot counts per calendar day for one wizard session
type AvailabilityCache struct {
	mu         sync.Mutex
	slots      SlotClient
	config     AvailabilityConfig
	logger     *logrus.Logger
	counts     map[string]int
	generation uint64

	scoped        bool
	scopeKind     models.AssetKind
	scopeDuration *int
}

// NewAvailabilityCache creates an empty cache
func NewAvailabilityCache(slots SlotClient, config AvailabilityConfig, logger *logrus.Logger) *AvailabilityCache {
	if config.Zone == nil {
		config.Zone = time.UTC
	}
	return &AvailabilityCache{
		slots:  slots,
		config: config,
		logger: logger,
		counts: make(map[string]int),
	}
}

// WindowDates returns the `days` calendar days starting at start, formatted in zone
func WindowDates(start time.Time, days int, zone *time.Location) []string {
	if days <= 0 {
		return []string{}
	}
	local := start.In(zone)
	first := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)

	dates := make([]string, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, first.AddDate(0, 0, i).Format(models.DateLayout))
	}
	return dates
}

// Refresh makes sure every day of the window is cached. Only dates not yet cached are
// queried, all of them concurrently; successful days are stored even when another day
// fails, and the first failure is returned together with the snapshot.
func (c *AvailabilityCache) Refresh(ctx context.Context, start time.Time, days int, kind models.AssetKind, duration *int) (AvailabilitySnapshot, error) {
	window := WindowDates(start, days, c.config.Zone)

	c.mu.Lock()
	c.rescope(kind, duration)
	missing := c.missingLocked(window)
	generation := c.generation
	if len(missing) == 0 {
		snapshot := c.snapshotLocked(window)
		c.mu.Unlock()
		return snapshot, nil
	}
	c.mu.Unlock()

	logger := c.logger.WithFields(logrus.Fields{
		"asset_kind": kind,
		"missing":    len(missing),
		"window":     len(window),
	})
	logger.Debug("Fetching availability for missing dates")

	results := make([]*int, len(missing))
	var g errgroup.Group
	if c.config.MaxParallel > 0 {
		g.SetLimit(c.config.MaxParallel)
	}
	for i, date := range missing {
		g.Go(func() error {
			slots, err := c.slots.ListAvailableSlots(ctx, models.SlotQuery{
				Date:            date,
				AssetKind:       kind,
				DurationMinutes: copyInt(duration),
			})
			if err != nil {
				return fmt.Errorf("availability for %s: %w", date, err)
			}
			count := len(slots)
			results[i] = &count
			return nil
		})
	}
	fetchErr := g.Wait()

	c.mu.Lock()
	if c.generation != generation {
		snapshot := c.snapshotLocked(window)
		c.mu.Unlock()
		logger.Debug("Discarding availability results from a cleared cache generation")
		return snapshot, ErrSessionEnded
	}
	fetched := 0
	for i, date := range missing {
		if results[i] != nil {
			c.counts[date] = *results[i]
			fetched++
		}
	}
	snapshot := c.snapshotLocked(window)
	c.mu.Unlock()

	if fetchErr != nil {
		logger.WithError(fetchErr).WithField("fetched", fetched).Warn("Availability refresh incomplete")
	}
	return snapshot, fetchErr
}

// Snapshot copies the cache; window may be nil
func (c *AvailabilityCache) Snapshot(window []string) AvailabilitySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(window)
}

func (c *AvailabilityCache) snapshotLocked(window []string) AvailabilitySnapshot {
	counts := make(map[string]int, len(c.counts))
	for date, n := range c.counts {
		counts[date] = n
	}
	snapshot := AvailabilitySnapshot{
		Counts: counts,
		Window: append([]string{}, window...),
	}
	if missing := c.missingLocked(window); len(missing) > 0 {
		snapshot.Missing = missing
	}
	return snapshot
}

// Clear drops every cached date and invalidates in-flight refreshes
func (c *AvailabilityCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// DurationChanged applies the duration-change policy
func (c *AvailabilityCache) DurationChanged(duration *int) {
	if !c.config.InvalidateOnDurationChange {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scoped && !equalIntPtr(c.scopeDuration, duration) {
		c.clearLocked()
	}
}

// CachedDates returns the cached dates in order
func (c *AvailabilityCache) CachedDates() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	dates := make([]string, 0, len(c.counts))
	for date := range c.counts {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

func (c *AvailabilityCache) clearLocked() {
	c.counts = make(map[string]int)
	c.generation++
	c.scoped = false
	c.scopeDuration = nil
}

// rescope drops counts fetched for another asset kind, or for another duration when
// the duration policy is on, then records the scope the next fetch runs with.
func (c *AvailabilityCache) rescope(kind models.AssetKind, duration *int) {
	if c.scoped {
		stale := c.scopeKind != kind ||
			(c.config.InvalidateOnDurationChange && !equalIntPtr(c.scopeDuration, duration))
		if stale {
			c.clearLocked()
		}
	}
	c.scoped = true
	c.scopeKind = kind
	c.scopeDuration = copyInt(duration)
}

func (c *AvailabilityCache) missingLocked(window []string) []string {
	var missing []string
	for _, date := range window {
		if _, ok := c.counts[date]; !ok {
			missing = append(missing, date)
		}
	}
	return missing
}
