package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSlotClient struct {
	mu      sync.Mutex
	calls   []models.SlotQuery
	slots   map[string]int
	failing map[string]error
	gate    chan struct{}
}

func newFakeSlotClient() *fakeSlotClient {
	return &fakeSlotClient{slots: map[string]int{}, failing: map[string]error{}}
}

func (f *fakeSlotClient) ListAvailableSlots(ctx context.Context, q models.SlotQuery) ([]time.Time, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	gate := f.gate
	err := f.failing[q.Date]
	n := f.slots[q.Date]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2025, 3, 10, 9+i, 0, 0, 0, time.UTC)
	}
	return out, nil
}

func (f *fakeSlotClient) queriedDates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	dates := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		dates = append(dates, c.Date)
	}
	sort.Strings(dates)
	return dates
}

func (f *fakeSlotClient) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func setupAvailabilityTest(invalidateOnDuration bool) (*AvailabilityCache, *fakeSlotClient) {
	slots := newFakeSlotClient()
	cache := NewAvailabilityCache(slots, AvailabilityConfig{
		Zone:                       shopZone(),
		InvalidateOnDurationChange: invalidateOnDuration,
	}, quietLogger())
	return cache, slots
}

// 2025-03-10 in the shop zone
var windowStart = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestWindowDates(t *testing.T) {
	t.Run("Uses the shop zone", func(t *testing.T) {
		// 02:00 UTC on the 10th is still the 9th at UTC-3
		start := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
		assert.Equal(t, []string{"2025-03-09", "2025-03-10"}, WindowDates(start, 2, shopZone()))
	})

	t.Run("Crosses month boundary", func(t *testing.T) {
		start := time.Date(2025, 2, 27, 15, 0, 0, 0, time.UTC)
		assert.Equal(t, []string{"2025-02-27", "2025-02-28", "2025-03-01"}, WindowDates(start, 3, shopZone()))
	})

	t.Run("Empty window", func(t *testing.T) {
		assert.Empty(t, WindowDates(windowStart, 0, shopZone()))
	})
}

func TestAvailabilityCacheRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("Fetches every missing date once", func(t *testing.T) {
		cache, slots := setupAvailabilityTest(true)
		slots.slots["2025-03-10"] = 3
		slots.slots["2025-03-11"] = 0
		slots.slots["2025-03-12"] = 5

		snap, err := cache.Refresh(ctx, windowStart, 3, models.AssetKindVehicle, intPtr(60))
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"2025-03-10": 3, "2025-03-11": 0, "2025-03-12": 5}, snap.Counts)
		assert.Equal(t, []string{"2025-03-10", "2025-03-11", "2025-03-12"}, snap.Window)
		assert.Empty(t, snap.Missing)
		assert.Len(t, slots.calls, 3)
		for _, q := range slots.calls {
			assert.Equal(t, models.AssetKindVehicle, q.AssetKind)
			assert.Equal(t, 60, *q.DurationMinutes)
		}
	})

	t.Run("Second refresh of the same window does no I/O", func(t *testing.T) {
		cache, slots := setupAvailabilityTest(true)
		_, err := cache.Refresh(ctx, windowStart, 3, models.AssetKindVehicle, nil)
		require.NoError(t, err)
		slots.reset()

		_, err = cache.Refresh(ctx, windowStart, 3, models.AssetKindVehicle, nil)
		require.NoError(t, err)
		assert.Empty(t, slots.calls)
	})

	t.Run("Overlapping window only fetches new dates", func(t *testing.T) {
		cache, slots := setupAvailabilityTest(true)
		_, err := cache.Refresh(ctx, windowStart, 3, models.AssetKindVehicle, nil)
		require.NoError(t, err)
		slots.reset()

		snap, err := cache.Refresh(ctx, windowStart.AddDate(0, 0, 1), 4, models.AssetKindVehicle, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-03-13", "2025-03-14"}, slots.queriedDates())
		assert.Len(t, snap.Counts, 5)
	})

	t.Run("Partial failure keeps successes and retries only the failed date", func(t *testing.T) {
		cache, slots := setupAvailabilityTest(true)
		slots.slots["2025-03-10"] = 2
		slots.slots["2025-03-11"] = 4
		slots.slots["2025-03-12"] = 1
		slots.failing["2025-03-11"] = errors.New("timeout")

		snap, err := cache.Refresh(ctx, windowStart, 3, models.AssetKindVehicle, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2025-03-11")
		assert.Equal(t, map[string]int{"2025-03-10": 2, "2025-03-12": 1}, snap.Counts)
		assert.Equal(t, []string{"2025-03-11"}, snap.Missing)

		slots.reset()
		delete(slots.failing, "2025-03-11")
		snap, err = cache.Refresh(ctx, windowStart, 3, models.AssetKindVehicle, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-03-11"}, slots.queriedDates())
		assert.Equal(t, 4, snap.Counts["2025-03-11"])
	})

	t.Run("Snapshot is a copy", func(t *testing.T) {
		cache, _ := setupAvailabilityTest(true)
		snap, err := cache.Refresh(ctx, windowStart, 1, models.AssetKindVehicle, nil)
		require.NoError(t, err)
		snap.Counts["2025-03-10"] = 99
		assert.Equal(t, 0, cache.Snapshot(nil).Counts["2025-03-10"])
	})

	t.Run("Parallel limit still fetches everything", func(t *testing.T) {
		slots := newFakeSlotClient()
		cache := NewAvailabilityCache(slots, AvailabilityConfig{Zone: shopZone(), MaxParallel: 2}, quietLogger())
		snap, err := cache.Refresh(ctx, windowStart, 7, models.AssetKindPart, nil)
		require.NoError(t, err)
		assert.Len(t, snap.Counts, 7)
	})
}

func TestAvailabilityCacheInvalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("Clear drops everything", func(t *testing.T) {
		cache, slots := setupAvailabilityTest(true)
		_, err := cache.Refresh(ctx, windowStart, 2, models.AssetKindVehicle, nil)
		require.NoError(t, err)

		cache.Clear()
		assert.Empty(t, cache.CachedDates())

		slots.reset()
		_, err = cache.Refresh(ctx, windowStart, 2, models.AssetKindVehicle, nil)
		require.NoError(t, err)
		assert.Len(t, slots.calls, 2)
	})

	t.Run("Asset kind change refetches", func(t *testing.T) {
		cache, slots := setupAvailabilityTest(false)
		_, err := cache.Refresh(ctx, windowStart, 2, models.AssetKindVehicle, nil)
		require.NoError(t, err)
		slots.reset()

		_, err = cache.Refresh(ctx, windowStart, 2, models.AssetKindPart, nil)
		require.NoError(t, err)
		assert.Len(t, slots.calls, 2)
	})

	t.Run("Duration change refetches when the policy is on", func(t *testing.T) {
		cache, slots := setupAvailabilityTest(true)
		_, err := cache.Refresh(ctx, windowStart, 2, models.AssetKindVehicle, intPtr(30))
		require.NoError(t, err)

		cache.DurationChanged(intPtr(90))
		assert.Empty(t, cache.CachedDates())

		slots.reset()
		_, err = cache.Refresh(ctx, windowStart, 2, models.AssetKindVehicle, intPtr(90))
		require.NoError(t, err)
		assert.Len(t, slots.calls, 2)
	})

	t.Run("Duration change keeps counts when the policy is off", func(t *testing.T) {
		cache, slots := setupAvailabilityTest(false)
		_, err := cache.Refresh(ctx, windowStart, 2, models.AssetKindVehicle, intPtr(30))
		require.NoError(t, err)
		slots.reset()

		cache.DurationChanged(intPtr(90))
		_, err = cache.Refresh(ctx, windowStart, 2, models.AssetKindVehicle, intPtr(90))
		require.NoError(t, err)
		assert.Empty(t, slots.calls)
	})

	t.Run("Results from before a clear are discarded", func(t *testing.T) {
		cache, slots := setupAvailabilityTest(true)
		slots.gate = make(chan struct{})

		done := make(chan error, 1)
		go func() {
			_, err := cache.Refresh(ctx, windowStart, 2, models.AssetKindVehicle, nil)
			done <- err
		}()

		require.Eventually(t, func() bool {
			slots.mu.Lock()
			defer slots.mu.Unlock()
			return len(slots.calls) == 2
		}, time.Second, 5*time.Millisecond)

		cache.Clear()
		close(slots.gate)

		err := <-done
		assert.ErrorIs(t, err, ErrSessionEnded)
		assert.Empty(t, cache.CachedDates())
	})
	t.Run("A successful refresh never returns a half-cleared window", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			cache, _ := setupAvailabilityTest(true)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				cache.Clear()
			}()
			snapshot, err := cache.Refresh(ctx, windowStart, 3, models.AssetKindVehicle, nil)
			wg.Wait()

			if err == nil {
				require.Empty(t, snapshot.Missing, "iteration %d", i)
				require.Len(t, snapshot.Counts, 3, "iteration %d", i)
			} else {
				require.ErrorIs(t, err, ErrSessionEnded)
			}
		}
	})
}
