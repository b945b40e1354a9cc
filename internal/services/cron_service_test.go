package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	cutoff time.Time
	err    error
}

func (f *fakePurger) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 4, f.err
}

func TestCronService(t *testing.T) {
	_, f := setupSessionTest(t)
	manager := NewSessionManager(f.deps, time.Minute, quietLogger())

	t.Run("Purge uses the draft TTL", func(t *testing.T) {
		purger := &fakePurger{}
		svc := NewCronService(manager, purger, 24*time.Hour, quietLogger())

		removed, err := svc.PurgeStaleDraftsNow(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(4), removed)
		assert.WithinDuration(t, time.Now().Add(-24*time.Hour), purger.cutoff, time.Minute)
	})

	t.Run("Purge errors are returned", func(t *testing.T) {
		svc := NewCronService(manager, &fakePurger{err: errors.New("db down")}, time.Hour, quietLogger())
		_, err := svc.PurgeStaleDraftsNow(context.Background())
		assert.EqualError(t, err, "db down")
	})

	t.Run("No purger schedules only the sweep", func(t *testing.T) {
		svc := NewCronService(manager, nil, time.Hour, quietLogger())
		require.NoError(t, svc.Start())
		defer svc.Stop()
		assert.Len(t, svc.cron.Entries(), 1)

		removed, err := svc.PurgeStaleDraftsNow(context.Background())
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("Purger adds the daily job", func(t *testing.T) {
		svc := NewCronService(manager, &fakePurger{}, time.Hour, quietLogger())
		require.NoError(t, svc.Start())
		defer svc.Stop()
		assert.Len(t, svc.cron.Entries(), 2)
	})
}
